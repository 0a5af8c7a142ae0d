package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/observability"
	apperrors "github.com/spec-kit/trustmesh/pkg/util/errorutil"
)

// NewApp builds a fiber app whose errors render through ErrorHandler.
func NewApp(name string, logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		UnescapePath:          true,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger, metrics),
	})
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(recoverMiddleware(logger))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func recoverMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
		}()
		return c.Next()
	}
}

// ErrorHandler renders every error as {"error":{"code","message"}}.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var domainErr *apperrors.DomainError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) && !errors.As(err, &domainErr) {
			domainErr = fromFiberError(fiberErr)
		} else {
			domainErr = apperrors.ToDomainError(err)
		}

		metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)

		body := fiber.Map{
			"code":    domainErr.Code,
			"message": domainErr.Message,
		}
		if len(domainErr.Details) > 0 {
			body["details"] = domainErr.Details
		}
		if domainErr.HTTPStatus >= 500 {
			logger.Error("request failed", zap.String("code", domainErr.Code), zap.Error(domainErr))
		} else if domainErr.Kind == apperrors.KindIntegration {
			logger.Warn("collaborator failed", zap.String("code", domainErr.Code), zap.Error(domainErr))
		}
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
	}
}

func fromFiberError(e *fiber.Error) *apperrors.DomainError {
	kind := apperrors.KindValidation
	switch {
	case e.Code == http.StatusNotFound:
		kind = apperrors.KindNotFound
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		kind = apperrors.KindAuth
	case e.Code >= 500:
		kind = apperrors.KindInternal
	}
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(e.Code), " ", "_"))
	if code == "" {
		code = "HTTP_ERROR"
	}
	return apperrors.NewDomainError(kind, code, e.Message, e.Code, nil)
}
