package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/trustmesh/internal/api/http/handlers"
	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/domain"
	"github.com/spec-kit/trustmesh/internal/observability"
)

// RegisterHealthRoutes wires health checks and the metrics endpoint every service carries.
func RegisterHealthRoutes(app *fiber.App, health *handlers.HealthHandler, metrics *observability.Metrics) {
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}

// IAMRoutes bundles dependencies of the identity service routes.
type IAMRoutes struct {
	Identity       *handlers.IdentityHandler
	Challenge      *handlers.ChallengeHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterIAMRoutes wires the identity service. Paths containing a space are
// also served without it.
func RegisterIAMRoutes(app *fiber.App, cfg IAMRoutes) {
	authGroup := app.Group("/authentication")
	authGroup.Post("/Register", cfg.Identity.Register)
	authGroup.Post("/RegisterAdmin", cfg.Identity.RegisterAdmin)
	authGroup.Post("/Login", cfg.Identity.Login)
	authGroup.Get("/ReturnByToken", cfg.Identity.ReturnByToken)
	authGroup.Get("/ReturnAdminByToken", cfg.Identity.ReturnAdminByToken)

	authGroup.Post("/Check Token", cfg.Identity.CheckToken)
	authGroup.Post("/CheckToken", cfg.Identity.CheckToken)

	authGroup.Post("/New Code", cfg.Challenge.NewCode)
	authGroup.Post("/NewCode", cfg.Challenge.NewCode)
	authGroup.Post("/Verify", cfg.Challenge.Verify)

	authGroup.Post("/ChangePassword", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Identity.ChangePassword)
}

// ContentRoutes bundles dependencies of the content service routes.
type ContentRoutes struct {
	Content        *handlers.ContentHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterContentRoutes wires aggregate deletion.
func RegisterContentRoutes(app *fiber.App, cfg ContentRoutes) {
	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Delete("/reviews/:id", cfg.Content.DeleteReview)

	user := app.Group("/user", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	user.Delete("/reports/:id", cfg.Content.DeleteReport)
}

// RegisterMediaRoutes wires the media service. Deletion is called by the
// garbage collector from inside the network and carries no token.
func RegisterMediaRoutes(app *fiber.App, media *handlers.MediaHandler) {
	app.Delete("/Media/mediaManager/Delete/:id", media.Delete)
}
