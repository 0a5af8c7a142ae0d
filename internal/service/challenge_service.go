package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/auth"
	"github.com/spec-kit/trustmesh/internal/domain"
	"github.com/spec-kit/trustmesh/internal/events"
	"github.com/spec-kit/trustmesh/internal/observability"
	"github.com/spec-kit/trustmesh/internal/repository"
	apperrors "github.com/spec-kit/trustmesh/pkg/util/errorutil"
)

// Outcome is the closed result set of challenge operations.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeInvalidToken Outcome = "invalidToken"
	OutcomeInvalidUser  Outcome = "invalidUser"
	OutcomeFailed       Outcome = "failed"
	OutcomeCodeExpired  Outcome = "codeExpired"
	OutcomeInvalidCode  Outcome = "invalidCode"
)

// ChallengeService issues and checks one-time verification codes.
type ChallengeService struct {
	verifier   auth.TokenVerifier
	identities repository.IdentityRepository
	store      ChallengeStore
	codes      auth.CodeGenerator
	sender     CodeSender
	ttl        time.Duration
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ChallengeDependencies groups the collaborators of ChallengeService.
type ChallengeDependencies struct {
	Verifier   auth.TokenVerifier
	Identities repository.IdentityRepository
	Store      ChallengeStore
	Codes      auth.CodeGenerator
	Sender     CodeSender
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
}

// NewChallengeService builds the service.
func NewChallengeService(deps ChallengeDependencies, ttl time.Duration, logger *zap.Logger) *ChallengeService {
	return &ChallengeService{
		verifier:   deps.Verifier,
		identities: deps.Identities,
		store:      deps.Store,
		codes:      deps.Codes,
		sender:     deps.Sender,
		ttl:        ttl,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Generate delivers a fresh code to the token's subject and stores it,
// replacing any outstanding code. Nothing is stored when delivery fails.
func (s *ChallengeService) Generate(ctx context.Context, token string) (Outcome, error) {
	identity, outcome, err := s.subject(ctx, token)
	if outcome != "" || err != nil {
		return s.record("generate", outcome), err
	}

	code, err := s.codes.Generate()
	if err != nil {
		return s.record("generate", OutcomeFailed), apperrors.NewInternalError(err)
	}

	stateID, err := s.sender.SendCode(ctx, CodeDelivery{
		Email: identity.Email,
		Name:  identity.Name,
		Code:  code,
		TTL:   s.ttl,
	})
	if err != nil {
		s.logger.Warn("code delivery failed", zap.Int64("identity_id", identity.ID), zap.Error(err))
		return s.record("generate", OutcomeFailed), nil
	}

	if err := s.store.Set(ctx, identity.Email, code, s.ttl); err != nil {
		return s.record("generate", OutcomeFailed), apperrors.NewInternalError(err)
	}
	stateKey := domain.StateIDKey(identity.Email)
	if stateID != "" {
		err = s.store.Set(ctx, stateKey, stateID, s.ttl)
	} else {
		err = s.store.Delete(ctx, stateKey)
	}
	if err != nil {
		s.logger.Warn("store delivery state id", zap.Error(err))
	}

	s.logger.Info("verification code issued", zap.Int64("identity_id", identity.ID), zap.Duration("ttl", s.ttl))
	return s.record("generate", OutcomeOK), nil
}

// Verify checks code against the outstanding one for the token's subject.
// The identity is marked verified before the code is consumed, so a failed
// update leaves the code in place for a retry.
func (s *ChallengeService) Verify(ctx context.Context, token, code string) (Outcome, error) {
	identity, outcome, err := s.subject(ctx, token)
	if outcome != "" || err != nil {
		return s.record("verify", outcome), err
	}

	stored, found, err := s.store.Get(ctx, identity.Email)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	if !found {
		return s.record("verify", OutcomeCodeExpired), nil
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return s.record("verify", OutcomeInvalidCode), nil
	}

	if !identity.Verified {
		if err := s.identities.MarkVerified(ctx, identity.ID); err != nil {
			return "", apperrors.NewInternalError(err)
		}
	}

	// A concurrent Verify or a newer code may have taken the key meanwhile;
	// the code matched when checked, so only store errors matter here.
	if _, err := s.store.ConsumeIfMatch(ctx, identity.Email, code, domain.StateIDKey(identity.Email)); err != nil {
		return "", apperrors.NewInternalError(err)
	}

	s.logger.Info("identity verified", zap.Int64("identity_id", identity.ID))
	if s.dispatcher != nil {
		event := events.NewEvent(events.EventIdentityVerified, identity.Email, events.IdentityPayload{
			IdentityID: identity.ID,
			Username:   identity.Username,
			Role:       identity.Role,
		})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handlers failed", zap.String("event", string(event.Type)), zap.Error(err))
		}
	}
	return s.record("verify", OutcomeOK), nil
}

// subject resolves the end-user behind token. Admins have no challenge step
// and resolve to OutcomeInvalidUser.
func (s *ChallengeService) subject(ctx context.Context, token string) (*domain.Identity, Outcome, error) {
	principal, err := s.verifier.Verify(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnknownSubject), errors.Is(err, auth.ErrRoleMismatch):
			return nil, OutcomeInvalidUser, nil
		case apperrors.KindOf(err) == apperrors.KindAuth:
			return nil, OutcomeInvalidToken, nil
		default:
			return nil, "", err
		}
	}
	if principal.Role != domain.RoleUser {
		return nil, OutcomeInvalidUser, nil
	}

	identity, err := s.identities.GetByEmail(ctx, principal.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, OutcomeInvalidUser, nil
		}
		return nil, "", apperrors.NewInternalError(err)
	}
	if identity.Role != domain.RoleUser {
		return nil, OutcomeInvalidUser, nil
	}
	return identity, "", nil
}

func (s *ChallengeService) record(operation string, outcome Outcome) Outcome {
	if outcome != "" {
		s.metrics.RecordChallenge(operation, string(outcome))
	}
	return outcome
}
