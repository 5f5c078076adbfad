// Package impl contains the application-specific business rules implementations.
package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "postboard/internal/delivery/context"
	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/repository"
	"postboard/internal/domain/service"
	"postboard/internal/errors"
	"postboard/internal/usecase"
)

// sessionManager holds the token steps shared by every auth flow.
// It never decides policy; the flows in authService do.
type sessionManager struct {
	refreshTokenRepo repository.RefreshTokenRepository
	tokenService     service.TokenService
	hasher           service.PasswordHasher
	now              func() time.Time
	logger           *slog.Logger
}

func newSessionManager(
	refreshTokenRepo repository.RefreshTokenRepository,
	tokenService service.TokenService,
	hasher service.PasswordHasher,
	logger *slog.Logger,
) *sessionManager {
	return &sessionManager{
		refreshTokenRepo: refreshTokenRepo,
		tokenService:     tokenService,
		hasher:           hasher,
		now:              time.Now,
		logger:           logger,
	}
}

func (m *sessionManager) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, m.logger)
}

// issueAndPersist mints a token pair for the user and stores the refresh half.
// The returned user has its password hash stripped.
func (m *sessionManager) issueAndPersist(ctx context.Context, user *entity.User) (*usecase.AuthOutput, error) {
	tokens, err := m.tokenService.GenerateTokens(user)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrTokenIssueFailed, err.Error())
	}

	record := &entity.RefreshToken{
		UserID:    user.ID,
		JTI:       tokens.JTI,
		TokenHash: tokens.TokenHash,
		CreatedAt: m.now(),
		ExpiresAt: tokens.RefreshTokenExpiresAt,
	}
	if err := m.refreshTokenRepo.Create(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to persist refresh token")
	}

	m.log(ctx).Debug("Issued session", slog.Any("user_id", user.ID), slog.String("jti", tokens.JTI))

	return &usecase.AuthOutput{User: user.HidePassword(), Tokens: tokens}, nil
}

// issueWithFullRevocation closes every open session of the user before issuing a new one.
// Access tokens already handed out stay valid until they expire.
func (m *sessionManager) issueWithFullRevocation(ctx context.Context, user *entity.User) (*usecase.AuthOutput, error) {
	revoked, err := m.refreshTokenRepo.RevokeAllByUserID(ctx, user.ID, m.now())
	if err != nil {
		return nil, errors.Wrap(err, "failed to revoke previous sessions")
	}
	if revoked > 0 {
		m.log(ctx).Info("Revoked previous sessions", slog.Any("user_id", user.ID), slog.Int64("count", revoked))
	}

	return m.issueAndPersist(ctx, user)
}

func (m *sessionManager) issueWithoutRevocation(ctx context.Context, user *entity.User) (*usecase.AuthOutput, error) {
	return m.issueAndPersist(ctx, user)
}

// parseRefreshTokenFormat splits "<jti>.<secret>" without touching storage.
func (m *sessionManager) parseRefreshTokenFormat(plain string) (jti, secret string, err error) {
	jti, secret, ok := entity.SplitRefreshToken(plain)
	if !ok {
		return "", "", errors.WithStack(domainerrors.ErrRefreshTokenInvalid)
	}

	return jti, secret, nil
}

// validateAndFetch resolves a presented refresh token to its stored record.
//
// Checks run in a fixed order: format, existence, revocation, expiry, secret.
// An unknown jti and a wrong secret yield the same error. When a revoked token
// is presented with its correct secret the record is returned together with
// ErrRefreshTokenRevoked so the caller can treat the presentation as reuse.
func (m *sessionManager) validateAndFetch(ctx context.Context, plain string) (*entity.RefreshToken, error) {
	jti, secret, err := m.parseRefreshTokenFormat(plain)
	if err != nil {
		return nil, err
	}

	token, err := m.refreshTokenRepo.FindByJTI(ctx, jti)
	if errors.Is(err, domainerrors.ErrRefreshTokenNotFound) {
		return nil, errors.WithStack(domainerrors.ErrRefreshTokenInvalid)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find refresh token")
	}

	if token.IsRevoked() {
		if match, verr := m.hasher.Verify(secret, token.TokenHash); verr == nil && match {
			return token, errors.WithStack(domainerrors.ErrRefreshTokenRevoked)
		}

		return nil, errors.WithStack(domainerrors.ErrRefreshTokenRevoked)
	}
	if token.IsExpiredAt(m.now()) {
		return nil, errors.WithStack(domainerrors.ErrRefreshTokenExpired)
	}

	match, err := m.hasher.Verify(secret, token.TokenHash)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrInternalError, "stored refresh token hash is unreadable: "+err.Error())
	}
	if !match {
		return nil, errors.WithStack(domainerrors.ErrRefreshTokenInvalid)
	}

	return token, nil
}

// revokeByJTI marks the token revoked now. It reports whether this call did the revoking.
func (m *sessionManager) revokeByJTI(ctx context.Context, jti string) (bool, error) {
	revoked, err := m.refreshTokenRepo.RevokeByJTI(ctx, jti, m.now())
	if err != nil {
		return false, errors.Wrap(err, "failed to revoke refresh token")
	}

	return revoked, nil
}
