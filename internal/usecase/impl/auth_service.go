package impl

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"postboard/config"
	deliverycontext "postboard/internal/delivery/context"
	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/repository"
	"postboard/internal/domain/service"
	"postboard/internal/errors"
	"postboard/internal/usecase"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
)

// authService implements the AuthUsecase interface.
type authService struct {
	sessions             *sessionManager
	txManager            repository.TransactionManager
	userRepo             repository.UserRepository
	refreshTokenRepo     repository.RefreshTokenRepository
	hasher               service.PasswordHasher
	publisher            service.EventPublisher
	tracer               trace.Tracer
	revokeLineageOnReuse bool
	logger               *slog.Logger

	dummyHashOnce sync.Once
	dummyHash     string
}

// dummyPassword is hashed once so unknown emails cost one Verify like known ones.
const dummyPassword = "postboard-timing-equalizer"

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	UserRepo         repository.UserRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Hasher           service.PasswordHasher
	TokenService     service.TokenService
	Publisher        service.EventPublisher
	Tracer           trace.Tracer `optional:"true"`
	Config           *config.Config
	Logger           *slog.Logger
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	tracer := params.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	revokeLineage := false
	if params.Config != nil && params.Config.Auth != nil {
		revokeLineage = params.Config.Auth.RevokeLineageOnReuse
	}

	return &authService{
		sessions:             newSessionManager(params.RefreshTokenRepo, params.TokenService, params.Hasher, params.Logger),
		txManager:            params.TxManager,
		userRepo:             params.UserRepo,
		refreshTokenRepo:     params.RefreshTokenRepo,
		hasher:               params.Hasher,
		publisher:            params.Publisher,
		tracer:               tracer,
		revokeLineageOnReuse: revokeLineage,
		logger:               params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// endSpan ends the span. Client errors are tagged with their code; only server
// side failures mark the span as failed.
func endSpan(span trace.Span, err error) {
	if err != nil {
		appErr, ok := errors.AsType[domainerrors.AppError](err)
		if ok && appErr.HTTPCode() < http.StatusInternalServerError {
			span.SetAttributes(attribute.String("error.code", appErr.ErrorCode()))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// verifyAgainstDummy spends the same hashing work as a real password check.
// The outcome is discarded.
func (srv *authService) verifyAgainstDummy(ctx context.Context, password string) {
	srv.dummyHashOnce.Do(func() {
		hash, err := srv.hasher.Hash(dummyPassword)
		if err != nil {
			srv.log(ctx).Error("Failed to prepare dummy password hash", slog.Any("error", err))

			return
		}
		srv.dummyHash = hash
	})
	if srv.dummyHash == "" {
		return
	}
	_, _ = srv.hasher.Verify(password, srv.dummyHash)
}

// SignUp creates the account inside a transaction and opens its first session.
func (srv *authService) SignUp(ctx context.Context, input usecase.SignUpInput) (out *usecase.AuthOutput, err error) {
	ctx, span := srv.tracer.Start(ctx, "AuthService.SignUp")
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(input.Email)
	srv.log(ctx).Info("Starting sign-up", slog.String("email", email))

	var created *entity.User
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		exists, err := userRepo.ExistsByEmail(ctx, email)
		if err != nil {
			return errors.Wrap(err, "failed to check email")
		}
		if exists {
			return errors.WithStack(domainerrors.ErrUserAlreadyExists)
		}

		if err := srv.hasher.ValidatePasswordStrength(input.Password); err != nil {
			return err
		}

		hash, err := srv.hasher.Hash(input.Password)
		if err != nil {
			return errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
		}

		user := &entity.User{
			Name:         strings.TrimSpace(input.Name),
			Email:        email,
			PasswordHash: hash,
			Status:       entity.UserStatusActive,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			return errors.Wrap(err, "failed to create user")
		}
		created = user

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Sign-up failed", slog.String("email", email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute sign-up transaction")
	}

	span.SetAttributes(attribute.String("user.id", created.ID.String()))

	out, err = srv.sessions.issueWithFullRevocation(ctx, created)
	if err != nil {
		return nil, err
	}
	srv.log(ctx).Info("Sign-up completed", slog.Any("user_id", created.ID))

	return out, nil
}

// SignIn verifies credentials and replaces every session of the user with a new one.
// Unknown email and wrong password are indistinguishable to the caller.
func (srv *authService) SignIn(ctx context.Context, input usecase.SignInInput) (out *usecase.AuthOutput, err error) {
	ctx, span := srv.tracer.Start(ctx, "AuthService.SignIn")
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(input.Email)

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, domainerrors.ErrUserNotFound) {
		srv.verifyAgainstDummy(ctx, input.Password)
		srv.log(ctx).Info("Sign-in with unknown email", slog.String("email", email))

		return nil, errors.WithStack(domainerrors.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}

	match, err := srv.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}
	if !match {
		srv.log(ctx).Info("Sign-in with wrong password", slog.Any("user_id", user.ID))

		return nil, errors.WithStack(domainerrors.ErrInvalidCredentials)
	}
	if user.Status == entity.UserStatusDisabled {
		return nil, errors.WithStack(domainerrors.ErrUserDisabled)
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	out, err = srv.sessions.issueWithFullRevocation(ctx, user)
	if err != nil {
		return nil, err
	}
	srv.log(ctx).Info("Sign-in completed", slog.Any("user_id", user.ID))

	return out, nil
}

// Refresh rotates a refresh token. The presented token is revoked with a
// compare-and-set so that of two concurrent exchanges only one can win.
func (srv *authService) Refresh(ctx context.Context, refreshToken string) (out *usecase.AuthOutput, err error) {
	ctx, span := srv.tracer.Start(ctx, "AuthService.Refresh")
	defer func() { endSpan(span, err) }()

	token, err := srv.sessions.validateAndFetch(ctx, refreshToken)
	if err != nil {
		if token != nil && errors.Is(err, domainerrors.ErrRefreshTokenRevoked) {
			srv.reportReuse(ctx, token)
		}

		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", token.UserID.String()))

	won, err := srv.sessions.revokeByJTI(ctx, token.JTI)
	if err != nil {
		return nil, err
	}
	if !won {
		srv.reportReuse(ctx, token)

		return nil, errors.WithStack(domainerrors.ErrRefreshTokenRevoked)
	}

	// The old token is already spent here; a missing user leaves it revoked.
	user, err := srv.userRepo.FindByID(ctx, token.UserID)
	if errors.Is(err, domainerrors.ErrUserNotFound) {
		srv.log(ctx).Warn("Refresh token owner no longer exists", slog.Any("user_id", token.UserID))

		return nil, errors.WithStack(domainerrors.ErrRefreshTokenUserNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}
	if user.Status == entity.UserStatusDisabled {
		return nil, errors.WithStack(domainerrors.ErrUserDisabled)
	}

	out, err = srv.sessions.issueWithoutRevocation(ctx, user)
	if err != nil {
		return nil, err
	}
	srv.log(ctx).Debug("Refresh token rotated", slog.Any("user_id", user.ID))

	return out, nil
}

// Logout revokes the presented refresh token by its jti. Other sessions of the
// user and any outstanding access token are left alone.
func (srv *authService) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := srv.tracer.Start(ctx, "AuthService.Logout")
	defer func() { endSpan(span, err) }()

	jti, _, err := srv.sessions.parseRefreshTokenFormat(refreshToken)
	if err != nil {
		return err
	}

	revoked, err := srv.sessions.revokeByJTI(ctx, jti)
	if err != nil {
		return err
	}
	srv.log(ctx).Debug("Logout processed", slog.Bool("revoked", revoked))

	return nil
}

// reportReuse reacts to a refresh token that was presented after it had been spent.
// Failures here are logged and never change the caller's outcome.
func (srv *authService) reportReuse(ctx context.Context, token *entity.RefreshToken) {
	srv.log(ctx).Warn("Refresh token reuse detected",
		slog.Any("user_id", token.UserID),
		slog.String("jti", token.JTI),
		slog.Bool("revoke_lineage", srv.revokeLineageOnReuse),
	)

	if srv.revokeLineageOnReuse {
		count, err := srv.refreshTokenRepo.RevokeAllByUserID(ctx, token.UserID, srv.sessions.now())
		if err != nil {
			srv.log(ctx).Error("Failed to revoke token lineage", slog.Any("user_id", token.UserID), slog.Any("error", err))
		} else {
			srv.log(ctx).Info("Revoked token lineage", slog.Any("user_id", token.UserID), slog.Int64("count", count))
		}
	}

	if srv.publisher == nil {
		return
	}

	event := &service.SecurityEvent{
		RequestID:     deliverycontext.GetRequestIDFromContext(ctx),
		Type:          service.SecurityEventRefreshTokenReuse,
		UserID:        token.UserID.String(),
		JTI:           token.JTI,
		LineageRevoke: srv.revokeLineageOnReuse,
		OccurredAt:    srv.sessions.now().UTC(),
	}
	if err := srv.publisher.PublishSecurityEvent(ctx, event); err != nil {
		srv.log(ctx).Error("Failed to publish security event", slog.String("type", string(event.Type)), slog.Any("error", err))
	}
}
