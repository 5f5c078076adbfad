package impl

import (
	"context"
	"sync"
	"testing"
	"time"

	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/service"
	"postboard/internal/errors"
	mockRepo "postboard/internal/mocks/repository"
	"postboard/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthService_SignUp_Success(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()

	factory := mockRepo.NewMockRepositoryFactory(t)
	txUserRepo := mockRepo.NewMockUserRepository(t)
	factory.EXPECT().NewUserRepository().Return(txUserRepo)
	f.expectTransaction(t, factory)

	var createdID uuid.UUID
	txUserRepo.EXPECT().ExistsByEmail(mock.Anything, "jane@x.com").Return(false, nil)
	txUserRepo.EXPECT().
		Create(mock.Anything, mock.AnythingOfType("*entity.User")).
		Run(func(_ context.Context, user *entity.User) {
			assert.Equal(t, "hashed:Secret123!", user.PasswordHash)
			assert.Equal(t, entity.UserStatusActive, user.Status)
			user.ID = uuid.New()
			createdID = user.ID
		}).
		Return(nil)

	out, err := f.service.SignUp(ctx, usecase.SignUpInput{
		Name:     "Jane",
		Email:    "  Jane@X.com ",
		Password: "Secret123!",
	})

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, createdID, out.User.ID)
	assert.Equal(t, "jane@x.com", out.User.Email)
	assert.Empty(t, out.User.PasswordHash)
	assert.NotEmpty(t, out.Tokens.AccessToken)
	assert.NotEmpty(t, out.Tokens.CSRFToken)

	rows := f.store.forUser(createdID)
	require.Len(t, rows, 1)
	assert.Equal(t, out.Tokens.JTI, rows[0].JTI)
	assert.False(t, rows[0].IsRevoked())
}

func TestAuthService_SignUp_EmailTaken(t *testing.T) {
	f := createTestAuthService(t)

	factory := mockRepo.NewMockRepositoryFactory(t)
	txUserRepo := mockRepo.NewMockUserRepository(t)
	factory.EXPECT().NewUserRepository().Return(txUserRepo)
	f.expectTransaction(t, factory)
	txUserRepo.EXPECT().ExistsByEmail(mock.Anything, "jane@x.com").Return(true, nil)

	out, err := f.service.SignUp(context.Background(), usecase.SignUpInput{
		Name: "Jane", Email: "jane@x.com", Password: "Secret123!",
	})

	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, domainerrors.ErrUserAlreadyExists))
}

func TestAuthService_SignUp_WeakPassword(t *testing.T) {
	f := createTestAuthService(t)
	f.hasher.strengthErr = domainerrors.ErrPasswordStrength.WrapMessage("must be at least 8 characters long")

	factory := mockRepo.NewMockRepositoryFactory(t)
	txUserRepo := mockRepo.NewMockUserRepository(t)
	factory.EXPECT().NewUserRepository().Return(txUserRepo)
	f.expectTransaction(t, factory)
	txUserRepo.EXPECT().ExistsByEmail(mock.Anything, "jane@x.com").Return(false, nil)

	_, err := f.service.SignUp(context.Background(), usecase.SignUpInput{
		Name: "Jane", Email: "jane@x.com", Password: "short",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrPasswordStrength))
}

func TestAuthService_SignIn_InvalidCredentials(t *testing.T) {
	t.Run("unknown email", func(t *testing.T) {
		f := createTestAuthService(t)
		f.userRepo.EXPECT().
			FindByEmail(mock.Anything, "ghost@x.com").
			Return(nil, errors.WithStack(domainerrors.ErrUserNotFound))

		_, err := f.service.SignIn(context.Background(), usecase.SignInInput{Email: "ghost@x.com", Password: "Secret123!"})

		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
		// The password is still checked once so the miss costs as much as a wrong password.
		assert.Equal(t, int64(1), f.hasher.verifies.Load())
	})

	t.Run("wrong password", func(t *testing.T) {
		f := createTestAuthService(t)
		user := newTestUser("Secret123!")
		f.serveUser(user)

		_, err := f.service.SignIn(context.Background(), usecase.SignInInput{Email: user.Email, Password: "Wrong123!"})

		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))
		assert.Equal(t, int64(1), f.hasher.verifies.Load())
		assert.Empty(t, f.store.forUser(user.ID))
	})
}

func TestAuthService_SignIn_DisabledAccount(t *testing.T) {
	f := createTestAuthService(t)
	user := newTestUser("Secret123!")
	user.Status = entity.UserStatusDisabled
	f.serveUser(user)

	_, err := f.service.SignIn(context.Background(), usecase.SignInInput{Email: user.Email, Password: "Secret123!"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrUserDisabled))
}

func TestAuthService_SignIn_RevokesEverySession(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	user := newTestUser("Secret123!")
	f.serveUser(user)
	f.publisher.EXPECT().PublishSecurityEvent(mock.Anything, mock.Anything).Return(nil).Once()

	first, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)
	second, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)

	assert.Len(t, f.store.forUser(user.ID), 2)
	assert.Equal(t, 1, f.store.activeFor(user.ID))

	_, err = f.service.Refresh(ctx, first.Tokens.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenRevoked))

	_, err = f.service.Refresh(ctx, second.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestAuthService_Refresh_RotationIsSingleUse(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	user := newTestUser("Secret123!")
	f.serveUser(user)

	signedIn, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)
	original := signedIn.Tokens.RefreshToken

	rotated, err := f.service.Refresh(ctx, original)
	require.NoError(t, err)
	assert.NotEqual(t, original, rotated.Tokens.RefreshToken)
	assert.Empty(t, rotated.User.PasswordHash)

	f.publisher.EXPECT().
		PublishSecurityEvent(mock.Anything, mock.MatchedBy(func(e *service.SecurityEvent) bool {
			return e.Type == service.SecurityEventRefreshTokenReuse &&
				e.UserID == user.ID.String() &&
				e.JTI == signedIn.Tokens.JTI &&
				!e.LineageRevoke
		})).
		Return(nil).
		Once()

	_, err = f.service.Refresh(ctx, original)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenRevoked))

	// Without lineage revocation the rotated token keeps working.
	_, err = f.service.Refresh(ctx, rotated.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestAuthService_Refresh_ReuseRevokesLineageWhenEnabled(t *testing.T) {
	f := createTestAuthService(t, withLineageRevoke())
	ctx := context.Background()
	user := newTestUser("Secret123!")
	f.serveUser(user)

	signedIn, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)
	rotated, err := f.service.Refresh(ctx, signedIn.Tokens.RefreshToken)
	require.NoError(t, err)

	f.publisher.EXPECT().
		PublishSecurityEvent(mock.Anything, mock.MatchedBy(func(e *service.SecurityEvent) bool {
			return e.LineageRevoke
		})).
		Return(errors.New("broker unavailable"))

	_, err = f.service.Refresh(ctx, signedIn.Tokens.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenRevoked))
	assert.Equal(t, 0, f.store.activeFor(user.ID))

	_, err = f.service.Refresh(ctx, rotated.Tokens.RefreshToken)
	assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenRevoked))
}

func TestAuthService_Refresh_ExpiryBoundaryIsInclusive(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	user := newTestUser("Secret123!")
	f.serveUser(user)

	signedIn, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)
	expiresAt := signedIn.Tokens.RefreshTokenExpiresAt

	f.clock.Set(expiresAt)
	_, err = f.service.Refresh(ctx, signedIn.Tokens.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenExpired))

	f.clock.Set(expiresAt.Add(-time.Nanosecond))
	_, err = f.service.Refresh(ctx, signedIn.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestAuthService_Refresh_RejectsMalformedTokenWithoutLookup(t *testing.T) {
	// A bare mock fails the test on any unexpected repository call.
	refreshRepo := mockRepo.NewMockRefreshTokenRepository(t)
	f := createTestAuthServiceWithStore(t, refreshRepo)

	for _, token := range []string{"", "abc", "a.b.c", ".secret", "jti.", "."} {
		_, err := f.service.Refresh(context.Background(), token)
		require.Error(t, err, token)
		assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenInvalid), token)

		err = f.service.Logout(context.Background(), token)
		require.Error(t, err, token)
		assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenInvalid), token)
	}
}

func TestAuthService_Refresh_UnknownAndWrongSecretLookAlike(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	user := newTestUser("Secret123!")
	f.serveUser(user)

	signedIn, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)

	_, unknownErr := f.service.Refresh(ctx, "nosuchjti.secret")
	_, mismatchErr := f.service.Refresh(ctx, entity.ComposeRefreshToken(signedIn.Tokens.JTI, "guessed"))

	assert.True(t, errors.Is(unknownErr, domainerrors.ErrRefreshTokenInvalid))
	assert.True(t, errors.Is(mismatchErr, domainerrors.ErrRefreshTokenInvalid))
	assert.Equal(t, unknownErr.Error(), mismatchErr.Error())
	assert.Equal(t, 1, f.store.activeFor(user.ID))
}

func TestAuthService_Refresh_OwnerGone(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	user := newTestUser("Secret123!")

	f.userRepo.EXPECT().
		FindByEmail(mock.Anything, user.Email).
		RunAndReturn(func(context.Context, string) (*entity.User, error) {
			cp := *user

			return &cp, nil
		})
	f.userRepo.EXPECT().
		FindByID(mock.Anything, user.ID).
		Return(nil, errors.WithStack(domainerrors.ErrUserNotFound))

	signedIn, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, signedIn.Tokens.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrRefreshTokenUserNotFound))
	assert.Equal(t, 0, f.store.activeFor(user.ID))
}

func TestAuthService_Refresh_ConcurrentExchangeHasOneWinner(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	user := newTestUser("Secret123!")
	f.serveUser(user)
	f.publisher.EXPECT().PublishSecurityEvent(mock.Anything, mock.Anything).Return(nil).Maybe()

	signedIn, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		revoked   int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Refresh(ctx, signedIn.Tokens.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainerrors.ErrRefreshTokenRevoked):
				revoked++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, revoked)
	assert.Equal(t, 1, f.store.activeFor(user.ID))
}

func TestAuthService_Refresh_DoubleRefreshScenario(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	user := newTestUser("Secret123!")
	f.serveUser(user)
	f.publisher.EXPECT().PublishSecurityEvent(mock.Anything, mock.Anything).Return(nil).Once()

	signedIn, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)

	first, err := f.service.Refresh(ctx, signedIn.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Tokens.RefreshToken)

	_, err = f.service.Refresh(ctx, signedIn.Tokens.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, domainerrors.ErrRefreshTokenRevoked.Message(), errors.Cause(err).Error())
}

func TestAuthService_SignIn_TokenIssueFailure(t *testing.T) {
	f := createTestAuthService(t)
	user := newTestUser("Secret123!")
	f.serveUser(user)
	f.tokenService.err = errors.New("entropy exhausted")

	_, err := f.service.SignIn(context.Background(), usecase.SignInInput{Email: user.Email, Password: "Secret123!"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrTokenIssueFailed))
}

func TestAuthService_Logout(t *testing.T) {
	f := createTestAuthService(t)
	ctx := context.Background()
	user := newTestUser("Secret123!")
	f.serveUser(user)

	signedIn, err := f.service.SignIn(ctx, usecase.SignInInput{Email: user.Email, Password: "Secret123!"})
	require.NoError(t, err)
	userCopy := *user
	sibling, err := f.service.sessions.issueWithoutRevocation(ctx, &userCopy)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, signedIn.Tokens.RefreshToken))
	for _, row := range f.store.forUser(user.ID) {
		switch row.JTI {
		case signedIn.Tokens.JTI:
			assert.True(t, row.IsRevoked())
		case sibling.Tokens.JTI:
			assert.False(t, row.IsRevoked())
		}
	}
	assert.Equal(t, 1, f.store.activeFor(user.ID))

	// Logging out twice or with an unknown jti is a no-op.
	require.NoError(t, f.service.Logout(ctx, signedIn.Tokens.RefreshToken))
	require.NoError(t, f.service.Logout(ctx, "unknownjti.secret"))
}
