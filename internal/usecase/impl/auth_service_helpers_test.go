package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"postboard/config"
	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/repository"
	"postboard/internal/domain/service"
	"postboard/internal/errors"
	mockRepo "postboard/internal/mocks/repository"
	mockSvc "postboard/internal/mocks/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock is a settable clock shared by the session manager and the fake issuer.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memRefreshTokenStore is an in-memory RefreshTokenRepository with the same
// conditional revocation rules as the real stores.
type memRefreshTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]*entity.RefreshToken
	lookups atomic.Int64
}

func newMemRefreshTokenStore() *memRefreshTokenStore {
	return &memRefreshTokenStore{tokens: make(map[string]*entity.RefreshToken)}
}

func (s *memRefreshTokenStore) Create(_ context.Context, token *entity.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[token.JTI]; ok {
		return domainerrors.ErrTokenIssueFailed.WrapMessage("duplicate jti")
	}
	token.ID = uuid.New()
	stored := *token
	s.tokens[token.JTI] = &stored

	return nil
}

func (s *memRefreshTokenStore) FindByJTI(_ context.Context, jti string) (*entity.RefreshToken, error) {
	s.lookups.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[jti]
	if !ok {
		return nil, errors.WithStack(domainerrors.ErrRefreshTokenNotFound)
	}
	out := *token

	return &out, nil
}

func (s *memRefreshTokenStore) RevokeByJTI(_ context.Context, jti string, revokedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[jti]
	if !ok || token.RevokedAt != nil {
		return false, nil
	}
	token.RevokedAt = &revokedAt

	return true, nil
}

func (s *memRefreshTokenStore) RevokeAllByUserID(_ context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, token := range s.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &revokedAt
			n++
		}
	}

	return n, nil
}

func (s *memRefreshTokenStore) forUser(userID uuid.UUID) []*entity.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entity.RefreshToken
	for _, token := range s.tokens {
		if token.UserID == userID {
			cp := *token
			out = append(out, &cp)
		}
	}

	return out
}

func (s *memRefreshTokenStore) activeFor(userID uuid.UUID) int {
	active := 0
	for _, token := range s.forUser(userID) {
		if !token.IsRevoked() {
			active++
		}
	}

	return active
}

// fakeHasher is a reversible stand-in for argon2 so flows can be followed in tests.
type fakeHasher struct {
	strengthErr error
	verifies    atomic.Int64
}

const fakeHashPrefix = "hashed:"

func (h *fakeHasher) Hash(secret string) (string, error) {
	return fakeHashPrefix + secret, nil
}

func (h *fakeHasher) Verify(secret, hash string) (bool, error) {
	h.verifies.Add(1)
	if !strings.HasPrefix(hash, fakeHashPrefix) {
		return false, errors.New("malformed hash")
	}

	return hash == fakeHashPrefix+secret, nil
}

func (h *fakeHasher) ValidatePasswordStrength(string) error {
	return h.strengthErr
}

var (
	_ service.PasswordHasher = (*fakeHasher)(nil)
	_ service.TokenService   = (*fakeTokenService)(nil)
)

// fakeTokenService mints predictable, unique tokens.
type fakeTokenService struct {
	clock      *testClock
	refreshTTL time.Duration
	seq        atomic.Int64
	err        error
}

func (s *fakeTokenService) GenerateTokens(user *entity.User) (*entity.GeneratedAuthTokens, error) {
	if s.err != nil {
		return nil, s.err
	}

	n := s.seq.Add(1)
	now := s.clock.Now()
	jti := fmt.Sprintf("jti%04d", n)
	secret := fmt.Sprintf("secret%04d", n)

	return &entity.GeneratedAuthTokens{
		AccessToken:           fmt.Sprintf("access-%s-%d", user.ID, n),
		AccessTokenExpiresAt:  now.Add(15 * time.Minute),
		RefreshToken:          entity.ComposeRefreshToken(jti, secret),
		RefreshTokenExpiresAt: now.Add(s.refreshTTL),
		JTI:                   jti,
		TokenHash:             fakeHashPrefix + secret,
		CSRFToken:             fmt.Sprintf("csrf%04d", n),
	}, nil
}

// ValidateAccessToken is never reached by the use cases; access tokens are checked in the delivery layer.
func (s *fakeTokenService) ValidateAccessToken(string) (*service.AccessClaims, error) {
	return nil, errors.WithStack(domainerrors.ErrAccessTokenInvalid)
}

// authFixtures holds all test dependencies for auth service tests.
type authFixtures struct {
	service      *authService
	store        *memRefreshTokenStore
	hasher       *fakeHasher
	tokenService *fakeTokenService
	clock        *testClock
	txManager    *mockRepo.MockTransactionManager
	userRepo     *mockRepo.MockUserRepository
	publisher    *mockSvc.MockEventPublisher
}

type authFixtureOption func(*config.Config)

func withLineageRevoke() authFixtureOption {
	return func(cfg *config.Config) { cfg.Auth.RevokeLineageOnReuse = true }
}

func createTestAuthService(t *testing.T, opts ...authFixtureOption) authFixtures {
	return createTestAuthServiceWithStore(t, nil, opts...)
}

// createTestAuthServiceWithStore wires the service against refreshRepo, or an
// in-memory store when refreshRepo is nil.
func createTestAuthServiceWithStore(t *testing.T, refreshRepo repository.RefreshTokenRepository, opts ...authFixtureOption) authFixtures {
	t.Helper()

	cfg := &config.Config{Auth: &config.AuthConfig{}}
	for _, opt := range opts {
		opt(cfg)
	}

	clock := newTestClock()
	store := newMemRefreshTokenStore()
	if refreshRepo == nil {
		refreshRepo = store
	}
	hasher := &fakeHasher{}
	tokenService := &fakeTokenService{clock: clock, refreshTTL: 7 * 24 * time.Hour}
	txManager := mockRepo.NewMockTransactionManager(t)
	userRepo := mockRepo.NewMockUserRepository(t)
	publisher := mockSvc.NewMockEventPublisher(t)

	svc := NewAuthService(AuthServiceParams{
		TxManager:        txManager,
		UserRepo:         userRepo,
		RefreshTokenRepo: refreshRepo,
		Hasher:           hasher,
		TokenService:     tokenService,
		Publisher:        publisher,
		Config:           cfg,
		Logger:           newDiscardLogger(),
	}).(*authService)
	svc.sessions.now = clock.Now

	return authFixtures{
		service:      svc,
		store:        store,
		hasher:       hasher,
		tokenService: tokenService,
		clock:        clock,
		txManager:    txManager,
		userRepo:     userRepo,
		publisher:    publisher,
	}
}

// expectTransaction runs the transactional callback against factory.
func (f authFixtures) expectTransaction(t *testing.T, factory repository.RepositoryFactory) {
	t.Helper()

	f.txManager.EXPECT().
		Execute(mock.Anything, mock.AnythingOfType("func(repository.RepositoryFactory) error")).
		RunAndReturn(func(_ context.Context, fn func(repository.RepositoryFactory) error) error {
			return fn(factory)
		})
}

// serveUser makes the user repository answer lookups for user with fresh copies,
// since issuing a session strips the hash from the returned value.
func (f authFixtures) serveUser(user *entity.User) {
	f.userRepo.EXPECT().
		FindByID(mock.Anything, user.ID).
		RunAndReturn(func(context.Context, uuid.UUID) (*entity.User, error) {
			cp := *user

			return &cp, nil
		}).
		Maybe()
	f.userRepo.EXPECT().
		FindByEmail(mock.Anything, user.Email).
		RunAndReturn(func(context.Context, string) (*entity.User, error) {
			cp := *user

			return &cp, nil
		}).
		Maybe()
}

func newTestUser(password string) *entity.User {
	return &entity.User{
		ID:           uuid.New(),
		Name:         "Jane",
		Email:        "jane@x.com",
		PasswordHash: fakeHashPrefix + password,
		Status:       entity.UserStatusActive,
	}
}
