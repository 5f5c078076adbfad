package auth

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postboard/config"
	domainerrors "postboard/internal/domain/errors"
)

// testArgon2Params keeps the cost low so tests stay fast.
var testArgon2Params = config.Argon2Config{
	Memory:      8 * 1024,
	Time:        1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func newTestHasher(t *testing.T) *argon2Hasher {
	t.Helper()

	hasher, err := newArgon2Hasher(testArgon2Params, nil)
	require.NoError(t, err)

	return hasher
}

func TestArgon2Hasher_HashAndVerify(t *testing.T) {
	hasher := newTestHasher(t)

	hash, err := hasher.Hash("StrongPass123!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))
	assert.NotContains(t, hash, "StrongPass123!")

	ok, err := hasher.Verify("StrongPass123!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("WrongPassword123!", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = hasher.Verify("", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2Hasher_FreshSaltPerCall(t *testing.T) {
	hasher := newTestHasher(t)

	first, err := hasher.Hash("same-secret")
	require.NoError(t, err)
	second, err := hasher.Hash("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	for _, h := range []string{first, second} {
		ok, err := hasher.Verify("same-secret", h)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestArgon2Hasher_VerifyMalformedHash(t *testing.T) {
	hasher := newTestHasher(t)

	malformed := []string{
		"invalid_hash",
		"",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0$a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5a2V5",
	}

	for _, encoded := range malformed {
		ok, err := hasher.Verify("secret", encoded)
		assert.Error(t, err, "expected error for %q", encoded)
		assert.False(t, ok)
	}
}

func TestArgon2Hasher_VerifyUsesStoredParameters(t *testing.T) {
	weaker := newTestHasher(t)
	hash, err := weaker.Hash("StrongPass123!")
	require.NoError(t, err)

	stronger, err := newArgon2Hasher(config.Argon2Config{
		Memory: 16 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	}, nil)
	require.NoError(t, err)

	ok, err := stronger.Verify("StrongPass123!", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewArgon2Hasher_RejectsWeakParameters(t *testing.T) {
	cases := []config.Argon2Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}

	for _, params := range cases {
		_, err := newArgon2Hasher(params, nil)
		assert.Error(t, err, "expected error for %+v", params)
	}
}

func TestNewArgon2Hasher_FallsBackToDefaults(t *testing.T) {
	hasher, err := NewArgon2Hasher(&config.Config{})
	require.NoError(t, err)

	concrete, ok := hasher.(*argon2Hasher)
	require.True(t, ok)
	assert.Equal(t, config.DefaultArgon2Config(), concrete.params)
}

func TestArgon2Hasher_ValidatePasswordStrength(t *testing.T) {
	hasher := newTestHasher(t)

	validPasswords := []string{
		"StrongPass123!",
		"MySecure@Pass1",
		"Complex#Secret9",
		"Pässphräse123!",
	}
	for _, password := range validPasswords {
		assert.NoError(t, hasher.ValidatePasswordStrength(password), "expected no error for %s", password)
	}

	testCases := []struct {
		password    string
		expectedErr string
		target      error
	}{
		{"123", "must be at least 8 characters long", domainerrors.ErrPasswordStrength},
		{"PASSWORD123!", "must contain at least one lowercase letter", domainerrors.ErrPasswordStrength},
		{"password123!", "must contain at least one uppercase letter", domainerrors.ErrPasswordStrength},
		{"PasswordABC!", "must contain at least one number", domainerrors.ErrPasswordStrength},
		{"Password123", "must contain at least one special character", domainerrors.ErrPasswordStrength},
		{"Password123!", "contains forbidden words", domainerrors.ErrPasswordForbiddenWords},
		{"MyAdmin123!", "contains forbidden words", domainerrors.ErrPasswordForbiddenWords},
		{"!@#$%^&*()", "must contain at least one lowercase letter", domainerrors.ErrPasswordStrength},
	}

	for _, tc := range testCases {
		err := hasher.ValidatePasswordStrength(tc.password)
		require.Error(t, err, "expected error for %s", tc.password)
		assert.Contains(t, err.Error(), tc.expectedErr)
		assert.True(t, errors.Is(err, tc.target))
	}
}

func TestArgon2Hasher_PasswordStrengthHelpers(t *testing.T) {
	hasher := &argon2Hasher{}

	assert.True(t, hasher.hasUppercase("Password"))
	assert.False(t, hasher.hasUppercase("password"))

	assert.True(t, hasher.hasLowercase("Password"))
	assert.False(t, hasher.hasLowercase("PASSWORD"))

	assert.True(t, hasher.hasNumbers("Password123"))
	assert.False(t, hasher.hasNumbers("Password"))

	assert.True(t, hasher.hasSpecialChars("Password!"))
	assert.False(t, hasher.hasSpecialChars("Password"))

	forbiddenWords := []string{"password", "admin"}
	assert.True(t, hasher.containsForbiddenWords("MyPassword123", forbiddenWords))
	assert.True(t, hasher.containsForbiddenWords("AdminUser", forbiddenWords))
	assert.False(t, hasher.containsForbiddenWords("SecurePass123", forbiddenWords))
}
