// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"

	"postboard/config"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/service"
	"postboard/internal/errors"
)

const (
	argon2AlgorithmID = "argon2id"

	minArgon2Memory     uint32 = 8 * 1024
	minArgon2SaltLength uint32 = 16
	minArgon2KeyLength  uint32 = 16
)

var (
	errInvalidPHC         = errors.New("invalid PHC format")
	errUnsupportedAlgo    = errors.New("unsupported hash algorithm")
	errUnsupportedVersion = errors.New("unsupported argon2 version")
)

// argon2Hasher is a concrete implementation of the PasswordHasher interface using argon2id.
type argon2Hasher struct {
	params   config.Argon2Config
	strength *config.PasswordStrengthConfig
}

// NewArgon2Hasher is the constructor for argon2Hasher.
// It returns the implementation as a service.PasswordHasher interface.
func NewArgon2Hasher(cfg *config.Config) (service.PasswordHasher, error) {
	params := config.DefaultArgon2Config()
	if cfg.Auth != nil && cfg.Auth.Argon2 != (config.Argon2Config{}) {
		params = cfg.Auth.Argon2
	}

	return newArgon2Hasher(params, cfg.PasswordStrength)
}

func newArgon2Hasher(params config.Argon2Config, strength *config.PasswordStrengthConfig) (*argon2Hasher, error) {
	switch {
	case params.Memory < minArgon2Memory:
		return nil, errors.Errorf("argon2 memory must be >= %d KiB", minArgon2Memory)
	case params.Time < 1:
		return nil, errors.New("argon2 time must be >= 1")
	case params.Parallelism < 1:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case params.SaltLength < minArgon2SaltLength:
		return nil, errors.Errorf("argon2 salt length must be >= %d", minArgon2SaltLength)
	case params.KeyLength < minArgon2KeyLength:
		return nil, errors.Errorf("argon2 key length must be >= %d", minArgon2KeyLength)
	}

	if strength == nil {
		strength = defaultPasswordStrength()
	}

	return &argon2Hasher{params: params, strength: strength}, nil
}

// Hash derives an argon2id key under a fresh random salt and encodes it in PHC form.
func (h *argon2Hasher) Hash(secret string) (string, error) {
	salt, err := randomBytes(int(h.params.SaltLength))
	if err != nil {
		return "", errors.Wrap(err, "generate salt")
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2AlgorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters stored in the hash and compares in constant time.
func (h *argon2Hasher) Verify(secret, encoded string) (bool, error) {
	phc, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(secret), phc.salt, phc.time, phc.memory, phc.parallelism, uint32(len(phc.key)))

	return subtle.ConstantTimeCompare(key, phc.key) == 1, nil
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errInvalidPHC
	}
	if parts[1] != argon2AlgorithmID {
		return nil, errUnsupportedAlgo
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, errors.Wrap(errInvalidPHC, "version")
	}
	if version != argon2.Version {
		return nil, errUnsupportedVersion
	}

	phc := &phcHash{}
	for _, pair := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.Wrap(errInvalidPHC, "parameter")
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil || n == 0 {
			return nil, errors.Wrapf(errInvalidPHC, "parameter %s", name)
		}
		switch name {
		case "m":
			phc.memory = uint32(n)
		case "t":
			phc.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, errors.Wrap(errInvalidPHC, "parameter p")
			}
			phc.parallelism = uint8(n)
		default:
			return nil, errors.Wrapf(errInvalidPHC, "unknown parameter %s", name)
		}
	}
	if phc.memory == 0 || phc.time == 0 || phc.parallelism == 0 {
		return nil, errors.Wrap(errInvalidPHC, "missing parameters")
	}

	var err error
	if phc.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(phc.salt) == 0 {
		return nil, errors.Wrap(errInvalidPHC, "salt")
	}
	if phc.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(phc.key) == 0 {
		return nil, errors.Wrap(errInvalidPHC, "key")
	}

	return phc, nil
}

func defaultPasswordStrength() *config.PasswordStrengthConfig {
	return &config.PasswordStrengthConfig{
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
		RequireSpecial:   true,
		ForbiddenWords:   []string{"password", "admin", "qwerty", "123456"},
	}
}

// ValidatePasswordStrength applies the configured password rules.
func (h *argon2Hasher) ValidatePasswordStrength(password string) error {
	rules := h.strength
	length := len([]rune(password))

	if length < rules.MinLength {
		return errors.Wrapf(domainerrors.ErrPasswordStrength, "must be at least %d characters long", rules.MinLength)
	}
	if rules.MaxLength > 0 && length > rules.MaxLength {
		return errors.Wrapf(domainerrors.ErrPasswordStrength, "must be at most %d characters long", rules.MaxLength)
	}
	if rules.RequireLowercase && !h.hasLowercase(password) {
		return errors.Wrap(domainerrors.ErrPasswordStrength, "must contain at least one lowercase letter")
	}
	if rules.RequireUppercase && !h.hasUppercase(password) {
		return errors.Wrap(domainerrors.ErrPasswordStrength, "must contain at least one uppercase letter")
	}
	if rules.RequireNumbers && !h.hasNumbers(password) {
		return errors.Wrap(domainerrors.ErrPasswordStrength, "must contain at least one number")
	}
	if rules.RequireSpecial && !h.hasSpecialChars(password) {
		return errors.Wrap(domainerrors.ErrPasswordStrength, "must contain at least one special character")
	}
	if h.containsForbiddenWords(password, rules.ForbiddenWords) {
		return errors.Wrap(domainerrors.ErrPasswordForbiddenWords, "contains forbidden words")
	}

	return nil
}

func (h *argon2Hasher) hasUppercase(s string) bool {
	return strings.IndexFunc(s, unicode.IsUpper) >= 0
}

func (h *argon2Hasher) hasLowercase(s string) bool {
	return strings.IndexFunc(s, unicode.IsLower) >= 0
}

func (h *argon2Hasher) hasNumbers(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func (h *argon2Hasher) hasSpecialChars(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}) >= 0
}

func (h *argon2Hasher) containsForbiddenWords(s string, words []string) bool {
	lower := strings.ToLower(s)
	for _, word := range words {
		if word != "" && strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}

	return false
}
