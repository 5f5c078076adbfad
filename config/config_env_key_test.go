package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeEnvKey_FollowsYAMLCasing(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"master": map[string]any{"userName": "postboard"},
		},
		"redis": map[string]any{"keyPrefix": "postboard"},
		"auth": map[string]any{
			"accessSecret":         "",
			"refreshTokenTTL":      "7d",
			"refreshTokenStore":    "postgres",
			"revokeLineageOnReuse": false,
		},
		"cookie": map[string]any{
			"csrfHeader": "x-csrf-token",
			"sameSite":   "lax",
		},
	}

	tests := map[string]string{
		"POSTGRES_MASTER_USERNAME":  "postgres.master.userName",
		"REDIS_KEYPREFIX":           "redis.keyPrefix",
		"AUTH_ACCESSSECRET":         "auth.accessSecret",
		"AUTH_REFRESHTOKENTTL":      "auth.refreshTokenTTL",
		"AUTH_REFRESHTOKENSTORE":    "auth.refreshTokenStore",
		"AUTH_REVOKELINEAGEONREUSE": "auth.revokeLineageOnReuse",
		"COOKIE_CSRFHEADER":         "cookie.csrfHeader",
		"COOKIE_SAMESITE":           "cookie.sameSite",
		// Unknown keys fall back to lower-cased dotted paths.
		"TELEMETRY_OTLPENDPOINT": "telemetry.otlpendpoint",
	}

	for envKey, want := range tests {
		t.Run(envKey, func(t *testing.T) {
			assert.Equal(t, want, canonicalizeEnvKey(envKey, existing))
		})
	}
}
