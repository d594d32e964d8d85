package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceReady(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		service string
		want    bool
	}{
		{
			name:    "auth ready with secret",
			cfg:     Config{JWTSecret: "s3cret"},
			service: ServiceAuth,
			want:    true,
		},
		{
			name:    "auth not ready without secret",
			cfg:     Config{},
			service: ServiceAuth,
			want:    false,
		},
		{
			name:    "paystack ready",
			cfg:     Config{PaystackSecretKey: "sk_test_x"},
			service: ServicePaystack,
			want:    true,
		},
		{
			name: "momo needs api key, user and a subscription key",
			cfg: Config{
				MomoAPIKey:                    "k",
				MomoUserID:                    "u",
				MomoSubscriptionKeyCollection: "sub",
			},
			service: ServiceMomo,
			want:    true,
		},
		{
			name: "momo missing subscription keys",
			cfg: Config{
				MomoAPIKey: "k",
				MomoUserID: "u",
			},
			service: ServiceMomo,
			want:    false,
		},
		{
			name:    "exchange needs api url",
			cfg:     Config{ExchangeRateAPIURL: "https://api.exchangerate.host"},
			service: ServiceExchange,
			want:    true,
		},
		{
			name:    "unknown service is never ready",
			cfg:     Config{JWTSecret: "x"},
			service: "telex",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.ServiceReady(tt.service))
		})
	}
}

func TestGetEnvDefaults(t *testing.T) {
	t.Setenv("CFG_TEST_PRESENT", "value")
	t.Setenv("CFG_TEST_EMPTY", "")

	assert.Equal(t, "value", GetEnv("CFG_TEST_PRESENT", "fallback"))
	assert.Equal(t, "fallback", GetEnv("CFG_TEST_EMPTY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("CFG_TEST_MISSING", "fallback"))
}

func TestGetDecimalEnv(t *testing.T) {
	t.Setenv("CFG_TEST_PCT", "0.015")
	t.Setenv("CFG_TEST_BAD", "one percent")

	assert.Equal(t, "0.015", GetDecimalEnv("CFG_TEST_PCT", "0.01").String())
	assert.Equal(t, "0.01", GetDecimalEnv("CFG_TEST_BAD", "0.01").String())
}
