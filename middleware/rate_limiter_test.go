package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestLimiterSettingsDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("RATE_LIMIT_BURST", "")

	rps, burst := limiterSettings()
	assert.Equal(t, rate.Limit(defaultRequestsPerSecond), rps)
	assert.Equal(t, defaultBurst, burst)
}

func TestLimiterSettingsFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "10")

	rps, burst := limiterSettings()
	assert.Equal(t, rate.Limit(2.5), rps)
	assert.Equal(t, 10, burst)
}

func TestLimiterSettingsIgnoresInvalidValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")
	t.Setenv("RATE_LIMIT_BURST", "-3")

	rps, burst := limiterSettings()
	assert.Equal(t, rate.Limit(defaultRequestsPerSecond), rps)
	assert.Equal(t, defaultBurst, burst)
}
