package services

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRedemptionCodeFormat(t *testing.T) {
	codePattern := regexp.MustCompile(`^ECO-[0-9A-F]{10}$`)

	for i := 0; i < 100; i++ {
		code, err := GenerateRedemptionCode()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
	}
}

func TestGenerateRedemptionCodeIsRandom(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := GenerateRedemptionCode()
		require.NoError(t, err)
		assert.False(t, seen[code], "duplicate code %s after %d draws", code, i)
		seen[code] = true
	}
}
