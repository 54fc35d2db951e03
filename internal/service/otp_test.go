package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/installmarket/installmarket-backend/internal/validation"
)

func TestGenerateOtp_Format(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := generateOtp()
		assert.NoError(t, err)
		assert.Len(t, code, 6)
		assert.NoError(t, validation.ValidateOtp(code))
		seen[code] = struct{}{}
	}
	// Сто подряд одинаковых кодов означали бы сломанный генератор.
	assert.Greater(t, len(seen), 1)
}
