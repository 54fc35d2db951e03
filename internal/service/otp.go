package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// generateOtp выдаёт шестизначный код подтверждения.
// Код отдаётся только стороне, которая должна его сообщить устно.
func generateOtp() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
