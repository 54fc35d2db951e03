package dto

import (
	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/service"
)

// AuthResponse represents the result of registration, login or refresh
type AuthResponse struct {
	User   *models.User       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

// NewAuthResponse creates an AuthResponse from a service result
func NewAuthResponse(res *service.AuthResult) *AuthResponse {
	return &AuthResponse{User: res.User, Tokens: res.TokenPair}
}

// JobResponse represents a job together with its work proofs
type JobResponse struct {
	*models.Job
	Media []models.MediaFile `json:"media,omitempty"`
}

// DisputeResponse represents a dispute with its message thread
type DisputeResponse struct {
	*models.Dispute
	Messages []models.DisputeMessage `json:"messages"`
}

// OtpResponse exposes the confirmation codes to the job poster
// Коды видит только заказчик: монтажнику их сообщают устно на объекте.
type OtpResponse struct {
	StartOtp      *string `json:"start_otp,omitempty"`
	CompletionOtp *string `json:"completion_otp,omitempty"`
}
