package dto

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest represents the request to register a user
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// LoginRequest represents the request to log in
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the request to refresh a token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateJobRequest represents the request to create a job
type CreateJobRequest struct {
	Title              string     `json:"title" binding:"required"`
	Description        string     `json:"description" binding:"required"`
	Category           string     `json:"category" binding:"required"`
	Location           string     `json:"location" binding:"required"`
	PriceMin           *float64   `json:"price_min"`
	PriceMax           *float64   `json:"price_max"`
	Tip                float64    `json:"tip"`
	GstInvoiceRequired bool       `json:"gst_invoice_required"`
	Deadline           time.Time  `json:"deadline" binding:"required"`
	JobStartDate       *time.Time `json:"job_start_date"`
	Draft              bool       `json:"draft"`
}

// PlaceBidRequest represents the request to place a bid
type PlaceBidRequest struct {
	Amount      float64  `json:"amount" binding:"required"`
	CoverLetter *string  `json:"cover_letter"`
	ScopeItems  []string `json:"scope_items"`
}

// OtpRequest represents a six digit confirmation code
type OtpRequest struct {
	Code string `json:"code" binding:"required"`
}

// ReasonRequest represents a free form reason
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PromoteJobRequest represents the request to repost an unbid job
type PromoteJobRequest struct {
	Tip      float64   `json:"tip"`
	Deadline time.Time `json:"deadline" binding:"required"`
}

// RescheduleRequest represents the request to move the job start date
type RescheduleRequest struct {
	NewDate time.Time `json:"new_date" binding:"required"`
}

// RescheduleResponseRequest represents the answer to a reschedule offer
type RescheduleResponseRequest struct {
	Accept bool `json:"accept"`
}

// OpenDisputeRequest represents a dispute with an optional job reference
type OpenDisputeRequest struct {
	JobID  *uuid.UUID `json:"job_id"`
	Reason string     `json:"reason" binding:"required"`
}

// DisputeMessageRequest represents a message in a dispute thread
type DisputeMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ResolveDisputeRequest represents the admin resolution of a dispute
type ResolveDisputeRequest struct {
	Resolution       string  `json:"resolution" binding:"required"`
	InstallerPercent float64 `json:"installer_percent"`
}
