package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute — спор по заявке. На момент создания фиксируется снимок
// названия заявки и идентификаторов сторон, чтобы спор оставался
// разрешимым даже после изменения самой заявки.
type Dispute struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	JobID        *uuid.UUID `db:"job_id" json:"job_id,omitempty"`
	RequesterID  uuid.UUID  `db:"requester_id" json:"requester_id"`
	Reason       string     `db:"reason" json:"reason"`
	Status       string     `db:"status" json:"status"`
	Resolution   *string    `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy   *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	JobTitle     *string    `db:"job_title" json:"job_title,omitempty"`
	PosterID     *uuid.UUID `db:"poster_id" json:"poster_id,omitempty"`
	InstallerID  *uuid.UUID `db:"installer_id" json:"installer_id,omitempty"`
	RefundAmount *float64   `db:"refund_amount" json:"refund_amount,omitempty"`
	PayoutAmount *float64   `db:"payout_amount" json:"payout_amount,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsParty проверяет, является ли пользователь стороной спора.
func (d *Dispute) IsParty(userID uuid.UUID) bool {
	if d.RequesterID == userID {
		return true
	}
	if d.PosterID != nil && *d.PosterID == userID {
		return true
	}
	if d.InstallerID != nil && *d.InstallerID == userID {
		return true
	}
	return false
}

// DisputeMessage — сообщение в треде спора. Тред только пополняется.
type DisputeMessage struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DisputeID  uuid.UUID `db:"dispute_id" json:"dispute_id"`
	AuthorID   uuid.UUID `db:"author_id" json:"author_id"`
	AuthorRole string    `db:"author_role" json:"author_role"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
