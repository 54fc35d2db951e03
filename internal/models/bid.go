package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid представляет ставку исполнителя на заявку.
// Запись неизменяема после создания, кроме поля Status:
// его меняет реестр ставок при награждении или отзыве.
type Bid struct {
	ID          uuid.UUID `db:"id" json:"id"`
	JobID       uuid.UUID `db:"job_id" json:"job_id"`
	InstallerID uuid.UUID `db:"installer_id" json:"installer_id"`
	Amount      float64   `db:"amount" json:"amount"`
	CoverLetter *string   `db:"cover_letter" json:"cover_letter,omitempty"`
	ScopeItems  []string  `db:"-" json:"scope_items,omitempty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
