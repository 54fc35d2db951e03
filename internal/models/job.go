package models

import (
	"time"

	"github.com/google/uuid"
)

// Job описывает заявку на монтажные работы — центральный агрегат системы.
// Поле Status меняется только через таблицу переходов (см. constants.go),
// одноразовые коды очищаются при использовании и наружу не отдаются.
type Job struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	PosterID            uuid.UUID  `db:"poster_id" json:"poster_id"`
	AwardedInstallerID  *uuid.UUID `db:"awarded_installer_id" json:"awarded_installer_id,omitempty"`
	Title               string     `db:"title" json:"title"`
	Description         string     `db:"description" json:"description"`
	Category            string     `db:"category" json:"category"`
	Location            string     `db:"location" json:"location"`
	PriceMin            *float64   `db:"price_min" json:"price_min,omitempty"`
	PriceMax            *float64   `db:"price_max" json:"price_max,omitempty"`
	Tip                 float64    `db:"tip" json:"tip"`
	GstInvoiceRequired  bool       `db:"gst_invoice_required" json:"gst_invoice_required"`
	Status              string     `db:"status" json:"status"`
	PostedAt            *time.Time `db:"posted_at" json:"posted_at,omitempty"`
	Deadline            time.Time  `db:"deadline" json:"deadline"`
	JobStartDate        *time.Time `db:"job_start_date" json:"job_start_date,omitempty"`
	AcceptanceDeadline  *time.Time `db:"acceptance_deadline" json:"acceptance_deadline,omitempty"`
	FundingDeadline     *time.Time `db:"funding_deadline" json:"funding_deadline,omitempty"`
	WorkStartedAt       *time.Time `db:"work_started_at" json:"work_started_at,omitempty"`
	WorkSubmittedAt     *time.Time `db:"work_submitted_at" json:"work_submitted_at,omitempty"`
	CompletionTimestamp *time.Time `db:"completion_timestamp" json:"completion_timestamp,omitempty"`
	StartOtp            *string    `db:"start_otp" json:"-"`
	CompletionOtp       *string    `db:"completion_otp" json:"-"`

	// Предложение о переносе даты начала работ. Не влияет на Status.
	RescheduleNewDate    *time.Time `db:"reschedule_new_date" json:"reschedule_new_date,omitempty"`
	RescheduleProposedBy *string    `db:"reschedule_proposed_by" json:"reschedule_proposed_by,omitempty"`
	RescheduleStatus     *string    `db:"reschedule_status" json:"reschedule_status,omitempty"`

	CancellationReason   *string  `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancellationProposer *string  `db:"cancellation_proposer" json:"cancellation_proposer,omitempty"`
	InvoiceNumber        *string  `db:"invoice_number" json:"invoice_number,omitempty"`
	InvoiceTotal         *float64 `db:"invoice_total" json:"invoice_total,omitempty"`

	Archived  bool      `db:"archived" json:"archived"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Bids []Bid `db:"-" json:"bids,omitempty"`
}

// IsOwnedBy проверяет, принадлежит ли заявка заказчику.
func (j *Job) IsOwnedBy(userID uuid.UUID) bool {
	return j.PosterID == userID
}

// IsAwardedTo проверяет, назначен ли исполнитель на заявку.
func (j *Job) IsAwardedTo(userID uuid.UUID) bool {
	return j.AwardedInstallerID != nil && *j.AwardedInstallerID == userID
}

// IsParticipant проверяет, участвует ли пользователь в заявке.
func (j *Job) IsParticipant(userID uuid.UUID) bool {
	return j.IsOwnedBy(userID) || j.IsAwardedTo(userID)
}

// JobStatusHistory — неизменяемая запись о переходе статуса заявки.
// Записи только добавляются, существующие никогда не правятся.
type JobStatusHistory struct {
	ID        uuid.UUID `db:"id" json:"id"`
	JobID     uuid.UUID `db:"job_id" json:"job_id"`
	OldStatus string    `db:"old_status" json:"old_status"`
	NewStatus string    `db:"new_status" json:"new_status"`
	ChangedBy uuid.UUID `db:"changed_by" json:"changed_by"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	Forced    bool      `db:"forced" json:"forced"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
