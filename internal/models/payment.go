package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction представляет escrow транзакцию, привязанную к заявке.
// У заявки в каждый момент есть не более одной незакрытой транзакции;
// статус меняется только координатором платежей и только монотонно.
type Transaction struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	JobID             uuid.UUID  `db:"job_id" json:"job_id"`
	PayerID           uuid.UUID  `db:"payer_id" json:"payer_id"`
	PayeeID           *uuid.UUID `db:"payee_id" json:"payee_id,omitempty"`
	Amount            float64    `db:"amount" json:"amount"`
	Tip               float64    `db:"tip" json:"tip"`
	Commission        float64    `db:"commission" json:"commission"`
	PosterFee         float64    `db:"poster_fee" json:"poster_fee"`
	TotalPaidByPoster float64    `db:"total_paid_by_poster" json:"total_paid_by_poster"`
	PayoutToInstaller float64    `db:"payout_to_installer" json:"payout_to_installer"`
	Status            string     `db:"status" json:"status"`
	GatewayOrderID    string     `db:"gateway_order_id" json:"gateway_order_id"`
	GatewaySessionID  *string    `db:"gateway_session_id" json:"-"`
	PayoutTransferID  *string    `db:"payout_transfer_id" json:"payout_transfer_id,omitempty"`
	RefundTransferID  *string    `db:"refund_transfer_id" json:"refund_transfer_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	FundedAt          *time.Time `db:"funded_at" json:"funded_at,omitempty"`
	ReleasedAt        *time.Time `db:"released_at" json:"released_at,omitempty"`
	RefundedAt        *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`
}

// IsLive сообщает, держит ли транзакция средства или ожидает их.
func (t *Transaction) IsLive() bool {
	switch t.Status {
	case TransactionStatusInitiated, TransactionStatusFunded, TransactionStatusDisputed:
		return true
	}
	return false
}

// IsSettled сообщает, закрыта ли транзакция безвозвратно.
func (t *Transaction) IsSettled() bool {
	return t.Status == TransactionStatusReleased || t.Status == TransactionStatusRefunded
}
