package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/repository/common"
)

// PaymentRepository отвечает за эскроу-транзакции.
type PaymentRepository struct {
	db *sqlx.DB
}

// Ошибки уровня репозитория.
var (
	ErrTransactionNotFound = errors.New("transaction not found")
)

// NewPaymentRepository создаёт новый экземпляр.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const transactionColumns = `
	id, job_id, payer_id, payee_id, amount, tip, commission, poster_fee,
	total_paid_by_poster, payout_to_installer, status,
	gateway_order_id, gateway_session_id, payout_transfer_id, refund_transfer_id,
	created_at, funded_at, released_at, refunded_at`

// Create сохраняет новую транзакцию в статусе initiated.
func (r *PaymentRepository) Create(ctx context.Context, tr *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, job_id, payer_id, payee_id, amount, tip, commission, poster_fee,
			total_paid_by_poster, payout_to_installer, status, gateway_order_id, gateway_session_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'initiated', $11, $12)
		RETURNING created_at
	`
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	err := r.db.QueryRowxContext(ctx, query,
		tr.ID, tr.JobID, tr.PayerID, tr.PayeeID, tr.Amount, tr.Tip, tr.Commission, tr.PosterFee,
		tr.TotalPaidByPoster, tr.PayoutToInstaller, tr.GatewayOrderID, tr.GatewaySessionID,
	).Scan(&tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("payment repository: create %w", err)
	}
	tr.Status = models.TransactionStatusInitiated
	return nil
}

// GetByID возвращает транзакцию по идентификатору.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var tr models.Transaction
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE id = $1`
	if err := r.db.GetContext(ctx, &tr, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("payment repository: get by id %w", err)
	}
	return &tr, nil
}

// GetByOrderID возвращает транзакцию по идентификатору заказа в платёжном шлюзе.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	var tr models.Transaction
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE gateway_order_id = $1`
	if err := r.db.GetContext(ctx, &tr, query, orderID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("payment repository: get by order id %w", err)
	}
	return &tr, nil
}

// GetLiveByJob возвращает незавершённую транзакцию заявки, если есть.
// Живая транзакция у заявки может быть только одна.
func (r *PaymentRepository) GetLiveByJob(ctx context.Context, jobID uuid.UUID) (*models.Transaction, error) {
	var tr models.Transaction
	query := `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE job_id = $1 AND status IN ('initiated', 'funded', 'disputed')
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &tr, query, jobID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("payment repository: get live by job %w", err)
	}
	return &tr, nil
}

// GetLatestByJob возвращает последнюю транзакцию заявки независимо от статуса.
func (r *PaymentRepository) GetLatestByJob(ctx context.Context, jobID uuid.UUID) (*models.Transaction, error) {
	var tr models.Transaction
	query := `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE job_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &tr, query, jobID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("payment repository: get latest by job %w", err)
	}
	return &tr, nil
}

// ListByUser возвращает транзакции, где пользователь плательщик или получатель.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	query := `
		SELECT` + transactionColumns + `
		FROM transactions
		WHERE payer_id = $1 OR payee_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &transactions, query, userID); err != nil {
		return nil, fmt.Errorf("payment repository: list by user %w", err)
	}
	return transactions, nil
}

// SetSessionID сохраняет идентификатор платёжной сессии шлюза.
func (r *PaymentRepository) SetSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	query := `UPDATE transactions SET gateway_session_id = $2 WHERE id = $1 AND status = 'initiated'`
	if err := common.GuardedUpdate(ctx, r.db, query, id, sessionID); err != nil {
		return fmt.Errorf("payment repository: set session id %w", err)
	}
	return nil
}

// MarkFunded подтверждает зачисление средств в эскроу.
func (r *PaymentRepository) MarkFunded(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE transactions
		SET status = 'funded', funded_at = NOW()
		WHERE id = $1 AND status = 'initiated'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, id); err != nil {
		return fmt.Errorf("payment repository: mark funded %w", err)
	}
	return nil
}

// ClaimRelease захватывает транзакцию под выплату монтажнику. Условное
// обновление гарантирует, что выплату выполнит ровно один вызов: повторный
// получит common.ErrStateMismatch ещё до обращения к шлюзу.
func (r *PaymentRepository) ClaimRelease(ctx context.Context, id uuid.UUID, transferID string) error {
	query := `
		UPDATE transactions
		SET status = 'released', payout_transfer_id = $2, released_at = NOW()
		WHERE id = $1 AND status = 'funded'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, id, transferID); err != nil {
		return fmt.Errorf("payment repository: claim release %w", err)
	}
	return nil
}

// RevertRelease откатывает захват выплаты после ошибки шлюза.
func (r *PaymentRepository) RevertRelease(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE transactions
		SET status = 'funded', payout_transfer_id = NULL, released_at = NULL
		WHERE id = $1 AND status = 'released'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, id); err != nil {
		return fmt.Errorf("payment repository: revert release %w", err)
	}
	return nil
}

// ClaimRefund захватывает транзакцию под возврат заказчику.
func (r *PaymentRepository) ClaimRefund(ctx context.Context, id uuid.UUID, transferID string) error {
	query := `
		UPDATE transactions
		SET status = 'refunded', refund_transfer_id = $2, refunded_at = NOW()
		WHERE id = $1 AND status = 'funded'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, id, transferID); err != nil {
		return fmt.Errorf("payment repository: claim refund %w", err)
	}
	return nil
}

// RevertRefund откатывает захват возврата после ошибки шлюза.
func (r *PaymentRepository) RevertRefund(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE transactions
		SET status = 'funded', refund_transfer_id = NULL, refunded_at = NULL
		WHERE id = $1 AND status = 'refunded'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, id); err != nil {
		return fmt.Errorf("payment repository: revert refund %w", err)
	}
	return nil
}

// ClaimSplit захватывает транзакцию под раздельное урегулирование спора.
// Итоговый статус released: выплата монтажнику считается основной операцией,
// остаток возвращается заказчику отдельным переводом шлюза.
func (r *PaymentRepository) ClaimSplit(ctx context.Context, id uuid.UUID, payoutTransferID, refundTransferID string) error {
	query := `
		UPDATE transactions
		SET status = 'released', payout_transfer_id = $2, refund_transfer_id = $3,
		    released_at = NOW(), refunded_at = NOW()
		WHERE id = $1 AND status = 'funded'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, id, payoutTransferID, refundTransferID); err != nil {
		return fmt.Errorf("payment repository: claim split %w", err)
	}
	return nil
}

// RevertSplit откатывает захват раздельного урегулирования.
func (r *PaymentRepository) RevertSplit(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE transactions
		SET status = 'funded', payout_transfer_id = NULL, refund_transfer_id = NULL,
		    released_at = NULL, refunded_at = NULL
		WHERE id = $1 AND status = 'released'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, id); err != nil {
		return fmt.Errorf("payment repository: revert split %w", err)
	}
	return nil
}

// Freeze замораживает оплаченную транзакцию на время спора.
func (r *PaymentRepository) Freeze(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE transactions SET status = 'disputed' WHERE id = $1 AND status = 'funded'`
	if err := common.GuardedUpdate(ctx, r.db, query, id); err != nil {
		return fmt.Errorf("payment repository: freeze %w", err)
	}
	return nil
}

// Unfreeze снимает заморозку перед урегулированием спора.
func (r *PaymentRepository) Unfreeze(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE transactions SET status = 'funded' WHERE id = $1 AND status = 'disputed'`
	if err := common.GuardedUpdate(ctx, r.db, query, id); err != nil {
		return fmt.Errorf("payment repository: unfreeze %w", err)
	}
	return nil
}

// MarkFailed помечает неоплаченную транзакцию несостоявшейся.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE transactions SET status = 'failed' WHERE id = $1 AND status = 'initiated'`
	if err := common.GuardedUpdate(ctx, r.db, query, id); err != nil {
		return fmt.Errorf("payment repository: mark failed %w", err)
	}
	return nil
}
