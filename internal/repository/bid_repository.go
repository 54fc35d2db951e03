package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/repository/common"
)

// BidRepository отвечает за отклики монтажников на заявки.
type BidRepository struct {
	db *sqlx.DB
}

// Ошибки уровня репозитория.
var (
	ErrBidNotFound  = errors.New("bid not found")
	ErrDuplicateBid = errors.New("duplicate active bid")
)

// NewBidRepository создаёт новый экземпляр.
func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Create сохраняет отклик. Уникальность активного отклика монтажника на заявку
// обеспечивает частичный индекс, нарушение переводим в ErrDuplicateBid.
func (r *BidRepository) Create(ctx context.Context, bid *models.Bid) error {
	query := `
		INSERT INTO bids (id, job_id, installer_id, amount, cover_letter, scope_items, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'active')
		RETURNING created_at, updated_at
	`
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	err := r.db.QueryRowxContext(ctx, query,
		bid.ID, bid.JobID, bid.InstallerID, bid.Amount, bid.CoverLetter, pq.Array(bid.ScopeItems),
	).Scan(&bid.CreatedAt, &bid.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateBid
		}
		return fmt.Errorf("bid repository: create %w", err)
	}
	bid.Status = models.BidStatusActive
	return nil
}

// GetByID возвращает отклик по идентификатору.
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	var scopeItems pq.StringArray
	query := `
		SELECT id, job_id, installer_id, amount, cover_letter, scope_items, status, created_at, updated_at
		FROM bids
		WHERE id = $1
	`
	row := r.db.QueryRowxContext(ctx, query, id)
	err := row.Scan(&bid.ID, &bid.JobID, &bid.InstallerID, &bid.Amount, &bid.CoverLetter, &scopeItems,
		&bid.Status, &bid.CreatedAt, &bid.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBidNotFound
		}
		return nil, fmt.Errorf("bid repository: get by id %w", err)
	}
	bid.ScopeItems = scopeItems
	return &bid, nil
}

// ListByJob возвращает отклики заявки, свежие первыми.
func (r *BidRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error) {
	query := `
		SELECT id, job_id, installer_id, amount, cover_letter, scope_items, status, created_at, updated_at
		FROM bids
		WHERE job_id = $1
		ORDER BY created_at DESC
	`
	return r.selectBids(ctx, query, jobID)
}

// ListByInstaller возвращает все отклики монтажника.
func (r *BidRepository) ListByInstaller(ctx context.Context, installerID uuid.UUID) ([]models.Bid, error) {
	query := `
		SELECT id, job_id, installer_id, amount, cover_letter, scope_items, status, created_at, updated_at
		FROM bids
		WHERE installer_id = $1
		ORDER BY created_at DESC
	`
	return r.selectBids(ctx, query, installerID)
}

func (r *BidRepository) selectBids(ctx context.Context, query string, arg interface{}) ([]models.Bid, error) {
	rows, err := r.db.QueryxContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("bid repository: select %w", err)
	}
	defer rows.Close()

	bids := []models.Bid{}
	for rows.Next() {
		var bid models.Bid
		var scopeItems pq.StringArray
		if err := rows.Scan(&bid.ID, &bid.JobID, &bid.InstallerID, &bid.Amount, &bid.CoverLetter, &scopeItems,
			&bid.Status, &bid.CreatedAt, &bid.UpdatedAt); err != nil {
			return nil, fmt.Errorf("bid repository: scan %w", err)
		}
		bid.ScopeItems = scopeItems
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bid repository: rows %w", err)
	}
	return bids, nil
}

// HasActiveBid проверяет, есть ли у монтажника активный отклик на заявку.
func (r *BidRepository) HasActiveBid(ctx context.Context, jobID, installerID uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bids WHERE job_id = $1 AND installer_id = $2 AND status = 'active'
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, jobID, installerID); err != nil {
		return false, fmt.Errorf("bid repository: has active bid %w", err)
	}
	return exists, nil
}

// GetAcceptedByJob возвращает принятый отклик заявки.
func (r *BidRepository) GetAcceptedByJob(ctx context.Context, jobID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	var scopeItems pq.StringArray
	query := `
		SELECT id, job_id, installer_id, amount, cover_letter, scope_items, status, created_at, updated_at
		FROM bids
		WHERE job_id = $1 AND status = 'accepted'
	`
	row := r.db.QueryRowxContext(ctx, query, jobID)
	err := row.Scan(&bid.ID, &bid.JobID, &bid.InstallerID, &bid.Amount, &bid.CoverLetter, &scopeItems,
		&bid.Status, &bid.CreatedAt, &bid.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBidNotFound
		}
		return nil, fmt.Errorf("bid repository: get accepted %w", err)
	}
	bid.ScopeItems = scopeItems
	return &bid, nil
}

// Withdraw отзывает активный отклик его автора.
func (r *BidRepository) Withdraw(ctx context.Context, bidID, installerID uuid.UUID) error {
	query := `
		UPDATE bids
		SET status = 'withdrawn', updated_at = NOW()
		WHERE id = $1 AND installer_id = $2 AND status = 'active'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, bidID, installerID); err != nil {
		return fmt.Errorf("bid repository: withdraw %w", err)
	}
	return nil
}

// MarkAccepted помечает отклик принятым.
func (r *BidRepository) MarkAccepted(ctx context.Context, bidID uuid.UUID) error {
	query := `
		UPDATE bids
		SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, bidID); err != nil {
		return fmt.Errorf("bid repository: mark accepted %w", err)
	}
	return nil
}

// RevertAccepted возвращает принятый отклик в активные: монтажник отказался
// от назначения или не подтвердил его в срок.
func (r *BidRepository) RevertAccepted(ctx context.Context, bidID uuid.UUID) error {
	query := `
		UPDATE bids
		SET status = 'active', updated_at = NOW()
		WHERE id = $1 AND status = 'accepted'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, bidID); err != nil {
		return fmt.Errorf("bid repository: revert accepted %w", err)
	}
	return nil
}

// RejectOthers помечает остальные активные отклики заявки отклонёнными.
func (r *BidRepository) RejectOthers(ctx context.Context, jobID, acceptedBidID uuid.UUID) error {
	query := `
		UPDATE bids
		SET status = 'rejected', updated_at = NOW()
		WHERE job_id = $1 AND id <> $2 AND status = 'active'
	`
	if _, err := r.db.ExecContext(ctx, query, jobID, acceptedBidID); err != nil {
		return fmt.Errorf("bid repository: reject others %w", err)
	}
	return nil
}
