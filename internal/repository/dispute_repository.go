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

// DisputeRepository отвечает за споры и переписку по ним.
type DisputeRepository struct {
	db *sqlx.DB
}

// Ошибки уровня репозитория.
var (
	ErrDisputeNotFound = errors.New("dispute not found")
)

// NewDisputeRepository создаёт новый экземпляр.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

const disputeColumns = `
	id, job_id, requester_id, reason, status, resolution, resolved_by,
	job_title, poster_id, installer_id, refund_amount, payout_amount,
	created_at, resolved_at`

// Create сохраняет новый спор со снимком контекста заявки.
// Снимок нужен, чтобы карточка спора читалась даже после изменений заявки.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (id, job_id, requester_id, reason, status, job_title, poster_id, installer_id)
		VALUES ($1, $2, $3, $4, 'open', $5, $6, $7)
		RETURNING created_at
	`
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.db.QueryRowxContext(ctx, query,
		d.ID, d.JobID, d.RequesterID, d.Reason, d.JobTitle, d.PosterID, d.InstallerID,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: create %w", err)
	}
	d.Status = models.DisputeStatusOpen
	return nil
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	query := `SELECT` + disputeColumns + ` FROM disputes WHERE id = $1`
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &d, nil
}

// GetOpenByJob возвращает неразрешённый спор заявки, если есть.
func (r *DisputeRepository) GetOpenByJob(ctx context.Context, jobID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	query := `
		SELECT` + disputeColumns + `
		FROM disputes
		WHERE job_id = $1 AND status <> 'resolved'
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &d, query, jobID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get open by job %w", err)
	}
	return &d, nil
}

// List возвращает споры для административной очереди, старые первыми.
// Пустой статус означает все споры.
func (r *DisputeRepository) List(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error) {
	disputes := []models.Dispute{}
	query := `
		SELECT` + disputeColumns + `
		FROM disputes
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &disputes, query, status, limit, offset); err != nil {
		return nil, fmt.Errorf("dispute repository: list %w", err)
	}
	return disputes, nil
}

// ListByParty возвращает споры, где пользователь заявитель или сторона заявки.
func (r *DisputeRepository) ListByParty(ctx context.Context, userID uuid.UUID) ([]models.Dispute, error) {
	disputes := []models.Dispute{}
	query := `
		SELECT` + disputeColumns + `
		FROM disputes
		WHERE requester_id = $1 OR poster_id = $1 OR installer_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &disputes, query, userID); err != nil {
		return nil, fmt.Errorf("dispute repository: list by party %w", err)
	}
	return disputes, nil
}

// MarkUnderReview переводит спор в рассмотрение после первого ответа администратора.
func (r *DisputeRepository) MarkUnderReview(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE disputes SET status = 'under_review' WHERE id = $1 AND status = 'open'`
	if err := common.GuardedUpdate(ctx, r.db, query, id); err != nil {
		return fmt.Errorf("dispute repository: mark under review %w", err)
	}
	return nil
}

// Resolve фиксирует решение администратора. Условие на статус гарантирует,
// что спор разрешается ровно один раз.
func (r *DisputeRepository) Resolve(ctx context.Context, id, resolvedBy uuid.UUID, resolution models.DisputeResolution, refundAmount, payoutAmount *float64) error {
	query := `
		UPDATE disputes
		SET status = 'resolved', resolution = $2, resolved_by = $3,
		    refund_amount = $4, payout_amount = $5, resolved_at = NOW()
		WHERE id = $1 AND status <> 'resolved'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, id, resolution, resolvedBy, refundAmount, payoutAmount); err != nil {
		return fmt.Errorf("dispute repository: resolve %w", err)
	}
	return nil
}

// AddMessage добавляет сообщение в переписку спора.
func (r *DisputeRepository) AddMessage(ctx context.Context, m *models.DisputeMessage) error {
	query := `
		INSERT INTO dispute_messages (id, dispute_id, author_id, author_role, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := r.db.QueryRowxContext(ctx, query, m.ID, m.DisputeID, m.AuthorID, m.AuthorRole, m.Content).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: add message %w", err)
	}
	return nil
}

// ListMessages возвращает переписку спора в хронологическом порядке.
func (r *DisputeRepository) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	messages := []models.DisputeMessage{}
	query := `
		SELECT id, dispute_id, author_id, author_role, content, created_at
		FROM dispute_messages
		WHERE dispute_id = $1
		ORDER BY created_at ASC
	`
	if err := r.db.SelectContext(ctx, &messages, query, disputeID); err != nil {
		return nil, fmt.Errorf("dispute repository: list messages %w", err)
	}
	return messages, nil
}
