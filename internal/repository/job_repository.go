package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/repository/common"
)

// JobRepository отвечает за работу с заявками на монтаж и журналом переходов.
type JobRepository struct {
	db *sqlx.DB
}

// Ошибки уровня репозитория.
var (
	ErrJobNotFound = errors.New("job not found")
)

// NewJobRepository создаёт новый экземпляр.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
	id, poster_id, awarded_installer_id, title, description, category, location,
	price_min, price_max, tip, gst_invoice_required, status,
	posted_at, deadline, job_start_date, acceptance_deadline, funding_deadline,
	work_started_at, work_submitted_at, completion_timestamp,
	start_otp, completion_otp,
	reschedule_new_date, reschedule_proposed_by, reschedule_status,
	cancellation_reason, cancellation_proposer,
	invoice_number, invoice_total, archived,
	created_at, updated_at`

// Create сохраняет новую заявку. Если статус open, фиксируем момент публикации.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (
			id, poster_id, title, description, category, location,
			price_min, price_max, tip, gst_invoice_required, status,
			posted_at, deadline, job_start_date
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			CASE WHEN $11 = 'open' THEN NOW() ELSE NULL END, $12, $13
		)
		RETURNING posted_at, created_at, updated_at
	`
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	err := r.db.QueryRowxContext(ctx, query,
		job.ID, job.PosterID, job.Title, job.Description, job.Category, job.Location,
		job.PriceMin, job.PriceMax, job.Tip, job.GstInvoiceRequired, job.Status,
		job.Deadline, job.JobStartDate,
	).Scan(&job.PostedAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("job repository: create %w", err)
	}
	return nil
}

// GetByID возвращает заявку по идентификатору.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	query := `SELECT` + jobColumns + ` FROM jobs WHERE id = $1`
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: get by id %w", err)
	}
	return &job, nil
}

// ListOpen возвращает открытые неархивированные заявки, свежие первыми.
func (r *JobRepository) ListOpen(ctx context.Context, category string, limit, offset int) ([]models.Job, error) {
	jobs := []models.Job{}
	query := `
		SELECT` + jobColumns + `
		FROM jobs
		WHERE status = 'open' AND archived = FALSE
		  AND ($1 = '' OR category = $1)
		ORDER BY posted_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &jobs, query, category, limit, offset); err != nil {
		return nil, fmt.Errorf("job repository: list open %w", err)
	}
	return jobs, nil
}

// ListByPoster возвращает заявки заказчика. Архив отдаём только по явному запросу.
func (r *JobRepository) ListByPoster(ctx context.Context, posterID uuid.UUID, includeArchived bool) ([]models.Job, error) {
	jobs := []models.Job{}
	query := `
		SELECT` + jobColumns + `
		FROM jobs
		WHERE poster_id = $1 AND (archived = FALSE OR $2)
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &jobs, query, posterID, includeArchived); err != nil {
		return nil, fmt.Errorf("job repository: list by poster %w", err)
	}
	return jobs, nil
}

// ListByInstaller возвращает заявки, на которых монтажник выбран исполнителем.
func (r *JobRepository) ListByInstaller(ctx context.Context, installerID uuid.UUID) ([]models.Job, error) {
	jobs := []models.Job{}
	query := `
		SELECT` + jobColumns + `
		FROM jobs
		WHERE awarded_installer_id = $1
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &jobs, query, installerID); err != nil {
		return nil, fmt.Errorf("job repository: list by installer %w", err)
	}
	return jobs, nil
}

// History возвращает журнал переходов заявки в хронологическом порядке.
func (r *JobRepository) History(ctx context.Context, jobID uuid.UUID) ([]models.JobStatusHistory, error) {
	history := []models.JobStatusHistory{}
	query := `
		SELECT id, job_id, old_status, new_status, changed_by, reason, forced, created_at
		FROM job_status_history
		WHERE job_id = $1
		ORDER BY created_at ASC, id ASC
	`
	if err := r.db.SelectContext(ctx, &history, query, jobID); err != nil {
		return nil, fmt.Errorf("job repository: history %w", err)
	}
	return history, nil
}

// UpdateDetails обновляет редактируемые поля черновика или открытой заявки.
func (r *JobRepository) UpdateDetails(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE jobs
		SET title = $2, description = $3, category = $4, location = $5,
		    price_min = $6, price_max = $7, tip = $8, gst_invoice_required = $9,
		    deadline = $10, job_start_date = $11, updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'open')
	`
	err := common.GuardedUpdate(ctx, r.db, query,
		job.ID, job.Title, job.Description, job.Category, job.Location,
		job.PriceMin, job.PriceMax, job.Tip, job.GstInvoiceRequired,
		job.Deadline, job.JobStartDate,
	)
	if err != nil {
		return fmt.Errorf("job repository: update details %w", err)
	}
	return nil
}

// appendHistory добавляет запись в журнал переходов внутри текущей транзакции.
func appendHistory(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID, old, new models.JobStatus, changedBy uuid.UUID, reason *string, forced bool) error {
	query := `
		INSERT INTO job_status_history (job_id, old_status, new_status, changed_by, reason, forced)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, query, jobID, old, new, changedBy, reason, forced); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// transition выполняет условный переход статуса и пишет журнал одной транзакцией.
// Если строка не изменилась, значит заявка ушла из ожидаемого состояния —
// возвращаем common.ErrStateMismatch, вызывающий решает, как это трактовать.
func (r *JobRepository) transition(ctx context.Context, jobID uuid.UUID, from, to models.JobStatus, changedBy uuid.UUID, reason *string, set string, args ...interface{}) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := fmt.Sprintf(`
			UPDATE jobs
			SET status = $2, updated_at = NOW()%s
			WHERE id = $1 AND status = $3
		`, set)
		fullArgs := append([]interface{}{jobID, to, from}, args...)
		if err := common.GuardedUpdate(ctx, tx, query, fullArgs...); err != nil {
			return err
		}
		return appendHistory(ctx, tx, jobID, from, to, changedBy, reason, false)
	})
}

// Post публикует черновик.
func (r *JobRepository) Post(ctx context.Context, jobID, changedBy uuid.UUID) error {
	return r.transition(ctx, jobID, models.JobStatusDraft, models.JobStatusOpen, changedBy, nil,
		`, posted_at = NOW()`)
}

// Award закрепляет монтажника за заявкой после принятия его отклика заказчиком.
func (r *JobRepository) Award(ctx context.Context, jobID, installerID, changedBy uuid.UUID, acceptanceDeadline time.Time) error {
	return r.transition(ctx, jobID, models.JobStatusOpen, models.JobStatusBidAccepted, changedBy, nil,
		`, awarded_installer_id = $4, acceptance_deadline = $5`, installerID, acceptanceDeadline)
}

// RevertAward возвращает заявку в открытое состояние: исполнитель отказался
// или не подтвердил назначение в срок.
func (r *JobRepository) RevertAward(ctx context.Context, jobID, changedBy uuid.UUID, reason *string) error {
	return r.transition(ctx, jobID, models.JobStatusBidAccepted, models.JobStatusOpen, changedBy, reason,
		`, awarded_installer_id = NULL, acceptance_deadline = NULL`)
}

// AcceptAssignment подтверждает назначение со стороны монтажника и открывает
// окно оплаты для заказчика.
func (r *JobRepository) AcceptAssignment(ctx context.Context, jobID, installerID, changedBy uuid.UUID, fundingDeadline time.Time) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE jobs
			SET status = 'pending_funding', acceptance_deadline = NULL, funding_deadline = $3, updated_at = NOW()
			WHERE id = $1 AND status = 'bid_accepted' AND awarded_installer_id = $2
		`
		if err := common.GuardedUpdate(ctx, tx, query, jobID, installerID, fundingDeadline); err != nil {
			return err
		}
		return appendHistory(ctx, tx, jobID, models.JobStatusBidAccepted, models.JobStatusPendingFunding, changedBy, nil, false)
	})
}

// SetOtps записывает коды подтверждения начала и завершения работ.
// Коды выдаются один раз при оплате, поэтому пишем их только в pending_funding.
func (r *JobRepository) SetOtps(ctx context.Context, jobID uuid.UUID, startOtp, completionOtp string) error {
	query := `
		UPDATE jobs
		SET start_otp = $2, completion_otp = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_funding'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, jobID, startOtp, completionOtp); err != nil {
		return fmt.Errorf("job repository: set otps %w", err)
	}
	return nil
}

// MarkFunded переводит заявку в оплаченное состояние после подтверждения платежа.
func (r *JobRepository) MarkFunded(ctx context.Context, jobID, changedBy uuid.UUID) error {
	return r.transition(ctx, jobID, models.JobStatusPendingFunding, models.JobStatusFunded, changedBy, nil,
		`, funding_deadline = NULL`)
}

// StartWork начинает работы: код начала сверяется прямо в условии обновления
// и сбрасывается, повторное использование невозможно.
func (r *JobRepository) StartWork(ctx context.Context, jobID, installerID, changedBy uuid.UUID, startOtp string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE jobs
			SET status = 'in_progress', start_otp = NULL, work_started_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = 'funded' AND awarded_installer_id = $2 AND start_otp = $3
		`
		if err := common.GuardedUpdate(ctx, tx, query, jobID, installerID, startOtp); err != nil {
			return err
		}
		return appendHistory(ctx, tx, jobID, models.JobStatusFunded, models.JobStatusInProgress, changedBy, nil, false)
	})
}

// SubmitWork отмечает работы как сданные монтажником.
func (r *JobRepository) SubmitWork(ctx context.Context, jobID, installerID, changedBy uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE jobs
			SET status = 'work_submitted', work_submitted_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = 'in_progress' AND awarded_installer_id = $2
		`
		if err := common.GuardedUpdate(ctx, tx, query, jobID, installerID); err != nil {
			return err
		}
		return appendHistory(ctx, tx, jobID, models.JobStatusInProgress, models.JobStatusWorkSubmitted, changedBy, nil, false)
	})
}

// ReturnWork возвращает сданную работу на доработку.
func (r *JobRepository) ReturnWork(ctx context.Context, jobID, changedBy uuid.UUID, reason *string) error {
	return r.transition(ctx, jobID, models.JobStatusWorkSubmitted, models.JobStatusInProgress, changedBy, reason,
		`, work_submitted_at = NULL`)
}

// CompleteWithOtp завершает заявку по коду завершения, который вводит монтажник.
// Код сверяется в условии и сбрасывается вместе с переходом.
func (r *JobRepository) CompleteWithOtp(ctx context.Context, jobID, installerID, changedBy uuid.UUID, completionOtp, invoiceNumber string, invoiceTotal float64) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE jobs
			SET status = 'completed', completion_otp = NULL, completion_timestamp = NOW(),
			    invoice_number = $4, invoice_total = $5, updated_at = NOW()
			WHERE id = $1 AND status = 'work_submitted' AND awarded_installer_id = $2 AND completion_otp = $3
		`
		if err := common.GuardedUpdate(ctx, tx, query, jobID, installerID, completionOtp, invoiceNumber, invoiceTotal); err != nil {
			return err
		}
		return appendHistory(ctx, tx, jobID, models.JobStatusWorkSubmitted, models.JobStatusCompleted, changedBy, nil, false)
	})
}

// Approve завершает заявку со стороны заказчика без кода завершения.
func (r *JobRepository) Approve(ctx context.Context, jobID, changedBy uuid.UUID, invoiceNumber string, invoiceTotal float64) error {
	return r.transition(ctx, jobID, models.JobStatusWorkSubmitted, models.JobStatusCompleted, changedBy, nil,
		`, completion_otp = NULL, completion_timestamp = NOW(), invoice_number = $4, invoice_total = $5`,
		invoiceNumber, invoiceTotal)
}

// Cancel отменяет заявку из указанного состояния с фиксацией причины и инициатора.
func (r *JobRepository) Cancel(ctx context.Context, jobID, changedBy uuid.UUID, from models.JobStatus, reason string, proposer string) error {
	return r.transition(ctx, jobID, from, models.JobStatusCancelled, changedBy, &reason,
		`, cancellation_reason = $4, cancellation_proposer = $5`, reason, proposer)
}

// CloseUnbid закрывает открытую заявку, не собравшую откликов к дедлайну.
func (r *JobRepository) CloseUnbid(ctx context.Context, jobID, changedBy uuid.UUID) error {
	return r.transition(ctx, jobID, models.JobStatusOpen, models.JobStatusUnbid, changedBy, nil, ``)
}

// Promote повторно публикует закрытую заявку с новым дедлайном и надбавкой.
func (r *JobRepository) Promote(ctx context.Context, jobID, changedBy uuid.UUID, tip float64, deadline time.Time) error {
	return r.transition(ctx, jobID, models.JobStatusUnbid, models.JobStatusOpen, changedBy, nil,
		`, tip = $4, deadline = $5, posted_at = NOW()`, tip, deadline)
}

// Dispute замораживает заявку спором.
func (r *JobRepository) Dispute(ctx context.Context, jobID, changedBy uuid.UUID, from models.JobStatus, reason *string) error {
	return r.transition(ctx, jobID, from, models.JobStatusDisputed, changedBy, reason, ``)
}

// ForceStatus выставляет статус в обход таблицы переходов. Только для
// административного разрешения споров, переход помечается в журнале.
func (r *JobRepository) ForceStatus(ctx context.Context, jobID, changedBy uuid.UUID, to models.JobStatus, reason *string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var current models.JobStatus
		if err := tx.GetContext(ctx, &current, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID); err != nil {
			if err == sql.ErrNoRows {
				return ErrJobNotFound
			}
			return fmt.Errorf("force status: lock %w", err)
		}
		query := `UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, jobID, to); err != nil {
			return fmt.Errorf("force status: update %w", err)
		}
		return appendHistory(ctx, tx, jobID, current, to, changedBy, reason, true)
	})
}

// ProposeReschedule открывает предложение о переносе даты начала работ.
// Новое предложение перезаписывает ещё не отвеченное.
func (r *JobRepository) ProposeReschedule(ctx context.Context, jobID uuid.UUID, newDate time.Time, proposedBy string) error {
	query := `
		UPDATE jobs
		SET reschedule_new_date = $2, reschedule_proposed_by = $3, reschedule_status = 'pending', updated_at = NOW()
		WHERE id = $1 AND status IN ('bid_accepted', 'pending_funding', 'funded')
	`
	if err := common.GuardedUpdate(ctx, r.db, query, jobID, newDate, proposedBy); err != nil {
		return fmt.Errorf("job repository: propose reschedule %w", err)
	}
	return nil
}

// DismissReschedule снимает предложение: поля переноса очищаются целиком.
func (r *JobRepository) DismissReschedule(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE jobs
		SET reschedule_new_date = NULL, reschedule_proposed_by = NULL, reschedule_status = NULL, updated_at = NOW()
		WHERE id = $1 AND reschedule_status = 'pending'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, jobID); err != nil {
		return fmt.Errorf("job repository: dismiss reschedule %w", err)
	}
	return nil
}

// AcceptReschedule принимает перенос: новая дата становится датой начала работ.
func (r *JobRepository) AcceptReschedule(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE jobs
		SET job_start_date = reschedule_new_date, reschedule_status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND reschedule_status = 'pending'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, jobID); err != nil {
		return fmt.Errorf("job repository: accept reschedule %w", err)
	}
	return nil
}

// RejectReschedule отклоняет перенос, дата начала работ не меняется.
func (r *JobRepository) RejectReschedule(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE jobs
		SET reschedule_status = 'rejected', updated_at = NOW()
		WHERE id = $1 AND reschedule_status = 'pending'
	`
	if err := common.GuardedUpdate(ctx, r.db, query, jobID); err != nil {
		return fmt.Errorf("job repository: reject reschedule %w", err)
	}
	return nil
}

// Archive скрывает завершённую или отменённую заявку из списков заказчика.
func (r *JobRepository) Archive(ctx context.Context, jobID, posterID uuid.UUID) error {
	query := `
		UPDATE jobs
		SET archived = TRUE, updated_at = NOW()
		WHERE id = $1 AND poster_id = $2 AND status IN ('completed', 'cancelled', 'unbid')
	`
	if err := common.GuardedUpdate(ctx, r.db, query, jobID, posterID); err != nil {
		return fmt.Errorf("job repository: archive %w", err)
	}
	return nil
}

// ListExpiredFunding возвращает заявки с истёкшим сроком оплаты.
func (r *JobRepository) ListExpiredFunding(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	jobs := []models.Job{}
	query := `
		SELECT` + jobColumns + `
		FROM jobs
		WHERE status = 'pending_funding' AND funding_deadline IS NOT NULL AND funding_deadline < $1
		ORDER BY funding_deadline ASC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &jobs, query, now, limit); err != nil {
		return nil, fmt.Errorf("job repository: list expired funding %w", err)
	}
	return jobs, nil
}

// ListExpiredAcceptance возвращает заявки, где монтажник не подтвердил назначение в срок.
func (r *JobRepository) ListExpiredAcceptance(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	jobs := []models.Job{}
	query := `
		SELECT` + jobColumns + `
		FROM jobs
		WHERE status = 'bid_accepted' AND acceptance_deadline IS NOT NULL AND acceptance_deadline < $1
		ORDER BY acceptance_deadline ASC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &jobs, query, now, limit); err != nil {
		return nil, fmt.Errorf("job repository: list expired acceptance %w", err)
	}
	return jobs, nil
}
