package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/installmarket/installmarket-backend/internal/models"
)

// MediaRepository отвечает за метаданные загруженных файлов.
type MediaRepository struct {
	db *sqlx.DB
}

// Ошибки уровня репозитория.
var (
	ErrMediaNotFound = errors.New("media file not found")
)

// NewMediaRepository создаёт новый экземпляр.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create сохраняет метаданные файла.
func (r *MediaRepository) Create(ctx context.Context, m *models.MediaFile) error {
	query := `
		INSERT INTO media_files (id, job_id, user_id, file_path, file_type, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := r.db.QueryRowxContext(ctx, query, m.ID, m.JobID, m.UserID, m.FilePath, m.FileType, m.FileSize).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("media repository: create %w", err)
	}
	return nil
}

// GetByID возвращает метаданные файла.
func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	var m models.MediaFile
	query := `
		SELECT id, job_id, user_id, file_path, file_type, file_size, created_at
		FROM media_files
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("media repository: get by id %w", err)
	}
	return &m, nil
}

// ListByJob возвращает файлы, приложенные к заявке.
func (r *MediaRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.MediaFile, error) {
	files := []models.MediaFile{}
	query := `
		SELECT id, job_id, user_id, file_path, file_type, file_size, created_at
		FROM media_files
		WHERE job_id = $1
		ORDER BY created_at ASC
	`
	if err := r.db.SelectContext(ctx, &files, query, jobID); err != nil {
		return nil, fmt.Errorf("media repository: list by job %w", err)
	}
	return files, nil
}
