package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/pkg/apperror"
	"github.com/installmarket/installmarket-backend/internal/repository"
	"github.com/installmarket/installmarket-backend/internal/storage"
)

// MediaStore описывает зависимости MediaService от слоя хранилища.
type MediaStore interface {
	Create(ctx context.Context, m *models.MediaFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.MediaFile, error)
}

// MediaJobStore — срез репозитория заявок, нужный медиафайлам.
type MediaJobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// MediaService управляет фото- и видеоподтверждениями выполненных работ.
type MediaService struct {
	media MediaStore
	jobs  MediaJobStore
	files *storage.MediaStorage
}

// NewMediaService создаёт сервис медиафайлов.
func NewMediaService(media MediaStore, jobs MediaJobStore, files *storage.MediaStorage) *MediaService {
	return &MediaService{media: media, jobs: jobs, files: files}
}

// UploadProof сохраняет подтверждение работ. Загружать может только
// закреплённый монтажник, и только пока работы идут или сданы.
func (s *MediaService) UploadProof(ctx context.Context, jobID, userID uuid.UUID, fileName string, r io.Reader) (*models.MediaFile, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if !job.IsAwardedTo(userID) {
		return nil, apperror.ErrForbidden
	}
	switch job.Status {
	case models.JobStatusInProgress, models.JobStatusWorkSubmitted:
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "подтверждения загружаются во время выполнения работ")
	}

	// Тип определяем по содержимому, расширению не верим.
	head := make([]byte, 261)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный формат файла")
	}
	if kind.MIME.Type != "image" && kind.MIME.Type != "video" {
		return nil, apperror.New(apperror.ErrCodeValidation, "допускаются только изображения и видео")
	}

	relPath, size, err := s.files.Save(ctx, jobID, fileName, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось сохранить файл")
	}

	m := &models.MediaFile{
		JobID:    &jobID,
		UserID:   userID,
		FilePath: relPath,
		FileType: kind.MIME.Value,
		FileSize: size,
	}
	if err := s.media.Create(ctx, m); err != nil {
		_ = s.files.Delete(ctx, relPath)
		return nil, err
	}
	return m, nil
}

// ListProofs возвращает подтверждения по заявке её сторонам и администратору.
func (s *MediaService) ListProofs(ctx context.Context, jobID, viewerID uuid.UUID, viewerRole string) ([]models.MediaFile, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if !job.IsParticipant(viewerID) && viewerRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	return s.media.ListByJob(ctx, jobID)
}

// OpenProof отдаёт содержимое файла с теми же правами, что и список.
func (s *MediaService) OpenProof(ctx context.Context, mediaID, viewerID uuid.UUID, viewerRole string) (*models.MediaFile, io.ReadCloser, error) {
	m, err := s.media.GetByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, repository.ErrMediaNotFound) {
			return nil, nil, apperror.New(apperror.ErrCodeNotFound, "файл не найден")
		}
		return nil, nil, err
	}
	if m.JobID != nil {
		job, err := s.jobs.GetByID(ctx, *m.JobID)
		if err == nil && !job.IsParticipant(viewerID) && viewerRole != models.RoleAdmin {
			return nil, nil, apperror.ErrForbidden
		}
	}

	rc, err := s.files.Open(ctx, m.FilePath)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeNotFound, "файл недоступен")
	}
	return m, rc, nil
}
