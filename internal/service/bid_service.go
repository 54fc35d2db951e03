package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/installmarket/installmarket-backend/internal/config"
	"github.com/installmarket/installmarket-backend/internal/logger"
	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/pkg/apperror"
	"github.com/installmarket/installmarket-backend/internal/repository"
	"github.com/installmarket/installmarket-backend/internal/repository/common"
	"github.com/installmarket/installmarket-backend/internal/validation"
)

// BidStore описывает зависимости BidService от слоя хранилища.
type BidStore interface {
	Create(ctx context.Context, bid *models.Bid) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error)
	ListByInstaller(ctx context.Context, installerID uuid.UUID) ([]models.Bid, error)
	Withdraw(ctx context.Context, bidID, installerID uuid.UUID) error
	MarkAccepted(ctx context.Context, bidID uuid.UUID) error
	RevertAccepted(ctx context.Context, bidID uuid.UUID) error
}

// BidJobStore — срез репозитория заявок, нужный откликам.
type BidJobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Award(ctx context.Context, jobID, installerID, changedBy uuid.UUID, acceptanceDeadline time.Time) error
}

// BidService управляет откликами монтажников.
type BidService struct {
	bids     BidStore
	jobs     BidJobStore
	notifier Notifier
	cfg      config.EscrowConfig
}

// NewBidService создаёт сервис откликов.
func NewBidService(bids BidStore, jobs BidJobStore, notifier Notifier, cfg config.EscrowConfig) *BidService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &BidService{bids: bids, jobs: jobs, notifier: notifier, cfg: cfg}
}

// PlaceBidInput содержит данные отклика.
type PlaceBidInput struct {
	Amount      float64
	CoverLetter *string
	ScopeItems  []string
}

// PlaceBid создаёт отклик монтажника на открытую заявку.
func (s *BidService) PlaceBid(ctx context.Context, jobID, installerID uuid.UUID, in PlaceBidInput) (*models.Bid, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "отклики принимаются только на открытые заявки")
	}
	if job.IsOwnedBy(installerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на собственную заявку")
	}
	if time.Now().After(job.Deadline) {
		return nil, apperror.New(apperror.ErrCodeConflict, "срок приёма откликов истёк")
	}

	var coverLetter string
	if in.CoverLetter != nil {
		coverLetter = *in.CoverLetter
	}
	if err := validation.ValidateBid(in.Amount, coverLetter, in.ScopeItems, job.PriceMax); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	bid := &models.Bid{
		JobID:       jobID,
		InstallerID: installerID,
		Amount:      in.Amount,
		CoverLetter: in.CoverLetter,
		ScopeItems:  in.ScopeItems,
	}
	if err := s.bids.Create(ctx, bid); err != nil {
		if errors.Is(err, repository.ErrDuplicateBid) {
			return nil, apperror.New(apperror.ErrCodeConflict, "у вас уже есть активный отклик на эту заявку")
		}
		return nil, err
	}

	s.notifier.NotifyUser(job.PosterID, EventBidPlaced, map[string]any{
		"job_id": jobID,
		"bid_id": bid.ID,
		"amount": bid.Amount,
	})
	return bid, nil
}

// WithdrawBid отзывает активный отклик, пока заявка открыта. Отозванный
// отклик остаётся в истории, монтажник может откликнуться заново.
func (s *BidService) WithdrawBid(ctx context.Context, bidID, installerID uuid.UUID) error {
	bid, err := s.getBid(ctx, bidID)
	if err != nil {
		return err
	}
	if bid.InstallerID != installerID {
		return apperror.ErrForbidden
	}
	job, err := s.getJob(ctx, bid.JobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusOpen {
		return apperror.New(apperror.ErrCodeConflict, "отклик отзывается только пока заявка открыта")
	}
	if err := s.bids.Withdraw(ctx, bidID, installerID); err != nil {
		return transitionErr(err, "отозвать можно только активный отклик")
	}
	return nil
}

// AcceptBid принимает отклик: заявка закрепляется за монтажником, у него
// открывается окно подтверждения. Остальные отклики остаются активными,
// пока оплата не подтвердит выбор. Принимает владелец заявки или администратор.
func (s *BidService) AcceptBid(ctx context.Context, bidID, actorID uuid.UUID, actorRole string) (*models.Job, error) {
	bid, err := s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	job, err := s.getJob(ctx, bid.JobID)
	if err != nil {
		return nil, err
	}
	if !job.IsOwnedBy(actorID) && actorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	if bid.Status != models.BidStatusActive {
		return nil, apperror.New(apperror.ErrCodeConflict, "отклик уже неактивен")
	}

	if err := s.bids.MarkAccepted(ctx, bidID); err != nil {
		return nil, transitionErr(err, "отклик уже неактивен")
	}

	acceptanceDeadline := time.Now().Add(s.cfg.AcceptDeadline)
	if err := s.jobs.Award(ctx, job.ID, bid.InstallerID, actorID, acceptanceDeadline); err != nil {
		// Заявка ушла из открытых под ногами: откатываем отметку на отклике.
		if revertErr := s.bids.RevertAccepted(ctx, bidID); revertErr != nil && !errors.Is(revertErr, common.ErrStateMismatch) {
			logger.Log.WithField("bid_id", bidID).WithError(revertErr).Error("не удалось откатить принятие отклика")
		}
		return nil, transitionErr(err, "заявка уже не принимает отклики")
	}

	s.notifier.NotifyUser(bid.InstallerID, EventJobAwarded, map[string]any{
		"job_id":              job.ID,
		"bid_id":              bidID,
		"acceptance_deadline": acceptanceDeadline,
	})
	return s.getJob(ctx, job.ID)
}

// ListJobBids возвращает отклики заявки её владельцу или администратору.
func (s *BidService) ListJobBids(ctx context.Context, jobID, viewerID uuid.UUID, viewerRole string) ([]models.Bid, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsOwnedBy(viewerID) && viewerRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	return s.bids.ListByJob(ctx, jobID)
}

// ListMyBids возвращает отклики монтажника.
func (s *BidService) ListMyBids(ctx context.Context, installerID uuid.UUID) ([]models.Bid, error) {
	return s.bids.ListByInstaller(ctx, installerID)
}

func (s *BidService) getBid(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	bid, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.ErrBidNotFound
		}
		return nil, err
	}
	return bid, nil
}

func (s *BidService) getJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}
