package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/installmarket/installmarket-backend/internal/logger"
	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/pkg/apperror"
	"github.com/installmarket/installmarket-backend/internal/repository"
	"github.com/installmarket/installmarket-backend/internal/validation"
)

// DisputeStore описывает зависимости DisputeService от слоя хранилища.
type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByJob(ctx context.Context, jobID uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error)
	ListByParty(ctx context.Context, userID uuid.UUID) ([]models.Dispute, error)
	MarkUnderReview(ctx context.Context, id uuid.UUID) error
	Resolve(ctx context.Context, id, resolvedBy uuid.UUID, resolution models.DisputeResolution, refundAmount, payoutAmount *float64) error
	AddMessage(ctx context.Context, m *models.DisputeMessage) error
	ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error)
}

// DisputeJobStore — срез репозитория заявок, нужный спорам.
type DisputeJobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Dispute(ctx context.Context, jobID, changedBy uuid.UUID, from models.JobStatus, reason *string) error
	ForceStatus(ctx context.Context, jobID, changedBy uuid.UUID, to models.JobStatus, reason *string) error
}

// DisputeEscrow — операции эскроу, которыми спор распоряжается при разрешении.
type DisputeEscrow interface {
	FreezeFunds(ctx context.Context, jobID uuid.UUID) error
	UnfreezeFunds(ctx context.Context, jobID uuid.UUID) error
	ReleaseFunds(ctx context.Context, jobID, actorID uuid.UUID) (*models.Transaction, error)
	ProcessRefund(ctx context.Context, jobID, actorID uuid.UUID) (*models.Transaction, error)
	SplitFunds(ctx context.Context, jobID, actorID uuid.UUID, installerPercent float64) (*SplitResult, error)
}

// DisputeService управляет спорами и их административным разрешением.
// Разрешение спора — единственный путь, которым заявка меняет статус в обход
// таблицы переходов.
type DisputeService struct {
	disputes DisputeStore
	jobs     DisputeJobStore
	escrow   DisputeEscrow
	notifier Notifier
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(disputes DisputeStore, jobs DisputeJobStore, escrow DisputeEscrow, notifier Notifier) *DisputeService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &DisputeService{disputes: disputes, jobs: jobs, escrow: escrow, notifier: notifier}
}

// OpenDispute открывает спор. Со ссылкой на заявку спор замораживает её
// вместе со средствами в эскроу; без ссылки это общее обращение к платформе.
func (s *DisputeService) OpenDispute(ctx context.Context, jobID *uuid.UUID, requesterID uuid.UUID, reason string) (*models.Dispute, error) {
	if err := validation.ValidateReason("причина спора", reason); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	d := &models.Dispute{RequesterID: requesterID, Reason: reason}
	var job *models.Job
	if jobID != nil {
		var err error
		job, err = s.getJob(ctx, *jobID)
		if err != nil {
			return nil, err
		}
		if !job.IsParticipant(requesterID) {
			return nil, apperror.ErrForbidden
		}
		if !models.CanTransition(job.Status, models.JobStatusDisputed) {
			return nil, apperror.New(apperror.ErrCodeInvalidTransition, "спор доступен только после оплаты заявки")
		}
		if _, err := s.disputes.GetOpenByJob(ctx, *jobID); err == nil {
			return nil, apperror.New(apperror.ErrCodeConflict, "по заявке уже открыт спор")
		} else if !errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, err
		}

		if err := s.jobs.Dispute(ctx, *jobID, requesterID, job.Status, &reason); err != nil {
			return nil, transitionErr(err, "заявка уже изменилась")
		}

		if err := s.escrow.FreezeFunds(ctx, *jobID); err != nil {
			logger.Log.WithField("job_id", *jobID).WithError(err).Error("не удалось заморозить средства по спору")
		}

		// Снимок контекста: карточка спора живёт своей жизнью.
		d.JobID = &job.ID
		d.JobTitle = &job.Title
		d.PosterID = &job.PosterID
		d.InstallerID = job.AwardedInstallerID
	}

	if err := s.disputes.Create(ctx, d); err != nil {
		return nil, err
	}

	// Переписка начинается с служебного сообщения с причиной спора.
	opening := &models.DisputeMessage{
		DisputeID:  d.ID,
		AuthorID:   requesterID,
		AuthorRole: models.DisputeAuthorSystem,
		Content:    reason,
	}
	if err := s.disputes.AddMessage(ctx, opening); err != nil {
		logger.Log.WithField("dispute_id", d.ID).WithError(err).Warn("не удалось записать первое сообщение спора")
	}

	if job != nil {
		for _, party := range []*uuid.UUID{&job.PosterID, job.AwardedInstallerID} {
			if party != nil && *party != requesterID {
				s.notifier.NotifyUser(*party, EventDisputeOpened, map[string]any{
					"job_id":     job.ID,
					"dispute_id": d.ID,
				})
			}
		}
	}
	return d, nil
}

// GetDispute возвращает спор с перепиской его сторонам и администратору.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID, viewerID uuid.UUID, viewerRole string) (*models.Dispute, []models.DisputeMessage, error) {
	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	if !d.IsParty(viewerID) && viewerRole != models.RoleAdmin {
		return nil, nil, apperror.ErrForbidden
	}
	messages, err := s.disputes.ListMessages(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	return d, messages, nil
}

// ListDisputes возвращает административную очередь споров.
func (s *DisputeService) ListDisputes(ctx context.Context, status string, limit, offset int) ([]models.Dispute, error) {
	if status != "" && status != string(models.DisputeStatusOpen) &&
		status != string(models.DisputeStatusUnderReview) && status != string(models.DisputeStatusResolved) {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус спора")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.disputes.List(ctx, status, limit, offset)
}

// ListMyDisputes возвращает споры, в которых пользователь участвует.
func (s *DisputeService) ListMyDisputes(ctx context.Context, userID uuid.UUID) ([]models.Dispute, error) {
	return s.disputes.ListByParty(ctx, userID)
}

// AddMessage добавляет сообщение в переписку. Первый ответ администратора
// переводит спор в рассмотрение.
func (s *DisputeService) AddMessage(ctx context.Context, disputeID, authorID uuid.UUID, authorRole, content string) (*models.DisputeMessage, error) {
	if err := validation.ValidateLength("сообщение", content, 1, validation.MaxReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DisputeStatusResolved {
		return nil, apperror.New(apperror.ErrCodeConflict, "спор уже разрешён")
	}
	if !d.IsParty(authorID) && authorRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	m := &models.DisputeMessage{
		DisputeID:  disputeID,
		AuthorID:   authorID,
		AuthorRole: authorRole,
		Content:    content,
	}
	if err := s.disputes.AddMessage(ctx, m); err != nil {
		return nil, err
	}

	if authorRole == models.RoleAdmin && d.Status == models.DisputeStatusOpen {
		if err := s.disputes.MarkUnderReview(ctx, disputeID); err != nil {
			logger.Log.WithField("dispute_id", disputeID).WithError(err).Warn("не удалось перевести спор в рассмотрение")
		}
	}

	for _, party := range []*uuid.UUID{d.PosterID, d.InstallerID} {
		if party != nil && *party != authorID {
			s.notifier.NotifyUser(*party, EventDisputeMessage, map[string]any{
				"dispute_id": disputeID,
			})
		}
	}
	return m, nil
}

// ResolveInput содержит решение администратора.
type ResolveInput struct {
	Resolution       models.DisputeResolution
	InstallerPercent float64
}

// Resolve закрывает спор решением администратора: полный возврат заказчику,
// полная выплата монтажнику или раздел. Средства размораживаются, двигаются
// ровно один раз, затем заявка принудительно получает итоговый статус.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, adminID uuid.UUID, in ResolveInput) (*models.Dispute, error) {
	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DisputeStatusResolved {
		return nil, apperror.New(apperror.ErrCodeConflict, "спор уже разрешён")
	}
	switch in.Resolution {
	case models.DisputeResolutionRefund, models.DisputeResolutionRelease, models.DisputeResolutionSplit:
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестное решение спора")
	}

	// Спор без заявки закрывается решением без движения средств.
	if d.JobID == nil {
		if err := s.disputes.Resolve(ctx, disputeID, adminID, in.Resolution, nil, nil); err != nil {
			return nil, transitionErr(err, "спор уже разрешён")
		}
		s.notifier.NotifyUser(d.RequesterID, EventDisputeResolved, map[string]any{
			"dispute_id": disputeID,
			"resolution": in.Resolution,
		})
		return s.getDispute(ctx, disputeID)
	}
	jobID := *d.JobID

	if err := s.escrow.UnfreezeFunds(ctx, jobID); err != nil && !errors.Is(err, apperror.ErrNoFundedTransaction) {
		return nil, err
	}

	var refundAmount, payoutAmount *float64
	var finalStatus models.JobStatus

	switch in.Resolution {
	case models.DisputeResolutionRefund:
		tr, err := s.escrow.ProcessRefund(ctx, jobID, adminID)
		if err != nil {
			return nil, err
		}
		refundAmount = &tr.TotalPaidByPoster
		finalStatus = models.JobStatusCancelled
	case models.DisputeResolutionRelease:
		tr, err := s.escrow.ReleaseFunds(ctx, jobID, adminID)
		if err != nil {
			return nil, err
		}
		payoutAmount = &tr.PayoutToInstaller
		finalStatus = models.JobStatusCompleted
	case models.DisputeResolutionSplit:
		res, err := s.escrow.SplitFunds(ctx, jobID, adminID, in.InstallerPercent)
		if err != nil {
			return nil, err
		}
		refundAmount = &res.RefundAmount
		payoutAmount = &res.PayoutAmount
		finalStatus = models.JobStatusCompleted
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестное решение спора")
	}

	reason := "спор разрешён администратором: " + string(in.Resolution)
	if err := s.jobs.ForceStatus(ctx, jobID, adminID, finalStatus, &reason); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"job_id":     jobID,
			"dispute_id": disputeID,
		}).WithError(err).Error("средства урегулированы, но статус заявки не обновился")
	}

	if err := s.disputes.Resolve(ctx, disputeID, adminID, in.Resolution, refundAmount, payoutAmount); err != nil {
		return nil, transitionErr(err, "спор уже разрешён")
	}

	for _, party := range []*uuid.UUID{d.PosterID, d.InstallerID} {
		if party != nil {
			s.notifier.NotifyUser(*party, EventDisputeResolved, map[string]any{
				"dispute_id": disputeID,
				"resolution": in.Resolution,
			})
		}
	}
	return s.getDispute(ctx, disputeID)
}

// FreezeEscrow замораживает средства по заявке неразрешённого спора.
func (s *DisputeService) FreezeEscrow(ctx context.Context, disputeID uuid.UUID) error {
	jobID, err := s.liveDisputeJob(ctx, disputeID)
	if err != nil {
		return err
	}
	return s.escrow.FreezeFunds(ctx, jobID)
}

// UnfreezeEscrow снимает заморозку без разрешения спора: например, когда
// стороны договорились сами и спор будет брошен.
func (s *DisputeService) UnfreezeEscrow(ctx context.Context, disputeID uuid.UUID) error {
	jobID, err := s.liveDisputeJob(ctx, disputeID)
	if err != nil {
		return err
	}
	return s.escrow.UnfreezeFunds(ctx, jobID)
}

// liveDisputeJob возвращает заявку неразрешённого спора.
func (s *DisputeService) liveDisputeJob(ctx context.Context, disputeID uuid.UUID) (uuid.UUID, error) {
	d, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return uuid.Nil, err
	}
	if d.Status == models.DisputeStatusResolved {
		return uuid.Nil, apperror.New(apperror.ErrCodeConflict, "спор уже разрешён")
	}
	if d.JobID == nil {
		return uuid.Nil, apperror.New(apperror.ErrCodeConflict, "спор не привязан к заявке")
	}
	return *d.JobID, nil
}

func (s *DisputeService) getDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *DisputeService) getJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}
