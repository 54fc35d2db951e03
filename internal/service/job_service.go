package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/installmarket/installmarket-backend/internal/config"
	"github.com/installmarket/installmarket-backend/internal/logger"
	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/pkg/apperror"
	"github.com/installmarket/installmarket-backend/internal/repository"
	"github.com/installmarket/installmarket-backend/internal/repository/common"
	"github.com/installmarket/installmarket-backend/internal/validation"
)

// JobStore описывает зависимости JobService от слоя хранилища.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListOpen(ctx context.Context, category string, limit, offset int) ([]models.Job, error)
	ListByPoster(ctx context.Context, posterID uuid.UUID, includeArchived bool) ([]models.Job, error)
	ListByInstaller(ctx context.Context, installerID uuid.UUID) ([]models.Job, error)
	History(ctx context.Context, jobID uuid.UUID) ([]models.JobStatusHistory, error)
	UpdateDetails(ctx context.Context, job *models.Job) error
	Post(ctx context.Context, jobID, changedBy uuid.UUID) error
	RevertAward(ctx context.Context, jobID, changedBy uuid.UUID, reason *string) error
	AcceptAssignment(ctx context.Context, jobID, installerID, changedBy uuid.UUID, fundingDeadline time.Time) error
	StartWork(ctx context.Context, jobID, installerID, changedBy uuid.UUID, startOtp string) error
	SubmitWork(ctx context.Context, jobID, installerID, changedBy uuid.UUID) error
	ReturnWork(ctx context.Context, jobID, changedBy uuid.UUID, reason *string) error
	CompleteWithOtp(ctx context.Context, jobID, installerID, changedBy uuid.UUID, completionOtp, invoiceNumber string, invoiceTotal float64) error
	Approve(ctx context.Context, jobID, changedBy uuid.UUID, invoiceNumber string, invoiceTotal float64) error
	Cancel(ctx context.Context, jobID, changedBy uuid.UUID, from models.JobStatus, reason string, proposer string) error
	CloseUnbid(ctx context.Context, jobID, changedBy uuid.UUID) error
	Promote(ctx context.Context, jobID, changedBy uuid.UUID, tip float64, deadline time.Time) error
	ProposeReschedule(ctx context.Context, jobID uuid.UUID, newDate time.Time, proposedBy string) error
	AcceptReschedule(ctx context.Context, jobID uuid.UUID) error
	RejectReschedule(ctx context.Context, jobID uuid.UUID) error
	DismissReschedule(ctx context.Context, jobID uuid.UUID) error
	Archive(ctx context.Context, jobID, posterID uuid.UUID) error
	ListExpiredFunding(ctx context.Context, now time.Time, limit int) ([]models.Job, error)
	ListExpiredAcceptance(ctx context.Context, now time.Time, limit int) ([]models.Job, error)
}

// JobBidStore — срез репозитория откликов, нужный жизненному циклу заявки.
type JobBidStore interface {
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error)
	GetAcceptedByJob(ctx context.Context, jobID uuid.UUID) (*models.Bid, error)
	RevertAccepted(ctx context.Context, bidID uuid.UUID) error
}

// JobEscrow — операции эскроу, которые дергает жизненный цикл заявки.
type JobEscrow interface {
	ReleaseFunds(ctx context.Context, jobID, actorID uuid.UUID) (*models.Transaction, error)
	AbandonInitiated(ctx context.Context, jobID uuid.UUID) error
}

// JobService управляет жизненным циклом заявки на монтаж.
type JobService struct {
	jobs     JobStore
	bids     JobBidStore
	escrow   JobEscrow
	notifier Notifier
	cfg      config.EscrowConfig
}

// NewJobService создаёт сервис заявок.
func NewJobService(jobs JobStore, bids JobBidStore, escrow JobEscrow, notifier Notifier, cfg config.EscrowConfig) *JobService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &JobService{jobs: jobs, bids: bids, escrow: escrow, notifier: notifier, cfg: cfg}
}

// CreateJobInput содержит данные новой заявки.
type CreateJobInput struct {
	Title              string
	Description        string
	Category           string
	Location           string
	PriceMin           *float64
	PriceMax           *float64
	Tip                float64
	GstInvoiceRequired bool
	Deadline           time.Time
	JobStartDate       *time.Time
	Draft              bool
}

// CreateJob создаёт заявку. По умолчанию она сразу публикуется.
func (s *JobService) CreateJob(ctx context.Context, posterID uuid.UUID, in CreateJobInput) (*models.Job, error) {
	if err := validation.ValidateJobInput(validation.JobInput{
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Location:     in.Location,
		PriceMin:     in.PriceMin,
		PriceMax:     in.PriceMax,
		Deadline:     in.Deadline,
		JobStartDate: in.JobStartDate,
	}, time.Now()); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.Tip < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "надбавка не может быть отрицательной")
	}

	status := models.JobStatusOpen
	if in.Draft {
		status = models.JobStatusDraft
	}
	job := &models.Job{
		PosterID:           posterID,
		Title:              in.Title,
		Description:        in.Description,
		Category:           in.Category,
		Location:           in.Location,
		PriceMin:           in.PriceMin,
		PriceMax:           in.PriceMax,
		Tip:                in.Tip,
		GstInvoiceRequired: in.GstInvoiceRequired,
		Status:             status,
		Deadline:           in.Deadline,
		JobStartDate:       in.JobStartDate,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateJob редактирует черновик или открытую заявку без откликов в работе.
func (s *JobService) UpdateJob(ctx context.Context, jobID, posterID uuid.UUID, in CreateJobInput) (*models.Job, error) {
	job, err := s.getOwnedJob(ctx, jobID, posterID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateJobInput(validation.JobInput{
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		Location:     in.Location,
		PriceMin:     in.PriceMin,
		PriceMax:     in.PriceMax,
		Deadline:     in.Deadline,
		JobStartDate: in.JobStartDate,
	}, time.Now()); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	job.Title = in.Title
	job.Description = in.Description
	job.Category = in.Category
	job.Location = in.Location
	job.PriceMin = in.PriceMin
	job.PriceMax = in.PriceMax
	job.Tip = in.Tip
	job.GstInvoiceRequired = in.GstInvoiceRequired
	job.Deadline = in.Deadline
	job.JobStartDate = in.JobStartDate

	if err := s.jobs.UpdateDetails(ctx, job); err != nil {
		if errors.Is(err, common.ErrStateMismatch) {
			return nil, apperror.New(apperror.ErrCodeInvalidTransition, "заявку можно редактировать только в черновике или до принятия отклика")
		}
		return nil, err
	}
	return job, nil
}

// GetJob возвращает заявку. Отклики видят только владелец и администратор.
func (s *JobService) GetJob(ctx context.Context, jobID, viewerID uuid.UUID, viewerRole string) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsOwnedBy(viewerID) || viewerRole == models.RoleAdmin {
		bids, err := s.bids.ListByJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		job.Bids = bids
	}
	return job, nil
}

// ListOpenJobs возвращает ленту открытых заявок для монтажников.
func (s *JobService) ListOpenJobs(ctx context.Context, category string, limit, offset int) ([]models.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.jobs.ListOpen(ctx, category, limit, offset)
}

// ListMyJobs возвращает заявки заказчика.
func (s *JobService) ListMyJobs(ctx context.Context, posterID uuid.UUID, includeArchived bool) ([]models.Job, error) {
	return s.jobs.ListByPoster(ctx, posterID, includeArchived)
}

// ListAssignedJobs возвращает заявки, закреплённые за монтажником.
func (s *JobService) ListAssignedJobs(ctx context.Context, installerID uuid.UUID) ([]models.Job, error) {
	return s.jobs.ListByInstaller(ctx, installerID)
}

// History возвращает журнал переходов. Доступен сторонам заявки и администратору.
func (s *JobService) History(ctx context.Context, jobID, viewerID uuid.UUID, viewerRole string) ([]models.JobStatusHistory, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsParticipant(viewerID) && viewerRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	return s.jobs.History(ctx, jobID)
}

// PostJob публикует черновик.
func (s *JobService) PostJob(ctx context.Context, jobID, posterID uuid.UUID) error {
	if _, err := s.getOwnedJob(ctx, jobID, posterID); err != nil {
		return err
	}
	if err := s.jobs.Post(ctx, jobID, posterID); err != nil {
		return transitionErr(err, "опубликовать можно только черновик")
	}
	return nil
}

// AcceptAssignment подтверждает назначение монтажником и открывает окно оплаты.
func (s *JobService) AcceptAssignment(ctx context.Context, jobID, installerID uuid.UUID) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsAwardedTo(installerID) {
		return nil, apperror.ErrForbidden
	}

	fundingDeadline := time.Now().Add(s.cfg.FundingDeadline)
	if err := s.jobs.AcceptAssignment(ctx, jobID, installerID, installerID, fundingDeadline); err != nil {
		return nil, transitionErr(err, "назначение уже неактуально")
	}

	s.notifier.NotifyUser(job.PosterID, EventJobAssignment, map[string]any{
		"job_id":           jobID,
		"funding_deadline": fundingDeadline,
	})
	return s.getJob(ctx, jobID)
}

// DeclineAssignment отклоняет назначение: заявка возвращается в открытые,
// принятый отклик снова активен.
func (s *JobService) DeclineAssignment(ctx context.Context, jobID, installerID uuid.UUID) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsAwardedTo(installerID) {
		return apperror.ErrForbidden
	}

	reason := "монтажник отказался от назначения"
	if err := s.jobs.RevertAward(ctx, jobID, installerID, &reason); err != nil {
		return transitionErr(err, "назначение уже неактуально")
	}
	s.revertAcceptedBid(ctx, jobID)
	s.notifier.NotifyUser(job.PosterID, EventJobAwarded, map[string]any{
		"job_id":   jobID,
		"declined": true,
	})
	return nil
}

// StartWork начинает работы по коду, который заказчик сообщает монтажнику на месте.
func (s *JobService) StartWork(ctx context.Context, jobID, installerID uuid.UUID, startOtp string) error {
	if err := validation.ValidateOtp(startOtp); err != nil {
		return apperror.ErrInvalidOtp
	}

	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsAwardedTo(installerID) {
		return apperror.ErrForbidden
	}

	if err := s.jobs.StartWork(ctx, jobID, installerID, installerID, startOtp); err != nil {
		if errors.Is(err, common.ErrStateMismatch) {
			return s.classifyOtpFailure(ctx, jobID, models.JobStatusFunded, func(j *models.Job) *string { return j.StartOtp })
		}
		return err
	}

	s.notifier.NotifyUser(job.PosterID, EventWorkStarted, map[string]any{"job_id": jobID})
	return nil
}

// SubmitWork сдаёт работу на приёмку заказчику.
func (s *JobService) SubmitWork(ctx context.Context, jobID, installerID uuid.UUID) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsAwardedTo(installerID) {
		return apperror.ErrForbidden
	}
	if err := s.jobs.SubmitWork(ctx, jobID, installerID, installerID); err != nil {
		return transitionErr(err, "сдать можно только работу в процессе выполнения")
	}
	s.notifier.NotifyUser(job.PosterID, EventWorkSubmitted, map[string]any{"job_id": jobID})
	return nil
}

// ReturnWork возвращает сданную работу на доработку с причиной.
func (s *JobService) ReturnWork(ctx context.Context, jobID, posterID uuid.UUID, reason string) error {
	job, err := s.getOwnedJob(ctx, jobID, posterID)
	if err != nil {
		return err
	}
	if err := validation.ValidateReason("причина возврата", reason); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := s.jobs.ReturnWork(ctx, jobID, posterID, &reason); err != nil {
		return transitionErr(err, "вернуть на доработку можно только сданную работу")
	}
	if job.AwardedInstallerID != nil {
		s.notifier.NotifyUser(*job.AwardedInstallerID, EventWorkReturned, map[string]any{
			"job_id": jobID,
			"reason": reason,
		})
	}
	return nil
}

// CompleteWork завершает заявку по коду завершения. Сначала выплата из эскроу,
// затем переход статуса: если выплата не прошла, заявка остаётся в приёмке.
func (s *JobService) CompleteWork(ctx context.Context, jobID, installerID uuid.UUID, completionOtp string) (*models.Job, error) {
	if err := validation.ValidateOtp(completionOtp); err != nil {
		return nil, apperror.ErrInvalidOtp
	}

	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsAwardedTo(installerID) {
		return nil, apperror.ErrForbidden
	}
	if job.CompletionOtp == nil || *job.CompletionOtp != completionOtp {
		return nil, apperror.ErrInvalidOtp
	}
	if job.Status != models.JobStatusWorkSubmitted {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "завершить можно только сданную работу")
	}

	tr, err := s.escrow.ReleaseFunds(ctx, jobID, installerID)
	if err != nil {
		return nil, err
	}

	invoiceNumber := newInvoiceNumber(jobID)
	if err := s.jobs.CompleteWithOtp(ctx, jobID, installerID, installerID, completionOtp, invoiceNumber, tr.TotalPaidByPoster); err != nil {
		if errors.Is(err, common.ErrStateMismatch) {
			// Выплата уже ушла, а статус увести не удалось: гонка с другим
			// вызовом или административным вмешательством. Логируем и отдаём
			// конфликт, деньги повторно не двигаем.
			logger.Log.WithFields(logrus.Fields{
				"job_id":         jobID,
				"transaction_id": tr.ID,
			}).Error("выплата проведена, но заявка не перешла в completed")
			return nil, apperror.New(apperror.ErrCodeConflict, "заявка изменилась во время завершения")
		}
		return nil, err
	}

	s.notifier.NotifyUser(job.PosterID, EventJobCompleted, map[string]any{"job_id": jobID})
	s.notifier.NotifyUser(installerID, EventJobCompleted, map[string]any{"job_id": jobID})
	return s.getJob(ctx, jobID)
}

// ApproveWork завершает заявку со стороны заказчика без кода завершения.
func (s *JobService) ApproveWork(ctx context.Context, jobID, posterID uuid.UUID) (*models.Job, error) {
	job, err := s.getOwnedJob(ctx, jobID, posterID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusWorkSubmitted {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "принять можно только сданную работу")
	}

	tr, err := s.escrow.ReleaseFunds(ctx, jobID, posterID)
	if err != nil {
		return nil, err
	}

	invoiceNumber := newInvoiceNumber(jobID)
	if err := s.jobs.Approve(ctx, jobID, posterID, invoiceNumber, tr.TotalPaidByPoster); err != nil {
		if errors.Is(err, common.ErrStateMismatch) {
			logger.Log.WithFields(logrus.Fields{
				"job_id":         jobID,
				"transaction_id": tr.ID,
			}).Error("выплата проведена, но заявка не перешла в completed")
			return nil, apperror.New(apperror.ErrCodeConflict, "заявка изменилась во время приёмки")
		}
		return nil, err
	}

	if job.AwardedInstallerID != nil {
		s.notifier.NotifyUser(*job.AwardedInstallerID, EventJobCompleted, map[string]any{"job_id": jobID})
	}
	return s.getJob(ctx, jobID)
}

// CancelJob отменяет заявку до начала работ. После оплаты отмена идёт
// только через спор.
func (s *JobService) CancelJob(ctx context.Context, jobID, posterID uuid.UUID, reason string) error {
	job, err := s.getOwnedJob(ctx, jobID, posterID)
	if err != nil {
		return err
	}
	if err := validation.ValidateReason("причина отмены", reason); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	switch job.Status {
	case models.JobStatusDraft, models.JobStatusOpen, models.JobStatusBidAccepted, models.JobStatusPendingFunding:
	default:
		return apperror.New(apperror.ErrCodeInvalidTransition, "после оплаты отмена возможна только через спор")
	}

	if err := s.jobs.Cancel(ctx, jobID, posterID, job.Status, reason, models.PartyPoster); err != nil {
		return transitionErr(err, "заявка уже изменилась")
	}

	// Неоплаченную платёжную сессию закрываем, чтобы оплата не прошла вдогонку.
	if job.Status == models.JobStatusPendingFunding {
		if err := s.escrow.AbandonInitiated(ctx, jobID); err != nil {
			logger.Log.WithField("job_id", jobID).WithError(err).Warn("не удалось закрыть платёжную сессию")
		}
	}
	if job.AwardedInstallerID != nil {
		s.notifier.NotifyUser(*job.AwardedInstallerID, EventJobCancelled, map[string]any{
			"job_id": jobID,
			"reason": reason,
		})
	}
	return nil
}

// CloseUnbid закрывает открытую заявку без откликов после дедлайна.
func (s *JobService) CloseUnbid(ctx context.Context, jobID, posterID uuid.UUID) error {
	if _, err := s.getOwnedJob(ctx, jobID, posterID); err != nil {
		return err
	}
	bids, err := s.bids.ListByJob(ctx, jobID)
	if err != nil {
		return err
	}
	for _, b := range bids {
		if b.Status == models.BidStatusActive {
			return apperror.New(apperror.ErrCodeConflict, "по заявке есть активные отклики")
		}
	}
	if err := s.jobs.CloseUnbid(ctx, jobID, posterID); err != nil {
		return transitionErr(err, "закрыть можно только открытую заявку")
	}
	return nil
}

// PromoteJob повторно публикует закрытую заявку с надбавкой и новым дедлайном.
func (s *JobService) PromoteJob(ctx context.Context, jobID, posterID uuid.UUID, tip float64, deadline time.Time) error {
	if _, err := s.getOwnedJob(ctx, jobID, posterID); err != nil {
		return err
	}
	if tip < 0 {
		return apperror.New(apperror.ErrCodeValidation, "надбавка не может быть отрицательной")
	}
	if !deadline.After(time.Now()) {
		return apperror.New(apperror.ErrCodeValidation, "срок приёма откликов должен быть в будущем")
	}
	if err := s.jobs.Promote(ctx, jobID, posterID, tip, deadline); err != nil {
		return transitionErr(err, "повторно опубликовать можно только закрытую без откликов заявку")
	}
	return nil
}

// ArchiveJob скрывает завершённую или отменённую заявку.
func (s *JobService) ArchiveJob(ctx context.Context, jobID, posterID uuid.UUID) error {
	if _, err := s.getOwnedJob(ctx, jobID, posterID); err != nil {
		return err
	}
	if err := s.jobs.Archive(ctx, jobID, posterID); err != nil {
		return transitionErr(err, "архивировать можно только завершённую или отменённую заявку")
	}
	return nil
}

// GetOtps возвращает коды подтверждения владельцу заявки. Заказчик сообщает
// их монтажнику устно на объекте.
func (s *JobService) GetOtps(ctx context.Context, jobID, posterID uuid.UUID) (startOtp, completionOtp *string, err error) {
	job, err := s.getOwnedJob(ctx, jobID, posterID)
	if err != nil {
		return nil, nil, err
	}
	return job.StartOtp, job.CompletionOtp, nil
}

// ProposeReschedule предлагает перенос даты начала работ от лица стороны заявки.
func (s *JobService) ProposeReschedule(ctx context.Context, jobID, userID uuid.UUID, newDate time.Time) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	var party string
	var counterpart *uuid.UUID
	switch {
	case job.IsOwnedBy(userID):
		party = models.PartyPoster
		counterpart = job.AwardedInstallerID
	case job.IsAwardedTo(userID):
		party = models.PartyInstaller
		counterpart = &job.PosterID
	default:
		return apperror.ErrForbidden
	}
	if !newDate.After(time.Now()) {
		return apperror.New(apperror.ErrCodeValidation, "новая дата должна быть в будущем")
	}

	if err := s.jobs.ProposeReschedule(ctx, jobID, newDate, party); err != nil {
		return transitionErr(err, "перенос недоступен в текущем состоянии заявки")
	}
	if counterpart != nil {
		s.notifier.NotifyUser(*counterpart, EventRescheduleOffered, map[string]any{
			"job_id":   jobID,
			"new_date": newDate,
		})
	}
	return nil
}

// RespondReschedule принимает или отклоняет перенос. Отвечает противоположная
// сторона, не та, что предлагала.
func (s *JobService) RespondReschedule(ctx context.Context, jobID, userID uuid.UUID, accept bool) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.RescheduleStatus == nil || *job.RescheduleStatus != models.RescheduleStatusPending || job.RescheduleProposedBy == nil {
		return apperror.New(apperror.ErrCodeConflict, "нет активного предложения о переносе")
	}

	var responder string
	var counterpart *uuid.UUID
	switch {
	case job.IsOwnedBy(userID):
		responder = models.PartyPoster
		counterpart = job.AwardedInstallerID
	case job.IsAwardedTo(userID):
		responder = models.PartyInstaller
		counterpart = &job.PosterID
	default:
		return apperror.ErrForbidden
	}
	if responder == *job.RescheduleProposedBy {
		return apperror.New(apperror.ErrCodeForbidden, "на своё предложение ответить нельзя")
	}

	if accept {
		err = s.jobs.AcceptReschedule(ctx, jobID)
	} else {
		err = s.jobs.RejectReschedule(ctx, jobID)
	}
	if err != nil {
		return transitionErr(err, "предложение о переносе уже закрыто")
	}
	if counterpart != nil {
		s.notifier.NotifyUser(*counterpart, EventRescheduleClosed, map[string]any{
			"job_id":   jobID,
			"accepted": accept,
		})
	}
	return nil
}

// DismissReschedule снимает собственное предложение о переносе до ответа
// второй стороны. Поля переноса очищаются полностью.
func (s *JobService) DismissReschedule(ctx context.Context, jobID, userID uuid.UUID) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.RescheduleStatus == nil || *job.RescheduleStatus != models.RescheduleStatusPending || job.RescheduleProposedBy == nil {
		return apperror.New(apperror.ErrCodeConflict, "нет активного предложения о переносе")
	}

	var party string
	var counterpart *uuid.UUID
	switch {
	case job.IsOwnedBy(userID):
		party = models.PartyPoster
		counterpart = job.AwardedInstallerID
	case job.IsAwardedTo(userID):
		party = models.PartyInstaller
		counterpart = &job.PosterID
	default:
		return apperror.ErrForbidden
	}
	if party != *job.RescheduleProposedBy {
		return apperror.New(apperror.ErrCodeForbidden, "снять можно только своё предложение")
	}

	if err := s.jobs.DismissReschedule(ctx, jobID); err != nil {
		return transitionErr(err, "предложение о переносе уже закрыто")
	}
	if counterpart != nil {
		s.notifier.NotifyUser(*counterpart, EventRescheduleClosed, map[string]any{
			"job_id":    jobID,
			"dismissed": true,
		})
	}
	return nil
}

// ExpireDeadlines обрабатывает просроченные окна подтверждения и оплаты.
// Вызывается фоновым воркером.
func (s *JobService) ExpireDeadlines(ctx context.Context) {
	now := time.Now()

	expired, err := s.jobs.ListExpiredAcceptance(ctx, now, 50)
	if err != nil {
		logger.Log.WithError(err).Error("не удалось получить просроченные назначения")
	}
	for _, job := range expired {
		reason := "монтажник не подтвердил назначение в срок"
		if err := s.jobs.RevertAward(ctx, job.ID, job.PosterID, &reason); err != nil {
			if !errors.Is(err, common.ErrStateMismatch) {
				logger.Log.WithField("job_id", job.ID).WithError(err).Error("не удалось вернуть заявку в открытые")
			}
			continue
		}
		s.revertAcceptedBid(ctx, job.ID)
	}

	expired, err = s.jobs.ListExpiredFunding(ctx, now, 50)
	if err != nil {
		logger.Log.WithError(err).Error("не удалось получить просроченные оплаты")
	}
	for _, job := range expired {
		reason := "заказчик не оплатил заявку в срок"
		if err := s.jobs.Cancel(ctx, job.ID, job.PosterID, models.JobStatusPendingFunding, reason, models.PartyPoster); err != nil {
			if !errors.Is(err, common.ErrStateMismatch) {
				logger.Log.WithField("job_id", job.ID).WithError(err).Error("не удалось отменить неоплаченную заявку")
			}
			continue
		}
		if err := s.escrow.AbandonInitiated(ctx, job.ID); err != nil {
			logger.Log.WithField("job_id", job.ID).WithError(err).Warn("не удалось закрыть платёжную сессию")
		}
		if job.AwardedInstallerID != nil {
			s.notifier.NotifyUser(*job.AwardedInstallerID, EventJobCancelled, map[string]any{
				"job_id": job.ID,
				"reason": reason,
			})
		}
	}
}

func (s *JobService) getJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *JobService) getOwnedJob(ctx context.Context, jobID, posterID uuid.UUID) (*models.Job, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsOwnedBy(posterID) {
		return nil, apperror.ErrForbidden
	}
	return job, nil
}

// classifyOtpFailure различает провал по коду и провал по состоянию после
// неуспешного условного обновления. Погашенный код (колонка очищена) — это
// ошибка кода, даже если статус уже ушёл дальше: повтор использованного кода
// не совпадает с хранимым.
func (s *JobService) classifyOtpFailure(ctx context.Context, jobID uuid.UUID, expected models.JobStatus, otpOf func(*models.Job) *string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != expected && otpOf(job) != nil {
		return apperror.ErrInvalidTransition
	}
	return apperror.ErrInvalidOtp
}

// revertAcceptedBid возвращает принятый отклик в активные, гонки не считаем ошибкой.
func (s *JobService) revertAcceptedBid(ctx context.Context, jobID uuid.UUID) {
	bid, err := s.bids.GetAcceptedByJob(ctx, jobID)
	if err != nil {
		if !errors.Is(err, repository.ErrBidNotFound) {
			logger.Log.WithField("job_id", jobID).WithError(err).Error("не удалось найти принятый отклик")
		}
		return
	}
	if err := s.bids.RevertAccepted(ctx, bid.ID); err != nil && !errors.Is(err, common.ErrStateMismatch) {
		logger.Log.WithField("bid_id", bid.ID).WithError(err).Error("не удалось вернуть отклик в активные")
	}
}

// transitionErr переводит несработавший условный переход в понятную ошибку.
func transitionErr(err error, message string) error {
	if errors.Is(err, common.ErrStateMismatch) {
		return apperror.New(apperror.ErrCodeInvalidTransition, message)
	}
	return err
}

// newInvoiceNumber формирует номер счёта по заявке.
func newInvoiceNumber(jobID uuid.UUID) string {
	return fmt.Sprintf("INV-%d-%s", time.Now().Year(), jobID.String()[:8])
}
