package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/installmarket/installmarket-backend/internal/config"
	"github.com/installmarket/installmarket-backend/internal/gateway"
	"github.com/installmarket/installmarket-backend/internal/logger"
	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/pkg/apperror"
	"github.com/installmarket/installmarket-backend/internal/repository"
	"github.com/installmarket/installmarket-backend/internal/repository/common"
)

// PaymentStore описывает зависимости PaymentService от слоя хранилища.
type PaymentStore interface {
	Create(ctx context.Context, tr *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetLiveByJob(ctx context.Context, jobID uuid.UUID) (*models.Transaction, error)
	GetLatestByJob(ctx context.Context, jobID uuid.UUID) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	SetSessionID(ctx context.Context, id uuid.UUID, sessionID string) error
	MarkFunded(ctx context.Context, id uuid.UUID) error
	ClaimRelease(ctx context.Context, id uuid.UUID, transferID string) error
	RevertRelease(ctx context.Context, id uuid.UUID) error
	ClaimRefund(ctx context.Context, id uuid.UUID, transferID string) error
	RevertRefund(ctx context.Context, id uuid.UUID) error
	ClaimSplit(ctx context.Context, id uuid.UUID, payoutTransferID, refundTransferID string) error
	RevertSplit(ctx context.Context, id uuid.UUID) error
	Freeze(ctx context.Context, id uuid.UUID) error
	Unfreeze(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// PaymentJobStore — срез репозитория заявок, нужный эскроу.
type PaymentJobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	SetOtps(ctx context.Context, jobID uuid.UUID, startOtp, completionOtp string) error
	MarkFunded(ctx context.Context, jobID, changedBy uuid.UUID) error
}

// PaymentBidStore — срез репозитория откликов, нужный эскроу.
type PaymentBidStore interface {
	GetAcceptedByJob(ctx context.Context, jobID uuid.UUID) (*models.Bid, error)
	RejectOthers(ctx context.Context, jobID, acceptedBidID uuid.UUID) error
}

// PaymentService координирует эскроу: приём средств, выплату, возврат и
// раздельное урегулирование. Деньгами управляет платёжный шлюз, сервис
// отвечает за то, чтобы каждая операция прошла не более одного раза.
type PaymentService struct {
	payments PaymentStore
	jobs     PaymentJobStore
	bids     PaymentBidStore
	gw       gateway.Client
	notifier Notifier
	cfg      config.EscrowConfig
}

// NewPaymentService создаёт сервис эскроу.
func NewPaymentService(payments PaymentStore, jobs PaymentJobStore, bids PaymentBidStore, gw gateway.Client, notifier Notifier, cfg config.EscrowConfig) *PaymentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &PaymentService{payments: payments, jobs: jobs, bids: bids, gw: gw, notifier: notifier, cfg: cfg}
}

// PaymentOrder — платёжная сессия, которую фронтенд отдаёт шлюзу.
type PaymentOrder struct {
	Transaction *models.Transaction `json:"transaction"`
	SessionID   string              `json:"session_id"`
}

// CreatePaymentOrder создаёт платёжную сессию для оплаты заявки.
// Повторный вызов до оплаты возвращает уже созданную сессию.
func (s *PaymentService) CreatePaymentOrder(ctx context.Context, jobID, posterID uuid.UUID) (*PaymentOrder, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsOwnedBy(posterID) {
		return nil, apperror.ErrForbidden
	}
	if job.Status != models.JobStatusPendingFunding {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "оплата доступна только после подтверждения назначения")
	}

	if existing, err := s.payments.GetLiveByJob(ctx, jobID); err == nil {
		if existing.Status != models.TransactionStatusInitiated {
			return nil, apperror.New(apperror.ErrCodeConflict, "заявка уже оплачена")
		}
		sessionID := ""
		if existing.GatewaySessionID != nil {
			sessionID = *existing.GatewaySessionID
		}
		return &PaymentOrder{Transaction: existing, SessionID: sessionID}, nil
	} else if !errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, err
	}

	bid, err := s.bids.GetAcceptedByJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.New(apperror.ErrCodeConflict, "по заявке нет принятого отклика")
		}
		return nil, err
	}

	amount := bid.Amount
	commission := round2(amount * s.cfg.CommissionRate)
	posterFee := round2(amount * s.cfg.PosterFeeRate)
	tr := &models.Transaction{
		JobID:             jobID,
		PayerID:           posterID,
		PayeeID:           job.AwardedInstallerID,
		Amount:            amount,
		Tip:               job.Tip,
		Commission:        commission,
		PosterFee:         posterFee,
		TotalPaidByPoster: round2(amount + job.Tip + posterFee),
		PayoutToInstaller: round2(amount + job.Tip - commission),
		GatewayOrderID:    fmt.Sprintf("order_%s_%d", jobID, time.Now().Unix()),
	}
	if err := s.payments.Create(ctx, tr); err != nil {
		return nil, err
	}

	sessionID, err := s.gw.CreateOrder(ctx, tr.GatewayOrderID, tr.TotalPaidByPoster)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "платёжный шлюз недоступен")
	}
	if err := s.payments.SetSessionID(ctx, tr.ID, sessionID); err != nil && !errors.Is(err, common.ErrStateMismatch) {
		return nil, err
	}
	tr.GatewaySessionID = &sessionID
	return &PaymentOrder{Transaction: tr, SessionID: sessionID}, nil
}

// VerifyPayment сверяет оплату со шлюзом и переводит заявку в funded.
// Здесь же выпускаются коды подтверждения начала и завершения работ.
// Повторная проверка уже оплаченной заявки безвредна.
func (s *PaymentService) VerifyPayment(ctx context.Context, jobID, posterID uuid.UUID) (*models.Transaction, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsOwnedBy(posterID) {
		return nil, apperror.ErrForbidden
	}

	tr, err := s.payments.GetLiveByJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.New(apperror.ErrCodeConflict, "платёжная сессия не создана")
		}
		return nil, err
	}
	if tr.Status == models.TransactionStatusFunded {
		return tr, nil
	}
	if tr.Status != models.TransactionStatusInitiated {
		return nil, apperror.ErrTransactionFrozen
	}

	paid, err := s.gw.VerifyPayment(ctx, tr.GatewayOrderID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "платёжный шлюз недоступен")
	}
	if !paid {
		return nil, apperror.New(apperror.ErrCodeConflict, "оплата ещё не поступила")
	}

	if err := s.payments.MarkFunded(ctx, tr.ID); err != nil {
		if errors.Is(err, common.ErrStateMismatch) {
			// Параллельная проверка успела раньше.
			return s.payments.GetByID(ctx, tr.ID)
		}
		return nil, err
	}

	startOtp, err := generateOtp()
	if err != nil {
		return nil, err
	}
	completionOtp, err := generateOtp()
	if err != nil {
		return nil, err
	}
	if err := s.jobs.SetOtps(ctx, jobID, startOtp, completionOtp); err != nil && !errors.Is(err, common.ErrStateMismatch) {
		return nil, err
	}
	if err := s.jobs.MarkFunded(ctx, jobID, posterID); err != nil && !errors.Is(err, common.ErrStateMismatch) {
		return nil, err
	}

	// Оплата подтвердила выбор монтажника, остальные отклики закрываются.
	if bid, err := s.bids.GetAcceptedByJob(ctx, jobID); err == nil {
		if err := s.bids.RejectOthers(ctx, jobID, bid.ID); err != nil {
			logger.Log.WithField("job_id", jobID).WithError(err).Warn("не удалось закрыть остальные отклики")
		}
	}

	if job.AwardedInstallerID != nil {
		s.notifier.NotifyUser(*job.AwardedInstallerID, EventJobFunded, map[string]any{"job_id": jobID})
	}
	return s.payments.GetByID(ctx, tr.ID)
}

// ReleaseFunds выплачивает средства монтажнику. Сначала транзакция
// захватывается условным обновлением, потом зовётся шлюз: параллельный вызов
// получает отказ до обращения к деньгам. При ошибке шлюза захват откатывается.
func (s *PaymentService) ReleaseFunds(ctx context.Context, jobID, actorID uuid.UUID) (*models.Transaction, error) {
	tr, err := s.fundedTransaction(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if tr.PayeeID == nil {
		return nil, apperror.New(apperror.ErrCodeInternal, "у транзакции нет получателя")
	}

	transferID := fmt.Sprintf("payout_%s_%d", jobID, time.Now().Unix())
	if err := s.payments.ClaimRelease(ctx, tr.ID, transferID); err != nil {
		if errors.Is(err, common.ErrStateMismatch) {
			return nil, s.classifySettleFailure(ctx, tr.ID)
		}
		return nil, err
	}

	if err := s.gw.CreatePayout(ctx, transferID, tr.PayeeID.String(), tr.PayoutToInstaller); err != nil {
		if revertErr := s.payments.RevertRelease(ctx, tr.ID); revertErr != nil {
			logger.Log.WithFields(logrus.Fields{
				"transaction_id": tr.ID,
				"transfer_id":    transferID,
			}).WithError(revertErr).Error("не удалось откатить захват выплаты")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "выплата не прошла")
	}

	logger.Log.WithFields(logrus.Fields{
		"job_id":         jobID,
		"transaction_id": tr.ID,
		"amount":         tr.PayoutToInstaller,
		"actor_id":       actorID,
	}).Info("средства выплачены монтажнику")
	return s.payments.GetByID(ctx, tr.ID)
}

// ProcessRefund возвращает заказчику всё уплаченное. Та же дисциплина
// захвата, что и у выплаты.
func (s *PaymentService) ProcessRefund(ctx context.Context, jobID, actorID uuid.UUID) (*models.Transaction, error) {
	tr, err := s.fundedTransaction(ctx, jobID)
	if err != nil {
		return nil, err
	}

	transferID := fmt.Sprintf("refund_%s_%d", jobID, time.Now().Unix())
	if err := s.payments.ClaimRefund(ctx, tr.ID, transferID); err != nil {
		if errors.Is(err, common.ErrStateMismatch) {
			return nil, s.classifySettleFailure(ctx, tr.ID)
		}
		return nil, err
	}

	if err := s.gw.ProcessRefund(ctx, transferID, tr.GatewayOrderID, tr.TotalPaidByPoster); err != nil {
		if revertErr := s.payments.RevertRefund(ctx, tr.ID); revertErr != nil {
			logger.Log.WithFields(logrus.Fields{
				"transaction_id": tr.ID,
				"transfer_id":    transferID,
			}).WithError(revertErr).Error("не удалось откатить захват возврата")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "возврат не прошёл")
	}

	logger.Log.WithFields(logrus.Fields{
		"job_id":         jobID,
		"transaction_id": tr.ID,
		"amount":         tr.TotalPaidByPoster,
		"actor_id":       actorID,
	}).Info("средства возвращены заказчику")
	return s.payments.GetByID(ctx, tr.ID)
}

// SplitResult — результат раздельного урегулирования.
type SplitResult struct {
	Transaction  *models.Transaction
	PayoutAmount float64
	RefundAmount float64
}

// SplitFunds делит распределяемую сумму между сторонами по доле монтажника.
// Распределяется ставка с надбавкой за вычетом комиссии; сбор заказчика и
// комиссия остаются у площадки.
func (s *PaymentService) SplitFunds(ctx context.Context, jobID, actorID uuid.UUID, installerPercent float64) (*SplitResult, error) {
	if installerPercent <= 0 || installerPercent >= 100 {
		return nil, apperror.New(apperror.ErrCodeValidation, "доля монтажника должна быть между 0 и 100")
	}

	tr, err := s.fundedTransaction(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if tr.PayeeID == nil {
		return nil, apperror.New(apperror.ErrCodeInternal, "у транзакции нет получателя")
	}

	pool := tr.PayoutToInstaller
	payout := math.Floor(pool*installerPercent) / 100
	refund := round2(pool - payout)

	now := time.Now().Unix()
	payoutTransferID := fmt.Sprintf("payout_%s_%d", jobID, now)
	refundTransferID := fmt.Sprintf("refund_%s_%d", jobID, now)

	if err := s.payments.ClaimSplit(ctx, tr.ID, payoutTransferID, refundTransferID); err != nil {
		if errors.Is(err, common.ErrStateMismatch) {
			return nil, s.classifySettleFailure(ctx, tr.ID)
		}
		return nil, err
	}

	if err := s.gw.CreatePayout(ctx, payoutTransferID, tr.PayeeID.String(), payout); err != nil {
		if revertErr := s.payments.RevertSplit(ctx, tr.ID); revertErr != nil {
			logger.Log.WithField("transaction_id", tr.ID).WithError(revertErr).Error("не удалось откатить раздельное урегулирование")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "выплата не прошла")
	}

	if err := s.gw.ProcessRefund(ctx, refundTransferID, tr.GatewayOrderID, refund); err != nil {
		// Выплата уже ушла, откатывать нечего: возврат требует ручного
		// вмешательства. Транзакция остаётся урегулированной.
		logger.Log.WithFields(logrus.Fields{
			"transaction_id": tr.ID,
			"transfer_id":    refundTransferID,
			"amount":         refund,
		}).WithError(err).Error("возврат доли заказчика не прошёл, требуется ручная обработка")
	}

	updated, err := s.payments.GetByID(ctx, tr.ID)
	if err != nil {
		return nil, err
	}
	return &SplitResult{Transaction: updated, PayoutAmount: payout, RefundAmount: refund}, nil
}

// FreezeFunds замораживает эскроу заявки на время спора.
func (s *PaymentService) FreezeFunds(ctx context.Context, jobID uuid.UUID) error {
	tr, err := s.payments.GetLiveByJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return apperror.ErrNoFundedTransaction
		}
		return err
	}
	if tr.Status == models.TransactionStatusDisputed {
		return nil
	}
	if err := s.payments.Freeze(ctx, tr.ID); err != nil {
		return transitionErr(err, "транзакция не в состоянии для заморозки")
	}
	return nil
}

// UnfreezeFunds снимает заморозку перед урегулированием.
func (s *PaymentService) UnfreezeFunds(ctx context.Context, jobID uuid.UUID) error {
	tr, err := s.payments.GetLiveByJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return apperror.ErrNoFundedTransaction
		}
		return err
	}
	if tr.Status == models.TransactionStatusFunded {
		return nil
	}
	if err := s.payments.Unfreeze(ctx, tr.ID); err != nil {
		return transitionErr(err, "транзакция не заморожена")
	}
	return nil
}

// AbandonInitiated закрывает неоплаченную платёжную сессию заявки.
func (s *PaymentService) AbandonInitiated(ctx context.Context, jobID uuid.UUID) error {
	tr, err := s.payments.GetLiveByJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil
		}
		return err
	}
	if tr.Status != models.TransactionStatusInitiated {
		return nil
	}
	if err := s.payments.MarkFailed(ctx, tr.ID); err != nil && !errors.Is(err, common.ErrStateMismatch) {
		return err
	}
	return nil
}

// GetJobTransaction возвращает последнюю транзакцию заявки её сторонам
// и администратору.
func (s *PaymentService) GetJobTransaction(ctx context.Context, jobID, viewerID uuid.UUID, viewerRole string) (*models.Transaction, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsParticipant(viewerID) && viewerRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	tr, err := s.payments.GetLatestByJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, err
	}
	return tr, nil
}

// ListUserTransactions возвращает историю транзакций пользователя.
func (s *PaymentService) ListUserTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return s.payments.ListByUser(ctx, userID)
}

// fundedTransaction возвращает живую транзакцию заявки, пригодную для
// урегулирования. Замороженная отклоняется до снятия заморозки.
func (s *PaymentService) fundedTransaction(ctx context.Context, jobID uuid.UUID) (*models.Transaction, error) {
	tr, err := s.payments.GetLiveByJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, s.classifyMissingLive(ctx, jobID)
		}
		return nil, err
	}
	switch tr.Status {
	case models.TransactionStatusFunded:
		return tr, nil
	case models.TransactionStatusDisputed:
		return nil, apperror.ErrTransactionFrozen
	default:
		return nil, apperror.ErrNoFundedTransaction
	}
}

// classifyMissingLive различает «ещё не оплачено» и «уже урегулировано».
func (s *PaymentService) classifyMissingLive(ctx context.Context, jobID uuid.UUID) error {
	latest, err := s.payments.GetLatestByJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return apperror.ErrNoFundedTransaction
		}
		return err
	}
	if latest.IsSettled() {
		return apperror.ErrAlreadySettled
	}
	return apperror.ErrNoFundedTransaction
}

// classifySettleFailure объясняет неуспешный захват урегулирования.
func (s *PaymentService) classifySettleFailure(ctx context.Context, trID uuid.UUID) error {
	tr, err := s.payments.GetByID(ctx, trID)
	if err != nil {
		return err
	}
	switch tr.Status {
	case models.TransactionStatusDisputed:
		return apperror.ErrTransactionFrozen
	case models.TransactionStatusReleased, models.TransactionStatusRefunded:
		return apperror.ErrAlreadySettled
	default:
		return apperror.ErrNoFundedTransaction
	}
}

func (s *PaymentService) getJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// round2 округляет до копеек.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
