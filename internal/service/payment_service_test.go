package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/installmarket/installmarket-backend/internal/config"
	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/pkg/apperror"
	"github.com/installmarket/installmarket-backend/internal/repository"
	"github.com/installmarket/installmarket-backend/internal/repository/common"
)

type mockPaymentStore struct {
	mock.Mock
}

func (m *mockPaymentStore) Create(ctx context.Context, tr *models.Transaction) error {
	args := m.Called(ctx, tr)
	return args.Error(0)
}

func (m *mockPaymentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockPaymentStore) GetLiveByJob(ctx context.Context, jobID uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockPaymentStore) GetLatestByJob(ctx context.Context, jobID uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockPaymentStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *mockPaymentStore) SetSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	args := m.Called(ctx, id, sessionID)
	return args.Error(0)
}

func (m *mockPaymentStore) MarkFunded(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPaymentStore) ClaimRelease(ctx context.Context, id uuid.UUID, transferID string) error {
	args := m.Called(ctx, id, transferID)
	return args.Error(0)
}

func (m *mockPaymentStore) RevertRelease(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPaymentStore) ClaimRefund(ctx context.Context, id uuid.UUID, transferID string) error {
	args := m.Called(ctx, id, transferID)
	return args.Error(0)
}

func (m *mockPaymentStore) RevertRefund(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPaymentStore) ClaimSplit(ctx context.Context, id uuid.UUID, payoutTransferID, refundTransferID string) error {
	args := m.Called(ctx, id, payoutTransferID, refundTransferID)
	return args.Error(0)
}

func (m *mockPaymentStore) RevertSplit(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPaymentStore) Freeze(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPaymentStore) Unfreeze(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPaymentStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockEscrowJobStore struct {
	mock.Mock
}

func (m *mockEscrowJobStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *mockEscrowJobStore) SetOtps(ctx context.Context, jobID uuid.UUID, startOtp, completionOtp string) error {
	args := m.Called(ctx, jobID, startOtp, completionOtp)
	return args.Error(0)
}

func (m *mockEscrowJobStore) MarkFunded(ctx context.Context, jobID, changedBy uuid.UUID) error {
	args := m.Called(ctx, jobID, changedBy)
	return args.Error(0)
}

type mockEscrowBidStore struct {
	mock.Mock
}

func (m *mockEscrowBidStore) GetAcceptedByJob(ctx context.Context, jobID uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockEscrowBidStore) RejectOthers(ctx context.Context, jobID, acceptedBidID uuid.UUID) error {
	args := m.Called(ctx, jobID, acceptedBidID)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateOrder(ctx context.Context, orderID string, amount float64) (string, error) {
	args := m.Called(ctx, orderID, amount)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) VerifyPayment(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGateway) CreatePayout(ctx context.Context, transferID, payeeID string, amount float64) error {
	args := m.Called(ctx, transferID, payeeID, amount)
	return args.Error(0)
}

func (m *mockGateway) ProcessRefund(ctx context.Context, transferID, orderID string, amount float64) error {
	args := m.Called(ctx, transferID, orderID, amount)
	return args.Error(0)
}

// recordingNotifier собирает события для проверок вместо отправки в сокет.
type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) NotifyUser(userID uuid.UUID, event string, payload any) {
	n.events = append(n.events, event)
}

var testEscrowCfg = config.EscrowConfig{
	CommissionRate: 0.05,
	PosterFeeRate:  0.02,
}

func newPaymentFixture() (*mockPaymentStore, *mockEscrowJobStore, *mockEscrowBidStore, *mockGateway, *PaymentService) {
	payments := new(mockPaymentStore)
	jobs := new(mockEscrowJobStore)
	bids := new(mockEscrowBidStore)
	gw := new(mockGateway)
	svc := NewPaymentService(payments, jobs, bids, gw, nil, testEscrowCfg)
	return payments, jobs, bids, gw, svc
}

func pendingFundingJob(posterID, installerID uuid.UUID) *models.Job {
	return &models.Job{
		ID:                 uuid.New(),
		PosterID:           posterID,
		AwardedInstallerID: &installerID,
		Status:             models.JobStatusPendingFunding,
	}
}

func TestPaymentService_CreatePaymentOrder_FeeBreakdown(t *testing.T) {
	payments, jobs, bids, gw, svc := newPaymentFixture()
	ctx := context.Background()
	posterID := uuid.New()
	installerID := uuid.New()
	job := pendingFundingJob(posterID, installerID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	payments.On("GetLiveByJob", ctx, job.ID).Return(nil, repository.ErrTransactionNotFound)
	bids.On("GetAcceptedByJob", ctx, job.ID).Return(&models.Bid{
		ID:          uuid.New(),
		JobID:       job.ID,
		InstallerID: installerID,
		Amount:      6000,
		Status:      models.BidStatusAccepted,
	}, nil)
	payments.On("Create", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
	gw.On("CreateOrder", ctx, mock.AnythingOfType("string"), 6120.0).Return("sess_123", nil)
	payments.On("SetSessionID", ctx, mock.Anything, "sess_123").Return(nil)

	order, err := svc.CreatePaymentOrder(ctx, job.ID, posterID)
	assert.NoError(t, err)
	assert.Equal(t, "sess_123", order.SessionID)

	tr := order.Transaction
	assert.Equal(t, 300.0, tr.Commission)
	assert.Equal(t, 120.0, tr.PosterFee)
	assert.Equal(t, 6120.0, tr.TotalPaidByPoster)
	assert.Equal(t, 5700.0, tr.PayoutToInstaller)
	assert.Equal(t, installerID, *tr.PayeeID)
	payments.AssertExpectations(t)
}

func TestPaymentService_CreatePaymentOrder_TipGoesToInstaller(t *testing.T) {
	payments, jobs, bids, gw, svc := newPaymentFixture()
	ctx := context.Background()
	posterID := uuid.New()
	installerID := uuid.New()
	job := pendingFundingJob(posterID, installerID)
	job.Tip = 500

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	payments.On("GetLiveByJob", ctx, job.ID).Return(nil, repository.ErrTransactionNotFound)
	bids.On("GetAcceptedByJob", ctx, job.ID).Return(&models.Bid{
		ID: uuid.New(), JobID: job.ID, InstallerID: installerID, Amount: 6000,
	}, nil)
	payments.On("Create", ctx, mock.Anything).Return(nil)
	gw.On("CreateOrder", ctx, mock.Anything, 6620.0).Return("sess_tip", nil)
	payments.On("SetSessionID", ctx, mock.Anything, "sess_tip").Return(nil)

	order, err := svc.CreatePaymentOrder(ctx, job.ID, posterID)
	assert.NoError(t, err)
	// Надбавка не облагается комиссией и целиком уходит монтажнику.
	assert.Equal(t, 300.0, order.Transaction.Commission)
	assert.Equal(t, 6620.0, order.Transaction.TotalPaidByPoster)
	assert.Equal(t, 6200.0, order.Transaction.PayoutToInstaller)
}

func TestPaymentService_CreatePaymentOrder_ReusesInitiated(t *testing.T) {
	payments, jobs, _, gw, svc := newPaymentFixture()
	ctx := context.Background()
	posterID := uuid.New()
	installerID := uuid.New()
	job := pendingFundingJob(posterID, installerID)

	sessionID := "sess_existing"
	existing := &models.Transaction{
		ID:               uuid.New(),
		JobID:            job.ID,
		Status:           models.TransactionStatusInitiated,
		GatewaySessionID: &sessionID,
	}
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	payments.On("GetLiveByJob", ctx, job.ID).Return(existing, nil)

	order, err := svc.CreatePaymentOrder(ctx, job.ID, posterID)
	assert.NoError(t, err)
	assert.Equal(t, existing.ID, order.Transaction.ID)
	assert.Equal(t, sessionID, order.SessionID)
	gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPaymentService_CreatePaymentOrder_WrongStatus(t *testing.T) {
	_, jobs, _, _, svc := newPaymentFixture()
	ctx := context.Background()
	posterID := uuid.New()
	installerID := uuid.New()
	job := pendingFundingJob(posterID, installerID)
	job.Status = models.JobStatusOpen

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.CreatePaymentOrder(ctx, job.ID, posterID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestPaymentService_CreatePaymentOrder_NotOwner(t *testing.T) {
	_, jobs, _, _, svc := newPaymentFixture()
	ctx := context.Background()
	installerID := uuid.New()
	job := pendingFundingJob(uuid.New(), installerID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.CreatePaymentOrder(ctx, job.ID, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
}

func TestPaymentService_VerifyPayment_MintsOtpsAndClosesBids(t *testing.T) {
	payments, jobs, bids, gw, _ := newPaymentFixture()
	notifier := &recordingNotifier{}
	svc := NewPaymentService(payments, jobs, bids, gw, notifier, testEscrowCfg)
	ctx := context.Background()
	posterID := uuid.New()
	installerID := uuid.New()
	job := pendingFundingJob(posterID, installerID)

	tr := &models.Transaction{
		ID:             uuid.New(),
		JobID:          job.ID,
		Status:         models.TransactionStatusInitiated,
		GatewayOrderID: "order_x",
	}
	funded := &models.Transaction{ID: tr.ID, JobID: job.ID, Status: models.TransactionStatusFunded}
	acceptedBid := &models.Bid{ID: uuid.New(), JobID: job.ID, InstallerID: installerID}

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	payments.On("GetLiveByJob", ctx, job.ID).Return(tr, nil)
	gw.On("VerifyPayment", ctx, "order_x").Return(true, nil)
	payments.On("MarkFunded", ctx, tr.ID).Return(nil)
	jobs.On("SetOtps", ctx, job.ID, mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil)
	jobs.On("MarkFunded", ctx, job.ID, posterID).Return(nil)
	bids.On("GetAcceptedByJob", ctx, job.ID).Return(acceptedBid, nil)
	bids.On("RejectOthers", ctx, job.ID, acceptedBid.ID).Return(nil)
	payments.On("GetByID", ctx, tr.ID).Return(funded, nil)

	got, err := svc.VerifyPayment(ctx, job.ID, posterID)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFunded, got.Status)
	assert.Contains(t, notifier.events, EventJobFunded)
	jobs.AssertExpectations(t)
	bids.AssertExpectations(t)
}

func TestPaymentService_VerifyPayment_AlreadyFundedIsNoop(t *testing.T) {
	payments, jobs, _, gw, svc := newPaymentFixture()
	ctx := context.Background()
	posterID := uuid.New()
	installerID := uuid.New()
	job := pendingFundingJob(posterID, installerID)

	tr := &models.Transaction{ID: uuid.New(), JobID: job.ID, Status: models.TransactionStatusFunded}
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	payments.On("GetLiveByJob", ctx, job.ID).Return(tr, nil)

	got, err := svc.VerifyPayment(ctx, job.ID, posterID)
	assert.NoError(t, err)
	assert.Equal(t, tr, got)
	gw.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything)
}

func TestPaymentService_VerifyPayment_NotPaidYet(t *testing.T) {
	payments, jobs, _, gw, svc := newPaymentFixture()
	ctx := context.Background()
	posterID := uuid.New()
	installerID := uuid.New()
	job := pendingFundingJob(posterID, installerID)

	tr := &models.Transaction{ID: uuid.New(), JobID: job.ID, Status: models.TransactionStatusInitiated, GatewayOrderID: "order_x"}
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	payments.On("GetLiveByJob", ctx, job.ID).Return(tr, nil)
	gw.On("VerifyPayment", ctx, "order_x").Return(false, nil)

	_, err := svc.VerifyPayment(ctx, job.ID, posterID)
	assert.Error(t, err)
	payments.AssertNotCalled(t, "MarkFunded", mock.Anything, mock.Anything)
}

func TestPaymentService_ReleaseFunds_Success(t *testing.T) {
	payments, _, _, gw, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()
	installerID := uuid.New()

	tr := &models.Transaction{
		ID:                uuid.New(),
		JobID:             jobID,
		PayeeID:           &installerID,
		Status:            models.TransactionStatusFunded,
		PayoutToInstaller: 5700,
	}
	released := &models.Transaction{ID: tr.ID, Status: models.TransactionStatusReleased}

	payments.On("GetLiveByJob", ctx, jobID).Return(tr, nil)
	payments.On("ClaimRelease", ctx, tr.ID, mock.AnythingOfType("string")).Return(nil)
	gw.On("CreatePayout", ctx, mock.AnythingOfType("string"), installerID.String(), 5700.0).Return(nil)
	payments.On("GetByID", ctx, tr.ID).Return(released, nil)

	got, err := svc.ReleaseFunds(ctx, jobID, installerID)
	assert.NoError(t, err)
	assert.Equal(t, models.TransactionStatusReleased, got.Status)
	payments.AssertNotCalled(t, "RevertRelease", mock.Anything, mock.Anything)
}

func TestPaymentService_ReleaseFunds_GatewayFailureReverts(t *testing.T) {
	payments, _, _, gw, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()
	installerID := uuid.New()

	tr := &models.Transaction{
		ID:                uuid.New(),
		JobID:             jobID,
		PayeeID:           &installerID,
		Status:            models.TransactionStatusFunded,
		PayoutToInstaller: 5700,
	}
	payments.On("GetLiveByJob", ctx, jobID).Return(tr, nil)
	payments.On("ClaimRelease", ctx, tr.ID, mock.AnythingOfType("string")).Return(nil)
	gw.On("CreatePayout", ctx, mock.Anything, installerID.String(), 5700.0).Return(errors.New("timeout"))
	payments.On("RevertRelease", ctx, tr.ID).Return(nil)

	_, err := svc.ReleaseFunds(ctx, jobID, installerID)
	assert.Error(t, err)
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeGateway, appErr.Code)
	payments.AssertCalled(t, "RevertRelease", ctx, tr.ID)
}

func TestPaymentService_ReleaseFunds_AlreadySettled(t *testing.T) {
	payments, _, _, gw, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()

	released := &models.Transaction{ID: uuid.New(), JobID: jobID, Status: models.TransactionStatusReleased}
	payments.On("GetLiveByJob", ctx, jobID).Return(nil, repository.ErrTransactionNotFound)
	payments.On("GetLatestByJob", ctx, jobID).Return(released, nil)

	_, err := svc.ReleaseFunds(ctx, jobID, uuid.New())
	assert.True(t, apperror.IsAlreadySettled(err))
	gw.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_ReleaseFunds_LostClaimRace(t *testing.T) {
	payments, _, _, gw, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()
	installerID := uuid.New()

	tr := &models.Transaction{
		ID:      uuid.New(),
		JobID:   jobID,
		PayeeID: &installerID,
		Status:  models.TransactionStatusFunded,
	}
	payments.On("GetLiveByJob", ctx, jobID).Return(tr, nil)
	payments.On("ClaimRelease", ctx, tr.ID, mock.Anything).Return(common.ErrStateMismatch)
	payments.On("GetByID", ctx, tr.ID).Return(&models.Transaction{
		ID: tr.ID, Status: models.TransactionStatusReleased,
	}, nil)

	_, err := svc.ReleaseFunds(ctx, jobID, installerID)
	assert.True(t, apperror.IsAlreadySettled(err))
	gw.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_ReleaseFunds_FrozenBlocksSettlement(t *testing.T) {
	payments, _, _, _, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()

	tr := &models.Transaction{ID: uuid.New(), JobID: jobID, Status: models.TransactionStatusDisputed}
	payments.On("GetLiveByJob", ctx, jobID).Return(tr, nil)

	_, err := svc.ReleaseFunds(ctx, jobID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrTransactionFrozen)
}

func TestPaymentService_SplitFunds_Arithmetic(t *testing.T) {
	payments, _, _, gw, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()
	installerID := uuid.New()

	tr := &models.Transaction{
		ID:                uuid.New(),
		JobID:             jobID,
		PayeeID:           &installerID,
		Status:            models.TransactionStatusFunded,
		GatewayOrderID:    "order_x",
		PayoutToInstaller: 5700,
	}
	settled := &models.Transaction{ID: tr.ID, Status: models.TransactionStatusReleased}

	payments.On("GetLiveByJob", ctx, jobID).Return(tr, nil)
	payments.On("ClaimSplit", ctx, tr.ID, mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil)
	gw.On("CreatePayout", ctx, mock.Anything, installerID.String(), 3990.0).Return(nil)
	gw.On("ProcessRefund", ctx, mock.Anything, "order_x", 1710.0).Return(nil)
	payments.On("GetByID", ctx, tr.ID).Return(settled, nil)

	res, err := svc.SplitFunds(ctx, jobID, uuid.New(), 70)
	assert.NoError(t, err)
	assert.Equal(t, 3990.0, res.PayoutAmount)
	assert.Equal(t, 1710.0, res.RefundAmount)
	// Сумма частей равна распределяемому пулу.
	assert.Equal(t, tr.PayoutToInstaller, res.PayoutAmount+res.RefundAmount)
}

func TestPaymentService_SplitFunds_InvalidPercent(t *testing.T) {
	_, _, _, _, svc := newPaymentFixture()
	ctx := context.Background()

	for _, pct := range []float64{0, -10, 100, 150} {
		_, err := svc.SplitFunds(ctx, uuid.New(), uuid.New(), pct)
		assert.True(t, apperror.IsValidation(err), "процент %v должен отклоняться", pct)
	}
}

func TestPaymentService_SplitFunds_PayoutFailureReverts(t *testing.T) {
	payments, _, _, gw, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()
	installerID := uuid.New()

	tr := &models.Transaction{
		ID:                uuid.New(),
		JobID:             jobID,
		PayeeID:           &installerID,
		Status:            models.TransactionStatusFunded,
		PayoutToInstaller: 1000,
	}
	payments.On("GetLiveByJob", ctx, jobID).Return(tr, nil)
	payments.On("ClaimSplit", ctx, tr.ID, mock.Anything, mock.Anything).Return(nil)
	gw.On("CreatePayout", ctx, mock.Anything, installerID.String(), 500.0).Return(errors.New("timeout"))
	payments.On("RevertSplit", ctx, tr.ID).Return(nil)

	_, err := svc.SplitFunds(ctx, jobID, uuid.New(), 50)
	assert.Error(t, err)
	payments.AssertCalled(t, "RevertSplit", ctx, tr.ID)
	gw.AssertNotCalled(t, "ProcessRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_FreezeFunds_Idempotent(t *testing.T) {
	payments, _, _, _, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()

	tr := &models.Transaction{ID: uuid.New(), JobID: jobID, Status: models.TransactionStatusDisputed}
	payments.On("GetLiveByJob", ctx, jobID).Return(tr, nil)

	assert.NoError(t, svc.FreezeFunds(ctx, jobID))
	payments.AssertNotCalled(t, "Freeze", mock.Anything, mock.Anything)
}

func TestPaymentService_FreezeFunds_NoTransaction(t *testing.T) {
	payments, _, _, _, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()

	payments.On("GetLiveByJob", ctx, jobID).Return(nil, repository.ErrTransactionNotFound)

	err := svc.FreezeFunds(ctx, jobID)
	assert.ErrorIs(t, err, apperror.ErrNoFundedTransaction)
}

func TestPaymentService_AbandonInitiated(t *testing.T) {
	payments, _, _, _, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()

	tr := &models.Transaction{ID: uuid.New(), JobID: jobID, Status: models.TransactionStatusInitiated}
	payments.On("GetLiveByJob", ctx, jobID).Return(tr, nil)
	payments.On("MarkFailed", ctx, tr.ID).Return(nil)

	assert.NoError(t, svc.AbandonInitiated(ctx, jobID))
	payments.AssertExpectations(t)
}

func TestPaymentService_AbandonInitiated_NoSession(t *testing.T) {
	payments, _, _, _, svc := newPaymentFixture()
	ctx := context.Background()
	jobID := uuid.New()

	payments.On("GetLiveByJob", ctx, jobID).Return(nil, repository.ErrTransactionNotFound)

	assert.NoError(t, svc.AbandonInitiated(ctx, jobID))
}

func TestPaymentService_GetJobTransaction_OutsiderForbidden(t *testing.T) {
	_, jobs, _, _, svc := newPaymentFixture()
	ctx := context.Background()
	installerID := uuid.New()
	job := pendingFundingJob(uuid.New(), installerID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.GetJobTransaction(ctx, job.ID, uuid.New(), models.RoleInstaller)
	assert.True(t, apperror.IsForbidden(err))
}
