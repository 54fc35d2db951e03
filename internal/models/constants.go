package models

// JobStatus — статус заявки. Алиас строки, чтобы значения из базы и
// константы ниже сравнивались без преобразований.
type JobStatus = string

// Статусы заявок.
const (
	JobStatusDraft          = "draft"
	JobStatusOpen           = "open"
	JobStatusBidAccepted    = "bid_accepted"
	JobStatusPendingFunding = "pending_funding"
	JobStatusFunded         = "funded"
	JobStatusInProgress     = "in_progress"
	JobStatusWorkSubmitted  = "work_submitted"
	JobStatusCompleted      = "completed"
	JobStatusDisputed       = "disputed"
	JobStatusCancelled      = "cancelled"
	JobStatusUnbid          = "unbid"
)

// JobStatusTransitions — таблица допустимых переходов статуса заявки.
// Любой переход, отсутствующий в таблице, отклоняется до записи в базу.
var JobStatusTransitions = map[string][]string{
	JobStatusDraft:          {JobStatusOpen, JobStatusCancelled},
	JobStatusOpen:           {JobStatusBidAccepted, JobStatusUnbid, JobStatusCancelled},
	JobStatusBidAccepted:    {JobStatusPendingFunding, JobStatusOpen, JobStatusCancelled},
	JobStatusPendingFunding: {JobStatusFunded, JobStatusOpen, JobStatusCancelled},
	JobStatusFunded:         {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress:     {JobStatusWorkSubmitted, JobStatusDisputed, JobStatusCancelled},
	JobStatusWorkSubmitted:  {JobStatusCompleted, JobStatusInProgress, JobStatusDisputed},
	JobStatusCompleted:      {JobStatusDisputed},
	JobStatusDisputed:       {JobStatusInProgress, JobStatusCompleted, JobStatusCancelled},
	JobStatusUnbid:          {JobStatusOpen},
	JobStatusCancelled:      {},
}

// CanTransition проверяет переход по таблице статусов.
func CanTransition(from, to string) bool {
	allowed, ok := JobStatusTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalJobStatus сообщает, является ли статус терминальным.
func IsTerminalJobStatus(status string) bool {
	return len(JobStatusTransitions[status]) == 0
}

// BidStatus константы статусов ставок.
const (
	BidStatusActive    = "active"
	BidStatusWithdrawn = "withdrawn"
	BidStatusAccepted  = "accepted"
	BidStatusRejected  = "rejected"
)

// TransactionStatus константы статусов escrow транзакций.
// Переходы монотонны: initiated -> funded -> released | refunded.
// Статус disputed — маркер заморозки, обратимый только в funded.
const (
	TransactionStatusInitiated = "initiated"
	TransactionStatusFunded    = "funded"
	TransactionStatusReleased  = "released"
	TransactionStatusRefunded  = "refunded"
	TransactionStatusDisputed  = "disputed"
	TransactionStatusFailed    = "failed"
)

// DisputeStatus константы статусов споров.
const (
	DisputeStatusOpen        = "open"
	DisputeStatusUnderReview = "under_review"
	DisputeStatusResolved    = "resolved"
)

// DisputeAuthorSystem — служебный автор первого сообщения в переписке спора.
const DisputeAuthorSystem = "system"

// DisputeResolution — решение администратора по спору.
type DisputeResolution = string

// Варианты разрешения спора.
const (
	DisputeResolutionRefund  = "refund"
	DisputeResolutionRelease = "release"
	DisputeResolutionSplit   = "split"
)

// Роли пользователей платформы.
const (
	RolePoster    = "poster"
	RoleInstaller = "installer"
	RoleAdmin     = "admin"
)

// Стороны, участвующие в заявке.
const (
	PartyPoster    = "poster"
	PartyInstaller = "installer"
)

// RescheduleStatus статусы предложения о переносе даты работ.
const (
	RescheduleStatusPending  = "pending"
	RescheduleStatusAccepted = "accepted"
	RescheduleStatusRejected = "rejected"
)

// MinBidAmount — нижний порог суммы ставки в минорных единицах валюты.
const MinBidAmount = 100

// ValidJobStatuses список валидных статусов заявок.
var ValidJobStatuses = map[string]struct{}{
	JobStatusDraft:          {},
	JobStatusOpen:           {},
	JobStatusBidAccepted:    {},
	JobStatusPendingFunding: {},
	JobStatusFunded:         {},
	JobStatusInProgress:     {},
	JobStatusWorkSubmitted:  {},
	JobStatusCompleted:      {},
	JobStatusDisputed:       {},
	JobStatusCancelled:      {},
	JobStatusUnbid:          {},
}

// ValidRoles список валидных ролей.
var ValidRoles = map[string]struct{}{
	RolePoster:    {},
	RoleInstaller: {},
	RoleAdmin:     {},
}
