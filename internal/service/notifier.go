package service

import "github.com/google/uuid"

// Событийные имена жизненного цикла, которые уходят в веб-сокеты.
const (
	EventJobAwarded        = "job.awarded"
	EventJobAssignment     = "job.assignment_accepted"
	EventJobFunded         = "job.funded"
	EventWorkStarted       = "job.work_started"
	EventWorkSubmitted     = "job.work_submitted"
	EventWorkReturned      = "job.work_returned"
	EventJobCompleted      = "job.completed"
	EventJobCancelled      = "job.cancelled"
	EventBidPlaced         = "bid.placed"
	EventDisputeOpened     = "dispute.opened"
	EventDisputeMessage    = "dispute.message"
	EventDisputeResolved   = "dispute.resolved"
	EventRescheduleOffered = "reschedule.offered"
	EventRescheduleClosed  = "reschedule.closed"
)

// Notifier доставляет событие пользователю, если тот подключён.
// Доставка негарантированная: события информационные, источник истины — БД.
type Notifier interface {
	NotifyUser(userID uuid.UUID, event string, payload any)
}

// NopNotifier — заглушка для тестов и офлайн-режима.
type NopNotifier struct{}

// NotifyUser ничего не делает.
func (NopNotifier) NotifyUser(userID uuid.UUID, event string, payload any) {}
