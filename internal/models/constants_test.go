package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{JobStatusDraft, JobStatusOpen},
		{JobStatusOpen, JobStatusBidAccepted},
		{JobStatusBidAccepted, JobStatusPendingFunding},
		{JobStatusBidAccepted, JobStatusOpen},
		{JobStatusPendingFunding, JobStatusFunded},
		{JobStatusPendingFunding, JobStatusCancelled},
		{JobStatusFunded, JobStatusInProgress},
		{JobStatusInProgress, JobStatusWorkSubmitted},
		{JobStatusInProgress, JobStatusDisputed},
		{JobStatusWorkSubmitted, JobStatusCompleted},
		{JobStatusWorkSubmitted, JobStatusInProgress},
		{JobStatusCompleted, JobStatusDisputed},
		{JobStatusDisputed, JobStatusCancelled},
		{JobStatusUnbid, JobStatusOpen},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s должен быть разрешён", tr[0], tr[1])
	}

	forbidden := [][2]string{
		{JobStatusDraft, JobStatusFunded},
		{JobStatusOpen, JobStatusInProgress},
		{JobStatusFunded, JobStatusCompleted},
		{JobStatusFunded, JobStatusOpen},
		{JobStatusCompleted, JobStatusOpen},
		{JobStatusCancelled, JobStatusOpen},
		{JobStatusWorkSubmitted, JobStatusCancelled},
		{"unknown", JobStatusOpen},
	}
	for _, tr := range forbidden {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s должен отклоняться", tr[0], tr[1])
	}
}

func TestCanTransition_NoSelfLoops(t *testing.T) {
	for status := range JobStatusTransitions {
		assert.False(t, CanTransition(status, status), "петля на %s", status)
	}
}

func TestIsTerminalJobStatus(t *testing.T) {
	assert.True(t, IsTerminalJobStatus(JobStatusCancelled))
	assert.False(t, IsTerminalJobStatus(JobStatusCompleted)) // из completed ещё открывают спор
	assert.False(t, IsTerminalJobStatus(JobStatusOpen))
}

func TestTransitionTable_CoversAllStatuses(t *testing.T) {
	for status := range ValidJobStatuses {
		_, ok := JobStatusTransitions[status]
		assert.True(t, ok, "статус %s отсутствует в таблице переходов", status)
	}
	for status, targets := range JobStatusTransitions {
		_, ok := ValidJobStatuses[status]
		assert.True(t, ok, "неизвестный статус %s в таблице", status)
		for _, to := range targets {
			_, ok := ValidJobStatuses[to]
			assert.True(t, ok, "переход %s -> %s ведёт в неизвестный статус", status, to)
		}
	}
}

func TestJob_Participants(t *testing.T) {
	posterID := uuid.New()
	installerID := uuid.New()
	job := &Job{PosterID: posterID, AwardedInstallerID: &installerID}

	assert.True(t, job.IsOwnedBy(posterID))
	assert.False(t, job.IsOwnedBy(installerID))
	assert.True(t, job.IsAwardedTo(installerID))
	assert.True(t, job.IsParticipant(posterID))
	assert.True(t, job.IsParticipant(installerID))
	assert.False(t, job.IsParticipant(uuid.New()))

	unassigned := &Job{PosterID: posterID}
	assert.False(t, unassigned.IsAwardedTo(installerID))
}

func TestTransaction_Lifecycle(t *testing.T) {
	for _, status := range []string{TransactionStatusInitiated, TransactionStatusFunded, TransactionStatusDisputed} {
		tr := &Transaction{Status: status}
		assert.True(t, tr.IsLive(), "статус %s должен быть живым", status)
		assert.False(t, tr.IsSettled())
	}
	for _, status := range []string{TransactionStatusReleased, TransactionStatusRefunded} {
		tr := &Transaction{Status: status}
		assert.False(t, tr.IsLive())
		assert.True(t, tr.IsSettled(), "статус %s должен считаться закрытым", status)
	}
	failed := &Transaction{Status: TransactionStatusFailed}
	assert.False(t, failed.IsLive())
	assert.False(t, failed.IsSettled())
}

func TestDispute_IsParty(t *testing.T) {
	requesterID := uuid.New()
	posterID := uuid.New()
	installerID := uuid.New()
	d := &Dispute{RequesterID: requesterID, PosterID: &posterID, InstallerID: &installerID}

	assert.True(t, d.IsParty(requesterID))
	assert.True(t, d.IsParty(posterID))
	assert.True(t, d.IsParty(installerID))
	assert.False(t, d.IsParty(uuid.New()))
}
