package notify

import (
	"context"
	"time"

	"github.com/gwlsn/pipeline/internal/logging"
	"github.com/gwlsn/pipeline/internal/model"
)

// Ledger records delivered (and failed) notification attempts. Satisfied
// by *auditstore.Store; kept narrow here so notify never imports
// auditstore's sqlite dependency.
type Ledger interface {
	RecordNotification(jobID, event string, sentAt time.Time, success bool, notifyErr error) error
}

// AuditedNotifier wraps a DiscordNotifier so every delivery attempt is
// appended to the audit ledger, satisfying spec.md §6's
// notification-delivery ledger requirement.
type AuditedNotifier struct {
	Notifier *DiscordNotifier
	Ledger   Ledger
}

func (a *AuditedNotifier) NotifyEncodeSuccess(ctx context.Context, job *model.Job) error {
	err := a.Notifier.NotifyEncodeSuccess(ctx, job)
	a.record(job.ID, "encode_success", err)
	return err
}

func (a *AuditedNotifier) NotifyEncodeFailure(ctx context.Context, job *model.Job) error {
	err := a.Notifier.NotifyEncodeFailure(ctx, job)
	a.record(job.ID, "encode_failure", err)
	return err
}

func (a *AuditedNotifier) NotifyDeadLetter(ctx context.Context, job *model.Job) error {
	err := a.Notifier.NotifyDeadLetter(ctx, job)
	a.record(job.ID, "dead_letter", err)
	return err
}

func (a *AuditedNotifier) record(jobID, event string, notifyErr error) {
	if a.Ledger == nil {
		return
	}
	if err := a.Ledger.RecordNotification(jobID, event, time.Now(), notifyErr == nil, notifyErr); err != nil {
		logging.Warn("audit ledger write failed", "job_id", jobID, "event", event, "error", err)
	}
}
