package transport

import (
	"context"
	"log/slog"

	"signalbot/internal/audit"
	"signalbot/internal/domain"
)

// DeliveryRecorder stores delivery attempts; *audit.SQLiteLog implements it.
type DeliveryRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Audited records every delivery attempt of the wrapped transport. A failing
// recorder is logged and never fails the send.
type Audited struct {
	next     domain.Transport
	recorder DeliveryRecorder
	logger   *slog.Logger
}

func Audit(next domain.Transport, recorder DeliveryRecorder, logger *slog.Logger) *Audited {
	if logger == nil {
		logger = slog.Default()
	}
	return &Audited{next: next, recorder: recorder, logger: logger}
}

func (a *Audited) Send(ctx context.Context, payload domain.Payload) error {
	err := a.next.Send(ctx, payload)

	entry := audit.Entry{
		Kind:            string(payload.Kind()),
		Recipient:       payload.Recipient().Label(),
		TargetTimestamp: domain.TargetTimestamp(payload),
		Result:          audit.ResultOK,
	}
	if err != nil {
		entry.Result = audit.ResultFailed
		entry.Error = err.Error()
	}
	if recErr := a.recorder.Record(context.WithoutCancel(ctx), entry); recErr != nil {
		a.logger.Warn("audit record failed", "kind", entry.Kind, "err", recErr)
	}
	return err
}

func (a *Audited) Close() error { return a.next.Close() }
