// Package worker hosts the background collaborators of the engine: the SLA
// breach watcher and the notification registration hook.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vertice360/leadqual/internal/domain"
	"github.com/vertice360/leadqual/internal/service"
	"github.com/vertice360/leadqual/internal/session"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// SLAWatcher periodically scans sessions for expired SLA clocks and declares
// breaches. Declarations are idempotent per (session, clock), so repeated
// scans over the same expired deadline emit once.
type SLAWatcher struct {
	store    *session.Store
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

// NewSLAWatcher builds a watcher over the store.
func NewSLAWatcher(store *session.Store, logger *zap.Logger, interval time.Duration) *SLAWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &SLAWatcher{store: store, logger: logger, interval: interval, now: time.Now}
}

// Start runs the scan loop until ctx is cancelled.
func (w *SLAWatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("sla watcher started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla watcher stopped")
			return
		case <-ticker.C:
			w.Scan(ctx)
		}
	}
}

// Scan walks all sessions once and declares any due breaches. It returns the
// number of breaches declared on this pass.
func (w *SLAWatcher) Scan(ctx context.Context) int {
	nowMS := w.now().UnixMilli()
	declared := 0
	for _, sess := range w.store.List() {
		if sess.SLA == nil || !sess.Active() {
			continue
		}
		for _, slaType := range []domain.SLAType{domain.SLAAssignment, domain.SLADocValidation} {
			dueAt := sess.SLA.DueAt(slaType)
			if dueAt == 0 || dueAt > nowMS || sess.SLA.Breached(slaType) {
				continue
			}
			fresh, err := w.store.DeclareBreach(ctx, sess.ID, slaType)
			if err != nil {
				w.logger.Warn("breach declaration failed",
					zap.String("ticket_id", sess.ID),
					zap.String("sla_type", string(slaType)),
					zap.Error(err))
				continue
			}
			if !fresh {
				continue
			}
			declared++
			w.logger.Warn("sla breached",
				zap.String("ticket_id", sess.ID),
				zap.String("sla_type", string(slaType)),
				zap.Int64("due_at", dueAt))
			if slaType == domain.SLAAssignment {
				if err := w.store.Escalate(ctx, sess.ID, "SUPERVISORS", "assignment_sla_breached"); err != nil {
					w.logger.Warn("escalation failed", zap.String("ticket_id", sess.ID), zap.Error(err))
				}
			}
		}
	}
	return declared
}
