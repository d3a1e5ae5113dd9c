package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/lottobet/internal/domain"
	"github.com/alanyoungcy/lottobet/internal/metrics"
)

// BetPlacer submits a whole poy to the bet placement service.
type BetPlacer interface {
	PlaceBulkBets(ctx context.Context, token string, b domain.BulkBet) (string, error)
}

// Notifier delivers operator alerts for an event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// placeTimeout bounds one bulk bet placement.
const placeTimeout = 60 * time.Second

// Notification event types emitted by submissions.
const (
	NotifySubmissionSuccess = "submission_success"
	NotifySubmissionFailed  = "submission_failed"
)

// SubmitService runs the bulk submission state machine of a session and
// records the resulting receipt.
type SubmitService struct {
	sessions *SessionService
	placer   BetPlacer
	receipts domain.ReceiptStore
	archiver domain.ReceiptArchiver
	bus      domain.EventBus
	audit    domain.AuditStore
	locks    domain.LockManager
	lockTTL  time.Duration
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewSubmitService creates a SubmitService. Every collaborator except
// sessions and placer may be nil.
func NewSubmitService(
	sessions *SessionService,
	placer BetPlacer,
	receipts domain.ReceiptStore,
	archiver domain.ReceiptArchiver,
	bus domain.EventBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *SubmitService {
	return &SubmitService{
		sessions: sessions,
		placer:   placer,
		receipts: receipts,
		archiver: archiver,
		bus:      bus,
		audit:    audit,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "submit_service")),
	}
}

// WithLocks serializes submissions for the same owner and period across
// instances.
func (s *SubmitService) WithLocks(locks domain.LockManager, ttl time.Duration) *SubmitService {
	s.locks = locks
	s.lockTTL = ttl
	return s
}

// WithNotifier attaches an operator notifier.
func (s *SubmitService) WithNotifier(n Notifier) *SubmitService {
	s.notifier = n
	return s
}

// Submit sends the session's cart as one bulk bet. A call that arrives while
// another submission is in flight returns an Ignored outcome. A rejected
// submission leaves the cart intact and returns the outcome together with
// an error wrapping domain.ErrSubmission.
func (s *SubmitService) Submit(ctx context.Context, m domain.Member, sessionID, note string) (domain.SubmitOutcome, error) {
	sess, err := s.sessions.Session(m, sessionID)
	if err != nil {
		return domain.SubmitOutcome{}, err
	}

	prev := sess.State()
	started, err := sess.beginSubmit(s.now())
	if err != nil {
		return domain.SubmitOutcome{}, fmt.Errorf("submit_service: %w", err)
	}
	if !started {
		metrics.RecordSubmission(metrics.SubmitIgnored, 0)
		s.logger.InfoContext(ctx, "submit ignored, already in flight", slog.String("session_id", sess.ID))
		return domain.SubmitOutcome{State: domain.SubmitSubmitting, Ignored: true}, nil
	}

	if err := sess.Cart().ValidateForSubmit(); err != nil {
		sess.abortSubmit(prev)
		metrics.RecordSubmission(metrics.SubmitRejected, 0)
		return domain.SubmitOutcome{}, fmt.Errorf("submit_service: %w", err)
	}
	if sess.Period.ClosedAt(s.now()) {
		sess.abortSubmit(prev)
		metrics.RecordSubmission(metrics.SubmitRejected, 0)
		return domain.SubmitOutcome{}, fmt.Errorf("submit_service: period %s: %w", sess.Period.ID, domain.ErrPeriodClosed)
	}

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "submit:"+m.Owner+":"+sess.Period.ID, s.lockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			sess.abortSubmit(prev)
			metrics.RecordSubmission(metrics.SubmitIgnored, 0)
			s.logger.InfoContext(ctx, "submit ignored, lock held elsewhere", slog.String("session_id", sess.ID))
			return domain.SubmitOutcome{State: domain.SubmitSubmitting, Ignored: true}, nil
		case err != nil:
			s.logger.WarnContext(ctx, "submit lock unavailable, continuing", slog.String("error", err.Error()))
		default:
			defer unlock()
		}
	}

	lines, totals := sess.Cart().Snapshot()
	bets := sess.Cart().BetLines()

	// Once the bet is sent the submission runs to completion even if the
	// caller goes away; the backend may already have debited.
	ctx = context.WithoutCancel(ctx)
	placeCtx, cancel := context.WithTimeout(ctx, placeTimeout)
	start := s.now()
	poyID, err := s.placer.PlaceBulkBets(placeCtx, m.Token, domain.BulkBet{
		StockID: sess.Period.ID,
		Bets:    bets,
		Note:    note,
	})
	cancel()
	elapsed := s.now().Sub(start)
	if err != nil {
		return s.fail(ctx, sess, len(bets), elapsed, err)
	}

	if poyID == "" {
		poyID = "unassigned-" + uuid.NewString()
		s.logger.WarnContext(ctx, "bet service returned no poy id", slog.String("session_id", sess.ID))
	}
	receipt := domain.Receipt{
		PoyID:             poyID,
		SessionID:         sess.ID,
		Owner:             m.Owner,
		PeriodID:          sess.Period.ID,
		HuayName:          sess.Period.HuayName,
		Note:              note,
		Lines:             lines,
		TotalAmount:       totals.TotalAmount,
		TotalPotentialWin: totals.TotalPotentialWin,
		SubmittedAt:       s.now(),
	}
	sess.finishSuccess(poyID)
	metrics.RecordSubmission(metrics.SubmitSuccess, elapsed)

	s.logger.InfoContext(ctx, "poy submitted",
		slog.String("session_id", sess.ID),
		slog.String("poy_id", poyID),
		slog.Int("lines", len(lines)),
		slog.Float64("total_amount", totals.TotalAmount),
		slog.Duration("elapsed", elapsed),
	)
	s.sessions.resolver.InvalidatePeriod(ctx, sess.Period.ID)
	s.recordReceipt(ctx, &receipt)
	s.sessions.publish(ctx, sess, domain.EventSubmitted, map[string]any{"poy_id": poyID})
	s.notify(ctx, NotifySubmissionSuccess, "Poy submitted",
		fmt.Sprintf("poy %s: %d lines, total %.2f, period %s", poyID, len(lines), totals.TotalAmount, sess.Period.ID))

	return domain.SubmitOutcome{State: domain.SubmitSuccess, Receipt: &receipt}, nil
}

func (s *SubmitService) fail(ctx context.Context, sess *Session, lines int, elapsed time.Duration, cause error) (domain.SubmitOutcome, error) {
	reason := failureReason(cause)
	sess.finishFailure(reason)
	metrics.RecordSubmission(metrics.SubmitFailed, elapsed)

	s.logger.WarnContext(ctx, "poy submission failed",
		slog.String("session_id", sess.ID),
		slog.Int("lines", lines),
		slog.String("reason", reason),
		slog.String("error", cause.Error()),
	)
	s.appendStream(ctx, map[string]any{
		"state":      domain.SubmitFailed,
		"session_id": sess.ID,
		"period_id":  sess.Period.ID,
		"reason":     reason,
	})
	s.auditLog(ctx, "submission_failed", map[string]any{
		"session_id": sess.ID,
		"period_id":  sess.Period.ID,
		"lines":      lines,
		"reason":     reason,
	})
	s.sessions.publish(ctx, sess, domain.EventSubmitFailed, map[string]any{"reason": reason})
	s.notify(ctx, NotifySubmissionFailed, "Poy submission failed",
		fmt.Sprintf("session %s, period %s: %s", sess.ID, sess.Period.ID, reason))

	out := domain.SubmitOutcome{State: domain.SubmitFailed, Reason: reason}
	return out, fmt.Errorf("submit_service: %w: %w", domain.ErrSubmission, cause)
}

// failureReason extracts the human-readable message carried by a backend
// rejection, falling back to the error text.
func failureReason(err error) string {
	var r interface{ Reason() string }
	if errors.As(err, &r) && r.Reason() != "" {
		return r.Reason()
	}
	return err.Error()
}

// recordReceipt persists, archives and announces a receipt. Every step is
// best effort: the bet has already been placed.
func (s *SubmitService) recordReceipt(ctx context.Context, r *domain.Receipt) {
	if s.receipts != nil {
		if err := s.receipts.Create(ctx, *r); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist receipt",
				slog.String("poy_id", r.PoyID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.archiver != nil {
		path, err := s.archiver.ArchiveReceipt(ctx, *r)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to archive receipt",
				slog.String("poy_id", r.PoyID),
				slog.String("error", err.Error()),
			)
		} else {
			r.ArchivePath = path
			if s.receipts != nil {
				if err := s.receipts.SetArchivePath(ctx, r.PoyID, path); err != nil {
					s.logger.WarnContext(ctx, "failed to record archive path", slog.String("error", err.Error()))
				}
			}
		}
	}
	s.appendStream(ctx, map[string]any{
		"state":        domain.SubmitSuccess,
		"poy_id":       r.PoyID,
		"session_id":   r.SessionID,
		"period_id":    r.PeriodID,
		"lines":        len(r.Lines),
		"total_amount": r.TotalAmount,
	})
	s.auditLog(ctx, "submission_success", map[string]any{
		"poy_id":       r.PoyID,
		"session_id":   r.SessionID,
		"period_id":    r.PeriodID,
		"lines":        len(r.Lines),
		"total_amount": r.TotalAmount,
	})
}

func (s *SubmitService) appendStream(ctx context.Context, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal submission event", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.StreamAppend(ctx, domain.SubmissionStream, data); err != nil {
		s.logger.WarnContext(ctx, "failed to append submission event", slog.String("error", err.Error()))
	}
}

func (s *SubmitService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (s *SubmitService) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}
