package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/lottobet/internal/cart"
	"github.com/alanyoungcy/lottobet/internal/catalog"
	"github.com/alanyoungcy/lottobet/internal/domain"
	"github.com/alanyoungcy/lottobet/internal/metrics"
	"github.com/alanyoungcy/lottobet/internal/permute"
)

// PeriodSource loads a period and its rate table from the lottery backend.
type PeriodSource interface {
	Period(ctx context.Context, token, periodID string) (domain.Period, error)
	Rates(ctx context.Context, token string, lotteryID int64) ([]domain.LotteryRate, error)
}

// AddRequest asks for one entered number to be added. Shuffle overrides the
// session default when set.
type AddRequest struct {
	BetType string
	Number  string
	Shuffle *bool
}

// SessionService owns the in-memory betting sessions of this instance and
// drives every cart operation through the catalog, permutation engine,
// duplicate guard and rate resolver.
type SessionService struct {
	catalog        *catalog.Catalog
	periods        PeriodSource
	resolver       *RateResolver
	bus            domain.EventBus
	defaultShuffle bool
	idleTTL        time.Duration
	now            func() time.Time
	logger         *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a SessionService. bus may be nil.
func NewSessionService(
	cat *catalog.Catalog,
	periods PeriodSource,
	resolver *RateResolver,
	bus domain.EventBus,
	defaultShuffle bool,
	idleTTL time.Duration,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		catalog:        cat,
		periods:        periods,
		resolver:       resolver,
		bus:            bus,
		defaultShuffle: defaultShuffle,
		idleTTL:        idleTTL,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         logger.With(slog.String("component", "session_service")),
		sessions:       make(map[string]*Session),
	}
}

// Open starts a session for m against periodID.
func (s *SessionService) Open(ctx context.Context, m domain.Member, periodID string, shuffle *bool) (SessionView, error) {
	if periodID == "" {
		return SessionView{}, fmt.Errorf("session_service: open: %w: period id is required", domain.ErrValidation)
	}
	p, err := s.periods.Period(ctx, m.Token, periodID)
	if err != nil {
		return SessionView{}, fmt.Errorf("session_service: open: %w", err)
	}
	now := s.now()
	if p.ClosedAt(now) {
		return SessionView{}, fmt.Errorf("session_service: open %s: %w", periodID, domain.ErrPeriodClosed)
	}
	rates, err := s.periods.Rates(ctx, m.Token, p.LotteryID)
	if err != nil {
		return SessionView{}, fmt.Errorf("session_service: open: load rates: %w", err)
	}

	sh := s.defaultShuffle
	if shuffle != nil {
		sh = *shuffle
	}
	sess := newSession(uuid.NewString(), m.Owner, p, rates, sh, now)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetOpenSessions(n)

	s.logger.InfoContext(ctx, "session opened",
		slog.String("session_id", sess.ID),
		slog.String("period_id", p.ID),
		slog.Int("rates", len(rates)),
		slog.Bool("shuffle", sh),
	)
	s.publish(ctx, sess, domain.EventSessionOpened, map[string]any{"period_id": p.ID})
	return s.viewOf(sess), nil
}

// Session returns the open session with id owned by m. Sessions of other owners
// are reported as not found.
func (s *SessionService) Session(m domain.Member, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.Owner != m.Owner {
		return nil, fmt.Errorf("session_service: session %s: %w", id, domain.ErrNotFound)
	}
	return sess, nil
}

// View returns the cart view of a session.
func (s *SessionService) View(_ context.Context, m domain.Member, id string) (SessionView, error) {
	sess, err := s.Session(m, id)
	if err != nil {
		return SessionView{}, err
	}
	sess.touch(s.now())
	return s.viewOf(sess), nil
}

func (s *SessionService) viewOf(sess *Session) SessionView {
	return sess.view(s.catalog.List(), catalog.PreferredBetType)
}

// Close ends a session. Lookups still in flight for it are discarded when
// they complete.
func (s *SessionService) Close(ctx context.Context, m domain.Member, id string) error {
	sess, err := s.Session(m, id)
	if err != nil {
		return err
	}
	s.closeSession(ctx, sess, "closed")
	return nil
}

func (s *SessionService) closeSession(ctx context.Context, sess *Session, why string) {
	if !sess.close() {
		return
	}
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetOpenSessions(n)

	s.logger.InfoContext(ctx, "session closed",
		slog.String("session_id", sess.ID),
		slog.String("reason", why),
	)
	s.publish(ctx, sess, domain.EventSessionClosed, map[string]any{"reason": why})
}

// SweepIdle closes sessions idle for longer than the configured TTL and
// returns how many were closed.
func (s *SessionService) SweepIdle(ctx context.Context) int {
	if s.idleTTL <= 0 {
		return 0
	}
	now := s.now()

	s.mu.RLock()
	var idle []*Session
	for _, sess := range s.sessions {
		if sess.idleSince(now) > s.idleTTL {
			idle = append(idle, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range idle {
		s.closeSession(ctx, sess, "idle")
	}
	return len(idle)
}

// OpenCount returns the number of open sessions.
func (s *SessionService) OpenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// AddNumber validates an entered number, expands it when shuffle is on,
// drops candidates already in the cart, resolves a rate for each survivor
// concurrently and inserts them as one undoable batch.
func (s *SessionService) AddNumber(ctx context.Context, m domain.Member, id string, req AddRequest) (domain.AddSummary, error) {
	sess, def, rate, err := s.prepareAdd(m, id, req.BetType)
	if err != nil {
		return domain.AddSummary{}, err
	}
	if err := catalog.ValidateNumber(def, req.Number); err != nil {
		return domain.AddSummary{}, fmt.Errorf("session_service: add: %w", err)
	}

	shuffle := sess.Shuffle
	if req.Shuffle != nil {
		shuffle = *req.Shuffle
	}
	candidates := []string{req.Number}
	if shuffle && def.Shufflable() {
		candidates, err = permute.Expand(def.PermutationClass, req.Number)
		if err != nil {
			return domain.AddSummary{}, fmt.Errorf("session_service: add: %w", err)
		}
	}

	summary := domain.AddSummary{Requested: len(candidates)}
	fresh := make([]string, 0, len(candidates))
	for _, n := range candidates {
		if sess.Cart().IsDuplicate(def.Code, n) {
			summary.Skipped++
			continue
		}
		fresh = append(fresh, n)
	}
	if len(fresh) == 0 {
		metrics.RecordCandidates(0, summary.Skipped)
		summary.Lines = []domain.CartLine{}
		return summary, nil
	}

	quotes, fallbacks := s.resolver.ResolveAll(ctx, m.Token, sess.Period, def.Code, fresh, rate.Multiply)
	if sess.Closed() {
		s.logger.InfoContext(ctx, "discarding lookups for closed session",
			slog.String("session_id", sess.ID),
			slog.Int("candidates", len(fresh)),
		)
		return domain.AddSummary{}, fmt.Errorf("session_service: add: %w", domain.ErrSessionClosed)
	}

	inputs := make([]domain.LineInput, 0, len(fresh))
	notes := make(map[string]string)
	for i, n := range fresh {
		q := quotes[i]
		amount := rate.MinBet
		if amount <= 0 || q.Fallback {
			amount = 1
		}
		payout := q.Multiply
		if payout <= 0 {
			payout = rate.Multiply
		}
		if q.Restricted() {
			notes[n] = q.ConditionNote
		}
		inputs = append(inputs, domain.LineInput{
			BetType:      def.Code,
			BetTypeLabel: def.Label,
			Number:       n,
			Amount:       amount,
			PayoutRate:   payout,
			Quote:        &q,
		})
	}

	res, err := s.insert(ctx, sess, inputs)
	if err != nil {
		return domain.AddSummary{}, err
	}

	summary.BatchID = res.BatchID
	summary.Added = len(res.Added)
	summary.Skipped += len(res.Skipped)
	summary.Fallbacks = fallbacks
	summary.Lines = res.Added
	for _, l := range res.Added {
		if note, ok := notes[l.Number]; ok {
			summary.Notes = append(summary.Notes, domain.CandidateNote{Number: l.Number, Note: note})
		}
	}
	metrics.RecordCandidates(summary.Added, summary.Skipped)

	s.logger.InfoContext(ctx, "numbers added",
		slog.String("session_id", sess.ID),
		slog.String("bet_type", def.Code),
		slog.String("number", req.Number),
		slog.Int("requested", summary.Requested),
		slog.Int("added", summary.Added),
		slog.Int("skipped", summary.Skipped),
		slog.Int("fallbacks", summary.Fallbacks),
	)
	return summary, nil
}

// AddNumbers adds many numbers of one bet type at the period's base rate
// with no amount and no rate lookup, as one undoable batch.
func (s *SessionService) AddNumbers(ctx context.Context, m domain.Member, id, betType string, numbers []string) (domain.AddSummary, error) {
	sess, def, rate, err := s.prepareAdd(m, id, betType)
	if err != nil {
		return domain.AddSummary{}, err
	}
	if len(numbers) == 0 {
		return domain.AddSummary{}, fmt.Errorf("session_service: add numbers: %w: no numbers given", domain.ErrValidation)
	}

	inputs := make([]domain.LineInput, 0, len(numbers))
	for _, n := range numbers {
		if err := catalog.ValidateNumber(def, n); err != nil {
			return domain.AddSummary{}, fmt.Errorf("session_service: add numbers: %w", err)
		}
		inputs = append(inputs, domain.LineInput{
			BetType:      def.Code,
			BetTypeLabel: def.Label,
			Number:       n,
			PayoutRate:   rate.Multiply,
		})
	}
	return s.insertSummary(ctx, sess, inputs)
}

// LoadItems adds saved template items, each at its saved amount and the
// period's base rate, as one undoable batch.
func (s *SessionService) LoadItems(ctx context.Context, m domain.Member, id string, items []domain.TemplateItem) (domain.AddSummary, error) {
	sess, err := s.Session(m, id)
	if err != nil {
		return domain.AddSummary{}, err
	}
	if sess.Period.ClosedAt(s.now()) {
		return domain.AddSummary{}, fmt.Errorf("session_service: load: %w", domain.ErrPeriodClosed)
	}

	inputs := make([]domain.LineInput, 0, len(items))
	for _, it := range items {
		def, err := s.catalog.Lookup(it.BetType)
		if err != nil {
			return domain.AddSummary{}, fmt.Errorf("session_service: load: %w", err)
		}
		if err := catalog.ValidateNumber(def, it.Number); err != nil {
			return domain.AddSummary{}, fmt.Errorf("session_service: load: %w", err)
		}
		rate, err := sess.Rate(def)
		if err != nil {
			return domain.AddSummary{}, fmt.Errorf("session_service: load: %w", err)
		}
		inputs = append(inputs, domain.LineInput{
			BetType:      def.Code,
			BetTypeLabel: def.Label,
			Number:       it.Number,
			Amount:       it.Amount,
			PayoutRate:   rate.Multiply,
		})
	}
	return s.insertSummary(ctx, sess, inputs)
}

// UpdateAmount edits the amount of one line.
func (s *SessionService) UpdateAmount(ctx context.Context, m domain.Member, id, lineID string, amount float64) (domain.CartLine, error) {
	sess, err := s.Session(m, id)
	if err != nil {
		return domain.CartLine{}, err
	}
	var line domain.CartLine
	err = sess.mutate(s.now(), func(c *cart.Cart) error {
		line, err = c.UpdateAmount(lineID, amount)
		return err
	})
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("session_service: update amount: %w", err)
	}
	s.publish(ctx, sess, domain.EventCartChanged, map[string]any{"op": "update", "line_id": lineID})
	return line, nil
}

// RemoveLine deletes one line.
func (s *SessionService) RemoveLine(ctx context.Context, m domain.Member, id, lineID string) error {
	sess, err := s.Session(m, id)
	if err != nil {
		return err
	}
	err = sess.mutate(s.now(), func(c *cart.Cart) error {
		return c.Remove(lineID)
	})
	if err != nil {
		return fmt.Errorf("session_service: remove line: %w", err)
	}
	s.publish(ctx, sess, domain.EventCartChanged, map[string]any{"op": "remove", "line_id": lineID})
	return nil
}

// UndoLastBatch removes the lines produced by the most recent add.
func (s *SessionService) UndoLastBatch(ctx context.Context, m domain.Member, id string) ([]domain.CartLine, error) {
	sess, err := s.Session(m, id)
	if err != nil {
		return nil, err
	}
	var removed []domain.CartLine
	err = sess.mutate(s.now(), func(c *cart.Cart) error {
		removed = c.UndoLastBatch()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session_service: undo: %w", err)
	}
	if len(removed) > 0 {
		s.publish(ctx, sess, domain.EventCartChanged, map[string]any{"op": "undo", "removed": len(removed)})
	}
	return removed, nil
}

// BulkSetPrice sets the amount of every line.
func (s *SessionService) BulkSetPrice(ctx context.Context, m domain.Member, id string, amount float64) (int, error) {
	sess, err := s.Session(m, id)
	if err != nil {
		return 0, err
	}
	var n int
	err = sess.mutate(s.now(), func(c *cart.Cart) error {
		n, err = c.BulkSetPrice(amount)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("session_service: bulk price: %w", err)
	}
	s.publish(ctx, sess, domain.EventCartChanged, map[string]any{"op": "price", "amount": amount})
	return n, nil
}

// ClearCart empties the cart.
func (s *SessionService) ClearCart(ctx context.Context, m domain.Member, id string) error {
	sess, err := s.Session(m, id)
	if err != nil {
		return err
	}
	err = sess.mutate(s.now(), func(c *cart.Cart) error {
		c.Clear()
		return nil
	})
	if err != nil {
		return fmt.Errorf("session_service: clear: %w", err)
	}
	s.publish(ctx, sess, domain.EventCartChanged, map[string]any{"op": "clear"})
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (s *SessionService) prepareAdd(m domain.Member, id, betType string) (*Session, domain.BetTypeDefinition, domain.LotteryRate, error) {
	sess, err := s.Session(m, id)
	if err != nil {
		return nil, domain.BetTypeDefinition{}, domain.LotteryRate{}, err
	}
	if err := sess.mutate(s.now(), func(*cart.Cart) error { return nil }); err != nil {
		return nil, domain.BetTypeDefinition{}, domain.LotteryRate{}, fmt.Errorf("session_service: add: %w", err)
	}
	if sess.Period.ClosedAt(s.now()) {
		return nil, domain.BetTypeDefinition{}, domain.LotteryRate{}, fmt.Errorf("session_service: add: period %s: %w", sess.Period.ID, domain.ErrPeriodClosed)
	}
	def, err := s.catalog.Lookup(betType)
	if err != nil {
		return nil, domain.BetTypeDefinition{}, domain.LotteryRate{}, fmt.Errorf("session_service: add: %w", err)
	}
	rate, err := sess.Rate(def)
	if err != nil {
		return nil, domain.BetTypeDefinition{}, domain.LotteryRate{}, fmt.Errorf("session_service: add: %w", err)
	}
	return sess, def, rate, nil
}

func (s *SessionService) insert(ctx context.Context, sess *Session, inputs []domain.LineInput) (cart.BatchResult, error) {
	var res cart.BatchResult
	err := sess.mutate(s.now(), func(c *cart.Cart) error {
		var err error
		res, err = c.AddBatch(inputs)
		return err
	})
	if err != nil {
		return cart.BatchResult{}, fmt.Errorf("session_service: insert: %w", err)
	}
	if len(res.Added) > 0 {
		s.publish(ctx, sess, domain.EventLinesAdded, map[string]any{
			"batch_id": res.BatchID,
			"added":    len(res.Added),
			"skipped":  len(res.Skipped),
		})
	}
	return res, nil
}

func (s *SessionService) insertSummary(ctx context.Context, sess *Session, inputs []domain.LineInput) (domain.AddSummary, error) {
	res, err := s.insert(ctx, sess, inputs)
	if err != nil {
		return domain.AddSummary{}, err
	}
	metrics.RecordCandidates(len(res.Added), len(res.Skipped))
	lines := res.Added
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return domain.AddSummary{
		BatchID:   res.BatchID,
		Requested: len(inputs),
		Added:     len(res.Added),
		Skipped:   len(res.Skipped),
		Lines:     lines,
	}, nil
}

// publish sends a session event on the bus. Failures are logged only.
func (s *SessionService) publish(ctx context.Context, sess *Session, typ domain.SessionEventType, detail map[string]any) {
	if s.bus == nil {
		return
	}
	evt := domain.SessionEvent{
		Type:      typ,
		SessionID: sess.ID,
		Totals:    sess.Cart().Totals(),
		Detail:    detail,
		At:        s.now(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal session event", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, domain.SessionChannel(sess.ID), payload); err != nil {
		s.logger.WarnContext(ctx, "failed to publish session event",
			slog.String("session_id", sess.ID),
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}
