package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/lottobet/internal/cart"
	"github.com/alanyoungcy/lottobet/internal/domain"
)

// BetTypeRate is a bet type offered in a session together with the period's
// rate for it.
type BetTypeRate struct {
	domain.BetTypeDefinition
	Multiply     float64 `json:"multiply"`
	MinBet       float64 `json:"min_bet"`
	MaxBet       float64 `json:"max_bet"`
	MaxPerNumber float64 `json:"max_per_number"`
}

// SessionView is the read model of a session returned to clients.
type SessionView struct {
	ID          string             `json:"id"`
	Period      domain.Period      `json:"period"`
	Shuffle     bool               `json:"shuffle"`
	State       domain.SubmitState `json:"state"`
	Reason      string             `json:"reason,omitempty"`
	LastPoyID   string             `json:"last_poy_id,omitempty"`
	Lines       []domain.CartLine  `json:"lines"`
	Totals      domain.Totals      `json:"totals"`
	UndoDepth   int                `json:"undo_depth"`
	BetTypes    []BetTypeRate      `json:"bet_types"`
	DefaultType string             `json:"default_bet_type,omitempty"`
	OpenedAt    time.Time          `json:"opened_at"`
}

// Session is one member's betting session against one period. It owns its
// cart exclusively and carries the submission state machine.
type Session struct {
	ID       string
	Owner    string
	Period   domain.Period
	Shuffle  bool
	OpenedAt time.Time

	cart  *cart.Cart
	rates map[string]domain.LotteryRate

	mu         sync.Mutex
	state      domain.SubmitState
	reason     string
	lastPoyID  string
	closed     bool
	lastActive time.Time
}

func newSession(id, owner string, p domain.Period, rates []domain.LotteryRate, shuffle bool, now time.Time) *Session {
	byType := make(map[string]domain.LotteryRate, len(rates))
	for _, r := range rates {
		byType[r.BetType] = r
	}
	return &Session{
		ID:         id,
		Owner:      owner,
		Period:     p,
		Shuffle:    shuffle,
		OpenedAt:   now,
		cart:       cart.New(),
		rates:      byType,
		state:      domain.SubmitIdle,
		lastActive: now,
	}
}

// Cart returns the session's cart.
func (s *Session) Cart() *cart.Cart { return s.cart }

// Rate returns the period rate for betType. An empty rate table offers every
// catalog type at its default multiplier.
func (s *Session) Rate(def domain.BetTypeDefinition) (domain.LotteryRate, error) {
	if len(s.rates) == 0 {
		return domain.LotteryRate{BetType: def.Code, Multiply: def.BaseMultiplier, IsActive: true}, nil
	}
	r, ok := s.rates[def.Code]
	if !ok || r.Multiply <= 0 {
		return domain.LotteryRate{}, fmt.Errorf("%w: no rate for %s in period %s", domain.ErrValidation, def.Code, s.Period.ID)
	}
	return r, nil
}

// State returns the current submission state.
func (s *Session) State() domain.SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// mutate runs fn under the session lock after checking that the cart may be
// changed. Mutations are rejected while a submission is in flight so the
// submitted snapshot is exactly what gets cleared.
func (s *Session) mutate(now time.Time, fn func(c *cart.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.lastActive = now
	return fn(s.cart)
}

func (s *Session) mutableLocked() error {
	if s.closed {
		return fmt.Errorf("session %s: %w", s.ID, domain.ErrSessionClosed)
	}
	if s.state == domain.SubmitSubmitting {
		return fmt.Errorf("session %s: %w", s.ID, domain.ErrSubmitInFlight)
	}
	return nil
}

// beginSubmit moves the session into Submitting. It returns false without an
// error when a submission is already in flight.
func (s *Session) beginSubmit(now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("session %s: %w", s.ID, domain.ErrSessionClosed)
	}
	if s.state == domain.SubmitSubmitting {
		return false, nil
	}
	s.state = domain.SubmitSubmitting
	s.reason = ""
	s.lastActive = now
	return true, nil
}

// abortSubmit returns a session that never reached the network to its
// previous resting state.
func (s *Session) abortSubmit(prev domain.SubmitState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = prev
}

func (s *Session) finishSuccess(poyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
	s.state = domain.SubmitSuccess
	s.lastPoyID = poyID
}

func (s *Session) finishFailure(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.SubmitFailed
	s.reason = reason
}

func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SubmitSubmitting {
		return 0
	}
	return now.Sub(s.lastActive)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) view(catalogDefs []domain.BetTypeDefinition, preferred string) SessionView {
	s.mu.Lock()
	state, reason, poy := s.state, s.reason, s.lastPoyID
	s.mu.Unlock()

	lines, totals := s.cart.Snapshot()
	v := SessionView{
		ID:        s.ID,
		Period:    s.Period,
		Shuffle:   s.Shuffle,
		State:     state,
		Reason:    reason,
		LastPoyID: poy,
		Lines:     lines,
		Totals:    totals,
		UndoDepth: s.cart.UndoDepth(),
		OpenedAt:  s.OpenedAt,
	}
	for _, def := range catalogDefs {
		r, err := s.Rate(def)
		if err != nil {
			continue
		}
		v.BetTypes = append(v.BetTypes, BetTypeRate{
			BetTypeDefinition: def,
			Multiply:          r.Multiply,
			MinBet:            r.MinBet,
			MaxBet:            r.MaxBet,
			MaxPerNumber:      r.MaxPerNumber,
		})
		if def.Code == preferred {
			v.DefaultType = preferred
		}
	}
	if v.DefaultType == "" && len(v.BetTypes) > 0 {
		v.DefaultType = v.BetTypes[0].Code
	}
	return v
}
