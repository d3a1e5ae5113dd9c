// Package cart implements the ordered collection of wager lines owned by a
// betting session, with duplicate prevention, batch undo and derived totals.
package cart

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// Cart is safe for concurrent use. Every mutation happens under one mutex,
// which is what serializes insertion of concurrently resolved candidates.
type Cart struct {
	mu      sync.Mutex
	lines   []domain.CartLine
	guard   *guard
	batches *batchStack
	newID   func() string
	now     func() time.Time
}

// Option customizes a Cart.
type Option func(*Cart)

// WithIDFunc overrides line and batch id generation.
func WithIDFunc(fn func() string) Option {
	return func(c *Cart) { c.newID = fn }
}

// WithClock overrides the time source used for AddedAt.
func WithClock(fn func() time.Time) Option {
	return func(c *Cart) { c.now = fn }
}

// New returns an empty cart.
func New(opts ...Option) *Cart {
	c := &Cart{
		guard:   newGuard(),
		batches: newBatchStack(),
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BatchResult describes one AddBatch call.
type BatchResult struct {
	BatchID string
	Added   []domain.CartLine
	Skipped []string // numbers dropped as duplicates
}

// IsDuplicate reports whether (betType, number) is already in the cart.
func (c *Cart) IsDuplicate(betType, number string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guard.isDuplicate(betType, number)
}

// Add inserts a single line as its own batch. It returns false, and leaves
// the cart unchanged, when the line would duplicate an existing one.
func (c *Cart) Add(in domain.LineInput) (domain.CartLine, bool, error) {
	res, err := c.AddBatch([]domain.LineInput{in})
	if err != nil {
		return domain.CartLine{}, false, err
	}
	if len(res.Added) == 0 {
		return domain.CartLine{}, false, nil
	}
	return res.Added[0], true, nil
}

// AddBatch inserts inputs in order as one undoable batch. Each input is
// re-checked against the duplicate guard at insertion; duplicates (including
// duplicates within inputs) are skipped and reported. Invalid amounts or
// rates reject the whole call before anything is inserted.
func (c *Cart) AddBatch(inputs []domain.LineInput) (BatchResult, error) {
	for _, in := range inputs {
		if err := validAmount(in.Amount); err != nil {
			return BatchResult{}, err
		}
		if !(in.PayoutRate > 0) || math.IsInf(in.PayoutRate, 0) {
			return BatchResult{}, fmt.Errorf("%w: payout rate for %s must be positive", domain.ErrValidation, in.Number)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := BatchResult{BatchID: c.newID()}
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		line := newLine(c.newID(), res.BatchID, in, c.now())
		if !c.guard.claim(line.BetType, line.Number, line.ID) {
			res.Skipped = append(res.Skipped, in.Number)
			continue
		}
		c.lines = append(c.lines, line)
		ids = append(ids, line.ID)
		res.Added = append(res.Added, withPotentialWin(line))
	}
	c.batches.push(res.BatchID, ids)
	if len(ids) == 0 {
		res.BatchID = ""
	}
	return res, nil
}

func newLine(id, batchID string, in domain.LineInput, at time.Time) domain.CartLine {
	line := domain.CartLine{
		ID:           id,
		BatchID:      batchID,
		BetType:      in.BetType,
		BetTypeLabel: in.BetTypeLabel,
		Number:       in.Number,
		Amount:       in.Amount,
		PayoutRate:   in.PayoutRate,
		AddedAt:      at,
	}
	if q := in.Quote; q != nil {
		line.RateFallback = q.Fallback
		if !q.Fallback {
			line.IsSpecialNumber = q.IsSpecialNumber
			line.SoldAmount = q.SoldAmount
			line.RemainingAmount = q.RemainingAmount
			line.MaxSaleAmount = q.MaxSaleAmount
			line.ConditionNote = q.ConditionNote
		}
	}
	return line
}

// UpdateAmount replaces the amount of exactly one line. Zero is accepted
// while editing; submission rejects it later.
func (c *Cart) UpdateAmount(id string, amount float64) (domain.CartLine, error) {
	if err := validAmount(amount); err != nil {
		return domain.CartLine{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return domain.CartLine{}, fmt.Errorf("cart: line %s: %w", id, domain.ErrNotFound)
	}
	c.lines[i].Amount = amount
	return withPotentialWin(c.lines[i]), nil
}

// Remove deletes exactly one line.
func (c *Cart) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("cart: line %s: %w", id, domain.ErrNotFound)
	}
	c.removeAt(i)
	c.batches.forget(id)
	return nil
}

// UndoLastBatch removes every remaining line of the most recent batch and
// returns them. It returns nil when there is nothing to undo.
func (c *Cart) UndoLastBatch() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.batches.pop()
	if !ok {
		return nil
	}
	removed := make([]domain.CartLine, 0, len(b.lineIDs))
	for _, id := range b.lineIDs {
		if i := c.indexOf(id); i >= 0 {
			removed = append(removed, withPotentialWin(c.lines[i]))
			c.removeAt(i)
		}
	}
	return removed
}

// BulkSetPrice sets amount on every line. Payout rates are untouched.
func (c *Cart) BulkSetPrice(amount float64) (int, error) {
	if err := validAmount(amount); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		c.lines[i].Amount = amount
	}
	return len(c.lines), nil
}

// Clear empties the cart and its undo history.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cart) clearLocked() {
	c.lines = nil
	c.guard.reset()
	c.batches.reset()
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// UndoDepth returns the number of batches that can be undone.
func (c *Cart) UndoDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches.depth()
}

// Lines returns a copy of the lines in insertion order with PotentialWin
// computed at read time.
func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linesLocked()
}

// Totals sums amounts and potential wins over the current lines.
func (c *Cart) Totals() domain.Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalsOf(c.lines)
}

// Snapshot returns lines and totals read under a single lock.
func (c *Cart) Snapshot() ([]domain.CartLine, domain.Totals) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linesLocked(), totalsOf(c.lines)
}

// ValidateForSubmit fails with ErrValidation when the cart is empty or any
// line has a non-positive amount.
func (c *Cart) ValidateForSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) == 0 {
		return fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}
	var zero int
	for _, l := range c.lines {
		if l.Amount <= 0 {
			zero++
		}
	}
	if zero > 0 {
		return fmt.Errorf("%w: %d line(s) have no amount", domain.ErrValidation, zero)
	}
	return nil
}

// BetLines converts the current lines into a bulk bet payload.
func (c *Cart) BetLines() []domain.BetLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	bets := make([]domain.BetLine, 0, len(c.lines))
	for _, l := range c.lines {
		bets = append(bets, domain.BetLine{BetType: l.BetType, Number: l.Number, Amount: l.Amount})
	}
	return bets
}

func (c *Cart) linesLocked() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	for i, l := range c.lines {
		out[i] = withPotentialWin(l)
	}
	return out
}

func (c *Cart) indexOf(id string) int {
	for i := range c.lines {
		if c.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	l := c.lines[i]
	c.guard.release(l.BetType, l.Number)
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

func withPotentialWin(l domain.CartLine) domain.CartLine {
	l.PotentialWin = l.Amount * l.PayoutRate
	return l
}

func totalsOf(lines []domain.CartLine) domain.Totals {
	t := domain.Totals{Lines: len(lines)}
	for _, l := range lines {
		t.TotalAmount += l.Amount
		t.TotalPotentialWin += l.Amount * l.PayoutRate
	}
	return t
}

func validAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return fmt.Errorf("%w: amount must be a non-negative number", domain.ErrValidation)
	}
	return nil
}
