package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/lottobet/internal/catalog"
	"github.com/alanyoungcy/lottobet/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testMember = domain.Member{Token: "tok", Owner: "owner-1"}

func testPeriod() domain.Period {
	return domain.Period{
		ID:        "42",
		LotteryID: 3,
		HuayCode:  "gov",
		HuayName:  "Thai Gov",
		CloseTime: time.Now().Add(time.Hour),
	}
}

func testRates() []domain.LotteryRate {
	return []domain.LotteryRate{
		{BetType: catalog.TwoTop, Multiply: 90, MinBet: 5, IsActive: true},
		{BetType: catalog.ThreeTop, Multiply: 900, MinBet: 1, IsActive: true},
		{BetType: catalog.ThreeTode, Multiply: 150, MinBet: 1, IsActive: true},
	}
}

type fakePeriods struct {
	period domain.Period
	rates  []domain.LotteryRate
}

func (f *fakePeriods) Period(_ context.Context, _ string, id string) (domain.Period, error) {
	if id != f.period.ID {
		return domain.Period{}, domain.ErrNotFound
	}
	return f.period, nil
}

func (f *fakePeriods) Rates(context.Context, string, int64) ([]domain.LotteryRate, error) {
	return f.rates, nil
}

// fakeChecker answers rate checks from a table. Numbers listed in fail return
// an error. When gate is set every call blocks until it is closed.
type fakeChecker struct {
	mu     sync.Mutex
	quotes map[string]domain.RateQuote
	fail   map[string]bool
	gate   chan struct{}
	calls  atomic.Int32
	seen   []domain.RateCheck
}

func (f *fakeChecker) CheckMultiply(ctx context.Context, _ string, rc domain.RateCheck) (domain.RateQuote, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, rc)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return domain.RateQuote{}, ctx.Err()
		}
	}
	if f.fail[rc.PoyNumber] {
		return domain.RateQuote{}, errors.New("connection reset")
	}
	if q, ok := f.quotes[rc.PoyNumber]; ok {
		return q, nil
	}
	return domain.RateQuote{Multiply: rc.Multiply, Result: 1, Admissible: true}, nil
}

type fakePlacer struct {
	poyID   string
	err     error
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	last    domain.BulkBet
	ctxErr  error
}

func (f *fakePlacer) PlaceBulkBets(ctx context.Context, _ string, b domain.BulkBet) (string, error) {
	f.calls.Add(1)
	f.last = b
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		f.ctxErr = err
		return "", err
	}
	return f.poyID, f.err
}

type reasonErr struct{ msg string }

func (e *reasonErr) Error() string  { return "upstream: " + e.msg }
func (e *reasonErr) Reason() string { return e.msg }

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streams   map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streams: map[string][][]byte{}}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

func (b *fakeBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

type memReceipts struct {
	mu   sync.Mutex
	rows map[string]domain.Receipt
}

func newMemReceipts() *memReceipts { return &memReceipts{rows: map[string]domain.Receipt{}} }

func (m *memReceipts) Create(_ context.Context, r domain.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[r.PoyID]; ok {
		return domain.ErrAlreadyExists
	}
	m.rows[r.PoyID] = r
	return nil
}

func (m *memReceipts) GetByPoyID(_ context.Context, id string) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return domain.Receipt{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memReceipts) ListByOwner(_ context.Context, owner string, _ domain.ListOpts) ([]domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Receipt
	for _, r := range m.rows {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReceipts) ListBefore(_ context.Context, before time.Time) ([]domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Receipt
	for _, r := range m.rows {
		if r.SubmittedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReceipts) SetArchivePath(_ context.Context, id, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.ArchivePath = path
	m.rows[id] = r
	return nil
}

type fakeArchiver struct{ archived []string }

func (a *fakeArchiver) ArchiveReceipt(_ context.Context, r domain.Receipt) (string, error) {
	a.archived = append(a.archived, r.PoyID)
	return domain.ReceiptPath(r.PoyID), nil
}

func (a *fakeArchiver) ArchiveBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, nil
}

type memTemplates struct {
	mu   sync.Mutex
	rows map[string]domain.Template
}

func newMemTemplates() *memTemplates { return &memTemplates{rows: map[string]domain.Template{}} }

func (m *memTemplates) Create(_ context.Context, t domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[t.ID] = t
	return nil
}

func (m *memTemplates) GetByID(_ context.Context, id string) (domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return domain.Template{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memTemplates) ListByOwner(_ context.Context, owner string, _ domain.ListOpts) ([]domain.Template, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Template
	for _, t := range m.rows {
		if t.Owner == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (m *memTemplates) Delete(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok || t.Owner != owner {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memQuoteCache struct {
	mu   sync.Mutex
	rows map[string]domain.RateQuote
}

func (c *memQuoteCache) key(p, b, n string) string { return p + "|" + b + "|" + n }

func (c *memQuoteCache) Get(_ context.Context, p, b, n string) (domain.RateQuote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.rows[c.key(p, b, n)]
	if !ok {
		return domain.RateQuote{}, domain.ErrNotFound
	}
	return q, nil
}

func (c *memQuoteCache) Set(_ context.Context, p, b, n string, q domain.RateQuote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows == nil {
		c.rows = map[string]domain.RateQuote{}
	}
	c.rows[c.key(p, b, n)] = q
	return nil
}

func (c *memQuoteCache) InvalidatePeriod(_ context.Context, p string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.rows {
		if strings.HasPrefix(k, p+"|") {
			delete(c.rows, k)
		}
	}
	return nil
}

// harness wires a SessionService and SubmitService over fakes.
type harness struct {
	periods  *fakePeriods
	checker  *fakeChecker
	placer   *fakePlacer
	bus      *fakeBus
	receipts *memReceipts
	audit    *fakeAudit
	notifier *fakeNotifier
	sessions *SessionService
	submit   *SubmitService
}

func newHarness() *harness {
	h := &harness{
		periods:  &fakePeriods{period: testPeriod(), rates: testRates()},
		checker:  &fakeChecker{},
		placer:   &fakePlacer{poyID: "P-1"},
		bus:      newFakeBus(),
		receipts: newMemReceipts(),
		audit:    &fakeAudit{},
		notifier: &fakeNotifier{},
	}
	resolver := NewRateResolver(h.checker, nil, 4, testLogger())
	h.sessions = NewSessionService(catalog.Default(), h.periods, resolver, h.bus, false, time.Hour, testLogger())
	h.submit = NewSubmitService(h.sessions, h.placer, h.receipts, &fakeArchiver{}, h.bus, h.audit, testLogger()).
		WithNotifier(h.notifier)
	return h
}

func (h *harness) open(shuffle bool) string {
	v, err := h.sessions.Open(context.Background(), testMember, "42", &shuffle)
	if err != nil {
		panic(err)
	}
	return v.ID
}
