package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lottobet/internal/catalog"
	"github.com/alanyoungcy/lottobet/internal/domain"
)

func numbersOf(lines []domain.CartLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Number)
	}
	sort.Strings(out)
	return out
}

func TestOpenSession(t *testing.T) {
	h := newHarness()
	v, err := h.sessions.Open(context.Background(), testMember, "42", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmitIdle, v.State)
	assert.Equal(t, catalog.PreferredBetType, v.DefaultType)
	assert.Len(t, v.BetTypes, 3)
	assert.Equal(t, 1, h.sessions.OpenCount())
	assert.Equal(t, 1, h.bus.count(domain.SessionChannel(v.ID)))

	_, err = h.sessions.Open(context.Background(), testMember, "99", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	h.periods.period.CloseTime = time.Now().Add(-time.Minute)
	_, err = h.sessions.Open(context.Background(), testMember, "42", nil)
	assert.ErrorIs(t, err, domain.ErrPeriodClosed)
}

func TestSessionsAreOwnerScoped(t *testing.T) {
	h := newHarness()
	id := h.open(false)

	other := domain.Member{Token: "x", Owner: "owner-2"}
	_, err := h.sessions.View(context.Background(), other, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddNumberWithShuffleExpandsAndSkipsDuplicates(t *testing.T) {
	h := newHarness()
	id := h.open(true)
	ctx := context.Background()

	sum, err := h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: "3top", Number: "123"})
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Requested)
	assert.Equal(t, 6, sum.Added)
	assert.Zero(t, sum.Skipped)
	assert.Equal(t, []string{"123", "132", "213", "231", "312", "321"}, numbersOf(sum.Lines))
	for _, l := range sum.Lines {
		assert.Equal(t, catalog.ThreeTop, l.BetType)
		assert.Equal(t, float64(900), l.PayoutRate)
		assert.Equal(t, float64(1), l.Amount)
	}

	sum, err = h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.ThreeTop, Number: "321"})
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Skipped)
	assert.Zero(t, sum.Added)
	assert.Equal(t, int32(6), h.checker.calls.Load())

	v, err := h.sessions.View(ctx, testMember, id)
	require.NoError(t, err)
	assert.Equal(t, 6, v.Totals.Lines)
}

func TestAddNumberWithoutShuffle(t *testing.T) {
	h := newHarness()
	id := h.open(false)
	ctx := context.Background()

	sum, err := h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "34"})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Added)
	assert.Equal(t, float64(5), sum.Lines[0].Amount)

	sum, err = h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "34"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Requested)
	assert.Equal(t, 1, sum.Skipped)

	on := true
	sum, err = h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "34", Shuffle: &on})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Requested)
	assert.Equal(t, 1, sum.Added)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, "43", sum.Lines[0].Number)
}

func TestAddNumberFallsBackOnLookupFailure(t *testing.T) {
	h := newHarness()
	h.checker.fail = map[string]bool{"56": true}
	h.checker.quotes = map[string]domain.RateQuote{
		"65": {Multiply: 70, IsSpecialNumber: true, ConditionNote: "reduced", Result: 2},
	}
	id := h.open(true)

	sum, err := h.sessions.AddNumber(context.Background(), testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "56"})
	require.NoError(t, err)
	require.Equal(t, 2, sum.Added)
	assert.Equal(t, 1, sum.Fallbacks)
	require.Len(t, sum.Notes, 1)
	assert.Equal(t, domain.CandidateNote{Number: "65", Note: "reduced"}, sum.Notes[0])

	for _, l := range sum.Lines {
		switch l.Number {
		case "56":
			assert.True(t, l.RateFallback)
			assert.Equal(t, float64(90), l.PayoutRate)
			assert.Equal(t, float64(1), l.Amount)
			assert.False(t, l.IsSpecialNumber)
		case "65":
			assert.Equal(t, float64(70), l.PayoutRate)
			assert.True(t, l.IsSpecialNumber)
		}
	}
}

func TestAddNumberRateCheckPayload(t *testing.T) {
	h := newHarness()
	id := h.open(false)
	_, err := h.sessions.AddNumber(context.Background(), testMember, id, AddRequest{BetType: catalog.ThreeTode, Number: "777"})
	require.NoError(t, err)

	require.Len(t, h.checker.seen, 1)
	rc := h.checker.seen[0]
	assert.Equal(t, int64(3), rc.HuayID)
	assert.Equal(t, "g", rc.StockType)
	assert.Equal(t, catalog.ThreeTode, rc.HuayOption)
	assert.Equal(t, float64(150), rc.Multiply)
	assert.Equal(t, float64(1), rc.Value)
}

func TestAddNumberValidation(t *testing.T) {
	h := newHarness()
	id := h.open(false)
	ctx := context.Background()

	_, err := h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: "nope", Number: "12"})
	assert.ErrorIs(t, err, domain.ErrUnknownBetType)

	_, err = h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "1a"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "123"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.FourTop, Number: "1234"})
	assert.ErrorIs(t, err, domain.ErrValidation, "bet type missing from the period rate table")
	assert.Zero(t, h.checker.calls.Load())
}

func TestAddRejectedAfterPeriodCloses(t *testing.T) {
	h := newHarness()
	id := h.open(false)
	h.sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := h.sessions.AddNumber(context.Background(), testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "12"})
	assert.ErrorIs(t, err, domain.ErrPeriodClosed)
}

func TestEmptyRateTableUsesCatalogDefaults(t *testing.T) {
	h := newHarness()
	h.periods.rates = nil
	id := h.open(false)

	sum, err := h.sessions.AddNumber(context.Background(), testMember, id, AddRequest{BetType: catalog.FourTode, Number: "1234"})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Added)
	assert.Equal(t, float64(250), sum.Lines[0].PayoutRate)
}

func TestLateLookupsAreDiscardedAfterClose(t *testing.T) {
	h := newHarness()
	h.checker.gate = make(chan struct{})
	id := h.open(true)
	sess, err := h.sessions.Session(testMember, id)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.sessions.AddNumber(context.Background(), testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "12"})
		done <- err
	}()

	require.Eventually(t, func() bool { return h.checker.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.sessions.Close(context.Background(), testMember, id))
	close(h.checker.gate)

	assert.ErrorIs(t, <-done, domain.ErrSessionClosed)
	assert.Equal(t, 0, sess.Cart().Len())
	assert.Zero(t, h.sessions.OpenCount())
}

func TestAddNumbersSpecialMultiAdd(t *testing.T) {
	h := newHarness()
	id := h.open(true)
	ctx := context.Background()

	sum, err := h.sessions.AddNumbers(ctx, testMember, id, catalog.TwoTop, []string{"11", "22", "11", "33"})
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Requested)
	assert.Equal(t, 3, sum.Added)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, h.checker.calls.Load())
	for _, l := range sum.Lines {
		assert.Zero(t, l.Amount)
		assert.Equal(t, float64(90), l.PayoutRate)
	}

	removed, err := h.sessions.UndoLastBatch(ctx, testMember, id)
	require.NoError(t, err)
	assert.Len(t, removed, 3)

	_, err = h.sessions.AddNumbers(ctx, testMember, id, catalog.TwoTop, []string{"11", "x1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUndoRestoresCartBeforeAdd(t *testing.T) {
	h := newHarness()
	id := h.open(true)
	ctx := context.Background()

	_, err := h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "12"})
	require.NoError(t, err)
	before, err := h.sessions.View(ctx, testMember, id)
	require.NoError(t, err)

	_, err = h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.ThreeTop, Number: "112"})
	require.NoError(t, err)
	removed, err := h.sessions.UndoLastBatch(ctx, testMember, id)
	require.NoError(t, err)
	assert.Len(t, removed, 3)

	after, err := h.sessions.View(ctx, testMember, id)
	require.NoError(t, err)
	assert.Equal(t, before.Lines, after.Lines)
	assert.Equal(t, before.Totals, after.Totals)
}

func TestEditOperations(t *testing.T) {
	h := newHarness()
	id := h.open(true)
	ctx := context.Background()

	sum, err := h.sessions.AddNumber(ctx, testMember, id, AddRequest{BetType: catalog.TwoTop, Number: "12"})
	require.NoError(t, err)
	require.Len(t, sum.Lines, 2)

	line, err := h.sessions.UpdateAmount(ctx, testMember, id, sum.Lines[0].ID, 10)
	require.NoError(t, err)
	assert.Equal(t, float64(900), line.PotentialWin)

	n, err := h.sessions.BulkSetPrice(ctx, testMember, id, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	v, err := h.sessions.View(ctx, testMember, id)
	require.NoError(t, err)
	assert.Equal(t, float64(40), v.Totals.TotalAmount)
	assert.Equal(t, float64(3600), v.Totals.TotalPotentialWin)

	require.NoError(t, h.sessions.RemoveLine(ctx, testMember, id, sum.Lines[1].ID))
	assert.ErrorIs(t, h.sessions.RemoveLine(ctx, testMember, id, sum.Lines[1].ID), domain.ErrNotFound)

	require.NoError(t, h.sessions.ClearCart(ctx, testMember, id))
	v, err = h.sessions.View(ctx, testMember, id)
	require.NoError(t, err)
	assert.Empty(t, v.Lines)
	assert.Zero(t, v.UndoDepth)
}

func TestSweepIdle(t *testing.T) {
	h := newHarness()
	id := h.open(false)
	h.sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	assert.Equal(t, 1, h.sessions.SweepIdle(context.Background()))
	_, err := h.sessions.View(context.Background(), testMember, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
