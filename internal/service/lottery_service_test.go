package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

type fakeBackend struct {
	fakePeriods
	query     domain.BetQuery
	cancelled []string
}

func (f *fakeBackend) OpenPeriods(context.Context, string, string) ([]domain.Period, error) {
	return []domain.Period{f.period}, nil
}

func (f *fakeBackend) MyBets(_ context.Context, _ string, q domain.BetQuery) ([]domain.MyBet, int64, error) {
	f.query = q
	return []domain.MyBet{{ID: "9"}}, 1, nil
}

func (f *fakeBackend) CancelBet(_ context.Context, _ string, id string) (string, error) {
	f.cancelled = append(f.cancelled, id)
	return "cancelled", nil
}

func TestLotteryServicePassThrough(t *testing.T) {
	backend := &fakeBackend{fakePeriods: fakePeriods{period: testPeriod(), rates: testRates()}}
	audit := &fakeAudit{}
	svc := NewLotteryService(backend, audit, testLogger())
	ctx := context.Background()

	ps, err := svc.Periods(ctx, testMember, "")
	require.NoError(t, err)
	assert.Len(t, ps, 1)

	rates, err := svc.PeriodRates(ctx, testMember, "42")
	require.NoError(t, err)
	assert.Len(t, rates, 3)
	_, err = svc.PeriodRates(ctx, testMember, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, total, err := svc.MyBets(ctx, testMember, domain.BetQuery{Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 20, backend.query.Limit)
	assert.Zero(t, backend.query.Offset)

	msg, err := svc.CancelBet(ctx, testMember, "9")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", msg)
	assert.Equal(t, []string{"bet_cancelled"}, audit.events)

	_, err = svc.CancelBet(ctx, testMember, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

type memBlobs struct{ objects map[string][]byte }

func (b *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := b.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobs) List(context.Context, string) ([]domain.BlobInfo, error) { return nil, nil }

func (b *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := b.objects[path]
	return ok, nil
}

func TestReceiptLookupFallsBackToArchive(t *testing.T) {
	store := newMemReceipts()
	archived := domain.Receipt{PoyID: "OLD", Owner: testMember.Owner, SubmittedAt: time.Now().UTC()}
	data, err := json.Marshal(archived)
	require.NoError(t, err)
	blobs := &memBlobs{objects: map[string][]byte{domain.ReceiptPath("OLD"): data}}
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.Receipt{PoyID: "NEW", Owner: testMember.Owner}))
	svc := NewReceiptService(store, blobs, testLogger())

	r, err := svc.Get(ctx, testMember, "NEW")
	require.NoError(t, err)
	assert.Equal(t, "NEW", r.PoyID)

	r, err = svc.Get(ctx, testMember, "OLD")
	require.NoError(t, err)
	assert.Equal(t, "OLD", r.PoyID)

	_, err = svc.Get(ctx, testMember, "MISSING")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(ctx, domain.Member{Owner: "someone-else"}, "NEW")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
