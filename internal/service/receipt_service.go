package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// ReceiptService looks up submitted receipts, falling back to the archive
// when the database copy is gone.
type ReceiptService struct {
	store  domain.ReceiptStore
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewReceiptService creates a ReceiptService. Either source may be nil.
func NewReceiptService(store domain.ReceiptStore, blobs domain.BlobReader, logger *slog.Logger) *ReceiptService {
	return &ReceiptService{
		store:  store,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "receipt_service")),
	}
}

// Get returns the receipt for poyID owned by m.
func (s *ReceiptService) Get(ctx context.Context, m domain.Member, poyID string) (domain.Receipt, error) {
	r, err := s.lookup(ctx, poyID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if r.Owner != m.Owner {
		return domain.Receipt{}, fmt.Errorf("receipt_service: %s: %w", poyID, domain.ErrNotFound)
	}
	return r, nil
}

// List returns the member's most recent receipts.
func (s *ReceiptService) List(ctx context.Context, m domain.Member, opts domain.ListOpts) ([]domain.Receipt, error) {
	if s.store == nil {
		return []domain.Receipt{}, nil
	}
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}
	rs, err := s.store.ListByOwner(ctx, m.Owner, opts)
	if err != nil {
		return nil, fmt.Errorf("receipt_service: list: %w", err)
	}
	return rs, nil
}

func (s *ReceiptService) lookup(ctx context.Context, poyID string) (domain.Receipt, error) {
	if s.store != nil {
		r, err := s.store.GetByPoyID(ctx, poyID)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Receipt{}, fmt.Errorf("receipt_service: get: %w", err)
		}
	}
	if s.blobs == nil {
		return domain.Receipt{}, fmt.Errorf("receipt_service: %s: %w", poyID, domain.ErrNotFound)
	}

	path := domain.ReceiptPath(poyID)
	ok, err := s.blobs.Exists(ctx, path)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("receipt_service: archive lookup: %w", err)
	}
	if !ok {
		return domain.Receipt{}, fmt.Errorf("receipt_service: %s: %w", poyID, domain.ErrNotFound)
	}
	rc, err := s.blobs.Get(ctx, path)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("receipt_service: archive get: %w", err)
	}
	defer rc.Close()

	var r domain.Receipt
	if err := json.NewDecoder(rc).Decode(&r); err != nil {
		return domain.Receipt{}, fmt.Errorf("receipt_service: decode archived receipt: %w", err)
	}
	s.logger.DebugContext(ctx, "receipt served from archive", slog.String("poy_id", poyID))
	return r, nil
}
