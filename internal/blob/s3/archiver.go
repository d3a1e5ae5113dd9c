package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// ReceiptSource lists receipts for batch archival.
type ReceiptSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Receipt, error)
}

// jsonlPartSize switches batch uploads to multipart above this size.
const jsonlPartSize int64 = 8 * 1024 * 1024

// ReceiptArchiver implements domain.ReceiptArchiver. Single receipts are
// written as JSON at domain.ReceiptPath; every batch run writes its own JSONL
// object under the cutoff's month and never replaces an earlier one.
//
// Deleting archived rows from the database is a separate step.
type ReceiptArchiver struct {
	writer   *Writer
	receipts ReceiptSource
	audit    domain.AuditStore
	newID    func() string
}

// NewReceiptArchiver creates a ReceiptArchiver. receipts and audit may be
// nil when only ArchiveReceipt is used.
func NewReceiptArchiver(writer *Writer, receipts ReceiptSource, audit domain.AuditStore) *ReceiptArchiver {
	return &ReceiptArchiver{
		writer:   writer,
		receipts: receipts,
		audit:    audit,
		newID:    func() string { return uuid.NewString()[:8] },
	}
}

// ArchiveReceipt uploads one receipt and returns its path.
func (a *ReceiptArchiver) ArchiveReceipt(ctx context.Context, r domain.Receipt) (string, error) {
	path := domain.ReceiptPath(r.PoyID)
	r.ArchivePath = path
	if err := a.writer.PutJSON(ctx, path, r); err != nil {
		return "", fmt.Errorf("s3blob: archive receipt %s: %w", r.PoyID, err)
	}
	return path, nil
}

// ArchiveBefore uploads every receipt submitted before the cutoff as one
// JSONL object (see batchPath) and returns how many were written.
func (a *ReceiptArchiver) ArchiveBefore(ctx context.Context, before time.Time) (int64, error) {
	if a.receipts == nil {
		return 0, fmt.Errorf("s3blob: archive receipts: no receipt source configured")
	}
	receipts, err := a.receipts.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive receipts query: %w", err)
	}
	if len(receipts) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(receipts)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive receipts marshal: %w", err)
	}

	path := batchPath("receipts", before, a.newID())
	if int64(len(buf)) > jsonlPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), jsonlPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive receipts upload: %w", err)
	}

	count := int64(len(receipts))
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.receipts", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive receipts audit log: %w", err)
		}
	}
	return count, nil
}

// batchPath names one batch run's object, partitioned by the cutoff's
// year-month and unique per run:
//
//	archive/receipts/2030-01/20300116T083000Z-1a2b3c4d.jsonl
func batchPath(kind string, before time.Time, runID string) string {
	before = before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s-%s.jsonl", kind, before.Format("2006-01"), before.Format("20060102T150405Z"), runID)
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.ReceiptArchiver = (*ReceiptArchiver)(nil)
