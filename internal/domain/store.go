package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ReceiptStore persists submitted poy receipts.
type ReceiptStore interface {
	Create(ctx context.Context, r Receipt) error
	GetByPoyID(ctx context.Context, poyID string) (Receipt, error)
	ListByOwner(ctx context.Context, owner string, opts ListOpts) ([]Receipt, error)
	ListBefore(ctx context.Context, before time.Time) ([]Receipt, error)
	SetArchivePath(ctx context.Context, poyID, path string) error
}

// TemplateStore persists saved poy templates.
type TemplateStore interface {
	Create(ctx context.Context, t Template) error
	GetByID(ctx context.Context, id string) (Template, error)
	ListByOwner(ctx context.Context, owner string, opts ListOpts) ([]Template, int64, error)
	Delete(ctx context.Context, owner, id string) error
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
