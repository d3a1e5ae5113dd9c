package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/lottobet/internal/domain"
)

// TemplateService saves carts as reusable templates and loads them back.
type TemplateService struct {
	store    domain.TemplateStore
	sessions *SessionService
	now      func() time.Time
	logger   *slog.Logger
}

// NewTemplateService creates a TemplateService.
func NewTemplateService(store domain.TemplateStore, sessions *SessionService, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		store:    store,
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "template_service")),
	}
}

// Save stores the current cart of sessionID as a named template.
func (s *TemplateService) Save(ctx context.Context, m domain.Member, sessionID, name, description string) (domain.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Template{}, fmt.Errorf("template_service: save: %w: name is required", domain.ErrValidation)
	}
	sess, err := s.sessions.Session(m, sessionID)
	if err != nil {
		return domain.Template{}, err
	}
	lines := sess.Cart().Lines()
	if len(lines) == 0 {
		return domain.Template{}, fmt.Errorf("template_service: save: %w: cart is empty", domain.ErrValidation)
	}

	t := domain.Template{
		ID:          uuid.NewString(),
		Owner:       m.Owner,
		Name:        name,
		Description: strings.TrimSpace(description),
		Items:       make([]domain.TemplateItem, 0, len(lines)),
		CreatedAt:   s.now(),
	}
	for _, l := range lines {
		t.Items = append(t.Items, domain.TemplateItem{BetType: l.BetType, Number: l.Number, Amount: l.Amount})
	}
	if err := s.store.Create(ctx, t); err != nil {
		return domain.Template{}, fmt.Errorf("template_service: save: %w", err)
	}

	s.logger.InfoContext(ctx, "template saved",
		slog.String("template_id", t.ID),
		slog.Int("items", len(t.Items)),
	)
	return t, nil
}

// List returns a page of the member's templates and the total count.
func (s *TemplateService) List(ctx context.Context, m domain.Member, opts domain.ListOpts) ([]domain.Template, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}
	ts, total, err := s.store.ListByOwner(ctx, m.Owner, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("template_service: list: %w", err)
	}
	return ts, total, nil
}

// Load adds a template's items to a session cart as one undoable batch.
func (s *TemplateService) Load(ctx context.Context, m domain.Member, templateID, sessionID string) (domain.AddSummary, error) {
	t, err := s.store.GetByID(ctx, templateID)
	if err != nil {
		return domain.AddSummary{}, fmt.Errorf("template_service: load: %w", err)
	}
	if t.Owner != m.Owner {
		return domain.AddSummary{}, fmt.Errorf("template_service: load %s: %w", templateID, domain.ErrNotFound)
	}
	sum, err := s.sessions.LoadItems(ctx, m, sessionID, t.Items)
	if err != nil {
		return domain.AddSummary{}, err
	}
	s.logger.InfoContext(ctx, "template loaded",
		slog.String("template_id", t.ID),
		slog.String("session_id", sessionID),
		slog.Int("added", sum.Added),
		slog.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

// Delete removes one of the member's templates.
func (s *TemplateService) Delete(ctx context.Context, m domain.Member, templateID string) error {
	if err := s.store.Delete(ctx, m.Owner, templateID); err != nil {
		return fmt.Errorf("template_service: delete: %w", err)
	}
	return nil
}
