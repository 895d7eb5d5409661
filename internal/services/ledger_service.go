package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"orcamento/internal/core"
	"orcamento/internal/storage"
	"orcamento/internal/stream"
)

// ErrReservedCategory is returned for rename or delete attempts on the
// reserved income category.
var ErrReservedCategory = errors.New("reserved category cannot be changed")

// ChangePublisher is the outbound changefeed port. The AMQP client
// implements it; a nil publisher disables the feed.
type ChangePublisher interface {
	PublishChange(ctx context.Context, entity, op string, id int64) error
}

// LedgerService orchestrates writes: validate, persist, signal the stream
// hub, and publish to the changefeed. Reads pass straight through to the
// repository; the service owns no read state.
type LedgerService struct {
	storage   *storage.SQLiteRepository
	hub       *stream.Hub
	publisher ChangePublisher
}

func NewLedgerService(storage *storage.SQLiteRepository, hub *stream.Hub, publisher ChangePublisher) *LedgerService {
	return &LedgerService{
		storage:   storage,
		hub:       hub,
		publisher: publisher,
	}
}

// CreateEntry validates and persists a new entry. Income entries with no
// category are filed under the reserved income category.
func (s *LedgerService) CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if e.Type == core.Income && e.CategoryID == 0 {
		receita, err := s.storage.GetCategoryByName(ctx, core.ReceitaCategory)
		if err != nil {
			return core.Entry{}, fmt.Errorf("resolve income category: %w", err)
		}
		e.CategoryID = receita.ID
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}

	saved, err := s.storage.InsertEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	s.notify(ctx, stream.EntityEntry, stream.OpCreated, saved.ID)
	return saved, nil
}

// UpdateEntry mutates an existing entry in place, keeping its identifier.
func (s *LedgerService) UpdateEntry(ctx context.Context, e core.Entry) error {
	if e.ID <= 0 {
		return storage.ErrNotFound
	}
	if e.Type == core.Income && e.CategoryID == 0 {
		receita, err := s.storage.GetCategoryByName(ctx, core.ReceitaCategory)
		if err != nil {
			return fmt.Errorf("resolve income category: %w", err)
		}
		e.CategoryID = receita.ID
	}
	if err := e.Validate(); err != nil {
		return err
	}

	if err := s.storage.UpdateEntry(ctx, e); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}

	s.notify(ctx, stream.EntityEntry, stream.OpUpdated, e.ID)
	return nil
}

// DeleteEntry removes an entry permanently.
func (s *LedgerService) DeleteEntry(ctx context.Context, id int64) error {
	if err := s.storage.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	s.notify(ctx, stream.EntityEntry, stream.OpDeleted, id)
	return nil
}

// CreateCategory validates and persists a new category.
func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	saved, err := s.storage.InsertCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}

	s.notify(ctx, stream.EntityCategory, stream.OpCreated, saved.ID)
	return saved, nil
}

// UpdateCategory renames a category. The reserved income category cannot be
// renamed.
func (s *LedgerService) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}

	current, err := s.storage.GetCategory(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("load category: %w", err)
	}
	if current.Name == core.ReceitaCategory {
		return ErrReservedCategory
	}

	if err := s.storage.UpdateCategory(ctx, c); err != nil {
		return fmt.Errorf("rename category: %w", err)
	}

	s.notify(ctx, stream.EntityCategory, stream.OpUpdated, c.ID)
	return nil
}

// DeleteCategory removes a category. Rejected while entries still reference
// it (storage.ErrCategoryInUse) or for the reserved income category.
func (s *LedgerService) DeleteCategory(ctx context.Context, id int64) error {
	current, err := s.storage.GetCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("load category: %w", err)
	}
	if current.Name == core.ReceitaCategory {
		return ErrReservedCategory
	}

	if err := s.storage.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.notify(ctx, stream.EntityCategory, stream.OpDeleted, id)
	return nil
}

// ListEntries returns every entry with its category name, newest first.
func (s *LedgerService) ListEntries(ctx context.Context) ([]core.EntryWithCategory, error) {
	return s.storage.ListEntries(ctx)
}

// ListEntriesInRange returns the entries dated within [from, to], newest first.
func (s *LedgerService) ListEntriesInRange(ctx context.Context, from, to core.Date) ([]core.EntryWithCategory, error) {
	return s.storage.ListEntriesInRange(ctx, from, to)
}

// ListCategories returns all categories ordered by name.
func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.storage.ListCategories(ctx)
}

// Summarize loads the entries dated within [from, to] and aggregates them
// into period totals and an expense breakdown per category.
func (s *LedgerService) Summarize(ctx context.Context, from, to core.Date) (core.PeriodSummary, error) {
	entries, err := s.storage.ListEntriesInRange(ctx, from, to)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("load period entries: %w", err)
	}
	return core.Summarize(from, to, entries), nil
}

// notify signals in-process watchers and publishes to the changefeed. The
// publish is best-effort: the local write already committed and the stream
// emission will carry the new state regardless.
func (s *LedgerService) notify(ctx context.Context, kind stream.EntityKind, op stream.Op, id int64) {
	s.hub.Notify(stream.Change{Kind: kind, Op: op, ID: id})

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, string(kind), string(op), id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"entity", kind, "op", op, "id", id, "error", err)
	}
}

// Close closes the underlying storage.
func (s *LedgerService) Close() error {
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			return fmt.Errorf("close storage: %w", err)
		}
	}
	return nil
}
