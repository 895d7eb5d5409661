package stream

import (
	"context"

	"orcamento/internal/core"
)

// Read ports the watchers re-query on every change.
type (
	EntryLister interface {
		ListEntries(ctx context.Context) ([]core.EntryWithCategory, error)
		ListEntriesInRange(ctx context.Context, from, to core.Date) ([]core.EntryWithCategory, error)
	}

	CategoryLister interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
	}
)

// EntriesSnapshot is one emission of an entry stream. Err is set when the
// snapshot query failed; the stream itself stays open and recovers on the
// next change.
type EntriesSnapshot struct {
	Entries []core.EntryWithCategory
	Err     error
}

// CategoriesSnapshot is one emission of the category stream.
type CategoriesSnapshot struct {
	Categories []core.Category
	Err        error
}

// WatchEntries emits the full joined entry list immediately and again after
// every change, until ctx is done. The returned channel is closed on
// cancellation; in-flight writes that land after that are simply not
// observed by this subscriber.
func WatchEntries(ctx context.Context, hub *Hub, lister EntryLister) <-chan EntriesSnapshot {
	query := func(ctx context.Context) EntriesSnapshot {
		entries, err := lister.ListEntries(ctx)
		return EntriesSnapshot{Entries: entries, Err: err}
	}
	return watch(ctx, hub, query)
}

// WatchEntriesInRange is WatchEntries filtered to dates in [from, to]
// inclusive.
func WatchEntriesInRange(ctx context.Context, hub *Hub, lister EntryLister, from, to core.Date) <-chan EntriesSnapshot {
	query := func(ctx context.Context) EntriesSnapshot {
		entries, err := lister.ListEntriesInRange(ctx, from, to)
		return EntriesSnapshot{Entries: entries, Err: err}
	}
	return watch(ctx, hub, query)
}

// WatchCategories emits the category list on subscription and after every
// change. A category snapshot and an entry snapshot taken around the same
// write may momentarily disagree; each list is consistent on its own.
func WatchCategories(ctx context.Context, hub *Hub, lister CategoryLister) <-chan CategoriesSnapshot {
	query := func(ctx context.Context) CategoriesSnapshot {
		cats, err := lister.ListCategories(ctx)
		return CategoriesSnapshot{Categories: cats, Err: err}
	}
	return watch(ctx, hub, query)
}

func watch[T any](ctx context.Context, hub *Hub, query func(context.Context) T) <-chan T {
	out := make(chan T)
	sub := hub.Subscribe()

	go func() {
		defer close(out)
		defer sub.Close()

		// First emission is the current snapshot, before any change.
		if !send(ctx, out, query(ctx)) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.C:
				if !send(ctx, out, query(ctx)) {
					return
				}
			}
		}
	}()

	return out
}

func send[T any](ctx context.Context, out chan<- T, v T) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
