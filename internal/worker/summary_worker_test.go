package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"orcamento/internal/amqp"
	"orcamento/internal/core"
	"orcamento/internal/storage"
)

func newTestWorker(t *testing.T) (*SummaryWorker, *storage.SQLiteRepository) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	return NewSummaryWorker(repo), repo
}

func seedCategoryID(t *testing.T, repo *storage.SQLiteRepository, name string) int64 {
	t.Helper()
	cat, err := repo.GetCategoryByName(context.Background(), name)
	if err != nil {
		t.Fatalf("get category %q: %v", name, err)
	}
	return cat.ID
}

func TestReportCurrentMonth(t *testing.T) {
	w, repo := newTestWorker(t)
	ctx := context.Background()

	// Empty ledger still reports cleanly
	if err := w.ReportCurrentMonth(ctx); err != nil {
		t.Fatalf("ReportCurrentMonth() on empty ledger: %v", err)
	}

	now := time.Now()
	catID := seedCategoryID(t, repo, "Casa")
	if _, err := repo.InsertEntry(ctx, core.Entry{
		Date:        core.NewDate(now.Year(), int(now.Month()), 1),
		Description: "Aluguel",
		Amount:      core.Money{Cents: 150000},
		Type:        core.Expense,
		CategoryID:  catID,
	}); err != nil {
		t.Fatalf("insert entry: %v", err)
	}

	if err := w.ReportCurrentMonth(ctx); err != nil {
		t.Fatalf("ReportCurrentMonth() with entries: %v", err)
	}
}

func TestHandleChangeMessage(t *testing.T) {
	w, _ := newTestWorker(t)

	msg := amqp.NewChangeMessage("entry", "created", 1)
	if err := w.HandleChangeMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleChangeMessage() error: %v", err)
	}
}
