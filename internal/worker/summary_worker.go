package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"orcamento/internal/amqp"
	"orcamento/internal/core"
	"orcamento/internal/storage"
)

// SummaryWorker consumes ledger change messages and keeps a running
// current-month report in the logs. It recomputes on every change and on a
// periodic tick, so the report survives missed messages.
type SummaryWorker struct {
	storage *storage.SQLiteRepository
}

func NewSummaryWorker(storage *storage.SQLiteRepository) *SummaryWorker {
	return &SummaryWorker{storage: storage}
}

// HandleChangeMessage processes a single ledger change message from AMQP.
func (w *SummaryWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ChangeMessage) error {
	slog.InfoContext(ctx, "Processing change message",
		"entity", msg.Entity,
		"op", msg.Op,
		"id", msg.ID)

	if err := w.ReportCurrentMonth(ctx); err != nil {
		return fmt.Errorf("report after change: %w", err)
	}
	return nil
}

// ReportCurrentMonth recomputes the summary for the 1st of the current
// month through today and logs the result.
func (w *SummaryWorker) ReportCurrentMonth(ctx context.Context) error {
	now := time.Now()
	from := core.NewDate(now.Year(), int(now.Month()), 1)
	to := core.NewDate(now.Year(), int(now.Month()), now.Day())

	entries, err := w.storage.ListEntriesInRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load month entries: %w", err)
	}

	summary := core.Summarize(from, to, entries)

	slog.InfoContext(ctx, "Current month summary",
		"from", from.String(),
		"to", to.String(),
		"entries", len(entries),
		"income", core.FormatBRL(summary.Totals.Income.Cents),
		"expense", core.FormatBRL(summary.Totals.Expense.Cents),
		"balance", core.FormatBRL(summary.Totals.NetBalance().Cents))

	for _, c := range summary.ByCategory {
		slog.DebugContext(ctx, "Category expense",
			"category", c.Name,
			"amount", core.FormatBRL(c.Amount.Cents))
	}

	return nil
}
