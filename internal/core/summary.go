package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Totals holds the income and expense sums for a list of entries. Both
// fields are non-negative magnitudes; the sign lives in the entry type.
type Totals struct {
	Income  Money
	Expense Money
}

// NetBalance is total income minus total expense magnitude. Negative means
// the period ran a deficit.
func (t Totals) NetBalance() Money {
	return Money{Cents: t.Income.Cents - t.Expense.Cents}
}

// PeriodSummary is the full derived view for a reporting period.
type PeriodSummary struct {
	From       Date
	To         Date
	Totals     Totals
	ByCategory []CategoryAmount // expenses only, descending by amount
}

// ComputeTotals partitions entries by type tag and sums each side in cents.
// Pure and allocation-free; the same input always yields the same output.
func ComputeTotals(entries []EntryWithCategory) Totals {
	var t Totals
	for _, e := range entries {
		if e.Type == Income {
			t.Income.Cents += e.Amount.Cents
		} else {
			t.Expense.Cents += e.Amount.Cents
		}
	}
	return t
}

// ComputeExpenseBreakdown sums expense entries per category name. Categories
// with no matching expense do not appear. The result is ordered by descending
// amount, category name breaking ties, so repeated runs are identical.
func ComputeExpenseBreakdown(entries []EntryWithCategory) []CategoryAmount {
	sums := make(map[string]int64)
	for _, e := range entries {
		if e.Type != Expense {
			continue
		}
		sums[e.CategoryName] += e.Amount.Cents
	}
	if len(sums) == 0 {
		return nil
	}

	out := make([]CategoryAmount, 0, len(sums))
	for name, cents := range sums {
		out = append(out, CategoryAmount{Name: name, Amount: Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Summarize derives the full period view from one snapshot of entries.
func Summarize(from, to Date, entries []EntryWithCategory) PeriodSummary {
	return PeriodSummary{
		From:       from,
		To:         to,
		Totals:     ComputeTotals(entries),
		ByCategory: ComputeExpenseBreakdown(entries),
	}
}
