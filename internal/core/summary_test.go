package core

import (
	"reflect"
	"testing"
)

func entry(typ EntryType, cents int64, desc, category string) EntryWithCategory {
	return EntryWithCategory{
		Entry: Entry{
			Date:        NewDate(2025, 6, 15),
			Description: desc,
			Amount:      Money{Cents: cents},
			Type:        typ,
			CategoryID:  1,
		},
		CategoryName: category,
	}
}

func TestComputeTotalsScenario(t *testing.T) {
	entries := []EntryWithCategory{
		entry(Income, 300000, "Salary", ReceitaCategory),
		entry(Expense, 25055, "Groceries", "Alimentação"),
	}

	totals := ComputeTotals(entries)
	if totals.Income.Cents != 300000 {
		t.Fatalf("income = %d, want 300000", totals.Income.Cents)
	}
	if totals.Expense.Cents != 25055 {
		t.Fatalf("expense = %d, want 25055", totals.Expense.Cents)
	}
	if got := totals.NetBalance().Cents; got != 274945 {
		t.Fatalf("net balance = %d, want 274945", got)
	}

	breakdown := ComputeExpenseBreakdown(entries)
	want := []CategoryAmount{{Name: "Alimentação", Amount: Money{Cents: 25055}}}
	if !reflect.DeepEqual(breakdown, want) {
		t.Fatalf("breakdown = %v, want %v", breakdown, want)
	}
}

func TestComputeTotalsEmpty(t *testing.T) {
	totals := ComputeTotals(nil)
	if totals.Income.Cents != 0 || totals.Expense.Cents != 0 {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
	if totals.NetBalance().Cents != 0 {
		t.Fatalf("expected zero balance")
	}
	if b := ComputeExpenseBreakdown(nil); len(b) != 0 {
		t.Fatalf("expected empty breakdown, got %v", b)
	}
}

func TestComputeTotalsSingleEntry(t *testing.T) {
	totals := ComputeTotals([]EntryWithCategory{entry(Expense, 9990, "Shoes", "Outros")})
	if totals.Income.Cents != 0 || totals.Expense.Cents != 9990 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

// The income and expense magnitudes must together account for every entry:
// their sum equals the sum of absolute signed amounts.
func TestTotalsConserveMagnitudes(t *testing.T) {
	entries := []EntryWithCategory{
		entry(Income, 120000, "Salary", ReceitaCategory),
		entry(Expense, 4500, "Bus", "Transporte"),
		entry(Expense, 30000, "Rent", "Casa"),
		entry(Income, 99, "Refund", ReceitaCategory),
	}

	totals := ComputeTotals(entries)
	var absSum int64
	for _, e := range entries {
		signed := e.SignedCents()
		if signed < 0 {
			signed = -signed
		}
		absSum += signed
	}
	if totals.Income.Cents+totals.Expense.Cents != absSum {
		t.Fatalf("magnitude sum %d != abs sum %d",
			totals.Income.Cents+totals.Expense.Cents, absSum)
	}
}

// Net balance is additive over disjoint lists.
func TestNetBalanceAdditive(t *testing.T) {
	a := []EntryWithCategory{
		entry(Income, 50000, "Salary", ReceitaCategory),
		entry(Expense, 12345, "Food", "Alimentação"),
	}
	b := []EntryWithCategory{
		entry(Expense, 700, "Coffee", "Alimentação"),
		entry(Income, 200, "Change", ReceitaCategory),
	}

	combined := ComputeTotals(append(append([]EntryWithCategory{}, a...), b...))
	sum := ComputeTotals(a).NetBalance().Cents + ComputeTotals(b).NetBalance().Cents
	if combined.NetBalance().Cents != sum {
		t.Fatalf("combined balance %d != partial sum %d", combined.NetBalance().Cents, sum)
	}
}

func TestBreakdownSameCategoryAccumulates(t *testing.T) {
	entries := []EntryWithCategory{
		entry(Expense, 10000, "Market", "Alimentação"),
		entry(Expense, 5000, "Bakery", "Alimentação"),
	}

	breakdown := ComputeExpenseBreakdown(entries)
	if len(breakdown) != 1 {
		t.Fatalf("expected single category, got %v", breakdown)
	}
	if breakdown[0].Amount.Cents != 15000 {
		t.Fatalf("accumulated = %d, want 15000", breakdown[0].Amount.Cents)
	}
}

// The breakdown covers total expense exactly and never invents categories.
func TestBreakdownSumsToTotalExpense(t *testing.T) {
	entries := []EntryWithCategory{
		entry(Income, 999999, "Salary", ReceitaCategory),
		entry(Expense, 1000, "Cinema", "Lazer"),
		entry(Expense, 2500, "Market", "Alimentação"),
		entry(Expense, 4200, "Gas", "Transporte"),
	}

	totals := ComputeTotals(entries)
	breakdown := ComputeExpenseBreakdown(entries)

	seen := map[string]bool{"Lazer": false, "Alimentação": false, "Transporte": false}
	var sum int64
	for _, ca := range breakdown {
		if _, ok := seen[ca.Name]; !ok {
			t.Fatalf("unexpected category %q in breakdown", ca.Name)
		}
		seen[ca.Name] = true
		sum += ca.Amount.Cents
	}
	if sum != totals.Expense.Cents {
		t.Fatalf("breakdown sum %d != total expense %d", sum, totals.Expense.Cents)
	}
	// Income-only category must not appear
	for _, ca := range breakdown {
		if ca.Name == ReceitaCategory {
			t.Fatalf("income category leaked into breakdown")
		}
	}
}

func TestBreakdownDeterministicOrder(t *testing.T) {
	entries := []EntryWithCategory{
		entry(Expense, 100, "b", "Beta"),
		entry(Expense, 100, "a", "Alfa"),
		entry(Expense, 900, "c", "Gama"),
	}

	first := ComputeExpenseBreakdown(entries)
	second := ComputeExpenseBreakdown(entries)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("breakdown not idempotent: %v vs %v", first, second)
	}

	wantOrder := []string{"Gama", "Alfa", "Beta"}
	for i, ca := range first {
		if ca.Name != wantOrder[i] {
			t.Fatalf("position %d = %q, want %q", i, ca.Name, wantOrder[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	from, to := NewDate(2025, 6, 1), NewDate(2025, 6, 30)
	s := Summarize(from, to, []EntryWithCategory{
		entry(Income, 300000, "Salary", ReceitaCategory),
		entry(Expense, 25055, "Groceries", "Alimentação"),
	})
	if s.From != from || s.To != to {
		t.Fatalf("period not carried through")
	}
	if s.Totals.NetBalance().Cents != 274945 {
		t.Fatalf("balance = %d", s.Totals.NetBalance().Cents)
	}
	if len(s.ByCategory) != 1 || s.ByCategory[0].Name != "Alimentação" {
		t.Fatalf("unexpected breakdown %v", s.ByCategory)
	}
}
