package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/services"
	"orcamento/internal/storage"
	"orcamento/internal/stream"
)

func newTestServer(t *testing.T) (*Server, *services.LedgerService) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}

	hub := stream.NewHub()
	svc := services.NewLedgerService(repo, hub, nil)
	srv := NewServer(":0", svc, hub, time.Minute)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = svc.Close()
	})

	return srv, svc
}

func categoryID(t *testing.T, svc *services.LedgerService, name string) int64 {
	t.Helper()
	cats, err := svc.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %q not found", name)
	return 0
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Novo lançamento") {
		t.Fatalf("index body missing heading")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateEntryValidationAndSuccess(t *testing.T) {
	srv, svc := newTestServer(t)
	catID := categoryID(t, svc, "Alimentação")

	// Wrong method
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Invalid amount
	rr = postForm(srv, "/entries", url.Values{
		"date": {"2026-08-10"}, "description": {"x"}, "amount": {"abc"},
		"type": {"expense"}, "category_id": {strconv.FormatInt(catID, 10)},
	})
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad amount, got %d", rr.Code)
	}

	// Missing description
	rr = postForm(srv, "/entries", url.Values{
		"date": {"2026-08-10"}, "description": {""}, "amount": {"12,50"},
		"type": {"expense"}, "category_id": {strconv.FormatInt(catID, 10)},
	})
	if rr.Code != 422 {
		t.Fatalf("expected 422 for empty description, got %d", rr.Code)
	}

	// Expense without category
	rr = postForm(srv, "/entries", url.Values{
		"date": {"2026-08-10"}, "description": {"x"}, "amount": {"12,50"},
		"type": {"expense"},
	})
	if rr.Code != 422 {
		t.Fatalf("expected 422 for expense without category, got %d", rr.Code)
	}

	// Oversized description
	rr = postForm(srv, "/entries", url.Values{
		"date": {"2026-08-10"}, "description": {strings.Repeat("x", 210)}, "amount": {"12,50"},
		"type": {"expense"}, "category_id": {strconv.FormatInt(catID, 10)},
	})
	if rr.Code != 422 {
		t.Fatalf("expected 422 for oversized description, got %d", rr.Code)
	}

	// Success
	rr = postForm(srv, "/entries", url.Values{
		"date": {"2026-08-10"}, "description": {"Mercado"}, "amount": {"125,30"},
		"type": {"expense"}, "category_id": {strconv.FormatInt(catID, 10)},
	})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rr.Code, rr.Body.String())
	}

	// Income without category lands in the reserved income category
	rr = postForm(srv, "/entries", url.Values{
		"date": {"2026-08-01"}, "description": {"Salário"}, "amount": {"3000,00"},
		"type": {"income"},
	})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 for income, got %d: %s", rr.Code, rr.Body.String())
	}

	entries, err := svc.ListEntries(context.Background())
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].CategoryName != "Alimentação" || entries[1].CategoryName != core.ReceitaCategory {
		t.Fatalf("unexpected categories: %q, %q", entries[0].CategoryName, entries[1].CategoryName)
	}
}

func TestUpdateEntry(t *testing.T) {
	srv, svc := newTestServer(t)
	catID := categoryID(t, svc, "Lazer")

	saved, err := svc.CreateEntry(context.Background(), core.Entry{
		Date:        core.NewDate(2026, 8, 5),
		Description: "Show",
		Amount:      core.Money{Cents: 10000},
		Type:        core.Expense,
		CategoryID:  catID,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	// Unknown id
	rr := postForm(srv, "/entries/update", url.Values{
		"id": {"9999"}, "date": {"2026-08-05"}, "description": {"Show"},
		"amount": {"100,00"}, "type": {"expense"}, "category_id": {strconv.FormatInt(catID, 10)},
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entry, got %d", rr.Code)
	}

	// Amend amount and description, keeping the identifier
	rr = postForm(srv, "/entries/update", url.Values{
		"id": {strconv.FormatInt(saved.ID, 10)}, "date": {"2026-08-05"},
		"description": {"Show do Milhão"}, "amount": {"150,00"},
		"type": {"expense"}, "category_id": {strconv.FormatInt(catID, 10)},
	})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rr.Code, rr.Body.String())
	}

	entries, err := svc.ListEntries(context.Background())
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != saved.ID {
		t.Fatalf("expected entry %d to survive the update, got %+v", saved.ID, entries)
	}
	if entries[0].Description != "Show do Milhão" || entries[0].Amount.Cents != 15000 {
		t.Fatalf("update not applied: %+v", entries[0])
	}
}

func TestDeleteEntry(t *testing.T) {
	srv, svc := newTestServer(t)
	catID := categoryID(t, svc, "Casa")

	saved, err := svc.CreateEntry(context.Background(), core.Entry{
		Date:        core.NewDate(2026, 8, 15),
		Description: "Aluguel",
		Amount:      core.Money{Cents: 120000},
		Type:        core.Expense,
		CategoryID:  catID,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	rr := postForm(srv, "/entries/delete", url.Values{"id": {"9999"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entry, got %d", rr.Code)
	}

	rr = postForm(srv, "/entries/delete", url.Values{"id": {strconv.FormatInt(saved.ID, 10)}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}

	entries, err := svc.ListEntries(context.Background())
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries after delete, got %d", len(entries))
	}
}

func TestCategoryConflicts(t *testing.T) {
	srv, svc := newTestServer(t)

	// Create
	rr := postForm(srv, "/categories", url.Values{"name": {"Viagem"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 for create, got %d", rr.Code)
	}

	// Duplicate name
	rr = postForm(srv, "/categories", url.Values{"name": {"Viagem"}})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rr.Code)
	}

	// Delete while referenced
	catID := categoryID(t, svc, "Viagem")
	if _, err := svc.CreateEntry(context.Background(), core.Entry{
		Date:        core.NewDate(2026, 8, 20),
		Description: "Passagem",
		Amount:      core.Money{Cents: 80000},
		Type:        core.Expense,
		CategoryID:  catID,
	}); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	rr = postForm(srv, "/categories/delete", url.Values{"id": {strconv.FormatInt(catID, 10)}})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for referenced category, got %d", rr.Code)
	}

	// Reserved income category
	receitaID := categoryID(t, svc, core.ReceitaCategory)
	rr = postForm(srv, "/categories/delete", url.Values{"id": {strconv.FormatInt(receitaID, 10)}})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reserved category, got %d", rr.Code)
	}
}

func TestRenameCategory(t *testing.T) {
	srv, svc := newTestServer(t)
	lazerID := categoryID(t, svc, "Lazer")

	// Rename
	rr := postForm(srv, "/categories/update", url.Values{
		"id": {strconv.FormatInt(lazerID, 10)}, "name": {"Diversão"},
	})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 for rename, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := categoryID(t, svc, "Diversão"); got != lazerID {
		t.Fatalf("rename changed the identifier: %d != %d", got, lazerID)
	}

	// Rename into an existing name
	rr = postForm(srv, "/categories/update", url.Values{
		"id": {strconv.FormatInt(lazerID, 10)}, "name": {"Casa"},
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", rr.Code)
	}

	// Oversized name
	rr = postForm(srv, "/categories/update", url.Values{
		"id": {strconv.FormatInt(lazerID, 10)}, "name": {strings.Repeat("x", 110)},
	})
	if rr.Code != 422 {
		t.Fatalf("expected 422 for oversized name, got %d", rr.Code)
	}

	// Reserved income category
	receitaID := categoryID(t, svc, core.ReceitaCategory)
	rr = postForm(srv, "/categories/update", url.Values{
		"id": {strconv.FormatInt(receitaID, 10)}, "name": {"Entradas"},
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reserved category, got %d", rr.Code)
	}

	// Unknown id
	rr = postForm(srv, "/categories/update", url.Values{
		"id": {"9999"}, "name": {"Fantasma"},
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown category, got %d", rr.Code)
	}
}

func TestSummaryAPI(t *testing.T) {
	srv, svc := newTestServer(t)
	catID := categoryID(t, svc, "Lazer")

	now := time.Now()
	if _, err := svc.CreateEntry(context.Background(), core.Entry{
		Date:        core.NewDate(now.Year(), int(now.Month()), 1),
		Description: "Cinema",
		Amount:      core.Money{Cents: 4500},
		Type:        core.Expense,
		CategoryID:  catID,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if _, err := svc.CreateEntry(context.Background(), core.Entry{
		Date:        core.NewDate(now.Year(), int(now.Month()), 1),
		Description: "Salário",
		Amount:      core.Money{Cents: 500000},
		Type:        core.Income,
	}); err != nil {
		t.Fatalf("create income: %v", err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/summary?period=month", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("summary status=%d: %s", rr.Code, rr.Body.String())
	}

	var resp summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if resp.IncomeCents != 500000 || resp.ExpenseCents != 4500 {
		t.Fatalf("unexpected totals: income=%d expense=%d", resp.IncomeCents, resp.ExpenseCents)
	}
	if resp.BalanceCents != 495500 {
		t.Fatalf("unexpected balance: %d", resp.BalanceCents)
	}
	if len(resp.ExpenseBreakdown) != 1 || resp.ExpenseBreakdown[0].Category != "Lazer" {
		t.Fatalf("unexpected breakdown: %+v", resp.ExpenseBreakdown)
	}
	if len(resp.Chart.Labels) != 1 || resp.Chart.Labels[0] != "Lazer" || resp.Chart.Magnitudes[0] != 4500 {
		t.Fatalf("unexpected chart series: %+v", resp.Chart)
	}

	// Invalid period
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/summary?period=week", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 422 {
		t.Fatalf("expected 422 for bad period, got %d", rr.Code)
	}

	// Custom range with from after to
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/summary?from=2026-08-31&to=2026-08-01", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 422 {
		t.Fatalf("expected 422 for inverted range, got %d", rr.Code)
	}
}

func TestEventsStream(t *testing.T) {
	srv, svc := newTestServer(t)
	catID := categoryID(t, svc, "Outros")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = svc.CreateEntry(context.Background(), core.Entry{
			Date:        core.NewDate(2026, 8, 25),
			Description: "Presente",
			Amount:      core.Money{Cents: 5000},
			Type:        core.Expense,
			CategoryID:  catID,
		})
	}()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	srv.Handler.ServeHTTP(rr, req)

	body := rr.Body.String()
	if !strings.Contains(body, "event: connected") {
		t.Fatalf("missing connected event: %q", body)
	}
	if !strings.Contains(body, "event: change") {
		t.Fatalf("missing change event: %q", body)
	}
}

func TestSummaryCacheInvalidation(t *testing.T) {
	srv, svc := newTestServer(t)
	catID := categoryID(t, svc, "Transporte")

	get := func() summaryResponse {
		t.Helper()
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/summary?period=month", nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("summary status=%d", rr.Code)
		}
		var resp summaryResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		return resp
	}

	if got := get().ExpenseCents; got != 0 {
		t.Fatalf("expected empty ledger, got expense=%d", got)
	}

	now := time.Now()
	if _, err := svc.CreateEntry(context.Background(), core.Entry{
		Date:        core.NewDate(now.Year(), int(now.Month()), 1),
		Description: "Ônibus",
		Amount:      core.Money{Cents: 550},
		Type:        core.Expense,
		CategoryID:  catID,
	}); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	// The hub signal purges the cache asynchronously
	deadline := time.Now().Add(2 * time.Second)
	for {
		if get().ExpenseCents == 550 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("summary cache not invalidated after write")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
