package http

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/storage"
)

// entryRow is the template shape for one ledger line.
type entryRow struct {
	ID          int64
	Date        string
	Desc        string
	Amount      string
	AmountInput string
	Signed      string
	Type        string
	Category    string
	CategoryID  int64
	IsIncome    bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	entries, err := s.getEntries(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List entries error", "error", err)
		http.Error(w, "failed to load entries", http.StatusInternalServerError)
		return
	}
	cats, err := s.ledger.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories error", "error", err)
	}

	totals := core.ComputeTotals(entries)

	data := struct {
		Today      string
		Categories []core.Category
		Entries    []entryRow
		Income     string
		Expense    string
		Balance    string
	}{
		Today:      time.Now().Format("2006-01-02"),
		Categories: cats,
		Income:     core.FormatBRL(totals.Income.Cents),
		Expense:    core.FormatBRL(totals.Expense.Cents),
		Balance:    core.FormatBRL(totals.NetBalance().Cents),
	}
	for _, e := range entries {
		data.Entries = append(data.Entries, newEntryRow(e))
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func newEntryRow(e core.EntryWithCategory) entryRow {
	return entryRow{
		ID:          e.ID,
		Date:        e.Date.String(),
		Desc:        e.Description,
		Amount:      core.FormatBRL(e.Amount.Cents),
		AmountInput: core.FormatDecimal(e.Amount.Cents),
		Signed:      core.FormatBRL(e.SignedCents()),
		Type:        string(e.Type),
		Category:    e.CategoryName,
		CategoryID:  e.CategoryID,
		IsIncome:    e.Type == core.Income,
	}
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	date, err := core.ParseDate(sanitizeInput(r.Form.Get("date")))
	if err != nil {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid date")
		return
	}

	cents, err := core.ParseDecimalToCents(sanitizeInput(r.Form.Get("amount")))
	if err != nil || cents <= 0 {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	entryType := core.EntryType(sanitizeInput(r.Form.Get("type")))
	if err := entryType.Validate(); err != nil {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid entry type")
		return
	}

	// Income entries may omit the category; the service files them under
	// the reserved income category.
	var categoryID int64
	if v := sanitizeInput(r.Form.Get("category_id")); v != "" {
		categoryID, err = parseFormID(r, "category_id")
		if err != nil {
			s.renderFormError(w, http.StatusUnprocessableEntity, "invalid category")
			return
		}
	}

	entry := core.Entry{
		Date:        date,
		Description: sanitizeInput(r.Form.Get("description")),
		Amount:      core.Money{Cents: cents},
		Type:        entryType,
		CategoryID:  categoryID,
	}

	saved, err := s.ledger.CreateEntry(r.Context(), entry)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyDescription),
			errors.Is(err, core.ErrDescriptionTooLong),
			errors.Is(err, core.ErrInvalidAmount),
			errors.Is(err, core.ErrMissingCategory),
			errors.Is(err, core.ErrInvalidType):
			s.renderFormError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			s.renderFormError(w, http.StatusUnprocessableEntity, "unknown category")
		default:
			slog.ErrorContext(r.Context(), "Create entry error", "error", err,
				"description", entry.Description, "amount_cents", entry.Amount.Cents)
			http.Error(w, "failed to save entry", http.StatusInternalServerError)
		}
		return
	}

	s.structured.LogEntryCreated(r.Context(), saved.ID, string(saved.Type),
		saved.Description, saved.Amount.Cents, saved.CategoryID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleUpdateEntry mutates an existing entry in place, keeping its
// identifier (the edit half of the entry form).
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	id, err := parseFormID(r, "id")
	if err != nil {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid entry id")
		return
	}

	date, err := core.ParseDate(sanitizeInput(r.Form.Get("date")))
	if err != nil {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid date")
		return
	}

	cents, err := core.ParseDecimalToCents(sanitizeInput(r.Form.Get("amount")))
	if err != nil || cents <= 0 {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	entryType := core.EntryType(sanitizeInput(r.Form.Get("type")))
	if err := entryType.Validate(); err != nil {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid entry type")
		return
	}

	var categoryID int64
	if v := sanitizeInput(r.Form.Get("category_id")); v != "" {
		categoryID, err = parseFormID(r, "category_id")
		if err != nil {
			s.renderFormError(w, http.StatusUnprocessableEntity, "invalid category")
			return
		}
	}

	entry := core.Entry{
		ID:          id,
		Date:        date,
		Description: sanitizeInput(r.Form.Get("description")),
		Amount:      core.Money{Cents: cents},
		Type:        entryType,
		CategoryID:  categoryID,
	}

	if err := s.ledger.UpdateEntry(r.Context(), entry); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "entry not found", http.StatusNotFound)
		case errors.Is(err, core.ErrEmptyDescription),
			errors.Is(err, core.ErrDescriptionTooLong),
			errors.Is(err, core.ErrInvalidAmount),
			errors.Is(err, core.ErrMissingCategory),
			errors.Is(err, core.ErrInvalidType):
			s.renderFormError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			slog.ErrorContext(r.Context(), "Update entry error", "error", err, "entry_id", id)
			http.Error(w, "failed to update entry", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	id, err := parseFormID(r, "id")
	if err != nil {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid entry id")
		return
	}

	if err := s.ledger.DeleteEntry(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "entry not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "Delete entry error", "error", err, "entry_id", id)
		http.Error(w, "failed to delete entry", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderFormError writes a small inline error fragment.
func (s *Server) renderFormError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(msg) + `</div>`))
}
