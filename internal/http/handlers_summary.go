package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"orcamento/internal/core"
	applog "orcamento/internal/log"
)

// handleTotals renders the period totals page with the expense breakdown
// chart rows.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		s.renderFormError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	summary, err := s.getSummary(r.Context(), from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary error", "error", err, "from", from.String(), "to", to.String())
		http.Error(w, "failed to load summary", http.StatusInternalServerError)
		return
	}

	// Scale bar widths against the largest category
	var maxCents int64
	for _, c := range summary.ByCategory {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
		}
	}

	type row struct {
		Name, Amount string
		Width        int
	}
	data := struct {
		From    string
		To      string
		Income  string
		Expense string
		Balance string
		Rows    []row
	}{
		From:    from.String(),
		To:      to.String(),
		Income:  core.FormatBRL(summary.Totals.Income.Cents),
		Expense: core.FormatBRL(summary.Totals.Expense.Cents),
		Balance: core.FormatBRL(summary.Totals.NetBalance().Cents),
	}
	for _, c := range summary.ByCategory {
		width := 0
		if maxCents > 0 && c.Amount.Cents > 0 {
			width = int((c.Amount.Cents*100 + maxCents/2) / maxCents) // rounded percent
			if width > 0 && width < 2 {                               // ensure visibility for very small values
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, row{Name: c.Name, Amount: core.FormatBRL(c.Amount.Cents), Width: width})
	}

	if err := s.templates.ExecuteTemplate(w, "totals.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Totals template execution failed", "error", err, "template", "totals.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type summaryResponse struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	IncomeCents      int64            `json:"income_cents"`
	ExpenseCents     int64            `json:"expense_cents"`
	BalanceCents     int64            `json:"balance_cents"`
	ExpenseBreakdown []breakdownSlice `json:"expense_breakdown"`
	Chart            chartSeries      `json:"chart"`
}

type breakdownSlice struct {
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
}

// chartSeries is the label/magnitude pair pie and bar charts consume.
type chartSeries struct {
	Labels     []string `json:"labels"`
	Magnitudes []int64  `json:"magnitudes"`
}

// handleSummaryAPI serves the aggregated period summary as JSON, the shape
// chart frontends consume directly.
func (s *Server) handleSummaryAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	from, to, err := parsePeriod(r)
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	summary, err := s.getSummary(r.Context(), from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary API error", "error", err, "from", from.String(), "to", to.String())
		writeJSONError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}

	resp := summaryResponse{
		From:             from.String(),
		To:               to.String(),
		IncomeCents:      summary.Totals.Income.Cents,
		ExpenseCents:     summary.Totals.Expense.Cents,
		BalanceCents:     summary.Totals.NetBalance().Cents,
		ExpenseBreakdown: []breakdownSlice{},
		Chart: chartSeries{
			Labels:     []string{},
			Magnitudes: []int64{},
		},
	}
	for _, c := range summary.ByCategory {
		resp.ExpenseBreakdown = append(resp.ExpenseBreakdown, breakdownSlice{
			Category:    c.Name,
			AmountCents: c.Amount.Cents,
		})
		resp.Chart.Labels = append(resp.Chart.Labels, c.Name)
		resp.Chart.Magnitudes = append(resp.Chart.Magnitudes, c.Amount.Cents)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "Summary JSON encode error", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleEvents streams ledger change notifications over Server-Sent Events.
// Each signal means "re-fetch": the stream carries no payload beyond the
// event name, matching the coalescing hub semantics.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if s.hub == nil {
		http.Error(w, "events unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.hub.Subscribe()
	defer sub.Close()

	logger := applog.FromContext(r.Context())
	logger.Debug("Event stream subscriber connected", "client_ip", extractClientIP(r))
	defer logger.Debug("Event stream subscriber disconnected")

	if _, err := w.Write([]byte("event: connected\ndata: {}\n\n")); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			if _, err := w.Write([]byte("event: change\ndata: {}\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
