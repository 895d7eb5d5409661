package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"orcamento/internal/core"
)

var errBadPeriod = errors.New("invalid period")

// parsePeriod resolves the reporting window from query parameters.
// "period=month" covers the 1st of the current month through today,
// "period=year" covers January 1st through today, and an explicit
// "from"/"to" pair selects a custom inclusive range. Defaults to the
// current month.
func parsePeriod(r *http.Request) (from, to core.Date, err error) {
	q := r.URL.Query()

	fromStr := strings.TrimSpace(q.Get("from"))
	toStr := strings.TrimSpace(q.Get("to"))
	if fromStr != "" || toStr != "" {
		if fromStr == "" || toStr == "" {
			return core.Date{}, core.Date{}, fmt.Errorf("%w: both from and to are required", errBadPeriod)
		}
		from, err = core.ParseDate(fromStr)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("%w: from %q", errBadPeriod, fromStr)
		}
		to, err = core.ParseDate(toStr)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("%w: to %q", errBadPeriod, toStr)
		}
		if from.After(to.Time) {
			return core.Date{}, core.Date{}, fmt.Errorf("%w: from is after to", errBadPeriod)
		}
		return from, to, nil
	}

	now := time.Now()
	today := core.NewDate(now.Year(), int(now.Month()), now.Day())

	switch strings.TrimSpace(q.Get("period")) {
	case "", "month":
		return core.NewDate(now.Year(), int(now.Month()), 1), today, nil
	case "year":
		return core.NewDate(now.Year(), 1, 1), today, nil
	default:
		return core.Date{}, core.Date{}, fmt.Errorf("%w: period must be 'month' or 'year'", errBadPeriod)
	}
}

// parseFormID reads a positive integer identifier from a form field.
func parseFormID(r *http.Request, field string) (int64, error) {
	v := strings.TrimSpace(r.Form.Get(field))
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", field, v)
	}
	return id, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
