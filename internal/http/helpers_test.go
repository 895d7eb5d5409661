package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	now := time.Now()
	today := now.Format("2006-01-02")

	tests := []struct {
		name     string
		query    string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{
			name:     "default is current month",
			query:    "",
			wantFrom: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			wantTo:   today,
		},
		{
			name:     "explicit month",
			query:    "period=month",
			wantFrom: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			wantTo:   today,
		},
		{
			name:     "year runs from january first",
			query:    "period=year",
			wantFrom: time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			wantTo:   today,
		},
		{
			name:     "custom range",
			query:    "from=2026-03-01&to=2026-03-31",
			wantFrom: "2026-03-01",
			wantTo:   "2026-03-31",
		},
		{
			name:     "single day range",
			query:    "from=2026-03-15&to=2026-03-15",
			wantFrom: "2026-03-15",
			wantTo:   "2026-03-15",
		},
		{
			name:    "unknown period",
			query:   "period=week",
			wantErr: true,
		},
		{
			name:    "from without to",
			query:   "from=2026-03-01",
			wantErr: true,
		},
		{
			name:    "malformed from",
			query:   "from=03/01/2026&to=2026-03-31",
			wantErr: true,
		},
		{
			name:    "inverted range",
			query:   "from=2026-03-31&to=2026-03-01",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/totals?"+tt.query, nil)
			from, to, err := parsePeriod(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePeriod() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if from.String() != tt.wantFrom {
				t.Errorf("from = %s, want %s", from.String(), tt.wantFrom)
			}
			if to.String() != tt.wantTo {
				t.Errorf("to = %s, want %s", to.String(), tt.wantTo)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"line\nbreak", "line\nbreak"},
		{"null\x00byte", "nullbyte"},
		{"bell\x07char", "bellchar"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
