package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"fambudget/internal/core"
)

func TestParseListOptions(t *testing.T) {
	tests := []struct {
		query   string
		want    string
		wantErr bool
	}{
		{"", "0 false 0 0", false},
		{"limit=20&order=ASC&month=2&year=2025", "20 true 2 2025", false},
		{"order=desc", "0 false 0 0", false},
		{"order=sideways", "", true},
		{"limit=-1", "", true},
		{"month=feb", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			opts, err := ParseListOptions(q)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidParameters) {
					t.Fatalf("got %v, want ErrInvalidParameters", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			got := fmt.Sprintf("%d %t %d %d", opts.Limit, opts.Ascending, opts.Month, opts.Year)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePeriodAndKind(t *testing.T) {
	q, _ := url.ParseQuery("kind=Income&date=2025-03-10")
	kind, err := ParseKind(q)
	if err != nil || kind != core.Income {
		t.Fatalf("ParseKind = %q, %v", kind, err)
	}
	p, err := ParsePeriod(q)
	if err != nil || p.Date.String() != "2025-03-10" {
		t.Fatalf("ParsePeriod = %+v, %v", p, err)
	}

	q, _ = url.ParseQuery("date=10/03/2025")
	if _, err := ParsePeriod(q); !errors.Is(err, core.ErrInvalidParameters) {
		t.Errorf("bad date: %v", err)
	}
	if _, err := ParseKind(url.Values{}); !errors.Is(err, core.ErrInvalidParameters) {
		t.Errorf("missing kind: %v", err)
	}
}

func TestParseBalanceQuery(t *testing.T) {
	tests := []struct {
		query   string
		scope   core.Scope
		wantErr bool
	}{
		{"start=2025-01-01&end=2025-01-31", core.ScopeUser, false},
		{"start=2025-01-01&end=2025-01-31&scope=FAMILY", core.ScopeFamily, false},
		{"start=2025-01-01&scope=team", "", true},
		{"start=enero", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			bq, err := ParseBalanceQuery(q, "u1")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil || bq.Scope != tt.scope || bq.UserID != "u1" {
				t.Fatalf("got %+v, %v", bq, err)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"ok", `{"name":"Comida"}`, ""},
		{"empty", ``, "empty request body"},
		{"malformed", `{"name":`, "malformed JSON"},
		{"trailing object", `{"name":"a"}{"name":"b"}`, "single JSON object"},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst struct {
				Name string `json:"name"`
			}
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				if err != nil || dst.Name != "Comida" {
					t.Fatalf("got %+v, %v", dst, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want %q", err, tt.wantErr)
			}
		})
	}
}
