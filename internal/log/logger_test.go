package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Output: &buf})
	l.Info("hello")

	worker := l.WithComponent(ComponentWorker)
	worker.Info("tick")
	worker.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=http msg=hello") && !strings.Contains(out, "msg=hello component=http") {
		t.Errorf("missing http component: %s", out)
	}
	if strings.Count(out, "component=") != 2 {
		t.Errorf("component logged more than once per line: %s", out)
	}
	if !strings.Contains(out, "component=worker") || strings.Contains(out, "hidden") {
		t.Errorf("unexpected output: %s", out)
	}
	if worker.Component() != ComponentWorker {
		t.Errorf("Component() = %q", worker.Component())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Format: "json", Output: &buf}).Info("hello", FieldUserID, "u1")
	if !strings.Contains(buf.String(), `"user_id":"u1"`) {
		t.Errorf("unexpected json output: %s", buf.String())
	}
}

func TestMiddlewareAddsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf, Component: ComponentHTTP})

	h := Middleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))
	req := httptest.NewRequest(http.MethodGet, "/movements", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req_1"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"request_id=req_1", "path=/movements", "method=GET"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", l)
	}
	if RequestID(context.Background()) != "" {
		t.Fatal("empty context has a request id")
	}
}
