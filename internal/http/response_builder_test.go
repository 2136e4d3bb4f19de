package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fambudget/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Invalidate(ViewMovements, ViewBalance).
		Invalidate(ViewBalance).
		Header("Location", "/movements/1").
		Body(map[string]string{"id": "1"}).
		Write(rec)

	if rec.Code != http.StatusCreated {
		t.Errorf("status %d", rec.Code)
	}
	if got := rec.Header().Get(HeaderInvalidate); got != "balance,movements" {
		t.Errorf("X-Invalidate = %q", got)
	}
	if rec.Header().Get("Location") != "/movements/1" {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["id"] != "1" {
		t.Errorf("body %q, %v", rec.Body.String(), err)
	}
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().NoContent().Invalidate(ViewGoals).Write(rec)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(HeaderInvalidate) != ViewGoals {
		t.Errorf("X-Invalidate = %q", rec.Header().Get(HeaderInvalidate))
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("goal g1: %w", core.ErrNotFound), http.StatusNotFound, "not_found"},
		{"duplicate", core.ErrDuplicateName, http.StatusConflict, "duplicate_name"},
		{"invalid", core.Invalid(errors.New("bad")), http.StatusUnprocessableEntity, "invalid_parameters"},
		{"insufficient", core.InsufficientFunds(core.Cents(100), core.Cents(500)), http.StatusUnprocessableEntity, "insufficient_funds"},
		{"overflow", core.GoalOverflow(core.Cents(2000)), http.StatusUnprocessableEntity, "goal_overflow"},
		{"unauthorized", core.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", core.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"backend", errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(httptest.NewRequest(http.MethodGet, "/", nil), tt.err).Write(rec)

			var body ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tt.status || body.Error != tt.code {
				t.Fatalf("got %d %+v, want %d %s", rec.Code, body, tt.status, tt.code)
			}
			if tt.code == "internal" && body.Message != "Internal server error" {
				t.Errorf("backend detail leaked: %q", body.Message)
			}
		})
	}
}

func TestGoalOverflowMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(httptest.NewRequest(http.MethodPost, "/", nil), core.GoalOverflow(core.Cents(2000))).Write(rec)

	var body ErrorBody
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Message != "el aporte excede el objetivo de la meta: máximo permitido: 20.00" {
		t.Errorf("message = %q", body.Message)
	}
}
