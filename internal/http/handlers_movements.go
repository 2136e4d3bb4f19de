package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"fambudget/internal/core"
	"fambudget/internal/services"
)

type totalResponse struct {
	Kind  core.Kind  `json:"kind"`
	Total core.Money `json:"total"`
}

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	var in services.MovementInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	in.UserID = userID

	res, err := s.svc.Ledger.CreateMovement(r.Context(), in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	b := NewJSONResponse().Status(http.StatusCreated).Invalidate(ViewBalance, ViewMovements)
	if res.Contribution != nil {
		b.Invalidate(ViewGoals)
	}
	b.Body(res).Write(w)
}

func (s *Server) handleUpdateMovement(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	var p services.MovementPatch
	if err := decodeJSON(w, r, &p); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	mv, err := s.svc.Ledger.UpdateMovement(r.Context(), userID, mux.Vars(r)["id"], p)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Invalidate(ViewBalance, ViewMovements).Body(mv).Write(w)
}

func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	opts, err := ParseListOptions(r.URL.Query())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	list, err := s.svc.Ledger.ListByUser(r.Context(), userID, opts)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(list).Write(w)
}

func (s *Server) handleMovementTotal(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	kind, err := ParseKind(q)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	period, err := ParsePeriod(q)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	total, err := s.svc.Ledger.TotalByKind(r.Context(), userID, kind, period)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(totalResponse{Kind: kind, Total: total}).Write(w)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	bq, err := ParseBalanceQuery(r.URL.Query(), userID)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	sum, err := s.svc.Ledger.BalanceBetween(r.Context(), bq)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(sum).Write(w)
}
