package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"fambudget/internal/core"
	"fambudget/internal/services"
)

type contributeRequest struct {
	Amount core.Money `json:"amount"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	goals, err := s.svc.Goals.List(r.Context(), userID)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(goals).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	var in services.GoalInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	goal, err := s.svc.Goals.Create(r.Context(), userID, in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Invalidate(ViewGoals).Body(goal).Write(w)
}

func (s *Server) handleEditGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	var in services.GoalInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	goal, err := s.svc.Goals.Edit(r.Context(), userID, mux.Vars(r)["id"], in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Invalidate(ViewGoals).Body(goal).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Goals.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().NoContent().Invalidate(ViewGoals).Write(w)
}

// handleContribute always contributes on behalf of the authenticated user.
func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	var in contributeRequest
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	res, err := s.svc.Goals.Contribute(r.Context(), services.ContributionRequest{
		GoalID: mux.Vars(r)["id"],
		Amount: in.Amount,
		UserID: userID,
	})
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Invalidate(ViewGoals, ViewBalance).Body(res).Write(w)
}
