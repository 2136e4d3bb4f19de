package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

type createFamilyRequest struct {
	Name string `json:"name"`
}

type addMemberRequest struct {
	UserID       string `json:"user_id"`
	Relationship string `json:"relationship"`
}

// currentUserID resolves the authenticated user or writes the error.
func (s *Server) currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := s.svc.Directory.CurrentUserID(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return "", false
	}
	return id, true
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Directory.CurrentUser(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleFamilyMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.Directory.FamilyMembers(r.Context())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(members).Write(w)
}

func (s *Server) handleCreateFamily(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	var in createFamilyRequest
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	fam, err := s.svc.Families.CreateFamily(r.Context(), userID, in.Name)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Invalidate(ViewFamily).Body(fam).Write(w)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	var in addMemberRequest
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	if err := s.svc.Families.AddMember(r.Context(), userID, mux.Vars(r)["id"], in.UserID, in.Relationship); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().NoContent().Invalidate(ViewFamily, ViewBalance).Write(w)
}

func (s *Server) handleDeleteFamily(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Families.DeleteFamily(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().NoContent().
		Invalidate(ViewFamily, ViewCategories, ViewGoals, ViewBalance).
		Write(w)
}
