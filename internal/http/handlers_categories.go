package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"fambudget/internal/core"
	"fambudget/internal/services"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}

	var (
		cats []core.Category
		err  error
	)
	if strings.TrimSpace(r.URL.Query().Get("kind")) == "" {
		cats, err = s.svc.Categories.List(r.Context(), userID)
	} else {
		var kind core.Kind
		if kind, err = ParseKind(r.URL.Query()); err == nil {
			cats, err = s.svc.Categories.ListByKind(r.Context(), userID, kind)
		}
	}
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(cats).Write(w)
}

func (s *Server) handleCategoryExists(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("name")) == "" {
		FromError(r, core.Invalid(core.ErrEmptyName)).Write(w)
		return
	}
	exists, err := s.svc.Categories.NameExists(r.Context(), userID, q.Get("name"), q.Get("exclude"))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]bool{"exists": exists}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	var in services.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	cat, err := s.svc.Household.CreateCategory(r.Context(), userID, in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Invalidate(ViewCategories, ViewFamily).
		Body(cat).
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	var in services.CategoryInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	cat, err := s.svc.Categories.Update(r.Context(), userID, mux.Vars(r)["id"], in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Invalidate(ViewCategories).Body(cat).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.currentUserID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Categories.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().NoContent().Invalidate(ViewCategories, ViewMovements).Write(w)
}
