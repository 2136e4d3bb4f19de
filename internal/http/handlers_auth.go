package http

import (
	"net/http"

	"fambudget/internal/auth"
	"fambudget/internal/core"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type passwordResetConfirm struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in auth.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	session, err := s.svc.Auth.SignUp(r.Context(), in)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(session).Write(w)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in signInRequest
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	session, err := s.svc.Auth.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(session).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	s.svc.Auth.SignOut(r.Context(), identity)
	NewJSONResponse().NoContent().Write(w)
}

// handlePasswordReset always answers 202 so callers cannot probe which
// addresses are registered.
func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var in passwordResetRequest
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	if err := s.svc.Auth.RequestPasswordReset(r.Context(), in.Email); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).
		Body(map[string]string{"message": "Si la cuenta existe, te enviamos un correo"}).
		Write(w)
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var in passwordResetConfirm
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	if err := s.svc.Auth.ResetPassword(r.Context(), in.Token, in.Password); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().NoContent().Write(w)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in updatePasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		FromError(r, core.ErrUnauthorized).Write(w)
		return
	}
	if err := s.svc.Auth.UpdatePassword(r.Context(), identity, in.CurrentPassword, in.NewPassword); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().NoContent().Write(w)
}
