package http

import (
	"net/http"

	"expenses/internal/services"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in services.Registration
	if err := readJSON(w, r, &in); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	tok, err := s.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tok)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in services.Credentials
	if err := readJSON(w, r, &in); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	tok, err := s.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}
