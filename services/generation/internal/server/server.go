package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"storyloom/internal/ratelimit"
	"storyloom/internal/usertoken"
	"storyloom/internal/util"
	"storyloom/pkg/domain"
	"storyloom/services/generation/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	TokenVerifier *usertoken.Verifier
	Limiter       *ratelimit.FixedWindowLimiter
}

// Server exposes HTTP endpoints for the generation service.
type Server struct {
	app           *app.App
	tokenVerifier *usertoken.Verifier
	limiter       *ratelimit.FixedWindowLimiter
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:           cfg.App,
		tokenVerifier: cfg.TokenVerifier,
		limiter:       cfg.Limiter,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("generation", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/workspace", s.withUser(s.handleWorkspace))
	s.mux.Handle("/generate", s.withUser(s.limited(s.handleGenerate)))
	s.mux.Handle("/images", s.withUser(s.limited(s.handleImages)))
	s.mux.Handle("/projects", s.withUser(s.handleProjects))
	s.mux.Handle("/projects/", s.withUser(s.handleProjectByID))
	s.mux.Handle("/bible", s.withUser(s.handleBible))
	s.mux.Handle("/bible/", s.withUser(s.handleBibleByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, usertoken.Identity)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		identity, err := s.tokenVerifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, identity)
	})
}

// limited applies the per-user fixed-window limit to chargeable endpoints.
func (s *Server) limited(next userHandler) userHandler {
	return func(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
		if s.limiter != nil && !s.limiter.Allow(identity.UserID) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r, identity)
	}
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	workspace, fromCache, err := s.app.Workspace(r.Context(), identity.UserID, identity.Tier)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "workspace unavailable")
		return
	}
	if fromCache {
		w.Header().Set("X-Workspace-Source", "cache")
	}
	writeJSON(w, http.StatusOK, workspace)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var params app.GenerateParams
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<20)).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.Generate(r.Context(), identity.UserID, params)
	if err != nil {
		writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type imageRequest struct {
	ProjectID string `json:"projectId"`
	Prompt    string `json:"prompt"`
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req imageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.GenerateImage(r.Context(), identity.UserID, identity.Tier, req.ProjectID, req.Prompt)
	if err != nil {
		writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	switch r.Method {
	case http.MethodPost:
		var project domain.Project
		if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&project); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		saved, err := s.app.SaveProject(identity.UserID, project)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	id := strings.TrimPrefix(r.URL.Path, "/projects/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "project id is required")
		return
	}
	switch r.Method {
	case http.MethodDelete:
		if err := s.app.DeleteProject(identity.UserID, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBible(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	switch r.Method {
	case http.MethodPost:
		var entry domain.BibleEntry
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		saved, err := s.app.SaveBibleEntry(identity.UserID, entry)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleBibleByID(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	id := strings.TrimPrefix(r.URL.Path, "/bible/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "entry id is required")
		return
	}
	switch r.Method {
	case http.MethodDelete:
		if err := s.app.DeleteBibleEntry(identity.UserID, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// writeGenerateError substitutes a human-readable message where generated
// content would have appeared; raw provider errors never reach the client.
func writeGenerateError(w http.ResponseWriter, err error) {
	var entitlement *app.EntitlementError
	switch {
	case errors.As(err, &entitlement):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":  "entitlement denied",
			"reason": entitlement.Reason,
		})
	case errors.Is(err, app.ErrPromptRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrProjectForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusBadGateway, app.HumanMessage(err))
	}
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrProjectNotFound), errors.Is(err, app.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrProjectForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "storage unavailable")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
