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
	"storyloom/services/speech/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	TokenVerifier *usertoken.Verifier
	Limiter       *ratelimit.FixedWindowLimiter
}

// Server exposes HTTP endpoints for the speech service.
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
	return util.WithRequestID(util.WithRequestLog("speech", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/synthesize", s.withUser(s.limited(s.handleSynthesize)))
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

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var params app.SynthesisParams
	if err := json.NewDecoder(io.LimitReader(r.Body, 2<<20)).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.Synthesize(r.Context(), identity.UserID, identity.Tier, params)
	if err != nil {
		writeSynthesisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeSynthesisError keeps raw provider errors off the wire; clients see
// a denial reason or a short retryable message.
func writeSynthesisError(w http.ResponseWriter, err error) {
	var entitlement *app.EntitlementError
	var synthesis *app.SynthesisError
	switch {
	case errors.As(err, &entitlement):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":  "entitlement denied",
			"reason": entitlement.Reason,
		})
	case errors.Is(err, app.ErrTranscriptRequired), errors.Is(err, app.ErrNoVoices):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &synthesis):
		writeError(w, http.StatusBadGateway, "speech synthesis failed; please try again")
	default:
		writeError(w, http.StatusInternalServerError, "synthesis unavailable")
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
