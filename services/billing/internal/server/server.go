package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"storyloom/internal/servicetoken"
	"storyloom/internal/usertoken"
	"storyloom/internal/util"
	"storyloom/pkg/domain"
	"storyloom/services/billing/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	Ledger          *app.Ledger
	TokenVerifier   *usertoken.Verifier
	ServiceVerifier *servicetoken.Verifier
}

// Server exposes HTTP endpoints for the billing service. User-facing
// endpoints take the auth provider's access token; /internal endpoints take
// a short-lived service token from generation or speech.
type Server struct {
	ledger          *app.Ledger
	tokenVerifier   *usertoken.Verifier
	serviceVerifier *servicetoken.Verifier
	mux             *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		ledger:          cfg.Ledger,
		tokenVerifier:   cfg.TokenVerifier,
		serviceVerifier: cfg.ServiceVerifier,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("billing", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/usage", s.withUser(s.handleUsage))
	s.mux.Handle("/usage/history", s.withUser(s.handleHistory))
	s.mux.Handle("/usage/upgrade", s.withUser(s.handleUpgrade))
	s.mux.Handle("/internal/usage", s.withService(s.handleInternalUsage))
	s.mux.Handle("/internal/usage/check", s.withService(s.handleCheck))
	s.mux.Handle("/internal/usage/track", s.withService(s.handleTrack))
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

func (s *Server) withService(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := servicetoken.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := s.serviceVerifier.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snapshot, err := s.ledger.Snapshot(identity.UserID, identity.Tier)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.ledger.History(identity.UserID, limit)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.UsageEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type upgradeRequest struct {
	Tier domain.SubscriptionTier `json:"tier"`
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request, identity usertoken.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req upgradeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(string(req.Tier)) == "" {
		writeError(w, http.StatusBadRequest, "tier is required")
		return
	}
	snapshot, err := s.ledger.Upgrade(identity.UserID, identity.Tier, req.Tier)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleInternalUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	tier := domain.SubscriptionTier(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("tier"))))
	if tier == "" {
		tier = domain.TierFree
	}
	snapshot, err := s.ledger.Snapshot(userID, tier)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type checkRequest struct {
	UserID     string                  `json:"userId"`
	Tier       domain.SubscriptionTier `json:"tier"`
	Capability domain.Capability       `json:"capability"`
	Amount     int64                   `json:"amount"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req checkRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	decision, err := s.ledger.CheckLimit(r.Context(), req.UserID, req.Tier, req.Capability, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

type trackRequest struct {
	UserID      string                  `json:"userId"`
	Tier        domain.SubscriptionTier `json:"tier"`
	Capability  domain.Capability       `json:"capability"`
	Amount      int64                   `json:"amount"`
	Description string                  `json:"description"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req trackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	snapshot, err := s.ledger.TrackUsage(req.UserID, req.Tier, req.Capability, req.Amount, req.Description)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrUnknownTier),
		errors.Is(err, app.ErrUnknownCapability),
		errors.Is(err, app.ErrAmountNotPositive):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "ledger unavailable")
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
