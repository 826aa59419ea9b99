// Package server exposes the planner over a JSON HTTP API.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iwvelando/deployment-planner/internal/config"
	"github.com/iwvelando/deployment-planner/internal/cost"
	"github.com/iwvelando/deployment-planner/internal/metrics"
	"github.com/iwvelando/deployment-planner/internal/planner"
	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/internal/socialsecurity"
	"github.com/iwvelando/deployment-planner/internal/team"
	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/output"
	"github.com/iwvelando/deployment-planner/pkg/validation"
)

// Options configures the handler.
type Options struct {
	MaxUploadSize int64
	MaxSessions   int
	Version       string
	// Candidates is the pool used when a staffing request supplies none.
	Candidates []scoring.Candidate
	// Weights apply when a staffing request names neither weights nor a preset.
	Weights scoring.Weights
}

type session struct {
	run      *scoring.Run
	selector *team.Selector
}

type handler struct {
	logger        *zap.Logger
	planner       *planner.Planner
	maxUploadSize int64
	maxSessions   int
	version       string
	candidates    []scoring.Candidate
	weights       scoring.Weights

	mu       sync.Mutex
	sessions map[string]*session
	order    []string
}

// NewHandler constructs the HTTP handler that serves the planner API.
func NewHandler(logger *zap.Logger, p *planner.Planner, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = constants.DefaultMaxUploadSizeBytes
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}

	h := &handler{
		logger:        logger,
		planner:       p,
		maxUploadSize: opts.MaxUploadSize,
		maxSessions:   opts.MaxSessions,
		version:       version,
		candidates:    opts.Candidates,
		weights:       opts.Weights,
		sessions:      make(map[string]*session),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/cost", h.handleCost)
	mux.HandleFunc("/api/staffing", h.handleStaffing)
	mux.HandleFunc("/api/team", h.handleTeam)
	mux.HandleFunc("/api/team/remove", h.handleTeamMutation("remove"))
	mux.HandleFunc("/api/team/add", h.handleTeamMutation("add"))
	mux.HandleFunc("/api/team/swap", h.handleTeamMutation("swap"))
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/api/jurisdictions", h.handleJurisdictions)
	mux.HandleFunc("/api/version", h.handleVersion)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

type costRequest struct {
	UserID          string             `json:"userId"`
	Assignment      cost.Assignment    `json:"assignment"`
	AdminFees       *cost.AdminFees    `json:"adminFees,omitempty"`
	DisplayCurrency string             `json:"displayCurrency,omitempty"`
	DisplayRates    map[string]float64 `json:"displayRates,omitempty"`
}

type costResponse struct {
	planner.CostReport
	CSV      string `json:"csv"`
	Duration string `json:"duration"`
}

type staffingRequest struct {
	SessionID  string              `json:"sessionId"`
	Demand     scoring.Demand      `json:"demand"`
	Candidates []scoring.Candidate `json:"candidates,omitempty"`
	Weights    *scoring.Weights    `json:"weights,omitempty"`
	Preset     string              `json:"preset,omitempty"`
}

type staffingResponse struct {
	SessionID string        `json:"sessionId"`
	Run       *scoring.Run  `json:"run"`
	Team      team.Snapshot `json:"team"`
	CSV       string        `json:"csv"`
	Duration  string        `json:"duration"`
}

type teamRequest struct {
	SessionID   string `json:"sessionId"`
	CandidateID string `json:"candidateId,omitempty"`
	OutgoingID  string `json:"outgoingId,omitempty"`
	IncomingID  string `json:"incomingId,omitempty"`
}

type teamResponse struct {
	SessionID string        `json:"sessionId"`
	Changed   bool          `json:"changed"`
	Error     string        `json:"error,omitempty"`
	Team      team.Snapshot `json:"team"`
}

func (h *handler) handleCost(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCost"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	var req costRequest
	if !h.decodeBody(w, r, &req, op) {
		return
	}

	report, err := h.planner.CalculateCost(r.Context(), req.UserID, req.Assignment, planner.CostOptions{
		Options:   cost.Options{DisplayCurrency: req.DisplayCurrency, DisplayRates: req.DisplayRates},
		AdminFees: req.AdminFees,
	})
	if err != nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, err.Error(), op)
		return
	}

	var csv bytes.Buffer
	output.CsvCost(&csv, report)
	elapsed := time.Since(start)
	h.logger.Info("cost computed",
		zap.String("op", op),
		zap.String("id", report.ID),
		zap.String("host", report.Assignment.HostCountry),
		zap.Duration("duration", elapsed))

	h.writeJSON(w, http.StatusOK, costResponse{CostReport: report, CSV: csv.String(), Duration: elapsed.String()})
}

func (h *handler) handleStaffing(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleStaffing"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	var req staffingRequest
	if !h.decodeBody(w, r, &req, op) {
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		h.respondErrorWithOp(w, http.StatusBadRequest, "sessionId is required", op)
		return
	}
	if err := validation.ValidateCountryCode(req.Demand.Destination); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid destination: %v", err), op)
		return
	}

	weights := h.weights
	switch {
	case req.Weights != nil:
		weights = *req.Weights
	case strings.TrimSpace(req.Preset) != "":
		name := config.CanonicalPreset(req.Preset)
		if err := validation.ValidatePreset(name); err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
			return
		}
		weights, _ = scoring.Preset(name)
	}

	candidates := req.Candidates
	if len(candidates) == 0 {
		candidates = h.candidates
	}

	staffing, err := h.planner.Optimize(r.Context(), req.Demand, candidates, weights)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, err.Error(), op)
		return
	}

	h.mu.Lock()
	h.storeSession(sessionID, &session{run: staffing.Run, selector: staffing.Selector})
	snapshot := staffing.Selector.Snapshot()
	h.mu.Unlock()

	var csv bytes.Buffer
	output.CsvStaffing(&csv, snapshot)
	elapsed := time.Since(start)
	h.writeJSON(w, http.StatusOK, staffingResponse{
		SessionID: sessionID,
		Run:       staffing.Run,
		Team:      snapshot,
		CSV:       csv.String(),
		Duration:  elapsed.String(),
	})
}

// storeSession replaces any previous run for id and evicts the oldest session
// beyond the limit. Callers hold h.mu.
func (h *handler) storeSession(id string, s *session) {
	if _, exists := h.sessions[id]; exists {
		for i, existing := range h.order {
			if existing == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
	h.sessions[id] = s
	h.order = append(h.order, id)
	for len(h.order) > h.maxSessions {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.sessions, oldest)
	}
}

func (h *handler) handleTeam(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleTeam"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	var snapshot team.Snapshot
	if ok {
		snapshot = s.selector.Snapshot()
	}
	h.mu.Unlock()
	if !ok {
		h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("no staffing run for session %q", sessionID), op)
		return
	}
	h.writeJSON(w, http.StatusOK, teamResponse{SessionID: sessionID, Team: snapshot})
}

func (h *handler) handleTeamMutation(operation string) http.HandlerFunc {
	op := "server.handleTeam." + operation
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		var req teamRequest
		if !h.decodeBody(w, r, &req, op) {
			return
		}
		sessionID := strings.TrimSpace(req.SessionID)

		h.mu.Lock()
		s, ok := h.sessions[sessionID]
		if !ok {
			h.mu.Unlock()
			h.respondErrorWithOp(w, http.StatusNotFound, fmt.Sprintf("no staffing run for session %q", sessionID), op)
			return
		}

		var (
			changed bool
			err     error
		)
		switch operation {
		case "remove":
			changed = s.selector.Remove(req.CandidateID)
		case "add":
			changed = s.selector.Add(req.CandidateID)
		case "swap":
			err = s.selector.Swap(req.OutgoingID, req.IncomingID)
			changed = err == nil
		}
		snapshot := s.selector.Snapshot()
		h.mu.Unlock()

		outcome := "applied"
		if !changed {
			outcome = "rejected"
		}
		metrics.TeamMutations.WithLabelValues(operation, outcome).Inc()

		resp := teamResponse{SessionID: sessionID, Changed: changed, Team: snapshot}
		if err != nil {
			resp.Error = err.Error()
			h.logger.Info("team swap rejected",
				zap.String("op", op),
				zap.String("session", sessionID),
				zap.Bool("notSelected", errors.Is(err, team.ErrNotSelected)),
				zap.Bool("notAlternate", errors.Is(err, team.ErrNotAlternate)),
				zap.Error(err))
			h.writeJSON(w, http.StatusConflict, resp)
			return
		}
		h.writeJSON(w, http.StatusOK, resp)
	}
}

func (h *handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSettings"
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		h.respondErrorWithOp(w, http.StatusBadRequest, "userId is required", op)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, http.StatusOK, h.planner.Settings(r.Context(), userID))
	case http.MethodPut:
		var settings socialsecurity.Settings
		if !h.decodeBody(w, r, &settings, op) {
			return
		}
		if err := h.planner.SaveSettings(r.Context(), userID, settings); err != nil {
			h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
			return
		}
		h.writeJSON(w, http.StatusOK, settings)
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *handler) handleJurisdictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	table := h.planner.Table()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": table.Version,
		"codes":   table.Codes(),
		"presets": scoring.PresetNames(),
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// decodeBody reads a size-limited JSON body into dst. It writes the error
// response and reports false on failure.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
			return false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
