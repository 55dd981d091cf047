// Package httpapi exposes the REST handlers and translates HTTP requests into
// ceremony service calls.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/marcelojr/awards-night/internal/app/ceremony"
	"github.com/marcelojr/awards-night/internal/domain"
	"github.com/marcelojr/awards-night/internal/platform/metrics"
	"github.com/marcelojr/awards-night/internal/platform/ratelimit"
)

// Service is the slice of the ceremony core the handlers need.
type Service interface {
	Register(ctx context.Context, name, identity, photoDataURI string) (domain.Participant, error)
	Start(ctx context.Context, actorID domain.ParticipantID, action ceremony.ResetAction) (domain.ServiceState, error)
	AddCategory(ctx context.Context, actorID domain.ParticipantID, name, description string) (domain.Category, error)
	CastVote(ctx context.Context, voterID domain.ParticipantID, roundID domain.RoundID, candidateID domain.ParticipantID) error
	Reveal(ctx context.Context, actorID domain.ParticipantID) (domain.Round, error)
	StartTieBreaker(ctx context.Context, actorID domain.ParticipantID) (domain.Round, error)
	Advance(ctx context.Context, actorID domain.ParticipantID) (domain.ServiceState, error)
	Retreat(ctx context.Context, actorID domain.ParticipantID) (domain.ServiceState, error)
	Status(ctx context.Context, identity string) (ceremony.StatusOverview, error)
	Results(ctx context.Context) (ceremony.ResultsOverview, error)
	LiveTotals(ctx context.Context, roundID domain.RoundID) (map[domain.ParticipantID]int64, error)
}

// API bundles the HTTP handlers bound to the ceremony service and the logger.
type API struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *API {
	return &API{service: service, logger: logger}
}

func (a *API) Register(mux *http.ServeMux) {
	// Routes stay centralized so tests and alternative servers can reuse them.
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/status", a.handleStatus)
	mux.HandleFunc("/results", a.handleResults)
	mux.HandleFunc("/participants", a.handleParticipants)
	mux.HandleFunc("/categories", a.handleCategories)
	mux.HandleFunc("/votes", a.handleVotes)
	mux.HandleFunc("/rounds/", a.handleRoundDetails)
	mux.HandleFunc("/service/start", a.handleStart)
	mux.HandleFunc("/service/reveal", a.handleReveal)
	mux.HandleFunc("/service/tiebreaker", a.handleTieBreaker)
	mux.HandleFunc("/service/next", a.handleNext)
	mux.HandleFunc("/service/previous", a.handlePrevious)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	overview, err := a.service.Status(r.Context(), clientIdentity(r))
	if err != nil {
		a.logger.Error("status query failed", "err", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, overview)
}

func (a *API) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	overview, err := a.service.Results(r.Context())
	if err != nil {
		a.logger.Error("results query failed", "err", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, overview)
}

type registerRequest struct {
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

func (a *API) handleParticipants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Warn("invalid payload on register", "err", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	identity := clientIdentity(r)
	participant, err := a.service.Register(r.Context(), req.Name, identity, req.Photo)
	if err != nil {
		a.logger.Warn("registration failed", "err", err, "identity", identity)
		respondError(w, err)
		return
	}

	a.logger.Info("participant registered", "id", participant.ID, "name", participant.Name)
	respondJSON(w, http.StatusCreated, participant)
}

type categoryRequest struct {
	ActorID     string `json:"actor_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Warn("invalid payload on add category", "err", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	category, err := a.service.AddCategory(r.Context(), domain.ParticipantID(req.ActorID), req.Name, req.Description)
	if err != nil {
		a.logger.Warn("add category failed", "err", err, "actor", req.ActorID)
		respondError(w, err)
		return
	}

	a.logger.Info("category added", "id", category.ID, "name", category.Name)
	respondJSON(w, http.StatusCreated, category)
}

type voteRequest struct {
	VoterID     string `json:"voter_id"`
	RoundID     string `json:"round_id"`
	CandidateID string `json:"candidate_id"`
}

func (a *API) handleVotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveVoteRequest("invalid_payload")
		a.logger.Warn("invalid payload on vote", "err", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	err := a.service.CastVote(
		r.Context(),
		domain.ParticipantID(req.VoterID),
		domain.RoundID(req.RoundID),
		domain.ParticipantID(req.CandidateID),
	)
	if err != nil {
		status := voteStatusFromError(err)
		metrics.ObserveVoteRequest(status)
		a.logger.Warn("vote rejected", "err", err, "voter", req.VoterID, "round", req.RoundID, "status", status)
		respondError(w, err)
		return
	}

	metrics.ObserveVoteRequest("accepted")
	a.logger.Info("vote accepted", "voter", req.VoterID, "round", req.RoundID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (a *API) handleRoundDetails(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/rounds/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "live" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roundID := domain.RoundID(parts[0])
	totals, err := a.service.LiveTotals(r.Context(), roundID)
	if err != nil {
		a.logger.Error("live totals query failed", "err", err, "round", roundID)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, totals)
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
	Action  string `json:"action"`
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeActor(w, r)
	if !ok {
		return
	}

	state, err := a.service.Start(r.Context(), domain.ParticipantID(req.ActorID), ceremony.ResetAction(req.Action))
	if err != nil {
		a.logger.Warn("start failed", "err", err, "actor", req.ActorID, "action", req.Action)
		respondError(w, err)
		return
	}

	a.logger.Info("event started", "actor", req.ActorID, "action", req.Action)
	respondJSON(w, http.StatusOK, state)
}

func (a *API) handleReveal(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeActor(w, r)
	if !ok {
		return
	}

	round, err := a.service.Reveal(r.Context(), domain.ParticipantID(req.ActorID))
	if err != nil {
		a.logger.Warn("reveal failed", "err", err, "actor", req.ActorID)
		respondError(w, err)
		return
	}

	outcome := "winner"
	if round.HasDraw {
		outcome = "draw"
	}
	metrics.ObserveReveal(outcome)
	a.logger.Info("round revealed", "round", round.ID, "outcome", outcome)
	respondJSON(w, http.StatusOK, round)
}

func (a *API) handleTieBreaker(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeActor(w, r)
	if !ok {
		return
	}

	round, err := a.service.StartTieBreaker(r.Context(), domain.ParticipantID(req.ActorID))
	if err != nil {
		a.logger.Warn("tie breaker failed", "err", err, "actor", req.ActorID)
		respondError(w, err)
		return
	}

	a.logger.Info("tie breaker started", "round", round.ID)
	respondJSON(w, http.StatusOK, round)
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeActor(w, r)
	if !ok {
		return
	}

	state, err := a.service.Advance(r.Context(), domain.ParticipantID(req.ActorID))
	if err != nil {
		a.logger.Warn("advance failed", "err", err, "actor", req.ActorID)
		respondError(w, err)
		return
	}

	metrics.IncRoundAdvanced()
	a.logger.Info("advanced to next category", "status", state.Status, "active_round", state.ActiveRoundID)
	respondJSON(w, http.StatusOK, state)
}

func (a *API) handlePrevious(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeActor(w, r)
	if !ok {
		return
	}

	state, err := a.service.Retreat(r.Context(), domain.ParticipantID(req.ActorID))
	if err != nil {
		a.logger.Warn("retreat failed", "err", err, "actor", req.ActorID)
		respondError(w, err)
		return
	}

	a.logger.Info("retreated to previous category", "status", state.Status, "active_round", state.ActiveRoundID)
	respondJSON(w, http.StatusOK, state)
}

func (a *API) decodeActor(w http.ResponseWriter, r *http.Request) (actorRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return actorRequest{}, false
	}

	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Warn("invalid payload on admin action", "err", err, "path", r.URL.Path)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return actorRequest{}, false
	}
	return req, true
}

// clientIdentity derives the participant identity from the network address,
// preferring the proxy header when present.
func clientIdentity(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// respondError maps core errors onto HTTP statuses plus stable machine codes.
// existing_rounds stays distinct so clients can offer the reset choice.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case errors.Is(err, ceremony.ErrNameRequired):
		status, code = http.StatusBadRequest, "invalid_name"
	case errors.Is(err, ceremony.ErrInvalidResetAction):
		status, code = http.StatusBadRequest, "invalid_reset_action"
	case errors.Is(err, ceremony.ErrSelfVote):
		status, code = http.StatusBadRequest, "self_vote"
	case errors.Is(err, ceremony.ErrAdminCannotVote):
		status, code = http.StatusBadRequest, "admin_cannot_vote"
	case errors.Is(err, ceremony.ErrCannotVoteForAdmin):
		status, code = http.StatusBadRequest, "cannot_vote_for_admin"
	case errors.Is(err, ceremony.ErrInvalidTieBreakTarget):
		status, code = http.StatusBadRequest, "invalid_tie_break_target"
	case errors.Is(err, ceremony.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, ceremony.ErrDuplicateIdentity):
		status, code = http.StatusConflict, "duplicate_identity"
	case errors.Is(err, ceremony.ErrExistingRounds):
		status, code = http.StatusConflict, "existing_rounds"
	case errors.Is(err, ceremony.ErrNoCategories):
		status, code = http.StatusConflict, "no_categories"
	case errors.Is(err, ceremony.ErrVotingClosed):
		status, code = http.StatusConflict, "voting_closed"
	case errors.Is(err, ceremony.ErrNoActiveRound):
		status, code = http.StatusConflict, "no_active_round"
	case errors.Is(err, ceremony.ErrNoDrawDetected):
		status, code = http.StatusConflict, "no_draw_detected"
	case errors.Is(err, ceremony.ErrNoPreviousCategory):
		status, code = http.StatusConflict, "no_previous_category"
	case errors.Is(err, ceremony.ErrRoundNotFound):
		status, code = http.StatusNotFound, "round_not_found"
	case errors.Is(err, ceremony.ErrParticipantNotFound):
		status, code = http.StatusNotFound, "participant_not_found"
	case errors.Is(err, ceremony.ErrPreviousRoundNotFound):
		status, code = http.StatusNotFound, "previous_round_not_found"
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		status, code = http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ceremony.ErrStoreUnavailable):
		status, code = http.StatusServiceUnavailable, "store_unavailable"
	}

	respondJSON(w, status, errorResponse{Code: code, Error: err.Error()})
}

func voteStatusFromError(err error) string {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, ceremony.ErrVotingClosed):
		return "closed"
	case errors.Is(err, ceremony.ErrRoundNotFound), errors.Is(err, ceremony.ErrParticipantNotFound):
		return "not_found"
	case errors.Is(err, ceremony.ErrSelfVote),
		errors.Is(err, ceremony.ErrAdminCannotVote),
		errors.Is(err, ceremony.ErrCannotVoteForAdmin),
		errors.Is(err, ceremony.ErrInvalidTieBreakTarget):
		return "invalid"
	default:
		return "error"
	}
}
