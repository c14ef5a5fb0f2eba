// Package api exposes the HTTP surface of the WalkWins backend.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"example.com/walkwins/internal/aggregation"
	"example.com/walkwins/internal/auth"
	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/remote"
)

// Handler coordinates HTTP requests with the step ledger and account store.
type Handler struct {
	ledger   remote.LedgerStore
	reader   *aggregation.Reader
	accounts remote.AccountStore
	clock    domain.Clock
}

// NewHandler builds a Handler.
func NewHandler(ledger remote.LedgerStore, reader *aggregation.Reader, accounts remote.AccountStore, clock domain.Clock) *Handler {
	return &Handler{ledger: ledger, reader: reader, accounts: accounts, clock: clock}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/steps/today", h.stepsToday)
	mux.HandleFunc("/v1/earnings", h.earnings)
	mux.HandleFunc("/v1/leaderboard", h.leaderboard)
	mux.HandleFunc("/v1/history/weekly", h.weeklyHistory)
	mux.HandleFunc("/v1/goal", h.updateGoal)
	mux.HandleFunc("/v1/challenges/join", h.joinChallenge)
	mux.HandleFunc("/v1/challenges/claim", h.claimChallenge)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request, scope string) (string, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	if !claims.HasScope(scope) && !claims.HasScope(auth.ScopeStepsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return "", false
	}
	return claims.Subject, true
}

func (h *Handler) stepsToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireUser(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	today := domain.DateKey(h.clock.Now())
	rec, err := h.ledger.DailyRecord(r.Context(), userID, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	resolved := remote.OrZero(rec, today)

	writeJSON(w, http.StatusOK, DailyStepsView{
		Date:       resolved.Date,
		Steps:      resolved.Steps,
		BoostSteps: resolved.BoostSteps,
	})
}

func (h *Handler) earnings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireUser(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	account, err := h.accounts.Account(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, EarningsView{
		LifetimeTotalSteps: account.LifetimeTotalSteps,
		BoostSteps:         account.BoostSteps,
		Coins:              account.Coins,
		TotalEarnings:      domain.TotalEarnings(account.LifetimeTotalSteps, account.Coins, account.BoostSteps),
	})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireUser(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	entries, rank, err := h.reader.Leaderboard(r.Context(), userID)
	if err != nil {
		if errors.Is(err, aggregation.ErrUserNotRanked) {
			writeError(w, http.StatusNotFound, "not_found", "user not present in leaderboard")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	views := make([]LeaderboardEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, LeaderboardEntryView{
			Rank:     entry.Rank,
			UserID:   entry.UserID,
			Username: entry.Username,
			Steps:    entry.Steps,
		})
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{Rank: rank, Entries: views})
}

func (h *Handler) weeklyHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireUser(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	// live_today lets the device substitute its running count for today's
	// entry, since the remote record only moves on sync.
	var liveToday int64 = -1
	if raw := r.URL.Query().Get("live_today"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid live_today parameter")
			return
		}
		liveToday = parsed
	}
	if liveToday < 0 {
		today := domain.DateKey(h.clock.Now())
		rec, err := h.ledger.DailyRecord(r.Context(), userID, today)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		liveToday = remote.OrZero(rec, today).Steps
	}

	days, err := h.reader.WeeklyHistory(r.Context(), userID, liveToday)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	views := make([]DailyStepsView, 0, len(days))
	for _, day := range days {
		views = append(views, DailyStepsView{Date: day.Date, Steps: day.Steps})
	}
	writeJSON(w, http.StatusOK, WeeklyHistoryResponse{Days: views})
}

func (h *Handler) updateGoal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireUser(w, r, auth.ScopeStepsWrite)
	if !ok {
		return
	}

	var req UpdateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	goal := domain.ClampStepGoal(req.Goal)
	if err := h.accounts.UpdateStepGoal(r.Context(), userID, goal); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, UpdateGoalResponse{Goal: goal})
}

func (h *Handler) joinChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireUser(w, r, auth.ScopeStepsWrite)
	if !ok {
		return
	}

	var req JoinChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if req.Goal <= 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "goal must be > 0")
		return
	}

	today := domain.DateKey(h.clock.Now())
	rec, err := h.ledger.DailyRecord(r.Context(), userID, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	start := remote.OrZero(rec, today).Steps

	entry := domain.ChallengeEntry{Date: today, Goal: req.Goal, StartSteps: start}
	if err := h.accounts.JoinChallenge(r.Context(), userID, entry); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	// Joining twice keeps the original entry; report what is actually stored.
	stored, err := h.accounts.Challenge(r.Context(), userID, today)
	if err != nil || stored == nil {
		writeJSON(w, http.StatusOK, ChallengeView{Date: entry.Date, Goal: entry.Goal, StartSteps: entry.StartSteps})
		return
	}
	writeJSON(w, http.StatusOK, ChallengeView{
		Date:          stored.Date,
		Goal:          stored.Goal,
		StartSteps:    stored.StartSteps,
		RewardClaimed: stored.RewardClaimed,
	})
}

func (h *Handler) claimChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireUser(w, r, auth.ScopeStepsWrite)
	if !ok {
		return
	}

	today := domain.DateKey(h.clock.Now())
	entry, err := h.accounts.Challenge(r.Context(), userID, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "not_found", "no challenge joined today")
		return
	}
	if entry.RewardClaimed {
		writeError(w, http.StatusConflict, "already_claimed", "challenge reward already claimed")
		return
	}

	rec, err := h.ledger.DailyRecord(r.Context(), userID, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	progress := remote.OrZero(rec, today).Steps - entry.StartSteps
	if progress < entry.Goal {
		writeError(w, http.StatusConflict, "challenge_incomplete", "challenge goal not reached yet")
		return
	}

	if err := h.accounts.ClaimChallengeReward(r.Context(), userID, today); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ClaimChallengeResponse{CoinsAwarded: domain.ChallengeRewardCoins})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireUser(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	account, err := h.accounts.Account(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ProfileView{
		UserID:             account.UserID,
		Username:           account.Username,
		LifetimeTotalSteps: account.LifetimeTotalSteps,
		BoostSteps:         account.BoostSteps,
		Coins:              account.Coins,
		DailyStepGoal:      account.DailyStepGoal,
		PreferredTime:      account.PreferredTime,
		FitnessGoal:        account.FitnessGoal,
	})
}

// DailyStepsView is one calendar day of step data.
type DailyStepsView struct {
	Date       string `json:"date"`
	Steps      int64  `json:"steps"`
	BoostSteps int64  `json:"boost_steps,omitempty"`
}

// EarningsView summarises the account's monetary position.
type EarningsView struct {
	LifetimeTotalSteps int64   `json:"lifetime_total_steps"`
	BoostSteps         int64   `json:"boost_steps"`
	Coins              float64 `json:"coins"`
	TotalEarnings      float64 `json:"total_earnings"`
}

// LeaderboardEntryView is one row of today's leaderboard.
type LeaderboardEntryView struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Steps    int64  `json:"steps"`
}

// LeaderboardResponse packages the ranking with the caller's position.
type LeaderboardResponse struct {
	Rank    int                    `json:"rank"`
	Entries []LeaderboardEntryView `json:"entries"`
}

// WeeklyHistoryResponse lists the current week's days through today.
type WeeklyHistoryResponse struct {
	Days []DailyStepsView `json:"days"`
}

// UpdateGoalRequest is the payload for PUT /v1/goal.
type UpdateGoalRequest struct {
	Goal int64 `json:"goal"`
}

// UpdateGoalResponse echoes the applied goal after clamping.
type UpdateGoalResponse struct {
	Goal int64 `json:"goal"`
}

// JoinChallengeRequest is the payload for POST /v1/challenges/join.
type JoinChallengeRequest struct {
	Goal int64 `json:"goal"`
}

// ChallengeView describes a challenge entry.
type ChallengeView struct {
	Date          string `json:"date"`
	Goal          int64  `json:"goal"`
	StartSteps    int64  `json:"start_steps"`
	RewardClaimed bool   `json:"reward_claimed"`
}

// ClaimChallengeResponse reports the coins awarded by a successful claim.
type ClaimChallengeResponse struct {
	CoinsAwarded int64 `json:"coins_awarded"`
}

// ProfileView exposes the account document to the client.
type ProfileView struct {
	UserID             string  `json:"user_id"`
	Username           string  `json:"username"`
	LifetimeTotalSteps int64   `json:"lifetime_total_steps"`
	BoostSteps         int64   `json:"boost_steps"`
	Coins              float64 `json:"coins"`
	DailyStepGoal      int64   `json:"daily_step_goal"`
	PreferredTime      string  `json:"preferred_time,omitempty"`
	FitnessGoal        string  `json:"fitness_goal,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
