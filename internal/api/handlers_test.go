package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/walkwins/internal/aggregation"
	"example.com/walkwins/internal/auth"
	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/remote"
)

var noon = time.Date(2024, time.January, 3, 12, 0, 0, 0, time.UTC) // a Wednesday

func newFixture() (*Handler, *remote.MemoryStore) {
	store := remote.NewMemoryStore()
	clock := domain.FixedClock{At: noon}
	reader := aggregation.NewReader(store, clock)
	return NewHandler(store, reader, store, clock), store
}

func authedRequest(method, target string, body string, scopes ...string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	scopeSet := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		scopeSet[scope] = struct{}{}
	}
	claims := &auth.Claims{
		Subject:   "user-1",
		Scopes:    scopeSet,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func seedSteps(store *remote.MemoryStore, userID, date string, steps int64) {
	_ = store.CommitSteps(context.Background(), remote.StepCommit{
		UserID:    userID,
		Date:      date,
		Steps:     steps,
		Increment: steps,
	})
}

func TestStepsTodayReturnsRecord(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1", Username: "walker"})
	seedSteps(store, "user-1", "2024-01-03", 4200)

	rr := httptest.NewRecorder()
	handler.stepsToday(rr, authedRequest(http.MethodGet, "/v1/steps/today", "", auth.ScopeStepsRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp DailyStepsView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Date != "2024-01-03" || resp.Steps != 4200 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestStepsTodayDefaultsToZero(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1"})

	rr := httptest.NewRecorder()
	handler.stepsToday(rr, authedRequest(http.MethodGet, "/v1/steps/today", "", auth.ScopeStepsRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var resp DailyStepsView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Steps != 0 {
		t.Fatalf("expected 0 steps got %d", resp.Steps)
	}
}

func TestStepsTodayRequiresScope(t *testing.T) {
	handler, _ := newFixture()

	rr := httptest.NewRecorder()
	handler.stepsToday(rr, authedRequest(http.MethodGet, "/v1/steps/today", ""))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestEarningsCombinesLedgerAndCoins(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{
		UserID:             "user-1",
		LifetimeTotalSteps: 10000,
		BoostSteps:         500,
		Coins:              3,
	})

	rr := httptest.NewRecorder()
	handler.earnings(rr, authedRequest(http.MethodGet, "/v1/earnings", "", auth.ScopeStepsRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp EarningsView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// (10000-500)*0.01 + 500*0.02 + 3 = 108
	if resp.TotalEarnings != 108 {
		t.Fatalf("expected total earnings 108 got %f", resp.TotalEarnings)
	}
}

func TestEarningsUnknownAccount(t *testing.T) {
	handler, _ := newFixture()

	rr := httptest.NewRecorder()
	handler.earnings(rr, authedRequest(http.MethodGet, "/v1/earnings", "", auth.ScopeStepsRead))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestLeaderboardRanksDescending(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1", Username: "walker"})
	store.PutAccount(domain.UserAccount{UserID: "user-2", Username: "runner"})
	store.PutAccount(domain.UserAccount{UserID: "user-3", Username: "idler"})
	seedSteps(store, "user-1", "2024-01-03", 5000)
	seedSteps(store, "user-2", "2024-01-03", 8000)

	rr := httptest.NewRecorder()
	handler.leaderboard(rr, authedRequest(http.MethodGet, "/v1/leaderboard", "", auth.ScopeStepsRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp LeaderboardResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Rank != 2 {
		t.Fatalf("expected rank 2 got %d", resp.Rank)
	}
	if len(resp.Entries) != 3 {
		t.Fatalf("expected 3 entries got %d", len(resp.Entries))
	}
	if resp.Entries[0].UserID != "user-2" || resp.Entries[2].Steps != 0 {
		t.Fatalf("unexpected ordering: %+v", resp.Entries)
	}
}

func TestWeeklyHistorySubstitutesLiveToday(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1"})
	seedSteps(store, "user-1", "2024-01-01", 3000) // Monday
	seedSteps(store, "user-1", "2024-01-03", 1000) // Wednesday (today), stale

	rr := httptest.NewRecorder()
	handler.weeklyHistory(rr, authedRequest(http.MethodGet, "/v1/history/weekly?live_today=1500", "", auth.ScopeStepsRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp WeeklyHistoryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Days) != 3 {
		t.Fatalf("expected 3 days got %d", len(resp.Days))
	}
	if resp.Days[0].Steps != 3000 || resp.Days[1].Steps != 0 || resp.Days[2].Steps != 1500 {
		t.Fatalf("unexpected history: %+v", resp.Days)
	}
}

func TestWeeklyHistoryFallsBackToStoredToday(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1"})
	seedSteps(store, "user-1", "2024-01-03", 1000)

	rr := httptest.NewRecorder()
	handler.weeklyHistory(rr, authedRequest(http.MethodGet, "/v1/history/weekly", "", auth.ScopeStepsRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var resp WeeklyHistoryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Days[2].Steps != 1000 {
		t.Fatalf("expected stored today 1000 got %d", resp.Days[2].Steps)
	}
}

func TestUpdateGoalClampsToMinimum(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1", DailyStepGoal: 5000})

	rr := httptest.NewRecorder()
	handler.updateGoal(rr, authedRequest(http.MethodPut, "/v1/goal", `{"goal":100}`, auth.ScopeStepsWrite))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp UpdateGoalResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Goal != domain.MinDailyStepGoal {
		t.Fatalf("expected clamped goal %d got %d", domain.MinDailyStepGoal, resp.Goal)
	}

	account, err := store.Account(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("account lookup failed: %v", err)
	}
	if account.DailyStepGoal != domain.MinDailyStepGoal {
		t.Fatalf("goal not persisted: %d", account.DailyStepGoal)
	}
}

func TestJoinChallengeCapturesStartSteps(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1"})
	seedSteps(store, "user-1", "2024-01-03", 2500)

	rr := httptest.NewRecorder()
	handler.joinChallenge(rr, authedRequest(http.MethodPost, "/v1/challenges/join", `{"goal":4000}`, auth.ScopeStepsWrite))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ChallengeView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.StartSteps != 2500 || resp.Goal != 4000 {
		t.Fatalf("unexpected challenge: %+v", resp)
	}
}

func TestJoinChallengeTwiceKeepsOriginal(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1"})
	seedSteps(store, "user-1", "2024-01-03", 2500)

	rr := httptest.NewRecorder()
	handler.joinChallenge(rr, authedRequest(http.MethodPost, "/v1/challenges/join", `{"goal":4000}`, auth.ScopeStepsWrite))
	if rr.Code != http.StatusOK {
		t.Fatalf("first join failed: %d", rr.Code)
	}

	seedSteps(store, "user-1", "2024-01-03", 6000)

	rr = httptest.NewRecorder()
	handler.joinChallenge(rr, authedRequest(http.MethodPost, "/v1/challenges/join", `{"goal":9000}`, auth.ScopeStepsWrite))
	if rr.Code != http.StatusOK {
		t.Fatalf("second join failed: %d", rr.Code)
	}

	var resp ChallengeView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.StartSteps != 2500 || resp.Goal != 4000 {
		t.Fatalf("rejoin replaced original entry: %+v", resp)
	}
}

func TestClaimChallengeAwardsCoinsOnce(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1"})
	seedSteps(store, "user-1", "2024-01-03", 1000)

	rr := httptest.NewRecorder()
	handler.joinChallenge(rr, authedRequest(http.MethodPost, "/v1/challenges/join", `{"goal":2000}`, auth.ScopeStepsWrite))
	if rr.Code != http.StatusOK {
		t.Fatalf("join failed: %d", rr.Code)
	}

	// Not enough progress yet.
	rr = httptest.NewRecorder()
	handler.claimChallenge(rr, authedRequest(http.MethodPost, "/v1/challenges/claim", "", auth.ScopeStepsWrite))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for incomplete challenge got %d", rr.Code)
	}

	seedSteps(store, "user-1", "2024-01-03", 3200)

	rr = httptest.NewRecorder()
	handler.claimChallenge(rr, authedRequest(http.MethodPost, "/v1/challenges/claim", "", auth.ScopeStepsWrite))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	account, err := store.Account(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("account lookup failed: %v", err)
	}
	if account.Coins != domain.ChallengeRewardCoins {
		t.Fatalf("expected %d coins got %f", domain.ChallengeRewardCoins, account.Coins)
	}

	// Second claim is rejected and does not double-award.
	rr = httptest.NewRecorder()
	handler.claimChallenge(rr, authedRequest(http.MethodPost, "/v1/challenges/claim", "", auth.ScopeStepsWrite))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for repeated claim got %d", rr.Code)
	}
	account, _ = store.Account(context.Background(), "user-1")
	if account.Coins != domain.ChallengeRewardCoins {
		t.Fatalf("reward awarded twice: %f", account.Coins)
	}
}

func TestClaimChallengeWithoutJoining(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{UserID: "user-1"})

	rr := httptest.NewRecorder()
	handler.claimChallenge(rr, authedRequest(http.MethodPost, "/v1/challenges/claim", "", auth.ScopeStepsWrite))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestProfileReturnsAccount(t *testing.T) {
	handler, store := newFixture()
	store.PutAccount(domain.UserAccount{
		UserID:        "user-1",
		Username:      "walker",
		DailyStepGoal: 6000,
		PreferredTime: "Morning",
	})

	rr := httptest.NewRecorder()
	handler.profile(rr, authedRequest(http.MethodGet, "/v1/profile", "", auth.ScopeStepsRead))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ProfileView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Username != "walker" || resp.DailyStepGoal != 6000 {
		t.Fatalf("unexpected profile: %+v", resp)
	}
}
