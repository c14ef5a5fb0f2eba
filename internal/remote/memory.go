package remote

import (
	"context"
	"sort"
	"sync"

	"example.com/walkwins/internal/domain"
)

// MemoryStore is an in-memory implementation of the store contracts, used in
// tests and local development.
type MemoryStore struct {
	mu         sync.Mutex
	accounts   map[string]*domain.UserAccount
	records    map[string]map[string]*domain.DailyStepRecord // userID -> date -> record
	challenges map[string]map[string]*domain.ChallengeEntry
	userOrder  []string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[string]*domain.UserAccount),
		records:    make(map[string]map[string]*domain.DailyStepRecord),
		challenges: make(map[string]map[string]*domain.ChallengeEntry),
	}
}

// PutAccount seeds or replaces an account document.
func (s *MemoryStore) PutAccount(account domain.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.UserID]; !ok {
		s.userOrder = append(s.userOrder, account.UserID)
	}
	copied := account
	s.accounts[account.UserID] = &copied
}

func (s *MemoryStore) ensureAccount(userID string) *domain.UserAccount {
	if account, ok := s.accounts[userID]; ok {
		return account
	}
	account := &domain.UserAccount{UserID: userID, DailyStepGoal: domain.MinDailyStepGoal}
	s.accounts[userID] = account
	s.userOrder = append(s.userOrder, userID)
	return account
}

// DailyRecord implements LedgerStore.
func (s *MemoryStore) DailyRecord(_ context.Context, userID, date string) (*domain.DailyStepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID][date]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

// CommitSteps implements LedgerStore.
func (s *MemoryStore) CommitSteps(_ context.Context, c StepCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, ok := s.records[c.UserID]
	if !ok {
		byDate = make(map[string]*domain.DailyStepRecord)
		s.records[c.UserID] = byDate
	}
	rec, ok := byDate[c.Date]
	if !ok {
		rec = &domain.DailyStepRecord{Date: c.Date}
		byDate[c.Date] = rec
	}
	rec.Steps = c.Steps

	s.ensureAccount(c.UserID).LifetimeTotalSteps += c.Increment
	return nil
}

// FoldBoostSteps implements LedgerStore.
func (s *MemoryStore) FoldBoostSteps(_ context.Context, userID, date string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, ok := s.records[userID]
	if !ok {
		byDate = make(map[string]*domain.DailyStepRecord)
		s.records[userID] = byDate
	}
	rec, ok := byDate[date]
	if !ok {
		rec = &domain.DailyStepRecord{Date: date}
		byDate[date] = rec
	}
	rec.BoostSteps += delta

	s.ensureAccount(userID).BoostSteps += delta
	return nil
}

// RecordsForDate implements AggregateReader. Results follow account insertion
// order so the leaderboard's stable sort has a deterministic input.
func (s *MemoryStore) RecordsForDate(_ context.Context, date string) ([]UserDailySteps, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]UserDailySteps, 0, len(s.userOrder))
	for _, userID := range s.userOrder {
		var steps int64
		if rec, ok := s.records[userID][date]; ok {
			steps = rec.Steps
		}
		out = append(out, UserDailySteps{
			UserID:   userID,
			Username: s.accounts[userID].Username,
			Steps:    steps,
		})
	}
	return out, nil
}

// RecordsForUser implements AggregateReader.
func (s *MemoryStore) RecordsForUser(_ context.Context, userID, from, to string) ([]domain.DailyStepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.DailyStepRecord
	for date, rec := range s.records[userID] {
		if date >= from && date <= to {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Account implements AccountStore.
func (s *MemoryStore) Account(_ context.Context, userID string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// UpdateStepGoal implements AccountStore.
func (s *MemoryStore) UpdateStepGoal(_ context.Context, userID string, goal int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureAccount(userID).DailyStepGoal = goal
	return nil
}

// AddCoins implements AccountStore.
func (s *MemoryStore) AddCoins(_ context.Context, userID string, coins float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureAccount(userID).Coins += coins
	return nil
}

// Challenge implements AccountStore.
func (s *MemoryStore) Challenge(_ context.Context, userID, date string) (*domain.ChallengeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.challenges[userID][date]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

// JoinChallenge implements AccountStore. Joining twice keeps the original
// entry.
func (s *MemoryStore) JoinChallenge(_ context.Context, userID string, entry domain.ChallengeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, ok := s.challenges[userID]
	if !ok {
		byDate = make(map[string]*domain.ChallengeEntry)
		s.challenges[userID] = byDate
	}
	if _, exists := byDate[entry.Date]; exists {
		return nil
	}
	copied := entry
	byDate[entry.Date] = &copied
	return nil
}

// ClaimChallengeReward implements AccountStore.
func (s *MemoryStore) ClaimChallengeReward(_ context.Context, userID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.challenges[userID][date]
	if !ok || entry.RewardClaimed {
		return nil
	}
	entry.RewardClaimed = true
	s.ensureAccount(userID).Coins += domain.ChallengeRewardCoins
	return nil
}

// AccountsByPreferredTime implements AccountStore.
func (s *MemoryStore) AccountsByPreferredTime(_ context.Context, timeOfDay string) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.UserAccount
	for _, userID := range s.userOrder {
		account := s.accounts[userID]
		if account.PreferredTime == timeOfDay {
			out = append(out, *account)
		}
	}
	return out, nil
}
