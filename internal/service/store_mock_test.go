package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/domain"
)

// fakeStore implements port.FinanceStore in memory for the service
// tests. Behavior knobs (forced errors, canned results) are plain
// fields; call tracking uses a mutex so the scheduler tests can fan
// out.
type fakeStore struct {
	mu sync.Mutex

	accounts      map[string]*domain.Account
	supplementary map[string][]domain.Account // parentID -> children
	transactions  []domain.Transaction
	settings      map[string]*domain.CardSettings
	configured    []domain.CardSettings
	pending       []domain.PendingStatement
	chatUsers     map[int64]string
	userChats     map[string]int64

	settleResult *domain.SettlementResult
	settleErr    error
	settleCalls  int
	lastSettle   *domain.SettlementRequest

	claims    map[string]bool
	claimErr  error
	outcomes  map[string]string
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:      map[string]*domain.Account{},
		supplementary: map[string][]domain.Account{},
		settings:      map[string]*domain.CardSettings{},
		chatUsers:     map[int64]string{},
		userChats:     map[string]int64{},
		claims:        map[string]bool{},
		outcomes:      map[string]string{},
	}
}

func (f *fakeStore) GetAccount(_ context.Context, _, accountID string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[accountID]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
}

func (f *fakeStore) ListPrincipalCards(_ context.Context, userID string) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		if a.UserID == userID && a.IsPrincipalCard() && a.Active {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSupplementaryCards(_ context.Context, parentID string) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supplementary[parentID], nil
}

func (f *fakeStore) ListFamilyTransactions(_ context.Context, accountIDs []string, from, to time.Time) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := map[string]bool{}
	for _, id := range accountIDs {
		ids[id] = true
	}
	var out []domain.Transaction
	for _, t := range f.transactions {
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		if ids[t.AccountID] || ids[t.DestinationID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCardSettings(_ context.Context, cardID string) (*domain.CardSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.settings[cardID]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, &domain.ErrNotFound{Resource: "card_settings", ID: cardID}
}

func (f *fakeStore) UpsertCardSettings(_ context.Context, settings *domain.CardSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	copied := *settings
	f.settings[settings.CardID] = &copied
	return nil
}

func (f *fakeStore) ListConfiguredCards(_ context.Context) ([]domain.CardSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configured, nil
}

func (f *fakeStore) GetPendingStatements(_ context.Context, _ string) ([]domain.PendingStatement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, nil
}

func (f *fakeStore) SettleInvoice(_ context.Context, req *domain.SettlementRequest) (*domain.SettlementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settleCalls++
	f.lastSettle = req
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	if f.settleResult != nil {
		copied := *f.settleResult
		return &copied, nil
	}
	return &domain.SettlementResult{Paid: true}, nil
}

func (f *fakeStore) ClaimCycle(_ context.Context, cardID, cycleKey, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	key := claimKey(cardID, cycleKey, kind)
	if f.claims[key] {
		return &domain.ErrDuplicate{Key: key}
	}
	f.claims[key] = true
	return nil
}

func (f *fakeStore) MarkCycleOutcome(_ context.Context, cardID, cycleKey, kind, outcome, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[claimKey(cardID, cycleKey, kind)] = outcome
	return nil
}

func (f *fakeStore) ResolveChatUser(_ context.Context, chatID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userID, ok := f.chatUsers[chatID]; ok {
		return userID, nil
	}
	return "", &domain.ErrNotFound{Resource: "chat_link", ID: fmt.Sprint(chatID)}
}

func (f *fakeStore) ChatIDForUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chatID, ok := f.userChats[userID]; ok {
		return chatID, nil
	}
	return 0, &domain.ErrNotFound{Resource: "chat_link", ID: userID}
}

func claimKey(cardID, cycleKey, kind string) string {
	return cardID + "|" + cycleKey + "|" + kind
}

// fakeNotifier records notifications sent by the scheduler.
type fakeNotifier struct {
	mu       sync.Mutex
	messages map[string][]string // userID -> messages
	err      error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{messages: map[string][]string{}}
}

func (n *fakeNotifier) NotifyUser(_ context.Context, userID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages[userID] = append(n.messages[userID], message)
	return nil
}

func (n *fakeNotifier) sent(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messages[userID]
}
