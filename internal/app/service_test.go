package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bingbank/fund-transfer-service/internal/domain"
	"github.com/bingbank/fund-transfer-service/internal/store"
	"github.com/bingbank/fund-transfer-service/pkg/ledgerclient"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memoryRepo is an in-memory store.Repository that mirrors the Postgres
// implementation's terminal-status guard.
type memoryRepo struct {
	mu        sync.Mutex
	transfers map[uuid.UUID]*domain.Transfer
	created   []uuid.UUID

	createErr error
	updateErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{transfers: make(map[uuid.UUID]*domain.Transfer)}
}

func (r *memoryRepo) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	transfer.ID = uuid.New()
	transfer.CreatedAt = time.Now().UTC()
	transfer.UpdatedAt = transfer.CreatedAt
	copied := *transfer
	r.transfers[transfer.ID] = &copied
	r.created = append(r.created, transfer.ID)
	return nil
}

func (r *memoryRepo) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[transferID]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *memoryRepo) FindTransfersByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transfer
	// newest first, mirroring the ORDER BY created_at DESC query
	for i := len(r.created) - 1; i >= 0; i-- {
		t := r.transfers[r.created[i]]
		if t.CustomerID == customerID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, newStatus domain.TransferStatus) (*domain.Transfer, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[transferID]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	if t.Status.IsTerminal() {
		copied := *t
		return &copied, nil
	}
	t.Status = newStatus
	t.UpdatedAt = time.Now().UTC()
	copied := *t
	return &copied, nil
}

// fakeLedger is an in-memory LedgerClient with configurable failures.
type fakeLedger struct {
	mu       sync.Mutex
	accounts map[string]*ledgerclient.Account

	debitCalls  int
	creditCalls int

	failDebit  error
	failCredit error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: make(map[string]*ledgerclient.Account)}
}

func (l *fakeLedger) addAccount(number string, owner uuid.UUID, balance int64) {
	l.accounts[number] = &ledgerclient.Account{
		AccountNumber: number,
		CustomerID:    owner,
		Balance:       decimal.NewFromInt(balance),
	}
}

func (l *fakeLedger) balance(number string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[number].Balance
}

func (l *fakeLedger) ExistsAccount(ctx context.Context, accountNumber, bearerToken string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.accounts[accountNumber]
	return ok, nil
}

func (l *fakeLedger) GetAccount(ctx context.Context, accountNumber, bearerToken string) (*ledgerclient.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, ok := l.accounts[accountNumber]
	if !ok {
		return nil, ledgerclient.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (l *fakeLedger) Debit(ctx context.Context, accountNumber string, amount decimal.Decimal, description, bearerToken string) (*ledgerclient.BalanceResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debitCalls++
	if l.failDebit != nil {
		return nil, l.failDebit
	}
	account, ok := l.accounts[accountNumber]
	if !ok {
		return nil, ledgerclient.ErrAccountNotFound
	}
	if account.Balance.LessThan(amount) {
		return nil, ledgerclient.ErrInsufficientFunds
	}
	account.Balance = account.Balance.Sub(amount)
	return &ledgerclient.BalanceResult{AccountNumber: accountNumber, NewBalance: account.Balance}, nil
}

func (l *fakeLedger) Credit(ctx context.Context, accountNumber string, amount decimal.Decimal, description, bearerToken string) (*ledgerclient.BalanceResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.creditCalls++
	if l.failCredit != nil {
		return nil, l.failCredit
	}
	account, ok := l.accounts[accountNumber]
	if !ok {
		return nil, ledgerclient.ErrAccountNotFound
	}
	account.Balance = account.Balance.Add(amount)
	return &ledgerclient.BalanceResult{AccountNumber: accountNumber, NewBalance: account.Balance}, nil
}

// fakePublisher records published transfer events.
type fakePublisher struct {
	mu     sync.Mutex
	events []domain.TransferEvent

	failPublish error
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error {
	return errors.New("unexpected raw publish in tests")
}

func (p *fakePublisher) PublishTransferEvent(ctx context.Context, event domain.TransferEvent) error {
	if p.failPublish != nil {
		return p.failPublish
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() {}

// fixedLimiter always reports the given count.
type fixedLimiter struct {
	count int
}

func (l *fixedLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return l.count, 30, nil
}

func validRequest() domain.TransferRequest {
	return domain.TransferRequest{
		SourceAccountNumber: "1000000001",
		TargetAccountNumber: "1000000002",
		Amount:              decimal.NewFromInt(200),
		Remarks:             "rent",
	}
}

func TestInitiateTransfer_HappyPath(t *testing.T) {
	customerID := uuid.New()
	repo := newMemoryRepo()
	ledger := newFakeLedger()
	ledger.addAccount("1000000001", customerID, 500)
	ledger.addAccount("1000000002", uuid.New(), 100)
	publisher := &fakePublisher{}
	service := NewService(repo, ledger, publisher)

	transfer, err := service.InitiateTransfer(context.Background(), customerID, validRequest(), "Bearer caller-token")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if transfer.Status != domain.StatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", transfer.Status)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected exactly one published event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.TransferID != transfer.ID {
		t.Errorf("event keyed by %s, want transfer id %s", event.TransferID, transfer.ID)
	}
	if !event.Amount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("event amount = %s, want 200", event.Amount)
	}

	stored, err := repo.FindTransferByID(context.Background(), transfer.ID)
	if err != nil {
		t.Fatalf("stored transfer missing: %v", err)
	}
	if stored.Status != domain.StatusProcessing {
		t.Errorf("stored status = %s, want PROCESSING", stored.Status)
	}
}

func TestInitiateTransfer_SameAccountRejectedWithoutPersistence(t *testing.T) {
	customerID := uuid.New()
	repo := newMemoryRepo()
	ledger := newFakeLedger()
	ledger.addAccount("1000000001", customerID, 500)
	publisher := &fakePublisher{}
	service := NewService(repo, ledger, publisher)

	req := validRequest()
	req.TargetAccountNumber = req.SourceAccountNumber

	_, err := service.InitiateTransfer(context.Background(), customerID, req, "")
	if !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if len(repo.transfers) != 0 {
		t.Fatal("expected no transfer record to be persisted")
	}
	if len(publisher.events) != 0 {
		t.Fatal("expected no event to be published")
	}
}

func TestInitiateTransfer_NonPositiveAmountRejectedBeforeSideEffects(t *testing.T) {
	customerID := uuid.New()
	repo := newMemoryRepo()
	ledger := newFakeLedger()
	service := NewService(repo, ledger, &fakePublisher{})

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-50)} {
		req := validRequest()
		req.Amount = amount
		_, err := service.InitiateTransfer(context.Background(), customerID, req, "")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if len(repo.transfers) != 0 {
		t.Fatal("expected no transfer record to be persisted")
	}
}

func TestInitiateTransfer_TargetNotFound(t *testing.T) {
	customerID := uuid.New()
	repo := newMemoryRepo()
	ledger := newFakeLedger()
	ledger.addAccount("1000000001", customerID, 500)
	service := NewService(repo, ledger, &fakePublisher{})

	_, err := service.InitiateTransfer(context.Background(), customerID, validRequest(), "")
	if !errors.Is(err, ErrTargetAccountNotFound) {
		t.Fatalf("expected ErrTargetAccountNotFound, got %v", err)
	}
	if len(repo.transfers) != 0 {
		t.Fatal("expected no transfer record to be persisted")
	}
}

func TestInitiateTransfer_UnauthorizedSource(t *testing.T) {
	customerID := uuid.New()
	repo := newMemoryRepo()
	ledger := newFakeLedger()
	ledger.addAccount("1000000001", uuid.New(), 500) // owned by someone else
	ledger.addAccount("1000000002", uuid.New(), 100)
	service := NewService(repo, ledger, &fakePublisher{})

	_, err := service.InitiateTransfer(context.Background(), customerID, validRequest(), "")
	if !errors.Is(err, ErrUnauthorizedSourceAccount) {
		t.Fatalf("expected ErrUnauthorizedSourceAccount, got %v", err)
	}
}

func TestInitiateTransfer_InsufficientFunds(t *testing.T) {
	customerID := uuid.New()
	repo := newMemoryRepo()
	ledger := newFakeLedger()
	ledger.addAccount("1000000001", customerID, 50)
	ledger.addAccount("1000000002", uuid.New(), 100)
	service := NewService(repo, ledger, &fakePublisher{})

	_, err := service.InitiateTransfer(context.Background(), customerID, validRequest(), "")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(repo.transfers) != 0 {
		t.Fatal("expected no transfer record to be persisted")
	}
}

func TestInitiateTransfer_PublishFailureLeavesTransferPending(t *testing.T) {
	customerID := uuid.New()
	repo := newMemoryRepo()
	ledger := newFakeLedger()
	ledger.addAccount("1000000001", customerID, 500)
	ledger.addAccount("1000000002", uuid.New(), 100)
	publisher := &fakePublisher{failPublish: errors.New("broker unreachable")}
	service := NewService(repo, ledger, publisher)

	_, err := service.InitiateTransfer(context.Background(), customerID, validRequest(), "")
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected one persisted transfer, got %d", len(repo.created))
	}
	stored, err := repo.FindTransferByID(context.Background(), repo.created[0])
	if err != nil {
		t.Fatalf("stored transfer missing: %v", err)
	}
	if stored.Status != domain.StatusPending {
		t.Fatalf("expected stuck transfer to remain PENDING, got %s", stored.Status)
	}
}

func TestInitiateTransfer_RateLimited(t *testing.T) {
	customerID := uuid.New()
	repo := newMemoryRepo()
	ledger := newFakeLedger()
	ledger.addAccount("1000000001", customerID, 500)
	ledger.addAccount("1000000002", uuid.New(), 100)
	service := NewService(repo, ledger, &fakePublisher{})
	service.SetTransferRateLimiter(&fixedLimiter{count: 11}, 10)

	_, err := service.InitiateTransfer(context.Background(), customerID, validRequest(), "")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(repo.transfers) != 0 {
		t.Fatal("expected no transfer record to be persisted")
	}
}

func TestGetTransferHistory_NewestFirstRegardlessOfStatus(t *testing.T) {
	customerID := uuid.New()
	repo := newMemoryRepo()
	service := NewService(repo, newFakeLedger(), &fakePublisher{})

	statuses := []domain.TransferStatus{domain.StatusCompleted, domain.StatusFailed, domain.StatusProcessing}
	for _, status := range statuses {
		transfer := &domain.Transfer{
			CustomerID:          customerID,
			SourceAccountNumber: "1000000001",
			TargetAccountNumber: "1000000002",
			Amount:              decimal.NewFromInt(10),
			Status:              domain.StatusPending,
		}
		if err := repo.CreateTransfer(context.Background(), transfer); err != nil {
			t.Fatalf("seed transfer: %v", err)
		}
		repo.transfers[transfer.ID].Status = status
		time.Sleep(time.Millisecond)
	}

	history, err := service.GetTransferHistory(context.Background(), customerID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 transfers, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].CreatedAt.After(history[i-1].CreatedAt) {
			t.Fatal("history is not ordered newest first")
		}
	}
}
