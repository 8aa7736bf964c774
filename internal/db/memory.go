package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/models"
)

// Memory is an in-process account and transaction store. Accounts live in an
// arena slice addressed through id and number indexes; a single mutex
// serializes every read-modify-write so balance adjustments never interleave.
type Memory struct {
	mu       sync.RWMutex
	accounts []*models.Account
	byID     map[string]int
	byNumber map[string]int
	txs      map[string]*models.Transaction
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		byID:     make(map[string]int),
		byNumber: make(map[string]int),
		txs:      make(map[string]*models.Transaction),
	}
}

func copyAccount(a *models.Account) *models.Account {
	cp := *a
	if a.InterestRate != nil {
		rate := *a.InterestRate
		cp.InterestRate = &rate
	}
	return &cp
}

func copyTransaction(tx *models.Transaction) *models.Transaction {
	cp := *tx
	return &cp
}

// CreateAccount stores a new account; id and number must both be unused.
func (m *Memory) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[account.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := m.byNumber[account.Number]; ok {
		return ErrDuplicate
	}

	m.accounts = append(m.accounts, copyAccount(account))
	idx := len(m.accounts) - 1
	m.byID[account.ID] = idx
	m.byNumber[account.Number] = idx
	return nil
}

func (m *Memory) lookup(id string) (*models.Account, bool) {
	idx, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return m.accounts[idx], true
}

// GetAccount retrieves an account by ID
func (m *Memory) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(a), nil
}

// FindAccountByMaskedNumber resolves a masked number such as ****1234 to the
// single account that renders that way.
func (m *Memory) FindAccountByMaskedNumber(ctx context.Context, masked string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *models.Account
	for _, a := range m.accounts {
		if a == nil || a.MaskedNumber() != masked {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguous
		}
		found = a
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return copyAccount(found), nil
}

// ListAccounts returns a snapshot of the accounts matching filter, oldest first.
func (m *Memory) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Account, 0, len(m.byID))
	for _, a := range m.accounts {
		if a != nil && filter.Matches(a) {
			out = append(out, copyAccount(a))
		}
	}
	return out, nil
}

// AdjustBalance applies a signed delta under the store lock.
func (m *Memory) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.lookup(adj.AccountID)
	if !ok {
		return nil, ErrNotFound
	}

	newBalance := a.Balance.Add(adj.Delta)
	if newBalance.IsNegative() && !adj.AllowOverdraft {
		return nil, ErrInsufficientFunds
	}

	a.Balance = newBalance
	a.UpdatedAt = time.Now().UTC()
	return copyAccount(a), nil
}

// UpdateAccountFields changes the allow-listed, non-balance fields.
func (m *Memory) UpdateAccountFields(ctx context.Context, id string, update models.AccountUpdate) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	if update.Status != nil {
		a.Status = *update.Status
	}
	if update.InterestRate != nil {
		rate := *update.InterestRate
		a.InterestRate = &rate
	}
	a.UpdatedAt = time.Now().UTC()
	return copyAccount(a), nil
}

// DeleteAccount frees the account's arena slot and drops it from both indexes.
func (m *Memory) DeleteAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byNumber, m.accounts[idx].Number)
	m.accounts[idx] = nil
	return nil
}

// CreateTransaction appends a transaction record
func (m *Memory) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.txs[tx.ID]; ok {
		return ErrDuplicate
	}
	m.txs[tx.ID] = copyTransaction(tx)
	return nil
}

// GetTransactionByID retrieves a transaction by ID
func (m *Memory) GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTransaction(tx), nil
}

// GetTransactionsByAccountID returns every transaction owned by the account, newest first.
func (m *Memory) GetTransactionsByAccountID(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	txs, _, err := m.ListTransactions(ctx, models.TransactionFilter{AccountID: accountID})
	return txs, err
}

// ListTransactions returns one page of matching transactions, newest first,
// and the number of matches before paging.
func (m *Memory) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error) {
	m.mu.RLock()
	matched := make([]*models.Transaction, 0)
	for _, tx := range m.txs {
		if filter.Matches(tx) {
			matched = append(matched, copyTransaction(tx))
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	return paginate(matched, filter.Offset, filter.Limit), len(matched), nil
}

func paginate(txs []*models.Transaction, offset, limit int) []*models.Transaction {
	if offset >= len(txs) {
		return []*models.Transaction{}
	}
	txs = txs[offset:]
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return txs
}

// UpdateTransactionStatus changes only the status of a transaction.
func (m *Memory) UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	tx.Status = status
	return copyTransaction(tx), nil
}

// DeleteTransaction removes a transaction record. A second delete of the
// same id reports ErrNotFound.
func (m *Memory) DeleteTransaction(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.txs[id]; !ok {
		return ErrNotFound
	}
	delete(m.txs, id)
	return nil
}
