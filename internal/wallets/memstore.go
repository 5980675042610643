package wallets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/google/uuid"
)

// MemWallets is an in-memory DatabaseWallets with the same movement and
// idempotency semantics as the postgres store. Used when no DSN is
// configured and throughout the tests.
type MemWallets struct {
	mu           sync.Mutex
	wallets      map[string]*models.Wallet
	transactions []models.Transaction
}

func NewMemWallets() *MemWallets {
	return &MemWallets{wallets: make(map[string]*models.Wallet)}
}

func (m *MemWallets) getOrCreate(userID string) *models.Wallet {
	w, ok := m.wallets[userID]
	if !ok {
		now := time.Now()
		w = &models.Wallet{UserID: userID, CreatedAt: now, UpdatedAt: now}
		m.wallets[userID] = w
	}
	return w
}

func (m *MemWallets) GetOrCreateWallet(_ context.Context, userID string) (models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.getOrCreate(userID), nil
}

func (m *MemWallets) GetWallet(_ context.Context, userID string) (models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return models.Wallet{}, models.ErrWalletNotFound
	}
	return *w, nil
}

func (m *MemWallets) findTransaction(userID, orderID string, t models.TransactionType, status models.TransactionStatus) *models.Transaction {
	for i := range m.transactions {
		trx := &m.transactions[i]
		if trx.WalletUserID == userID && trx.OrderID == orderID && trx.Type == t && trx.Status == status {
			return trx
		}
	}
	return nil
}

func (m *MemWallets) Apply(_ context.Context, mv models.Movement) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.getOrCreate(mv.UserID)

	if mv.OrderID != "" {
		for i := range m.transactions {
			trx := &m.transactions[i]
			if trx.WalletUserID == mv.UserID && trx.OrderID == mv.OrderID && trx.Type == mv.Type && trx.Status != models.TxStatusFailed {
				return models.Transaction{}, models.ErrAlreadyProcessed
			}
		}
	}

	balance := w.Balance + mv.BalanceDelta
	pending := w.PendingBalance + mv.PendingDelta
	cashOwed := w.CashOwed + mv.CashOwedDelta
	earned := w.TotalEarned + mv.EarnedDelta
	withdrawn := w.TotalWithdrawn + mv.WithdrawnDelta
	if balance < 0 {
		if mv.BalanceDelta < 0 {
			return models.Transaction{}, models.ErrInsufficientFunds
		}
		return models.Transaction{}, models.ErrNegativeBalance
	}
	if pending < 0 || cashOwed < 0 || earned < 0 || withdrawn < 0 {
		return models.Transaction{}, models.ErrNegativeBalance
	}

	trx := models.Transaction{
		ID:            uuid.NewString(),
		WalletUserID:  mv.UserID,
		OrderID:       mv.OrderID,
		Type:          mv.Type,
		Amount:        mv.Amount,
		BalanceBefore: w.Balance,
		BalanceAfter:  balance,
		Status:        mv.Status,
		Description:   mv.Description,
		CreatedAt:     time.Now(),
	}
	w.Balance = balance
	w.PendingBalance = pending
	w.CashOwed = cashOwed
	w.TotalEarned = earned
	w.TotalWithdrawn = withdrawn
	w.UpdatedAt = trx.CreatedAt
	m.transactions = append(m.transactions, trx)
	return trx, nil
}

func (m *MemWallets) CompleteHeld(_ context.Context, userID, orderID string, t models.TransactionType, amount models.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.getOrCreate(userID)
	trx := m.findTransaction(userID, orderID, t, models.TxStatusPending)
	if trx == nil {
		if m.findTransaction(userID, orderID, t, models.TxStatusCompleted) != nil {
			return nil
		}
		return fmt.Errorf("no pending %s transaction for order %s: %w", t, orderID, models.ErrNoData)
	}
	if w.PendingBalance < amount {
		return models.ErrNegativeBalance
	}
	w.PendingBalance -= amount
	w.Balance += amount
	w.TotalEarned += amount
	w.UpdatedAt = time.Now()
	trx.Status = models.TxStatusCompleted
	return nil
}

func (m *MemWallets) DropHeld(_ context.Context, userID, orderID string, t models.TransactionType, amount models.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.getOrCreate(userID)
	trx := m.findTransaction(userID, orderID, t, models.TxStatusPending)
	if trx == nil {
		if m.findTransaction(userID, orderID, t, models.TxStatusFailed) != nil {
			return nil
		}
		return fmt.Errorf("no pending %s transaction for order %s: %w", t, orderID, models.ErrNoData)
	}
	if w.PendingBalance < amount {
		return models.ErrNegativeBalance
	}
	w.PendingBalance -= amount
	w.UpdatedAt = time.Now()
	trx.Status = models.TxStatusFailed
	m.transactions = append(m.transactions, models.Transaction{
		ID:            uuid.NewString(),
		WalletUserID:  userID,
		OrderID:       orderID,
		Type:          models.TxRefund,
		Amount:        -amount,
		BalanceBefore: w.Balance,
		BalanceAfter:  w.Balance,
		Status:        models.TxStatusCompleted,
		Description:   "held funds returned to customer",
		CreatedAt:     time.Now(),
	})
	return nil
}

func (m *MemWallets) SettleCash(_ context.Context, userID string, amount models.Money) (models.Money, error) {
	if amount <= 0 {
		return 0, models.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.getOrCreate(userID)
	settled := amount
	if w.CashOwed < settled {
		settled = w.CashOwed
	}
	if settled == 0 {
		return 0, nil
	}
	before := w.Balance
	w.CashOwed -= settled
	w.Balance += settled
	w.UpdatedAt = time.Now()
	m.transactions = append(m.transactions, models.Transaction{
		ID:            uuid.NewString(),
		WalletUserID:  userID,
		Type:          models.TxCashSettlement,
		Amount:        settled,
		BalanceBefore: before,
		BalanceAfter:  w.Balance,
		Status:        models.TxStatusCompleted,
		Description:   "cash debt settled",
		CreatedAt:     time.Now(),
	})
	if w.CashOwed == 0 {
		for i := range m.transactions {
			trx := &m.transactions[i]
			if trx.WalletUserID != userID || trx.Status != models.TxStatusPending {
				continue
			}
			if trx.Type == models.TxCashDebtBusiness || trx.Type == models.TxCashDebtPlatform {
				trx.Status = models.TxStatusCompleted
			}
		}
	}
	return settled, nil
}

func (m *MemWallets) Transactions(_ context.Context, userID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	transactions := make([]models.Transaction, 0)
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].WalletUserID == userID {
			transactions = append(transactions, m.transactions[i])
		}
	}
	if len(transactions) == 0 {
		return nil, models.ErrNoData
	}
	return transactions, nil
}
