package wallets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EnsureWalletQuery = `
			INSERT INTO wallets (user_id, created_at, updated_at)
			VALUES ($1, $2, $2)
			ON CONFLICT (user_id) DO NOTHING;`
	LockWalletQuery = `
			SELECT balance, pending_balance, cash_owed, total_earned, total_withdrawn
			FROM wallets WHERE user_id = $1 FOR UPDATE;`
	GetWalletQuery = `
			SELECT user_id, balance, pending_balance, cash_owed, total_earned, total_withdrawn, created_at, updated_at
			FROM wallets WHERE user_id = $1;`
	UpdateWalletQuery = `
			UPDATE wallets
			SET balance = $1, pending_balance = $2, cash_owed = $3, total_earned = $4, total_withdrawn = $5, updated_at = $6
			WHERE user_id = $7;`
	CountMovementQuery = `
			SELECT count(*) FROM transactions
			WHERE wallet_user_id = $1 AND order_id = $2 AND type = $3 AND status <> 'failed';`
	InsertTransactionQuery = `
			INSERT INTO transactions (id, wallet_user_id, order_id, type, amount, balance_before, balance_after, status, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`
	FindPendingTransactionQuery = `
			SELECT id FROM transactions
			WHERE wallet_user_id = $1 AND order_id = $2 AND type = $3 AND status = 'pending';`
	CountSettledTransactionQuery = `
			SELECT count(*) FROM transactions
			WHERE wallet_user_id = $1 AND order_id = $2 AND type = $3 AND status = $4;`
	SetTransactionStatusQuery = `UPDATE transactions SET status = $1 WHERE id = $2;`
	CompleteCashDebtsQuery    = `
			UPDATE transactions SET status = 'completed'
			WHERE wallet_user_id = $1 AND status = 'pending'
			AND type IN ('cash_debt_business', 'cash_debt_platform');`
	GetTransactionsQuery = `
			SELECT id, wallet_user_id, order_id, type, amount, balance_before, balance_after, status, description, created_at
			FROM transactions
			WHERE wallet_user_id = $1
			ORDER BY created_at DESC;`
)

// DatabaseWallets is the only mutation surface of the wallet store. Every
// method runs as a single storage transaction: concurrent movements
// against one wallet serialize on the row lock, and the idempotency
// check on (wallet, order, type) happens inside the same transaction as
// the balance update.
type DatabaseWallets interface {
	GetOrCreateWallet(ctx context.Context, userID string) (models.Wallet, error)
	GetWallet(ctx context.Context, userID string) (models.Wallet, error)
	// Apply books one movement. Returns models.ErrAlreadyProcessed when a
	// non-failed transaction with the same (order, type) pair already
	// exists on the wallet, and models.ErrInsufficientFunds or
	// models.ErrNegativeBalance when a counter would go below zero; in
	// both cases nothing is applied.
	Apply(ctx context.Context, m models.Movement) (models.Transaction, error)
	// CompleteHeld moves a held amount from pending_balance to balance
	// and marks the matching pending transaction completed. A replay
	// after the transaction is already completed is a no-op.
	CompleteHeld(ctx context.Context, userID, orderID string, t models.TransactionType, amount models.Money) error
	// DropHeld removes a held amount from pending_balance, marks the
	// matching pending transaction failed and records a completed refund
	// entry for the audit trail. A replay after the transaction is
	// already failed is a no-op.
	DropHeld(ctx context.Context, userID, orderID string, t models.TransactionType, amount models.Money) error
	// SettleCash clamps amount to the wallet's cash debt, decreases
	// cash_owed and increases balance by the clamped value. Returns the
	// settled amount. This is the only path that decreases cash_owed.
	SettleCash(ctx context.Context, userID string, amount models.Money) (models.Money, error)
	Transactions(ctx context.Context, userID string) ([]models.Transaction, error)
}

type DBWallets struct {
	db *sql.DB
	mu *sync.RWMutex
}

func NewDBWallets(db *sql.DB, mu *sync.RWMutex) (*DBWallets, error) {
	return &DBWallets{db: db, mu: mu}, nil
}

type walletRow struct {
	Balance        models.Money
	PendingBalance models.Money
	CashOwed       models.Money
	TotalEarned    models.Money
	TotalWithdrawn models.Money
}

func (w *DBWallets) lockWallet(ctx context.Context, tx *sql.Tx, userID string) (walletRow, error) {
	_, err := tx.ExecContext(ctx, EnsureWalletQuery, userID, time.Now())
	if err != nil {
		return walletRow{}, fmt.Errorf("failed to ensure wallet: %w", err)
	}
	var row walletRow
	err = tx.QueryRowContext(ctx, LockWalletQuery, userID).
		Scan(&row.Balance, &row.PendingBalance, &row.CashOwed, &row.TotalEarned, &row.TotalWithdrawn)
	if err != nil {
		return walletRow{}, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return row, nil
}

func (w *DBWallets) writeWallet(ctx context.Context, tx *sql.Tx, userID string, row walletRow) error {
	_, err := tx.ExecContext(ctx, UpdateWalletQuery,
		row.Balance,
		row.PendingBalance,
		row.CashOwed,
		row.TotalEarned,
		row.TotalWithdrawn,
		time.Now(),
		userID,
	)
	return err
}

func (w *DBWallets) GetOrCreateWallet(ctx context.Context, userID string) (models.Wallet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.db.ExecContext(ctx, EnsureWalletQuery, userID, time.Now())
	if err != nil {
		return models.Wallet{}, fmt.Errorf("failed to create wallet: %w", err)
	}
	return w.readWallet(ctx, userID)
}

func (w *DBWallets) GetWallet(ctx context.Context, userID string) (models.Wallet, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.readWallet(ctx, userID)
}

func (w *DBWallets) readWallet(ctx context.Context, userID string) (models.Wallet, error) {
	var wallet models.Wallet
	err := w.db.QueryRowContext(ctx, GetWalletQuery, userID).Scan(
		&wallet.UserID,
		&wallet.Balance,
		&wallet.PendingBalance,
		&wallet.CashOwed,
		&wallet.TotalEarned,
		&wallet.TotalWithdrawn,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Wallet{}, models.ErrWalletNotFound
		}
		return models.Wallet{}, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

func (w *DBWallets) Apply(ctx context.Context, m models.Movement) (models.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Transaction{}, err
	}
	defer tx.Rollback()

	row, err := w.lockWallet(ctx, tx, m.UserID)
	if err != nil {
		return models.Transaction{}, err
	}

	if m.OrderID != "" {
		var count int
		err = tx.QueryRowContext(ctx, CountMovementQuery, m.UserID, m.OrderID, m.Type).Scan(&count)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("failed to check movement presence: %w", err)
		}
		if count > 0 {
			return models.Transaction{}, models.ErrAlreadyProcessed
		}
	}

	next := walletRow{
		Balance:        row.Balance + m.BalanceDelta,
		PendingBalance: row.PendingBalance + m.PendingDelta,
		CashOwed:       row.CashOwed + m.CashOwedDelta,
		TotalEarned:    row.TotalEarned + m.EarnedDelta,
		TotalWithdrawn: row.TotalWithdrawn + m.WithdrawnDelta,
	}
	if next.Balance < 0 {
		if m.BalanceDelta < 0 {
			return models.Transaction{}, models.ErrInsufficientFunds
		}
		return models.Transaction{}, models.ErrNegativeBalance
	}
	if next.PendingBalance < 0 || next.CashOwed < 0 || next.TotalEarned < 0 || next.TotalWithdrawn < 0 {
		return models.Transaction{}, models.ErrNegativeBalance
	}

	if err = w.writeWallet(ctx, tx, m.UserID, next); err != nil {
		return models.Transaction{}, fmt.Errorf("failed to update wallet: %w", err)
	}

	trx := models.Transaction{
		ID:            uuid.NewString(),
		WalletUserID:  m.UserID,
		OrderID:       m.OrderID,
		Type:          m.Type,
		Amount:        m.Amount,
		BalanceBefore: row.Balance,
		BalanceAfter:  next.Balance,
		Status:        m.Status,
		Description:   m.Description,
		CreatedAt:     time.Now(),
	}
	_, err = tx.ExecContext(ctx, InsertTransactionQuery,
		trx.ID, trx.WalletUserID, trx.OrderID, trx.Type, trx.Amount,
		trx.BalanceBefore, trx.BalanceAfter, trx.Status, trx.Description, trx.CreatedAt,
	)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to insert transaction: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return models.Transaction{}, err
	}
	return trx, nil
}

// settledOrErr resolves a missing pending transaction: nil when a prior
// run already moved it to the wanted terminal status, ErrNoData when the
// hold was never booked.
func (w *DBWallets) settledOrErr(ctx context.Context, tx *sql.Tx, userID, orderID string, t models.TransactionType, settled models.TransactionStatus) error {
	var count int
	err := tx.QueryRowContext(ctx, CountSettledTransactionQuery, userID, orderID, t, settled).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check settled transaction: %w", err)
	}
	if count > 0 {
		return nil
	}
	return fmt.Errorf("no pending %s transaction for order %s: %w", t, orderID, models.ErrNoData)
}

func (w *DBWallets) CompleteHeld(ctx context.Context, userID, orderID string, t models.TransactionType, amount models.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row, err := w.lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}

	var trxID string
	err = tx.QueryRowContext(ctx, FindPendingTransactionQuery, userID, orderID, t).Scan(&trxID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return w.settledOrErr(ctx, tx, userID, orderID, t, models.TxStatusCompleted)
		}
		return fmt.Errorf("failed to find pending transaction: %w", err)
	}
	if row.PendingBalance < amount {
		logger.Log.Error("held amount exceeds pending balance",
			zap.String("user", userID),
			zap.String("order", orderID),
			zap.Int64("pending", int64(row.PendingBalance)),
			zap.Int64("amount", int64(amount)))
		return models.ErrNegativeBalance
	}

	row.PendingBalance -= amount
	row.Balance += amount
	row.TotalEarned += amount
	if err = w.writeWallet(ctx, tx, userID, row); err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if _, err = tx.ExecContext(ctx, SetTransactionStatusQuery, models.TxStatusCompleted, trxID); err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}
	return tx.Commit()
}

func (w *DBWallets) DropHeld(ctx context.Context, userID, orderID string, t models.TransactionType, amount models.Money) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row, err := w.lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}

	var trxID string
	err = tx.QueryRowContext(ctx, FindPendingTransactionQuery, userID, orderID, t).Scan(&trxID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return w.settledOrErr(ctx, tx, userID, orderID, t, models.TxStatusFailed)
		}
		return fmt.Errorf("failed to find pending transaction: %w", err)
	}
	if row.PendingBalance < amount {
		return models.ErrNegativeBalance
	}

	row.PendingBalance -= amount
	if err = w.writeWallet(ctx, tx, userID, row); err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if _, err = tx.ExecContext(ctx, SetTransactionStatusQuery, models.TxStatusFailed, trxID); err != nil {
		return fmt.Errorf("failed to fail transaction: %w", err)
	}
	_, err = tx.ExecContext(ctx, InsertTransactionQuery,
		uuid.NewString(), userID, orderID, models.TxRefund, -amount,
		row.Balance, row.Balance, models.TxStatusCompleted,
		"held funds returned to customer", time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert refund transaction: %w", err)
	}
	return tx.Commit()
}

func (w *DBWallets) SettleCash(ctx context.Context, userID string, amount models.Money) (models.Money, error) {
	if amount <= 0 {
		return 0, models.ErrInvalidAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	row, err := w.lockWallet(ctx, tx, userID)
	if err != nil {
		return 0, err
	}

	settled := amount
	if row.CashOwed < settled {
		settled = row.CashOwed
	}
	if settled == 0 {
		return 0, nil
	}

	before := row.Balance
	row.CashOwed -= settled
	row.Balance += settled
	if err = w.writeWallet(ctx, tx, userID, row); err != nil {
		return 0, fmt.Errorf("failed to update wallet: %w", err)
	}
	_, err = tx.ExecContext(ctx, InsertTransactionQuery,
		uuid.NewString(), userID, "", models.TxCashSettlement, settled,
		before, row.Balance, models.TxStatusCompleted,
		"cash debt settled", time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert settlement transaction: %w", err)
	}
	if row.CashOwed == 0 {
		if _, err = tx.ExecContext(ctx, CompleteCashDebtsQuery, userID); err != nil {
			return 0, fmt.Errorf("failed to complete cash debt transactions: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return settled, nil
}

func (w *DBWallets) Transactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rows, err := w.db.QueryContext(ctx, GetTransactionsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		var trx models.Transaction
		err = rows.Scan(&trx.ID, &trx.WalletUserID, &trx.OrderID, &trx.Type, &trx.Amount,
			&trx.BalanceBefore, &trx.BalanceAfter, &trx.Status, &trx.Description, &trx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		transactions = append(transactions, trx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	if len(transactions) == 0 {
		return nil, models.ErrNoData
	}
	return transactions, nil
}
