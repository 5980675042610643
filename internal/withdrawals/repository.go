package withdrawals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

const (
	InsertWithdrawalQuery = `
			INSERT INTO withdrawals (id, user_id, amount, status, bank_account, bank_name, transfer_id, fail_reason, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, '', '', $7, $7);`
	GetWithdrawalQuery = `
			SELECT id, user_id, amount, status, bank_account, bank_name, transfer_id, fail_reason, created_at, updated_at
			FROM withdrawals WHERE id = $1;`
	UpdateWithdrawalStatusQuery = `
			UPDATE withdrawals SET status = $1, transfer_id = $2, fail_reason = $3, updated_at = $4
			WHERE id = $5 AND status = ANY($6);`
	ListWithdrawalsByStatusQuery = `
			SELECT id, user_id, amount, status, bank_account, bank_name, transfer_id, fail_reason, created_at, updated_at
			FROM withdrawals
			WHERE status = $1
			ORDER BY created_at
			LIMIT $2;`
	ListWithdrawalsByUIDQuery = `
			SELECT id, user_id, amount, status, bank_account, bank_name, transfer_id, fail_reason, created_at, updated_at
			FROM withdrawals
			WHERE user_id = $1
			ORDER BY created_at DESC;`
)

// DatabaseWithdrawals persists payout requests. UpdateStatusIf is a
// compare-and-swap like the held-fund one: the transition only happens
// when the current status is one of the expected states, so the admin
// endpoints and the payout job cannot race each other into a double
// transition.
type DatabaseWithdrawals interface {
	Insert(ctx context.Context, w models.Withdrawal) error
	Get(ctx context.Context, id string) (models.Withdrawal, error)
	UpdateStatusIf(ctx context.Context, id string, from []models.WithdrawalStatus, to models.WithdrawalStatus, transferID, reason string) error
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit int) ([]models.Withdrawal, error)
	ListByUser(ctx context.Context, userID string) ([]models.Withdrawal, error)
}

type DBWithdrawals struct {
	db *sql.DB
	mu *sync.RWMutex
}

func NewDBWithdrawals(db *sql.DB, mu *sync.RWMutex) (*DBWithdrawals, error) {
	return &DBWithdrawals{db: db, mu: mu}, nil
}

func (d *DBWithdrawals) Insert(ctx context.Context, w models.Withdrawal) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, InsertWithdrawalQuery,
		w.ID, w.UserID, w.Amount, w.Status, w.BankAccount, w.BankName, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal: %w", err)
	}
	return tx.Commit()
}

func (d *DBWithdrawals) Get(ctx context.Context, id string) (models.Withdrawal, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.read(ctx, id)
}

func (d *DBWithdrawals) read(ctx context.Context, id string) (models.Withdrawal, error) {
	var w models.Withdrawal
	err := d.db.QueryRowContext(ctx, GetWithdrawalQuery, id).Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Status, &w.BankAccount, &w.BankName,
		&w.TransferID, &w.FailReason, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Withdrawal{}, models.ErrWithdrawalNotFound
		}
		return models.Withdrawal{}, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

func (d *DBWithdrawals) UpdateStatusIf(ctx context.Context, id string, from []models.WithdrawalStatus, to models.WithdrawalStatus, transferID, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, string(s))
	}
	res, err := d.db.ExecContext(ctx, UpdateWithdrawalStatusQuery, to, transferID, reason, time.Now(), id, states)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err = d.read(ctx, id); errors.Is(err, models.ErrWithdrawalNotFound) {
			return models.ErrWithdrawalNotFound
		}
		return models.ErrWrongWithdrawalState
	}
	return nil
}

func (d *DBWithdrawals) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit int) ([]models.Withdrawal, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, ListWithdrawalsByStatusQuery, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	return scanWithdrawals(rows)
}

func (d *DBWithdrawals) ListByUser(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, ListWithdrawalsByUIDQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	return scanWithdrawals(rows)
}

func scanWithdrawals(rows *sql.Rows) ([]models.Withdrawal, error) {
	defer rows.Close()
	withdrawals := make([]models.Withdrawal, 0)
	for rows.Next() {
		var w models.Withdrawal
		err := rows.Scan(&w.ID, &w.UserID, &w.Amount, &w.Status, &w.BankAccount, &w.BankName,
			&w.TransferID, &w.FailReason, &w.CreatedAt, &w.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return withdrawals, nil
}
