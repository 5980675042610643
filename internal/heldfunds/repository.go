package heldfunds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	InsertHeldFundQuery = `
			INSERT INTO held_funds (id, order_id, business_id, driver_id, business_amount, delivery_amount, platform_amount, status, release_after, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10);`
	GetHeldFundQuery = `
			SELECT id, order_id, business_id, driver_id, business_amount, delivery_amount, platform_amount, status, release_after, created_at, updated_at
			FROM held_funds WHERE order_id = $1;`
	UpdateHeldFundStatusQuery = `
			UPDATE held_funds SET status = $1, updated_at = $2
			WHERE order_id = $3 AND status = ANY($4);`
	ListDueHeldFundsQuery = `
			SELECT id, order_id, business_id, driver_id, business_amount, delivery_amount, platform_amount, status, release_after, created_at, updated_at
			FROM held_funds
			WHERE status = 'held' AND release_after <= $1
			ORDER BY release_after
			LIMIT $2;`
)

// DatabaseHeldFunds persists the per-order payout holds. UpdateStatus is
// a compare-and-swap: the transition only happens when the current
// status is one of the expected states, which is what makes release
// idempotent and wrong-state attempts detectable.
type DatabaseHeldFunds interface {
	Insert(ctx context.Context, hf models.HeldFund) error
	Get(ctx context.Context, orderID string) (models.HeldFund, error)
	UpdateStatus(ctx context.Context, orderID string, from []models.HeldFundStatus, to models.HeldFundStatus) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.HeldFund, error)
}

type DBHeldFunds struct {
	db *sql.DB
	mu *sync.RWMutex
}

func NewDBHeldFunds(db *sql.DB, mu *sync.RWMutex) (*DBHeldFunds, error) {
	return &DBHeldFunds{db: db, mu: mu}, nil
}

func (h *DBHeldFunds) Insert(ctx context.Context, hf models.HeldFund) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, InsertHeldFundQuery,
		hf.ID, hf.OrderID, hf.BusinessID, hf.DriverID,
		hf.BusinessAmount, hf.DeliveryAmount, hf.PlatformAmount,
		hf.Status, hf.ReleaseAfter, hf.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.SQLState() == "23505" {
			return models.ErrHeldFundExists
		}
		return fmt.Errorf("failed to insert held fund: %w", err)
	}
	return tx.Commit()
}

func (h *DBHeldFunds) Get(ctx context.Context, orderID string) (models.HeldFund, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var hf models.HeldFund
	err := h.db.QueryRowContext(ctx, GetHeldFundQuery, orderID).Scan(
		&hf.ID, &hf.OrderID, &hf.BusinessID, &hf.DriverID,
		&hf.BusinessAmount, &hf.DeliveryAmount, &hf.PlatformAmount,
		&hf.Status, &hf.ReleaseAfter, &hf.CreatedAt, &hf.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.HeldFund{}, models.ErrHeldFundNotFound
		}
		return models.HeldFund{}, fmt.Errorf("failed to get held fund: %w", err)
	}
	return hf, nil
}

func (h *DBHeldFunds) UpdateStatus(ctx context.Context, orderID string, from []models.HeldFundStatus, to models.HeldFundStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, string(s))
	}
	res, err := h.db.ExecContext(ctx, UpdateHeldFundStatusQuery, to, time.Now(), orderID, states)
	if err != nil {
		return fmt.Errorf("failed to update held fund status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var id string
		err = h.db.QueryRowContext(ctx, GetHeldFundQuery, orderID).Scan(
			&id, new(string), new(string), new(string),
			new(models.Money), new(models.Money), new(models.Money),
			new(models.HeldFundStatus), new(time.Time), new(time.Time), new(time.Time),
		)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrHeldFundNotFound
		}
		return models.ErrWrongHeldFundState
	}
	return nil
}

func (h *DBHeldFunds) ListDue(ctx context.Context, now time.Time, limit int) ([]models.HeldFund, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rows, err := h.db.QueryContext(ctx, ListDueHeldFundsQuery, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due held funds: %w", err)
	}
	defer rows.Close()

	funds := make([]models.HeldFund, 0)
	for rows.Next() {
		var hf models.HeldFund
		err = rows.Scan(&hf.ID, &hf.OrderID, &hf.BusinessID, &hf.DriverID,
			&hf.BusinessAmount, &hf.DeliveryAmount, &hf.PlatformAmount,
			&hf.Status, &hf.ReleaseAfter, &hf.CreatedAt, &hf.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		funds = append(funds, hf)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return funds, nil
}
