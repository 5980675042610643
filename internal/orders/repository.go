package orders

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
	UpsertDeliveredQuery = `
			INSERT INTO order_financials (order_id, business_id, driver_id, payment_method, total, subtotal, delivery_fee, delivered_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (order_id) DO NOTHING;`
	GetOrderQuery = `
			SELECT order_id, business_id, driver_id, payment_method, total, subtotal, delivery_fee,
			       platform_fee, business_earnings, delivery_earnings, cash_collected, cash_settled, delivered_at
			FROM order_financials WHERE order_id = $1;`
	StampEarningsQuery = `
			UPDATE order_financials
			SET platform_fee = $1, business_earnings = $2, delivery_earnings = $3, cash_collected = $4
			WHERE order_id = $5;`
	SetCashSettledQuery = `UPDATE order_financials SET cash_settled = TRUE WHERE order_id = $1;`
	ListUnheldCardQuery = `
			SELECT o.order_id, o.business_id, o.driver_id, o.payment_method, o.total, o.subtotal, o.delivery_fee,
			       o.platform_fee, o.business_earnings, o.delivery_earnings, o.cash_collected, o.cash_settled, o.delivered_at
			FROM order_financials o
			LEFT JOIN held_funds h ON h.order_id = o.order_id
			WHERE o.payment_method = 'card' AND h.id IS NULL AND o.delivered_at <= $1
			ORDER BY o.delivered_at
			LIMIT $2;`
)

// DatabaseOrders keeps the ledger's copy of each order's financial
// fields, the contract boundary with the order subsystem.
type DatabaseOrders interface {
	UpsertDelivered(ctx context.Context, ev models.OrderDeliveredEvent) error
	Get(ctx context.Context, orderID string) (models.OrderFinancials, error)
	StampEarnings(ctx context.Context, orderID string, platformFee, businessEarnings, deliveryEarnings models.Money, cashCollected bool) error
	SetCashSettled(ctx context.Context, orderID string) error
	// ListUnheldCard returns delivered card orders that never got a held
	// fund booked, for the reconcile job.
	ListUnheldCard(ctx context.Context, deliveredBefore time.Time, limit int) ([]models.OrderFinancials, error)
}

type DBOrders struct {
	db *sql.DB
	mu *sync.RWMutex
}

func NewDBOrders(db *sql.DB, mu *sync.RWMutex) (*DBOrders, error) {
	return &DBOrders{db: db, mu: mu}, nil
}

func (o *DBOrders) UpsertDelivered(ctx context.Context, ev models.OrderDeliveredEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.db.ExecContext(ctx, UpsertDeliveredQuery,
		ev.OrderID, ev.BusinessID, ev.DriverID, ev.PaymentMethod,
		ev.Total, ev.Subtotal, ev.DeliveryFee, ev.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert delivered order: %w", err)
	}
	return nil
}

func (o *DBOrders) Get(ctx context.Context, orderID string) (models.OrderFinancials, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var of models.OrderFinancials
	err := o.db.QueryRowContext(ctx, GetOrderQuery, orderID).Scan(
		&of.OrderID, &of.BusinessID, &of.DriverID, &of.PaymentMethod,
		&of.Total, &of.Subtotal, &of.DeliveryFee,
		&of.PlatformFee, &of.BusinessEarnings, &of.DeliveryEarnings,
		&of.CashCollected, &of.CashSettled, &of.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OrderFinancials{}, models.ErrOrderNotFound
		}
		return models.OrderFinancials{}, fmt.Errorf("failed to get order financials: %w", err)
	}
	return of, nil
}

func (o *DBOrders) StampEarnings(ctx context.Context, orderID string, platformFee, businessEarnings, deliveryEarnings models.Money, cashCollected bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	res, err := o.db.ExecContext(ctx, StampEarningsQuery,
		platformFee, businessEarnings, deliveryEarnings, cashCollected, orderID)
	if err != nil {
		return fmt.Errorf("failed to stamp order earnings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

func (o *DBOrders) SetCashSettled(ctx context.Context, orderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	res, err := o.db.ExecContext(ctx, SetCashSettledQuery, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark order cash settled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

func (o *DBOrders) ListUnheldCard(ctx context.Context, deliveredBefore time.Time, limit int) ([]models.OrderFinancials, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rows, err := o.db.QueryContext(ctx, ListUnheldCardQuery, deliveredBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unheld card orders: %w", err)
	}
	defer rows.Close()

	result := make([]models.OrderFinancials, 0)
	for rows.Next() {
		var of models.OrderFinancials
		err = rows.Scan(&of.OrderID, &of.BusinessID, &of.DriverID, &of.PaymentMethod,
			&of.Total, &of.Subtotal, &of.DeliveryFee,
			&of.PlatformFee, &of.BusinessEarnings, &of.DeliveryEarnings,
			&of.CashCollected, &of.CashSettled, &of.DeliveredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, of)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}
