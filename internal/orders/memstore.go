package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

// HeldFundGetter is the slice of the held-funds repository that the
// in-memory order store needs to answer ListUnheldCard.
type HeldFundGetter interface {
	Get(ctx context.Context, orderID string) (models.HeldFund, error)
}

// MemOrders is the in-memory DatabaseOrders used in tests and when no
// DSN is configured. The postgres store answers ListUnheldCard with a
// join; here the held-funds repository is consulted directly.
type MemOrders struct {
	mu     sync.Mutex
	orders map[string]models.OrderFinancials
	held   HeldFundGetter
}

func NewMemOrders(held HeldFundGetter) *MemOrders {
	return &MemOrders{orders: make(map[string]models.OrderFinancials), held: held}
}

func (m *MemOrders) UpsertDelivered(_ context.Context, ev models.OrderDeliveredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[ev.OrderID]; ok {
		return nil
	}
	m.orders[ev.OrderID] = models.OrderFinancials{
		OrderID:       ev.OrderID,
		BusinessID:    ev.BusinessID,
		DriverID:      ev.DriverID,
		PaymentMethod: ev.PaymentMethod,
		Total:         ev.Total,
		Subtotal:      ev.Subtotal,
		DeliveryFee:   ev.DeliveryFee,
		DeliveredAt:   ev.DeliveredAt,
	}
	return nil
}

func (m *MemOrders) Get(_ context.Context, orderID string) (models.OrderFinancials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	of, ok := m.orders[orderID]
	if !ok {
		return models.OrderFinancials{}, models.ErrOrderNotFound
	}
	return of, nil
}

func (m *MemOrders) StampEarnings(_ context.Context, orderID string, platformFee, businessEarnings, deliveryEarnings models.Money, cashCollected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	of, ok := m.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	of.PlatformFee = platformFee
	of.BusinessEarnings = businessEarnings
	of.DeliveryEarnings = deliveryEarnings
	of.CashCollected = cashCollected
	m.orders[orderID] = of
	return nil
}

func (m *MemOrders) SetCashSettled(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	of, ok := m.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	of.CashSettled = true
	m.orders[orderID] = of
	return nil
}

func (m *MemOrders) ListUnheldCard(ctx context.Context, deliveredBefore time.Time, limit int) ([]models.OrderFinancials, error) {
	m.mu.Lock()
	candidates := make([]models.OrderFinancials, 0)
	for _, of := range m.orders {
		if of.PaymentMethod == models.PaymentCard && !of.DeliveredAt.After(deliveredBefore) {
			candidates = append(candidates, of)
		}
	}
	m.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].DeliveredAt.Before(candidates[j].DeliveredAt) })
	result := make([]models.OrderFinancials, 0)
	for _, of := range candidates {
		if m.held != nil {
			if _, err := m.held.Get(ctx, of.OrderID); err == nil {
				continue
			}
		}
		result = append(result, of)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}
