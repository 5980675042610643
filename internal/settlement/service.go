package settlement

import (
	"context"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

// SettlementService is the single entry point for turning a delivered
// order into ledger movements. Both the delivered-event consumer and the
// processor confirmation webhook land here, on the same idempotent path.
type SettlementService interface {
	HandleDelivered(ctx context.Context, ev models.OrderDeliveredEvent) error
	ConfirmPayment(ctx context.Context, orderID string, amount models.Money, status string) error
	// ReconcileStale re-drives the hold path for delivered card orders
	// that never got a held fund booked. Returns how many were fixed.
	ReconcileStale(ctx context.Context, grace time.Duration, limit int) (int, error)
}
