package cashsettle

import (
	"context"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

type CashSettlementService interface {
	// RecordCashDelivery books the courier-collected-cash flow for one
	// delivered order: the courier keeps the delivery fee immediately
	// and owes the product base plus platform commission as cash debt.
	// A replay returns models.ErrCashAlreadyCollected and books nothing.
	RecordCashDelivery(ctx context.Context, ev models.OrderDeliveredEvent) error
	// SettleCashDebt converts remitted cash into spendable credit,
	// clamped to the courier's outstanding debt. Returns the settled
	// amount and stamps the listed orders as cash settled.
	SettleCashDebt(ctx context.Context, driverID string, amount models.Money, orderIDs ...string) (models.Money, error)
}
