package heldfunds

import (
	"context"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

type HeldFundService interface {
	Hold(ctx context.Context, orderID, businessID, driverID string, split models.CommissionSplit, releaseAfter time.Time) error
	Release(ctx context.Context, orderID string) error
	Dispute(ctx context.Context, orderID string) error
	Refund(ctx context.Context, orderID string, refundBusiness, refundDriver bool) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.HeldFund, error)
}
