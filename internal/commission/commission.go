package commission

import (
	"fmt"
	"math"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

// Split divides an order total between platform, driver and business.
// Platform and driver shares are rounded independently; the business
// takes whatever remains, so the three amounts always sum to the total
// exactly. Pure function, no I/O.
func Split(total models.Money, rates models.CommissionRates) (models.CommissionSplit, error) {
	if total <= 0 || total > models.MaxOrderTotal {
		return models.CommissionSplit{}, fmt.Errorf("split: total %d: %w", total, models.ErrInvalidAmount)
	}
	platform := models.RoundShare(total, rates.Platform)
	driver := models.RoundShare(total, rates.Driver)
	business := total - platform - driver
	if business < 0 {
		return models.CommissionSplit{}, fmt.Errorf("split: rates leave business share negative: %w", models.ErrInvalidAmount)
	}
	return models.CommissionSplit{
		Platform: platform,
		Business: business,
		Driver:   driver,
	}, nil
}

// CashSplit derives the business product base and the platform
// commission from an order subtotal that already includes the platform
// markup: base = subtotal / (1 + platform rate), commission is the
// remainder. The two always sum to the subtotal exactly.
func CashSplit(subtotal models.Money, rates models.CommissionRates) (productBase, platformCommission models.Money, err error) {
	if subtotal <= 0 || subtotal > models.MaxOrderTotal {
		return 0, 0, fmt.Errorf("cash split: subtotal %d: %w", subtotal, models.ErrInvalidAmount)
	}
	if rates.Platform < 0 {
		return 0, 0, fmt.Errorf("cash split: negative platform rate: %w", models.ErrInvalidAmount)
	}
	productBase = models.Money(math.Round(float64(subtotal) / (1 + rates.Platform)))
	platformCommission = subtotal - productBase
	return productBase, platformCommission, nil
}
