package models

import "time"

type HeldFundStatus string

const (
	HeldFundHeld     HeldFundStatus = "held"
	HeldFundReleased HeldFundStatus = "released"
	HeldFundDisputed HeldFundStatus = "disputed"
	HeldFundRefunded HeldFundStatus = "refunded"
)

// HeldFund books the card-rail payout split of one order until the
// anti-fraud delay passes. BusinessAmount + DeliveryAmount +
// PlatformAmount always equals the order total. Released and refunded
// are terminal; disputed blocks release until resolved.
type HeldFund struct {
	ID             string         `json:"id"`
	OrderID        string         `json:"order_id"`
	BusinessID     string         `json:"business_id"`
	DriverID       string         `json:"driver_id"`
	BusinessAmount Money          `json:"business_amount"`
	DeliveryAmount Money          `json:"delivery_amount"`
	PlatformAmount Money          `json:"platform_amount"`
	Status         HeldFundStatus `json:"status"`
	ReleaseAfter   time.Time      `json:"release_after"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (h HeldFund) Total() Money {
	return h.BusinessAmount + h.DeliveryAmount + h.PlatformAmount
}
