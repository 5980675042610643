package models

import "time"

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

// OrderDeliveredEvent is what the order subsystem publishes when a
// courier marks an order delivered. Subtotal + DeliveryFee == Total; the
// subtotal already includes the platform markup on the product price.
type OrderDeliveredEvent struct {
	OrderID       string        `json:"order_id"`
	BusinessID    string        `json:"business_id"`
	DriverID      string        `json:"driver_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Total         Money         `json:"total"`
	Subtotal      Money         `json:"subtotal"`
	DeliveryFee   Money         `json:"delivery_fee"`
	DeliveredAt   time.Time     `json:"delivered_at"`
}

// OrderFinancials is the ledger's copy of an order's financial fields,
// the contract boundary with the order subsystem. The delivered-event
// facts are kept alongside so confirmation callbacks and the reconcile
// job can re-drive processing idempotently.
type OrderFinancials struct {
	OrderID          string        `json:"order_id"`
	BusinessID       string        `json:"business_id"`
	DriverID         string        `json:"driver_id"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	Total            Money         `json:"total"`
	Subtotal         Money         `json:"subtotal"`
	DeliveryFee      Money         `json:"delivery_fee"`
	PlatformFee      Money         `json:"platform_fee"`
	BusinessEarnings Money         `json:"business_earnings"`
	DeliveryEarnings Money         `json:"delivery_earnings"`
	CashCollected    bool          `json:"cash_collected"`
	CashSettled      bool          `json:"cash_settled"`
	DeliveredAt      time.Time     `json:"delivered_at"`
}

// Event returns the delivered-event facts stored on the order row.
func (o OrderFinancials) Event() OrderDeliveredEvent {
	return OrderDeliveredEvent{
		OrderID:       o.OrderID,
		BusinessID:    o.BusinessID,
		DriverID:      o.DriverID,
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total,
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		DeliveredAt:   o.DeliveredAt,
	}
}
