package models

import "time"

// PlatformAccountID is the reserved wallet that accumulates platform
// commissions and markup proceeds.
const PlatformAccountID = "platform"

// Wallet holds the money counters of one user (business, driver or the
// platform account). All four money fields stay non-negative at all
// times; CashOwed decreases only through cash settlement, never through
// withdrawal. Wallets are created lazily on first credit and never
// deleted. Mutation happens only through the wallet repository.
type Wallet struct {
	UserID         string    `json:"user_id"`
	Balance        Money     `json:"balance"`
	PendingBalance Money     `json:"pending_balance"`
	CashOwed       Money     `json:"cash_owed"`
	TotalEarned    Money     `json:"total_earned"`
	TotalWithdrawn Money     `json:"total_withdrawn"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type TransactionType string

const (
	TxIncome           TransactionType = "income"
	TxDeliveryFee      TransactionType = "delivery_fee"
	TxCashCollected    TransactionType = "cash_collected"
	TxCashDebtBusiness TransactionType = "cash_debt_business"
	TxCashDebtPlatform TransactionType = "cash_debt_platform"
	TxCashSettlement   TransactionType = "cash_settlement"
	TxRefund           TransactionType = "refund"
	TxWithdrawal       TransactionType = "withdrawal"
	TxCommission       TransactionType = "commission"
)

type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusFailed    TransactionStatus = "failed"
)

// Transaction is one immutable row of the append-only ledger log. Amount
// and type never change after creation; status may only move
// pending -> completed or pending -> failed. The (OrderID, Type) pair of
// non-failed rows doubles as the idempotency guard for replayed webhooks
// and re-run jobs.
type Transaction struct {
	ID            string            `json:"id"`
	WalletUserID  string            `json:"wallet_user_id"`
	OrderID       string            `json:"order_id,omitempty"`
	Type          TransactionType   `json:"type"`
	Amount        Money             `json:"amount"`
	BalanceBefore Money             `json:"balance_before"`
	BalanceAfter  Money             `json:"balance_after"`
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Movement describes one atomic ledger mutation. The deltas are applied
// to the wallet counters together with the insertion of the transaction
// record, inside a single storage transaction. Amount is the signed
// figure recorded on the transaction row and may differ from the balance
// delta (a cash debt raises CashOwed while Balance stays put).
type Movement struct {
	UserID         string
	OrderID        string
	Type           TransactionType
	Amount         Money
	BalanceDelta   Money
	PendingDelta   Money
	CashOwedDelta  Money
	EarnedDelta    Money
	WithdrawnDelta Money
	Status         TransactionStatus
	Description    string
}
