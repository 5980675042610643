package models

import "time"

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
	WithdrawalPaid     WithdrawalStatus = "paid"
	WithdrawalFailed   WithdrawalStatus = "failed"
)

// Withdrawal is one payout attempt. Rejected, paid and failed are
// terminal: a failed payout is retried as a brand-new request, never by
// mutating the failed record.
type Withdrawal struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Amount      Money            `json:"amount"`
	Status      WithdrawalStatus `json:"status"`
	BankAccount string           `json:"bank_account"`
	BankName    string           `json:"bank_name,omitempty"`
	TransferID  string           `json:"transfer_id,omitempty"`
	FailReason  string           `json:"fail_reason,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
