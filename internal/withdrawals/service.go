package withdrawals

import (
	"context"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

// WithdrawalService runs the payout lifecycle: a courier or business
// requests a withdrawal, an operator approves or rejects it, and the
// payout job moves approved requests through the bank transfer. Money
// only leaves the wallet inside Process, and a failed transfer puts it
// straight back.
type WithdrawalService interface {
	Request(ctx context.Context, userID string, amount models.Money, bankAccount, bankName string) (models.Withdrawal, error)
	Approve(ctx context.Context, id string) error
	Reject(ctx context.Context, id, reason string) error
	Process(ctx context.Context, id string) error
	// ProcessApproved drains up to limit approved withdrawals through the
	// transfer system. Returns how many reached a terminal state.
	ProcessApproved(ctx context.Context, limit int) (int, error)
	UserWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error)
}
