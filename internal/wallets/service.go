package wallets

import (
	"context"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

type WalletService interface {
	GetUserWallet(ctx context.Context, userID string) (models.Wallet, error)
	GetTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
}
