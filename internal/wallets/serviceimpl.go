package wallets

import (
	"context"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

type WService struct {
	conn DatabaseWallets
}

func NewWService(conn DatabaseWallets) *WService {
	return &WService{conn: conn}
}

func (s *WService) GetUserWallet(ctx context.Context, userID string) (models.Wallet, error) {
	wallet, err := s.conn.GetWallet(ctx, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return wallet, nil
}

func (s *WService) GetTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	transactions, err := s.conn.Transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return transactions, nil
}
