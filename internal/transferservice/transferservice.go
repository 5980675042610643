package transferservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// BankAPIService talks to the external payout system. The withdrawal ID
// doubles as the idempotency key, so replaying a request never produces
// a second transfer on the remote side. Every request carries its own
// deadline so an unresponsive endpoint cannot block the payout job.
type BankAPIService struct {
	addr    string
	timeout time.Duration
}

func NewBankAPIService(addr string) *BankAPIService {
	return &BankAPIService{addr: addr, timeout: requestTimeout}
}

type transferRequest struct {
	WithdrawalID string `json:"withdrawal_id"`
	Amount       int64  `json:"amount"`
	BankAccount  string `json:"bank_account"`
	BankName     string `json:"bank_name,omitempty"`
}

func (b *BankAPIService) Transfer(ctx context.Context, w models.Withdrawal) (Result, error) {
	retriesCount := 5
	timeouts := make([]time.Duration, retriesCount)
	for i := 0; i < retriesCount; i++ {
		timeouts[i] = time.Duration(2*i+1) * time.Second
	}

	for i := 0; i < retriesCount; i++ {
		result, err := b.send(ctx, w)
		if err != nil {
			if errors.Is(err, ErrTransferRejected) {
				return Result{}, err
			}
			if errors.Is(err, ErrToManyRequests) || errors.Is(err, ErrInternalServerError) {
				logger.Log.Info("transfer attempt failed, retrying after timeout",
					zap.String("withdrawal", w.ID),
					zap.Duration("timeout", timeouts[i]),
					zap.Int("retry-count", i+1),
					zap.Error(err))
				select {
				case <-ctx.Done():
					return Result{}, ctx.Err()
				case <-time.After(timeouts[i]):
				}
				continue
			}
			return Result{}, err
		}
		if result.Status == TransferStatusRejected {
			return Result{}, ErrTransferRejected
		}
		return result, nil
	}
	return Result{}, ErrCanNotGetTransferResp
}

func (b *BankAPIService) send(ctx context.Context, w models.Withdrawal) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	remoteURL := "http://" + b.addr + "/api/transfers"
	client := resty.New()

	body, err := json.Marshal(transferRequest{
		WithdrawalID: w.ID,
		Amount:       int64(w.Amount),
		BankAccount:  w.BankAccount,
		BankName:     w.BankName,
	})
	if err != nil {
		return Result{}, err
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Idempotency-Key", w.ID).
		SetBody(body).
		Post(remoteURL)
	if err != nil {
		return Result{}, err
	}
	switch {
	case resp.StatusCode() == 200 || resp.StatusCode() == 201:
		var result Result
		if err = json.Unmarshal(resp.Body(), &result); err != nil {
			return Result{}, err
		}
		return result, nil
	case resp.StatusCode() == 429:
		return Result{}, ErrToManyRequests
	case resp.StatusCode() >= 500:
		return Result{}, ErrInternalServerError
	case resp.StatusCode() >= 400:
		return Result{}, ErrTransferRejected
	default:
		return Result{}, fmt.Errorf("unexpected status code %d", resp.StatusCode())
	}
}
