package transferservice

import (
	"context"
	"errors"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

var (
	ErrTransferRejected      = errors.New("transfer rejected by payout system")
	ErrToManyRequests        = errors.New("too many requests")
	ErrInternalServerError   = errors.New("internal server error")
	ErrCanNotGetTransferResp = errors.New("can not get transfer response")
)

var (
	TransferStatusAccepted = "ACCEPTED"
	TransferStatusRejected = "REJECTED"
)

type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type TransferService interface {
	Transfer(ctx context.Context, w models.Withdrawal) (Result, error)
}
