package models

import "errors"

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidEvent     = errors.New("invalid order delivered event")
	ErrAlreadyProcessed = errors.New("movement already processed")

	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeBalance   = errors.New("operation would drive balance negative")

	ErrHeldFundNotFound   = errors.New("held fund not found")
	ErrHeldFundExists     = errors.New("held fund already exists")
	ErrWrongHeldFundState = errors.New("held fund is not in the expected state")

	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrWrongWithdrawalState = errors.New("withdrawal is not in the expected state")
	ErrNoBankAccount        = errors.New("bank account is required")

	ErrOrderNotFound        = errors.New("order not found")
	ErrCashAlreadyCollected = errors.New("cash already collected for order")

	ErrNoData = errors.New("no data")
)
