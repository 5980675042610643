package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/audit"
	"github.com/Caskiuz/nemymarket.git/internal/cashsettle"
	"github.com/Caskiuz/nemymarket.git/internal/heldfunds"
	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/settlement"
	"github.com/Caskiuz/nemymarket.git/internal/wallets"
	"github.com/Caskiuz/nemymarket.git/internal/withdrawals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handlers struct {
	walletSrv      wallets.WalletService
	wdSrv          withdrawals.WithdrawalService
	cashSrv        cashsettle.CashSettlementService
	settleSrv      settlement.SettlementService
	heldSrv        heldfunds.HeldFundService
	auditor        audit.DatabaseAudit
	processorToken string
	adminToken     string
}

func NewHandlers(walletSrv wallets.WalletService, wdSrv withdrawals.WithdrawalService, cashSrv cashsettle.CashSettlementService, settleSrv settlement.SettlementService, heldSrv heldfunds.HeldFundService, auditor audit.DatabaseAudit, processorToken, adminToken string) *Handlers {
	return &Handlers{
		walletSrv:      walletSrv,
		wdSrv:          wdSrv,
		cashSrv:        cashSrv,
		settleSrv:      settleSrv,
		heldSrv:        heldSrv,
		auditor:        auditor,
		processorToken: processorToken,
		adminToken:     adminToken,
	}
}

func (h Handlers) PingHandler(rw http.ResponseWriter, r *http.Request) {
	SendResponse(rw, http.StatusOK, []byte("pong"))
}

type confirmationRequest struct {
	OrderID string       `json:"order_id"`
	Amount  models.Money `json:"amount"`
	Status  string       `json:"status"`
}

func (h Handlers) ConfirmationHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("ConfirmationHandler called")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		SendResponse(rw, http.StatusBadRequest, []byte{})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req confirmationRequest
	if err = json.Unmarshal(body, &req); err != nil || req.OrderID == "" {
		SendResponse(rw, http.StatusBadRequest, []byte{})
		return
	}
	if err = h.auditor.Record(ctx, "payment_processor", req.OrderID, string(body)); err != nil {
		logger.Log.Error("failed to record confirmation", zap.Error(err))
	}

	err = h.settleSrv.ConfirmPayment(ctx, req.OrderID, req.Amount, req.Status)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			SendResponse(rw, http.StatusNotFound, []byte{})
			return
		}
		if errors.Is(err, models.ErrInvalidAmount) || errors.Is(err, models.ErrInvalidEvent) {
			SendResponse(rw, http.StatusUnprocessableEntity, []byte{})
			return
		}
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}
	SendResponse(rw, http.StatusOK, []byte{})
}

type cashSettleRequest struct {
	Amount   models.Money `json:"amount"`
	OrderIDs []string     `json:"order_ids,omitempty"`
}

type cashSettleResponse struct {
	Settled models.Money `json:"settled"`
}

func (h Handlers) CashSettleHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("CashSettleHandler called")
	driverID := chi.URLParam(r, "driverID")

	var req cashSettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendResponse(rw, http.StatusBadRequest, []byte{})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	settled, err := h.cashSrv.SettleCashDebt(ctx, driverID, req.Amount, req.OrderIDs...)
	if err != nil {
		if errors.Is(err, models.ErrInvalidAmount) {
			SendResponse(rw, http.StatusUnprocessableEntity, []byte{})
			return
		}
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}

	resp, err := json.MarshalIndent(cashSettleResponse{Settled: settled}, "", "    ")
	if err != nil {
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	SendResponse(rw, http.StatusOK, resp)
}

func (h Handlers) GetWalletHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("GetWalletHandler called")
	userID := chi.URLParam(r, "userID")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wallet, err := h.walletSrv.GetUserWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrWalletNotFound) {
			SendResponse(rw, http.StatusNotFound, []byte{})
			return
		}
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}

	resp, err := json.MarshalIndent(wallet, "", "    ")
	if err != nil {
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	SendResponse(rw, http.StatusOK, resp)
}

func (h Handlers) GetTransactionsHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("GetTransactionsHandler called")
	userID := chi.URLParam(r, "userID")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transactions, err := h.walletSrv.GetTransactions(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNoData) {
			SendResponse(rw, http.StatusNoContent, []byte{})
			return
		}
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}

	resp, err := json.MarshalIndent(transactions, "", "    ")
	if err != nil {
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	SendResponse(rw, http.StatusOK, resp)
}

type withdrawalRequest struct {
	UserID      string       `json:"user_id"`
	Amount      models.Money `json:"amount"`
	BankAccount string       `json:"bank_account"`
	BankName    string       `json:"bank_name,omitempty"`
}

func (h Handlers) PostWithdrawalHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("PostWithdrawalHandler called")
	if r.Header.Get("Content-Type") != "application/json" {
		SendResponse(rw, http.StatusBadRequest, []byte{})
		return
	}

	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		SendResponse(rw, http.StatusBadRequest, []byte{})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w, err := h.wdSrv.Request(ctx, req.UserID, req.Amount, req.BankAccount, req.BankName)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) {
			SendResponse(rw, http.StatusPaymentRequired, []byte(err.Error()))
			return
		}
		if errors.Is(err, models.ErrInvalidAmount) || errors.Is(err, models.ErrNoBankAccount) {
			SendResponse(rw, http.StatusUnprocessableEntity, []byte{})
			return
		}
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}

	resp, err := json.MarshalIndent(w, "", "    ")
	if err != nil {
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	SendResponse(rw, http.StatusCreated, resp)
}

func (h Handlers) GetWithdrawalsHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("GetWithdrawalsHandler called")
	userID := chi.URLParam(r, "userID")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := h.wdSrv.UserWithdrawals(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNoData) {
			SendResponse(rw, http.StatusNoContent, []byte{})
			return
		}
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}

	resp, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		SendResponse(rw, http.StatusInternalServerError, []byte{})
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	SendResponse(rw, http.StatusOK, resp)
}

func (h Handlers) ApproveWithdrawalHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("ApproveWithdrawalHandler called")
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.wdSrv.Approve(ctx, id); err != nil {
		h.sendWithdrawalError(rw, err)
		return
	}
	SendResponse(rw, http.StatusOK, []byte{})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h Handlers) RejectWithdrawalHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("RejectWithdrawalHandler called")
	id := chi.URLParam(r, "id")

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendResponse(rw, http.StatusBadRequest, []byte{})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.wdSrv.Reject(ctx, id, req.Reason); err != nil {
		h.sendWithdrawalError(rw, err)
		return
	}
	SendResponse(rw, http.StatusOK, []byte{})
}

func (h Handlers) sendWithdrawalError(rw http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrWithdrawalNotFound) {
		SendResponse(rw, http.StatusNotFound, []byte{})
		return
	}
	if errors.Is(err, models.ErrWrongWithdrawalState) {
		SendResponse(rw, http.StatusConflict, []byte{})
		return
	}
	SendResponse(rw, http.StatusInternalServerError, []byte{})
}

func (h Handlers) DisputeOrderHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("DisputeOrderHandler called")
	orderID := chi.URLParam(r, "orderID")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.heldSrv.Dispute(ctx, orderID); err != nil {
		h.sendHeldFundError(rw, err)
		return
	}
	SendResponse(rw, http.StatusOK, []byte{})
}

type refundRequest struct {
	RefundBusiness bool `json:"refund_business"`
	RefundDriver   bool `json:"refund_driver"`
}

func (h Handlers) RefundOrderHandler(rw http.ResponseWriter, r *http.Request) {
	logger.Log.Debug("RefundOrderHandler called")
	orderID := chi.URLParam(r, "orderID")

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendResponse(rw, http.StatusBadRequest, []byte{})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.heldSrv.Refund(ctx, orderID, req.RefundBusiness, req.RefundDriver); err != nil {
		h.sendHeldFundError(rw, err)
		return
	}
	SendResponse(rw, http.StatusOK, []byte{})
}

func (h Handlers) sendHeldFundError(rw http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrHeldFundNotFound) {
		SendResponse(rw, http.StatusNotFound, []byte{})
		return
	}
	if errors.Is(err, models.ErrWrongHeldFundState) {
		SendResponse(rw, http.StatusConflict, []byte{})
		return
	}
	SendResponse(rw, http.StatusInternalServerError, []byte{})
}

// ProcessorAuth gates the payment-processor webhook. An empty configured
// token disables the check, which is only meant for local runs.
func (h Handlers) ProcessorAuth(next http.Handler) http.Handler {
	return tokenAuth("X-Processor-Token", h.processorToken, next)
}

func (h Handlers) AdminAuth(next http.Handler) http.Handler {
	return tokenAuth("X-Admin-Token", h.adminToken, next)
}

func tokenAuth(header, token string, next http.Handler) http.Handler {
	return logger.WithLogging(func(rw http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get(header) != token {
			SendResponse(rw, http.StatusUnauthorized, []byte("Missing or invalid token"))
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func SendResponse(rw http.ResponseWriter, status int, message []byte) {
	rw.WriteHeader(status)
	if len(message) == 0 {
		_, _ = rw.Write([]byte(http.StatusText(status)))
		return
	}
	_, _ = rw.Write(message)
}
