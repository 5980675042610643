package httpserver

import (
	"fmt"

	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/metrics"
	"github.com/go-chi/chi/v5"
)

type RouterObject struct {
	h        Handlers
	chRouter chi.Router
}

func NewRouterObject(h Handlers) *RouterObject {
	return &RouterObject{h: h, chRouter: chi.NewRouter()}
}

func (r *RouterObject) GetRouter() (chi.Router, error) {
	if r.chRouter == nil {
		return nil, fmt.Errorf("router not initialized")
	}
	logger.Log.Debug("Configuring Router")

	r.chRouter.Get("/ping", logger.WithLogging(r.h.PingHandler))
	r.chRouter.Handle("/metrics", metrics.Handler())

	r.chRouter.Route("/api/settlement", func(router chi.Router) {
		router.Route("/confirmation", func(router chi.Router) {
			router.Use(r.h.ProcessorAuth)
			router.Post("/", r.h.ConfirmationHandler)
		})
		router.Route("/cash/{driverID}/settle", func(router chi.Router) {
			router.Use(r.h.AdminAuth)
			router.Post("/", r.h.CashSettleHandler)
		})
		router.Route("/orders/{orderID}", func(router chi.Router) {
			router.Use(r.h.AdminAuth)
			router.Post("/dispute", r.h.DisputeOrderHandler)
			router.Post("/refund", r.h.RefundOrderHandler)
		})
	})

	r.chRouter.Route("/api/wallets/{userID}", func(router chi.Router) {
		router.Get("/", logger.WithLogging(r.h.GetWalletHandler))
		router.Get("/transactions", logger.WithLogging(r.h.GetTransactionsHandler))
		router.Get("/withdrawals", logger.WithLogging(r.h.GetWithdrawalsHandler))
	})

	r.chRouter.Route("/api/withdrawals", func(router chi.Router) {
		router.Post("/", logger.WithLogging(r.h.PostWithdrawalHandler))
		router.Route("/{id}", func(router chi.Router) {
			router.Use(r.h.AdminAuth)
			router.Post("/approve", r.h.ApproveWithdrawalHandler)
			router.Post("/reject", r.h.RejectWithdrawalHandler)
		})
	})

	logger.Log.Info("Successfully initialized Router")
	return r.chRouter, nil
}

/*
GET  /ping
GET  /metrics
POST /api/settlement/confirmation
POST /api/settlement/cash/{driverID}/settle
POST /api/settlement/orders/{orderID}/dispute
POST /api/settlement/orders/{orderID}/refund
GET  /api/wallets/{userID}
GET  /api/wallets/{userID}/transactions
GET  /api/wallets/{userID}/withdrawals
POST /api/withdrawals
POST /api/withdrawals/{id}/approve
POST /api/withdrawals/{id}/reject
*/
