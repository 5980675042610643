package httpserver

import (
	"context"
	"net/http"

	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"go.uber.org/zap"
)

type Service struct {
	apiSrv http.Server
}

func NewService(APIAddr string, h *Handlers) (*Service, error) {
	r := NewRouterObject(*h)
	router, err := r.GetRouter()
	if err != nil {
		return nil, err
	}

	service := &Service{
		apiSrv: http.Server{
			Addr:    APIAddr,
			Handler: router,
		},
	}
	return service, nil
}

func (s *Service) Run() error {
	logger.Log.Info("API Listening at",
		zap.String("Addr", s.apiSrv.Addr))
	return s.apiSrv.ListenAndServe()
}

func (s *Service) Shutdown(ctx context.Context) error {
	return s.apiSrv.Shutdown(ctx)
}
