package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maynagashev/tokenvault/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// PullService отдает метрики Prometheus по /metrics.
type PullService struct {
	server *http.Server
	log    *logger.Logger
}

// NewPullService создает сервис метрик на адресе addr.
func NewPullService(addr string, log *logger.Logger) *PullService {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &PullService{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		log: log.Module("metrics"),
	}
}

// Run обслуживает запросы до отмены ctx.
func (s *PullService) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("сервис метрик запущен", "addr", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("остановка сервиса метрик")
		return s.server.Shutdown(shutdownCtx)
	}
}
