package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/application"
)

const shutdownTimeout = 5 * time.Second

// Options ...
type Options struct {
	Port int
	// RateLimit is the number of requests per second accepted from a single
	// client, Burst the size of its bucket.
	RateLimit float64
	Burst     int
}

// Service serves the HTTP API of the daemon.
type Service struct {
	server *http.Server
}

func NewService(appConfig *application.Config, opts Options) (*Service, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("missing application config")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("invalid listening port %d", opts.Port)
	}

	return &Service{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           NewRouter(appConfig, opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start serves in background.
func (s *Service) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
	log.Infof("http interface listening on %s", s.server.Addr)
	return nil
}

func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop http server")
	}
	log.Info("http interface stopped")
}
