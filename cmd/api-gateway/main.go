package main

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/gateway"
	"github.com/radieske/match-escrow/internal/shared/config"
	"github.com/radieske/match-escrow/internal/shared/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	target, err := url.Parse(cfg.EscrowServiceURL)
	if err != nil {
		log.Fatal("ESCROW_SERVICE_URL", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           gateway.New(target, cfg.AllowedOrigins, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("api-gateway listening", zap.String("addr", srv.Addr), zap.String("escrow", target.String()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
