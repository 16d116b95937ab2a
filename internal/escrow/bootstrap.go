package escrow

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/escrow/engine"
	"github.com/radieske/match-escrow/internal/escrow/store"
	"github.com/radieske/match-escrow/internal/shared/config"
	"github.com/radieske/match-escrow/internal/shared/db"
)

// OpenStore abre o store conforme STORE_DRIVER. O *sql.DB volta nil no driver memory.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Store, *sql.DB, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store; state is lost on restart")
		return store.NewMemory(), nil, nil
	}
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgres(pg), pg, nil
}

// EngineConfig traduz a configuração do ambiente para o engine.
func EngineConfig(cfg config.Config) (engine.Config, error) {
	ec := engine.DefaultConfig()
	limits, err := cfg.TierLimitUnits()
	if err != nil {
		return ec, err
	}
	ec.TierLimits = limits
	ec.WithdrawalCooldown = cfg.WithdrawalCooldown
	ec.CommitRetries = cfg.CommitRetries
	ec.KYCIssuers = cfg.KYCIssuers
	if err := ec.Validate(); err != nil {
		return ec, fmt.Errorf("engine config: %w", err)
	}
	return ec, nil
}
