package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/match-escrow/internal/shared/config"
	"github.com/radieske/match-escrow/internal/shared/db"
	"github.com/radieske/match-escrow/internal/shared/logger"
)

func main() {
	dir := flag.String("dir", "migrations", "directory with NNNNNN_name.{up,down}.sql files")
	down := flag.Bool("down", false, "roll back the latest applied migration")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New("migrate", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	m := db.NewMigrator(pg, *dir, log)
	if *down {
		err = m.Down(ctx)
	} else {
		err = m.Up(ctx)
	}
	if err != nil {
		log.Error("migration failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("migrations done", zap.Bool("down", *down))
}
