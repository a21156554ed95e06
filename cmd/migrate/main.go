package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/cyplat/gandalf/internal/config"
	"github.com/cyplat/gandalf/internal/log"
	"github.com/cyplat/gandalf/internal/repo"
)

// usage: migrate [up|down|status|version|redo|reset]
func main() {
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg := config.Load()
	lg, err := log.Init(cfg.Env == "dev")
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := repo.Connect(ctx, cfg.DatabaseURL, repo.PGOptions{MaxConns: 2, AcquireTimeout: cfg.DBAcquireTimeout})
	if err != nil {
		lg.Fatal("postgres connect", zap.Error(err))
	}
	defer pool.Close()

	if err := repo.RunMigrations(ctx, pool, lg, command, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		lg.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}
	lg.Info("migration done", zap.String("command", command))
}
