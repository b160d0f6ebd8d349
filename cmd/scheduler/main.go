package main

import (
	"fmt"
	"log"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/config"
	"github.com/wajdi-kharroubi/isi-surveillance/internal/httpapi"
	"github.com/wajdi-kharroubi/isi-surveillance/internal/solver"
	"github.com/wajdi-kharroubi/isi-surveillance/pkg/logger"
)

// @title Invigilation Scheduler
// @version 3.0.0
// @description CP-SAT based exam invigilation assignment service (V3 optimizer)
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	metrics := solver.NewMetrics()

	r := httpapi.NewRouter(cfg, logr, metrics)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
