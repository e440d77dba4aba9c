package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"budgie/internal/backup"
	"budgie/internal/config"
	"budgie/internal/database"
	"budgie/internal/logger"
	"budgie/internal/router"
	"budgie/internal/scheduler"
	"budgie/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("BUDGIE_CONFIG"), "path to config file")
	flag.Parse()

	// load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lg := logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	// ensure basic directories exist
	if err := ensureDir(filepath.Dir(cfg.Database.Path)); err != nil {
		fatal(lg, "create data dir", err)
	}
	if err := ensureDir(cfg.Backup.Dir); err != nil {
		fatal(lg, "create backup dir", err)
	}

	// init database
	db, err := database.Init(cfg.Database)
	if err != nil {
		fatal(lg, "init database", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		fatal(lg, "migrate database", err)
	}

	sessions := service.NewSessionService(db, time.Duration(cfg.JWT.ExpireHours)*time.Hour)
	backups := backup.NewManager(db, cfg.Backup.Dir, cfg.Security.EncryptionKey)
	backups.Log = lg

	jobs, err := scheduler.New(cfg, sessions, backups, lg)
	if err != nil {
		fatal(lg, "init scheduler", err)
	}
	jobs.Start()

	handler := router.New(cfg, router.Deps{
		DB:       db,
		Sessions: sessions,
		Backups:  backups,
		Log:      lg,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("server listening", "addr", addr, "environment", cfg.Server.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(lg, "run server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
	}
	jobs.Stop()
	if err := database.Close(db); err != nil {
		lg.Error("close database", "error", err)
	}
	lg.Info("server stopped")
}

func fatal(lg *slog.Logger, msg string, err error) {
	lg.Error(msg, "error", err)
	os.Exit(1)
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
