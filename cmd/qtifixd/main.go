package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/mindengage-qtifix/internal/api/http"
	auth "github.com/mind-engage/mindengage-qtifix/internal/auth/middleware"
	"github.com/mind-engage/mindengage-qtifix/internal/config"
	"github.com/mind-engage/mindengage-qtifix/internal/db"
	"github.com/mind-engage/mindengage-qtifix/internal/jobs"
	"github.com/mind-engage/mindengage-qtifix/internal/logger"
	"github.com/mind-engage/mindengage-qtifix/internal/qti/convert"
	"github.com/mind-engage/mindengage-qtifix/internal/rbac"
	"github.com/mind-engage/mindengage-qtifix/internal/storage"
	"github.com/mind-engage/mindengage-qtifix/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger not built yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal("db open failed", "driver", cfg.DBDriver, "err", err)
	}
	defer dbh.Close()

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatal("blob store", "err", err)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		log.Fatal("work dir", "err", err)
	}

	var conv convert.Converter = convert.CopyConverter{}
	if c := convert.NewExecConverter(cfg.ConverterCmd); c != nil {
		conv = c
	}

	store := jobs.NewSQLStore(dbh)
	runner := &jobs.Runner{
		Store:     store,
		Events:    jobs.NewEventRepo(dbh),
		Blobs:     bs,
		Transport: transport.NewClient(cfg.FetchTimeout),
		Converter: conv,
		WorkDir:   cfg.WorkDir,
		Workers:   cfg.Workers,
		DryRun:    cfg.DryRun,
		Log:       log,
	}

	if cfg.AdminPassHash == "" {
		log.Warn("ADMIN_PASS_HASH not set; /auth/login is disabled")
	}
	h := api.NewRouter(api.Deps{
		DB:     dbh,
		Store:  store,
		Runner: runner,
		Blobs:  bs,
		Auth:   auth.NewAuthService(cfg.AuthHMACSecret),
		Account: auth.Account{
			Username:     cfg.AdminUser,
			PasswordHash: cfg.AdminPassHash,
			Role:         rbac.RoleAdmin,
		},
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "err", err)
		}
	}()

	log.Info("listening", "addr", cfg.HTTPAddr, "db", cfg.DBDriver, "workers", cfg.Workers, "converter", len(cfg.ConverterCmd) > 0)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("serve", "err", err)
	}
}
