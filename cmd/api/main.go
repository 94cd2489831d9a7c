package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"devicehub-api/internal"
	"devicehub-api/internal/catalog"
	"devicehub-api/internal/config"
	"devicehub-api/internal/devices"
	"devicehub-api/internal/logging"
	"devicehub-api/internal/store"
	"devicehub-api/internal/store/memstore"
)

// backend is what both store drivers provide to the server.
type backend interface {
	devices.Store
	catalog.Store
	catalog.DeviceCountByModel
	internal.Accounts
}

func main() {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		logrus.WithError(err).Fatal("configuration error")
	}

	log := logging.New(logging.Options{
		AppName: "devicehub-api",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, conn, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("storage initialisation failed")
	}
	if conn != nil {
		defer conn.Close()
	}

	metrics := internal.NewMetrics()
	deps := internal.Deps{
		Config:   cfg,
		Devices:  devices.NewService(be, devices.WithObserver(metrics), devices.WithLogger(log)),
		Catalog:  catalog.NewService(be, be, log),
		Accounts: be,
		Metrics:  metrics,
		Logger:   log,
	}
	if conn != nil {
		deps.DB = conn
	}

	srv, err := internal.NewServer(deps)
	if err != nil {
		log.WithError(err).Fatal("server initialisation failed")
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":         cfg.HTTPAddr,
			"store":        cfg.StoreDriver,
			"jwt_issuer":   cfg.JWTIssuer,
			"jwt_audience": cfg.JWTAudience,
			"jwt_expiry":   cfg.JWTExpiry.String(),
			"metrics":      cfg.EnableMetrics,
		}).Info("starting devicehub api")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server stopped")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}
}

// openBackend returns the configured store. conn is nil for the memory driver.
func openBackend(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (backend, *sql.DB, error) {
	if cfg.StoreDriver == "memory" {
		st := memstore.New()
		hash := "!"
		if cfg.SeedAdminPassword != "" {
			b, err := bcrypt.GenerateFromPassword([]byte(cfg.SeedAdminPassword), bcrypt.DefaultCost)
			if err != nil {
				return nil, nil, err
			}
			hash = string(b)
		}
		st.SeedDevelopment(hash)
		log.Warn("using in-memory store; data is lost on restart")
		return st, nil, nil
	}

	conn, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		log.Info("migrations applied")
	}
	return store.New(conn), conn, nil
}
