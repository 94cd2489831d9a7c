// Package store is the Postgres implementation of devices.Store and
// catalog.Store, built on database/sql with the pgx stdlib driver.
//
// Writes run at READ COMMITTED. Update and delete paths lock the device row
// with SELECT ... FOR UPDATE, which serializes concurrent mutations of the same
// device, and the partial unique index on open assignments rejects anything
// that slips past.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"devicehub-api/db"
	"devicehub-api/internal/dbx"
	"devicehub-api/internal/devices"
)

// Store vends repositories bound either to the pool or to a transaction.
type Store struct {
	db *sql.DB
}

var _ devices.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r devices.Repositories) error) error {
	return dbx.WithTx(ctx, s.db, dbx.WriteTxOptions, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, repos{db: tx})
	})
}

func (s *Store) Reader() devices.Repositories {
	return repos{db: s.db}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, conn *sql.DB) error {
	goose.SetBaseFS(db.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, conn, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Seed executes the embedded development seeds in file name order. Seeds are
// idempotent, so running them twice is harmless.
func Seed(ctx context.Context, conn *sql.DB) error {
	files, err := fs.Glob(db.Seeds, "seeds/*.sql")
	if err != nil {
		return err
	}
	for _, name := range files {
		body, err := fs.ReadFile(db.Seeds, name)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply seed %s: %w", name, err)
		}
	}
	return nil
}

type repos struct {
	db dbx.DBTX
}

func (r repos) Devices() devices.DeviceRepository { return &deviceRepo{db: r.db} }
func (r repos) Assignments() devices.AssignmentRepository { return &assignmentRepo{db: r.db} }
func (r repos) Models() devices.ModelValidator { return &catalogRepo{db: r.db} }
func (r repos) Users() devices.UserDirectory { return &catalogRepo{db: r.db} }
func (r repos) Owners() devices.OwnerDirectory { return &catalogRepo{db: r.db} }
func (r repos) Repairs() devices.RepairHistoryStore { return &repairRepo{db: r.db} }
