// Command migrate applies the embedded goose migrations and, with -seed, the
// development seed data.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"devicehub-api/internal/logging"
	"devicehub-api/internal/store"
)

func main() {
	var (
		dsn  = flag.String("dsn", os.Getenv("DB_DSN"), "Postgres connection string (defaults to DB_DSN)")
		seed = flag.Bool("seed", false, "Load development seed data after migrating")
	)
	flag.Parse()

	log := logging.New(logging.Options{AppName: "migrate", Level: "info", Format: "text"})
	if *dsn == "" {
		log.Fatal("a DSN is required: pass -dsn or set DB_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := store.Open(ctx, *dsn)
	if err != nil {
		log.WithError(err).Fatal("connect")
	}
	defer conn.Close()

	if err := store.Migrate(ctx, conn); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	log.Info("migrations applied")

	if *seed {
		if err := store.Seed(ctx, conn); err != nil {
			log.WithError(err).Fatal("seed")
		}
		log.Info("seed data loaded")
	}
}
