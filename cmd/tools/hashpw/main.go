// Command hashpw sets a user's password in the Postgres store.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"devicehub-api/internal/logging"
	"devicehub-api/internal/store"
)

func main() {
	var (
		dsn      = flag.String("dsn", os.Getenv("DB_DSN"), "Postgres connection string (defaults to DB_DSN)")
		email    = flag.String("email", "", "User email")
		password = flag.String("password", "", "New password")
		cost     = flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	)
	flag.Parse()

	log := logging.New(logging.Options{AppName: "hashpw", Level: "info", Format: "text"})
	if *dsn == "" || *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), *cost)
	if err != nil {
		log.WithError(err).Fatal("hash password")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := store.Open(ctx, *dsn)
	if err != nil {
		log.WithError(err).Fatal("connect")
	}
	defer conn.Close()

	addr := strings.ToLower(strings.TrimSpace(*email))
	if err := store.New(conn).SetPassword(ctx, addr, string(hash)); err != nil {
		log.WithError(err).WithField("email", addr).Fatal("set password")
	}
	log.WithFields(logrus.Fields{"email": addr}).Info("password updated")
}
