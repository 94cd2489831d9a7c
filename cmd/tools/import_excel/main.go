package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"devicehub-api/internal/devices"
	"devicehub-api/internal/logging"
	"devicehub-api/internal/store"
	"devicehub-api/pkg/importer"
)

func main() {
	var (
		dsn         = flag.String("dsn", os.Getenv("DB_DSN"), "Postgres connection string (defaults to DB_DSN)")
		filePath    = flag.String("file", "", "Workbook to import (.xlsx)")
		mappingPath = flag.String("mapping", "", "YAML column mapping (default: built-in)")
		dryRun      = flag.Bool("dry-run", false, "Validate rows without creating devices")
		maxErrors   = flag.Int("max-errors", 50, "Stop after this many rejected rows")
	)
	flag.Parse()

	log := logging.New(logging.Options{AppName: "import_excel", Level: "info", Format: "text"})
	if *filePath == "" || *dsn == "" {
		fmt.Println("Usage: import_excel -file=devices.xlsx [-mapping=mapping.yaml] [-dry-run] [-max-errors=50]")
		os.Exit(1)
	}

	mapping, err := importer.LoadMapping(*mappingPath)
	if err != nil {
		log.WithError(err).Fatal("load mapping")
	}

	ctx := context.Background()
	conn, err := store.Open(ctx, *dsn)
	if err != nil {
		log.WithError(err).Fatal("connect")
	}
	defer conn.Close()

	file, err := os.Open(*filePath)
	if err != nil {
		log.WithError(err).Fatal("open workbook")
	}
	defer file.Close()

	svc := devices.NewService(store.New(conn), devices.WithLogger(log))

	log.WithFields(logrus.Fields{"file": *filePath, "dry_run": *dryRun}).Info("importing devices")
	summary, err := importer.ImportExcel(ctx, svc, file, importer.ImportOptions{
		Mapping:   mapping,
		DryRun:    *dryRun,
		MaxErrors: *maxErrors,
	})

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("IMPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total inserted: %d\n", summary.Inserted)
	fmt.Printf("Total skipped: %d\n", summary.Skipped)
	fmt.Printf("Total errors: %d\n", summary.Errors)
	fmt.Printf("Dry run: %v\n", summary.DryRun)

	for _, sheet := range summary.Sheets {
		fmt.Printf("  %s: inserted=%d, skipped=%d, errors=%d\n", sheet.Name, sheet.Inserted, sheet.Skipped, sheet.Errors)
		for _, sample := range sheet.Samples {
			fmt.Printf("      Row %d: [%s] %s\n", sample.Row, sample.Code, sample.Message)
		}
	}

	if err != nil {
		log.WithError(err).Fatal("import failed")
	}
}
