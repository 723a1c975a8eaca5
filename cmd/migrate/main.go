package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"plantcare/internal/config"
	"plantcare/internal/fertilizer"
	"plantcare/internal/repository"
	"plantcare/pkg/database"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	seed := flag.Bool("seed", true, "Seed reference tables after migrating up")
	referenceFile := flag.String("reference-file", "", "YAML reference data to seed (default: built-in tables)")
	dsn := flag.String("dsn", "", "Postgres DSN (default: REFERENCE_POSTGRES_DSN)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dsn == "" {
		*dsn = cfg.Reference.PostgresDSN
	}
	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "No Postgres DSN: pass -dsn or set REFERENCE_POSTGRES_DSN")
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("plantcare-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()
	// The CLI exits before anything scrapes, so keep its metrics off the default registry.
	m := metrics.NewCollectorWithRegistry("plantcare_migrate", prometheus.NewRegistry())

	db, err := database.Open(&database.Config{
		Driver:       database.DriverPostgres,
		DSN:          *dsn,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}, logger, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, db, logger, *direction, *seed, *referenceFile); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}

func run(ctx context.Context, db *database.DB, logger *logging.StructuredLogger, direction string, seed bool, referenceFile string) error {
	switch direction {
	case "down":
		fmt.Printf("Running migration: %s\n", repository.ReferenceSchemaDown)
		return repository.Apply(ctx, db, repository.ReferenceSchemaDown)
	case "up":
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}

	fmt.Printf("Running migration: %s\n", repository.ReferenceSchema)
	if err := repository.Apply(ctx, db, repository.ReferenceSchema); err != nil {
		return err
	}
	if !seed {
		return nil
	}

	var ref *fertilizer.ReferenceData
	var err error
	if referenceFile != "" {
		ref, err = fertilizer.LoadReferenceFile(referenceFile)
	} else {
		ref, err = fertilizer.DefaultReference()
	}
	if err != nil {
		return err
	}

	if err := repository.NewReferenceRepository(db, logger).Seed(ctx, ref); err != nil {
		return err
	}
	fmt.Printf("Seeded %d crops, %d catalogue items\n", len(ref.Bands.Crops())+1, len(ref.Catalogue))
	return nil
}
