package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "STOREFRONT_POSTGRES_DSN"
)

func main() {
	var (
		direction string
		steps     int
		dsn       string
	)

	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv(envPostgresDSN))
	}
	if dsn == "" {
		fail("%s (or -dsn) is required", envPostgresDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	migrator, err := postgres.NewMigrator(store)
	if err != nil {
		fail("load migrations: %v", err)
	}

	if err := run(ctx, migrator, direction, steps); err != nil {
		fail("%v", err)
	}
}

// schemaMigrator — операции postgres.Migrator, которыми пользуется CLI.
type schemaMigrator interface {
	Up(ctx context.Context, steps int) (int, error)
	Down(ctx context.Context, steps int) (int, error)
	Status(ctx context.Context) (postgres.MigrationStatus, error)
}

func run(ctx context.Context, m schemaMigrator, direction string, steps int) error {
	var (
		label string
		count int
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		label = "migrate up ok"
		count, err = m.Up(ctx, steps)
		if err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		label = "migrate down ok"
		count, err = m.Down(ctx, steps)
		if err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	case "status":
		label = "migration status"
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", direction)
	}

	status, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	if label == "migration status" {
		fmt.Printf("%s: version=%d applied=%d pending=%d\n", label, status.Version, status.Applied, status.Pending)
		return nil
	}
	fmt.Printf("%s: changed=%d version=%d applied=%d pending=%d\n", label, count, status.Version, status.Applied, status.Pending)
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
