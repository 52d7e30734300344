package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// openIntegrationStore подключается к STOREFRONT_POSTGRES_TEST_DSN и накатывает миграции.
// Без переменной окружения тест пропускается.
func openIntegrationStore(t *testing.T) *Store {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("STOREFRONT_POSTGRES_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.MigrateUp(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `TRUNCATE TABLE documents, idempotency_keys`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return store
}
