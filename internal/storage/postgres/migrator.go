package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	migrationsDir     = "sql/migrations"
	migrationLockKey  = int64(20260314)
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	embeddedMigrations embed.FS

	migrationFileRe = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)
)

type migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

func (m migration) String() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// MigrationStatus — состояние схемы.
type MigrationStatus struct {
	Version int64
	Applied int
	Pending int
}

// Migrator применяет встроенные SQL-миграции под advisory lock.
type Migrator struct {
	db         *sql.DB
	migrations []migration
}

// NewMigrator читает встроенные миграции.
func NewMigrator(store *Store) (*Migrator, error) {
	if store == nil || store.db == nil {
		return nil, errors.New("postgres store is not initialized")
	}
	migrations, err := parseMigrations(embeddedMigrations)
	if err != nil {
		return nil, err
	}
	return &Migrator{db: store.db, migrations: migrations}, nil
}

// MigrateUp применяет все недостающие миграции.
func (s *Store) MigrateUp(ctx context.Context) error {
	m, err := NewMigrator(s)
	if err != nil {
		return err
	}
	_, err = m.Up(ctx, 0)
	return err
}

// Up применяет до steps миграций (0 — все) и возвращает число применённых.
func (m *Migrator) Up(ctx context.Context, steps int) (int, error) {
	applied := 0
	err := m.locked(ctx, func(conn *sql.Conn) error {
		done, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		for _, mg := range m.migrations {
			if done[mg.Version] {
				continue
			}
			if err := runMigration(ctx, conn, mg.Up,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mg.Version, mg.Name); err != nil {
				return fmt.Errorf("apply %s: %w", mg, err)
			}
			applied++
			if steps > 0 && applied >= steps {
				return nil
			}
		}
		return nil
	})
	return applied, err
}

// Down откатывает steps последних миграций; steps <= 0 означает один шаг.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}

	byVersion := make(map[int64]migration, len(m.migrations))
	for _, mg := range m.migrations {
		byVersion[mg.Version] = mg
	}

	reverted := 0
	err := m.locked(ctx, func(conn *sql.Conn) error {
		done, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		versions := make([]int64, 0, len(done))
		for v := range done {
			versions = append(versions, v)
		}
		slices.SortFunc(versions, func(a, b int64) int { return cmp.Compare(b, a) })

		for _, v := range versions {
			if reverted >= steps {
				return nil
			}
			mg, ok := byVersion[v]
			if !ok {
				return fmt.Errorf("cannot revert unknown migration version %d", v)
			}
			if err := runMigration(ctx, conn, mg.Down,
				`DELETE FROM schema_migrations WHERE version = $1`, mg.Version); err != nil {
				return fmt.Errorf("revert %s: %w", mg, err)
			}
			reverted++
		}
		return nil
	})
	return reverted, err
}

// Status возвращает текущую версию схемы и число применённых и ожидающих миграций.
func (m *Migrator) Status(ctx context.Context) (MigrationStatus, error) {
	var status MigrationStatus
	err := m.locked(ctx, func(conn *sql.Conn) error {
		done, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		for v := range done {
			status.Version = max(status.Version, v)
		}
		status.Applied = len(done)
		for _, mg := range m.migrations {
			if !done[mg.Version] {
				status.Pending++
			}
		}
		return nil
	})
	return status, err
}

func (m *Migrator) locked(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn)
}

// runMigration выполняет тело миграции и запись в schema_migrations одной транзакцией.
func runMigration(ctx context.Context, conn *sql.Conn, body, bookkeeping string, args ...any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		result[version] = true
	}
	return result, rows.Err()
}

// parseMigrations собирает пары NNNN_name.up.sql / NNNN_name.down.sql.
func parseMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		parts := migrationFileRe.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", entry.Name())
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version %s: %w", entry.Name(), err)
		}

		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", entry.Name())
		}

		mg, ok := byVersion[version]
		if !ok {
			mg = &migration{Version: version, Name: parts[2]}
			byVersion[version] = mg
		}
		if mg.Name != parts[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, mg.Name, parts[2])
		}

		target := &mg.Up
		if parts[3] == "down" {
			target = &mg.Down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = body
	}

	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, mg := range byVersion {
		if mg.Up == "" || mg.Down == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", mg)
		}
		migrations = append(migrations, *mg)
	}
	slices.SortFunc(migrations, func(a, b migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}
