package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseMigrations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
		want    []string
	}{
		{
			name: "sorted pairs",
			files: fstest.MapFS{
				"sql/migrations/0002_more.up.sql":   {Data: []byte("CREATE TABLE b (id INT);")},
				"sql/migrations/0002_more.down.sql": {Data: []byte("DROP TABLE b;")},
				"sql/migrations/0001_init.up.sql":   {Data: []byte("CREATE TABLE a (id INT);")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE a;")},
				"sql/migrations/README.md":          {Data: []byte("ignored")},
			},
			want: []string{"0001_init", "0002_more"},
		},
		{
			name: "missing down",
			files: fstest.MapFS{
				"sql/migrations/0001_init.up.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "both up and down",
		},
		{
			name: "invalid name",
			files: fstest.MapFS{
				"sql/migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "invalid migration file name",
		},
		{
			name: "empty body",
			files: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   {Data: []byte("  \n")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "empty",
		},
		{
			name: "conflicting names",
			files: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    {Data: []byte("SELECT 1;")},
				"sql/migrations/0001_other.down.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "conflicting names",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			migrations, err := parseMigrations(tt.files)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMigrations: %v", err)
			}
			if len(migrations) != len(tt.want) {
				t.Fatalf("got %d migrations, want %d", len(migrations), len(tt.want))
			}
			for i, name := range tt.want {
				if migrations[i].String() != name {
					t.Fatalf("migration %d = %s, want %s", i, migrations[i], name)
				}
			}
		})
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	t.Parallel()

	migrations, err := parseMigrations(embeddedMigrations)
	if err != nil {
		t.Fatalf("embedded migrations: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 embedded migrations, got %d", len(migrations))
	}
}
