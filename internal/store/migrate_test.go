package store

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)

	var versionSets []map[string]bool
	for _, dialect := range []Dialect{DialectPostgres, DialectSQLite} {
		files, err := Migrations(dialect)
		if err != nil {
			t.Fatalf("migrations for %s: %v", dialect, err)
		}
		entries, err := fs.ReadDir(files, ".")
		if err != nil {
			t.Fatalf("read migrations dir: %v", err)
		}

		byVersion := map[string]map[string]bool{}
		for _, entry := range entries {
			match := pattern.FindStringSubmatch(entry.Name())
			if match == nil {
				continue
			}
			version, direction := match[1], match[2]
			if byVersion[version] == nil {
				byVersion[version] = map[string]bool{}
			}
			byVersion[version][direction] = true
		}
		if len(byVersion) == 0 {
			t.Fatalf("no %s migrations discovered", dialect)
		}
		versions := map[string]bool{}
		for version, dirs := range byVersion {
			if !dirs["up"] || !dirs["down"] {
				t.Fatalf("%s version %s must include both up and down files", dialect, version)
			}
			versions[version] = true
		}
		versionSets = append(versionSets, versions)
	}

	// Both dialects must describe the same schema history.
	for version := range versionSets[0] {
		if !versionSets[1][version] {
			t.Fatalf("version %s exists for postgres but not sqlite", version)
		}
	}
	if len(versionSets[0]) != len(versionSets[1]) {
		t.Fatal("dialects disagree on migration versions")
	}
}

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrationsRoundTripSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	if db.Dialect != DialectSQLite {
		t.Fatalf("dialect = %s", db.Dialect)
	}
	assertRoundTrip(t, ctx, db)
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("CONTENTSYNC_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("CONTENTSYNC_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := Open(ctx, "pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	if err := resetPublicSchema(ctx, db.DB); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	assertRoundTrip(t, ctx, db)
}

func assertRoundTrip(t *testing.T, ctx context.Context, db *DB) {
	t.Helper()
	applied, err := ApplyMigrations(ctx, db)
	if err != nil {
		t.Fatalf("apply up migrations (pass 1): %v", err)
	}
	if len(applied) == 0 {
		t.Fatal("expected migrations to be applied")
	}

	again, err := ApplyMigrations(ctx, db)
	if err != nil {
		t.Fatalf("re-apply up migrations: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("re-apply should be a no-op, applied %v", again)
	}

	reverted, err := RevertMigrations(ctx, db)
	if err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}
	if len(reverted) != len(applied) {
		t.Fatalf("reverted %d migrations, want %d", len(reverted), len(applied))
	}

	if _, err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply up migrations (pass 2): %v", err)
	}
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}
