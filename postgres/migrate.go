package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/interview"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createMigrationsTableSQL = `
CREATE TABLE IF NOT EXISTS interview_migrations (
	id         SERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	checksum   TEXT NOT NULL
);`

type migration struct {
	Name     string
	Up       string
	Down     string
	Checksum string
}

type appliedMigration struct {
	ID        int
	AppliedAt time.Time
	Checksum  string
}

// loadMigrations pairs NAME.up.sql with NAME.down.sql under dir, sorted by name.
// The checksum covers the up script only.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byName := make(map[string]*migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var key string
		var up bool
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			key, up = strings.TrimSuffix(name, ".up.sql"), true
		case strings.HasSuffix(name, ".down.sql"):
			key = strings.TrimSuffix(name, ".down.sql")
		default:
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		m, ok := byName[key]
		if !ok {
			m = &migration{Name: key}
			byName[key] = m
		}
		if up {
			m.Up = string(data)
			m.Checksum = fmt.Sprintf("%x", sha256.Sum256(data))
		} else {
			m.Down = string(data)
		}
	}

	migrations := make([]migration, 0, len(byName))
	for _, m := range byName {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has no up script", m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Name < migrations[j].Name
	})
	return migrations, nil
}

func (s *PGStore) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.Exec(ctx, createMigrationsTableSQL)
	return err
}

func (s *PGStore) appliedMigrations(ctx context.Context) (map[string]appliedMigration, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, applied_at, checksum FROM interview_migrations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]appliedMigration)
	for rows.Next() {
		var (
			name string
			rec  appliedMigration
		)
		if err := rows.Scan(&rec.ID, &name, &rec.AppliedAt, &rec.Checksum); err != nil {
			return nil, err
		}
		applied[name] = rec
	}
	return applied, rows.Err()
}

// prepare ensures the tracking table and loads both sides of the comparison.
func (s *PGStore) prepare(ctx context.Context) ([]migration, map[string]appliedMigration, error) {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return nil, nil, fmt.Errorf("interview: ensure migrations table: %w", err)
	}
	migrations, err := loadMigrations(migrationsFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("interview: load migrations: %w", err)
	}
	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("interview: get applied migrations: %w", err)
	}
	return migrations, applied, nil
}

// Migrate applies all pending migrations in order, one transaction each.
// An applied migration whose checksum changed aborts the run.
func (s *PGStore) Migrate(ctx context.Context) error {
	migrations, applied, err := s.prepare(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if rec, ok := applied[m.Name]; ok {
			if rec.Checksum != m.Checksum {
				return fmt.Errorf("interview: migration %s checksum mismatch (recorded %s, embedded %s)", m.Name, rec.Checksum, m.Checksum)
			}
			continue
		}
		err := s.inTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO interview_migrations (name, checksum) VALUES ($1, $2)`, m.Name, m.Checksum); err != nil {
				return fmt.Errorf("record: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("interview: migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (s *PGStore) Rollback(ctx context.Context) error {
	migrations, _, err := s.prepare(ctx)
	if err != nil {
		return err
	}

	var (
		lastID   int
		lastName string
	)
	err = s.db.QueryRow(ctx, `SELECT id, name FROM interview_migrations ORDER BY id DESC LIMIT 1`).Scan(&lastID, &lastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("interview: no applied migrations to roll back")
	}
	if err != nil {
		return fmt.Errorf("interview: get last migration: %w", err)
	}

	var downSQL string
	for _, m := range migrations {
		if m.Name == lastName {
			downSQL = m.Down
			break
		}
	}
	if downSQL == "" {
		return fmt.Errorf("interview: no down migration for %s", lastName)
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, downSQL); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM interview_migrations WHERE id = $1`, lastID); err != nil {
			return fmt.Errorf("remove record: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("interview: rollback %s: %w", lastName, err)
	}
	return nil
}

// MigrationStatus lists every embedded migration with its applied state.
func (s *PGStore) MigrationStatus(ctx context.Context) ([]interview.MigrationRecord, error) {
	migrations, applied, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}
	return migrationStatus(migrations, applied), nil
}

func migrationStatus(migrations []migration, applied map[string]appliedMigration) []interview.MigrationRecord {
	records := make([]interview.MigrationRecord, 0, len(migrations))
	for _, m := range migrations {
		rec := interview.MigrationRecord{Name: m.Name}
		if a, ok := applied[m.Name]; ok {
			t := a.AppliedAt
			rec.Applied = true
			rec.AppliedAt = &t
			rec.Checksum = a.Checksum
		}
		records = append(records, rec)
	}
	return records
}

func (s *PGStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
