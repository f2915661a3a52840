package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"quiz-forge/internal/logger"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrDirty means a previous migration failed halfway and needs manual repair.
var ErrDirty = errors.New("database is in a dirty migration state")

// Execer is the subset of *sql.DB the migrator needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Migrator applies golang-migrate style files (NNN_name.up.sql / .down.sql) to Oracle.
// Versions are tracked in schema_migrations with the same layout golang-migrate uses.
type Migrator struct {
	db  Execer
	src source.Driver
}

// NewMigrator reads migrations from fsys under path.
func NewMigrator(db Execer, fsys fs.FS, path string) (*Migrator, error) {
	src, err := iofs.New(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}
	return &Migrator{db: db, src: src}, nil
}

// NewEmbeddedMigrator uses the migrations compiled into the binary.
func NewEmbeddedMigrator(db Execer) (*Migrator, error) {
	return NewMigrator(db, migrationFiles, "migrations")
}

func (m *Migrator) Close() error {
	return m.src.Close()
}

// Version returns the applied version, 0 when nothing has been applied.
func (m *Migrator) Version(ctx context.Context) (uint, bool, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return 0, false, err
	}

	var version int64
	var dirty int
	err := m.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return uint(version), dirty == 1, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}
	if dirty {
		return 0, fmt.Errorf("%w (version %d)", ErrDirty, current)
	}

	applied := 0
	for {
		var next uint
		if current == 0 {
			next, err = m.src.First()
		} else {
			next, err = m.src.Next(current)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return applied, nil
		}
		if err != nil {
			return applied, fmt.Errorf("failed to find migration after %d: %w", current, err)
		}

		body, name, err := m.src.ReadUp(next)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %d: %w", next, err)
		}
		if err := m.apply(ctx, next, name, body, next); err != nil {
			return applied, err
		}
		current = next
		applied++
	}
}

// Down rolls back steps migrations, or all of them when steps <= 0.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}
	if dirty {
		return 0, fmt.Errorf("%w (version %d)", ErrDirty, current)
	}

	rolledBack := 0
	for current != 0 && (steps <= 0 || rolledBack < steps) {
		target := uint(0)
		prev, err := m.src.Prev(current)
		switch {
		case err == nil:
			target = prev
		case !errors.Is(err, fs.ErrNotExist):
			return rolledBack, fmt.Errorf("failed to find migration before %d: %w", current, err)
		}

		body, name, err := m.src.ReadDown(current)
		if err != nil {
			return rolledBack, fmt.Errorf("failed to read down migration %d: %w", current, err)
		}
		if err := m.apply(ctx, current, name, body, target); err != nil {
			return rolledBack, err
		}
		current = target
		rolledBack++
	}
	return rolledBack, nil
}

// apply marks version dirty, runs the file and records target as the new clean version.
func (m *Migrator) apply(ctx context.Context, version uint, name string, body io.ReadCloser, target uint) error {
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read migration %d: %w", version, err)
	}

	if err := m.setVersion(ctx, version, true); err != nil {
		return err
	}
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", version, name, err)
		}
	}
	if err := m.setVersion(ctx, target, false); err != nil {
		return err
	}

	logger.Get().Info("Applied migration",
		zap.Uint("version", version),
		zap.String("name", name),
		zap.Uint("schema_version", target),
	)
	return nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	var count int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_tables WHERE table_name = 'SCHEMA_MIGRATIONS'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to inspect schema_migrations: %w", err)
	}
	if count > 0 {
		return nil
	}
	if _, err := m.db.ExecContext(ctx,
		`CREATE TABLE schema_migrations (version NUMBER(19) NOT NULL, dirty NUMBER(1) NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) setVersion(ctx context.Context, version uint, dirty bool) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		return fmt.Errorf("failed to clear schema version: %w", err)
	}
	if version == 0 {
		return nil
	}
	flag := 0
	if dirty {
		flag = 1
	}
	if _, err := m.db.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, dirty) VALUES (:1, :2)`, int64(version), flag); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", version, err)
	}
	return nil
}

// splitStatements breaks a file on ";". Oracle drivers reject trailing semicolons
// and multiple statements per call.
func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			stmts = append(stmts, p)
		}
	}
	return stmts
}
