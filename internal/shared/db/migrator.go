package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Migrator aplica os arquivos {versão}_{nome}.up.sql / .down.sql em ordem.
type Migrator struct {
	db  *sql.DB
	dir string
	log *zap.Logger
}

func NewMigrator(db *sql.DB, dir string, log *zap.Logger) *Migrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{db: db, dir: dir, log: log}
}

// Up aplica todas as migrações pendentes, cada uma na sua transação.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("get applied versions: %w", err)
	}
	files, err := m.files(".up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	for _, f := range files {
		version := versionOf(f)
		if applied[version] {
			continue
		}
		content, err := os.ReadFile(filepath.Join(m.dir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if err := m.exec(ctx, string(content),
			`INSERT INTO schema_migrations (version, filename) VALUES ($1, $2)`, version, f); err != nil {
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
		m.log.Info("migration applied", zap.String("file", f))
	}
	return nil
}

// Down desfaz a última migração aplicada.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	var version, filename string
	err := m.db.QueryRowContext(ctx,
		`SELECT version, filename FROM schema_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&version, &filename)
	if err == sql.ErrNoRows {
		m.log.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get latest migration: %w", err)
	}

	down := strings.Replace(filename, ".up.sql", ".down.sql", 1)
	content, err := os.ReadFile(filepath.Join(m.dir, down))
	if err != nil {
		return fmt.Errorf("read down migration %s: %w", down, err)
	}
	if err := m.exec(ctx, string(content),
		`DELETE FROM schema_migrations WHERE version = $1`, version); err != nil {
		return fmt.Errorf("roll back %s: %w", down, err)
	}
	m.log.Info("migration rolled back", zap.String("file", down))
	return nil
}

func (m *Migrator) exec(ctx context.Context, script, record string, args ...any) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (m *Migrator) files(suffix string) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// versionOf extrai o prefixo numérico: "000001_escrow.up.sql" -> "000001"
func versionOf(filename string) string {
	return strings.SplitN(filename, "_", 2)[0]
}
