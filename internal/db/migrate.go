package db

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clearing/internal/logging"

	"github.com/jmoiron/sqlx"
)

const downMarker = "-- +migrate Down"

// Migrate applies every not yet recorded *.sql file in dir, in filename order.
// Each file runs in its own transaction together with its schema_migrations row.
func Migrate(ctx context.Context, database *sqlx.DB, dir string) ([]string, error) {
	if _, err := database.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		return nil, fmt.Errorf("db.Migrate: ensure schema_migrations: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("db.Migrate: %w", err)
	}
	sort.Strings(files)

	var applied []string
	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := database.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			return applied, fmt.Errorf("db.Migrate: read state: %w", err)
		}
		if exists {
			continue
		}
		up, _, err := readMigration(file)
		if err != nil {
			return applied, err
		}
		err = runOnce(ctx, database, func(tx *sqlx.Tx) error {
			for _, stmt := range SplitStatements(up) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, filename)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("db.Migrate: apply %s: %w", filename, err)
		}
		logging.FromContext(ctx).WithField("file", filename).Info("migration applied")
		applied = append(applied, filename)
	}
	return applied, nil
}

// Rollback runs the Down section of the most recently applied migration.
func Rollback(ctx context.Context, database *sqlx.DB, dir string) (string, error) {
	var filename string
	err := database.GetContext(ctx, &filename, `SELECT filename FROM schema_migrations ORDER BY filename DESC LIMIT 1`)
	if err != nil {
		return "", fmt.Errorf("db.Rollback: %w", err)
	}
	_, down, err := readMigration(filepath.Join(dir, filename))
	if err != nil {
		return "", err
	}
	err = runOnce(ctx, database, func(tx *sqlx.Tx) error {
		for _, stmt := range SplitStatements(down) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE filename = $1`, filename)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("db.Rollback: %s: %w", filename, err)
	}
	return filename, nil
}

func readMigration(path string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("db: read %s: %w", path, err)
	}
	sections := strings.SplitN(string(content), downMarker, 2)
	up := sections[0]
	down := ""
	if len(sections) == 2 {
		down = sections[1]
	}
	return up, down, nil
}

// SplitStatements breaks a migration section into statements ending at a line with a semicolon.
// Comment lines are dropped.
func SplitStatements(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Contains(line, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	out := statements[:0]
	for _, stmt := range statements {
		if strings.TrimSpace(stmt) != "" {
			out = append(out, stmt)
		}
	}
	return out
}
