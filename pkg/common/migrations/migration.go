package migrations

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// RunMigrations applies all .sql files in the directory, in name order,
// tracking applied versions in a schema_migrations table.
func RunMigrations(db *sql.DB, migrationsDir string) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return errors.Wrap(err, "creating schema_migrations table")
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return errors.Wrap(err, "reading migrations directory")
	}

	var sqlFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			sqlFiles = append(sqlFiles, e.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, file := range sqlFiles {
		version := strings.TrimSuffix(file, ".sql")

		var exists int
		if err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = $1", version).Scan(&exists); err == nil {
			continue
		}

		log.Printf("Applying migration: %s", file)
		content, err := os.ReadFile(filepath.Join(migrationsDir, file))
		if err != nil {
			return errors.Wrapf(err, "reading migration %s", file)
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrap(err, "beginning transaction")
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "executing migration %s", file)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "recording migration %s", file)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "committing migration %s", file)
		}
	}

	return nil
}
