package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all database migrations for the given dialect
func GetMigrations(dialect string) []Migration {
	if dialect == DialectPostgres {
		return getPostgresMigrations()
	}
	return getSQLiteMigrations()
}

func getPostgresMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(50) NOT NULL,
				email VARCHAR(254) UNIQUE NOT NULL,
				password VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     2,
			Description: "Create todos table",
			SQL: `CREATE TABLE IF NOT EXISTS todos (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title VARCHAR(100) NOT NULL,
				description TEXT NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'todo' CHECK (status IN ('todo', 'in progress', 'done')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     3,
			Description: "Index todos by owner and status",
			SQL: `CREATE INDEX IF NOT EXISTS idx_todos_user_id ON todos(user_id);
				CREATE INDEX IF NOT EXISTS idx_todos_user_status ON todos(user_id, status)`,
		},
	}
}

func getSQLiteMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				email TEXT UNIQUE NOT NULL,
				password TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		{
			Version:     2,
			Description: "Create todos table",
			SQL: `CREATE TABLE IF NOT EXISTS todos (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'todo' CHECK (status IN ('todo', 'in progress', 'done')),
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
		},
		{
			Version:     3,
			Description: "Index todos by owner and status",
			SQL: `CREATE INDEX IF NOT EXISTS idx_todos_user_id ON todos(user_id);
				CREATE INDEX IF NOT EXISTS idx_todos_user_status ON todos(user_id, status)`,
		},
	}
}

// createMigrationsTable creates the migrations tracking table
func createMigrationsTable(db *sql.DB, dialect string) error {
	var query string
	if dialect == DialectPostgres {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`
	} else {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	}

	_, err := db.Exec(query)
	return err
}

// getAppliedMigrations returns the set of applied migration versions
func getAppliedMigrations(db *sql.DB) (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return applied, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return applied, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// RunMigrations applies every pending migration inside its own transaction
// and returns the versions it applied.
func RunMigrations(db *sql.DB, dialect string) ([]int, error) {
	if err := createMigrationsTable(db, dialect); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(db)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var ran []int
	for _, migration := range GetMigrations(dialect) {
		if applied[migration.Version] {
			continue
		}

		log.Printf("[DB] Applying migration %d: %s", migration.Version, migration.Description)
		if err := applyMigration(db, dialect, migration); err != nil {
			return ran, fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		ran = append(ran, migration.Version)
	}

	return ran, nil
}

func applyMigration(db *sql.DB, dialect string, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Split SQL by semicolon and execute each statement
	for _, stmt := range strings.Split(migration.SQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(Rebind(dialect, "INSERT INTO schema_migrations (version) VALUES (?)"), migration.Version); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
