package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (pgx)
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/tasklane/todo-api/internal/config"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DB is a migrated connection pool that knows which SQL dialect it speaks.
type DB struct {
	*sql.DB
	Dialect string
}

// Rebind rewrites a query written with ? placeholders for this connection.
func (db *DB) Rebind(query string) string {
	return Rebind(db.Dialect, query)
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Open connects to the configured database, pings it and runs migrations.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	log.Printf("[DB] Database type: %s", cfg.Type)

	var db *DB
	var err error

	switch cfg.Type {
	case "postgres", "pgx":
		db, err = openPostgreSQL(cfg)
	case "sqlite", "":
		db, err = openSQLiteFile(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a SQLite database from a raw DSN and migrates it. Tests
// use it with file:name?mode=memory&cache=shared.
func OpenSQLite(dsn string) (*DB, error) {
	if !strings.Contains(dsn, "_foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY
	// and keeps shared in-memory databases alive.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: sqlDB, Dialect: DialectSQLite}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies pending schema migrations.
func (db *DB) Migrate() error {
	ran, err := RunMigrations(db.DB, db.Dialect)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(ran) > 0 {
		log.Printf("[DB] Applied migrations %v", ran)
	}
	return nil
}

func openPostgreSQL(cfg config.DatabaseConfig) (*DB, error) {
	log.Printf("[DB] Host: %s, Port: %s, Database: %s, User: %s", cfg.Host, cfg.Port, cfg.Name, cfg.User)

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	// "pgx" selects the pgx stdlib driver, "postgres" selects lib/pq.
	driver := "postgres"
	if cfg.Type == "pgx" {
		driver = "pgx"
	}

	sqlDB, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: sqlDB, Dialect: DialectPostgres}, nil
}

func openSQLiteFile(path string) (*DB, error) {
	log.Printf("[DB] Opening SQLite database at path: %s", path)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: sqlDB, Dialect: DialectSQLite}, nil
}
