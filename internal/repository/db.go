package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "repository").Logger()

// MySQLParams addresses one MySQL storage shard.
type MySQLParams struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

func (p MySQLParams) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", p.User, p.Pass, p.Host, p.Port, p.Name)
}

// OpenMySQL connects to a shard, retrying while the server comes up.
func OpenMySQL(p MySQLParams, retries int) (*sql.DB, error) {
	if retries < 1 {
		retries = 1
	}

	var db *sql.DB
	var err error
	for i := 0; i < retries; i++ {
		db, err = sql.Open("mysql", p.DSN())
		if err == nil {
			err = db.Ping()
			if err == nil {
				logger.Info().Msgf("Connected to DB %s", p.Name)
				return db, nil
			}
			db.Close()
		}
		logger.Warn().Err(err).Msgf("Retry %d: failed to connect to DB %s (%s:%s)", i+1, p.Name, p.Host, p.Port)
		if i < retries-1 {
			time.Sleep(3 * time.Second)
		}
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %w", p.Name, p.Host, p.Port, err)
}

// OpenSQLite opens or creates a SQLite database file.
// Writes take the database lock at BEGIN so read-modify-write transactions
// never interleave, and the pool holds a single connection. Commits are
// fsynced before they return. Settings live in the DSN so every connection
// the pool opens carries them.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// SQLiteDSN builds the go-sqlite3 connection string for path.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_txlock=immediate&_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"
}
