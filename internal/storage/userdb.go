package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// UserDB is one user's ledger database file.
type UserDB struct {
	db       *sql.DB
	path     string
	expenses *SQLiteLedger
	income   *SQLiteLedger
}

var _ Ledgers = (*UserDB)(nil)

// UserDBPath derives the per-user database file from the user's email.
// The readable prefix is sanitized; the hash suffix keeps distinct emails
// from colliding after sanitization.
func UserDBPath(dataDir, email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_', r == '@':
			return r
		default:
			return '_'
		}
	}, email)
	if len(safe) > 64 {
		safe = safe[:64]
	}
	sum := sha256.Sum256([]byte(email))
	return filepath.Join(dataDir, "users", safe+"-"+hex.EncodeToString(sum[:4])+".db")
}

// OpenSQLite opens a SQLite database, creating its directory and applying
// the given migration set.
func OpenSQLite(dbPath, migrations string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer per file; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// OpenUserDB opens (creating if needed) the ledger database at dbPath.
func OpenUserDB(dbPath string) (*UserDB, error) {
	db, err := OpenSQLite(dbPath, LedgerMigrations)
	if err != nil {
		return nil, err
	}
	return &UserDB{
		db:       db,
		path:     dbPath,
		expenses: newSQLiteLedger(db, core.KindExpense),
		income:   newSQLiteLedger(db, core.KindIncome),
	}, nil
}

func (u *UserDB) Expenses() Ledger { return u.expenses }

func (u *UserDB) Income() Ledger { return u.income }

// Path returns the database file path.
func (u *UserDB) Path() string { return u.path }

func (u *UserDB) Close() error {
	if u.db != nil {
		return u.db.Close()
	}
	return nil
}
