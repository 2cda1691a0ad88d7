// Package pgdriver is the advisor's SQL Driver adapter (§4.1): it opens a
// single database session via pgx's database/sql compatibility layer,
// executes parameterized queries under either a read-only or a mutation
// transaction, and tracks pool validity the way
// internal/mysql/connection.go tracked a MySQL *sql.DB for the teacher
// repo. Going through database/sql rather than pgxpool directly is what
// lets the test suite drive it with go-sqlmock, the same approach the
// teacher's own test suite takes for MySQL.
package pgdriver

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"
)

// ConnectionConfig holds everything needed to open a pool against one
// Postgres database.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // disable, prefer, require, verify-ca, verify-full
}

func (c ConnectionConfig) dsn() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database, sslmode)
}

var passwordRe = regexp.MustCompile(`://([^:@]+):([^@]*)@`)

// ObfuscateDSN redacts the password component of a DSN before it is ever
// logged or included in an error message — carried over from
// sql_driver.py's obfuscate_password.
func ObfuscateDSN(dsn string) string {
	return passwordRe.ReplaceAllString(dsn, "://$1:***@")
}

// Connect opens a pool sized conservatively for a single analysis
// session — a handful of connections is plenty, the same instinct behind
// the teacher's SetMaxOpenConns(2) for a single dbsafe invocation.
func Connect(ctx context.Context, cfg ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening connection to %s: %w", ObfuscateDSN(cfg.dsn()), err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return db, nil
}

// PromptPassword reads a password from the terminal without echoing it,
// carried over from internal/mysql/connection.go's PromptPassword.
func PromptPassword() string {
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(pw)
}
