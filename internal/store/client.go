// Package store is the persistence layer (C3): typed Postgres
// repositories over protocols, circuits, proofs, tasks, superproofs, and
// cost telemetry. It is the only place in the module that speaks SQL.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client wraps a pooled Postgres connection.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// Params configures the connection pool. MaxConns/MinConns mirror
// the teacher's DatabaseMaxConns/MinConns; idle/lifetime are seconds.
type Params struct {
	URL          string
	MaxConns     int
	MinConns     int
	MaxIdleTimeS int
	MaxLifetimeS int
}

// NewClient opens a pooled connection and verifies it with a ping.
func NewClient(p Params, opts ...ClientOption) (*Client, error) {
	if p.URL == "" {
		return nil, fmt.Errorf("store: database URL cannot be empty")
	}

	c := &Client{logger: log.New(log.Writer(), "[Store] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(c)
	}

	db, err := sql.Open("postgres", p.URL)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	db.SetMaxOpenConns(p.MaxConns)
	db.SetMaxIdleConns(p.MinConns)
	db.SetConnMaxIdleTime(time.Duration(p.MaxIdleTimeS) * time.Second)
	db.SetConnMaxLifetime(time.Duration(p.MaxLifetimeS) * time.Second)

	c.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	c.logger.Printf("connected to database (max_conns=%d, min_conns=%d)", p.MaxConns, p.MinConns)
	return c, nil
}

// DB returns the underlying *sql.DB for direct access by repositories.
func (c *Client) DB() *sql.DB { return c.db }

// Close closes the pool.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	c.logger.Println("closing database connection")
	return c.db.Close()
}

// Health returns connection-pool stats.
type Health struct {
	Healthy            bool
	Error              string
	OpenConnections    int
	InUse              int
	Idle               int
	MaxOpenConnections int
	CheckedAt          time.Time
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	h := &Health{CheckedAt: time.Now()}
	if err := c.db.PingContext(ctx); err != nil {
		h.Error = err.Error()
		return h, nil
	}
	stats := c.db.Stats()
	h.Healthy = true
	h.OpenConnections = stats.OpenConnections
	h.InUse = stats.InUse
	h.Idle = stats.Idle
	h.MaxOpenConnections = stats.MaxOpenConnections
	return h, nil
}

// Tx wraps a single database transaction.
type Tx struct {
	tx *sql.Tx
}

// BeginTx starts a transaction. Multi-row writes that must agree (e.g.
// marking every proof in a superproof Verified alongside the superproof
// itself going SubmittedOnchain) are issued through one Tx.
func (c *Client) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }
func (t *Tx) Raw() *sql.Tx    { return t.tx }

func (c *Client) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Client) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Client) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// ============================================================================
// MIGRATIONS
// ============================================================================

type Migration struct {
	Version string
	SQL     string
}

func (c *Client) MigrateUp(ctx context.Context) error {
	c.logger.Println("running database migrations...")

	migrations, err := c.loadMigrations()
	if err != nil {
		return fmt.Errorf("store: load migrations: %w", err)
	}

	applied, err := c.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("store: applied migrations: %w", err)
		}
		applied = make(map[string]bool)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			c.logger.Printf("  skipping %s (already applied)", m.Version)
			continue
		}
		c.logger.Printf("  applying %s...", m.Version)
		if err := c.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("store: apply migration %s: %w", m.Version, err)
		}
	}

	c.logger.Println("migrations complete")
	return nil
}

func (c *Client) loadMigrations() ([]Migration, error) {
	var migrations []Migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(d.Name(), ".sql"),
			SQL:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func (c *Client) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (c *Client) applyMigration(ctx context.Context, m Migration) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("execute migration SQL: %w", err)
	}
	return tx.Commit()
}
