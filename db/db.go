package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNoDocument is returned by Load when nothing has been saved yet.
var ErrNoDocument = errors.New("document not found")

// Document is a single named blob of JSON that a store persists as a whole.
type Document interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, body []byte) error
	String() string
}

type dialect struct {
	sqlDriver   string
	createTable string
	selectBody  string
	upsert      string
}

var dialects = map[string]dialect{
	"mysql": {
		sqlDriver: "mysql",
		createTable: `
	CREATE TABLE IF NOT EXISTS documents (
		name VARCHAR(191) PRIMARY KEY,
		body LONGTEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);`,
		selectBody: "SELECT body FROM documents WHERE name = ?",
		upsert: `INSERT INTO documents (name, body) VALUES (?, ?)
	ON DUPLICATE KEY UPDATE body = VALUES(body)`,
	},
	"sqlite": {
		sqlDriver: "sqlite",
		createTable: `
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
		selectBody: "SELECT body FROM documents WHERE name = ?",
		upsert: `INSERT INTO documents (name, body) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = CURRENT_TIMESTAMP`,
	},
	"postgres": {
		sqlDriver: "pgx",
		createTable: `
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
		selectBody: "SELECT body FROM documents WHERE name = $1",
		upsert: `INSERT INTO documents (name, body) VALUES ($1, $2)
	ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
	},
}

// SQLStore keeps documents as rows of a single table in MySQL, PostgreSQL
// or SQLite.
type SQLStore struct {
	DB      *sql.DB
	driver  string
	dialect dialect
}

// OpenSQL connects to driver ("mysql", "postgres" or "sqlite") and makes
// sure the documents table exists.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	if driver == "sqlite" {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	conn, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if _, err := conn.ExecContext(ctx, d.createTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}

	return &SQLStore{DB: conn, driver: driver, dialect: d}, nil
}

// Document returns a handle on the row called name.
func (s *SQLStore) Document(name string) Document {
	return &sqlDocument{store: s, name: name}
}

func (s *SQLStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

type sqlDocument struct {
	store *SQLStore
	name  string
}

func (d *sqlDocument) Load(ctx context.Context) ([]byte, error) {
	var body string
	err := d.store.DB.QueryRowContext(ctx, d.store.dialect.selectBody, d.name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", d.name, err)
	}
	return []byte(body), nil
}

func (d *sqlDocument) Save(ctx context.Context, body []byte) error {
	if _, err := d.store.DB.ExecContext(ctx, d.store.dialect.upsert, d.name, string(body)); err != nil {
		return fmt.Errorf("upsert document %s: %w", d.name, err)
	}
	return nil
}

func (d *sqlDocument) String() string {
	return d.store.driver + ":" + d.name
}
