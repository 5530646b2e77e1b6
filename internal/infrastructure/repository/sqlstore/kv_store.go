package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
	"github.com/kirillkom/prashnly-client/internal/core/ports"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// KVStore keeps named string values, e.g. the session token, in one table.
type KVStore struct {
	db     *sql.DB
	driver string
}

var _ ports.KeyValueStore = (*KVStore)(nil)

func NewKVStore(db *sql.DB, driver string) *KVStore {
	return &KVStore{db: db, driver: driver}
}

// OpenDB opens and pings the database. For sqlite the dsn is a file path
// whose directory is created on demand.
func OpenDB(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported session driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *KVStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if s.driver == DriverPostgres {
		// Several clients may share one database.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	const query = `
CREATE TABLE IF NOT EXISTS client_values (
	slot_key TEXT PRIMARY KEY,
	slot_value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT slot_value FROM client_values WHERE slot_key = ?`), key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get value %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "set value", errors.New("key is empty"))
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO client_values (slot_key, slot_value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (slot_key) DO UPDATE SET slot_value = excluded.slot_value, updated_at = excluded.updated_at
`), key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set value %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM client_values WHERE slot_key = ?`), key); err != nil {
		return fmt.Errorf("delete value %s: %w", key, err)
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *KVStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
