package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/fluxspace/spacesync/internal/hierarchy"
)

const (
	postgresSnapshotTable    = "spacesync_snapshot"
	postgresOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresSnapshotStore keeps the private-space snapshot in a single
// keyed row. The table is created lazily on first use.
type PostgresSnapshotStore struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresSnapshotStore(dsn string) (*PostgresSnapshotStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, hierarchy.ErrInvalidInput
	}
	return &PostgresSnapshotStore{
		dsn:       dsn,
		tableName: postgresSnapshotTable,
		openDB:    sql.Open,
	}, nil
}

func (s *PostgresSnapshotStore) Load(ctx context.Context) (*hierarchy.SpaceTree, error) {
	if s == nil {
		return nil, nil
	}
	if err := s.ensureReady(); err != nil {
		return nil, &hierarchy.PersistenceError{Op: "read", Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT snapshot FROM %s WHERE state_key = $1", postgresQuoteIdentifier(s.tableName))
	var payload string
	err := s.db.QueryRowContext(ctx, query, snapshotKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &hierarchy.PersistenceError{Op: "read", Err: err}
	}
	return decodeSnapshot([]byte(payload))
}

func (s *PostgresSnapshotStore) Save(ctx context.Context, tree *hierarchy.SpaceTree) error {
	if s == nil || tree == nil {
		return nil
	}
	if err := s.ensureReady(); err != nil {
		return &hierarchy.PersistenceError{Op: "write", Err: err}
	}
	data, err := encodeSnapshot(tree)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (state_key, snapshot, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (state_key)
		DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = NOW()`, postgresQuoteIdentifier(s.tableName))
	if _, err := s.db.ExecContext(ctx, query, snapshotKey, string(data)); err != nil {
		return &hierarchy.PersistenceError{Op: "write", Err: err}
	}
	return nil
}

func (s *PostgresSnapshotStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresSnapshotStore) ensureReady() error {
	if s == nil {
		return hierarchy.ErrInvalidInput
	}
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				state_key TEXT PRIMARY KEY,
				snapshot TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, postgresQuoteIdentifier(s.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			s.initErr = err
			return
		}
		s.db = db
	})
	return s.initErr
}

func postgresQuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
