package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/lugx/beacon/internal/collector/events"
)

const DefaultTable = "web_analytics"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Conn is the part of a ClickHouse connection the store needs.
// clickhouse-go's driver.Conn satisfies it.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Ping(ctx context.Context) error
	Close() error
}

var _ Conn = (driver.Conn)(nil)

// ClickHouseOptions describes how to reach the analytics database
type ClickHouseOptions struct {
	Addr        []string
	Database    string
	Username    string
	Password    string
	Secure      bool
	DialTimeout time.Duration
	Table       string
}

// ClickHouseStore writes events into the web_analytics table
type ClickHouseStore struct {
	conn   Conn
	table  string
	logger *zap.Logger
}

// OpenClickHouse connects, pings and creates the events table if missing
func OpenClickHouse(ctx context.Context, opts ClickHouseOptions, logger *zap.Logger) (*ClickHouseStore, error) {
	if len(opts.Addr) == 0 {
		return nil, fmt.Errorf("%w: no address configured", ErrStorageUnavailable)
	}

	chOpts := &clickhouse.Options{
		Addr: opts.Addr,
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: opts.DialTimeout,
	}
	if opts.Secure {
		chOpts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	store, err := NewClickHouseStore(conn, opts.Table, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := store.EnsureTable(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("ClickHouse store ready",
		zap.Strings("addr", opts.Addr),
		zap.String("table", store.table),
		zap.Bool("secure", opts.Secure))
	return store, nil
}

// NewClickHouseStore wraps an open connection. An empty table uses web_analytics.
func NewClickHouseStore(conn Conn, table string, logger *zap.Logger) (*ClickHouseStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &ClickHouseStore{conn: conn, table: table, logger: logger}, nil
}

// Table returns the fully qualified table name events are written to
func (s *ClickHouseStore) Table() string {
	return s.table
}

// EnsureTable issues CREATE TABLE IF NOT EXISTS
func (s *ClickHouseStore) EnsureTable(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createTableQuery(s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *ClickHouseStore) Insert(ctx context.Context, event *events.TrackedEvent) error {
	err := s.conn.Exec(ctx, insertQuery(s.table),
		event.ID,
		event.EventType,
		event.PageURL,
		event.UserAgent,
		event.Timestamp,
	)
	if err != nil {
		s.logger.Error("Insert failed",
			zap.String("request_id", event.RequestID),
			zap.String("table", s.table),
			zap.Error(err))
		return fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	return nil
}

func (s *ClickHouseStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

func createTableQuery(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
    id UUID DEFAULT generateUUIDv4(),
    event_type String,
    page_url String,
    user_agent String,
    timestamp DateTime DEFAULT now()
) ENGINE = MergeTree()
ORDER BY (timestamp)`
}

func insertQuery(table string) string {
	return "INSERT INTO " + table + " (id, event_type, page_url, user_agent, timestamp) VALUES (?, ?, ?, ?, ?)"
}
