// Package sqlite provides the embedded SQLite implementation of storage.Backend.
//
// SQLite is a single-file, zero-configuration database and is the default backend.
// The database runs in WAL mode so reads proceed while a write is in progress, and
// a busy timeout bounds how long any call can wait on a lock.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// Client implements storage.Backend using SQLite.
type Client struct {
	// db is the SQLite database connection pool.
	db *sql.DB

	// collectionName is the name of the table storing memories.
	collectionName string

	// writeMu serializes inserts so concurrent writers never contend on the file lock.
	writeMu sync.Mutex

	logger *zap.Logger
}

// Config contains configuration for creating a SQLite backend.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CollectionName is the name of the table to use.
	CollectionName string

	// BusyTimeout bounds how long a call waits for a locked database.
	// Default: 5s
	BusyTimeout time.Duration

	// Logger receives lifecycle logs. Optional.
	Logger *zap.Logger
}

// NewClient opens (creating if needed) the SQLite database at cfg.DBPath.
//
// Failures to create the directory or open the file are reported as
// storage.ErrUnavailable.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = storage.DefaultCollection
	}
	if err := storage.ValidateCollection(cfg.CollectionName); err != nil {
		return nil, storage.Wrap("NewSQLiteClient", storage.ErrOperation, err)
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, storage.Wrap("NewSQLiteClient", storage.ErrUnavailable, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		escapeURIPath(cfg.DBPath), cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storage.Wrap("NewSQLiteClient", storage.ErrUnavailable, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify("NewSQLiteClient", err, true)
	}

	client := &Client{
		db:             db,
		collectionName: cfg.CollectionName,
		logger:         logger.Named("sqlite"),
	}

	if err := client.initTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	client.logger.Info("opened embedded store",
		zap.String("path", cfg.DBPath),
		zap.String("collection", cfg.CollectionName))

	return client, nil
}

// initTables initializes the table and the (agent_id, created_at, id) index the
// engine's queries rely on.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			agent_id TEXT NOT NULL,
			content TEXT NOT NULL,
			content_type TEXT NOT NULL,
			importance INTEGER NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL,
			version TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return classify("initTables", err, true)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_agent_created ON %s(agent_id, created_at, id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return classify("initTables", err, true)
	}

	return nil
}

// Insert inserts a memory into the SQLite database.
//
// created_at is stored as Unix nanoseconds so range predicates compare integers.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) (int64, error) {
	keywords, err := storage.EncodeKeywords(memory.Keywords)
	if err != nil {
		return 0, storage.Wrap("Insert", storage.ErrOperation, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, agent_id, content, content_type, importance, source, keywords, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.collectionName)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.AgentID,
		memory.Content,
		memory.ContentType,
		memory.Importance,
		memory.Source,
		keywords,
		memory.Version,
		memory.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, classify("Insert", err, false)
	}

	c.logger.Debug("inserted memory", zap.Int64("id", memory.ID), zap.String("agent_id", memory.AgentID))

	return memory.ID, nil
}

// SelectByFilter returns an agent's memories created since opts.Since with
// importance >= opts.MinImportance, in insertion order.
func (c *Client) SelectByFilter(ctx context.Context, opts *storage.FilterOptions) ([]*storage.Memory, error) {
	whereClause, args := buildWhereClause(opts.AgentID, opts.Since, time.Time{}, opts.MinImportance)
	return c.selectMemories(ctx, "SelectByFilter", whereClause, args)
}

// SelectByTimeRange returns an agent's memories created in [opts.Start, opts.End).
func (c *Client) SelectByTimeRange(ctx context.Context, opts *storage.TimeRangeOptions) ([]*storage.Memory, error) {
	whereClause, args := buildWhereClause(opts.AgentID, opts.Start, opts.End, 0)
	return c.selectMemories(ctx, "SelectByTimeRange", whereClause, args)
}

func (c *Client) selectMemories(ctx context.Context, op, whereClause string, args []interface{}) ([]*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT id, agent_id, content, content_type, importance, source, keywords, version, created_at
		FROM %s
		%s
		ORDER BY created_at ASC, id ASC
	`, c.collectionName, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err, false)
	}
	defer func() { _ = rows.Close() }()

	memories := []*storage.Memory{}
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, storage.Wrap(op, storage.ErrOperation, err)
		}
		memories = append(memories, memory)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err, false)
	}

	return memories, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// scanMemory scans a memory from the current row.
func scanMemory(rows *sql.Rows) (*storage.Memory, error) {
	var memory storage.Memory
	var keywords string
	var createdAt int64

	if err := rows.Scan(
		&memory.ID,
		&memory.AgentID,
		&memory.Content,
		&memory.ContentType,
		&memory.Importance,
		&memory.Source,
		&keywords,
		&memory.Version,
		&createdAt,
	); err != nil {
		return nil, err
	}

	kw, err := storage.DecodeKeywords(keywords)
	if err != nil {
		return nil, err
	}
	memory.Keywords = kw
	memory.CreatedAt = time.Unix(0, createdAt).UTC()

	return &memory, nil
}

// classify maps SQLite result codes onto storage sentinels. Open-time failures
// (opening is true) are always reported as unavailable.
func classify(op string, err error, opening bool) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return storage.Wrap(op, storage.ErrTimeout, err)
		case sqlite3.ErrCantOpen, sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrFull,
			sqlite3.ErrIoErr, sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return storage.Wrap(op, storage.ErrUnavailable, err)
		}
	}
	if opening && !errors.Is(err, context.DeadlineExceeded) {
		return storage.Wrap(op, storage.ErrUnavailable, err)
	}
	return storage.Classify(op, err, nil)
}
