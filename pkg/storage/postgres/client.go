// Package postgres provides the PostgreSQL implementation of storage.Backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// Client is a PostgreSQL memory backend.
type Client struct {
	db             *sql.DB
	collectionName string
	logger         *zap.Logger
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	CollectionName string
	SSLMode        string

	// ConnectTimeout bounds connection establishment. Default: 10s
	ConnectTimeout time.Duration

	Logger *zap.Logger
}

// NewClient connects to PostgreSQL and creates the memory table if needed.
//
// Rejected credentials are reported as storage.ErrAuthentication, unreachable
// servers as storage.ErrUnavailable.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = storage.DefaultCollection
	}
	if err := storage.ValidateCollection(cfg.CollectionName); err != nil {
		return nil, storage.Wrap("NewPostgresClient", storage.ErrOperation, err)
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.User, quoteValue(cfg.Password), cfg.DBName, sslMode,
		int(cfg.ConnectTimeout.Seconds()))

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, storage.Wrap("NewPostgresClient", storage.ErrUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, classify("NewPostgresClient", err)
	}

	client := &Client{
		db:             db,
		collectionName: cfg.CollectionName,
		logger:         logger.Named("postgres"),
	}

	if err := client.initTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	client.logger.Info("connected to remote store",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.CollectionName))

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			content TEXT NOT NULL,
			content_type TEXT NOT NULL,
			importance SMALLINT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			keywords TEXT[] NOT NULL,
			version TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return classify("initTables: create table", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_agent_created ON %s(agent_id, created_at, id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return classify("initTables: create index", err)
	}

	return nil
}

// Insert inserts a memory.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, agent_id, content, content_type, importance, source, keywords, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.collectionName)

	keywords := memory.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	_, err := c.db.ExecContext(ctx, query,
		memory.ID,
		memory.AgentID,
		memory.Content,
		memory.ContentType,
		memory.Importance,
		memory.Source,
		pq.Array(keywords),
		memory.Version,
		memory.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, classify("Insert", err)
	}

	return memory.ID, nil
}

// SelectByFilter returns an agent's memories created since opts.Since with
// importance >= opts.MinImportance.
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
		return nil, classify(op, err)
	}
	defer func() { _ = rows.Close() }()

	memories := []*storage.Memory{}
	for rows.Next() {
		var memory storage.Memory
		var keywords pq.StringArray
		if err := rows.Scan(
			&memory.ID,
			&memory.AgentID,
			&memory.Content,
			&memory.ContentType,
			&memory.Importance,
			&memory.Source,
			&keywords,
			&memory.Version,
			&memory.CreatedAt,
		); err != nil {
			return nil, storage.Wrap(op, storage.ErrOperation, err)
		}
		memory.Keywords = []string(keywords)
		memory.CreatedAt = memory.CreatedAt.UTC()
		memories = append(memories, &memory)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
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

// classify maps PostgreSQL errors onto storage sentinels.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return storage.Wrap(op, storage.ErrUnavailable, err)
	}
	if errors.As(err, &pqErr) && pqErr.Code == "57014" {
		return storage.Wrap(op, storage.ErrTimeout, err)
	}
	return storage.Classify(op, err, isAuthError)
}

// isAuthError reports SQLSTATE class 28 (invalid authorization specification).
func isAuthError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Class() == "28"
}
