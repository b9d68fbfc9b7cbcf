// Package oceanbase provides the OceanBase implementation of storage.Backend.
//
// OceanBase speaks the MySQL wire protocol, so the client also works against
// MySQL 5.7+ and compatible servers.
package oceanbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// MySQL server error numbers signalling rejected credentials.
const (
	errAccessDenied         = 1045
	errDBAccessDenied       = 1044
	errAccessDeniedNoPasswd = 1698
)

// Client is an OceanBase memory backend.
type Client struct {
	db             *sql.DB
	collectionName string
	logger         *zap.Logger
}

// Config contains OceanBase configuration.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	CollectionName string

	// ConnectTimeout bounds connection establishment. Default: 10s
	ConnectTimeout time.Duration

	Logger *zap.Logger
}

// NewClient connects to OceanBase and creates the memory table if needed.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.CollectionName == "" {
		cfg.CollectionName = storage.DefaultCollection
	}
	if err := storage.ValidateCollection(cfg.CollectionName); err != nil {
		return nil, storage.Wrap("NewOceanBaseClient", storage.ErrOperation, err)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("mysql", buildDSN(cfg))
	if err != nil {
		return nil, storage.Wrap("NewOceanBaseClient", storage.ErrUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, classify("NewOceanBaseClient", err)
	}

	client := &Client{
		db:             db,
		collectionName: cfg.CollectionName,
		logger:         logger.Named("oceanbase"),
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

// buildDSN renders the driver DSN. Times are read and written in UTC.
func buildDSN(cfg *Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = cfg.ConnectTimeout
	return mc.FormatDSN()
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, createTableSQL(c.collectionName)); err != nil {
		return classify("initTables", err)
	}

	return nil
}

// createTableSQL returns the table DDL. agent_id is VARBINARY so lookups
// compare bytes exactly, with no case folding or trailing-space padding.
// 1020 bytes holds storage.MaxAgentIDLength runes of utf8mb4.
func createTableSQL(collection string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			agent_id VARBINARY(1020) NOT NULL,
			content LONGTEXT NOT NULL,
			content_type VARCHAR(%d) NOT NULL,
			importance TINYINT NOT NULL,
			source TEXT NOT NULL,
			keywords JSON NOT NULL,
			version TEXT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_agent_created (agent_id, created_at, id)
		)
	`, collection, storage.MaxContentTypeLength)
}

// Insert inserts a memory.
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

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.AgentID,
		memory.Content,
		memory.ContentType,
		memory.Importance,
		memory.Source,
		keywords,
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
		var keywords []byte
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
		kw, err := storage.DecodeKeywords(string(keywords))
		if err != nil {
			return nil, storage.Wrap(op, storage.ErrOperation, err)
		}
		memory.Keywords = kw
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

// classify maps MySQL protocol errors onto storage sentinels.
func classify(op string, err error) error {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return storage.Wrap(op, storage.ErrUnavailable, err)
	}
	return storage.Classify(op, err, isAuthError)
}

func isAuthError(err error) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	switch myErr.Number {
	case errAccessDenied, errDBAccessDenied, errAccessDeniedNoPasswd:
		return true
	}
	return false
}
