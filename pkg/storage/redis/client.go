// Package redis provides a Redis implementation of storage.Backend.
//
// Each memory is stored as a JSON string under <prefix>:mem:<id>. Per-agent
// sorted sets scored by creation time (Unix microseconds) index the records,
// so time-window predicates are ZRANGEBYSCORE calls.
package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// Config configures the Redis connection.
type Config struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0").
	URL string

	// Username and Password override credentials embedded in URL when set.
	Username string
	Password string

	// KeyPrefix namespaces every key. Default: "memories"
	KeyPrefix string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	Logger *zap.Logger
}

// Client implements storage.Backend using go-redis/v9.
type Client struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// record is the JSON document stored per memory.
type record struct {
	ID          int64     `json:"id"`
	AgentID     string    `json:"agent_id"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Importance  int       `json:"importance"`
	Source      string    `json:"source,omitempty"`
	Keywords    []string  `json:"keywords"`
	Version     string    `json:"version,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewClient creates a new Redis backend and verifies the connection.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = "redis://localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = storage.DefaultCollection
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	redisOpts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, storage.Wrap("NewRedisClient", storage.ErrOperation, fmt.Errorf("parse Redis URL: %w", err))
	}

	if cfg.Username != "" {
		redisOpts.Username = cfg.Username
	}
	if cfg.Password != "" {
		redisOpts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		redisOpts.TLSConfig = cfg.TLS
	}
	redisOpts.DialTimeout = cfg.ConnectTimeout
	redisOpts.ReadTimeout = cfg.ReadTimeout
	redisOpts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, classify("NewRedisClient", err)
	}

	c := &Client{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: logger.Named("redis"),
	}
	c.logger.Info("connected to remote store",
		zap.String("addr", redisOpts.Addr),
		zap.String("prefix", cfg.KeyPrefix))

	return c, nil
}

// Insert stores the record and its index entries in one MULTI/EXEC transaction.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) (int64, error) {
	data, err := json.Marshal(toRecord(memory))
	if err != nil {
		return 0, storage.Wrap("Insert", storage.ErrOperation, fmt.Errorf("marshal memory: %w", err))
	}

	member := redis.Z{
		Score:  float64(memory.CreatedAt.UnixMicro()),
		Member: memberFor(memory.ID),
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.memoryKey(memory.ID), data, 0)
		pipe.ZAdd(ctx, c.agentKey(memory.AgentID), member)
		pipe.ZAdd(ctx, c.allKey(), member)
		return nil
	})
	if err != nil {
		return 0, classify("Insert", err)
	}

	return memory.ID, nil
}

// SelectByFilter returns an agent's memories created since opts.Since with
// importance >= opts.MinImportance. Importance is filtered after loading.
func (c *Client) SelectByFilter(ctx context.Context, opts *storage.FilterOptions) ([]*storage.Memory, error) {
	lo := "-inf"
	if !opts.Since.IsZero() {
		lo = strconv.FormatInt(opts.Since.UnixMicro(), 10)
	}

	memories, err := c.loadRange(ctx, opts.AgentID, lo, "+inf")
	if err != nil {
		return nil, classify("SelectByFilter", err)
	}

	filtered := make([]*storage.Memory, 0, len(memories))
	for _, m := range memories {
		if opts.Matches(m) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// SelectByTimeRange returns an agent's memories created in [opts.Start, opts.End).
func (c *Client) SelectByTimeRange(ctx context.Context, opts *storage.TimeRangeOptions) ([]*storage.Memory, error) {
	lo := "-inf"
	if !opts.Start.IsZero() {
		lo = strconv.FormatInt(opts.Start.UnixMicro(), 10)
	}
	hi := "+inf"
	if !opts.End.IsZero() {
		hi = "(" + strconv.FormatInt(opts.End.UnixMicro(), 10)
	}

	memories, err := c.loadRange(ctx, opts.AgentID, lo, hi)
	if err != nil {
		return nil, classify("SelectByTimeRange", err)
	}

	filtered := make([]*storage.Memory, 0, len(memories))
	for _, m := range memories {
		if opts.Contains(m.CreatedAt) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// loadRange reads index members by score and fetches their records.
// Members sharing a score come back in lexical order, which for the
// zero-padded IDs is insertion order.
func (c *Client) loadRange(ctx context.Context, agentID, lo, hi string) ([]*storage.Memory, error) {
	indexKey := c.allKey()
	if agentID != "" {
		indexKey = c.agentKey(agentID)
	}

	members, err := c.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{Min: lo, Max: hi}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []*storage.Memory{}, nil
	}

	keys := make([]string, len(members))
	for i, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid index member %q: %w", member, err)
		}
		keys[i] = c.memoryKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	memories := make([]*storage.Memory, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Index entry without a record: the record was removed out of band.
			c.logger.Debug("dangling index entry", zap.String("key", keys[i]))
			continue
		}
		var r record
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", keys[i], err)
		}
		memories = append(memories, r.toMemory())
	}

	return memories, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) memoryKey(id int64) string {
	return fmt.Sprintf("%s:mem:%d", c.prefix, id)
}

func (c *Client) agentKey(agentID string) string {
	return fmt.Sprintf("%s:agent:%s", c.prefix, agentID)
}

func (c *Client) allKey() string {
	return c.prefix + ":all"
}

// memberFor zero-pads IDs so lexical order equals numeric order.
func memberFor(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func toRecord(m *storage.Memory) *record {
	keywords := m.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return &record{
		ID:          m.ID,
		AgentID:     m.AgentID,
		Content:     m.Content,
		ContentType: m.ContentType,
		Importance:  m.Importance,
		Source:      m.Source,
		Keywords:    keywords,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func (r *record) toMemory() *storage.Memory {
	keywords := r.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return &storage.Memory{
		ID:          r.ID,
		AgentID:     r.AgentID,
		Content:     r.Content,
		ContentType: r.ContentType,
		Importance:  r.Importance,
		Source:      r.Source,
		Keywords:    keywords,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// classify maps go-redis errors onto storage sentinels.
func classify(op string, err error) error {
	return storage.Classify(op, err, isAuthError)
}

// isAuthError recognizes the server's credential rejection replies.
func isAuthError(err error) bool {
	var redisErr redis.Error
	if !errors.As(err, &redisErr) {
		return false
	}
	msg := redisErr.Error()
	return strings.HasPrefix(msg, "WRONGPASS") ||
		strings.HasPrefix(msg, "NOAUTH") ||
		strings.HasPrefix(msg, "NOPERM") ||
		strings.Contains(msg, "invalid password")
}
