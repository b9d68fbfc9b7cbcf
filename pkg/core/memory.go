package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/intelligence"
	"github.com/oceanbase/agentmem-go/pkg/storage"
	"github.com/oceanbase/agentmem-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/agentmem-go/pkg/storage/postgres"
	redisStore "github.com/oceanbase/agentmem-go/pkg/storage/redis"
	sqliteStore "github.com/oceanbase/agentmem-go/pkg/storage/sqlite"
)

// Client is the agentmem engine.
//
// It stores memories with extracted keywords and a computed importance, and
// retrieves them by relevance (Query) or by day (Timeline). The client holds
// no mutable state between calls and is safe for concurrent use.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(ctx, config)
//	defer client.Close()
//
//	id, _ := client.Store(ctx, "Chose PostgreSQL for the ledger service",
//	    core.WithContentType(core.TypeDecision),
//	)
//	results, _ := client.Query(ctx, "postgresql ledger")
type Client struct {
	// config contains the client configuration.
	config *Config

	// storage is the backend that persists memories.
	storage storage.Backend

	// snowflakeNode generates unique IDs for memories.
	snowflakeNode *snowflake.Node

	logger   *zap.Logger
	now      func() time.Time
	location *time.Location
	timeout  time.Duration
}

// NewClient creates a new agentmem client.
//
// The configuration is completed with ApplyDefaults and validated, then the
// backend it names is opened (unless WithBackend supplies one).
//
// Example:
//
//	client, err := core.NewClient(ctx, &core.Config{
//	    Storage: core.StorageConfig{Path: "./memories.db"},
//	})
func NewClient(ctx context.Context, cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, NewMemoryError("NewClient", fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}

	client := &Client{
		config:        cfg,
		snowflakeNode: node,
		logger:        zap.NewNop(),
		now:           time.Now,
		location:      time.UTC,
		timeout:       cfg.Timeout.Std(),
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.storage == nil {
		store, err := initStorage(ctx, cfg, client.logger)
		if err != nil {
			return nil, err
		}
		client.storage = store
	}

	client.logger.Debug("client ready",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("provider", cfg.Storage.Provider),
		zap.String("agent_id", cfg.AgentID))

	return client, nil
}

// Store records a new memory and returns its ID.
//
// The content is trimmed and truncated to MaxContentLength characters; empty
// content is rejected with ErrEmptyContent. Keywords are extracted and the
// importance is scored unless WithImportance is given. Nothing is persisted
// when an error is returned.
//
// Example:
//
//	id, err := client.Store(ctx, "API token rotated weekly",
//	    core.WithContentType(core.TypeInsight),
//	    core.WithSource("ops-bot"),
//	)
func (c *Client) Store(ctx context.Context, content string, opts ...StoreOption) (int64, error) {
	options := applyStoreOptions(opts)

	normalized, err := normalizeContent(content)
	if err != nil {
		return 0, NewMemoryError("Store", err)
	}

	contentType := intelligence.NormalizeContentType(options.ContentType)
	if n := utf8.RuneCountInString(contentType); n > MaxContentTypeLength {
		return 0, NewMemoryError("Store",
			validationErrorf("content type is %d characters, limit is %d", n, MaxContentTypeLength))
	}
	agentID := c.agentID(options.AgentID)
	if n := utf8.RuneCountInString(agentID); n > MaxAgentIDLength {
		return 0, NewMemoryError("Store",
			validationErrorf("agent ID is %d characters, limit is %d", n, MaxAgentIDLength))
	}

	now := c.now().UTC()
	memory := &Memory{
		ID:          c.snowflakeNode.Generate().Int64(),
		AgentID:     agentID,
		Content:     normalized,
		ContentType: contentType,
		Importance:  intelligence.ScoreImportance(normalized, contentType, options.Importance),
		Source:      strings.TrimSpace(options.Source),
		Keywords:    intelligence.ExtractKeywords(normalized, contentType),
		Version:     c.config.Version,
		CreatedAt:   now,
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	id, err := c.storage.Insert(ctx, toStorageMemory(memory))
	if err != nil {
		return 0, NewMemoryError("Store", c.contextError(ctx, err))
	}

	c.logger.Debug("memory stored",
		zap.Int64("id", id),
		zap.String("agent_id", memory.AgentID),
		zap.String("content_type", contentType),
		zap.Int("importance", memory.Importance),
		zap.Int("keywords", len(memory.Keywords)))

	return id, nil
}

// Query returns the memories most relevant to text.
//
// Candidates are the agent's memories from the last Days days with importance
// at least MinImportance. Each is scored by keyword overlap with the query
// (exact matches count double a partial match) plus a smaller importance
// boost, then sorted by relevance with the most recent first on ties.
//
// An empty candidate set yields an empty slice, not an error.
//
// Example:
//
//	results, err := client.Query(ctx, "database decision",
//	    core.WithLimit(3),
//	    core.WithMinImportance(6),
//	)
func (c *Client) Query(ctx context.Context, text string, opts ...QueryOption) ([]*RankedMemory, error) {
	options := applyQueryOptions(opts)
	if options.Limit <= 0 {
		return nil, NewMemoryError("Query", validationErrorf("limit must be positive, got %d", options.Limit))
	}
	if options.Days <= 0 {
		return nil, NewMemoryError("Query", validationErrorf("days must be positive, got %d", options.Days))
	}
	minImportance := clamp(options.MinImportance, 0, intelligence.MaxImportance)

	filter := &storage.FilterOptions{
		AgentID:       c.agentID(options.AgentID),
		Since:         windowStart(c.now().UTC(), options.Days),
		MinImportance: minImportance,
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	candidates, err := c.storage.SelectByFilter(ctx, filter)
	if err != nil {
		return nil, NewMemoryError("Query", c.contextError(ctx, err))
	}

	plan := newQueryPlan(text, options.Limit)
	results := plan.rank(fromStorageMemories(candidates))

	c.logger.Debug("query ranked",
		zap.String("agent_id", filter.AgentID),
		zap.Strings("keywords", plan.keywords),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)))

	return results, nil
}

// Timeline groups the agent's memories from the last days days by calendar
// day (ISO date in the client's location, UTC by default).
//
// Within a day memories are ordered most recent first; days without
// memories are absent. An empty window yields an empty Timeline.
//
// Example:
//
//	timeline, err := client.Timeline(ctx, 7)
//	for _, day := range timeline.Dates() {
//	    fmt.Println(day, len(timeline[day]))
//	}
func (c *Client) Timeline(ctx context.Context, days int, opts ...TimelineOption) (Timeline, error) {
	if days <= 0 {
		return nil, NewMemoryError("Timeline", validationErrorf("days must be positive, got %d", days))
	}
	options := applyTimelineOptions(opts)

	now := c.now().UTC()
	rangeOpts := &storage.TimeRangeOptions{
		AgentID: c.agentID(options.AgentID),
		Start:   windowStart(now, days),
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	memories, err := c.storage.SelectByTimeRange(ctx, rangeOpts)
	if err != nil {
		return nil, NewMemoryError("Timeline", c.contextError(ctx, err))
	}

	timeline := make(Timeline)
	// Backends return oldest first; walk backwards so each day is newest first.
	for i := len(memories) - 1; i >= 0; i-- {
		m := fromStorageMemory(memories[i])
		day := m.CreatedAt.In(c.location).Format(DateLayout)
		timeline[day] = append(timeline[day], m)
	}

	c.logger.Debug("timeline built",
		zap.String("agent_id", rangeOpts.AgentID),
		zap.Int("days", len(timeline)),
		zap.Int("memories", len(memories)))

	return timeline, nil
}

// Close closes the client and releases the backend.
//
// After calling Close, the client should not be used anymore.
func (c *Client) Close() error {
	if c.storage == nil {
		return nil
	}
	return NewMemoryError("Close", c.storage.Close())
}

// Config returns the client's effective configuration.
func (c *Client) Config() *Config {
	return c.config
}

// agentID resolves the agent for a call.
func (c *Client) agentID(explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	return c.config.AgentID
}

// withTimeout applies Config.Timeout to ctx when set.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// contextError reports an expired deadline as ErrTimeout even when the
// backend surfaced it as a generic failure.
func (c *Client) contextError(ctx context.Context, err error) error {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrAuthentication) || errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// normalizeContent trims content and truncates it to MaxContentLength runes.
// Truncation happens after trimming, so a cut may end on whitespace.
func normalizeContent(content string) (string, error) {
	if !utf8.ValidString(content) {
		return "", validationErrorf("content is not valid UTF-8")
	}
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > MaxContentLength {
		content = string([]rune(content)[:MaxContentLength])
	}
	if content == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}

// maxWindowDays is far beyond the Unix epoch from any current clock and
// keeps AddDate within range.
const maxWindowDays = 1 << 20

var unixEpoch = time.Unix(0, 0).UTC()

// windowStart is the lower bound of a days-long lookback ending at now.
// Windows reaching back past the Unix epoch are unbounded (zero time).
func windowStart(now time.Time, days int) time.Time {
	if days > maxWindowDays {
		return time.Time{}
	}
	start := now.AddDate(0, 0, -days)
	if start.Before(unixEpoch) {
		return time.Time{}
	}
	return start
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// initStorage opens the backend named by cfg.Storage.
func initStorage(ctx context.Context, cfg *Config, logger *zap.Logger) (storage.Backend, error) {
	s := cfg.Storage
	connectTimeout := cfg.Timeout.Std()

	var (
		store storage.Backend
		err   error
	)
	switch s.Provider {
	case ProviderSQLite:
		store, err = sqliteStore.NewClient(ctx, &sqliteStore.Config{
			DBPath:         s.Path,
			CollectionName: s.Collection,
			Logger:         logger,
		})
	case ProviderPostgres:
		store, err = postgresStore.NewClient(ctx, &postgresStore.Config{
			Host:           s.Host,
			Port:           s.Port,
			User:           s.User,
			Password:       s.Password,
			DBName:         s.Database,
			CollectionName: s.Collection,
			SSLMode:        s.SSLMode,
			ConnectTimeout: connectTimeout,
			Logger:         logger,
		})
	case ProviderOceanBase:
		store, err = oceanbase.NewClient(ctx, &oceanbase.Config{
			Host:           s.Host,
			Port:           s.Port,
			User:           s.User,
			Password:       s.Password,
			DBName:         s.Database,
			CollectionName: s.Collection,
			ConnectTimeout: connectTimeout,
			Logger:         logger,
		})
	case ProviderRedis:
		store, err = redisStore.NewClient(ctx, &redisStore.Config{
			URL:            s.URL,
			Username:       s.User,
			Password:       s.Password,
			KeyPrefix:      s.Collection,
			ConnectTimeout: connectTimeout,
			Logger:         logger,
		})
	default:
		return nil, NewMemoryError("initStorage", fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, s.Provider))
	}
	if err != nil {
		return nil, NewMemoryError("initStorage", err)
	}
	return store, nil
}
