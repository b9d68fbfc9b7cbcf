package core

import (
	"time"

	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// Query defaults.
const (
	DefaultQueryLimit = 5
	DefaultQueryDays  = 30
)

// StoreOption is a function type for configuring Store operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type StoreOption func(*StoreOptions)

// StoreOptions contains configuration options for Store operations.
type StoreOptions struct {
	// ContentType is the category tag. Default: conversation
	ContentType string

	// Importance overrides the computed score when set. It is clamped to 1-10.
	Importance *int

	// Source is an optional provenance tag.
	Source string

	// AgentID identifies the owning agent. Default: Config.AgentID
	AgentID string
}

// WithContentType sets the content type for Store operations.
//
// Example:
//
//	id, _ := client.Store(ctx, "Use tabs", core.WithContentType(core.TypePreference))
func WithContentType(contentType string) StoreOption {
	return func(opts *StoreOptions) {
		opts.ContentType = contentType
	}
}

// WithImportance sets an explicit importance, bypassing the scorer.
func WithImportance(importance int) StoreOption {
	return func(opts *StoreOptions) {
		opts.Importance = &importance
	}
}

// WithSource sets the provenance tag for Store operations.
func WithSource(source string) StoreOption {
	return func(opts *StoreOptions) {
		opts.Source = source
	}
}

// WithAgentID sets the owning agent for Store operations.
func WithAgentID(agentID string) StoreOption {
	return func(opts *StoreOptions) {
		opts.AgentID = agentID
	}
}

// QueryOption is a function type for configuring Query operations.
type QueryOption func(*QueryOptions)

// QueryOptions contains configuration options for Query operations.
type QueryOptions struct {
	// Limit is the maximum number of results. Default: 5
	Limit int

	// Days is how far back to look. Default: 30
	Days int

	// MinImportance excludes memories below this importance. Default: 0
	MinImportance int

	// AgentID restricts results to one agent. Default: Config.AgentID
	AgentID string
}

// WithLimit sets the maximum number of results for Query operations.
//
// Example:
//
//	results, _ := client.Query(ctx, "database choice", core.WithLimit(10))
func WithLimit(limit int) QueryOption {
	return func(opts *QueryOptions) {
		opts.Limit = limit
	}
}

// WithDays sets the lookback window, in days, for Query operations.
func WithDays(days int) QueryOption {
	return func(opts *QueryOptions) {
		opts.Days = days
	}
}

// WithMinImportance sets the importance threshold for Query operations.
// Values outside 0-10 are clamped.
func WithMinImportance(minImportance int) QueryOption {
	return func(opts *QueryOptions) {
		opts.MinImportance = minImportance
	}
}

// WithAgentIDForQuery sets the agent for Query operations.
func WithAgentIDForQuery(agentID string) QueryOption {
	return func(opts *QueryOptions) {
		opts.AgentID = agentID
	}
}

// TimelineOption is a function type for configuring Timeline operations.
type TimelineOption func(*TimelineOptions)

// TimelineOptions contains configuration options for Timeline operations.
type TimelineOptions struct {
	// AgentID restricts the timeline to one agent. Default: Config.AgentID
	AgentID string
}

// WithAgentIDForTimeline sets the agent for Timeline operations.
func WithAgentIDForTimeline(agentID string) TimelineOption {
	return func(opts *TimelineOptions) {
		opts.AgentID = agentID
	}
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithLogger sets the logger. The engine logs at debug level only.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocation sets the time zone used to group timeline days. Default: UTC
func WithLocation(loc *time.Location) ClientOption {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithBackend uses an already opened backend instead of building one from
// Config.Storage. The client takes ownership and closes it on Close.
func WithBackend(backend storage.Backend) ClientOption {
	return func(c *Client) {
		c.storage = backend
	}
}

func applyStoreOptions(opts []StoreOption) *StoreOptions {
	options := &StoreOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func applyQueryOptions(opts []QueryOption) *QueryOptions {
	options := &QueryOptions{
		Limit: DefaultQueryLimit,
		Days:  DefaultQueryDays,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func applyTimelineOptions(opts []TimelineOption) *TimelineOptions {
	options := &TimelineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
