package core

import (
	"sort"
	"time"

	"github.com/oceanbase/agentmem-go/pkg/intelligence"
	"github.com/oceanbase/agentmem-go/pkg/storage"
)

// MaxContentLength is the maximum stored content length, in characters (runes).
const MaxContentLength = 5000

// Length limits for agent IDs and content type tags, in runes.
const (
	MaxAgentIDLength     = storage.MaxAgentIDLength
	MaxContentTypeLength = storage.MaxContentTypeLength
)

// DateLayout is the ISO date format used for timeline keys.
const DateLayout = "2006-01-02"

// Built-in content types. Any other non-empty tag is stored as a custom type.
const (
	TypeInsight      = intelligence.TypeInsight
	TypePreference   = intelligence.TypePreference
	TypeError        = intelligence.TypeError
	TypeGoal         = intelligence.TypeGoal
	TypeDecision     = intelligence.TypeDecision
	TypeConversation = intelligence.TypeConversation
)

// Memory represents a single memory stored in the system.
//
// A memory is immutable once stored: corrections are recorded as new memories.
//
// Example:
//
//	memory := &core.Memory{
//	    ID:          1234567890,
//	    AgentID:     "assistant",
//	    Content:     "User prefers dark mode",
//	    ContentType: core.TypePreference,
//	    Importance:  5,
//	}
type Memory struct {
	// ID is the unique identifier of the memory.
	ID int64 `json:"id"`

	// AgentID identifies the agent that owns this memory.
	AgentID string `json:"agent_id"`

	// Content is the trimmed text content (at most MaxContentLength runes).
	Content string `json:"content"`

	// ContentType is the category tag (insight, preference, error, goal,
	// decision, conversation or a custom tag).
	ContentType string `json:"content_type"`

	// Importance is how significant the memory is, from 1 to 10.
	Importance int `json:"importance"`

	// Source is the optional provenance tag, e.g. the integration that produced it.
	Source string `json:"source,omitempty"`

	// Keywords are the significant terms extracted at write time.
	Keywords []string `json:"keywords"`

	// Version is the record format version.
	Version string `json:"version,omitempty"`

	// CreatedAt is when the memory was created.
	CreatedAt time.Time `json:"created_at"`
}

// RankedMemory is a query result: the memory plus its relevance in [0,1].
type RankedMemory struct {
	Memory

	// Relevance combines keyword overlap with importance. Higher is better.
	Relevance float64 `json:"relevance"`
}

// Timeline maps ISO dates (YYYY-MM-DD) to the memories created that day,
// most recent first. Days without memories are absent.
type Timeline map[string][]*Memory

// Dates returns the timeline's dates, newest first.
func (t Timeline) Dates() []string {
	dates := make([]string, 0, len(t))
	for d := range t {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// Len returns the total number of memories across all days.
func (t Timeline) Len() int {
	n := 0
	for _, memories := range t {
		n += len(memories)
	}
	return n
}
