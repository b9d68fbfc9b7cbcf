package core_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentmem "github.com/oceanbase/agentmem-go/pkg/core"
)

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupClient(t *testing.T, opts ...agentmem.ClientOption) *agentmem.Client {
	t.Helper()

	config := &agentmem.Config{
		AgentID: "tester",
		Storage: agentmem.StorageConfig{
			Path: filepath.Join(t.TempDir(), "memories.db"),
		},
	}

	client, err := agentmem.NewClient(context.Background(), config, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// only returns the single memory in a one-day timeline.
func only(t *testing.T, client *agentmem.Client) *agentmem.Memory {
	t.Helper()
	timeline, err := client.Timeline(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, timeline.Len())
	for _, memories := range timeline {
		return memories[0]
	}
	return nil
}

func TestNewClient_Defaults(t *testing.T) {
	client := setupClient(t)
	cfg := client.Config()

	assert.Equal(t, agentmem.BackendEmbedded, cfg.Storage.Backend)
	assert.Equal(t, agentmem.ProviderSQLite, cfg.Storage.Provider)
	assert.Equal(t, "memories", cfg.Storage.Collection)
	assert.Equal(t, agentmem.DefaultVersion, cfg.Version)
	assert.Equal(t, time.Duration(0), cfg.Timeout.Std())
}

func TestNewClient_BackendUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	_, err := agentmem.NewClient(context.Background(), &agentmem.Config{
		Storage: agentmem.StorageConfig{Path: filepath.Join(blocker, "sub", "memories.db")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, agentmem.ErrBackendUnavailable))
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := agentmem.NewClient(context.Background(), &agentmem.Config{
		Storage: agentmem.StorageConfig{Backend: agentmem.BackendEmbedded, Provider: agentmem.ProviderRedis},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, agentmem.ErrInvalidConfig))
}

func TestStore_PreferenceGetsBaseImportance(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	id, err := client.Store(ctx, "User prefers dark mode", agentmem.WithContentType(agentmem.TypePreference))
	require.NoError(t, err)
	assert.NotZero(t, id)

	memory := only(t, client)
	assert.Equal(t, id, memory.ID)
	assert.Equal(t, 5, memory.Importance)
	assert.Equal(t, agentmem.TypePreference, memory.ContentType)
	assert.Equal(t, "tester", memory.AgentID)
	assert.Equal(t, agentmem.DefaultVersion, memory.Version)
	assert.Equal(t, []string{"user", "prefers", "dark", "mode", "preference"}, memory.Keywords)
}

func TestStore_SensitiveContentRaisesImportance(t *testing.T) {
	client := setupClient(t)

	_, err := client.Store(context.Background(), "My API key leaked, this is a critical security issue")
	require.NoError(t, err)

	memory := only(t, client)
	assert.GreaterOrEqual(t, memory.Importance, 8)
	assert.LessOrEqual(t, memory.Importance, 10)
	assert.Equal(t, agentmem.TypeConversation, memory.ContentType)
}

func TestStore_ExplicitImportanceIsClamped(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{name: "negative", input: -3, expected: 1},
		{name: "zero", input: 0, expected: 1},
		{name: "in range", input: 7, expected: 7},
		{name: "upper bound", input: 10, expected: 10},
		{name: "too high", input: 42, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupClient(t)
			_, err := client.Store(context.Background(), "deploy window is friday",
				agentmem.WithImportance(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, only(t, client).Importance)
		})
	}
}

func TestStore_TruncatesLongContent(t *testing.T) {
	client := setupClient(t)

	content := "  " + strings.Repeat("é", agentmem.MaxContentLength+500) + "  "
	_, err := client.Store(context.Background(), content)
	require.NoError(t, err)

	memory := only(t, client)
	assert.Equal(t, agentmem.MaxContentLength, utf8.RuneCountInString(memory.Content))
}

func TestStore_TruncationKeepsFullLength(t *testing.T) {
	client := setupClient(t)

	content := strings.Repeat("x", agentmem.MaxContentLength-1) + "  trailing words"
	_, err := client.Store(context.Background(), content)
	require.NoError(t, err)

	memory := only(t, client)
	assert.Equal(t, agentmem.MaxContentLength, utf8.RuneCountInString(memory.Content))
	assert.True(t, strings.HasSuffix(memory.Content, "x "))
}

func TestStore_RejectsEmptyContent(t *testing.T) {
	client := setupClient(t)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := client.Store(context.Background(), content)
		require.Error(t, err)
		assert.True(t, errors.Is(err, agentmem.ErrEmptyContent))
		assert.True(t, errors.Is(err, agentmem.ErrValidation))

		var memErr *agentmem.MemoryError
		require.True(t, errors.As(err, &memErr))
		assert.Equal(t, "Store", memErr.Op)
	}

	timeline, err := client.Timeline(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, timeline)
}

func TestStore_RejectsInvalidUTF8(t *testing.T) {
	client := setupClient(t)

	_, err := client.Store(context.Background(), "bad \xff bytes")
	assert.True(t, errors.Is(err, agentmem.ErrValidation))
}

func TestStore_NormalizationIsRepeatable(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	raw := "  Rotate the staging database password every 30 days  "
	id1, err := client.Store(ctx, raw, agentmem.WithContentType(agentmem.TypeDecision))
	require.NoError(t, err)
	id2, err := client.Store(ctx, raw, agentmem.WithContentType(agentmem.TypeDecision))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	timeline, err := client.Timeline(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, timeline.Len())

	var memories []*agentmem.Memory
	for _, day := range timeline {
		memories = append(memories, day...)
	}
	assert.Equal(t, memories[0].Content, memories[1].Content)
	assert.Equal(t, memories[0].Keywords, memories[1].Keywords)
	assert.Equal(t, memories[0].Importance, memories[1].Importance)
	assert.Equal(t, strings.TrimSpace(raw), memories[0].Content)
}

func TestStore_SourceAndAgent(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	_, err := client.Store(ctx, "Prefers concise answers",
		agentmem.WithSource("slack"),
		agentmem.WithAgentID("helper"))
	require.NoError(t, err)

	timeline, err := client.Timeline(ctx, 1, agentmem.WithAgentIDForTimeline("helper"))
	require.NoError(t, err)
	require.Equal(t, 1, timeline.Len())
	for _, day := range timeline {
		assert.Equal(t, "slack", day[0].Source)
		assert.Equal(t, "helper", day[0].AgentID)
	}

	// The default agent does not see it.
	timeline, err = client.Timeline(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, timeline)
}

func TestQuery_GoalScenario(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	_, err := client.Store(ctx, "The team uses PostgreSQL for billing")
	require.NoError(t, err)
	id, err := client.Store(ctx, "Nikola wants to build 3 products this quarter",
		agentmem.WithContentType(agentmem.TypeGoal),
		agentmem.WithImportance(9))
	require.NoError(t, err)
	_, err = client.Store(ctx, "Lunch is at noon on Fridays")
	require.NoError(t, err)

	results, err := client.Query(ctx, "what Nikola wants to build", agentmem.WithLimit(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, 9, results[0].Importance)
	assert.InDelta(t, 0.8+0.2*0.9, results[0].Relevance, 1e-9)
}

func TestQuery_FullMatchRanksAboveNoMatch(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	full, err := client.Store(ctx, "kubernetes cluster upgrade", agentmem.WithImportance(5))
	require.NoError(t, err)
	_, err = client.Store(ctx, "favorite color is green", agentmem.WithImportance(5))
	require.NoError(t, err)

	results, err := client.Query(ctx, "kubernetes upgrade")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, full, results[0].ID)
	assert.Greater(t, results[0].Relevance, results[1].Relevance)
}

func TestQuery_ExactBeatsPartial(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	partial, err := client.Store(ctx, "deployments happen nightly", agentmem.WithImportance(5))
	require.NoError(t, err)
	exact, err := client.Store(ctx, "deploy happens nightly", agentmem.WithImportance(5))
	require.NoError(t, err)

	results, err := client.Query(ctx, "deploy")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, exact, results[0].ID)
	assert.Equal(t, partial, results[1].ID)
	assert.InDelta(t, 0.8*1.0+0.1, results[0].Relevance, 1e-9)
	assert.InDelta(t, 0.8*0.5+0.1, results[1].Relevance, 1e-9)
}

func TestQuery_ImportanceBreaksTies(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	_, err := client.Store(ctx, "redis cache warmup", agentmem.WithImportance(3))
	require.NoError(t, err)
	high, err := client.Store(ctx, "redis cache eviction", agentmem.WithImportance(8))
	require.NoError(t, err)

	results, err := client.Query(ctx, "redis cache")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, high, results[0].ID)
}

func TestQuery_RecencyBreaksEqualRelevance(t *testing.T) {
	clock := newTestClock()
	client := setupClient(t, agentmem.WithClock(clock.Now))
	ctx := context.Background()

	older, err := client.Store(ctx, "standup moved to 10am", agentmem.WithImportance(4))
	require.NoError(t, err)
	clock.Advance(time.Hour)
	newer, err := client.Store(ctx, "standup moved to 10am", agentmem.WithImportance(4))
	require.NoError(t, err)

	results, err := client.Query(ctx, "standup")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newer, results[0].ID)
	assert.Equal(t, older, results[1].ID)
}

func TestQuery_TimeWindow(t *testing.T) {
	clock := newTestClock()
	client := setupClient(t, agentmem.WithClock(clock.Now))
	ctx := context.Background()
	now := clock.Now()

	clock.Set(now.Add(-40 * 24 * time.Hour))
	_, err := client.Store(ctx, "release checklist drafted")
	require.NoError(t, err)

	clock.Set(now.Add(-5 * 24 * time.Hour))
	recent, err := client.Store(ctx, "release checklist approved")
	require.NoError(t, err)

	clock.Set(now)

	results, err := client.Query(ctx, "release checklist")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, recent, results[0].ID)

	results, err = client.Query(ctx, "release checklist", agentmem.WithDays(3))
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = client.Query(ctx, "release checklist", agentmem.WithDays(60))
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.CreatedAt.Before(now.Add(-60*24*time.Hour)))
	}
}

func TestQuery_MinImportanceAndLimit(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		_, err := client.Store(ctx, fmt.Sprintf("incident note %d", i), agentmem.WithImportance(i))
		require.NoError(t, err)
	}

	results, err := client.Query(ctx, "incident", agentmem.WithMinImportance(7), agentmem.WithLimit(10))
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Importance, 7)
	}

	results, err = client.Query(ctx, "incident")
	require.NoError(t, err)
	assert.Len(t, results, agentmem.DefaultQueryLimit)

	results, err = client.Query(ctx, "incident", agentmem.WithMinImportance(99))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 10, results[0].Importance)
}

func TestQuery_AgentIsolation(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	_, err := client.Store(ctx, "vault rotation schedule", agentmem.WithAgentID("ops"))
	require.NoError(t, err)
	_, err = client.Store(ctx, "vault rotation schedule", agentmem.WithAgentID("dev"))
	require.NoError(t, err)

	results, err := client.Query(ctx, "vault", agentmem.WithAgentIDForQuery("ops"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ops", results[0].AgentID)

	results, err = client.Query(ctx, "vault")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_AgentIDsCompareExactly(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	_, err := client.Store(ctx, "Alice likes tea", agentmem.WithAgentID("Alice"))
	require.NoError(t, err)
	_, err = client.Store(ctx, "bob likes tea", agentmem.WithAgentID("bob"))
	require.NoError(t, err)

	for _, agent := range []string{"alice", "ALICE", "bob ", " bob"} {
		results, err := client.Query(ctx, "tea", agentmem.WithAgentIDForQuery(agent))
		require.NoError(t, err)
		assert.Empty(t, results, "agent %q", agent)
	}
}

func TestStore_FieldLengthLimits(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	_, err := client.Store(ctx, "fits", agentmem.WithAgentID(strings.Repeat("é", agentmem.MaxAgentIDLength)))
	require.NoError(t, err)

	_, err = client.Store(ctx, "too long", agentmem.WithAgentID(strings.Repeat("é", agentmem.MaxAgentIDLength+1)))
	assert.ErrorIs(t, err, agentmem.ErrValidation)

	_, err = client.Store(ctx, "fits", agentmem.WithContentType(strings.Repeat("t", agentmem.MaxContentTypeLength)))
	require.NoError(t, err)

	_, err = client.Store(ctx, "too long", agentmem.WithContentType(strings.Repeat("t", agentmem.MaxContentTypeLength+1)))
	assert.ErrorIs(t, err, agentmem.ErrValidation)
}

func TestQuery_EmptyStore(t *testing.T) {
	client := setupClient(t)

	results, err := client.Query(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestQuery_Validation(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts []agentmem.QueryOption
	}{
		{name: "zero limit", opts: []agentmem.QueryOption{agentmem.WithLimit(0)}},
		{name: "negative limit", opts: []agentmem.QueryOption{agentmem.WithLimit(-1)}},
		{name: "zero days", opts: []agentmem.QueryOption{agentmem.WithDays(0)}},
		{name: "negative days", opts: []agentmem.QueryOption{agentmem.WithDays(-7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Query(ctx, "x", tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, agentmem.ErrValidation))
		})
	}
}

func TestTimeline_Empty(t *testing.T) {
	client := setupClient(t)

	timeline, err := client.Timeline(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, timeline)
	assert.Empty(t, timeline)
	assert.Empty(t, timeline.Dates())
}

func TestTimeline_GroupsByDay(t *testing.T) {
	clock := newTestClock()
	client := setupClient(t, agentmem.WithClock(clock.Now))
	ctx := context.Background()
	now := clock.Now() // 2025-06-15 12:00 UTC

	store := func(at time.Time, content string) int64 {
		clock.Set(at)
		id, err := client.Store(ctx, content)
		require.NoError(t, err)
		return id
	}

	morning := store(time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC), "kickoff meeting")
	evening := store(time.Date(2025, 6, 12, 18, 30, 0, 0, time.UTC), "kickoff notes shared")
	today := store(time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC), "sprint review")
	store(time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC), "outside the window")

	clock.Set(now)
	timeline, err := client.Timeline(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-06-15", "2025-06-12"}, timeline.Dates())
	assert.Equal(t, 3, timeline.Len())

	day := timeline["2025-06-12"]
	require.Len(t, day, 2)
	assert.Equal(t, evening, day[0].ID)
	assert.Equal(t, morning, day[1].ID)

	require.Len(t, timeline["2025-06-15"], 1)
	assert.Equal(t, today, timeline["2025-06-15"][0].ID)

	_, ok := timeline["2025-06-13"]
	assert.False(t, ok)
}

func TestTimeline_Location(t *testing.T) {
	clock := newTestClock()
	loc := time.FixedZone("UTC+9", 9*60*60)
	client := setupClient(t, agentmem.WithClock(clock.Now), agentmem.WithLocation(loc))
	ctx := context.Background()

	// 20:00 UTC on the 14th is the 15th in UTC+9.
	clock.Set(time.Date(2025, 6, 14, 20, 0, 0, 0, time.UTC))
	_, err := client.Store(ctx, "late night deploy")
	require.NoError(t, err)

	clock.Set(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	timeline, err := client.Timeline(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-15"}, timeline.Dates())
}

func TestTimeline_Validation(t *testing.T) {
	client := setupClient(t)

	for _, days := range []int{0, -1} {
		_, err := client.Timeline(context.Background(), days)
		require.Error(t, err)
		assert.True(t, errors.Is(err, agentmem.ErrValidation))
	}
}

func TestClient_VeryLongWindows(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	_, err := client.Store(ctx, "User prefers dark mode", agentmem.WithContentType(agentmem.TypePreference))
	require.NoError(t, err)

	for _, days := range []int{106751, 106752, 200000, 1 << 40, math.MaxInt} {
		t.Run(fmt.Sprintf("%d days", days), func(t *testing.T) {
			timeline, err := client.Timeline(ctx, days)
			require.NoError(t, err)
			assert.Equal(t, 1, timeline.Len())

			results, err := client.Query(ctx, "dark mode", agentmem.WithDays(days))
			require.NoError(t, err)
			assert.Len(t, results, 1)
		})
	}
}

func TestClient_ConcurrentStores(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	const n = 20
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := client.Store(ctx, fmt.Sprintf("parallel memory %d", i))
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]struct{}, n)
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)

	timeline, err := client.Timeline(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, n, timeline.Len())
}
