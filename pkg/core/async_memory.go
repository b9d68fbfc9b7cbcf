package core

import (
	"context"
	"sync"
)

// AsyncClient provides asynchronous agentmem operations.
//
// It wraps the synchronous Client and executes all operations in separate goroutines,
// making it suitable for agents that record memories without waiting on the store.
//
// All async methods return channels that will receive the results when operations complete.
// The client tracks all goroutines and provides Wait() to ensure all operations finish.
//
// Example:
//
//	asyncClient, _ := core.NewAsyncClient(ctx, config)
//	defer asyncClient.Close()
//
//	resultChan := asyncClient.StoreAsync(ctx, "User prefers dark mode",
//	    core.WithContentType(core.TypePreference))
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// NewAsyncClient creates a new asynchronous agentmem client.
//
// Parameters:
//   - ctx: Context for opening the backend
//   - cfg: agentmem configuration
//   - opts: Client options (logger, clock, backend)
//
// Returns:
//   - *AsyncClient: The asynchronous client instance
//   - error: Error if configuration is invalid or initialization fails
func NewAsyncClient(ctx context.Context, cfg *Config, opts ...ClientOption) (*AsyncClient, error) {
	client, err := NewClient(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	return &AsyncClient{
		Client: client,
	}, nil
}

// StoreAsync stores a memory asynchronously.
//
// The operation executes in a separate goroutine and returns results via a channel.
// The channel receives exactly one StoreResult and is then closed.
func (ac *AsyncClient) StoreAsync(ctx context.Context, content string, opts ...StoreOption) <-chan *StoreResult {
	resultChan := make(chan *StoreResult, 1)

	ac.wg.Add(1)
	go func() {
		defer ac.wg.Done()
		defer close(resultChan)

		id, err := ac.Client.Store(ctx, content, opts...)
		resultChan <- &StoreResult{
			ID:    id,
			Error: err,
		}
	}()

	return resultChan
}

// QueryAsync queries memories asynchronously.
//
// The channel receives exactly one QueryResult and is then closed.
func (ac *AsyncClient) QueryAsync(ctx context.Context, text string, opts ...QueryOption) <-chan *QueryResult {
	resultChan := make(chan *QueryResult, 1)

	ac.wg.Add(1)
	go func() {
		defer ac.wg.Done()
		defer close(resultChan)

		memories, err := ac.Client.Query(ctx, text, opts...)
		resultChan <- &QueryResult{
			Memories: memories,
			Error:    err,
		}
	}()

	return resultChan
}

// TimelineAsync builds a timeline asynchronously.
//
// The channel receives exactly one TimelineResult and is then closed.
func (ac *AsyncClient) TimelineAsync(ctx context.Context, days int, opts ...TimelineOption) <-chan *TimelineResult {
	resultChan := make(chan *TimelineResult, 1)

	ac.wg.Add(1)
	go func() {
		defer ac.wg.Done()
		defer close(resultChan)

		timeline, err := ac.Client.Timeline(ctx, days, opts...)
		resultChan <- &TimelineResult{
			Timeline: timeline,
			Error:    err,
		}
	}()

	return resultChan
}

// Wait waits for all pending async operations to complete.
//
// This method blocks until all goroutines started by async methods have finished.
// It's useful for ensuring all operations complete before shutting down.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close closes the async client after all pending operations complete.
func (ac *AsyncClient) Close() error {
	ac.Wait()
	return ac.Client.Close()
}

// StoreResult represents the result of an async Store operation.
type StoreResult struct {
	// ID is the stored memory's ID (0 if an error occurred).
	ID int64

	// Error is any error that occurred during the operation.
	Error error
}

// QueryResult represents the result of an async Query operation.
type QueryResult struct {
	// Memories is the ranked result list (nil if an error occurred).
	Memories []*RankedMemory

	// Error is any error that occurred during the operation.
	Error error
}

// TimelineResult represents the result of an async Timeline operation.
type TimelineResult struct {
	// Timeline is the grouped result (nil if an error occurred).
	Timeline Timeline

	// Error is any error that occurred during the operation.
	Error error
}
