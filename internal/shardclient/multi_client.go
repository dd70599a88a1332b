package shardclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout is the per-call deadline spec.md §4.8 sets for
// coordinator-initiated remote calls.
const DefaultTimeout = 30 * time.Second

// MultiShardClient holds one ShardClient per configured shard and provides
// the parallel fan-out helpers the Coordinator drives (spec.md §4.9).
type MultiShardClient struct {
	mu      sync.RWMutex
	clients map[string]*ShardClient
	timeout time.Duration
}

// NewMultiShardClient creates an empty MultiShardClient. A zero timeout
// falls back to DefaultTimeout.
func NewMultiShardClient(timeout time.Duration) *MultiShardClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MultiShardClient{clients: make(map[string]*ShardClient), timeout: timeout}
}

// Set registers or replaces the client for shardID.
func (m *MultiShardClient) Set(shardID, addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[shardID] = New(shardID, addr)
}

// Remove drops the client for shardID.
func (m *MultiShardClient) Remove(shardID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, shardID)
}

// Get returns the client for shardID, if registered.
func (m *MultiShardClient) Get(shardID string) (*ShardClient, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[shardID]
	return c, ok
}

// Clients returns the ShardClient for every shardID in order, skipping any
// that are not registered.
func (m *MultiShardClient) Clients(shardIDs []string) []*ShardClient {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ShardClient, 0, len(shardIDs))
	for _, id := range shardIDs {
		if c, ok := m.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Result pairs one shard's outcome with its id, used by the Broadcast family
// so callers can report per-shard detail (spec.md §4.8 "partial failure
// reported with per-shard detail").
type Result[T any] struct {
	Value   T
	ShardID string
	Err     error
}

// Broadcast runs fn against every client in clients concurrently, each under
// its own per-call timeout, and returns one Result per shard in the same
// order as clients. A panic in fn is not recovered; callers should keep fn
// simple RPC calls.
func Broadcast[T any](ctx context.Context, m *MultiShardClient, clients []*ShardClient, fn func(ctx context.Context, c *ShardClient) (T, error)) []Result[T] {
	results := make([]Result[T], len(clients))

	var g errgroup.Group
	for i, c := range clients {
		i, c := i, c
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			v, err := fn(callCtx, c)
			results[i] = Result[T]{ShardID: c.ID(), Value: v, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}
