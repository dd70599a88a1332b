package shardclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dreamware/vecdb/internal/cluster"
)

func newStubCluster(t *testing.T, n int, fail map[int]bool) (*MultiShardClient, func()) {
	t.Helper()
	m := NewMultiShardClient(0)
	var servers []*httptest.Server

	for i := 0; i < n; i++ {
		i := i
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fail[i] {
				json.NewEncoder(w).Encode(cluster.ShardResponse{Success: false, Error: "boom"})
				return
			}
			json.NewEncoder(w).Encode(cluster.ShardResponse{Success: true})
		}))
		servers = append(servers, srv)
		m.Set(fmt.Sprintf("shard-%d", i), strings.TrimPrefix(srv.URL, "http://"))
	}

	return m, func() {
		for _, s := range servers {
			s.Close()
		}
	}
}

func TestMultiShardClientSetGetRemove(t *testing.T) {
	m := NewMultiShardClient(0)
	m.Set("shard-1", "localhost:9001")

	c, ok := m.Get("shard-1")
	if !ok || c.ID() != "shard-1" {
		t.Fatalf("Get returned %+v, %v", c, ok)
	}

	m.Remove("shard-1")
	if _, ok := m.Get("shard-1"); ok {
		t.Errorf("expected shard-1 removed")
	}
}

func TestMultiShardClientClientsSkipsUnregistered(t *testing.T) {
	m := NewMultiShardClient(0)
	m.Set("shard-1", "localhost:9001")

	clients := m.Clients([]string{"shard-1", "shard-99"})
	if len(clients) != 1 || clients[0].ID() != "shard-1" {
		t.Errorf("unexpected clients: %+v", clients)
	}
}

func TestBroadcastAllSucceed(t *testing.T) {
	m, closeFn := newStubCluster(t, 3, nil)
	defer closeFn()

	clients := m.Clients([]string{"shard-0", "shard-1", "shard-2"})
	results := Broadcast(context.Background(), m, clients, func(ctx context.Context, c *ShardClient) (struct{}, error) {
		return struct{}{}, c.CreateCollection(ctx, "docs", "Cosine", 3)
	})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("shard %s: unexpected error %v", r.ShardID, r.Err)
		}
	}
}

func TestBroadcastReportsPerShardFailure(t *testing.T) {
	m, closeFn := newStubCluster(t, 3, map[int]bool{1: true})
	defer closeFn()

	clients := m.Clients([]string{"shard-0", "shard-1", "shard-2"})
	results := Broadcast(context.Background(), m, clients, func(ctx context.Context, c *ShardClient) (struct{}, error) {
		return struct{}{}, c.CreateCollection(ctx, "docs", "Cosine", 3)
	})

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			if r.ShardID != "shard-1" {
				t.Errorf("unexpected failing shard %s", r.ShardID)
			}
		}
	}
	if failed != 1 {
		t.Errorf("got %d failures, want 1", failed)
	}
}
