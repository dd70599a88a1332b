package shardclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dreamware/vecdb/internal/cluster"
	"github.com/dreamware/vecdb/internal/vdberrors"
)

func newStubShard(t *testing.T, handler http.HandlerFunc) (*ShardClient, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	addr := strings.TrimPrefix(srv.URL, "http://")
	return New("shard-1", addr), srv.Close
}

func TestAddVectorRoundtrip(t *testing.T) {
	client, closeFn := newStubShard(t, func(w http.ResponseWriter, r *http.Request) {
		var req cluster.ShardRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Operation != cluster.OpAddVector || req.Collection != "docs" {
			t.Errorf("unexpected request: %+v", req)
		}
		data, _ := json.Marshal(cluster.VectorInfo{ID: 42})
		json.NewEncoder(w).Encode(cluster.ShardResponse{Success: true, Data: data, ShardID: "shard-1"})
	})
	defer closeFn()

	id, err := client.AddVector(context.Background(), "docs", []float32{1, 2}, nil)
	if err != nil {
		t.Fatalf("AddVector: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
}

func TestDoPropagatesRemoteError(t *testing.T) {
	client, closeFn := newStubShard(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cluster.ShardResponse{Success: false, Error: "collection not found", ShardID: "shard-1"})
	})
	defer closeFn()

	_, err := client.GetCollection(context.Background(), "missing")
	if !vdberrors.Is(err, vdberrors.RemoteError) {
		t.Errorf("expected RemoteError, got %v", err)
	}
}

func TestDoPropagatesTransportFailure(t *testing.T) {
	client := New("shard-1", "127.0.0.1:1")

	err := client.DeleteCollection(context.Background(), "docs")
	if !vdberrors.Is(err, vdberrors.RemoteUnavailable) {
		t.Errorf("expected RemoteUnavailable, got %v", err)
	}
}

func TestFindSimilarDecodesHits(t *testing.T) {
	client, closeFn := newStubShard(t, func(w http.ResponseWriter, r *http.Request) {
		hits := []cluster.SimilarityHit{{BucketID: 7, VectorIndex: 0, Score: 0.9}}
		data, _ := json.Marshal(hits)
		json.NewEncoder(w).Encode(cluster.ShardResponse{Success: true, Data: data, ShardID: "shard-1"})
	})
	defer closeFn()

	hits, err := client.FindSimilar(context.Background(), "docs", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(hits) != 1 || hits[0].BucketID != 7 {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}))
	defer srv.Close()

	client := New("shard-1", strings.TrimPrefix(srv.URL, "http://"))
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestHealthCheckUnhealthyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "draining"})
	}))
	defer srv.Close()

	client := New("shard-1", strings.TrimPrefix(srv.URL, "http://"))
	if err := client.HealthCheck(context.Background()); !vdberrors.Is(err, vdberrors.RemoteUnavailable) {
		t.Errorf("expected RemoteUnavailable, got %v", err)
	}
}
