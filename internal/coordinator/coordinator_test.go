package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dreamware/vecdb/internal/cluster"
	"github.com/dreamware/vecdb/internal/config"
	"github.com/dreamware/vecdb/internal/shardclient"
	"github.com/dreamware/vecdb/internal/vdberrors"
)

type stubShardServer struct {
	srv      *httptest.Server
	handlers map[cluster.Operation]func(cluster.ShardRequest) cluster.ShardResponse
}

func newStubShardServer(t *testing.T) *stubShardServer {
	t.Helper()
	s := &stubShardServer{handlers: make(map[cluster.Operation]func(cluster.ShardRequest) cluster.ShardResponse)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cluster.ShardRequest
		json.NewDecoder(r.Body).Decode(&req)
		h, ok := s.handlers[req.Operation]
		if !ok {
			json.NewEncoder(w).Encode(cluster.ShardResponse{Success: true})
			return
		}
		json.NewEncoder(w).Encode(h(req))
	}))
	return s
}

func (s *stubShardServer) addr() string {
	return strings.TrimPrefix(s.srv.URL, "http://")
}

func (s *stubShardServer) close() { s.srv.Close() }

func okResponse(v any) cluster.ShardResponse {
	data, _ := json.Marshal(v)
	return cluster.ShardResponse{Success: true, Data: data}
}

func errResponse(msg string) cluster.ShardResponse {
	return cluster.ShardResponse{Success: false, Error: msg}
}

func setupCoordinator(t *testing.T, n int) (*Coordinator, []*stubShardServer, *ShardManager) {
	t.Helper()
	strategy, _ := NewRoutingStrategy(config.StrategyHashBased)

	var shardConfigs []config.ShardConfig
	var servers []*stubShardServer
	clients := shardclient.NewMultiShardClient(0)

	for i := 0; i < n; i++ {
		s := newStubShardServer(t)
		servers = append(servers, s)
		id := shardIDFor(i)
		shardConfigs = append(shardConfigs, config.ShardConfig{ID: id, Host: "stub", Port: i})
		clients.Set(id, s.addr())
	}

	sm := NewShardManager(shardConfigs, strategy)
	return New(sm, clients, nil), servers, sm
}

func shardIDFor(i int) string {
	return "shard-" + string(rune('0'+i))
}

func TestCoordinatorCreateCollectionAllSucceed(t *testing.T) {
	co, servers, _ := setupCoordinator(t, 2)
	defer func() {
		for _, s := range servers {
			s.close()
		}
	}()

	outcomes, err := co.CreateCollection(context.Background(), "docs", "Cosine", 3)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.OK {
			t.Errorf("shard %s failed: %s", o.ShardID, o.Error)
		}
	}
}

func TestCoordinatorCreateCollectionPartialFailure(t *testing.T) {
	co, servers, _ := setupCoordinator(t, 2)
	defer func() {
		for _, s := range servers {
			s.close()
		}
	}()

	servers[1].handlers[cluster.OpCreateCollection] = func(req cluster.ShardRequest) cluster.ShardResponse {
		return errResponse("disk full")
	}

	outcomes, err := co.CreateCollection(context.Background(), "docs", "Cosine", 3)
	if err == nil {
		t.Fatal("expected error on partial failure")
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
}

func TestCoordinatorAddVectorRoutesToOwner(t *testing.T) {
	co, servers, sm := setupCoordinator(t, 3)
	defer func() {
		for _, s := range servers {
			s.close()
		}
	}()

	owner, err := sm.OwnerForCollection("docs")
	if err != nil {
		t.Fatalf("OwnerForCollection: %v", err)
	}

	called := make(map[string]bool)
	for i, s := range servers {
		id := shardIDFor(i)
		s.handlers[cluster.OpAddVector] = func(req cluster.ShardRequest) cluster.ShardResponse {
			called[id] = true
			return okResponse(cluster.VectorInfo{ID: 99})
		}
	}

	id, err := co.AddVector(context.Background(), "docs", []float32{1, 2, 3}, nil)
	if err != nil {
		t.Fatalf("AddVector: %v", err)
	}
	if id != 99 {
		t.Errorf("id = %d, want 99", id)
	}
	if len(called) != 1 || !called[owner.ID] {
		t.Errorf("expected only owner shard %s called, got %+v", owner.ID, called)
	}
}

func TestCoordinatorGetVectorFirstSuccessWins(t *testing.T) {
	co, servers, _ := setupCoordinator(t, 3)
	defer func() {
		for _, s := range servers {
			s.close()
		}
	}()

	for i, s := range servers {
		i := i
		s.handlers[cluster.OpGetVector] = func(req cluster.ShardRequest) cluster.ShardResponse {
			if i == 1 {
				return okResponse(cluster.VectorInfo{ID: *req.VectorID, Data: []float32{1, 2}})
			}
			return errResponse("not found")
		}
	}

	v, err := co.GetVector(context.Background(), "docs", 123)
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if v.ID != 123 {
		t.Errorf("id = %d, want 123", v.ID)
	}
}

func TestCoordinatorGetVectorNotFoundAnywhere(t *testing.T) {
	co, servers, _ := setupCoordinator(t, 2)
	defer func() {
		for _, s := range servers {
			s.close()
		}
	}()

	for _, s := range servers {
		s.handlers[cluster.OpGetVector] = func(req cluster.ShardRequest) cluster.ShardResponse {
			return errResponse("not found")
		}
	}

	_, err := co.GetVector(context.Background(), "docs", 123)
	if !vdberrors.Is(err, vdberrors.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestCoordinatorFindSimilarMergesAndTruncates(t *testing.T) {
	co, servers, _ := setupCoordinator(t, 2)
	defer func() {
		for _, s := range servers {
			s.close()
		}
	}()

	servers[0].handlers[cluster.OpFindSimilar] = func(req cluster.ShardRequest) cluster.ShardResponse {
		return okResponse([]cluster.SimilarityHit{{BucketID: 1, VectorIndex: 0, Score: 0.5}, {BucketID: 1, VectorIndex: 1, Score: 0.9}})
	}
	servers[1].handlers[cluster.OpFindSimilar] = func(req cluster.ShardRequest) cluster.ShardResponse {
		return okResponse([]cluster.SimilarityHit{{BucketID: 2, VectorIndex: 0, Score: 0.8}})
	}

	hits, err := co.FindSimilar(context.Background(), "docs", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("hits not sorted descending: %+v", hits)
	}
	if hits[0].Score != 0.9 {
		t.Errorf("top hit score = %v, want 0.9", hits[0].Score)
	}
}

func TestCoordinatorFilterByMetadataDedupsAndSorts(t *testing.T) {
	co, servers, _ := setupCoordinator(t, 2)
	defer func() {
		for _, s := range servers {
			s.close()
		}
	}()

	for _, s := range servers {
		s.handlers[cluster.OpFilterByMetadata] = func(req cluster.ShardRequest) cluster.ShardResponse {
			return okResponse([]uint64{5, 3, 3, 1})
		}
	}

	ids, err := co.FilterByMetadata(context.Background(), "docs", map[string]string{"tag": "a"})
	if err != nil {
		t.Fatalf("FilterByMetadata: %v", err)
	}
	want := []uint64{1, 3, 5}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("got %v, want %v", ids, want)
		}
	}
}

func TestCoordinatorRequiresActiveShards(t *testing.T) {
	co, servers, sm := setupCoordinator(t, 1)
	defer func() {
		for _, s := range servers {
			s.close()
		}
	}()

	for _, sc := range sm.All() {
		sm.UpdateStatus(sc.ID, StatusFailed)
	}

	if _, err := co.CreateCollection(context.Background(), "docs", "Cosine", 3); !vdberrors.Is(err, vdberrors.RemoteUnavailable) {
		t.Errorf("expected RemoteUnavailable, got %v", err)
	}
}

func TestCoordinatorDumpAggregatesOutcomes(t *testing.T) {
	co, servers, _ := setupCoordinator(t, 2)
	defer func() {
		for _, s := range servers {
			s.close()
		}
	}()

	outcomes, err := co.Dump(context.Background())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
}
