package coordinator

import (
	"testing"

	"github.com/dreamware/vecdb/internal/config"
	"github.com/dreamware/vecdb/internal/vdberrors"
)

func threeShardConfigs() []config.ShardConfig {
	return []config.ShardConfig{
		{ID: "shard-0", Host: "localhost", Port: 9001},
		{ID: "shard-1", Host: "localhost", Port: 9002},
		{ID: "shard-2", Host: "localhost", Port: 9003},
	}
}

func TestNewRoutingStrategyResolvesAllNames(t *testing.T) {
	for _, name := range []config.StrategyName{
		config.StrategyHashBased,
		config.StrategyRangeBased,
		config.StrategyLSHBased,
		config.StrategyMetadataBased,
	} {
		s, err := NewRoutingStrategy(name)
		if err != nil {
			t.Fatalf("NewRoutingStrategy(%q): %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("Name() = %q, want %q", s.Name(), name)
		}
	}

	if _, err := NewRoutingStrategy("bogus"); !vdberrors.Is(err, vdberrors.InvalidArgument) {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestNonHashStrategiesAliasHashBased(t *testing.T) {
	hash, _ := NewRoutingStrategy(config.StrategyHashBased)
	others := []config.StrategyName{config.StrategyRangeBased, config.StrategyLSHBased, config.StrategyMetadataBased}

	for _, name := range others {
		s, _ := NewRoutingStrategy(name)
		if s.OwnerIndex("docs", 5) != hash.OwnerIndex("docs", 5) {
			t.Errorf("%s diverged from hash-based for collection routing", name)
		}
		if s.OwnerIndexForBucket(42, 5) != hash.OwnerIndexForBucket(42, 5) {
			t.Errorf("%s diverged from hash-based for bucket routing", name)
		}
	}
}

func TestHashStrategyOwnerIndexDeterministic(t *testing.T) {
	s, _ := NewRoutingStrategy(config.StrategyHashBased)
	a := s.OwnerIndex("docs", 4)
	b := s.OwnerIndex("docs", 4)
	if a != b {
		t.Errorf("OwnerIndex not deterministic: %d vs %d", a, b)
	}
	if a < 0 || a >= 4 {
		t.Errorf("OwnerIndex out of range: %d", a)
	}
}

func TestHashStrategyRejectsZeroShards(t *testing.T) {
	s, _ := NewRoutingStrategy(config.StrategyHashBased)
	if s.OwnerIndex("docs", 0) != -1 {
		t.Errorf("expected -1 for zero shard count")
	}
	if s.OwnerIndexForBucket(1, 0) != -1 {
		t.Errorf("expected -1 for zero shard count")
	}
}

func TestShardManagerGetActiveShards(t *testing.T) {
	strategy, _ := NewRoutingStrategy(config.StrategyHashBased)
	sm := NewShardManager(threeShardConfigs(), strategy)

	active := sm.GetActiveShards()
	if len(active) != 3 {
		t.Fatalf("got %d active shards, want 3", len(active))
	}

	if err := sm.UpdateStatus("shard-1", StatusFailed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	active = sm.GetActiveShards()
	if len(active) != 2 {
		t.Errorf("got %d active shards after failing one, want 2", len(active))
	}

	all := sm.All()
	if len(all) != 3 {
		t.Errorf("got %d shards from All(), want 3", len(all))
	}
}

func TestShardManagerUpdateStatusUnknownShard(t *testing.T) {
	strategy, _ := NewRoutingStrategy(config.StrategyHashBased)
	sm := NewShardManager(threeShardConfigs(), strategy)

	if err := sm.UpdateStatus("shard-99", StatusFailed); !vdberrors.Is(err, vdberrors.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestOwnerForCollectionSkipsNonActive(t *testing.T) {
	strategy, _ := NewRoutingStrategy(config.StrategyHashBased)
	sm := NewShardManager(threeShardConfigs(), strategy)

	owner, err := sm.OwnerForCollection("docs")
	if err != nil {
		t.Fatalf("OwnerForCollection: %v", err)
	}
	if owner.Status != StatusActive {
		t.Errorf("owner not active: %+v", owner)
	}

	for _, sc := range threeShardConfigs() {
		sm.UpdateStatus(sc.ID, StatusFailed)
	}
	if _, err := sm.OwnerForCollection("docs"); !vdberrors.Is(err, vdberrors.RemoteUnavailable) {
		t.Errorf("expected RemoteUnavailable with no active shards, got %v", err)
	}
	if _, err := sm.OwnerForBucket(7); !vdberrors.Is(err, vdberrors.RemoteUnavailable) {
		t.Errorf("expected RemoteUnavailable with no active shards, got %v", err)
	}
}

func TestAddAndRemoveCollectionFromShard(t *testing.T) {
	strategy, _ := NewRoutingStrategy(config.StrategyHashBased)
	sm := NewShardManager(threeShardConfigs(), strategy)

	if err := sm.AddCollectionToShard("shard-0", "docs"); err != nil {
		t.Fatalf("AddCollectionToShard: %v", err)
	}
	got, err := sm.Get("shard-0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := got.Collections["docs"]; !ok {
		t.Errorf("expected docs in shard-0's collections: %+v", got.Collections)
	}

	if err := sm.RemoveCollectionFromShard("shard-0", "docs"); err != nil {
		t.Fatalf("RemoveCollectionFromShard: %v", err)
	}
	got, _ = sm.Get("shard-0")
	if _, ok := got.Collections["docs"]; ok {
		t.Errorf("expected docs removed from shard-0's collections: %+v", got.Collections)
	}

	if err := sm.AddCollectionToShard("shard-99", "docs"); !vdberrors.Is(err, vdberrors.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
	if err := sm.RemoveCollectionFromShard("shard-99", "docs"); !vdberrors.Is(err, vdberrors.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestGetUnknownShard(t *testing.T) {
	strategy, _ := NewRoutingStrategy(config.StrategyHashBased)
	sm := NewShardManager(threeShardConfigs(), strategy)

	if _, err := sm.Get("shard-99"); !vdberrors.Is(err, vdberrors.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestReplicationFactorDefault(t *testing.T) {
	strategy, _ := NewRoutingStrategy(config.StrategyHashBased)
	sm := NewShardManager(threeShardConfigs(), strategy)
	if sm.ReplicationFactor() != defaultReplicationFactor {
		t.Errorf("ReplicationFactor() = %d, want %d", sm.ReplicationFactor(), defaultReplicationFactor)
	}
}

func TestShardDescriptorAddr(t *testing.T) {
	d := ShardDescriptor{Host: "10.0.0.5", Port: 9100}
	if d.Addr() != "10.0.0.5:9100" {
		t.Errorf("Addr() = %q, want %q", d.Addr(), "10.0.0.5:9100")
	}
}
