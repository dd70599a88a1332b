package coordinator

import (
	"fmt"
	"sync"

	"github.com/dreamware/vecdb/internal/config"
	"github.com/dreamware/vecdb/internal/lsh"
	"github.com/dreamware/vecdb/internal/vdberrors"
)

// Status is a ShardDescriptor's runtime lifecycle state (spec.md §3, §4.11).
type Status string

const (
	StatusActive      Status = "Active"
	StatusInactive    Status = "Inactive"
	StatusMaintenance Status = "Maintenance"
	StatusFailed      Status = "Failed"
)

// ShardDescriptor is the coordinator's view of one configured shard
// (spec.md §3).
type ShardDescriptor struct {
	Collections map[string]struct{}
	ID          string
	Host        string
	Description string
	Status      Status
	Port        int
}

// Addr returns the descriptor's host:port.
func (d ShardDescriptor) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// RoutingStrategy decides which shard index owns a collection name or
// bucket id. spec.md §4.7/§9 require RangeBased, LSHBased, and
// MetadataBased to alias HashBased until a real design is specified; this
// interface exists so that swap is a new struct, not a rewrite (grounded on
// original_source/src/core/sharding.rs's RoutingStrategy enum).
type RoutingStrategy interface {
	Name() config.StrategyName
	OwnerIndex(collectionName string, shardCount int) int
	OwnerIndexForBucket(bucketID uint64, shardCount int) int
}

// hashStrategy implements spec.md §4.7's HashBased routing: the owner of a
// collection name is shards[fold64(name) mod len(shards)], and the owner of
// a bucket id is shards[bucketID mod len(shards)]. fold64 is the exact
// combiner internal/lsh's Hasher uses, so routing and bucket hashing share
// one frozen 64-bit hash family.
type hashStrategy struct{}

func (hashStrategy) Name() config.StrategyName { return config.StrategyHashBased }

func (hashStrategy) OwnerIndex(collectionName string, shardCount int) int {
	if shardCount <= 0 {
		return -1
	}
	return int(lsh.FoldString(collectionName) % uint64(shardCount))
}

func (hashStrategy) OwnerIndexForBucket(bucketID uint64, shardCount int) int {
	if shardCount <= 0 {
		return -1
	}
	return int(bucketID % uint64(shardCount))
}

// rangeStrategy, lshStrategy, and metadataStrategy are declared but not yet
// independently specified (spec.md §4.7): each embeds hashStrategy and
// behaves identically to HashBased until extended.
type rangeStrategy struct{ hashStrategy }

func (rangeStrategy) Name() config.StrategyName { return config.StrategyRangeBased }

type lshStrategy struct{ hashStrategy }

func (lshStrategy) Name() config.StrategyName { return config.StrategyLSHBased }

type metadataStrategy struct{ hashStrategy }

func (metadataStrategy) Name() config.StrategyName { return config.StrategyMetadataBased }

// NewRoutingStrategy resolves a config.StrategyName to its RoutingStrategy
// implementation.
func NewRoutingStrategy(name config.StrategyName) (RoutingStrategy, error) {
	switch name {
	case config.StrategyHashBased:
		return hashStrategy{}, nil
	case config.StrategyRangeBased:
		return rangeStrategy{}, nil
	case config.StrategyLSHBased:
		return lshStrategy{}, nil
	case config.StrategyMetadataBased:
		return metadataStrategy{}, nil
	default:
		return nil, vdberrors.New(vdberrors.InvalidArgument, "unknown sharding strategy %q", name)
	}
}

// defaultReplicationFactor is the configuration knob spec.md §4.7 reserves
// for future replica placement; the operations specified here only ever
// consult the primary, so this value is recorded but unused beyond
// ShardManager.ReplicationFactor().
const defaultReplicationFactor = 2

// ShardManager holds the ordered list of configured shards, their current
// status, and the active RoutingStrategy (spec.md §4.7).
type ShardManager struct {
	mu                sync.RWMutex
	shards            []*ShardDescriptor
	byID              map[string]int
	strategy          RoutingStrategy
	replicationFactor int
}

// NewShardManager builds a ShardManager from configured shards, all
// initially Active.
func NewShardManager(shardConfigs []config.ShardConfig, strategy RoutingStrategy) *ShardManager {
	sm := &ShardManager{
		byID:              make(map[string]int, len(shardConfigs)),
		strategy:          strategy,
		replicationFactor: defaultReplicationFactor,
	}
	for i, sc := range shardConfigs {
		sm.shards = append(sm.shards, &ShardDescriptor{
			ID:          sc.ID,
			Host:        sc.Host,
			Port:        sc.Port,
			Description: sc.Description,
			Status:      StatusActive,
			Collections: make(map[string]struct{}),
		})
		sm.byID[sc.ID] = i
	}
	return sm
}

// ReplicationFactor returns the configured replication factor. Secondary
// placement is reserved for future work (spec.md §4.7); only the primary
// shard a RoutingStrategy names is ever consulted by this core.
func (sm *ShardManager) ReplicationFactor() int {
	return sm.replicationFactor
}

// GetActiveShards returns every shard currently in StatusActive.
func (sm *ShardManager) GetActiveShards() []*ShardDescriptor {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var active []*ShardDescriptor
	for _, d := range sm.shards {
		if d.Status == StatusActive {
			cp := *d
			active = append(active, &cp)
		}
	}
	return active
}

// All returns every configured shard regardless of status.
func (sm *ShardManager) All() []*ShardDescriptor {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]*ShardDescriptor, len(sm.shards))
	for i, d := range sm.shards {
		cp := *d
		out[i] = &cp
	}
	return out
}

// OwnerForCollection resolves the owning shard for a collection name among
// active shards only (spec.md §4.11: "routing MUST skip non-Active shards
// for new placements").
func (sm *ShardManager) OwnerForCollection(collectionName string) (*ShardDescriptor, error) {
	active := sm.GetActiveShards()
	if len(active) == 0 {
		return nil, vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}
	idx := sm.strategy.OwnerIndex(collectionName, len(active))
	return active[idx], nil
}

// OwnerForBucket resolves the owning shard for a bucket id among active
// shards only.
func (sm *ShardManager) OwnerForBucket(bucketID uint64) (*ShardDescriptor, error) {
	active := sm.GetActiveShards()
	if len(active) == 0 {
		return nil, vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}
	idx := sm.strategy.OwnerIndexForBucket(bucketID, len(active))
	return active[idx], nil
}

// UpdateStatus transitions a shard's status (spec.md §4.7 update_status).
func (sm *ShardManager) UpdateStatus(shardID string, status Status) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	i, ok := sm.byID[shardID]
	if !ok {
		return vdberrors.New(vdberrors.NotFound, "shard %q not configured", shardID)
	}
	sm.shards[i].Status = status
	return nil
}

// AddCollectionToShard records that shardID now owns collectionName
// (spec.md §4.7 add_collection_to_shard).
func (sm *ShardManager) AddCollectionToShard(shardID, collectionName string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	i, ok := sm.byID[shardID]
	if !ok {
		return vdberrors.New(vdberrors.NotFound, "shard %q not configured", shardID)
	}
	sm.shards[i].Collections[collectionName] = struct{}{}
	return nil
}

// RemoveCollectionFromShard reverses AddCollectionToShard (spec.md §4.7
// remove_collection_from_shard).
func (sm *ShardManager) RemoveCollectionFromShard(shardID, collectionName string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	i, ok := sm.byID[shardID]
	if !ok {
		return vdberrors.New(vdberrors.NotFound, "shard %q not configured", shardID)
	}
	delete(sm.shards[i].Collections, collectionName)
	return nil
}

// Get returns a copy of one shard's descriptor by id.
func (sm *ShardManager) Get(shardID string) (*ShardDescriptor, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	i, ok := sm.byID[shardID]
	if !ok {
		return nil, vdberrors.New(vdberrors.NotFound, "shard %q not configured", shardID)
	}
	cp := *sm.shards[i]
	return &cp, nil
}
