// Package coordinator provides the cluster coordination server functionality.
// This file implements health monitoring for configured shards.
package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dreamware/vecdb/internal/logging"
)

// ShardHealth tracks the health status of a single shard.
// It maintains the current status, last successful check time, and failure count.
// Thread-safe: protected by HealthMonitor's mutex when accessed.
type ShardHealth struct {
	LastCheck        time.Time
	LastHealthy      time.Time
	ShardID          string
	Status           string
	ConsecutiveFails int
}

// HealthMonitor performs periodic health checks on every shard a ShardManager
// knows about (spec.md §4.8: health-check deadline 5s) and drives the
// Active⇄Failed transitions in spec.md §4.11. Thread-safe: all
// methods are safe for concurrent access.
type HealthMonitor struct {
	health         map[string]*ShardHealth
	httpClient     *http.Client
	log            *logging.Logger
	checkFunc      func(addr string) error
	onStatusChange func(shardID string, status Status)
	manager        *ShardManager
	ctx            context.Context
	cancel         context.CancelFunc
	interval       time.Duration
	timeout        time.Duration
	mu             sync.RWMutex
	wg             sync.WaitGroup
	maxFailures    int
}

// NewHealthMonitor creates a health monitor that polls manager's shards every
// interval via GET /health, with a 5s per-check deadline (spec.md §4.8).
// Shards are marked Failed after 3 consecutive failures and restored to
// Active on the next successful check. log receives nil-safe fallback to a
// no-op logger so callers that don't care about health-transition output
// don't need to build one.
func NewHealthMonitor(manager *ShardManager, interval time.Duration, log *logging.Logger) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logging.Nop()
	}

	return &HealthMonitor{
		manager:     manager,
		interval:    interval,
		timeout:     5 * time.Second,
		maxFailures: 3,
		health:      make(map[string]*ShardHealth),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetOnStatusChange sets the callback invoked whenever a shard transitions
// between Active and Failed. Typically used to log or alert.
func (h *HealthMonitor) SetOnStatusChange(callback func(shardID string, status Status)) {
	h.onStatusChange = callback
}

// Start begins the health monitoring loop in the current goroutine, blocking
// until ctx is canceled or Stop is called.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.wg.Add(1)
	defer h.wg.Done()

	if ctx == nil {
		ctx = h.ctx
	}
	if h.checkFunc == nil {
		h.checkFunc = h.defaultHealthCheck
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.log.Infow("health monitor started", "interval", h.interval)

	h.checkAllShards()

	for {
		select {
		case <-ticker.C:
			h.checkAllShards()
		case <-ctx.Done():
			h.log.Infow("health monitor stopping", "reason", "context canceled")
			return
		case <-h.ctx.Done():
			h.log.Infow("health monitor stopping", "reason", "internal cancellation")
			return
		}
	}
}

// Stop gracefully shuts down the health monitor.
func (h *HealthMonitor) Stop() {
	h.cancel()
	h.wg.Wait()
	h.log.Infow("health monitor stopped")
}

// checkAllShards performs health checks on every configured shard and
// reconciles tracking for shards that are no longer configured.
func (h *HealthMonitor) checkAllShards() {
	shards := h.manager.All()

	current := make(map[string]bool, len(shards))
	for _, shard := range shards {
		current[shard.ID] = true
		h.checkShard(shard)
	}

	h.mu.Lock()
	for id := range h.health {
		if !current[id] {
			delete(h.health, id)
		}
	}
	h.mu.Unlock()
}

// checkShard performs a health check on a single shard and transitions its
// ShardManager status on failure-threshold crossing or recovery.
func (h *HealthMonitor) checkShard(shard *ShardDescriptor) {
	h.mu.Lock()
	health, exists := h.health[shard.ID]
	if !exists {
		health = &ShardHealth{
			ShardID:     shard.ID,
			Status:      "unknown",
			LastCheck:   time.Now(),
			LastHealthy: time.Now(),
		}
		h.health[shard.ID] = health
	}
	h.mu.Unlock()

	err := h.checkFunc(shard.Addr())

	h.mu.Lock()
	health.LastCheck = time.Now()

	if err != nil {
		health.ConsecutiveFails++
		h.log.Warnw("health check failed", "shard_id", shard.ID,
			"attempt", health.ConsecutiveFails, "max_failures", h.maxFailures, "error", err)

		if health.ConsecutiveFails >= h.maxFailures && health.Status != "failed" {
			health.Status = "failed"
			h.mu.Unlock()

			h.manager.UpdateStatus(shard.ID, StatusFailed)
			if h.onStatusChange != nil {
				h.onStatusChange(shard.ID, StatusFailed)
			}
			return
		}
		h.mu.Unlock()
		return
	}

	wasFailed := health.Status == "failed"
	health.Status = "healthy"
	health.ConsecutiveFails = 0
	health.LastHealthy = time.Now()
	h.mu.Unlock()

	if wasFailed {
		h.log.Infow("shard recovered, marking active", "shard_id", shard.ID)
		h.manager.UpdateStatus(shard.ID, StatusActive)
		if h.onStatusChange != nil {
			h.onStatusChange(shard.ID, StatusActive)
		}
	}
}

// defaultHealthCheck performs an HTTP GET against addr's /health endpoint.
func (h *HealthMonitor) defaultHealthCheck(addr string) error {
	url := addr
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		url = fmt.Sprintf("http://%s", addr)
	}
	if !strings.HasSuffix(url, "/health") {
		url = strings.TrimRight(url, "/") + "/health"
	}

	resp, err := h.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// GetShardHealth returns the current health record for shardID, or nil if
// it is not being monitored.
func (h *HealthMonitor) GetShardHealth(shardID string) *ShardHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.health[shardID]
	if !exists {
		return nil
	}
	cp := *health
	return &cp
}

// GetAllShardHealth returns a snapshot of every monitored shard's health.
func (h *HealthMonitor) GetAllShardHealth() map[string]*ShardHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[string]*ShardHealth, len(h.health))
	for id, health := range h.health {
		cp := *health
		result[id] = &cp
	}
	return result
}

// IsHealthy reports whether shardID's last check succeeded.
func (h *HealthMonitor) IsHealthy(shardID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health, exists := h.health[shardID]
	if !exists {
		return false
	}
	return health.Status == "healthy"
}

// SetCheckFunction overrides the default health check function, primarily
// for testing.
func (h *HealthMonitor) SetCheckFunction(checkFunc func(addr string) error) {
	h.checkFunc = checkFunc
}
