// Package config loads the JSON configuration file described by spec.md §6.
// The shape is fully prescribed field-by-field (server.role, server.host,
// server.port, path, sharding.enabled, sharding.strategy, sharding.shards[]),
// so this loader is a plain encoding/json struct decode rather than a
// layered/merged configuration library — see DESIGN.md for why no
// third-party config library earns its keep here.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Role selects which half of the system a node boots into.
type Role string

const (
	// RoleCoordinator runs the public user API and fans out to shards.
	RoleCoordinator Role = "coordinator"
	// RoleShard runs only the internal RPC surface over a LocalEngine.
	RoleShard Role = "shard"
)

// StrategyName selects a ShardManager routing strategy. Only HashBased is
// fully specified (spec.md §4.7); the others are accepted and behave
// identically until a real strategy is implemented for them.
type StrategyName string

const (
	StrategyHashBased     StrategyName = "hash_based"
	StrategyRangeBased    StrategyName = "range_based"
	StrategyLSHBased      StrategyName = "lsh_based"
	StrategyMetadataBased StrategyName = "metadata_based"
)

// ShardConfig describes one configured shard, as listed under
// sharding.shards[] in the JSON file.
type ShardConfig struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Description string `json:"description,omitempty"`
}

// Addr formats host:port for this shard.
func (s ShardConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Server holds the HTTP bind configuration.
type Server struct {
	Role Role   `json:"role"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Sharding holds the coordinator's view of the cluster: whether sharding is
// active, which routing strategy to use, and the configured shard list.
type Sharding struct {
	Enabled  bool          `json:"enabled"`
	Strategy StrategyName  `json:"strategy"`
	Shards   []ShardConfig `json:"shards"`
}

// Config is the top-level configuration document, JSON-decoded verbatim from
// the file named on the command line.
type Config struct {
	Server   Server   `json:"server"`
	Path     string   `json:"path"`
	Sharding Sharding `json:"sharding"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Server.Role != RoleCoordinator && cfg.Server.Role != RoleShard {
		return nil, fmt.Errorf("config %s: server.role must be %q or %q, got %q", path, RoleCoordinator, RoleShard, cfg.Server.Role)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("config %s: path must be set", path)
	}

	return &cfg, nil
}

// Addr formats the configured host:port for net/http.Server.Addr.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
