package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadCoordinatorConfig(t *testing.T) {
	path := writeTempConfig(t, `{
		"server": {"role": "coordinator", "host": "0.0.0.0", "port": 8080},
		"path": "/var/lib/vecdb",
		"sharding": {
			"enabled": true,
			"strategy": "hash_based",
			"shards": [
				{"id": "shard-1", "host": "127.0.0.1", "port": 9001},
				{"id": "shard-2", "host": "127.0.0.1", "port": 9002, "description": "replica"}
			]
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Role != RoleCoordinator {
		t.Errorf("role = %q, want %q", cfg.Server.Role, RoleCoordinator)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if !cfg.Sharding.Enabled || cfg.Sharding.Strategy != StrategyHashBased {
		t.Errorf("unexpected sharding config: %+v", cfg.Sharding)
	}
	if len(cfg.Sharding.Shards) != 2 || cfg.Sharding.Shards[0].ID != "shard-1" {
		t.Errorf("unexpected shards: %+v", cfg.Sharding.Shards)
	}
}

func TestLoadRejectsUnknownRole(t *testing.T) {
	path := writeTempConfig(t, `{"server": {"role": "bogus"}, "path": "/data"}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestLoadRejectsMissingPath(t *testing.T) {
	path := writeTempConfig(t, `{"server": {"role": "shard"}}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
