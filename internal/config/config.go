package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"kvsim/internal/cache"
	"kvsim/internal/cluster"
	"kvsim/internal/ring"
)

// Config holds the cluster configuration.
type Config struct {
	// DataDir is where every node's write-ahead log is placed.
	DataDir string `yaml:"dataDir"`
	// ReplicationFactor is the number of replicas per key.
	ReplicationFactor int `yaml:"replicationFactor"`
	// VirtualNodes is the number of ring tokens per node.
	VirtualNodes int `yaml:"virtualNodes"`
	// CacheSize is the per-node read cache capacity.
	CacheSize int `yaml:"cacheSize"`
	// Nodes are the node IDs to start the cluster with.
	Nodes []string `yaml:"nodes"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir:           ".",
		ReplicationFactor: cluster.DefaultReplicationFactor,
		VirtualNodes:      ring.DefaultVirtualNodes,
		CacheSize:         cache.DefaultCapacity,
		Nodes:             []string{"node1", "node2", "node3"},
	}
}

// Load reads a YAML config file. Omitted fields keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if c.ReplicationFactor < 1 {
		return fmt.Errorf("replication factor must be >= 1, got %d", c.ReplicationFactor)
	}
	if c.VirtualNodes < 1 {
		return fmt.Errorf("virtual nodes must be >= 1, got %d", c.VirtualNodes)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache size must be >= 1, got %d", c.CacheSize)
	}
	for _, id := range c.Nodes {
		if id == "" {
			return fmt.Errorf("node ID cannot be empty")
		}
		if strings.ContainsAny(id, " \t\n/") {
			return fmt.Errorf("node ID %q contains invalid characters", id)
		}
	}
	return nil
}

// ParseNodes parses a comma-separated list of node IDs:
// "n1,n2,n3"
func ParseNodes(nodesStr string) ([]string, error) {
	if nodesStr == "" {
		return []string{}, nil
	}

	parts := strings.Split(nodesStr, ",")
	nodes := make([]string, 0, len(parts))

	for _, part := range parts {
		id := strings.TrimSpace(part)
		if id == "" {
			return nil, fmt.Errorf("node ID cannot be empty in list %q", nodesStr)
		}
		nodes = append(nodes, id)
	}

	return nodes, nil
}

// ClusterOptions converts the configuration into cluster options.
func (c Config) ClusterOptions() cluster.Options {
	return cluster.Options{
		DataDir:           c.DataDir,
		ReplicationFactor: c.ReplicationFactor,
		VirtualNodes:      c.VirtualNodes,
		CacheSize:         c.CacheSize,
	}
}
