package cluster

import (
	"errors"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"kvsim/internal/cache"
	"kvsim/internal/event"
	"kvsim/internal/node"
	"kvsim/internal/ring"
)

// ErrNoNodes is returned when a replicated write finds the ring empty.
var ErrNoNodes = errors.New("cluster: no nodes available")

// DefaultReplicationFactor is the number of replicas per key (including
// the primary) when no explicit factor is given.
const DefaultReplicationFactor = 3

// Options configures a cluster.
type Options struct {
	// DataDir is the directory holding every node's write-ahead log.
	DataDir string
	// ReplicationFactor is the number of replicas per key.
	ReplicationFactor int
	// VirtualNodes is the number of ring tokens per node.
	VirtualNodes int
	// CacheSize is the per-node read cache capacity.
	CacheSize int
	// Sink receives typed cluster events. Defaults to a no-op sink.
	Sink event.Sink
	// Logger carries operational warnings. Defaults to the logrus
	// standard logger.
	Logger *logrus.Logger
}

// Cluster coordinates a set of nodes: it owns the placement ring,
// serializes membership changes, dispatches replicated reads and writes,
// and redistributes data incrementally when membership changes.
//
// The cluster lock is held shared for Put/Get/Remove and exclusively for
// AddNode/RemoveNode, so membership changes appear atomic to ongoing
// operations.
type Cluster struct {
	mu        sync.RWMutex
	nodes     map[string]*node.Node
	ring      *ring.Ring
	rf        int
	dataDir   string
	cacheSize int
	sink      event.Sink
	log       *logrus.Logger
}

// New creates an empty cluster.
func New(opts Options) *Cluster {
	if opts.ReplicationFactor <= 0 {
		opts.ReplicationFactor = DefaultReplicationFactor
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = cache.DefaultCapacity
	}
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	if opts.Sink == nil {
		opts.Sink = event.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Cluster{
		nodes:     make(map[string]*node.Node),
		ring:      ring.New(opts.VirtualNodes),
		rf:        opts.ReplicationFactor,
		dataDir:   opts.DataDir,
		cacheSize: opts.CacheSize,
		sink:      opts.Sink,
		log:       opts.Logger,
	}
}

// Put replicates the value onto every responsible node. Fails with
// ErrNoNodes on an empty ring; a durability failure on any replica is
// returned after the remaining replicas were attempted.
func (c *Cluster) Put(key string, value []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	targets := c.ring.Responsible(key, c.rf)
	if len(targets) == 0 {
		return ErrNoNodes
	}
	c.warnUnderReplicated(key, len(targets))

	var firstErr error
	for _, id := range targets {
		n, ok := c.nodes[id]
		if !ok {
			continue
		}
		if err := n.Put(key, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Get returns the first value found among the responsible nodes, in ring
// order. An empty ring or a fully absent key reads as not found.
func (c *Cluster) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.ring.Responsible(key, c.rf) {
		n, ok := c.nodes[id]
		if !ok {
			continue
		}
		if value, found := n.Get(key); found {
			return value, true
		}
	}
	return nil, false
}

// Remove deletes the key from every responsible node and reports whether
// any replica held it. An empty ring reads as false.
func (c *Cluster) Remove(key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	targets := c.ring.Responsible(key, c.rf)
	if len(targets) == 0 {
		return false, nil
	}
	c.warnUnderReplicated(key, len(targets))

	existed := false
	var firstErr error
	for _, id := range targets {
		n, ok := c.nodes[id]
		if !ok {
			continue
		}
		ok, err := n.Remove(key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		existed = existed || ok
	}
	return existed, firstErr
}

// warnUnderReplicated logs and emits when fewer than RF nodes are
// available for a replicated write. Callers proceed regardless.
func (c *Cluster) warnUnderReplicated(key string, got int) {
	if got >= c.rf {
		return
	}
	c.log.WithFields(logrus.Fields{"key": key, "want": c.rf, "got": got}).
		Warn("fewer responsible nodes than replication factor")
	c.sink.Emit(event.UnderReplicated{Key: key, Want: c.rf, Got: got})
}

// NodeStats describes one node's share of the cluster's data.
type NodeStats struct {
	ID      string
	Keys    int
	Percent float64
}

// Stats reports per-node key counts and percentages, sorted by node ID.
// Purely observational; percentages are of the key total across nodes,
// replicas counted separately.
func (c *Cluster) Stats() []NodeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]NodeStats, 0, len(c.nodes))
	total := 0
	for id, n := range c.nodes {
		count := n.Len()
		total += count
		stats = append(stats, NodeStats{ID: id, Keys: count})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })

	if total > 0 {
		for i := range stats {
			stats[i].Percent = float64(stats[i].Keys) / float64(total) * 100
		}
	}
	return stats
}

// Nodes returns the IDs of all cluster members, sorted.
func (c *Cluster) Nodes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Size returns the number of cluster members.
func (c *Cluster) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

// ReplicationFactor returns the configured replication factor.
func (c *Cluster) ReplicationFactor() int {
	return c.rf
}

// Close shuts down every node, keeping their logs on disk so a future
// cluster over the same data directory recovers the data.
func (c *Cluster) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for id, n := range c.nodes {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.ring.Remove(id)
	}
	c.nodes = make(map[string]*node.Node)
	return firstErr
}
