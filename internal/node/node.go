package node

import (
	"fmt"

	"kvsim/internal/cache"
	"kvsim/internal/storage"
)

// Node is a single storage unit in the cluster. It binds one durable
// storage engine and one LRU read cache behind the put/get/remove triad
// the coordinator dispatches to.
type Node struct {
	id      string
	storage *storage.Engine
	cache   *cache.Cache
	peers   []string
}

// New creates a node whose write-ahead log lives under dir. An existing
// log for the same ID is recovered into the index.
func New(dir, id string, cacheSize int) (*Node, error) {
	engine, err := storage.Open(dir, id)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}

	return &Node{
		id:      id,
		storage: engine,
		cache:   cache.New(cacheSize),
	}, nil
}

// ID returns the node identifier.
func (n *Node) ID() string {
	return n.id
}

// Put durably stores the value, then updates the cache. The cache is left
// untouched when storage fails.
func (n *Node) Put(key string, value []byte) error {
	if err := n.storage.Put(key, value); err != nil {
		return err
	}
	n.cache.Put(key, value)
	return nil
}

// Get returns the value for key, consulting the cache first and falling
// back to storage. A storage hit populates the cache.
func (n *Node) Get(key string) ([]byte, bool) {
	if value, found := n.cache.Get(key); found {
		return value, true
	}

	value, found := n.storage.Get(key)
	if found {
		n.cache.Put(key, value)
	}
	return value, found
}

// Remove deletes key from storage and then from the cache. The cache entry
// is dropped even when the key was absent from storage, so a deleted key
// can never be served from cache.
func (n *Node) Remove(key string) (bool, error) {
	existed, err := n.storage.Remove(key)
	if err != nil {
		return false, err
	}
	n.cache.Remove(key)
	return existed, nil
}

// PutBatch stores all entries with a single log flush, then updates the
// cache entry by entry. Used by redistribution.
func (n *Node) PutBatch(entries map[string][]byte) error {
	if err := n.storage.PutBatch(entries); err != nil {
		return err
	}
	for key, value := range entries {
		n.cache.Put(key, value)
	}
	return nil
}

// RemoveBatch deletes all keys with a single log flush, then drops them
// from the cache. Used by redistribution.
func (n *Node) RemoveBatch(keys []string) error {
	if err := n.storage.RemoveBatch(keys); err != nil {
		return err
	}
	for _, key := range keys {
		n.cache.Remove(key)
	}
	return nil
}

// Keys returns a snapshot of the keys held by this node.
func (n *Node) Keys() []string {
	return n.storage.Keys()
}

// All returns a snapshot of all data held by this node.
func (n *Node) All() map[string][]byte {
	return n.storage.All()
}

// Len returns the number of keys held by this node.
func (n *Node) Len() int {
	return n.storage.Len()
}

// SetPeers records the replica peers for this node. Bookkeeping only; the
// coordinator performs the actual replicated writes.
func (n *Node) SetPeers(peers []string) {
	n.peers = append([]string(nil), peers...)
}

// Peers returns the replica peers recorded for this node.
func (n *Node) Peers() []string {
	return append([]string(nil), n.peers...)
}

// Close flushes and closes the node's storage, keeping its log on disk.
func (n *Node) Close() error {
	return n.storage.Close()
}

// Destroy closes the node and deletes its log file.
func (n *Node) Destroy() error {
	return n.storage.Destroy()
}
