package ring

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DefaultVirtualNodes is the number of tokens placed on the ring for each
// physical node when no explicit count is given.
const DefaultVirtualNodes = 100

// vnode represents a virtual node on the ring.
type vnode struct {
	token  uint32
	nodeID string
}

// Ring implements consistent hashing with virtual nodes.
//
// A Ring is not safe for concurrent use. The owning cluster serializes all
// access under its own lock; Snapshot provides a stable copy for computing
// placement against a previous membership.
type Ring struct {
	vnodesPerNode int
	vnodes        []vnode
	nodes         map[string]struct{}
}

// New creates an empty ring placing vnodesPerNode tokens per node.
func New(vnodesPerNode int) *Ring {
	if vnodesPerNode <= 0 {
		vnodesPerNode = DefaultVirtualNodes
	}
	return &Ring{
		vnodesPerNode: vnodesPerNode,
		vnodes:        make([]vnode, 0),
		nodes:         make(map[string]struct{}),
	}
}

// Hash maps a key onto the ring's 32-bit token space.
func Hash(key string) uint32 {
	return uint32(xxhash.Sum64String(key))
}

// Add registers a node and inserts its virtual node tokens.
// Re-adding an existing node reinstalls the same tokens and is a no-op.
func (r *Ring) Add(nodeID string) {
	if _, exists := r.nodes[nodeID]; exists {
		return
	}

	r.nodes[nodeID] = struct{}{}
	for i := 0; i < r.vnodesPerNode; i++ {
		token := Hash(nodeID + strconv.Itoa(i))
		v := vnode{token: token, nodeID: nodeID}
		// Insert in sorted order
		idx := sort.Search(len(r.vnodes), func(j int) bool {
			return r.vnodes[j].token >= token
		})
		r.vnodes = append(r.vnodes[:idx], append([]vnode{v}, r.vnodes[idx:]...)...)
	}
}

// Remove deletes a node and all of its virtual node tokens.
// Removing an unknown node is a no-op.
func (r *Ring) Remove(nodeID string) {
	if _, exists := r.nodes[nodeID]; !exists {
		return
	}

	delete(r.nodes, nodeID)
	kept := make([]vnode, 0, len(r.vnodes))
	for _, v := range r.vnodes {
		if v.nodeID != nodeID {
			kept = append(kept, v)
		}
	}
	r.vnodes = kept
}

// Primary returns the node owning the first token at or after the key's
// hash, wrapping at the top of the token space.
// Returns ("", false) if the ring is empty.
func (r *Ring) Primary(key string) (string, bool) {
	if len(r.vnodes) == 0 {
		return "", false
	}
	return r.vnodes[r.search(Hash(key))].nodeID, true
}

// Responsible returns up to count distinct node IDs for the key, in the
// order they are encountered walking the ring clockwise from the key's
// hash. When the ring holds fewer than count distinct nodes, all of them
// are returned; the walk visits each token at most once.
func (r *Ring) Responsible(key string, count int) []string {
	if len(r.vnodes) == 0 || count <= 0 {
		return nil
	}

	start := r.search(Hash(key))
	seen := make(map[string]struct{}, count)
	result := make([]string, 0, count)

	for i := 0; i < len(r.vnodes) && len(result) < count; i++ {
		id := r.vnodes[(start+i)%len(r.vnodes)].nodeID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}

	return result
}

// search returns the index of the first vnode with token >= t, wrapping
// to index 0 when t is greater than every token.
func (r *Ring) search(t uint32) int {
	idx := sort.Search(len(r.vnodes), func(i int) bool {
		return r.vnodes[i].token >= t
	})
	if idx >= len(r.vnodes) {
		idx = 0
	}
	return idx
}

// Nodes returns the IDs of all registered nodes in unspecified order.
func (r *Ring) Nodes() []string {
	nodes := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		nodes = append(nodes, id)
	}
	return nodes
}

// Size returns the number of registered physical nodes.
func (r *Ring) Size() int {
	return len(r.nodes)
}

// TokensFor returns the number of ring tokens owned by the given node.
func (r *Ring) TokensFor(nodeID string) int {
	n := 0
	for _, v := range r.vnodes {
		if v.nodeID == nodeID {
			n++
		}
	}
	return n
}

// Snapshot returns an independent copy of the ring. Membership changes use
// the copy to resolve placement under the previous membership while the
// live ring is being mutated.
func (r *Ring) Snapshot() *Ring {
	cp := &Ring{
		vnodesPerNode: r.vnodesPerNode,
		vnodes:        make([]vnode, len(r.vnodes)),
		nodes:         make(map[string]struct{}, len(r.nodes)),
	}
	copy(cp.vnodes, r.vnodes)
	for id := range r.nodes {
		cp.nodes[id] = struct{}{}
	}
	return cp
}
