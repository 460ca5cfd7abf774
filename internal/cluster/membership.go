package cluster

import (
	"sort"

	"kvsim/internal/event"
	"kvsim/internal/node"
	"kvsim/internal/ring"
)

// AddNode creates a node, registers its ring tokens, and pulls onto it the
// keys whose primary ownership it takes over. Adding an ID that already
// exists replaces the node object over the same log file; its tokens are
// already on the ring, so no data moves.
func (c *Cluster) AddNode(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, exists := c.nodes[id]; exists {
		if err := old.Close(); err != nil {
			return err
		}
	}

	n, err := node.New(c.dataDir, id, c.cacheSize)
	if err != nil {
		return err
	}
	c.nodes[id] = n

	oldRing := c.ring.Snapshot()
	c.ring.Add(id)

	moved, err := c.redistributeOnAdd(id, oldRing)
	if err != nil {
		return err
	}
	c.refreshPeers()

	c.sink.Emit(event.NodeAdded{ID: id, Moved: moved})
	return nil
}

// RemoveNode pushes the departing node's data to its new owners, removes
// the node's tokens, and deletes its log file. Removing an unknown ID is
// a silent no-op.
func (c *Cluster) RemoveNode(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	victim, exists := c.nodes[id]
	if !exists {
		return nil
	}

	oldRing := c.ring.Snapshot()
	moved, err := c.redistributeOnRemove(id, oldRing)
	if err != nil {
		return err
	}

	c.ring.Remove(id)
	delete(c.nodes, id)
	if err := victim.Destroy(); err != nil {
		return err
	}
	c.refreshPeers()

	c.sink.Emit(event.NodeRemoved{ID: id, Moved: moved})
	return nil
}

// redistributeOnAdd moves onto newID the keys of every other node whose
// primary was that node under oldRing and is newID under the current
// ring. Only primary ownership is considered, which bounds the movement
// to the added node's share of the keyspace.
func (c *Cluster) redistributeOnAdd(newID string, oldRing *ring.Ring) (int, error) {
	dst := c.nodes[newID]
	total := 0

	for _, srcID := range c.memberIDs() {
		if srcID == newID {
			continue
		}
		src := c.nodes[srcID]

		taken := make(map[string][]byte)
		for key, value := range src.All() {
			oldPrimary, _ := oldRing.Primary(key)
			if oldPrimary != srcID {
				continue
			}
			if newPrimary, _ := c.ring.Primary(key); newPrimary != newID {
				continue
			}
			taken[key] = value
		}
		if len(taken) == 0 {
			continue
		}

		if err := dst.PutBatch(taken); err != nil {
			return total, err
		}
		keys := make([]string, 0, len(taken))
		for key := range taken {
			keys = append(keys, key)
		}
		if err := src.RemoveBatch(keys); err != nil {
			return total, err
		}

		c.sink.Emit(event.KeysMoved{From: srcID, To: newID, Count: len(taken)})
		total += len(taken)
	}
	return total, nil
}

// redistributeOnRemove pushes every key on the departing node to the key's
// primary under the membership without that node, batched per destination.
// The departing node itself is not cleaned up here; the caller destroys it.
func (c *Cluster) redistributeOnRemove(id string, oldRing *ring.Ring) (int, error) {
	survivors := oldRing.Snapshot()
	survivors.Remove(id)

	outbound := make(map[string]map[string][]byte)
	for key, value := range c.nodes[id].All() {
		dstID, ok := survivors.Primary(key)
		if !ok {
			// Last node leaving; nothing to move to.
			continue
		}
		if outbound[dstID] == nil {
			outbound[dstID] = make(map[string][]byte)
		}
		outbound[dstID][key] = value
	}

	dstIDs := make([]string, 0, len(outbound))
	for dstID := range outbound {
		dstIDs = append(dstIDs, dstID)
	}
	sort.Strings(dstIDs)

	total := 0
	for _, dstID := range dstIDs {
		batch := outbound[dstID]
		dst, ok := c.nodes[dstID]
		if !ok {
			continue
		}
		if err := dst.PutBatch(batch); err != nil {
			return total, err
		}
		c.sink.Emit(event.KeysMoved{From: id, To: dstID, Count: len(batch)})
		total += len(batch)
	}
	return total, nil
}

// refreshPeers recomputes each node's replica peer list from the current
// ring.
func (c *Cluster) refreshPeers() {
	for id, n := range c.nodes {
		peers := make([]string, 0, c.rf)
		for _, peer := range c.ring.Responsible(id, c.rf) {
			if peer != id {
				peers = append(peers, peer)
			}
		}
		n.SetPeers(peers)
	}
}

// memberIDs returns the member node IDs sorted, for deterministic
// redistribution order.
func (c *Cluster) memberIDs() []string {
	ids := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
