package cluster

import (
	"errors"
	"fmt"
	"testing"

	"kvsim/internal/event"
)

func newTestCluster(t *testing.T, rf int, nodeIDs ...string) *Cluster {
	t.Helper()
	c := New(Options{
		DataDir:           t.TempDir(),
		ReplicationFactor: rf,
		VirtualNodes:      64,
		CacheSize:         100,
	})
	for _, id := range nodeIDs {
		if err := c.AddNode(id); err != nil {
			t.Fatalf("AddNode(%s) failed: %v", id, err)
		}
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCluster_PutGet(t *testing.T) {
	c := newTestCluster(t, 3, "n1", "n2", "n3")

	if err := c.Put("user:1", []byte("Alice")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	value, found := c.Get("user:1")
	if !found {
		t.Fatal("Expected user:1 to be readable")
	}
	if string(value) != "Alice" {
		t.Errorf("Expected 'Alice', got '%s'", string(value))
	}
}

func TestCluster_GetMissing(t *testing.T) {
	c := newTestCluster(t, 3, "n1", "n2", "n3")

	if _, found := c.Get("nonexistent"); found {
		t.Error("Expected not-found for missing key")
	}
}

func TestCluster_PutEmptyRing(t *testing.T) {
	c := newTestCluster(t, 3)

	err := c.Put("k", []byte("v"))
	if !errors.Is(err, ErrNoNodes) {
		t.Errorf("Expected ErrNoNodes, got %v", err)
	}
}

func TestCluster_GetRemoveEmptyRing(t *testing.T) {
	c := newTestCluster(t, 3)

	if _, found := c.Get("k"); found {
		t.Error("Expected not-found on empty ring")
	}
	existed, err := c.Remove("k")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if existed {
		t.Error("Expected Remove on empty ring to report false")
	}
}

func TestCluster_Remove(t *testing.T) {
	c := newTestCluster(t, 3, "n1", "n2", "n3")

	if err := c.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	existed, err := c.Remove("k")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !existed {
		t.Error("Expected Remove to report the key existed")
	}
	if _, found := c.Get("k"); found {
		t.Error("Expected key to be gone after Remove")
	}

	existed, err = c.Remove("k")
	if err != nil {
		t.Fatalf("Second Remove failed: %v", err)
	}
	if existed {
		t.Error("Expected second Remove to report false")
	}
}

func TestCluster_ReplicatesToAllResponsible(t *testing.T) {
	c := newTestCluster(t, 3, "n1", "n2", "n3")

	if err := c.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// RF equals cluster size, so every node must hold the key.
	for _, st := range c.Stats() {
		if st.Keys != 1 {
			t.Errorf("Node %s holds %d keys, want 1", st.ID, st.Keys)
		}
	}
}

type captureSink struct {
	events []event.Event
}

func (s *captureSink) Emit(ev event.Event) {
	s.events = append(s.events, ev)
}

func TestCluster_UnderReplicatedWarns(t *testing.T) {
	sink := &captureSink{}
	c := New(Options{
		DataDir:           t.TempDir(),
		ReplicationFactor: 3,
		VirtualNodes:      64,
		Sink:              sink,
	})
	defer c.Close()

	if err := c.AddNode("n1"); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}

	// One node, RF 3: the write proceeds but is under-replicated.
	if err := c.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	value, found := c.Get("k")
	if !found || string(value) != "v" {
		t.Fatalf("Expected k=v, got %q found=%v", value, found)
	}

	var warned bool
	for _, ev := range sink.events {
		if ur, ok := ev.(event.UnderReplicated); ok {
			warned = true
			if ur.Want != 3 || ur.Got != 1 {
				t.Errorf("Unexpected under-replication event: %+v", ur)
			}
		}
	}
	if !warned {
		t.Error("Expected an under-replication event")
	}
}

func TestCluster_Stats(t *testing.T) {
	c := newTestCluster(t, 1, "n1", "n2", "n3")

	for i := 0; i < 90; i++ {
		if err := c.Put(fmt.Sprintf("key%d", i), []byte("v")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	stats := c.Stats()
	if len(stats) != 3 {
		t.Fatalf("Expected stats for 3 nodes, got %d", len(stats))
	}

	totalKeys := 0
	totalPct := 0.0
	for i, st := range stats {
		if i > 0 && stats[i-1].ID >= st.ID {
			t.Error("Stats not sorted by node ID")
		}
		totalKeys += st.Keys
		totalPct += st.Percent
	}
	if totalKeys != 90 {
		t.Errorf("Expected 90 keys total with RF=1, got %d", totalKeys)
	}
	if totalPct < 99.9 || totalPct > 100.1 {
		t.Errorf("Percentages sum to %.2f, want 100", totalPct)
	}
}

func TestCluster_OverwriteIsConsistent(t *testing.T) {
	c := newTestCluster(t, 3, "n1", "n2", "n3")

	if err := c.Put("test:consistency", []byte("version_1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Put("test:consistency", []byte("version_2")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	value, found := c.Get("test:consistency")
	if !found || string(value) != "version_2" {
		t.Errorf("Expected version_2, got %q found=%v", value, found)
	}
}

func TestCluster_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	c := New(Options{DataDir: dir, ReplicationFactor: 3, VirtualNodes: 64})
	for _, id := range []string{"n1", "n2", "n3"} {
		if err := c.AddNode(id); err != nil {
			t.Fatalf("AddNode failed: %v", err)
		}
	}
	if err := c.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A new cluster over the same directory recovers the data when the
	// same nodes rejoin.
	c2 := New(Options{DataDir: dir, ReplicationFactor: 3, VirtualNodes: 64})
	defer c2.Close()
	for _, id := range []string{"n1", "n2", "n3"} {
		if err := c2.AddNode(id); err != nil {
			t.Fatalf("AddNode failed: %v", err)
		}
	}

	value, found := c2.Get("k")
	if !found || string(value) != "v" {
		t.Errorf("Expected k=v after restart, got %q found=%v", value, found)
	}
}
