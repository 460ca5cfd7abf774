package it

import (
	"fmt"

	"kvsim/internal/cluster"
	"kvsim/internal/event"
)

// Harness runs an in-process cluster against a throwaway data directory
// for integration tests. It can stop and restart the cluster over the
// same directory to exercise recovery.
type Harness struct {
	dataDir string
	opts    cluster.Options
	nodes   []string
	cluster *cluster.Cluster
}

// NewHarness creates a harness storing node logs under dataDir.
func NewHarness(dataDir string, rf int) *Harness {
	return &Harness{
		dataDir: dataDir,
		opts: cluster.Options{
			DataDir:           dataDir,
			ReplicationFactor: rf,
			VirtualNodes:      64,
			CacheSize:         256,
			Sink:              event.NopSink{},
		},
	}
}

// Start builds the cluster and adds the given nodes.
func (h *Harness) Start(nodeIDs ...string) error {
	if h.cluster != nil {
		return fmt.Errorf("harness already started")
	}

	c := cluster.New(h.opts)
	for _, id := range nodeIDs {
		if err := c.AddNode(id); err != nil {
			c.Close()
			return fmt.Errorf("add node %s: %w", id, err)
		}
	}

	h.cluster = c
	h.nodes = append([]string(nil), nodeIDs...)
	return nil
}

// Cluster returns the running cluster.
func (h *Harness) Cluster() *cluster.Cluster {
	return h.cluster
}

// Restart closes the cluster and builds a fresh one over the same data
// directory with the same membership, simulating a process restart.
func (h *Harness) Restart() error {
	if h.cluster == nil {
		return fmt.Errorf("harness not started")
	}
	if err := h.cluster.Close(); err != nil {
		return err
	}

	c := cluster.New(h.opts)
	for _, id := range h.nodes {
		if err := c.AddNode(id); err != nil {
			c.Close()
			return fmt.Errorf("re-add node %s: %w", id, err)
		}
	}
	h.cluster = c
	return nil
}

// Stop shuts the cluster down, keeping node logs on disk.
func (h *Harness) Stop() error {
	if h.cluster == nil {
		return nil
	}
	err := h.cluster.Close()
	h.cluster = nil
	return err
}
