// Package cache provides a thread-safe fixed-capacity LRU cache used as
// the per-node read cache. The recency list is an arena of slots linked by
// integer indices, so the structure has no pointer cycles and slots are
// recycled through a free list.
package cache
