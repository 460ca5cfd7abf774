// Package node binds a durable storage engine and an LRU read cache into
// a single cluster storage unit with read-through and write-through
// semantics.
package node
