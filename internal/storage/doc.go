// Package storage provides the per-node durable storage engine. Each
// engine pairs an append-only write-ahead log with an in-memory index;
// every mutation is flushed to the log before it becomes visible in the
// index, and recovery replays the log from the start.
package storage
