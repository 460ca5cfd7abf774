// Package cluster implements the coordinator of the key-value store
// simulator. The coordinator owns every node and the consistent-hash
// ring, serializes membership changes under an exclusive lock, dispatches
// replicated reads and writes under a shared lock, and moves the minimum
// amount of data when nodes join or leave.
package cluster
