// Package event defines the typed events the cluster core emits and the
// pluggable sink interface observers implement. The core stays free of
// human-readable progress printing; sinks decide what to do with events.
package event
