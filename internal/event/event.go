package event

import (
	"github.com/sirupsen/logrus"
)

// Event is a typed observation emitted by the cluster core. Consumers
// receive concrete event structs and switch on type.
type Event interface {
	Kind() string
}

// Sink receives events from the core. Implementations must be safe for
// concurrent use; Emit is called while cluster locks are held and must not
// call back into the cluster.
type Sink interface {
	Emit(Event)
}

// NodeAdded is emitted after a membership addition completes, including
// the number of keys moved onto the new node.
type NodeAdded struct {
	ID    string
	Moved int
}

func (NodeAdded) Kind() string { return "node_added" }

// NodeRemoved is emitted after a membership removal completes, including
// the number of keys moved off the departing node.
type NodeRemoved struct {
	ID    string
	Moved int
}

func (NodeRemoved) Kind() string { return "node_removed" }

// KeysMoved is emitted once per source/destination pair during
// redistribution.
type KeysMoved struct {
	From  string
	To    string
	Count int
}

func (KeysMoved) Kind() string { return "keys_moved" }

// UnderReplicated is emitted when a replicated operation resolves fewer
// responsible nodes than the replication factor.
type UnderReplicated struct {
	Key  string
	Want int
	Got  int
}

func (UnderReplicated) Kind() string { return "under_replicated" }

// NopSink discards all events. The default sink.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// LogSink prints events through logrus. The demo subscribes with it to
// narrate cluster activity.
type LogSink struct {
	log *logrus.Logger
}

// NewLogSink creates a sink logging to the given logger, or the standard
// logger when nil.
func NewLogSink(log *logrus.Logger) *LogSink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Emit(ev Event) {
	switch e := ev.(type) {
	case NodeAdded:
		s.log.WithFields(logrus.Fields{"node": e.ID, "moved": e.Moved}).Info("node added")
	case NodeRemoved:
		s.log.WithFields(logrus.Fields{"node": e.ID, "moved": e.Moved}).Info("node removed")
	case KeysMoved:
		s.log.WithFields(logrus.Fields{"from": e.From, "to": e.To, "count": e.Count}).Info("keys moved")
	case UnderReplicated:
		s.log.WithFields(logrus.Fields{"key": e.Key, "want": e.Want, "got": e.Got}).Warn("under-replicated operation")
	default:
		s.log.WithField("kind", ev.Kind()).Info("cluster event")
	}
}
