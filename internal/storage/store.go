package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrClosed is returned for writes against a closed engine.
var ErrClosed = errors.New("storage: engine closed")

// Engine is a per-node durable key-value store. Writes are appended to a
// write-ahead log and flushed before the in-memory index is updated, so the
// index can always be rebuilt by replaying the log.
//
// Keys must not contain spaces or newlines; values must not contain
// newlines. Both restrictions come from the line-oriented log format.
type Engine struct {
	path string

	// walMu guards log appends and flushes. Never held together with mu.
	walMu sync.Mutex
	wal   *os.File

	mu    sync.RWMutex
	index map[string][]byte
}

// Open creates or recovers the engine for nodeID, with its log file stored
// under dir as <nodeID>.wal. An existing log is replayed into the index.
func Open(dir, nodeID string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	e := &Engine{
		path:  filepath.Join(dir, nodeID+".wal"),
		index: make(map[string][]byte),
	}

	if err := e.replay(); err != nil {
		return nil, err
	}

	wal, err := os.OpenFile(e.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}
	e.wal = wal

	return e, nil
}

// replay rebuilds the index from the log. Each record is an absolute
// assignment, so replaying any prefix twice yields the same index.
// Malformed lines are skipped.
func (e *Engine) replay() error {
	f, err := os.Open(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open wal for replay: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		op, rest, _ := strings.Cut(scanner.Text(), " ")
		switch op {
		case "PUT":
			key, value, _ := strings.Cut(rest, " ")
			if key == "" {
				continue
			}
			e.index[key] = []byte(value)
		case "DEL":
			key, _, _ := strings.Cut(rest, " ")
			if key == "" {
				continue
			}
			delete(e.index, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay wal: %w", err)
	}
	return nil
}

// append writes records to the log and flushes them to the OS. The index
// must not be touched when this fails.
func (e *Engine) append(records string) error {
	e.walMu.Lock()
	defer e.walMu.Unlock()

	if e.wal == nil {
		return ErrClosed
	}
	if _, err := e.wal.WriteString(records); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	if err := e.wal.Sync(); err != nil {
		return fmt.Errorf("wal flush: %w", err)
	}
	return nil
}

// Put durably stores the value for key. On error the index is unchanged.
func (e *Engine) Put(key string, value []byte) error {
	if err := e.append("PUT " + key + " " + string(value) + "\n"); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.index[key] = append([]byte(nil), value...)
	return nil
}

// Get returns the current value for key. The second return reports whether
// the key exists; empty values are valid and distinct from absence.
func (e *Engine) Get(key string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	value, exists := e.index[key]
	if !exists {
		return nil, false
	}
	return append([]byte(nil), value...), true
}

// Remove durably deletes key and reports whether it existed. The deletion
// record is written even when the key is absent.
func (e *Engine) Remove(key string) (bool, error) {
	if err := e.append("DEL " + key + "\n"); err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	_, existed := e.index[key]
	delete(e.index, key)
	return existed, nil
}

// PutBatch stores all entries with a single log flush and a single index
// update. Either every record is durable or the index is unchanged.
func (e *Engine) PutBatch(entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}

	var b strings.Builder
	for key, value := range entries {
		b.WriteString("PUT ")
		b.WriteString(key)
		b.WriteString(" ")
		b.Write(value)
		b.WriteString("\n")
	}
	if err := e.append(b.String()); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for key, value := range entries {
		e.index[key] = append([]byte(nil), value...)
	}
	return nil
}

// RemoveBatch deletes all keys with a single log flush and a single index
// update.
func (e *Engine) RemoveBatch(keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	var b strings.Builder
	for _, key := range keys {
		b.WriteString("DEL ")
		b.WriteString(key)
		b.WriteString("\n")
	}
	if err := e.append(b.String()); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, key := range keys {
		delete(e.index, key)
	}
	return nil
}

// Keys returns a snapshot of all keys in unspecified order.
func (e *Engine) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make([]string, 0, len(e.index))
	for key := range e.index {
		keys = append(keys, key)
	}
	return keys
}

// All returns a snapshot of the full index.
func (e *Engine) All() map[string][]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()

	data := make(map[string][]byte, len(e.index))
	for key, value := range e.index {
		data[key] = append([]byte(nil), value...)
	}
	return data
}

// Len returns the number of keys in the index.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.index)
}

// Path returns the location of the write-ahead log file.
func (e *Engine) Path() string {
	return e.path
}

// Close flushes and closes the log file. The file is kept on disk so the
// engine can recover on the next Open.
func (e *Engine) Close() error {
	e.walMu.Lock()
	defer e.walMu.Unlock()

	if e.wal == nil {
		return nil
	}
	err := e.wal.Close()
	e.wal = nil
	if err != nil {
		return fmt.Errorf("close wal: %w", err)
	}
	return nil
}

// Destroy closes the engine and deletes its log file. Used when a node is
// explicitly removed from the cluster, so a later node with the same ID
// does not resurrect redistributed data.
func (e *Engine) Destroy() error {
	if err := e.Close(); err != nil {
		return err
	}
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove wal: %w", err)
	}
	return nil
}
