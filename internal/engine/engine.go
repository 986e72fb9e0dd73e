// Package engine provides the pluggable storage engines of the key-value
// store. Any engine satisfying the Engine interface is swappable behind the
// server; handles are cheap to copy and safe to share across workers.
package engine

import "errors"

// Engine names accepted by the server and persisted in its sidecar file.
const (
	NameAether  = "aether"
	NameLevelDB = "leveldb"
)

// ErrKeyNotFound is returned by Get and Remove for an absent key. The text
// is the canonical message sent over the wire.
var ErrKeyNotFound = errors.New("Key not found")

// Engine is the capability the server is generic over.
type Engine interface {
	// Set creates or overwrites the binding for key. On return the record
	// has reached the OS page cache; crash recovery will observe it.
	Set(key, value string) error

	// Get returns the current binding, or ErrKeyNotFound if absent.
	Get(key string) (string, error)

	// Remove deletes the binding, or returns ErrKeyNotFound if absent.
	Remove(key string) error

	// Close flushes buffered writes and releases file handles.
	Close() error
}
