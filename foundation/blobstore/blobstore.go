// Package blobstore provides the namespaced key/value store the node keeps
// its transactions, proofs, personal-chain blocks and Infs in. It is
// grounded on the teacher's storage/memory package: an RWMutex-guarded map
// standing in for leveldb, with the same "does not exist" error idiom.
package blobstore

import (
	"errors"
	"sync"
)

// Namespace partitions the store the way the original node kept separate
// leveldb column families for transactions, proofs, personal-chain blocks
// and Infs.
type Namespace string

// The four namespaces the node persists.
const (
	NamespaceTX  Namespace = "TX"
	NamespacePRF Namespace = "PRF"
	NamespacePB  Namespace = "PB"
	NamespaceINF Namespace = "INF"
)

// ErrNotFound is returned when a key does not exist in a namespace.
var ErrNotFound = errors.New("blobstore: key does not exist")

// Store is the persistence interface every ezchain package that needs
// durable lookup depends on. The real on-disk backend is out of scope;
// Memory is the only implementation, standing in for it in tests and the
// reference node the way storage/memory stands in for leveldb.
type Store interface {
	Put(ns Namespace, key string, value []byte) error
	Get(ns Namespace, key string) ([]byte, error)
	Delete(ns Namespace, key string) error
	Has(ns Namespace, key string) bool
	ForEach(ns Namespace, fn func(key string, value []byte) error) error
}

// Memory is the default in-memory Store.
type Memory struct {
	mu   sync.RWMutex
	data map[Namespace]map[string][]byte
}

// New constructs an empty Memory store.
func New() *Memory {
	return &Memory{
		data: make(map[Namespace]map[string][]byte),
	}
}

// Put writes value under key in the given namespace, overwriting any
// existing value.
func (m *Memory) Put(ns Namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.data[ns]
	if !ok {
		bucket = make(map[string][]byte)
		m.data[ns] = bucket
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	bucket[key] = cp

	return nil
}

// Get returns the value stored under key in the given namespace.
func (m *Memory) Get(ns Namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket, ok := m.data[ns]
	if !ok {
		return nil, ErrNotFound
	}

	value, ok := bucket[key]
	if !ok {
		return nil, ErrNotFound
	}

	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

// Delete removes key from the given namespace. It is not an error to
// delete a key that does not exist.
func (m *Memory) Delete(ns Namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.data[ns]
	if !ok {
		return nil
	}

	delete(bucket, key)
	return nil
}

// Has reports whether key exists in the given namespace.
func (m *Memory) Has(ns Namespace, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket, ok := m.data[ns]
	if !ok {
		return false
	}

	_, ok = bucket[key]
	return ok
}

// ForEach walks every key/value pair in the given namespace in
// unspecified order, stopping at the first error fn returns.
func (m *Memory) ForEach(ns Namespace, fn func(key string, value []byte) error) error {
	m.mu.RLock()
	bucket := m.data[ns]
	snapshot := make(map[string][]byte, len(bucket))
	for k, v := range bucket {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for k, v := range snapshot {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
