package state

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"rangestaker/storage"
)

// Manager stages writes in memory on top of a database. Staged values are
// visible to reads immediately and reach the database only on Commit, as a
// single batch.
type Manager struct {
	db storage.Database

	mu      sync.RWMutex
	pending map[string][]byte

	// txMu serialises writers that share the overlay. Readers that must not
	// observe staged writes take its read side.
	txMu sync.RWMutex
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pending: make(map[string][]byte)}
}

// Lock acquires the write transaction lock. Callers that stage writes and
// commit them hold it for the duration of the operation.
func (m *Manager) Lock() { m.txMu.Lock() }

// Unlock releases the write transaction lock.
func (m *Manager) Unlock() { m.txMu.Unlock() }

// RLock waits for the running write transaction, if any, to commit or discard
// and holds off new ones until RUnlock. Reads made in between see committed
// state only.
func (m *Manager) RLock() { m.txMu.RLock() }

// RUnlock releases the read side of the transaction lock.
func (m *Manager) RUnlock() { m.txMu.RUnlock() }

// Update runs fn as a write transaction: the staged writes are committed when
// fn succeeds and dropped otherwise.
func (m *Manager) Update(fn func() error) error {
	m.Lock()
	defer m.Unlock()
	if err := fn(); err != nil {
		m.Discard()
		return err
	}
	if err := m.Commit(); err != nil {
		m.Discard()
		return err
	}
	return nil
}

// Commit writes every staged change to the database in one batch.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	batch := storage.NewBatch()
	for key, value := range m.pending {
		if value == nil {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), value)
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.pending = make(map[string][]byte)
	return nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	m.mu.Lock()
	m.pending = make(map[string][]byte)
	m.mu.Unlock()
}

// Pending reports the number of staged keys.
func (m *Manager) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(hashed []byte) ([]byte, error) {
	m.mu.RLock()
	value, staged := m.pending[string(hashed)]
	m.mu.RUnlock()
	if staged {
		return value, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) stage(hashed, value []byte) {
	m.mu.Lock()
	m.pending[string(hashed)] = value
	m.mu.Unlock()
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.stage(kvKey(key), encoded)
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.stage(kvKey(key), nil)
	return nil
}

// KVGetList decodes the RLP list stored under key into the slice pointed to by
// out. A missing key yields an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must be a non-nil slice pointer")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok || val.Elem().IsNil() {
		val.Elem().Set(reflect.MakeSlice(val.Elem().Type(), 0, 0))
	}
	return nil
}
