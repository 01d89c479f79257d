package orders

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

var orderStatePrefix = []byte("orderstate:")

func orderStateKey(hash common.Hash) []byte {
	return append(append([]byte{}, orderStatePrefix...), hash[:]...)
}

// StateDB persists order lifecycle states in pebble with JSON values.
// Thread safety comes from the StateStore mutex above it.
type StateDB struct {
	db *pebble.DB
}

// OpenStateDB opens (or creates) a pebble database at the given path.
func OpenStateDB(dbPath string) (*StateDB, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
		MaxOpenFiles: 1000,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &StateDB{db: db}, nil
}

// Close closes the database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// Save persists one order state.
func (s *StateDB) Save(hash common.Hash, state *OrderState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal order state: %w", err)
	}
	if err := s.db.Set(orderStateKey(hash), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order state: %w", err)
	}
	return nil
}

// Load reads one order state. Returns nil if the order has never been stored.
func (s *StateDB) Load(hash common.Hash) (*OrderState, error) {
	data, closer, err := s.db.Get(orderStateKey(hash))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order state: %w", err)
	}
	defer closer.Close()

	var state OrderState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order state: %w", err)
	}
	if state.FilledAmount == nil {
		state.FilledAmount = new(big.Int)
	}
	return &state, nil
}
