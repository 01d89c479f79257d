package orders

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// StateStore tracks the lifecycle state of every referenced order: its
// approval status and cumulative filled amount, keyed by order identifier.
// Entries come into existence implicitly on first reference with status Null
// and zero filled. Backed by an in-memory cache with optional pebble
// persistence, following the account-manager/store split.
//
// The store only enforces mechanical invariants (monotonic fills, bounded by
// the order amount); lifecycle transition rules live in the Engine.
type StateStore struct {
	mu     sync.RWMutex
	states map[common.Hash]*OrderState
	db     *StateDB // nil for memory-only stores
}

// NewStateStore creates a memory-only store, for tests and embedding.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[common.Hash]*OrderState)}
}

// NewPersistentStateStore creates a store backed by a pebble database.
func NewPersistentStateStore(dbPath string) (*StateStore, error) {
	db, err := OpenStateDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &StateStore{
		states: make(map[common.Hash]*OrderState),
		db:     db,
	}, nil
}

// Close closes the underlying database, if any.
func (s *StateStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// getLocked returns the live entry for hash, loading from pebble or creating
// a fresh Null entry. A load failure is propagated, never papered over with a
// fresh entry: treating a corrupt record as Null/0 would revive canceled
// orders and erase recorded fills. Assumes the write lock is held.
func (s *StateStore) getLocked(hash common.Hash) (*OrderState, error) {
	if state, ok := s.states[hash]; ok {
		return state, nil
	}

	state := &OrderState{Status: StatusNull, FilledAmount: new(big.Int)}
	if s.db != nil {
		loaded, err := s.db.Load(hash)
		if err != nil {
			return nil, err
		}
		if loaded != nil {
			state = loaded
		}
	}

	s.states[hash] = state
	return state, nil
}

func (s *StateStore) persistLocked(hash common.Hash, state *OrderState) error {
	if s.db == nil {
		return nil
	}
	return s.db.Save(hash, state)
}

// State returns a copy of the order's state. Unreferenced orders read as
// Null/0; an unreadable stored record is an error.
func (s *StateStore) State(hash common.Hash) (OrderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.getLocked(hash)
	if err != nil {
		return OrderState{}, err
	}
	return OrderState{
		Status:       state.Status,
		FilledAmount: new(big.Int).Set(state.FilledAmount),
	}, nil
}

// States returns copies of the states for a batch of order identifiers, in
// input order.
func (s *StateStore) States(hashes []common.Hash) ([]OrderState, error) {
	out := make([]OrderState, len(hashes))
	for i, hash := range hashes {
		state, err := s.State(hash)
		if err != nil {
			return nil, err
		}
		out[i] = state
	}
	return out, nil
}

// SetStatus records a lifecycle status for the order.
func (s *StateStore) SetStatus(hash common.Hash, status OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.getLocked(hash)
	if err != nil {
		return err
	}
	state.Status = status
	return s.persistLocked(hash, state)
}

// RecordFill adds fillAmount to the order's cumulative fill, guarding
// against exceeding max. Returns the new total. The filled amount never
// decreases: fillAmount must be positive.
func (s *StateStore) RecordFill(hash common.Hash, fillAmount, max *big.Int) (*big.Int, error) {
	if fillAmount.Sign() <= 0 {
		return nil, fmt.Errorf("fill amount must be positive: %s", fillAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.getLocked(hash)
	if err != nil {
		return nil, err
	}
	newTotal := new(big.Int).Add(state.FilledAmount, fillAmount)
	if newTotal.Cmp(max) > 0 {
		return nil, fmt.Errorf("%w: %s + %s > %s", ErrOverfill, state.FilledAmount, fillAmount, max)
	}

	state.FilledAmount = newTotal
	if err := s.persistLocked(hash, state); err != nil {
		return nil, err
	}
	return new(big.Int).Set(newTotal), nil
}
