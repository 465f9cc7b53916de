package kv

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/types"
)

// ErrDuplicateTx is returned when a transaction is in flight or was committed recently.
var ErrDuplicateTx = errors.New("kv: duplicate transaction")

// recentlyCommittedSize bounds the committed transaction hashes remembered for duplicate detection.
const recentlyCommittedSize = 4096

// Mempool holds locally submitted transactions until they are executed.
// A transaction is in flight from submission until its execution is acknowledged, which is
// what the load shedding limit bounds.
type Mempool struct {
	mu       sync.Mutex
	pending  [][]byte
	inFlight map[string]struct{}
	limit    uint64

	committed *lru.Cache[string, struct{}]
}

// NewMempool creates a mempool admitting at most limit transactions in flight, 0 for no limit.
func NewMempool(limit uint64) *Mempool {
	committed, err := lru.New[string, struct{}](recentlyCommittedSize)
	if err != nil {
		panic(err) // only fails on a non-positive size
	}
	return &Mempool{
		inFlight:  make(map[string]struct{}),
		limit:     limit,
		committed: committed,
	}
}

// SetLimit changes the in-flight limit.
func (m *Mempool) SetLimit(limit uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
}

// Add admits a transaction, rejecting it with execution.ErrMempoolFull when the limit is reached.
func (m *Mempool) Add(tx []byte) error {
	key := txKey(tx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.inFlight[key]; ok {
		return fmt.Errorf("%w: already in flight", ErrDuplicateTx)
	}
	if m.committed.Contains(key) {
		return fmt.Errorf("%w: committed recently", ErrDuplicateTx)
	}
	if m.limit > 0 && uint64(len(m.inFlight)) >= m.limit {
		return fmt.Errorf("%w: %d in flight", execution.ErrMempoolFull, len(m.inFlight))
	}
	m.inFlight[key] = struct{}{}
	m.pending = append(m.pending, tx)
	return nil
}

// Take returns the pending transactions in submission order. They stay in flight.
func (m *Mempool) Take() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := m.pending
	m.pending = nil
	return txs
}

// Requeue puts transactions that could not be submitted back in front of the pending ones.
func (m *Mempool) Requeue(txs [][]byte) {
	if len(txs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(append([][]byte(nil), txs...), m.pending...)
}

// Remove releases the transactions of executed results and returns how many were in flight.
// Committed transactions are remembered so that resubmitting them is rejected.
func (m *Mempool) Remove(results []execution.TxResult) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, r := range results {
		key := hex.EncodeToString(r.Hash)
		if r.Status == execution.TxStatusCommitted {
			m.committed.Add(key, struct{}{})
		}
		if _, ok := m.inFlight[key]; ok {
			delete(m.inFlight, key)
			removed++
		}
	}
	return removed
}

// InFlight returns the number of transactions in flight.
func (m *Mempool) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}

// Pending returns the number of transactions waiting for submission.
func (m *Mempool) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func txKey(tx []byte) string {
	return hex.EncodeToString(types.TxHash(tx))
}
