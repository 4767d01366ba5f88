// Package concurrency defines the transaction handle threaded through
// every hash table operation. The index never inspects a Transaction's
// contents; it exists so a caller's future transaction manager has
// somewhere to hang per-client state without changing every operation's
// signature later.
package concurrency

import (
	"sync"

	"github.com/google/uuid"
)

// Transaction identifies one client's in-flight operation. The hash
// table accepts and passes one through but never locks resources on its
// behalf or inspects its fields; it is an opaque handle by design.
type Transaction struct {
	clientID uuid.UUID
	mtx      sync.RWMutex
}

// NewTransaction mints a Transaction with a fresh client id.
func NewTransaction() *Transaction {
	return &Transaction{clientID: uuid.New()}
}

func (t *Transaction) WLock() { t.mtx.Lock() }

func (t *Transaction) WUnlock() { t.mtx.Unlock() }

func (t *Transaction) RLock() { t.mtx.RLock() }

func (t *Transaction) RUnlock() { t.mtx.RUnlock() }

// GetClientID returns this transaction's client id.
func (t *Transaction) GetClientID() uuid.UUID {
	return t.clientID
}
