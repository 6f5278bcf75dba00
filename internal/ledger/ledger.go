package ledger

import (
	"errors"
	"sync"
)

var (
	ErrUnknownAccount      = errors.New("unknown ledger account")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Ledger is the in-process wallet table. Balances live only for the
// lifetime of a connection; there is no durability.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]int64
}

func New() *Ledger {
	return &Ledger{balances: make(map[string]int64)}
}

// Register opens an account with the starting balance. Re-registering an
// existing handle is a no-op so a racing duplicate cannot reset funds.
func (l *Ledger) Register(handle string, start int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.balances[handle]; !ok {
		l.balances[handle] = start
	}
}

// Remove closes an account. Idempotent.
func (l *Ledger) Remove(handle string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.balances, handle)
}

// Debit withdraws amount, failing without partial effect when the
// account cannot cover it.
func (l *Ledger) Debit(handle string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[handle]
	if !ok {
		return ErrUnknownAccount
	}
	if bal < amount {
		return ErrInsufficientBalance
	}
	l.balances[handle] = bal - amount
	return nil
}

// Credit deposits amount. Crediting an already-closed account is dropped
// silently: a settlement may race a disconnect teardown.
func (l *Ledger) Credit(handle string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.balances[handle]; ok {
		l.balances[handle] += amount
	}
}

// Balance returns the current balance, zero for unknown handles.
func (l *Ledger) Balance(handle string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[handle]
}
