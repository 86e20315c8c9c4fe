package ledger

import (
	"context"
	"sync"

	"tally/internal/core"
)

// Ledger owns the session's transaction sequence and exposes pure aggregation
// queries over it. Aggregates are recomputed on every call, never cached, so
// there is no staleness to invalidate. The mutex serializes concurrent callers
// (the HTTP shell); the Ledger itself never blocks.
type Ledger struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Transaction
}

func New() *Ledger {
	return &Ledger{nextID: 1}
}

// Add validates the draft transaction, assigns a fresh monotonic ID, defaults
// an unset date to today, appends it and returns the stored record. On
// validation failure the ledger is left unchanged.
func (l *Ledger) Add(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.Date.IsEmpty() {
		tx.Date = core.Today()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tx.ID = l.nextID
	l.nextID++
	l.items = append(l.items, tx)
	return tx, nil
}

// Remove deletes the transaction with the given id. It reports whether a
// removal occurred; an unknown id is a no-op.
func (l *Ledger) Remove(_ context.Context, id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, tx := range l.items {
		if tx.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// List returns all transactions in insertion order as a defensive copy.
func (l *Ledger) List(_ context.Context) []core.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Transaction, len(l.items))
	copy(out, l.items)
	return out
}

// TotalIncome sums the amounts of all income transactions.
func (l *Ledger) TotalIncome(_ context.Context) core.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sumLocked(core.Income)
}

// TotalExpense sums the amounts of all expense transactions.
func (l *Ledger) TotalExpense(_ context.Context) core.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sumLocked(core.Expense)
}

// Balance is total income minus total expense. It may be negative.
func (l *Ledger) Balance(_ context.Context) core.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sumLocked(core.Income).Sub(l.sumLocked(core.Expense))
}

// ExpensesByCategory sums expense amounts grouped by description, with
// categories listed in first-seen order. Income transactions are ignored.
func (l *Ledger) ExpensesByCategory(_ context.Context) []core.CategoryAmount {
	l.mu.Lock()
	defer l.mu.Unlock()
	index := make(map[string]int)
	var out []core.CategoryAmount
	for _, tx := range l.items {
		if tx.Kind != core.Expense {
			continue
		}
		if i, ok := index[tx.Description]; ok {
			out[i].Amount = out[i].Amount.Add(tx.Amount)
			continue
		}
		index[tx.Description] = len(out)
		out = append(out, core.CategoryAmount{Name: tx.Description, Amount: tx.Amount})
	}
	return out
}

func (l *Ledger) sumLocked(kind core.Kind) core.Money {
	var total core.Money
	for _, tx := range l.items {
		if tx.Kind == kind {
			total = total.Add(tx.Amount)
		}
	}
	return total
}
