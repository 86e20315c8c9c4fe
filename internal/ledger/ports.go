package ledger

import (
	"context"

	"tally/internal/core"
)

// Ports for consumers of the ledger. The presentation layer depends on these
// rather than on the concrete Ledger.
type (
	TransactionWriter interface {
		Add(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	}

	TransactionRemover interface {
		Remove(ctx context.Context, id int64) bool
	}

	TransactionLister interface {
		List(ctx context.Context) []core.Transaction
	}

	// AggregateReader provides the running totals and the per-category
	// expense breakdown, recomputed from the current transaction sequence.
	AggregateReader interface {
		TotalIncome(ctx context.Context) core.Money
		TotalExpense(ctx context.Context) core.Money
		Balance(ctx context.Context) core.Money
		ExpensesByCategory(ctx context.Context) []core.CategoryAmount
	}
)
