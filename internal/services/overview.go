package services

import (
	"context"

	"tally/internal/core"
	"tally/internal/ledger"
)

// OverviewBuilder recomputes the presentation view from the ledger's current
// aggregates. It is invoked after each mutation instead of the view being
// patched in place.
type OverviewBuilder struct {
	aggregates ledger.AggregateReader
	lister     ledger.TransactionLister
}

func NewOverviewBuilder(aggregates ledger.AggregateReader, lister ledger.TransactionLister) *OverviewBuilder {
	return &OverviewBuilder{
		aggregates: aggregates,
		lister:     lister,
	}
}

// Build pulls all four aggregates plus the transaction listing and assembles
// them into a single view struct.
func (b *OverviewBuilder) Build(ctx context.Context) core.Overview {
	ov := core.Overview{
		Income:     b.aggregates.TotalIncome(ctx),
		Expense:    b.aggregates.TotalExpense(ctx),
		Balance:    b.aggregates.Balance(ctx),
		ByCategory: b.aggregates.ExpensesByCategory(ctx),
	}
	if b.lister != nil {
		ov.Transactions = b.lister.List(ctx)
	}
	return ov
}
