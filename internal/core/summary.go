package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Overview is the pull-based view the presentation layer recomputes after
// every mutation: running totals plus expense sums grouped by category.
type Overview struct {
	Income       Money
	Expense      Money
	Balance      Money
	ByCategory   []CategoryAmount
	Transactions []Transaction
}
