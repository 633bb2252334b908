package types

// Standard table names for the mergeable record families, listed in
// dependency order: children reference parents by ID, and a parent row
// must exist before a child row referencing it is written.
const (
	CategoriesTable   = "categories"
	PayeesTable       = "payees"
	AccountsTable     = "accounts"
	TransactionsTable = "transactions"
	SchedulesTable    = "schedules"
)

// Child tables owned by transactions and schedules. Child rows replicate
// only as part of their parent's revision.
const (
	TransactionSplitsTable = "transaction_splits"
	ScheduleSplitsTable    = "schedule_splits"
)

// FamilyTableNames lists the mergeable families in merge order.
var FamilyTableNames = []string{
	CategoriesTable,
	PayeesTable,
	AccountsTable,
	TransactionsTable,
	SchedulesTable,
}
