package types

// Transaction is a dated movement of money on an account. A transaction
// owns an ordered set of splits; the transaction amount must equal the sum
// of its split amounts. That invariant is enforced by the application
// layer entering the data, not re-validated by the merge engine.
//
// Splits have no independent replication identity: a newer revision of the
// parent always carries its full split set, and a merge replaces the local
// set wholesale.
type Transaction struct {
	Revision
	AccountID string  // References Account (required).
	PayeeID   *string // References Payee, nil when unknown.
	Date      string  // Calendar date in DateLayout.
	Amount    int64   // Minor currency units (cents).
	Memo      string
	Cleared   bool // Set when reconciled against a statement.
	Splits    []Split
}

// Split is one category allocation within a transaction.
type Split struct {
	ID            string
	TransactionID string
	CategoryID    *string // References Category, nil for uncategorised.
	Amount        int64
	Memo          string
}
