package types

// Account kinds.
const (
	AccountChecking = "checking"
	AccountSavings  = "savings"
	AccountCredit   = "credit"
	AccountCash     = "cash"
)

// Account is a ledger account. Accounts have no dependencies among the
// mergeable families.
type Account struct {
	Revision
	Name string
	Kind string // One of the Account* constants.
}
