package types

// Payee is a counterparty on a transaction. A payee may carry a default
// category applied when new transactions are entered against it.
type Payee struct {
	Revision
	Name              string
	DefaultCategoryID *string // References Category, nil when unset.
}
