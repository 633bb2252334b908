package types

// Category is a spending or income category. Categories form a tree via
// ParentID; the hierarchy is self-referential and merges before every
// other family.
type Category struct {
	Revision
	Name     string  // Human-readable name (required, non-empty).
	ParentID *string // Parent category ID, nil for a root category.
}

// DefaultCategories are seeded into a fresh ledger so imports have
// something to classify against.
var DefaultCategories = []string{
	"Income",
	"Groceries",
	"Dining",
	"Transport",
	"Bills",
	"Entertainment",
	"Health",
	"Transfers",
	"Uncategorised",
}
