package sqlite

import "github.com/mesh-intelligence/tally/pkg/types"

// Family is the declarative schema descriptor for one mergeable record
// family: the table name, the ordered column list, and (for owning
// families) the child table whose rows replicate atomically with the
// parent. The same descriptor drives the row reader, the row writer, the
// snapshot codec, and the merge walk, so column order cannot drift between
// the insert, update and merge paths.
type Family struct {
	Table   string
	Columns []string // id is always column 0.
	Child   *ChildTable
}

// ChildTable describes the owned split table of an owning family.
type ChildTable struct {
	Table     string
	ParentCol string
	Columns   []string // id is always column 0.
}

// Envelope column positions, fixed across all families: the replication
// envelope is appended after the family-specific columns.
func (f Family) UpdatedAtCol() int { return len(f.Columns) - 3 }
func (f Family) IsDeletedCol() int { return len(f.Columns) - 2 }

// families lists the mergeable record families in dependency order.
// Categories first (self-referential parent), then payees (reference
// categories), accounts, and the two owning families.
var families = []Family{
	{
		Table:   types.CategoriesTable,
		Columns: []string{"id", "name", "parent_id", "updated_at", "is_deleted", "client_id"},
	},
	{
		Table:   types.PayeesTable,
		Columns: []string{"id", "name", "default_category_id", "updated_at", "is_deleted", "client_id"},
	},
	{
		Table:   types.AccountsTable,
		Columns: []string{"id", "name", "kind", "updated_at", "is_deleted", "client_id"},
	},
	{
		Table:   types.TransactionsTable,
		Columns: []string{"id", "account_id", "payee_id", "date", "amount", "memo", "cleared", "updated_at", "is_deleted", "client_id"},
		Child: &ChildTable{
			Table:     types.TransactionSplitsTable,
			ParentCol: "transaction_id",
			Columns:   []string{"id", "transaction_id", "category_id", "amount", "memo"},
		},
	},
	{
		Table:   types.SchedulesTable,
		Columns: []string{"id", "account_id", "name", "frequency", "next_date", "amount", "memo", "updated_at", "is_deleted", "client_id"},
		Child: &ChildTable{
			Table:     types.ScheduleSplitsTable,
			ParentCol: "schedule_id",
			Columns:   []string{"id", "schedule_id", "category_id", "amount", "memo"},
		},
	},
}

// Families returns the mergeable family descriptors in merge order.
func Families() []Family {
	return families
}

// FamilyByTable returns the descriptor for the given table name.
func FamilyByTable(table string) (Family, bool) {
	for _, f := range families {
		if f.Table == table {
			return f, true
		}
	}
	return Family{}, false
}
