package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tally/pkg/types"
)

// Typed accessors over the record families. These interpret the raw
// descriptor columns into pkg/types structs for the CLI and the
// reconciliation apply step; the merge engine never goes through them.

// SeedDefaultCategories inserts the default category set into an empty
// ledger. A ledger that already has categories is left untouched.
func (s *Store) SeedDefaultCategories(clientID string) error {
	n, err := s.RowCount(types.CategoriesTable)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, name := range types.DefaultCategories {
		c := types.Category{Name: name}
		c.ID = newUUID()
		c.Touch(clientID)
		if err := s.UpsertCategory(&c); err != nil {
			return fmt.Errorf("seeding category %q: %w", name, err)
		}
	}
	return nil
}

// UpsertCategory writes a category row. The caller is responsible for
// stamping the revision (Touch) before calling.
func (s *Store) UpsertCategory(c *types.Category) error {
	if c.ID == "" {
		return types.ErrInvalidID
	}
	if c.Name == "" {
		return types.ErrInvalidName
	}
	f, _ := FamilyByTable(types.CategoriesTable)
	return s.UpsertRow(f, []any{
		c.ID, c.Name, nullableStr(c.ParentID),
		types.FormatTime(c.UpdatedAt), boolInt(c.Deleted), c.ClientID,
	})
}

// Categories returns all live (non-tombstoned) categories ordered by name.
func (s *Store) Categories() ([]types.Category, error) {
	rows, err := s.db.Query(`
		SELECT id, name, parent_id, updated_at, is_deleted, client_id
		FROM categories WHERE is_deleted = 0 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var out []types.Category
	for rows.Next() {
		var c types.Category
		var parent sql.NullString
		var updated string
		var deleted int
		if err := rows.Scan(&c.ID, &c.Name, &parent, &updated, &deleted, &c.ClientID); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		c.ParentID = ptrFromNull(parent)
		c.Deleted = deleted != 0
		if c.UpdatedAt, err = types.ParseTime(updated); err != nil {
			return nil, fmt.Errorf("parsing category updated_at: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertPayee writes a payee row.
func (s *Store) UpsertPayee(p *types.Payee) error {
	if p.ID == "" {
		return types.ErrInvalidID
	}
	if p.Name == "" {
		return types.ErrInvalidName
	}
	f, _ := FamilyByTable(types.PayeesTable)
	return s.UpsertRow(f, []any{
		p.ID, p.Name, nullableStr(p.DefaultCategoryID),
		types.FormatTime(p.UpdatedAt), boolInt(p.Deleted), p.ClientID,
	})
}

// Payees returns all live payees ordered by name.
func (s *Store) Payees() ([]types.Payee, error) {
	rows, err := s.db.Query(`
		SELECT id, name, default_category_id, updated_at, is_deleted, client_id
		FROM payees WHERE is_deleted = 0 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying payees: %w", err)
	}
	defer rows.Close()

	var out []types.Payee
	for rows.Next() {
		var p types.Payee
		var cat sql.NullString
		var updated string
		var deleted int
		if err := rows.Scan(&p.ID, &p.Name, &cat, &updated, &deleted, &p.ClientID); err != nil {
			return nil, fmt.Errorf("scanning payee: %w", err)
		}
		p.DefaultCategoryID = ptrFromNull(cat)
		p.Deleted = deleted != 0
		if p.UpdatedAt, err = types.ParseTime(updated); err != nil {
			return nil, fmt.Errorf("parsing payee updated_at: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindOrCreatePayee returns the live payee with the given name
// (case-insensitive), creating it when absent.
func (s *Store) FindOrCreatePayee(name, clientID string) (types.Payee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Payee{}, types.ErrInvalidName
	}

	var p types.Payee
	var cat sql.NullString
	var updated string
	err := s.db.QueryRow(`
		SELECT id, name, default_category_id, updated_at, client_id
		FROM payees WHERE is_deleted = 0 AND LOWER(name) = LOWER(?)`, name).
		Scan(&p.ID, &p.Name, &cat, &updated, &p.ClientID)
	if err == nil {
		p.DefaultCategoryID = ptrFromNull(cat)
		p.UpdatedAt, err = types.ParseTime(updated)
		if err != nil {
			return types.Payee{}, fmt.Errorf("parsing payee updated_at: %w", err)
		}
		return p, nil
	}
	if err != sql.ErrNoRows {
		return types.Payee{}, fmt.Errorf("looking up payee %q: %w", name, err)
	}

	p = types.Payee{Name: name}
	p.ID = newUUID()
	p.Touch(clientID)
	if err := s.UpsertPayee(&p); err != nil {
		return types.Payee{}, err
	}
	return p, nil
}

// UpsertAccount writes an account row.
func (s *Store) UpsertAccount(a *types.Account) error {
	if a.ID == "" {
		return types.ErrInvalidID
	}
	if a.Name == "" {
		return types.ErrInvalidName
	}
	f, _ := FamilyByTable(types.AccountsTable)
	return s.UpsertRow(f, []any{
		a.ID, a.Name, a.Kind,
		types.FormatTime(a.UpdatedAt), boolInt(a.Deleted), a.ClientID,
	})
}

// CreateAccount creates a new account with a fresh ID and revision.
func (s *Store) CreateAccount(name, kind, clientID string) (types.Account, error) {
	a := types.Account{Name: name, Kind: kind}
	a.ID = newUUID()
	a.Touch(clientID)
	if err := s.UpsertAccount(&a); err != nil {
		return types.Account{}, err
	}
	return a, nil
}

// Accounts returns all live accounts ordered by name.
func (s *Store) Accounts() ([]types.Account, error) {
	rows, err := s.db.Query(`
		SELECT id, name, kind, updated_at, is_deleted, client_id
		FROM accounts WHERE is_deleted = 0 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var out []types.Account
	for rows.Next() {
		var a types.Account
		var updated string
		var deleted int
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &updated, &deleted, &a.ClientID); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		a.Deleted = deleted != 0
		if a.UpdatedAt, err = types.ParseTime(updated); err != nil {
			return nil, fmt.Errorf("parsing account updated_at: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AccountByName returns the live account with the given name.
func (s *Store) AccountByName(name string) (types.Account, error) {
	accounts, err := s.Accounts()
	if err != nil {
		return types.Account{}, err
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	return types.Account{}, types.ErrNotFound
}

// UpsertTransaction writes a transaction row and replaces its split set.
// Splits with empty IDs are assigned fresh ones.
func (s *Store) UpsertTransaction(t *types.Transaction) error {
	if t.ID == "" {
		return types.ErrInvalidID
	}
	if t.AccountID == "" {
		return types.ErrInvalidData
	}
	f, _ := FamilyByTable(types.TransactionsTable)
	err := s.UpsertRow(f, []any{
		t.ID, t.AccountID, nullableStr(t.PayeeID), t.Date, t.Amount, t.Memo,
		boolInt(t.Cleared), types.FormatTime(t.UpdatedAt), boolInt(t.Deleted), t.ClientID,
	})
	if err != nil {
		return err
	}

	children := make([][]any, 0, len(t.Splits))
	for i := range t.Splits {
		sp := &t.Splits[i]
		if sp.ID == "" {
			sp.ID = newUUID()
		}
		sp.TransactionID = t.ID
		children = append(children, []any{sp.ID, sp.TransactionID, nullableStr(sp.CategoryID), sp.Amount, sp.Memo})
	}
	return s.ReplaceChildren(f.Child, t.ID, children)
}

// Transaction returns one transaction with its splits loaded.
func (s *Store) Transaction(id string) (types.Transaction, error) {
	if id == "" {
		return types.Transaction{}, types.ErrInvalidID
	}
	row := s.db.QueryRow(`
		SELECT id, account_id, payee_id, date, amount, memo, cleared, updated_at, is_deleted, client_id
		FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return types.Transaction{}, types.ErrNotFound
	}
	if err != nil {
		return types.Transaction{}, err
	}
	if t.Splits, err = s.transactionSplits(t.ID); err != nil {
		return types.Transaction{}, err
	}
	return t, nil
}

// TransactionsForAccount returns the live transactions of one account,
// splits loaded, ordered by date then id.
func (s *Store) TransactionsForAccount(accountID string) ([]types.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, payee_id, date, amount, memo, cleared, updated_at, is_deleted, client_id
		FROM transactions WHERE account_id = ? AND is_deleted = 0
		ORDER BY date, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []types.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	for i := range out {
		if out[i].Splits, err = s.transactionSplits(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanTransaction(scan func(...any) error) (types.Transaction, error) {
	var t types.Transaction
	var payee sql.NullString
	var updated string
	var cleared, deleted int
	err := scan(&t.ID, &t.AccountID, &payee, &t.Date, &t.Amount, &t.Memo,
		&cleared, &updated, &deleted, &t.ClientID)
	if err != nil {
		return types.Transaction{}, err
	}
	t.PayeeID = ptrFromNull(payee)
	t.Cleared = cleared != 0
	t.Deleted = deleted != 0
	if t.UpdatedAt, err = types.ParseTime(updated); err != nil {
		return types.Transaction{}, fmt.Errorf("parsing transaction updated_at: %w", err)
	}
	return t, nil
}

func (s *Store) transactionSplits(transactionID string) ([]types.Split, error) {
	rows, err := s.db.Query(`
		SELECT id, transaction_id, category_id, amount, memo
		FROM transaction_splits WHERE transaction_id = ? ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("querying splits: %w", err)
	}
	defer rows.Close()

	var out []types.Split
	for rows.Next() {
		var sp types.Split
		var cat sql.NullString
		if err := rows.Scan(&sp.ID, &sp.TransactionID, &cat, &sp.Amount, &sp.Memo); err != nil {
			return nil, fmt.Errorf("scanning split: %w", err)
		}
		sp.CategoryID = ptrFromNull(cat)
		out = append(out, sp)
	}
	return out, rows.Err()
}

// MarkTransactionCleared marks a transaction as reconciled against a
// statement and stamps a new revision.
func (s *Store) MarkTransactionCleared(id, clientID string) error {
	t, err := s.Transaction(id)
	if err != nil {
		return err
	}
	t.Cleared = true
	t.Touch(clientID)
	return s.UpsertTransaction(&t)
}

// UpsertSchedule writes a schedule row and replaces its split set.
func (s *Store) UpsertSchedule(sc *types.Schedule) error {
	if sc.ID == "" {
		return types.ErrInvalidID
	}
	if sc.AccountID == "" {
		return types.ErrInvalidData
	}
	f, _ := FamilyByTable(types.SchedulesTable)
	err := s.UpsertRow(f, []any{
		sc.ID, sc.AccountID, sc.Name, sc.Frequency, sc.NextDate, sc.Amount, sc.Memo,
		types.FormatTime(sc.UpdatedAt), boolInt(sc.Deleted), sc.ClientID,
	})
	if err != nil {
		return err
	}

	children := make([][]any, 0, len(sc.Splits))
	for i := range sc.Splits {
		sp := &sc.Splits[i]
		if sp.ID == "" {
			sp.ID = newUUID()
		}
		sp.ScheduleID = sc.ID
		children = append(children, []any{sp.ID, sp.ScheduleID, nullableStr(sp.CategoryID), sp.Amount, sp.Memo})
	}
	return s.ReplaceChildren(f.Child, sc.ID, children)
}

// SchedulesForAccount returns the live schedules of one account.
func (s *Store) SchedulesForAccount(accountID string) ([]types.Schedule, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, name, frequency, next_date, amount, memo, updated_at, is_deleted, client_id
		FROM schedules WHERE account_id = ? AND is_deleted = 0 ORDER BY name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var out []types.Schedule
	for rows.Next() {
		var sc types.Schedule
		var updated string
		var deleted int
		if err := rows.Scan(&sc.ID, &sc.AccountID, &sc.Name, &sc.Frequency, &sc.NextDate,
			&sc.Amount, &sc.Memo, &updated, &deleted, &sc.ClientID); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		sc.Deleted = deleted != 0
		if sc.UpdatedAt, err = types.ParseTime(updated); err != nil {
			return nil, fmt.Errorf("parsing schedule updated_at: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func nullableStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrFromNull(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
