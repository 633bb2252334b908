package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tally/pkg/types"
)

const testClientID = "client-a"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strp(s string) *string { return &s }

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, f := range Families() {
		n, err := s.RowCount(f.Table)
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	// Reopening the same file must not fail on existing tables.
	require.NoError(t, s.Close())
	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
}

func TestInitializedFlag(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.IsInitialized()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkInitialized())
	ok, err = s.IsInitialized()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeedDefaultCategories(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SeedDefaultCategories(testClientID))
	cats, err := s.Categories()
	require.NoError(t, err)
	require.Len(t, cats, len(types.DefaultCategories))

	// Seeding a non-empty ledger is a no-op.
	require.NoError(t, s.SeedDefaultCategories(testClientID))
	cats, err = s.Categories()
	require.NoError(t, err)
	assert.Len(t, cats, len(types.DefaultCategories))
}

func TestFindOrCreatePayee(t *testing.T) {
	s := newTestStore(t)

	p1, err := s.FindOrCreatePayee("Grocery Mart", testClientID)
	require.NoError(t, err)
	require.NotEmpty(t, p1.ID)

	// Case-insensitive lookup returns the existing payee.
	p2, err := s.FindOrCreatePayee("grocery mart", testClientID)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, "Grocery Mart", p2.Name)

	p3, err := s.FindOrCreatePayee("Landlord", testClientID)
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID, p3.ID)

	_, err = s.FindOrCreatePayee("   ", testClientID)
	assert.ErrorIs(t, err, types.ErrInvalidName)
}

func TestCreateAndListAccounts(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateAccount("Savings", types.AccountSavings, testClientID)
	require.NoError(t, err)
	a, err := s.CreateAccount("Checking", types.AccountChecking, testClientID)
	require.NoError(t, err)

	accounts, err := s.Accounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Checking", accounts[0].Name)
	assert.Equal(t, "Savings", accounts[1].Name)

	got, err := s.AccountByName("checking")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.AccountByName("Brokerage")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpsertTransactionReplacesSplits(t *testing.T) {
	s := newTestStore(t)
	acct, err := s.CreateAccount("Checking", types.AccountChecking, testClientID)
	require.NoError(t, err)

	tx := types.Transaction{
		AccountID: acct.ID,
		Date:      "2026-03-01",
		Amount:    -5000,
		Memo:      "groceries",
		Splits: []types.Split{
			{Amount: -3000, Memo: "food"},
			{Amount: -2000, Memo: "household"},
		},
	}
	tx.ID = newUUID()
	tx.Touch(testClientID)
	require.NoError(t, s.UpsertTransaction(&tx))

	got, err := s.Transaction(tx.ID)
	require.NoError(t, err)
	require.Len(t, got.Splits, 2)
	for _, sp := range got.Splits {
		assert.NotEmpty(t, sp.ID)
		assert.Equal(t, tx.ID, sp.TransactionID)
	}

	// A new revision carries its full split set; the old set is gone.
	tx.Splits = []types.Split{{Amount: -5000, Memo: "all food"}}
	tx.Touch(testClientID)
	require.NoError(t, s.UpsertTransaction(&tx))

	got, err = s.Transaction(tx.ID)
	require.NoError(t, err)
	require.Len(t, got.Splits, 1)
	assert.Equal(t, "all food", got.Splits[0].Memo)

	n, err := s.RowCount(types.TransactionSplitsTable)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTransactionsForAccountExcludesTombstones(t *testing.T) {
	s := newTestStore(t)
	acct, err := s.CreateAccount("Checking", types.AccountChecking, testClientID)
	require.NoError(t, err)

	live := types.Transaction{AccountID: acct.ID, Date: "2026-03-02", Amount: -100}
	live.ID = newUUID()
	live.Touch(testClientID)
	require.NoError(t, s.UpsertTransaction(&live))

	dead := types.Transaction{AccountID: acct.ID, Date: "2026-03-01", Amount: -200}
	dead.ID = newUUID()
	dead.Touch(testClientID)
	dead.Deleted = true
	require.NoError(t, s.UpsertTransaction(&dead))

	list, err := s.TransactionsForAccount(acct.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, live.ID, list[0].ID)

	// The tombstone is retained in the table.
	n, err := s.RowCount(types.TransactionsTable)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// But still readable by ID.
	got, err := s.Transaction(dead.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
}

func TestMarkTransactionCleared(t *testing.T) {
	s := newTestStore(t)
	acct, err := s.CreateAccount("Checking", types.AccountChecking, testClientID)
	require.NoError(t, err)

	tx := types.Transaction{AccountID: acct.ID, Date: "2026-03-01", Amount: -100}
	tx.ID = newUUID()
	tx.Touch(testClientID)
	require.NoError(t, s.UpsertTransaction(&tx))

	before := tx.UpdatedAt
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.MarkTransactionCleared(tx.ID, "client-b"))

	got, err := s.Transaction(tx.ID)
	require.NoError(t, err)
	assert.True(t, got.Cleared)
	assert.Equal(t, "client-b", got.ClientID)
	assert.True(t, got.UpdatedAt.After(before))

	assert.ErrorIs(t, s.MarkTransactionCleared("missing", testClientID), types.ErrNotFound)
}

func TestRawRowAccess(t *testing.T) {
	s := newTestStore(t)
	f, ok := FamilyByTable(types.CategoriesTable)
	require.True(t, ok)

	now := types.FormatTime(types.Now())
	require.NoError(t, s.UpsertRow(f, []any{"cat-1", "Rent", nil, now, 0, testClientID}))

	row, err := s.Row(f, "cat-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Rent", row[1])
	assert.Equal(t, now, row[f.UpdatedAtCol()])

	row, err = s.Row(f, "missing")
	require.NoError(t, err)
	assert.Nil(t, row)

	// Upserting the same ID overwrites in place.
	require.NoError(t, s.UpsertRow(f, []any{"cat-1", "Housing", nil, now, 0, testClientID}))
	rows, err := s.Rows(f)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Housing", rows[0][1])
}

func TestUpsertScheduleWithSplits(t *testing.T) {
	s := newTestStore(t)
	acct, err := s.CreateAccount("Checking", types.AccountChecking, testClientID)
	require.NoError(t, err)

	sc := types.Schedule{
		AccountID: acct.ID,
		Name:      "Rent",
		Frequency: types.FrequencyMonthly,
		NextDate:  "2026-04-01",
		Amount:    -120000,
		Splits:    []types.ScheduleSplit{{Amount: -120000, CategoryID: strp("cat-rent")}},
	}
	sc.ID = newUUID()
	sc.Touch(testClientID)
	require.NoError(t, s.UpsertSchedule(&sc))

	list, err := s.SchedulesForAccount(acct.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Rent", list[0].Name)

	n, err := s.RowCount(types.ScheduleSplitsTable)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
