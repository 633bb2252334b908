package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tally/internal/sqlite"
	"github.com/mesh-intelligence/tally/pkg/types"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func at(t *testing.T, offset time.Duration) time.Time {
	t.Helper()
	base, err := types.ParseTime("2026-03-01T12:00:00.000Z")
	require.NoError(t, err)
	return base.Add(offset)
}

func putTx(t *testing.T, s *sqlite.Store, tx types.Transaction) {
	t.Helper()
	require.NoError(t, s.UpsertTransaction(&tx))
}

func makeTx(id, accountID, memo string, updated time.Time, clientID string, splits ...types.Split) types.Transaction {
	tx := types.Transaction{
		AccountID: accountID,
		Date:      "2026-03-01",
		Amount:    -1000,
		Memo:      memo,
		Splits:    splits,
	}
	tx.ID = id
	tx.UpdatedAt = updated
	tx.ClientID = clientID
	return tx
}

func TestMergeInsertsAbsentRows(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	acct, err := remote.CreateAccount("Checking", types.AccountChecking, "client-b")
	require.NoError(t, err)
	putTx(t, remote, makeTx("tx-1", acct.ID, "coffee", at(t, 0), "client-b",
		types.Split{ID: "sp-1", Amount: -1000}))

	changed, err := RemoteIntoLocal(remote, local)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := local.Transaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, "coffee", got.Memo)
	require.Len(t, got.Splits, 1)
	assert.Equal(t, "sp-1", got.Splits[0].ID)

	// Inserted revisions are verbatim copies, client stamp included.
	assert.Equal(t, "client-b", got.ClientID)
	assert.True(t, got.UpdatedAt.Equal(at(t, 0)))
}

func TestMergeNewerRemoteWins(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	putTx(t, local, makeTx("tx-1", "acct-1", "old memo", at(t, 0), "client-a"))
	putTx(t, remote, makeTx("tx-1", "acct-1", "new memo", at(t, time.Second), "client-b"))

	changed, err := RemoteIntoLocal(remote, local)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := local.Transaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, "new memo", got.Memo)
	assert.Equal(t, "client-b", got.ClientID)
}

func TestMergeOlderRemoteLoses(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	putTx(t, local, makeTx("tx-1", "acct-1", "local", at(t, time.Second), "client-a"))
	putTx(t, remote, makeTx("tx-1", "acct-1", "remote", at(t, 0), "client-b"))

	changed, err := RemoteIntoLocal(remote, local)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := local.Transaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, "local", got.Memo)
}

func TestMergeTieKeepsLocal(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	putTx(t, local, makeTx("tx-1", "acct-1", "local", at(t, 0), "client-a"))
	putTx(t, remote, makeTx("tx-1", "acct-1", "remote", at(t, 0), "client-b"))

	changed, err := RemoteIntoLocal(remote, local)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := local.Transaction("tx-1")
	require.NoError(t, err)
	assert.Equal(t, "local", got.Memo)
	assert.Equal(t, "client-a", got.ClientID)
}

func TestMergeTombstonePropagates(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	putTx(t, local, makeTx("tx-1", "acct-1", "rent", at(t, 0), "client-a"))

	dead := makeTx("tx-1", "acct-1", "rent", at(t, time.Second), "client-b")
	dead.Deleted = true
	putTx(t, remote, dead)

	_, err := RemoteIntoLocal(remote, local)
	require.NoError(t, err)

	got, err := local.Transaction("tx-1")
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	// The row stays in the table as a tombstone.
	n, err := local.RowCount(types.TransactionsTable)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMergeReplacesChildSetWholesale(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	putTx(t, local, makeTx("tx-1", "acct-1", "groceries", at(t, 0), "client-a",
		types.Split{ID: "sp-a", Amount: -600},
		types.Split{ID: "sp-b", Amount: -400}))
	putTx(t, remote, makeTx("tx-1", "acct-1", "groceries", at(t, time.Second), "client-b",
		types.Split{ID: "sp-c", Amount: -1000}))

	_, err := RemoteIntoLocal(remote, local)
	require.NoError(t, err)

	got, err := local.Transaction("tx-1")
	require.NoError(t, err)
	require.Len(t, got.Splits, 1)
	assert.Equal(t, "sp-c", got.Splits[0].ID)

	// No orphaned splits from the losing revision remain.
	n, err := local.RowCount(types.TransactionSplitsTable)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMergeLosingParentKeepsLocalChildren(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	putTx(t, local, makeTx("tx-1", "acct-1", "groceries", at(t, time.Second), "client-a",
		types.Split{ID: "sp-a", Amount: -1000}))
	putTx(t, remote, makeTx("tx-1", "acct-1", "groceries", at(t, 0), "client-b",
		types.Split{ID: "sp-b", Amount: -1000}))

	_, err := RemoteIntoLocal(remote, local)
	require.NoError(t, err)

	got, err := local.Transaction("tx-1")
	require.NoError(t, err)
	require.Len(t, got.Splits, 1)
	assert.Equal(t, "sp-a", got.Splits[0].ID)
}

func TestMergeIsIdempotent(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	require.NoError(t, remote.SeedDefaultCategories("client-b"))
	acct, err := remote.CreateAccount("Checking", types.AccountChecking, "client-b")
	require.NoError(t, err)
	putTx(t, remote, makeTx("tx-1", acct.ID, "coffee", at(t, 0), "client-b",
		types.Split{ID: "sp-1", Amount: -1000}))

	changed, err := RemoteIntoLocal(remote, local)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = RemoteIntoLocal(remote, local)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMergeConverges(t *testing.T) {
	// Divergent stores merged both ways end with identical contents.
	a := newStore(t)
	b := newStore(t)

	putTx(t, a, makeTx("tx-1", "acct-1", "from a", at(t, 0), "client-a"))
	putTx(t, b, makeTx("tx-2", "acct-1", "from b", at(t, time.Second), "client-b"))
	putTx(t, a, makeTx("tx-3", "acct-1", "a newer", at(t, 2*time.Second), "client-a"))
	putTx(t, b, makeTx("tx-3", "acct-1", "b older", at(t, time.Second), "client-b"))

	_, err := RemoteIntoLocal(a, b)
	require.NoError(t, err)
	_, err = RemoteIntoLocal(b, a)
	require.NoError(t, err)

	for _, f := range sqlite.Families() {
		rowsA, err := a.Rows(f)
		require.NoError(t, err)
		rowsB, err := b.Rows(f)
		require.NoError(t, err)
		assert.Equal(t, rowsA, rowsB, f.Table)
	}

	got, err := a.Transaction("tx-3")
	require.NoError(t, err)
	assert.Equal(t, "a newer", got.Memo)
}

func TestMergeConcurrentEditLastWriterWins(t *testing.T) {
	// Two devices edit the same transaction offline; the later edit wins
	// everywhere once both have synced.
	a := newStore(t)
	b := newStore(t)

	base := makeTx("tx-1", "acct-1", "Rent", at(t, 0), "client-a")
	putTx(t, a, base)
	putTx(t, b, base)

	editA := makeTx("tx-1", "acct-1", "Rent Jan", at(t, time.Minute), "client-a")
	putTx(t, a, editA)
	editB := makeTx("tx-1", "acct-1", "Rent January", at(t, 2*time.Minute), "client-b")
	putTx(t, b, editB)

	_, err := RemoteIntoLocal(b, a)
	require.NoError(t, err)
	_, err = RemoteIntoLocal(a, b)
	require.NoError(t, err)

	for _, s := range []*sqlite.Store{a, b} {
		got, err := s.Transaction("tx-1")
		require.NoError(t, err)
		assert.Equal(t, "Rent January", got.Memo)
		assert.Equal(t, "client-b", got.ClientID)
	}
}

func TestMergeCategoriesBeforeDependents(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	require.NoError(t, remote.SeedDefaultCategories("client-b"))
	cats, err := remote.Categories()
	require.NoError(t, err)
	require.NotEmpty(t, cats)

	p := types.Payee{Name: "Grocery Mart", DefaultCategoryID: &cats[0].ID}
	p.ID = "payee-1"
	p.UpdatedAt = at(t, 0)
	p.ClientID = "client-b"
	require.NoError(t, remote.UpsertPayee(&p))

	_, err = RemoteIntoLocal(remote, local)
	require.NoError(t, err)

	gotCats, err := local.Categories()
	require.NoError(t, err)
	assert.Len(t, gotCats, len(cats))
	gotPayees, err := local.Payees()
	require.NoError(t, err)
	require.Len(t, gotPayees, 1)
	require.NotNil(t, gotPayees[0].DefaultCategoryID)
	assert.Equal(t, cats[0].ID, *gotPayees[0].DefaultCategoryID)
}

func TestMergeRejectsMalformedEnvelope(t *testing.T) {
	remote := newStore(t)
	local := newStore(t)

	f, ok := sqlite.FamilyByTable(types.CategoriesTable)
	require.True(t, ok)
	require.NoError(t, remote.UpsertRow(f, []any{"cat-1", "Rent", nil, "", 0, "client-b"}))

	_, err := RemoteIntoLocal(remote, local)
	assert.Error(t, err)
}
