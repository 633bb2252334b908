package sqlite

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tally/pkg/types"
)

func seedLedger(t *testing.T, s *Store) types.Transaction {
	t.Helper()
	require.NoError(t, s.SeedDefaultCategories(testClientID))
	acct, err := s.CreateAccount("Checking", types.AccountChecking, testClientID)
	require.NoError(t, err)
	payee, err := s.FindOrCreatePayee("Landlord", testClientID)
	require.NoError(t, err)

	tx := types.Transaction{
		AccountID: acct.ID,
		PayeeID:   &payee.ID,
		Date:      "2026-02-01",
		Amount:    -120000,
		Memo:      "rent",
		Splits:    []types.Split{{Amount: -120000}},
	}
	tx.ID = newUUID()
	tx.Touch(testClientID)
	require.NoError(t, s.UpsertTransaction(&tx))
	return tx
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := newTestStore(t)
	tx := seedLedger(t, src)

	data, err := src.ExportSnapshot()
	require.NoError(t, err)

	dst, err := HydrateSnapshot(data)
	require.NoError(t, err)
	defer dst.Close()

	for _, f := range Families() {
		want, err := src.Rows(f)
		require.NoError(t, err)
		got, err := dst.Rows(f)
		require.NoError(t, err)
		assert.Equal(t, want, got, f.Table)
	}

	// Typed reads survive the trip, integer amounts included.
	got, err := dst.Transaction(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-120000), got.Amount)
	assert.True(t, tx.UpdatedAt.Equal(got.UpdatedAt))
	require.Len(t, got.Splits, 1)
}

func TestSnapshotIncludesTombstones(t *testing.T) {
	src := newTestStore(t)
	tx := seedLedger(t, src)

	tx.Deleted = true
	tx.Touch(testClientID)
	require.NoError(t, src.UpsertTransaction(&tx))

	data, err := src.ExportSnapshot()
	require.NoError(t, err)
	dst, err := HydrateSnapshot(data)
	require.NoError(t, err)
	defer dst.Close()

	got, err := dst.Transaction(tx.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
}

func TestImportSnapshotReplacesContents(t *testing.T) {
	src := newTestStore(t)
	seedLedger(t, src)
	data, err := src.ExportSnapshot()
	require.NoError(t, err)

	dst := newTestStore(t)
	stale, err := dst.CreateAccount("Old Account", types.AccountCash, "client-b")
	require.NoError(t, err)

	require.NoError(t, dst.ImportSnapshot(data))

	_, err = dst.AccountByName("Old Account")
	assert.ErrorIs(t, err, types.ErrNotFound)
	f, _ := FamilyByTable(types.AccountsTable)
	row, err := dst.Row(f, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, row)

	_, err = dst.AccountByName("Checking")
	assert.NoError(t, err)
}

func TestImportSnapshotRejectsBadInput(t *testing.T) {
	s := newTestStore(t)

	assert.Error(t, s.ImportSnapshot([]byte("not json")))

	env := map[string]any{"format_version": 99, "records": map[string]any{}}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Error(t, s.ImportSnapshot(data))
}

func TestImportSnapshotIgnoresUnknownFields(t *testing.T) {
	src := newTestStore(t)
	require.NoError(t, src.SeedDefaultCategories(testClientID))
	data, err := src.ExportSnapshot()
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	records := env["records"].(map[string]any)
	cats := records["categories"].([]any)
	cats[0].(map[string]any)["color"] = "#ff0000"
	data, err = json.Marshal(env)
	require.NoError(t, err)

	dst := newTestStore(t)
	require.NoError(t, dst.ImportSnapshot(data))
	got, err := dst.Categories()
	require.NoError(t, err)
	assert.Len(t, got, len(types.DefaultCategories))
}
