// Package sqlite implements the on-device relational store for the tally
// ledger and the snapshot format exchanged between devices.
package sqlite

// Schema DDL. Statements are listed in dependency order so a fresh store
// can be created in one pass with foreign keys enabled. Every mergeable
// family carries the replication envelope columns (updated_at, is_deleted,
// client_id); the split tables do not, because splits replicate only as
// part of their owning parent.
const (
	createMeta = `CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	createCategories = `CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    parent_id TEXT,
    updated_at TEXT NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    client_id TEXT NOT NULL
);`

	createPayees = `CREATE TABLE IF NOT EXISTS payees (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    default_category_id TEXT,
    updated_at TEXT NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    client_id TEXT NOT NULL
);`

	createAccounts = `CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    client_id TEXT NOT NULL
);`

	createTransactions = `CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    payee_id TEXT,
    date TEXT NOT NULL,
    amount INTEGER NOT NULL,
    memo TEXT NOT NULL DEFAULT '',
    cleared INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    client_id TEXT NOT NULL
);`

	createTransactionSplits = `CREATE TABLE IF NOT EXISTS transaction_splits (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    category_id TEXT,
    amount INTEGER NOT NULL,
    memo TEXT NOT NULL DEFAULT ''
);`

	createSchedules = `CREATE TABLE IF NOT EXISTS schedules (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    name TEXT NOT NULL,
    frequency TEXT NOT NULL,
    next_date TEXT NOT NULL,
    amount INTEGER NOT NULL,
    memo TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    client_id TEXT NOT NULL
);`

	createScheduleSplits = `CREATE TABLE IF NOT EXISTS schedule_splits (
    id TEXT PRIMARY KEY,
    schedule_id TEXT NOT NULL,
    category_id TEXT,
    amount INTEGER NOT NULL,
    memo TEXT NOT NULL DEFAULT ''
);`
)

// Index DDL for the queries the sync core and CLI run.
const (
	idxTransactionsAccount = `CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);`
	idxTransactionsDate    = `CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);`
	idxSplitsTransaction   = `CREATE INDEX IF NOT EXISTS idx_splits_transaction ON transaction_splits(transaction_id);`
	idxSchedulesAccount    = `CREATE INDEX IF NOT EXISTS idx_schedules_account ON schedules(account_id);`
	idxScheduleSplits      = `CREATE INDEX IF NOT EXISTS idx_schedule_splits_schedule ON schedule_splits(schedule_id);`
	idxPayeesName          = `CREATE INDEX IF NOT EXISTS idx_payees_name ON payees(name);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createMeta,
	createCategories,
	createPayees,
	createAccounts,
	createTransactions,
	createTransactionSplits,
	createSchedules,
	createScheduleSplits,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxTransactionsAccount,
	idxTransactionsDate,
	idxSplitsTransaction,
	idxSchedulesAccount,
	idxScheduleSplits,
	idxPayeesName,
}
