package types

// Schedule frequencies.
const (
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// Schedule is a recurring transaction template attached to an account.
// Structurally it mirrors Transaction: it owns a split set that replicates
// atomically with the parent.
type Schedule struct {
	Revision
	AccountID string
	Name      string
	Frequency string // One of the Frequency* constants.
	NextDate  string // Next occurrence, DateLayout.
	Amount    int64
	Memo      string
	Splits    []ScheduleSplit
}

// ScheduleSplit is one category allocation within a schedule.
type ScheduleSplit struct {
	ID         string
	ScheduleID string
	CategoryID *string
	Amount     int64
	Memo       string
}
