package types

import "time"

// TimeLayout is the canonical timestamp format for UpdatedAt fields.
// Fixed-width UTC with millisecond precision, so the stored text sorts
// lexically in chronological order. Device clocks are trusted as-is;
// there is no logical-clock scheme, and changing the tie-break rule
// changes observable merge outcomes.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the calendar-date format used by transactions, schedules
// and statement candidates.
const DateLayout = "2006-01-02"

// Revision is the replication envelope embedded in every mergeable record
// family. For two revisions of the same ID the one with the strictly
// greater UpdatedAt wins; ties keep the existing local revision.
type Revision struct {
	ID        string    // UUID v7, never reused.
	UpdatedAt time.Time // Advanced on every local mutation.
	Deleted   bool      // Tombstone; deleted rows are retained, never removed.
	ClientID  string    // Device that produced this revision.
}

// Touch stamps the revision with the current UTC time and the mutating
// device's client ID.
func (r *Revision) Touch(clientID string) {
	r.UpdatedAt = Now()
	r.ClientID = clientID
}

// Now returns the current UTC time truncated to TimeLayout precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
