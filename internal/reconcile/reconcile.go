// Package reconcile matches imported statement lines against existing
// ledger transactions.
package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/tally/internal/sqlite"
	"github.com/mesh-intelligence/tally/pkg/types"
)

// Match classifications.
const (
	MatchExact = "exact"
	MatchFuzzy = "fuzzy"
	MatchNone  = "none"
)

// Candidate is one imported statement line.
type Candidate struct {
	Date   string // DateLayout.
	Amount int64  // Minor currency units.
	Payee  string
	Memo   string
}

// Existing is the view of a ledger transaction the matcher compares
// against.
type Existing struct {
	ID     string
	Date   string
	Amount int64
	Payee  string
}

// Match is the classification of one candidate, in candidate order.
type Match struct {
	Type       string // One of the Match* constants.
	Candidate  Candidate
	ExistingID string // Set for exact and fuzzy matches.
	Confidence float64
}

// Options tune the matcher.
type Options struct {
	// FuzzyDateRangeDays is the inclusive calendar-day distance within
	// which an equal-amount transaction counts as a fuzzy match.
	FuzzyDateRangeDays int
}

// DefaultOptions matches amounts within five calendar days.
func DefaultOptions() Options {
	return Options{FuzzyDateRangeDays: 5}
}

// Fingerprint digests the identity fields of a transaction: date, amount
// and normalized payee. Identical fingerprints mean an exact duplicate
// regardless of payee casing or surrounding whitespace.
func Fingerprint(date string, amount int64, payee string) string {
	normalized := fmt.Sprintf("%s|%d|%s", date, amount, strings.ToLower(strings.TrimSpace(payee)))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Reconcile classifies each candidate against the existing transactions.
// Pure: no I/O, no mutation, and the result is index-aligned with the
// candidates. Per candidate the first fingerprint hit wins as exact; else
// the first equal-amount transaction within the fuzzy date range wins as
// fuzzy; else the candidate is unmatched.
func Reconcile(candidates []Candidate, existing []Existing, opts Options) []Match {
	byFingerprint := make(map[string]string, len(existing))
	for _, e := range existing {
		fp := Fingerprint(e.Date, e.Amount, e.Payee)
		if _, ok := byFingerprint[fp]; !ok {
			byFingerprint[fp] = e.ID
		}
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		m := Match{Type: MatchNone, Candidate: c}

		if id, ok := byFingerprint[Fingerprint(c.Date, c.Amount, c.Payee)]; ok {
			m.Type = MatchExact
			m.ExistingID = id
			m.Confidence = 1.0
			matches = append(matches, m)
			continue
		}

		for _, e := range existing {
			if e.Amount != c.Amount {
				continue
			}
			if withinDays(c.Date, e.Date, opts.FuzzyDateRangeDays) {
				m.Type = MatchFuzzy
				m.ExistingID = e.ID
				m.Confidence = 0.8
				break
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// withinDays reports whether two dates are at most n calendar days apart.
// Unparseable dates never match.
func withinDays(a, b string, n int) bool {
	ta, err := time.Parse(types.DateLayout, a)
	if err != nil {
		return false
	}
	tb, err := time.Parse(types.DateLayout, b)
	if err != nil {
		return false
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(n)*24*time.Hour
}

// Decision outcomes for one match.
const (
	DecisionImport = "import"
	DecisionBind   = "bind"
	DecisionIgnore = "ignore"
)

// Decisions maps a match's index in the Reconcile result to the user's
// chosen outcome. Indexes without an entry are ignored.
type Decisions map[int]string

func newTransactionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Apply executes the user-confirmed decisions against the store. Import
// creates a new transaction on the account (resolving the payee by name);
// bind marks the matched existing transaction cleared. Unlike the sync
// sequences this is a user-initiated mutation, so failures are returned,
// not swallowed.
func Apply(store *sqlite.Store, accountID, clientID string, matches []Match, decisions Decisions) error {
	for i, m := range matches {
		switch decisions[i] {
		case DecisionImport:
			tx := types.Transaction{
				AccountID: accountID,
				Date:      m.Candidate.Date,
				Amount:    m.Candidate.Amount,
				Memo:      m.Candidate.Memo,
			}
			if m.Candidate.Payee != "" {
				payee, err := store.FindOrCreatePayee(m.Candidate.Payee, clientID)
				if err != nil {
					return fmt.Errorf("importing candidate %d: %w", i, err)
				}
				tx.PayeeID = &payee.ID
			}
			tx.ID = newTransactionID()
			tx.Touch(clientID)
			tx.Splits = []types.Split{{Amount: tx.Amount}}
			if err := store.UpsertTransaction(&tx); err != nil {
				return fmt.Errorf("importing candidate %d: %w", i, err)
			}
		case DecisionBind:
			if m.ExistingID == "" {
				return fmt.Errorf("binding candidate %d: no matched transaction", i)
			}
			if err := store.MarkTransactionCleared(m.ExistingID, clientID); err != nil {
				return fmt.Errorf("binding candidate %d: %w", i, err)
			}
		}
	}
	return nil
}
