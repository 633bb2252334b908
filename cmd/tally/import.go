// Import command for the tally CLI: statement reconciliation.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tally/internal/reconcile"
	"github.com/mesh-intelligence/tally/internal/sqlite"
	"github.com/mesh-intelligence/tally/pkg/types"
)

var (
	flagImportAccount string
	flagImportApply   bool
)

var importCmd = &cobra.Command{
	Use:   "import <statement.csv>",
	Short: "Match a bank statement CSV against the ledger",
	Long: `Import reads a statement CSV (date,amount,payee[,memo] with an
optional header row), matches each line against the account's existing
transactions, and prints the classification. With --apply, unmatched
lines are imported as new transactions and exact matches are marked
cleared.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitSysError)
		}

		store, err := openStore(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitSysError)
		}
		defer store.Close()

		acct, err := store.AccountByName(flagImportAccount)
		if err != nil {
			fmt.Fprintf(os.Stderr, "import: account %q not found\n", flagImportAccount)
			os.Exit(exitUserError)
		}

		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitUserError)
		}
		defer f.Close()

		candidates, err := parseCandidates(f)
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitUserError)
		}

		existing, err := existingForMatch(store, acct.ID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitSysError)
		}

		matches := reconcile.Reconcile(candidates, existing, reconcile.DefaultOptions())
		payees, err := store.Payees()
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitSysError)
		}

		decisions := reconcile.Decisions{}
		for i, m := range matches {
			switch m.Type {
			case reconcile.MatchExact:
				fmt.Printf("%3d  exact  %s %9s %-24s -> %s\n",
					i, m.Candidate.Date, formatAmount(m.Candidate.Amount), m.Candidate.Payee, m.ExistingID)
				decisions[i] = reconcile.DecisionBind
			case reconcile.MatchFuzzy:
				fmt.Printf("%3d  fuzzy  %s %9s %-24s ~> %s\n",
					i, m.Candidate.Date, formatAmount(m.Candidate.Amount), m.Candidate.Payee, m.ExistingID)
				decisions[i] = reconcile.DecisionIgnore
			default:
				line := fmt.Sprintf("%3d  new    %s %9s %-24s",
					i, m.Candidate.Date, formatAmount(m.Candidate.Amount), m.Candidate.Payee)
				if s := reconcile.SuggestPayee(m.Candidate, payees); s != nil {
					line += " (payee? " + s.Name + ")"
				}
				fmt.Println(line)
				decisions[i] = reconcile.DecisionImport
			}
		}

		if !flagImportApply {
			fmt.Println("\ndry run; re-run with --apply to import new lines and clear exact matches")
			return nil
		}

		if err := reconcile.Apply(store, acct.ID, cfg.ClientID, matches, decisions); err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitSysError)
		}
		fmt.Printf("applied %d decisions\n", len(decisions))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&flagImportAccount, "account", "", "account name to reconcile against (required)")
	importCmd.Flags().BoolVar(&flagImportApply, "apply", false, "apply the printed decisions")
	importCmd.MarkFlagRequired("account")
}

// parseCandidates reads statement lines: date,amount,payee[,memo]. A
// first row whose amount column does not parse is treated as a header.
func parseCandidates(r io.Reader) ([]reconcile.Candidate, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var out []reconcile.Candidate
	line := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line++
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: expected date,amount,payee", line)
		}

		amount, err := parseAmount(rec[1])
		if err != nil {
			if line == 1 {
				continue // Header row.
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date := strings.TrimSpace(rec[0])
		if _, err := time.Parse(types.DateLayout, date); err != nil {
			return nil, fmt.Errorf("line %d: bad date %q", line, date)
		}

		c := reconcile.Candidate{
			Date:   date,
			Amount: amount,
			Payee:  strings.TrimSpace(rec[2]),
		}
		if len(rec) > 3 {
			c.Memo = strings.TrimSpace(rec[3])
		}
		out = append(out, c)
	}
	return out, nil
}

// parseAmount converts a decimal currency string to minor units.
// Accepts "12.34", "-12.34", "12" and "12.5".
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q", s)
	}
	cents := int64(0)
	if frac != "" {
		if len(frac) > 2 {
			return 0, fmt.Errorf("bad amount %q", s)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		if cents, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return 0, fmt.Errorf("bad amount %q", s)
		}
	}
	total := units*100 + cents
	if negative {
		total = -total
	}
	return total, nil
}

func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// existingForMatch projects the account's live transactions into the
// matcher's comparison view, resolving payee names.
func existingForMatch(store *sqlite.Store, accountID string) ([]reconcile.Existing, error) {
	payees, err := store.Payees()
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(payees))
	for _, p := range payees {
		names[p.ID] = p.Name
	}

	txs, err := store.TransactionsForAccount(accountID)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.Existing, 0, len(txs))
	for _, tx := range txs {
		e := reconcile.Existing{ID: tx.ID, Date: tx.Date, Amount: tx.Amount}
		if tx.PayeeID != nil {
			e.Payee = names[*tx.PayeeID]
		}
		out = append(out, e)
	}
	return out, nil
}
