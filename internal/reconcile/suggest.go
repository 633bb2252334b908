package reconcile

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mesh-intelligence/tally/pkg/types"
)

// maxSuggestDistance caps how dissimilar a payee name may be and still be
// suggested. Statement descriptors are noisy; beyond this distance the
// suggestion is more likely wrong than helpful.
const maxSuggestDistance = 5

// SuggestPayee returns the known payee closest to the candidate's payee
// text, for pre-filling the import form of an unmatched candidate. It
// returns nil when no payee is close enough. Classification is never
// affected by the suggestion.
func SuggestPayee(candidate Candidate, payees []types.Payee) *types.Payee {
	needle := strings.ToLower(strings.TrimSpace(candidate.Payee))
	if needle == "" {
		return nil
	}

	var best *types.Payee
	bestDist := maxSuggestDistance + 1
	for i := range payees {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(payees[i].Name))
		if d < bestDist {
			bestDist = d
			best = &payees[i]
		}
	}
	return best
}
