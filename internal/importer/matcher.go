package importer

import (
	"slices"
	"strings"

	"github.com/worshipplan/server/internal/domain"
)

// Matcher resolves free-text candidate names against an immutable roster
// snapshot. Matching is deliberately simple: for each candidate the roster
// is scanned in its existing order and the first person whose lowercase
// first name equals the candidate, or whose lowercase full name contains
// the candidate, wins. Ambiguous short names can therefore mis-bind
// ("Sam" inside "Samantha"); changing this policy would change observable
// import results, so it stays as-is.
type Matcher struct {
	roster []domain.Person
}

// NewMatcher builds a matcher over the people eligible to lead: those with
// lead or harmony vocal capability, kept in the roster's existing order.
func NewMatcher(roster []domain.Person) *Matcher {
	eligible := make([]domain.Person, 0, len(roster))
	for _, p := range roster {
		if p.LeadVocal || p.HarmonyVocal {
			eligible = append(eligible, p)
		}
	}
	return &Matcher{roster: eligible}
}

// Match resolves candidate names to person identifiers, preserving
// candidate order and dropping duplicates. A candidate with no match
// contributes nothing; that is not an error.
func (m *Matcher) Match(candidates []string) []string {
	var matched []string
	for _, candidate := range candidates {
		want := strings.ToLower(strings.TrimSpace(candidate))
		if want == "" {
			continue
		}
		for _, p := range m.roster {
			full := strings.ToLower(p.Name)
			first, _, _ := strings.Cut(full, " ")
			if want != first && !strings.Contains(full, want) {
				continue
			}
			if !slices.Contains(matched, p.PersonID) {
				matched = append(matched, p.PersonID)
			}
			break
		}
	}
	return matched
}
