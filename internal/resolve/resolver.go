// Package resolve implements fuzzy, case-insensitive matching of a
// free-text name against the developer roster.
package resolve

import (
	"strings"

	"bugbot/internal/logging"
	"bugbot/internal/types"
)

// Kind classifies a resolution outcome.
type Kind int

const (
	// Exact means the query equals a roster entry's full name, or
	// equals a whole name token of exactly one entry.
	Exact Kind = iota
	// PartialNeedsConfirmation means exactly one roster entry matched,
	// and only by token prefix; the caller must get explicit user
	// confirmation before treating the developer as resolved.
	PartialNeedsConfirmation
	// Ambiguous means two or more roster entries matched.
	Ambiguous
	// NotFound means nothing matched.
	NotFound
)

// minPrefixLen guards token-prefix matching against one- and two-letter
// queries producing spurious matches.
const minPrefixLen = 3

// Outcome is the result of resolving a name against the roster. Exactly
// one of DeveloperID (Exact/Partial) or Candidates (Ambiguous/NotFound)
// is meaningful, selected by Kind.
type Outcome struct {
	Kind        Kind
	DeveloperID int
	Name        string
	// Candidates holds the matched names for Ambiguous, or every roster
	// name for NotFound so the caller can present valid options.
	Candidates []string
}

// Resolve matches a free-text query against the roster.
//
// An exact full-name match (case-insensitive) always wins. Otherwise the
// query is compared against each roster name's whitespace-split tokens:
// a token matches when it equals the query, or when it starts with the
// query and the query is at least minPrefixLen long. A unique match by
// whole-token equality ("alice" naming the only Alice) is treated as
// exact; a unique match reached only through a prefix needs the user to
// confirm it. Resolve never fails; absence of a match is a normal
// outcome.
func Resolve(query string, roster []types.Developer) Outcome {
	q := strings.ToLower(strings.TrimSpace(query))

	for _, dev := range roster {
		if strings.ToLower(dev.Name) == q {
			logging.ResolverDebug("exact match %q -> developer %d", query, dev.ID)
			return Outcome{Kind: Exact, DeveloperID: dev.ID, Name: dev.Name}
		}
	}

	var matches []types.Developer
	var byToken []bool
	for _, dev := range roster {
		if exact, ok := nameTokenMatch(dev.Name, q); ok {
			matches = append(matches, dev)
			byToken = append(byToken, exact)
		}
	}

	switch len(matches) {
	case 0:
		names := make([]string, len(roster))
		for i, dev := range roster {
			names[i] = dev.Name
		}
		logging.ResolverDebug("no match for %q", query)
		return Outcome{Kind: NotFound, Candidates: names}
	case 1:
		kind := PartialNeedsConfirmation
		if byToken[0] {
			kind = Exact
		}
		logging.ResolverDebug("single match %q -> developer %d (%s), exact=%v", query, matches[0].ID, matches[0].Name, byToken[0])
		return Outcome{
			Kind:        kind,
			DeveloperID: matches[0].ID,
			Name:        matches[0].Name,
		}
	default:
		names := make([]string, len(matches))
		for i, dev := range matches {
			names[i] = dev.Name
		}
		logging.Resolver("ambiguous query %q matched %d developers", query, len(matches))
		return Outcome{Kind: Ambiguous, Candidates: names}
	}
}

// nameTokenMatch reports whether any whitespace-split token of name
// matches the normalized query, and whether that match was whole-token
// equality rather than a prefix.
func nameTokenMatch(name, q string) (exact, ok bool) {
	if q == "" {
		return false, false
	}
	for _, part := range strings.Fields(strings.ToLower(name)) {
		if part == q {
			return true, true
		}
		if len(q) >= minPrefixLen && strings.HasPrefix(part, q) {
			ok = true
		}
	}
	return false, ok
}

// SimilarDevelopers returns every roster entry the query token-matches,
// used to build a disambiguation prompt.
func SimilarDevelopers(query string, roster []types.Developer) []types.Developer {
	q := strings.ToLower(strings.TrimSpace(query))
	var matches []types.Developer
	for _, dev := range roster {
		if _, ok := nameTokenMatch(dev.Name, q); ok {
			matches = append(matches, dev)
		}
	}
	return matches
}
