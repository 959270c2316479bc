package convert

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

// MatchKind selects how a matcher value is compared.
type MatchKind int

const (
	// MatchExact compares for string equality.
	MatchExact MatchKind = iota

	// MatchRegex compares against a regular expression.
	MatchRegex
)

// Matcher is one header or query-parameter constraint parsed from a weighted
// annotation value of the form "key=value" (exact) or "key~=value" (regex).
type Matcher struct {
	Key   string
	Value string
	Kind  MatchKind
}

// MatchCombination is one (headers, queries) pair applied to a single path
// match. The cartesian expansion of all combinations multiplies each path
// into one match rule per combination.
type MatchCombination struct {
	Headers []Matcher
	Queries []Matcher
}

// ParseMatcher parses a single matcher expression.
func ParseMatcher(raw string) (Matcher, error) {
	key, value, found := strings.Cut(raw, "=")
	if !found || key == "" {
		return Matcher{}, errors.Newf("invalid matcher %q, expected key=value or key~=value", raw)
	}

	kind := MatchExact
	if strings.HasSuffix(key, "~") {
		kind = MatchRegex
		key = strings.TrimSuffix(key, "~")
	}

	if key == "" {
		return Matcher{}, errors.Newf("invalid matcher %q, empty key", raw)
	}

	return Matcher{Key: key, Value: value, Kind: kind}, nil
}

// MatchersFromAnnotations collects matchers from annotations under the given
// prefix, ordered by their numeric weight suffix. Entries with a non-numeric
// weight or a malformed value are skipped with a warning.
func MatchersFromAnnotations(annotations map[string]string, prefix string) []Matcher {
	type weighted struct {
		weight  int
		key     string
		matcher Matcher
	}

	var entries []weighted

	for name, value := range annotations {
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		weight, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil {
			slog.Warn("skipping matcher annotation with non-numeric weight", "annotation", name)

			continue
		}

		matcher, err := ParseMatcher(value)
		if err != nil {
			slog.Warn("skipping malformed matcher annotation", "annotation", name, "error", err)

			continue
		}

		entries = append(entries, weighted{weight: weight, key: name, matcher: matcher})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].weight != entries[j].weight {
			return entries[i].weight < entries[j].weight
		}

		return entries[i].key < entries[j].key
	})

	matchers := make([]Matcher, 0, len(entries))
	for _, e := range entries {
		matchers = append(matchers, e.matcher)
	}

	return matchers
}

// groupByKey splits matchers into per-key groups, preserving the order in
// which keys first appear. Grouping order matters: it fixes the order of the
// cartesian product and therefore the generated match rules.
func groupByKey(matchers []Matcher) [][]Matcher {
	index := make(map[string]int)

	var groups [][]Matcher

	for _, m := range matchers {
		i, ok := index[m.Key]
		if !ok {
			i = len(groups)
			index[m.Key] = i
			groups = append(groups, nil)
		}

		groups[i] = append(groups[i], m)
	}

	return groups
}

// cartesian expands per-key groups into every combination picking one matcher
// per key. An empty input yields no combinations.
func cartesian(groups [][]Matcher) [][]Matcher {
	if len(groups) == 0 {
		return nil
	}

	result := [][]Matcher{{}}

	for _, group := range groups {
		next := make([][]Matcher, 0, len(result)*len(group))

		for _, combo := range result {
			for _, m := range group {
				extended := make([]Matcher, len(combo), len(combo)+1)
				copy(extended, combo)
				next = append(next, append(extended, m))
			}
		}

		result = next
	}

	return result
}

// MatchCombinations expands header and query matchers into the full set of
// (headers, queries) pairs. With no matchers at all it returns the single
// unconstrained combination, so every path always yields at least one match.
func MatchCombinations(headers, queries []Matcher) []MatchCombination {
	headerSets := cartesian(groupByKey(headers))
	querySets := cartesian(groupByKey(queries))

	switch {
	case len(headerSets) == 0 && len(querySets) == 0:
		return []MatchCombination{{}}
	case len(headerSets) == 0:
		combos := make([]MatchCombination, 0, len(querySets))
		for _, qs := range querySets {
			combos = append(combos, MatchCombination{Queries: qs})
		}

		return combos
	case len(querySets) == 0:
		combos := make([]MatchCombination, 0, len(headerSets))
		for _, hs := range headerSets {
			combos = append(combos, MatchCombination{Headers: hs})
		}

		return combos
	}

	combos := make([]MatchCombination, 0, len(headerSets)*len(querySets))

	for _, hs := range headerSets {
		for _, qs := range querySets {
			combos = append(combos, MatchCombination{Headers: hs, Queries: qs})
		}
	}

	return combos
}

func headerMatches(matchers []Matcher) []gatewayv1.HTTPHeaderMatch {
	if len(matchers) == 0 {
		return nil
	}

	matches := make([]gatewayv1.HTTPHeaderMatch, 0, len(matchers))

	for _, m := range matchers {
		matchType := gatewayv1.HeaderMatchExact
		if m.Kind == MatchRegex {
			matchType = gatewayv1.HeaderMatchRegularExpression
		}

		matches = append(matches, gatewayv1.HTTPHeaderMatch{
			Type:  &matchType,
			Name:  gatewayv1.HTTPHeaderName(m.Key),
			Value: m.Value,
		})
	}

	return matches
}

func queryMatches(matchers []Matcher) []gatewayv1.HTTPQueryParamMatch {
	if len(matchers) == 0 {
		return nil
	}

	matches := make([]gatewayv1.HTTPQueryParamMatch, 0, len(matchers))

	for _, m := range matchers {
		matchType := gatewayv1.QueryParamMatchExact
		if m.Kind == MatchRegex {
			matchType = gatewayv1.QueryParamMatchRegularExpression
		}

		matches = append(matches, gatewayv1.HTTPQueryParamMatch{
			Type:  &matchType,
			Name:  gatewayv1.HTTPHeaderName(m.Key),
			Value: m.Value,
		})
	}

	return matches
}
