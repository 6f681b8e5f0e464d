package engine

import (
	"sort"
	"strings"
)

// MatchActions returns the active actions whose trigger phrase occurs in the
// prompt, ordered by descending phrase length. Matching is case-insensitive
// substring containment; ties keep the input order, so callers get a
// deterministic best match. Actions with an empty trigger phrase never match.
func MatchActions(prompt string, actions []Action) []Action {
	lowered := strings.ToLower(prompt)
	var matched []Action
	for _, a := range actions {
		if !a.Active {
			continue
		}
		phrase := strings.ToLower(strings.TrimSpace(a.TriggerPhrase))
		if phrase == "" {
			continue
		}
		if strings.Contains(lowered, phrase) {
			matched = append(matched, a)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return len(matched[i].TriggerPhrase) > len(matched[j].TriggerPhrase)
	})
	return matched
}
