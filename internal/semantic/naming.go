package semantic

import (
	"strings"
)

// implementationDetailTokens never belong in a feature description;
// they describe how code works, not what it does.
var implementationDetailTokens = map[string]bool{
	"loop": true, "iterate": true, "if": true, "else": true, "array": true,
	"dict": true, "hash": true, "stack": true, "queue": true, "for": true,
	"while": true, "switch": true, "case": true, "try": true, "catch": true,
	"throw": true, "return": true, "break": true, "continue": true,
}

// nonActionPrefixes are first words that mark a conjunct as a noun phrase
// rather than an action, so it must not be split into a sub-feature.
var nonActionPrefixes = map[string]bool{
	"a": true, "an": true, "the": true, "their": true, "its": true,
	"this": true, "that": true, "these": true, "those": true,
	"all": true, "any": true, "some": true, "each": true, "every": true,
}

// vagueVerbReplacements swaps leading vague verbs for concrete ones.
var vagueVerbReplacements = []struct {
	prefix      string
	replacement string
}{
	{"deal with ", "resolve "},
	{"handle ", "dispatch "},
	{"process ", "transform "},
	{"manage ", "coordinate "},
	{"perform ", "execute "},
	{"do ", "execute "},
	{"run ", "execute "},
}

const maxDescriptionWords = 8

// ValidateFeatureName normalizes a raw description into the canonical
// verb+object form: lowercase, no trailing punctuation, no implementation
// detail tokens, no leading vague verb, at most eight words. A chained
// "x and y" phrase is split: the first conjunct becomes the description
// and action-like remainders become sub-features.
// The function is idempotent: validating its own output is a no-op.
func ValidateFeatureName(raw string) (description string, subFeatures []string) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimRight(s, ".,;:!?")

	// Drop implementation-detail tokens.
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !implementationDetailTokens[w] {
			kept = append(kept, w)
		}
	}
	s = strings.Join(kept, " ")

	// Split chained actions on " and ".
	if strings.Contains(s, " and ") {
		conjuncts := strings.Split(s, " and ")
		first := strings.TrimSpace(conjuncts[0])
		if len(strings.Fields(first)) >= 2 && hasActionConjunct(conjuncts[1:]) {
			s = first
			for _, c := range conjuncts[1:] {
				c = strings.TrimSpace(c)
				if c == "" {
					continue
				}
				if !nonActionPrefixes[strings.Fields(c)[0]] {
					subFeatures = append(subFeatures, replaceVagueVerb(c))
				}
			}
		}
	}

	s = replaceVagueVerb(s)

	// Truncate to the word budget; short phrases are left as-is.
	words = strings.Fields(s)
	if len(words) > maxDescriptionWords {
		words = words[:maxDescriptionWords]
	}
	return strings.Join(words, " "), subFeatures
}

func hasActionConjunct(conjuncts []string) bool {
	for _, c := range conjuncts {
		fields := strings.Fields(strings.TrimSpace(c))
		if len(fields) > 0 && !nonActionPrefixes[fields[0]] {
			return true
		}
	}
	return false
}

func replaceVagueVerb(s string) string {
	for _, r := range vagueVerbReplacements {
		if strings.HasPrefix(s, r.prefix) {
			return r.replacement + strings.TrimPrefix(s, r.prefix)
		}
	}
	return s
}

// ValidateFeature normalizes a whole feature in place: description,
// sub-features and keyword casing.
func ValidateFeature(f *Feature) {
	desc, extra := ValidateFeatureName(f.Description)
	f.Description = desc
	subs := make([]string, 0, len(f.SubFeatures)+len(extra))
	for _, sub := range f.SubFeatures {
		cleaned, _ := ValidateFeatureName(sub)
		if cleaned != "" {
			subs = append(subs, cleaned)
		}
	}
	subs = append(subs, extra...)
	f.SubFeatures = dedupeStrings(subs)

	keywords := make([]string, 0, len(f.Keywords))
	for _, k := range f.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	f.Keywords = dedupeStrings(keywords)
}

func dedupeStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
