package semantic

import (
	"strings"
	"unicode"
)

// prefixVerbs maps common identifier prefixes to feature verbs.
var prefixVerbs = []struct {
	prefix string
	verb   string
}{
	{"get", "retrieve"},
	{"fetch", "retrieve"},
	{"is", "check if"},
	{"has", "check if"},
	{"can", "check if"},
	{"should", "check if"},
	{"parse", "parse"},
	{"handle", "dispatch"},
	{"set", "assign"},
	{"create", "create"},
	{"make", "create"},
	{"new", "create"},
	{"build", "build"},
	{"init", "initialize"},
	{"load", "load"},
	{"save", "persist"},
	{"write", "write"},
	{"read", "read"},
	{"delete", "delete"},
	{"remove", "remove"},
	{"update", "update"},
	{"find", "locate"},
	{"search", "locate"},
	{"validate", "validate"},
	{"check", "verify"},
	{"convert", "convert"},
	{"to", "convert to"},
	{"format", "format"},
	{"render", "render"},
	{"send", "send"},
	{"emit", "emit"},
	{"compute", "compute"},
	{"calc", "compute"},
	{"merge", "merge"},
	{"filter", "filter"},
	{"sort", "order"},
	{"apply", "apply"},
	{"register", "register"},
	{"resolve", "resolve"},
	{"extract", "extract"},
	{"encode", "encode"},
	{"decode", "decode"},
}

// HeuristicFeature derives a feature without an LLM. Deterministic:
// two calls with the same input always return the same feature.
func HeuristicFeature(input EntityInput) *Feature {
	humanized := Humanize(input.Name)
	description := ""

	lower := strings.ToLower(input.Name)
	for _, pv := range prefixVerbs {
		if !strings.HasPrefix(lower, pv.prefix) || !prefixBoundary(input.Name, len(pv.prefix)) {
			continue
		}
		rest := strings.TrimSpace(Humanize(input.Name[len(pv.prefix):]))
		if rest == "" {
			continue
		}
		description = pv.verb + " " + rest
		break
	}
	if description == "" {
		if humanized == "" {
			humanized = strings.ToLower(input.Type)
		}
		description = "provide " + humanized + " operation"
	}

	f := &Feature{
		Description: description,
		Keywords:    heuristicKeywords(input),
	}
	ValidateFeature(f)
	return f
}

// prefixBoundary reports whether a word boundary follows the first n
// characters of name (uppercase letter or separator), so "toString"
// matches the "to" prefix but "total" does not.
func prefixBoundary(name string, n int) bool {
	if n >= len(name) {
		return false
	}
	c := rune(name[n])
	return unicode.IsUpper(c) || c == '_' || c == '-'
}

// Humanize splits a camelCase or snake_case identifier into lowercase words.
func Humanize(name string) string {
	var b strings.Builder
	var prev rune
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && prev != 0 && !unicode.IsUpper(prev) && prev != ' ':
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
		prev = r
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// heuristicKeywords collects keywords from the name, entity type, parent
// and path segments longer than two characters.
func heuristicKeywords(input EntityInput) []string {
	var keywords []string
	keywords = append(keywords, strings.Fields(Humanize(input.Name))...)
	if input.Type != "" {
		keywords = append(keywords, strings.ToLower(input.Type))
	}
	if input.Parent != "" {
		keywords = append(keywords, strings.ToLower(input.Parent))
	}
	for _, seg := range strings.Split(input.FilePath, "/") {
		seg = strings.ToLower(seg)
		if idx := strings.IndexByte(seg, '.'); idx >= 0 {
			seg = seg[:idx]
		}
		if len(seg) > 2 {
			keywords = append(keywords, seg)
		}
	}
	return dedupeStrings(keywords)
}
