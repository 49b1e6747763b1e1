package plan

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Placeholder returns the token that references an action id.
func Placeholder(id string) string {
	return "{{" + id + "}}"
}

// Placeholders lists the distinct ids referenced in text, in order of first use.
func Placeholders(text string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	}
	return ids
}

// Substitute replaces each {{id}} with values[id]. Tokens without a value are
// left in place; validation guarantees they never reach this point in a run.
func Substitute(text string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(tok string) string {
		id := strings.TrimSpace(strings.Trim(tok, "{}"))
		if v, ok := values[id]; ok {
			return v
		}
		return tok
	})
}
