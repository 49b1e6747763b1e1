package agent

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxLabelWords = 4

// Words that end the leading clause of a description.
var clauseBreaks = map[string]bool{
	"with": true, "including": true, "using": true, "by": true, "via": true,
	"while": true, "so": true, "because": true, "which": true, "that": true,
	"avec": true, "en": true, "par": true, "incluant": true, "afin": true,
	"tout": true, "qui": true, "dont": true,
}

var functionWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "for": true, "to": true,
	"and": true, "or": true, "in": true, "on": true, "at": true, "from": true,
	"into": true, "about": true, "as": true, "its": true, "their": true, "your": true,
	"each": true, "all": true, "any": true, "some": true, "this": true, "these": true,
	"le": true, "la": true, "les": true, "un": true, "une": true, "des": true,
	"du": true, "de": true, "pour": true, "et": true, "ou": true, "au": true,
	"aux": true, "sur": true, "dans": true, "à": true, "ce": true, "cet": true,
	"cette": true, "ces": true, "son": true, "sa": true, "ses": true, "leur": true,
	"leurs": true, "chaque": true, "tous": true, "toutes": true,
}

var leadingVerbs = map[string]bool{
	"create": true, "write": true, "draft": true, "generate": true, "produce": true,
	"build": true, "make": true, "prepare": true, "design": true, "develop": true,
	"analyze": true, "analyse": true, "summarize": true, "summarise": true,
	"research": true, "identify": true, "review": true, "compile": true, "list": true,
	"define": true, "outline": true, "describe": true, "explain": true, "collect": true,
	"gather": true, "compare": true, "evaluate": true, "assess": true, "validate": true,
	"implement": true, "plan": true, "propose": true, "find": true, "search": true,
	"combine": true, "assemble": true, "synthesize": true, "provide": true, "give": true,
	"rédiger": true, "créer": true, "écrire": true, "générer": true, "produire": true,
	"préparer": true, "concevoir": true, "développer": true, "analyser": true,
	"résumer": true, "rechercher": true, "identifier": true, "examiner": true,
	"compiler": true, "lister": true, "définir": true, "décrire": true,
	"expliquer": true, "collecter": true, "rassembler": true, "comparer": true,
	"évaluer": true, "valider": true, "proposer": true, "élaborer": true,
	"établir": true, "synthétiser": true, "fournir": true, "trouver": true,
	"assembler": true, "construire": true,
}

// ShortLabel derives a short title from an action description. It keeps up to
// four content words of the leading clause and never ends on a function word.
// Descriptions with fewer than two content words get "<Step> N".
func ShortLabel(description string, step int, cat Catalog) string {
	fallback := fmt.Sprintf("%s %d", cat.Step, step)

	clause := description
	if i := strings.IndexAny(clause, ",;:.!?()\n[]"); i >= 0 {
		clause = clause[:i]
	}

	var words []string
	leading := true
	for _, raw := range strings.Fields(clause) {
		if strings.Contains(raw, "{{") {
			continue
		}
		w := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		w = stripElision(w)
		if w == "" {
			continue
		}
		lower := strings.ToLower(w)
		if clauseBreaks[lower] && len(words) > 0 {
			break
		}
		if functionWords[lower] {
			continue
		}
		if leading && leadingVerbs[lower] {
			continue
		}
		leading = false
		words = append(words, w)
		if len(words) == maxLabelWords {
			break
		}
	}

	if len(words) < 2 {
		return fallback
	}
	return capitalize(strings.Join(words, " "))
}

// OverviewLabel turns a review's step overview into a row label. It keeps the
// first sentence when that has two to six words once trailing function words
// are dropped.
func OverviewLabel(overview string) (string, bool) {
	sentence := clean(overview)
	if i := strings.IndexAny(sentence, ".;:!?"); i >= 0 {
		sentence = sentence[:i]
	}

	words := strings.Fields(sentence)
	for len(words) > 0 {
		last := strings.ToLower(strings.TrimFunc(words[len(words)-1], func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if last != "" && !functionWords[last] && !clauseBreaks[last] {
			break
		}
		words = words[:len(words)-1]
	}
	if len(words) < 2 || len(words) > 6 {
		return "", false
	}
	return capitalize(strings.Join(words, " ")), true
}

// stripElision removes French elided articles such as l' and d'.
func stripElision(w string) string {
	for _, p := range []string{"l'", "d'", "l’", "d’", "qu'", "qu’"} {
		if len(w) > len(p) && strings.HasPrefix(strings.ToLower(w), p) {
			return w[len(p):]
		}
	}
	return w
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
