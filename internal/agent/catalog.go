package agent

import (
	"fmt"
	"strings"
	"unicode"
)

// Catalog holds the fixed wording of the final report in one language.
type Catalog struct {
	Lang string

	StepResults  string
	Step         string
	QualityScore string
	QualityNotes string
	IssuesNoted  string
	NoOutput     string
	NotAvailable string

	ReviewHeading  string
	Section1       string
	RequestSummary string
	WorkSummary    string
	Highlights     string
	Concerns       string
	Section2       string
	TableHeader    string
	Section3       string
	Strengths      string
	Improvements   string
	Priorities     string
	DetailsLabel   string

	GoalLabel    string
	SummaryLabel string
	ContextLabel string

	// Analysis is the opening line of section 3.
	Analysis func(subject string, priorities int) string
	// Unavailable is the rollback notice for a failed review.
	Unavailable func(reason string) string
}

var catalogEN = Catalog{
	Lang:         "en",
	StepResults:  "## Step results",
	Step:         "Step",
	QualityScore: "Quality score: ",
	QualityNotes: "Quality notes: ",
	IssuesNoted:  "Issues noted:",
	NoOutput:     "_No output was produced for this step._",
	NotAvailable: "n/a",

	ReviewHeading:  "## Overall design review",
	Section1:       "### Section 1: Summary of the request and of the work done",
	RequestSummary: "Request summary: ",
	WorkSummary:    "Work summary: ",
	Highlights:     "Highlights: ",
	Concerns:       "Points of attention: ",
	Section2:       "### Section 2: Step-by-step assessment",
	TableHeader:    "| Step | Score | Strengths | Improvement areas |",
	Section3:       "### Section 3: Priority next steps",
	Strengths:      "### Strengths",
	Improvements:   "### Improvement areas",
	Priorities:     "### Priorities",
	DetailsLabel:   "Review details",

	GoalLabel:    "Goal:",
	SummaryLabel: "Stepwise summary:",
	ContextLabel: "Context:",

	Analysis: func(subject string, n int) string {
		return fmt.Sprintf("Overall analysis: for \"%s\", %d priorit%s stand%s out from the reviewed steps.",
			subject, n, plural(n, "y", "ies"), plural(n, "s", ""))
	},
	Unavailable: func(reason string) string {
		return fmt.Sprintf("Design review unavailable (%s). Rolled back to the deterministic stepwise summary above.", reason)
	},
}

var catalogFR = Catalog{
	Lang:         "fr",
	StepResults:  "## Résultats par étape",
	Step:         "Étape",
	QualityScore: "Score qualité : ",
	QualityNotes: "Commentaires qualité : ",
	IssuesNoted:  "Problèmes relevés :",
	NoOutput:     "_Aucune sortie n'a été produite pour cette étape._",
	NotAvailable: "n.d.",

	ReviewHeading:  "## Synthèse globale de la design review",
	Section1:       "### Section 1 : Résumé de la demande et du travail réalisé",
	RequestSummary: "Résumé de la demande : ",
	WorkSummary:    "Résumé du travail réalisé : ",
	Highlights:     "Points saillants : ",
	Concerns:       "Points de vigilance : ",
	Section2:       "### Section 2 : Évaluation par étape",
	TableHeader:    "| Étape | Score | Points forts | Axes d'amélioration |",
	Section3:       "### Section 3 : Prochaines étapes prioritaires",
	Strengths:      "### Points forts",
	Improvements:   "### Axes d'amélioration",
	Priorities:     "### Priorités",
	DetailsLabel:   "Détails de la revue",

	GoalLabel:    "Objectif :",
	SummaryLabel: "Récapitulatif par étape :",
	ContextLabel: "Contexte:",

	Analysis: func(subject string, n int) string {
		return fmt.Sprintf("Analyse globale : pour « %s », %d priorité%s ressort%s des étapes évaluées.",
			subject, n, plural(n, "", "s"), plural(n, "", "ent"))
	},
	Unavailable: func(reason string) string {
		return fmt.Sprintf("Design review indisponible (%s). Retour arrière (rollback) sur le récapitulatif déterministe des étapes ci-dessus.", reason)
	},
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

var frenchMarkers = map[string]bool{
	"le": true, "la": true, "les": true, "des": true, "une": true, "un": true,
	"pour": true, "avec": true, "et": true, "du": true, "de": true, "sur": true,
	"dans": true, "est": true, "en": true, "au": true, "aux": true, "ce": true,
	"cette": true, "qui": true, "que": true, "vers": true, "par": true,
	"sans": true, "nous": true, "vous": true, "pas": true,
}

// DetectLanguage guesses en or fr from the goal text.
func DetectLanguage(text string) string {
	lower := strings.ToLower(text)
	if strings.ContainsAny(lower, "éèêàçùûôîœ") {
		return "fr"
	}
	hits := 0
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		if frenchMarkers[w] {
			hits++
		}
	}
	if hits >= 2 {
		return "fr"
	}
	return "en"
}

// CatalogFor picks the catalog for a setting of auto, en or fr.
func CatalogFor(setting, goal string) Catalog {
	lang := setting
	if lang == "" || lang == "auto" {
		lang = DetectLanguage(goal)
	}
	if lang == "fr" {
		return catalogFR
	}
	return catalogEN
}
