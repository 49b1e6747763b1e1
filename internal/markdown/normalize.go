// Package markdown normalizes model-produced markdown before it is shown or
// substituted into later prompts.
package markdown

import (
	"regexp"
	"strings"

	"github.com/rahul/karya/internal/plan"
)

var (
	// ![alt](```lang ... ```) is a fence the model wrapped in image syntax.
	imageFenceRe = regexp.MustCompile("!\\[[^\\]]*\\]\\(\\s*(```[A-Za-z0-9_+-]*\\n[\\s\\S]*?\\n```)\\s*\\)")
	enclosingRe  = regexp.MustCompile("^```([A-Za-z0-9_+-]*)[ \\t]*\\n([\\s\\S]*?)\\n?```$")
	fenceLineRe  = regexp.MustCompile("(?m)^[ \\t]*```")
)

// DefaultDetailsLabel titles the collapsible supporting details block.
const DefaultDetailsLabel = "Supporting details"

// Unwrap removes a single redundant fence around the whole text when it is
// untagged or tagged markdown. Language fences stay as they are.
func Unwrap(text string) string {
	text = imageFenceRe.ReplaceAllString(text, "$1")

	trimmed := strings.TrimSpace(text)
	m := enclosingRe.FindStringSubmatch(trimmed)
	if m == nil {
		return text
	}
	lang := strings.ToLower(m[1])
	if lang != "" && lang != "markdown" && lang != "md" {
		return text
	}
	inner := m[2]
	if fenceLineRe.MatchString(inner) {
		// More fences inside: the outer pair is not one enclosing block.
		return text
	}
	return strings.TrimSpace(inner)
}

// Render turns an action output into display markdown. Supporting details go
// into a collapsible block under the primary output.
func Render(out plan.Output, detailsLabel string) string {
	primary := Unwrap(out.PrimaryOutput)
	details := strings.TrimSpace(Unwrap(out.SupportingDetails))
	if details == "" {
		return primary
	}
	if detailsLabel == "" {
		detailsLabel = DefaultDetailsLabel
	}

	var b strings.Builder
	if strings.TrimSpace(primary) != "" {
		b.WriteString(primary)
		b.WriteString("\n\n")
	}
	b.WriteString("<details>\n<summary>")
	b.WriteString(detailsLabel)
	b.WriteString("</summary>\n\n")
	b.WriteString(details)
	b.WriteString("\n\n</details>")
	return b.String()
}

// StripFences removes fenced code blocks entirely, keeping surrounding prose.
func StripFences(text string) string {
	var out []string
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if !inFence {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
