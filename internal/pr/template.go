package pr

import (
	"bytes"
	"slices"
	"strings"
	"text/template"

	"github.com/gobwas/glob"
)

// StackEntry describes one chunk of the series for templates.
type StackEntry struct {
	Ordinal int
	Name    string
	Branch  string
	PRURL   string
	Current bool
}

// TemplateData contains all data available to PR body templates.
type TemplateData struct {
	// Name is the chunk name
	Name string
	// Ordinal is the chunk's 1-based position
	Ordinal int
	// Total is the number of chunks
	Total int
	// Branch is the chunk branch
	Branch string
	// Base is the branch the PR targets
	Base string
	// Source is the feature branch the chunks were split from
	Source string
	// Strategy is "stacked" or "independent"
	Strategy string
	// Files lists the chunk's files
	Files []string
	// Stack lists every chunk in order
	Stack []StackEntry
}

// DefaultBodyTemplate is used when no body template is configured.
const DefaultBodyTemplate = `Chunk {{.Ordinal}} of {{.Total}} split from ` + "`{{.Source}}`" + ` ({{.Strategy}}).

### Files
{{range .Files}}- ` + "`{{.}}`" + `
{{end}}
{{- if gt .Total 1}}
### Series
{{range .Stack}}{{if .Current}}- **{{.Ordinal}}. {{.Name}}** (this PR)
{{else if .PRURL}}- {{.Ordinal}}. [{{.Name}}]({{.PRURL}})
{{else}}- {{.Ordinal}}. {{.Name}}
{{end}}{{end}}{{end}}`

// RenderTemplate renders a PR body template with the given data. An empty
// template renders DefaultBodyTemplate.
func RenderTemplate(tmplStr string, data TemplateData) (string, error) {
	if strings.TrimSpace(tmplStr) == "" {
		tmplStr = DefaultBodyTemplate
	}
	tmpl, err := template.New("pr-body").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// ResolveReviewers determines reviewers based on changed files and config.
// The result is sorted and free of duplicates.
func ResolveReviewers(changedFiles []string, defaultReviewers []string, byPath map[string][]string) []string {
	reviewerSet := make(map[string]bool)

	for _, r := range defaultReviewers {
		reviewerSet[normalizeReviewer(r)] = true
	}

	for pattern, reviewers := range byPath {
		g, err := glob.Compile(pattern)
		if err != nil {
			continue
		}

		for _, file := range changedFiles {
			if g.Match(file) {
				for _, r := range reviewers {
					reviewerSet[normalizeReviewer(r)] = true
				}
				break
			}
		}
	}

	result := make([]string, 0, len(reviewerSet))
	for r := range reviewerSet {
		if r != "" {
			result = append(result, r)
		}
	}
	slices.Sort(result)

	return result
}

// normalizeReviewer removes @ prefix from reviewer handles
func normalizeReviewer(reviewer string) string {
	return strings.TrimPrefix(strings.TrimSpace(reviewer), "@")
}
