package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/temirov/repogov/internal/decisions"
	"github.com/temirov/repogov/internal/duplicates"
	"github.com/temirov/repogov/internal/risk"
)

const (
	reasonTemplateConstant         = "%s(+%d)"
	reasonSeparatorConstant        = ", "
	memberSeparatorConstant        = ", "
	shortHashLengthConstant        = 12
	dashboardRenderErrorTemplate   = "unable to render dashboard: %w"
	dashboardConvertErrorTemplate  = "unable to convert dashboard to HTML: %w"
	htmlDocumentPrefixConstant     = "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>Governance dashboard</title>\n</head>\n<body>\n"
	htmlDocumentSuffixConstant     = "</body>\n</html>\n"
	missingActivityDisplayConstant = "never"
)

const dashboardTemplateText = `# Governance dashboard

- Owner: {{.Owner}}
- Run: {{.RunID}}
- Generated: {{.GeneratedAt}}
- Total repositories: {{.Total}}
- Policy: {{.Policy}}

## Enumeration

| Source | Repositories |
|--------|--------------|
| public | {{.PublicCount}} |
| authenticated | {{.AuthenticatedCount}} |
| merged | {{.MergedTotal}} |

Token present: {{.TokenPresent}}

## Category counts

| Category | Repositories |
|----------|--------------|
{{- range .CategoryRows}}
| {{.Label}} | {{.Count}} |
{{- end}}

## Criticality counts

| Criticality | Repositories |
|-------------|--------------|
{{- range .CriticalityRows}}
| {{.Label}} | {{.Count}} |
{{- end}}

## Highest risk (top {{.HighestRiskLimit}})
{{if .HighestRisk}}
| # | Repository | Score | Category | Criticality | Age (days) | Reasons |
|---|------------|-------|----------|-------------|------------|---------|
{{- range $index, $row := .HighestRisk}}
| {{inc $index}} | {{$row.Name}} | {{$row.Score}} | {{$row.Category}} | {{$row.Criticality}} | {{$row.Age}} | {{$row.Reasons}} |
{{- end}}
{{else}}
No repositories.
{{end}}
## Duplicate names
{{template "groups" .NameGroups}}
## Duplicate descriptions
{{template "groups" .DescriptionGroups}}
## Content duplicates (top {{.TopN}} window)
{{template "groups" .ContentGroups}}
## Enumeration errors
{{if .Errors}}
{{- range .Errors}}
- {{.Source}} / {{.Kind}}: {{.Message}}
{{- end}}
{{else}}
None.
{{end}}
## Build errors
{{if .BuildErrors}}
{{- range .BuildErrors}}
- {{.}}
{{- end}}
{{else}}
None.
{{end}}
{{- define "groups"}}
{{- if .}}
{{- range .}}
- {{.Key}}: {{.Members}}
{{- end}}
{{else}}
None.
{{end}}
{{- end}}`

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"inc": func(value int) int { return value + 1 },
}).Parse(dashboardTemplateText))

type countRow struct {
	Label string
	Count int
}

type riskRow struct {
	Name        string
	Score       int
	Category    risk.Category
	Criticality risk.Criticality
	Age         string
	Reasons     string
}

type groupRow struct {
	Key     string
	Members string
}

type dashboardView struct {
	Owner              string
	RunID              string
	GeneratedAt        string
	Total              int
	Policy             string
	PublicCount        int
	AuthenticatedCount int
	MergedTotal        int
	TokenPresent       bool
	TopN               int
	HighestRiskLimit   int
	CategoryRows       []countRow
	CriticalityRows    []countRow
	HighestRisk        []riskRow
	NameGroups         []groupRow
	DescriptionGroups  []groupRow
	ContentGroups      []groupRow
	Errors             []errorRow
	BuildErrors        []string
}

type errorRow struct {
	Source  string
	Kind    string
	Message string
}

// RenderDashboardMarkdown renders the dashboard for the intelligence document.
func RenderDashboardMarkdown(document IntelligenceDocument, raw RawDocument) ([]byte, error) {
	view := dashboardView{
		Owner:              document.Owner,
		RunID:              document.RunID,
		GeneratedAt:        document.GeneratedAt.Format(timestampLayoutConstant),
		Total:              document.Total,
		Policy:             decisions.PolicyStatement,
		PublicCount:        raw.PublicCount,
		AuthenticatedCount: raw.AuthenticatedCount,
		MergedTotal:        raw.MergedTotal,
		TokenPresent:       raw.TokenPresent,
		TopN:               document.TopN,
		HighestRiskLimit:   highestRiskLimitConstant,
		NameGroups:         groupRows(document.NameGroups, false),
		DescriptionGroups:  groupRows(document.DescriptionGroups, true),
		ContentGroups:      groupRows(document.ContentGroups, true),
		BuildErrors:        document.BuildErrors,
	}
	for _, category := range risk.Categories {
		view.CategoryRows = append(view.CategoryRows, countRow{Label: string(category), Count: document.CategoryCounts[category]})
	}
	for _, criticality := range risk.Criticalities {
		view.CriticalityRows = append(view.CriticalityRows, countRow{Label: string(criticality), Count: document.CriticalityCounts[criticality]})
	}
	for _, assessment := range document.HighestRisk {
		view.HighestRisk = append(view.HighestRisk, riskRow{
			Name:        assessment.Repository.Name,
			Score:       assessment.RiskScore,
			Category:    assessment.Category,
			Criticality: assessment.Criticality,
			Age:         ageDisplay(assessment.AgeDays),
			Reasons:     reasonsDisplay(assessment.Reasons),
		})
	}
	for _, enumerationError := range document.Errors {
		view.Errors = append(view.Errors, errorRow{
			Source:  string(enumerationError.Source),
			Kind:    string(enumerationError.Kind),
			Message: singleLine(enumerationError.Message),
		})
	}

	var buffer bytes.Buffer
	if executionError := dashboardTemplate.Execute(&buffer, view); executionError != nil {
		return nil, fmt.Errorf(dashboardRenderErrorTemplate, executionError)
	}
	return buffer.Bytes(), nil
}

// RenderDashboardHTML converts dashboard markdown into a standalone HTML page.
func RenderDashboardHTML(markdown []byte) ([]byte, error) {
	converter := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if conversionError := converter.Convert(markdown, &body); conversionError != nil {
		return nil, fmt.Errorf(dashboardConvertErrorTemplate, conversionError)
	}

	var document bytes.Buffer
	document.WriteString(htmlDocumentPrefixConstant)
	document.Write(body.Bytes())
	document.WriteString(htmlDocumentSuffixConstant)
	return document.Bytes(), nil
}

func groupRows(groups []duplicates.Group, shortenKey bool) []groupRow {
	rows := make([]groupRow, 0, len(groups))
	for _, group := range groups {
		key := group.Key
		if shortenKey && len(key) > shortHashLengthConstant {
			key = key[:shortHashLengthConstant]
		}
		rows = append(rows, groupRow{Key: key, Members: strings.Join(group.Members, memberSeparatorConstant)})
	}
	return rows
}

func reasonsDisplay(reasons []risk.Reason) string {
	parts := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		parts = append(parts, fmt.Sprintf(reasonTemplateConstant, reason.Rule, reason.Points))
	}
	return strings.Join(parts, reasonSeparatorConstant)
}

func ageDisplay(ageDays int) string {
	if ageDays == risk.MissingActivityAgeDays {
		return missingActivityDisplayConstant
	}
	return fmt.Sprintf("%d", ageDays)
}

func singleLine(message string) string {
	return strings.Join(strings.Fields(message), " ")
}
