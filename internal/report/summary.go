package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/temirov/repogov/internal/cleanup"
	"github.com/temirov/repogov/internal/risk"
	"github.com/temirov/repogov/internal/trash"
)

const (
	headerRankConstant            = "#"
	headerRepositoryConstant      = "REPOSITORY"
	headerScoreConstant           = "SCORE"
	headerCategoryConstant        = "CATEGORY"
	headerCriticalityConstant     = "CRITICALITY"
	headerAgeConstant             = "AGE"
	headerStatusConstant          = "STATUS"
	headerMovesConstant           = "MOVES"
	headerMovedConstant           = "MOVED"
	headerMissingConstant         = "MISSING"
	headerSkippedConstant         = "SKIPPED"
	headerErrorConstant           = "ERROR"
	summaryFooterTemplateConstant = "%d repositories, %d errors\n"
)

// WriteRiskTable prints the highest ranked repositories as a console table.
func WriteRiskTable(output io.Writer, ranked []risk.RiskAssessment, limit int, errorCount int) {
	table := newTable(output)
	table.SetHeader([]string{headerRankConstant, headerRepositoryConstant, headerScoreConstant, headerCategoryConstant, headerCriticalityConstant, headerAgeConstant})

	shown := ranked
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for rowIndex, assessment := range shown {
		table.Append([]string{
			strconv.Itoa(rowIndex + 1),
			assessment.Repository.Name,
			strconv.Itoa(assessment.RiskScore),
			string(assessment.Category),
			string(assessment.Criticality),
			ageDisplay(assessment.AgeDays),
		})
	}
	table.Render()
	fmt.Fprintf(output, summaryFooterTemplateConstant, len(ranked), errorCount)
}

// WritePlanTable prints planning outcomes as a console table.
func WritePlanTable(output io.Writer, plans []cleanup.RepositoryPlan) {
	table := newTable(output)
	table.SetHeader([]string{headerRepositoryConstant, headerStatusConstant, headerMovesConstant, headerErrorConstant})
	for _, repositoryPlan := range plans {
		moveCount := repositoryPlan.Plan.Len()
		if repositoryPlan.Status == cleanup.PlanStatusSkippedExisting {
			moveCount = repositoryPlan.Decision.MoveListCount
		}
		table.Append([]string{repositoryPlan.Repository, string(repositoryPlan.Status), strconv.Itoa(moveCount), repositoryPlan.Error})
	}
	table.Render()
}

// WriteApplyTable prints apply outcomes as a console table.
func WriteApplyTable(output io.Writer, applyReport trash.ApplyReport) {
	table := newTable(output)
	table.SetHeader([]string{headerRepositoryConstant, headerStatusConstant, headerMovedConstant, headerMissingConstant, headerSkippedConstant, headerErrorConstant})
	for _, entry := range applyReport.Entries {
		table.Append([]string{
			entry.Repo,
			string(entry.Status),
			strconv.Itoa(entry.Moved),
			strconv.Itoa(entry.Missing),
			strconv.Itoa(entry.Skipped),
			entry.Error,
		})
	}
	table.Render()
}

func newTable(output io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(output)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}
