package engine

import (
	"fmt"
	"strings"

	"github.com/rankpilot/auditor/internal/audit"
)

const minInternalLinks = 3

// analyzeTechnical checks canonical tags, robots directives, structured data
// and internal linking.
func analyzeTechnical(doc *Document) (int, []audit.Issue) {
	score := 100
	var issues []audit.Issue

	if !doc.HasCanonical() {
		score -= 5
		issues = append(issues, audit.Issue{
			Type:        audit.IssueWarning,
			Category:    audit.CategoryTechnical,
			Title:       "Missing canonical tag",
			Description: "The page has no canonical link element.",
			Impact:      audit.ImpactMedium,
			Fix:         "Add a canonical link pointing at the preferred URL for this page.",
		})
	}

	if robots := doc.MetaContent("robots"); strings.Contains(strings.ToLower(robots), "noindex") {
		score -= 50
		issues = append(issues, audit.Issue{
			Type:        audit.IssueError,
			Category:    audit.CategoryTechnical,
			Title:       "Page blocked from indexing",
			Description: "The robots meta tag contains noindex. Search engines will drop this page.",
			Impact:      audit.ImpactHigh,
			Fix:         "Remove the noindex directive if this page should rank.",
		})
	}

	if doc.StructuredDataCount() == 0 {
		score -= 3
		issues = append(issues, audit.Issue{
			Type:        audit.IssueInfo,
			Category:    audit.CategoryTechnical,
			Title:       "No structured data",
			Description: "No JSON-LD structured data blocks were found.",
			Impact:      audit.ImpactLow,
			Fix:         "Add schema.org markup for richer search results.",
		})
	}

	if links := doc.InternalLinkCount(); links < minInternalLinks {
		score -= 3
		issues = append(issues, audit.Issue{
			Type:        audit.IssueInfo,
			Category:    audit.CategoryTechnical,
			Title:       "Few internal links",
			Description: fmt.Sprintf("Only %d internal links were found.", links),
			Impact:      audit.ImpactLow,
			Fix:         "Link to related pages on the same site to spread authority.",
		})
	}

	return clampScore(score), issues
}
