package engine

import (
	"fmt"
	"unicode/utf8"

	"github.com/rankpilot/auditor/internal/audit"
)

const (
	titleMaxChars    = 60
	metaDescMaxChars = 160
	missingAltCap    = 10
)

// analyzeBasics checks the title, meta description, h1 structure and image
// alt text. Starts at 100 and subtracts a fixed penalty per finding.
func analyzeBasics(doc *Document) (int, []audit.Issue) {
	score := 100
	var issues []audit.Issue

	title := doc.Title()
	switch {
	case title == "":
		score -= 15
		issues = append(issues, audit.Issue{
			Type:        audit.IssueError,
			Category:    audit.CategoryTechnical,
			Title:       "Missing page title",
			Description: "The page has no title tag, or the title is empty.",
			Impact:      audit.ImpactHigh,
			Fix:         "Add a descriptive title tag of 50-60 characters.",
		})
	case utf8.RuneCountInString(title) > titleMaxChars:
		score -= 5
		issues = append(issues, audit.Issue{
			Type:        audit.IssueWarning,
			Category:    audit.CategoryTechnical,
			Title:       "Title too long",
			Description: fmt.Sprintf("The title is %d characters. Search engines truncate titles beyond %d.", utf8.RuneCountInString(title), titleMaxChars),
			Impact:      audit.ImpactMedium,
			Fix:         "Shorten the title to 60 characters or less.",
		})
	}

	desc := doc.MetaContent("description")
	switch {
	case desc == "":
		score -= 10
		issues = append(issues, audit.Issue{
			Type:        audit.IssueError,
			Category:    audit.CategoryTechnical,
			Title:       "Missing meta description",
			Description: "The page has no meta description, or it is empty.",
			Impact:      audit.ImpactHigh,
			Fix:         "Add a meta description of 150-160 characters summarizing the page.",
		})
	case utf8.RuneCountInString(desc) > metaDescMaxChars:
		score -= 3
		issues = append(issues, audit.Issue{
			Type:        audit.IssueWarning,
			Category:    audit.CategoryTechnical,
			Title:       "Meta description too long",
			Description: fmt.Sprintf("The meta description is %d characters. Search engines truncate beyond %d.", utf8.RuneCountInString(desc), metaDescMaxChars),
			Impact:      audit.ImpactMedium,
			Fix:         "Trim the meta description to 160 characters or less.",
		})
	}

	switch h1s := doc.H1Count(); {
	case h1s == 0:
		score -= 10
		issues = append(issues, audit.Issue{
			Type:        audit.IssueError,
			Category:    audit.CategoryContent,
			Title:       "Missing H1 heading",
			Description: "The page has no H1 heading.",
			Impact:      audit.ImpactHigh,
			Fix:         "Add exactly one H1 heading describing the page's main topic.",
		})
	case h1s > 1:
		score -= 5
		issues = append(issues, audit.Issue{
			Type:        audit.IssueWarning,
			Category:    audit.CategoryContent,
			Title:       "Multiple H1 headings",
			Description: fmt.Sprintf("The page has %d H1 headings. Use one per page.", h1s),
			Impact:      audit.ImpactMedium,
			Fix:         "Keep a single H1 and demote the rest to H2.",
		})
	}

	if missing := doc.ImagesMissingAlt(); missing > 0 {
		penalty := 2 * missing
		if penalty > missingAltCap {
			penalty = missingAltCap
		}
		score -= penalty
		issues = append(issues, audit.Issue{
			Type:        audit.IssueWarning,
			Category:    audit.CategoryTechnical,
			Title:       "Images missing alt text",
			Description: fmt.Sprintf("%d images have no alt attribute or an empty one.", missing),
			Impact:      audit.ImpactMedium,
			Fix:         "Add descriptive alt text to every meaningful image.",
		})
	}

	return clampScore(score), issues
}
