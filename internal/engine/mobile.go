package engine

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/rankpilot/auditor/internal/audit"
)

const minTouchTargetPx = 44

var (
	inlineWidthRe  = regexp.MustCompile(`width:\s*(\d+)px`)
	inlineHeightRe = regexp.MustCompile(`height:\s*(\d+)px`)
)

// analyzeMobile checks the viewport meta tag and inline-styled touch target
// sizes. Touch sizing only sees inline styles; stylesheet rules would need a
// rendering engine, which is out of reach for a static fetch.
func analyzeMobile(doc *Document) (int, []audit.Issue) {
	score := 100
	var issues []audit.Issue

	if !doc.HasMeta("viewport") {
		score -= 20
		issues = append(issues, audit.Issue{
			Type:        audit.IssueError,
			Category:    audit.CategoryMobile,
			Title:       "Missing viewport meta tag",
			Description: "Without a viewport tag the page renders at desktop width on phones.",
			Impact:      audit.ImpactHigh,
			Fix:         `Add <meta name="viewport" content="width=device-width, initial-scale=1">.`,
		})
	}

	if small := smallTouchTargets(doc.Clickables()); small > 0 {
		score -= 10
		issues = append(issues, audit.Issue{
			Type:        audit.IssueWarning,
			Category:    audit.CategoryMobile,
			Title:       "Touch targets too small",
			Description: fmt.Sprintf("%d clickable elements are styled smaller than %dpx.", small, minTouchTargetPx),
			Impact:      audit.ImpactMedium,
			Fix:         fmt.Sprintf("Size tap targets to at least %dx%d pixels.", minTouchTargetPx, minTouchTargetPx),
		})
	}

	return clampScore(score), issues
}

// smallTouchTargets counts inline styles declaring a width or height under
// the minimum tap size.
func smallTouchTargets(styles []string) int {
	count := 0
	for _, style := range styles {
		if style == "" {
			continue
		}
		if dimensionUnder(inlineWidthRe, style, minTouchTargetPx) || dimensionUnder(inlineHeightRe, style, minTouchTargetPx) {
			count++
		}
	}
	return count
}

func dimensionUnder(re *regexp.Regexp, style string, min int) bool {
	m := re.FindStringSubmatch(style)
	if m == nil {
		return false
	}
	px, err := strconv.Atoi(m[1])
	return err == nil && px < min
}
