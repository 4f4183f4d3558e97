package engine

import (
	"fmt"
	"strings"

	"github.com/rankpilot/auditor/internal/audit"
)

const (
	thinContentWords    = 300
	shallowContentWords = 500
	keywordMinLength    = 3
	keywordDensityMax   = 5.0
)

// analyzeContent scores word count and keyword stuffing. Keywords are the
// distinct words longer than three characters drawn from the title and first
// H1, kept in first-seen order so repeated runs flag the same terms.
func analyzeContent(doc *Document) (int, []audit.Issue) {
	score := 100
	var issues []audit.Issue

	text := doc.ReadableText()
	words := strings.Fields(text)
	wordCount := len(words)

	switch {
	case wordCount < thinContentWords:
		score -= 15
		issues = append(issues, audit.Issue{
			Type:        audit.IssueWarning,
			Category:    audit.CategoryContent,
			Title:       "Thin content",
			Description: fmt.Sprintf("The page has only %d words of readable text.", wordCount),
			Impact:      audit.ImpactMedium,
			Fix:         "Expand the page to at least 300 words of substantive content.",
		})
	case wordCount < shallowContentWords:
		score -= 5
		issues = append(issues, audit.Issue{
			Type:        audit.IssueInfo,
			Category:    audit.CategoryContent,
			Title:       "Short content",
			Description: fmt.Sprintf("The page has %d words. Pages over 500 words tend to rank better.", wordCount),
			Impact:      audit.ImpactLow,
			Fix:         "Consider expanding the page with more depth on the topic.",
		})
	}

	lowerText := strings.ToLower(text)
	for _, kw := range extractKeywords(doc.Title(), doc.FirstH1()) {
		occurrences := strings.Count(lowerText, kw)
		if wordCount == 0 || occurrences == 0 {
			continue
		}
		density := float64(occurrences) / float64(wordCount) * 100
		if density > keywordDensityMax {
			score -= 10
			issues = append(issues, audit.Issue{
				Type:        audit.IssueWarning,
				Category:    audit.CategoryContent,
				Title:       "Possible keyword stuffing",
				Description: fmt.Sprintf("The term %q appears in %.1f%% of the text.", kw, density),
				Impact:      audit.ImpactMedium,
				Fix:         "Reduce repetition and use natural synonyms.",
			})
		}
	}

	return clampScore(score), issues
}

// extractKeywords returns distinct lowercased words longer than
// keywordMinLength from the given sources, in first-seen order.
func extractKeywords(sources ...string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, src := range sources {
		for _, w := range strings.Fields(strings.ToLower(src)) {
			w = strings.Trim(w, `.,:;!?"'()[]`)
			if len(w) <= keywordMinLength || seen[w] {
				continue
			}
			seen[w] = true
			keywords = append(keywords, w)
		}
	}
	return keywords
}
