package engine

import "github.com/rankpilot/auditor/internal/audit"

// synthesizeRecommendations folds the issue list into prioritized actions.
// One recommendation per triggered rule, regardless of how many issues
// triggered it, so the output stays short enough to act on.
func synthesizeRecommendations(issues []audit.Issue) []audit.Recommendation {
	var (
		technicalHigh bool
		contentHigh   bool
		performance   bool
		mobile        bool
	)
	for _, issue := range issues {
		switch issue.Category {
		case audit.CategoryTechnical:
			if issue.Impact == audit.ImpactHigh {
				technicalHigh = true
			}
		case audit.CategoryContent:
			if issue.Impact == audit.ImpactHigh {
				contentHigh = true
			}
		case audit.CategoryPerformance:
			performance = true
		case audit.CategoryMobile:
			mobile = true
		}
	}

	var recs []audit.Recommendation
	if technicalHigh {
		recs = append(recs, audit.Recommendation{
			Priority:    audit.PriorityHigh,
			Category:    "Technical SEO",
			Title:       "Fix critical technical SEO issues",
			Description: "High-impact technical problems are blocking search visibility. Resolve these first.",
			Effort:      audit.EffortMedium,
			ImpactScore: 85,
		})
	}
	if contentHigh {
		recs = append(recs, audit.Recommendation{
			Priority:    audit.PriorityHigh,
			Category:    "Content",
			Title:       "Improve content structure and depth",
			Description: "High-impact content problems are weakening relevance signals.",
			Effort:      audit.EffortHard,
			ImpactScore: 90,
		})
	}
	if performance {
		recs = append(recs, audit.Recommendation{
			Priority:    audit.PriorityMedium,
			Category:    "Performance",
			Title:       "Speed up page loading",
			Description: "Slow responses hurt both rankings and conversion.",
			Effort:      audit.EffortMedium,
			ImpactScore: 70,
		})
	}
	if mobile {
		recs = append(recs, audit.Recommendation{
			Priority:    audit.PriorityMedium,
			Category:    "Mobile",
			Title:       "Improve the mobile experience",
			Description: "Mobile rendering problems affect the majority of search traffic.",
			Effort:      audit.EffortMedium,
			ImpactScore: 65,
		})
	}
	return recs
}
