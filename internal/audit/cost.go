package audit

// Token cost model. Cost is computed after execution, never at admission:
// the competitor and issue counts are unknown until analysis finishes.
const (
	tokenBaseCost      = 1000
	tokenPerCompetitor = 500
	tokenPerIssue      = 50
)

// TokenCost prices one executed audit. Every recorded competitor entry is
// charged, including entries that ended in an error — the fetch and analysis
// work was still spent on them.
func TokenCost(competitorEntries, issueCount int) int {
	return tokenBaseCost + tokenPerCompetitor*competitorEntries + tokenPerIssue*issueCount
}
