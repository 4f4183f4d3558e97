package engine

// speedScore buckets fetch latency into a page speed score. Latency is a
// proxy for render performance; the buckets are deliberately coarse. Speed
// only contributes a sub-score, it never produces issues.
func speedScore(elapsedMillis int64) int {
	switch {
	case elapsedMillis < 500:
		return 100
	case elapsedMillis < 1000:
		return 90
	case elapsedMillis < 2000:
		return 75
	case elapsedMillis < 3000:
		return 60
	case elapsedMillis < 5000:
		return 40
	default:
		return 20
	}
}
