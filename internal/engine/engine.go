package engine

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/rankpilot/auditor/internal/audit"
)

// Engine fetches a page and runs the five analyzers over it. Implements
// audit.PageAnalyzer.
type Engine struct {
	fetcher audit.Fetcher
	logger  *zap.Logger
}

// New creates an Engine backed by the given fetcher.
func New(fetcher audit.Fetcher, logger *zap.Logger) *Engine {
	return &Engine{fetcher: fetcher, logger: logger}
}

// AnalyzePage fetches url and produces the full analysis: five sub-scores,
// the merged issue list, recommendations and the composite score. Analysis is
// deterministic for a given body and latency bucket.
func (e *Engine) AnalyzePage(ctx context.Context, url string) (audit.AnalysisResult, error) {
	resp, err := e.fetcher.Fetch(ctx, audit.FetchRequest{URL: url})
	if err != nil {
		return audit.AnalysisResult{}, err
	}
	elapsed := resp.Duration.Milliseconds()
	result := Analyze(url, resp.Body, elapsed)
	result.Body = resp.Body

	e.logger.Debug("page analyzed",
		zap.String("url", url),
		zap.Int("score", result.Score),
		zap.Int("issues", len(result.Issues)),
		zap.Int64("elapsed_ms", elapsed),
	)
	return result, nil
}

// Analyze runs all analyzers over an already-fetched body. Split out from
// AnalyzePage so tests can feed fixed HTML and latency.
func Analyze(url string, body []byte, elapsedMillis int64) audit.AnalysisResult {
	doc := ParseDocument(url, body)

	speed := speedScore(elapsedMillis)
	basics, basicsIssues := analyzeBasics(doc)
	content, contentIssues := analyzeContent(doc)
	technical, technicalIssues := analyzeTechnical(doc)
	mobile, mobileIssues := analyzeMobile(doc)

	var issues []audit.Issue
	issues = append(issues, basicsIssues...)
	issues = append(issues, contentIssues...)
	issues = append(issues, technicalIssues...)
	issues = append(issues, mobileIssues...)

	metrics := audit.Metrics{
		PageSpeed:          speed,
		SEOBasics:          basics,
		ContentQuality:     content,
		TechnicalSEO:       technical,
		MobileOptimization: mobile,
	}

	return audit.AnalysisResult{
		Score:           compositeScore(metrics),
		Metrics:         metrics,
		Issues:          issues,
		Recommendations: synthesizeRecommendations(issues),
		ElapsedMillis:   elapsedMillis,
	}
}

// compositeScore is the rounded mean of the five sub-scores.
func compositeScore(m audit.Metrics) int {
	sum := m.PageSpeed + m.SEOBasics + m.ContentQuality + m.TechnicalSEO + m.MobileOptimization
	return int(math.Round(float64(sum) / 5.0))
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
