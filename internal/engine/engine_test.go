package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rankpilot/auditor/internal/audit"
)

var fullPage = `<!DOCTYPE html>
<html>
<head>
<title>Gardening Tips</title>
<meta name="description" content="Practical gardening tips for small urban spaces.">
<meta name="viewport" content="width=device-width, initial-scale=1">
<link rel="canonical" href="https://example.com/garden">
<script type="application/ld+json">{"@type":"Article"}</script>
</head>
<body>
<h1>Gardening Tips</h1>
<a href="/soil">soil</a>
<a href="/seeds">seeds</a>
<a href="https://example.com/tools">tools</a>
<img src="a.png" alt="raised bed">
<p>` + strings.Repeat("words about growing plants well together nicely ", 80) + `</p>
</body>
</html>`

func TestAnalyzeHealthyPage(t *testing.T) {
	t.Parallel()

	result := Analyze("https://example.com/garden", []byte(fullPage), 300)

	require.Equal(t, 100, result.Metrics.PageSpeed)
	require.Equal(t, 100, result.Metrics.SEOBasics)
	require.Equal(t, 100, result.Metrics.TechnicalSEO)
	require.Equal(t, 100, result.Metrics.MobileOptimization)
	require.Equal(t, 100, result.Metrics.ContentQuality)
	require.Equal(t, 100, result.Score)
	require.Empty(t, result.Issues)
	require.Empty(t, result.Recommendations)
}

func TestAnalyzeMissingTitleAndDescription(t *testing.T) {
	t.Parallel()

	html := `<html><head>
<meta name="viewport" content="width=device-width">
</head><body><h1>Only heading</h1></body></html>`

	result := Analyze("https://example.com/", []byte(html), 300)

	require.Equal(t, 75, result.Metrics.SEOBasics, "missing title (-15) and description (-10)")
	require.Equal(t, 100, result.Metrics.MobileOptimization)
	require.Equal(t, 100, result.Metrics.PageSpeed)

	titles := issueTitles(result.Issues)
	require.Contains(t, titles, "Missing page title")
	require.Contains(t, titles, "Missing meta description")
}

func TestAnalyzeMissingDescriptionIsHighImpact(t *testing.T) {
	t.Parallel()

	html := `<html><head>
<title>Gardening Tips</title>
<meta name="viewport" content="width=device-width">
</head><body><h1>Gardening Tips</h1></body></html>`

	result := Analyze("https://example.com/", []byte(html), 300)

	var found *audit.Issue
	for i := range result.Issues {
		if result.Issues[i].Title == "Missing meta description" {
			found = &result.Issues[i]
		}
	}
	require.NotNil(t, found)
	require.Equal(t, audit.IssueError, found.Type)
	require.Equal(t, audit.ImpactHigh, found.Impact)

	var recs []string
	for _, r := range result.Recommendations {
		recs = append(recs, r.Title)
	}
	require.Contains(t, recs, "Fix critical technical SEO issues")
}

func TestAnalyzeMultibyteTitleCountsRunes(t *testing.T) {
	t.Parallel()

	// 60 two-byte runes: exactly at the limit when counted as characters,
	// well over it when counted as bytes.
	title := strings.Repeat("é", 60)
	html := `<html><head>
<title>` + title + `</title>
<meta name="description" content="d">
</head><body><h1>h</h1></body></html>`

	result := Analyze("https://example.com/", []byte(html), 100)

	require.NotContains(t, issueTitles(result.Issues), "Title too long")
	require.Equal(t, 100, result.Metrics.SEOBasics)
}

func TestAnalyzeNoindexPage(t *testing.T) {
	t.Parallel()

	html := `<html><head>
<title>Hidden</title>
<meta name="description" content="d">
<meta name="robots" content="noindex, nofollow">
<link rel="canonical" href="/x">
<script type="application/ld+json">{}</script>
</head><body>
<h1>Hidden</h1>
<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>
</body></html>`

	result := Analyze("https://example.com/", []byte(html), 100)

	require.Equal(t, 50, result.Metrics.TechnicalSEO)
	require.Contains(t, issueTitles(result.Issues), "Page blocked from indexing")

	var recs []string
	for _, r := range result.Recommendations {
		recs = append(recs, r.Title)
	}
	require.Contains(t, recs, "Fix critical technical SEO issues")
}

func TestAnalyzeMultipleH1AndMissingAlt(t *testing.T) {
	t.Parallel()

	html := `<html><head>
<title>T</title>
<meta name="description" content="d">
</head><body>
<h1>one</h1><h1>two</h1>
<img src="a.png"><img src="b.png" alt=""><img src="c.png" alt="ok">
</body></html>`

	result := Analyze("https://example.com/", []byte(html), 100)

	// -5 multiple h1, -4 for two missing alts
	require.Equal(t, 91, result.Metrics.SEOBasics)
}

func TestAnalyzeMissingAltPenaltyCapped(t *testing.T) {
	t.Parallel()

	imgs := strings.Repeat(`<img src="x.png">`, 20)
	html := `<html><head><title>T</title><meta name="description" content="d"></head><body><h1>h</h1>` + imgs + `</body></html>`

	result := Analyze("https://example.com/", []byte(html), 100)

	require.Equal(t, 90, result.Metrics.SEOBasics, "alt penalty capped at 10")
}

func TestAnalyzeThinContent(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>T</title></head><body><h1>h</h1><p>just a few words here</p></body></html>`

	result := Analyze("https://example.com/", []byte(html), 100)

	require.Equal(t, 85, result.Metrics.ContentQuality)
	require.Contains(t, issueTitles(result.Issues), "Thin content")
}

func TestAnalyzeKeywordStuffing(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("widgets are great and widgets ", 60)
	html := `<html><head><title>Best Widgets</title></head><body><h1>Widgets</h1><p>` + body + `</p></body></html>`

	result := Analyze("https://example.com/", []byte(html), 100)

	require.Contains(t, issueTitles(result.Issues), "Possible keyword stuffing")
}

func TestAnalyzeSpeedBuckets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		millis int64
		want   int
	}{
		{100, 100},
		{499, 100},
		{500, 90},
		{999, 90},
		{1500, 75},
		{2500, 60},
		{4000, 40},
		{8000, 20},
	}
	for _, tc := range tests {
		result := Analyze("https://example.com/", []byte(fullPage), tc.millis)
		require.Equal(t, tc.want, result.Metrics.PageSpeed, "elapsed %dms", tc.millis)
	}
}

func TestAnalyzeSlowPageScoresWithoutIssues(t *testing.T) {
	t.Parallel()

	result := Analyze("https://example.com/garden", []byte(fullPage), 4000)

	require.Equal(t, 40, result.Metrics.PageSpeed)
	require.Empty(t, result.Issues, "latency lowers the speed sub-score only")
	require.Empty(t, result.Recommendations)
}

func TestAnalyzeSmallTouchTargets(t *testing.T) {
	t.Parallel()

	html := `<html><head>
<title>T</title>
<meta name="viewport" content="width=device-width">
</head><body>
<h1>h</h1>
<button style="width: 20px; height: 20px">x</button>
<button style="width: 18px">y</button>
<button style="width: 60px; height: 60px">fine</button>
</body></html>`

	result := Analyze("https://example.com/", []byte(html), 100)

	require.Equal(t, 90, result.Metrics.MobileOptimization, "one grouped small-target penalty")
}

func TestAnalyzeCompositeIsMeanOfSubScores(t *testing.T) {
	t.Parallel()

	result := Analyze("https://example.com/", []byte(fullPage), 2500)

	m := result.Metrics
	sum := m.PageSpeed + m.SEOBasics + m.ContentQuality + m.TechnicalSEO + m.MobileOptimization
	require.Equal(t, (sum+2)/5, result.Score)
}

func TestAnalyzeDeterministic(t *testing.T) {
	t.Parallel()

	first := Analyze("https://example.com/", []byte(fullPage), 1200)
	second := Analyze("https://example.com/", []byte(fullPage), 1200)

	require.Equal(t, first, second)
}

func TestAnalyzeMalformedHTML(t *testing.T) {
	t.Parallel()

	result := Analyze("https://example.com/", []byte("<html><<<><title>Broken"), 100)

	require.GreaterOrEqual(t, result.Score, 0)
	require.LessOrEqual(t, result.Score, 100)
}

func TestEngineAnalyzePage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{resp: audit.FetchResponse{
		URL:        "https://example.com/garden",
		StatusCode: 200,
		Body:       []byte(fullPage),
		Duration:   300 * time.Millisecond,
	}}
	eng := New(fetcher, zap.NewNop())

	result, err := eng.AnalyzePage(context.Background(), "https://example.com/garden")
	require.NoError(t, err)
	require.Equal(t, 100, result.Score)
	require.Equal(t, []byte(fullPage), result.Body)
	require.Equal(t, int64(300), result.ElapsedMillis)
}

func TestEngineAnalyzePageFetchError(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: audit.ErrFetchTimeout}
	eng := New(fetcher, zap.NewNop())

	_, err := eng.AnalyzePage(context.Background(), "https://slow.example.com/")
	require.ErrorIs(t, err, audit.ErrFetchTimeout)
}

type fakeFetcher struct {
	resp audit.FetchResponse
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ audit.FetchRequest) (audit.FetchResponse, error) {
	return f.resp, f.err
}

func issueTitles(issues []audit.Issue) []string {
	var titles []string
	for _, i := range issues {
		titles = append(titles, i.Title)
	}
	return titles
}
