// Package worker implements the audit pipeline execution loop.
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rankpilot/auditor/internal/audit"
	"github.com/rankpilot/auditor/internal/progress"
)

// Config controls Worker behavior.
type Config struct {
	ContentType   string
	BlobPrefix    string
	Topic         string
	CompetitorCap int
}

// DefaultCompetitorCap bounds fan-out per audit regardless of how many
// competitor URLs were submitted.
const DefaultCompetitorCap = 3

// Worker consumes queue items and executes the audit pipeline.
type Worker struct {
	queue     audit.Queue
	audits    audit.AuditStore
	snapshots audit.SnapshotStore
	usage     audit.UsageStore
	blobStore audit.BlobStore
	publisher audit.Publisher
	hasher    audit.Hasher
	clock     audit.Clock
	analyzer  audit.PageAnalyzer
	emitter   progress.Emitter
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue audit.Queue,
	audits audit.AuditStore,
	snapshots audit.SnapshotStore,
	usage audit.UsageStore,
	blobStore audit.BlobStore,
	publisher audit.Publisher,
	hasher audit.Hasher,
	clock audit.Clock,
	analyzer audit.PageAnalyzer,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if cfg.CompetitorCap <= 0 {
		cfg.CompetitorCap = DefaultCompetitorCap
	}
	return &Worker{
		queue:     queue,
		audits:    audits,
		snapshots: snapshots,
		usage:     usage,
		blobStore: blobStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		analyzer:  analyzer,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued audit", zap.String("audit_id", item.AuditID))
		err = w.processItem(ctx, item)
		if err != nil {
			w.logger.Error("audit processing failed",
				zap.String("audit_id", item.AuditID),
				zap.Error(err),
			)
		}
		if item.Settle != nil {
			item.Settle(err)
		}
	}
}

// processItem executes one audit end to end. Returned errors are
// infrastructure failures worth a retry on redelivery; an analysis failure
// of the primary page is terminal and recorded on the audit instead.
func (w *Worker) processItem(ctx context.Context, item audit.QueueItem) error {
	start := w.clock.Now()
	w.emit(progress.Event{
		AuditID: item.AuditID,
		TS:      start,
		Stage:   progress.StageAuditStart,
		URL:     item.URL,
	})

	if err := w.audits.MarkProcessing(ctx, item.AuditID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	primary, err := w.analyzer.AnalyzePage(ctx, item.URL)
	if err != nil {
		return w.failAudit(ctx, item, start, err)
	}
	w.emitFetch(item.AuditID, item.URL, primary)

	gaps := w.analyzeCompetitors(ctx, item, primary)
	tokens := audit.TokenCost(len(gaps), len(primary.Issues))

	blobURI := w.archiveBody(ctx, item, primary.Body)

	results := audit.Results{
		Score:           primary.Score,
		Metrics:         primary.Metrics,
		Issues:          primary.Issues,
		Recommendations: primary.Recommendations,
		CompetitorGaps:  gaps,
		BlobURI:         blobURI,
	}
	now := w.clock.Now()
	if err := w.audits.CompleteAudit(ctx, item.AuditID, results, now); err != nil {
		return fmt.Errorf("complete audit: %w", err)
	}

	// The audit is completed from here on. Failures below are returned so
	// a redelivery retries them, but the audit is never re-marked failed.
	if err := w.snapshots.AppendSnapshot(ctx, audit.Snapshot{
		AuditID:   item.AuditID,
		Score:     primary.Score,
		Timestamp: now,
	}); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	if err := w.usage.SetTokensUsed(ctx, item.AuditID, tokens); err != nil {
		return fmt.Errorf("reconcile usage: %w", err)
	}
	if err := w.publishResult(ctx, item, results, tokens); err != nil {
		return err
	}

	w.emit(progress.Event{
		AuditID: item.AuditID,
		TS:      now,
		Stage:   progress.StageAuditDone,
		URL:     item.URL,
		Score:   primary.Score,
		Dur:     now.Sub(start),
	})
	w.logger.Info("audit completed",
		zap.String("audit_id", item.AuditID),
		zap.String("url", item.URL),
		zap.Int("score", primary.Score),
		zap.Int("issues", len(primary.Issues)),
		zap.Int("competitors", len(gaps)),
		zap.Int("tokens_used", tokens),
	)
	return nil
}

func (w *Worker) failAudit(ctx context.Context, item audit.QueueItem, start time.Time, cause error) error {
	now := w.clock.Now()
	if err := w.audits.MarkFailed(ctx, item.AuditID, cause.Error(), now); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	w.emit(progress.Event{
		AuditID: item.AuditID,
		TS:      now,
		Stage:   progress.StageAuditError,
		URL:     item.URL,
		Dur:     now.Sub(start),
		Note:    cause.Error(),
	})
	w.logger.Warn("audit failed",
		zap.String("audit_id", item.AuditID),
		zap.String("url", item.URL),
		zap.Error(cause),
	)
	return nil
}

// analyzeCompetitors runs the analysis pipeline over each competitor URL,
// sequentially and capped. A failing competitor never fails the audit; it is
// recorded as an error entry in the gap list.
func (w *Worker) analyzeCompetitors(ctx context.Context, item audit.QueueItem, primary audit.AnalysisResult) []audit.CompetitorGap {
	competitors := item.Competitors
	if len(competitors) > w.cfg.CompetitorCap {
		competitors = competitors[:w.cfg.CompetitorCap]
	}

	var gaps []audit.CompetitorGap
	for _, url := range competitors {
		res, err := w.analyzer.AnalyzePage(ctx, url)
		if err != nil {
			w.logger.Warn("competitor analysis failed",
				zap.String("audit_id", item.AuditID),
				zap.String("competitor_url", url),
				zap.Error(err),
			)
			gaps = append(gaps, audit.CompetitorGap{
				URL:   url,
				Error: fmt.Sprintf("analysis failed: %v", err),
			})
			continue
		}
		w.emitFetch(item.AuditID, url, res)
		gaps = append(gaps, audit.CompetitorGap{
			URL:        url,
			Score:      res.Score,
			Strengths:  highPriorityRecommendations(res.Recommendations),
			Weaknesses: highImpactIssues(res.Issues),
			Gaps:       highPriorityRecommendations(primary.Recommendations),
		})
	}
	return gaps
}

// archiveBody stores the raw fetched HTML. Archive failures degrade the
// audit record rather than failing it.
func (w *Worker) archiveBody(ctx context.Context, item audit.QueueItem, body []byte) string {
	if w.blobStore == nil || len(body) == 0 {
		return ""
	}
	hash, err := w.hasher.Hash(body)
	if err != nil {
		w.logger.Warn("hash body failed", zap.String("audit_id", item.AuditID), zap.Error(err))
		return ""
	}
	uri, err := w.blobStore.PutObject(ctx, w.buildBlobPath(item.AuditID, hash), w.cfg.ContentType, body)
	if err != nil {
		w.logger.Warn("archive page failed",
			zap.String("audit_id", item.AuditID),
			zap.Error(err),
		)
		return ""
	}
	return uri
}

func (w *Worker) buildBlobPath(auditID, hash string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", auditID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, auditID, hash)
}

func (w *Worker) publishResult(ctx context.Context, item audit.QueueItem, results audit.Results, tokens int) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	payload := map[string]any{
		"audit_id":    item.AuditID,
		"user_id":     item.UserID,
		"project_id":  item.ProjectID,
		"url":         item.URL,
		"score":       results.Score,
		"issues":      len(results.Issues),
		"competitors": len(results.CompetitorGaps),
		"tokens_used": tokens,
		"blob_uri":    results.BlobURI,
		"timestamp":   w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		return fmt.Errorf("publish completion event: %w", err)
	}
	return nil
}

func (w *Worker) emit(evt progress.Event) {
	if w.emitter == nil {
		return
	}
	w.emitter.Emit(evt)
}

func (w *Worker) emitFetch(auditID, url string, res audit.AnalysisResult) {
	w.emit(progress.Event{
		AuditID:     auditID,
		TS:          w.clock.Now(),
		Stage:       progress.StageFetchDone,
		URL:         url,
		StatusClass: progress.Status2xx,
		Dur:         time.Duration(res.ElapsedMillis) * time.Millisecond,
	})
}

func highPriorityRecommendations(recs []audit.Recommendation) []string {
	var titles []string
	for _, r := range recs {
		if r.Priority == audit.PriorityHigh {
			titles = append(titles, r.Title)
		}
	}
	return titles
}

func highImpactIssues(issues []audit.Issue) []string {
	var titles []string
	for _, i := range issues {
		if i.Impact == audit.ImpactHigh {
			titles = append(titles, i.Title)
		}
	}
	return titles
}
