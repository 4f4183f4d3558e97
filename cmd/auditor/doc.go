// Package main hosts the auditor service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, usage and audit endpoints. Submissions are
//     validated, admitted against the user's tier quota, persisted via the AuditStore and enqueued for work.
//   - Service & quota: internal/service.Service runs admission under a per-user lock through the quota.Ledger,
//     which checks period audit and token limits and dispatches threshold alerts with a cooldown.
//   - Dispatcher & queue: admitted audits flow through a bounded queue (in-memory or Pub/Sub, selected by
//     config) and are fanned out to a fixed worker pool sized by config.Worker.Concurrency. Context
//     cancellation stops workers cleanly on shutdown.
//   - Analysis pipeline: workers fetch the page via the Colly-based fetcher, run the five analyzers (speed,
//     basics, content, technical, mobile), analyze up to the capped number of competitors, and compute the
//     composite score and token cost.
//   - Persistence & fanout: raw HTML is archived to the configured BlobStore (memory/local/GCS) under a
//     content-hash path. Audits, snapshots and usage live in Postgres or in memory. A completion event is
//     published when an events topic is configured. Progress events are batched and sent to log and
//     Prometheus sinks.
//   - Configuration & plumbing: Viper populates config from env/files under the AUDITOR prefix; zap provides
//     structured logging; Prometheus metrics are exported via the metrics middleware and /metrics handler.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool. Shutdown is coordinated via context cancellation
//     propagated from main through dispatcher to workers.
//   - Idempotency: delivery is at-least-once; completion and snapshot writes are guarded, so redelivered
//     items re-run analysis but never double-complete an audit or double-append history.
//   - Observability: zap logs carry audit IDs and URLs at key transitions; Prometheus counters/histograms
//     track API activity, fetch latency, scores and quota rejections.
//
// Quick checklist:
//   - Configure env vars: AUDITOR_SERVER_PORT, AUDITOR_WORKER_CONCURRENCY, AUDITOR_FETCH_TIMEOUT_SECONDS,
//     AUDITOR_DB_DSN for Postgres, AUDITOR_STORAGE_GCS_BUCKET for archival, and AUDITOR_PUBSUB_* when the
//     queue should ride on Pub/Sub.
//   - Run locally: go run ./cmd/auditor -config config.yaml (or rely solely on env overrides).
package main
