/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package pipeline

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"

    "github.com/example/jira-relay/internal/config"
    "github.com/example/jira-relay/internal/domain"
    "github.com/rs/zerolog"
)

// Source is the tracker read boundary.
type Source interface {
    Issue(ctx context.Context, id string) (map[string]any, error)
    Search(ctx context.Context, jql string, startAt, maxResults int) (map[string]any, error)
}

// Bus delivers one serialized envelope and waits for broker acknowledgment.
type Bus interface {
    Send(ctx context.Context, payload []byte) error
}

// Ledger records backfill runs. Ledger failures never fail a sync.
type Ledger interface {
    StartSyncRun(ctx context.Context) (int64, error)
    FinishSyncRun(ctx context.Context, id int64, stats domain.SyncStats, success bool, errStr string) error
    GetLastRun(ctx context.Context) (*domain.SyncRun, error)
}

// Service is the shared fetch→normalize→publish pipeline with its two
// drivers: SyncIssue (webhook, one issue) and RunBackfill (full corpus).
type Service struct {
    cfg      config.Config
    log      zerolog.Logger
    source   Source
    bus      Bus
    ledger   Ledger
    envelope *EnvelopeBuilder
}

func NewService(cfg config.Config, log zerolog.Logger, source Source, bus Bus, ledger Ledger) *Service {
    return &Service{
        cfg:      cfg,
        log:      log,
        source:   source,
        bus:      bus,
        ledger:   ledger,
        envelope: NewEnvelopeBuilder(cfg.JiraBaseURL),
    }
}

// SyncIssue drives one issue through the pipeline. The returned error is a
// *FetchError or *PublishError; the caller decides how to surface each.
// No retry happens here — retry, if any, belongs to the webhook deliverer.
func (s *Service) SyncIssue(ctx context.Context, issueID, eventType string) error {
    raw, err := s.source.Issue(ctx, issueID)
    if err != nil { return &FetchError{IssueID: issueID, Err: err} }
    normalized := Normalize(raw)
    env := s.envelope.Build(normalized, toStr(raw["key"]), eventType)
    payload, err := json.Marshal(env)
    if err != nil { return &PublishError{IssueID: issueID, Err: err} }
    if err := s.bus.Send(ctx, payload); err != nil {
        return &PublishError{IssueID: issueID, Err: err}
    }
    s.log.Debug().Str("issue", issueID).Str("event_type", eventType).Msg("published")
    return nil
}

// RunBackfill pages through the whole issue corpus and drives every issue
// through the pipeline with event type "initial_load". The loop is
// deliberately sequential: publish order tracks fetch order and the tracker
// API is not hammered concurrently. Per-issue failures are logged and
// counted, never aborting the run.
func (s *Service) RunBackfill(ctx context.Context) domain.SyncStats {
    var stats domain.SyncStats
    runID := s.startRun(ctx)
    s.log.Info().Str("jql", s.cfg.JiraSyncJQL).Msg("backfill: start")

    summaries := s.collectSummaries(ctx, &stats)
    for _, sum := range summaries {
        stats.Scanned++
        id := toStr(sum["id"])
        if id == "" {
            stats.Failed++
            s.log.Warn().Any("summary", sum["key"]).Msg("backfill: summary without id, skipped")
            continue
        }
        if err := s.SyncIssue(ctx, id, EventInitialLoad); err != nil {
            stats.Failed++
            s.log.Error().Err(err).Str("issue", id).Msg("backfill: issue skipped")
            continue
        }
        stats.Published++
    }

    s.log.Info().
        Int("pages", stats.Pages).
        Int("scanned", stats.Scanned).
        Int("published", stats.Published).
        Int("failed", stats.Failed).
        Msg("backfill: done")
    s.finishRun(ctx, runID, stats)
    return stats
}

// collectSummaries fetches pages of size JiraPageSize until a short page.
// The short page is the sole termination signal — the "total" field of a
// search response may be stale or absent and is never consulted. A page
// fetch error stops paging; whatever accumulated so far is still processed.
func (s *Service) collectSummaries(ctx context.Context, stats *domain.SyncStats) []map[string]any {
    pageSize := s.cfg.JiraPageSize
    if pageSize <= 0 { pageSize = 50 }
    var summaries []map[string]any
    startAt := 0
    for {
        page, err := s.source.Search(ctx, s.cfg.JiraSyncJQL, startAt, pageSize)
        if err != nil {
            s.log.Error().Err(err).Int("start_at", startAt).Msg("backfill: page fetch failed, processing collected issues")
            break
        }
        stats.Pages++
        arr, _ := page["issues"].([]any)
        for _, it := range arr {
            if m, _ := it.(map[string]any); m != nil { summaries = append(summaries, m) }
        }
        if len(arr) < pageSize { break }
        startAt += pageSize
    }
    return summaries
}

// GetLastRun exposes the latest ledger row for the admin surface.
func (s *Service) GetLastRun(ctx context.Context) (*domain.SyncRun, error) {
    if s.ledger == nil { return nil, fmt.Errorf("no run ledger configured") }
    return s.ledger.GetLastRun(ctx)
}

func (s *Service) startRun(ctx context.Context) int64 {
    if s.ledger == nil { return 0 }
    id, err := s.ledger.StartSyncRun(ctx)
    if err != nil { s.log.Error().Err(err).Msg("backfill: start run ledger failed") }
    return id
}

func (s *Service) finishRun(ctx context.Context, id int64, stats domain.SyncStats) {
    if s.ledger == nil || id == 0 { return }
    errStr := ""
    if stats.Failed > 0 { errStr = fmt.Sprintf("%d issues failed", stats.Failed) }
    if err := s.ledger.FinishSyncRun(ctx, id, stats, stats.Failed == 0, errStr); err != nil {
        s.log.Error().Err(err).Msg("backfill: finish run ledger failed")
    }
}

func toStr(v any) string {
    switch t := v.(type) {
    case nil:
        return ""
    case string:
        return t
    case float64:
        return strconv.FormatFloat(t, 'f', -1, 64)
    default:
        return fmt.Sprintf("%v", v)
    }
}
