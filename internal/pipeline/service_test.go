package pipeline

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "testing"

    "github.com/example/jira-relay/internal/config"
    "github.com/rs/zerolog"
)

type fakeSource struct {
    total       int
    searchCalls []int
    searchErrAt int // fail the search when startAt equals this; -1 disables
    fetchErrIDs map[string]bool
    fetched     []string
}

func newFakeSource(total int) *fakeSource {
    return &fakeSource{total: total, searchErrAt: -1, fetchErrIDs: map[string]bool{}}
}

func (f *fakeSource) Search(ctx context.Context, jql string, startAt, maxResults int) (map[string]any, error) {
    if f.searchErrAt >= 0 && startAt == f.searchErrAt {
        return nil, errors.New("search down")
    }
    f.searchCalls = append(f.searchCalls, startAt)
    var issues []any
    for i := startAt; i < f.total && i < startAt+maxResults; i++ {
        issues = append(issues, map[string]any{"id": fmt.Sprintf("%d", i+1), "key": fmt.Sprintf("TES-%d", i+1)})
    }
    return map[string]any{"issues": issues}, nil
}

func (f *fakeSource) Issue(ctx context.Context, id string) (map[string]any, error) {
    if f.fetchErrIDs[id] { return nil, errors.New("issue gone") }
    f.fetched = append(f.fetched, id)
    return map[string]any{"id": id, "key": "TES-" + id, "fields": map[string]any{"summary": "s" + id}}, nil
}

type fakeBus struct {
    sent      [][]byte
    failAfter int // fail the Nth send (1-based); 0 disables
    calls     int
}

func (f *fakeBus) Send(ctx context.Context, payload []byte) error {
    f.calls++
    if f.failAfter > 0 && f.calls == f.failAfter {
        return errors.New("broker rejected")
    }
    f.sent = append(f.sent, payload)
    return nil
}

func testService(src Source, bus Bus) *Service {
    cfg := config.Config{
        JiraBaseURL:  "https://jira.example.com",
        JiraSyncJQL:  "ORDER BY created DESC",
        JiraPageSize: 50,
    }
    return NewService(cfg, zerolog.Nop(), src, bus, nil)
}

func sentIDs(t *testing.T, bus *fakeBus) []string {
    t.Helper()
    out := make([]string, 0, len(bus.sent))
    for _, p := range bus.sent {
        var m map[string]any
        if err := json.Unmarshal(p, &m); err != nil { t.Fatalf("bad payload: %v", err) }
        out = append(out, m["id"].(string))
    }
    return out
}

func TestRunBackfill_PaginationTerminatesOnShortPage(t *testing.T) {
    src := newFakeSource(127)
    bus := &fakeBus{}
    stats := testService(src, bus).RunBackfill(context.Background())

    if len(src.searchCalls) != 3 {
        t.Fatalf("expected 3 page fetches, got %v", src.searchCalls)
    }
    if src.searchCalls[0] != 0 || src.searchCalls[1] != 50 || src.searchCalls[2] != 100 {
        t.Fatalf("unexpected offsets %v", src.searchCalls)
    }
    if stats.Pages != 3 || stats.Scanned != 127 || stats.Published != 127 || stats.Failed != 0 {
        t.Fatalf("unexpected stats %+v", stats)
    }
    if len(bus.sent) != 127 { t.Fatalf("expected 127 messages, got %d", len(bus.sent)) }
}

func TestRunBackfill_ExactPageBoundary(t *testing.T) {
    // 100 issues with page size 50: the third page is empty and terminates.
    src := newFakeSource(100)
    bus := &fakeBus{}
    stats := testService(src, bus).RunBackfill(context.Background())
    if len(src.searchCalls) != 3 { t.Fatalf("expected 3 page fetches, got %v", src.searchCalls) }
    if stats.Scanned != 100 || stats.Published != 100 {
        t.Fatalf("unexpected stats %+v", stats)
    }
}

func TestRunBackfill_ContinuesPastFetchFailure(t *testing.T) {
    src := newFakeSource(3)
    src.fetchErrIDs["2"] = true
    bus := &fakeBus{}
    stats := testService(src, bus).RunBackfill(context.Background())

    if stats.Scanned != 3 || stats.Published != 2 || stats.Failed != 1 {
        t.Fatalf("unexpected stats %+v", stats)
    }
    ids := sentIDs(t, bus)
    if len(ids) != 2 || ids[0] != "1" || ids[1] != "3" {
        t.Fatalf("expected issues 1 and 3 in order, got %v", ids)
    }
}

func TestRunBackfill_ContinuesPastPublishFailure(t *testing.T) {
    src := newFakeSource(3)
    bus := &fakeBus{failAfter: 2}
    stats := testService(src, bus).RunBackfill(context.Background())

    if stats.Published != 2 || stats.Failed != 1 {
        t.Fatalf("unexpected stats %+v", stats)
    }
    ids := sentIDs(t, bus)
    if len(ids) != 2 || ids[0] != "1" || ids[1] != "3" {
        t.Fatalf("expected issues 1 and 3 delivered, got %v", ids)
    }
}

func TestRunBackfill_PageErrorProcessesCollectedIssues(t *testing.T) {
    src := newFakeSource(127)
    src.searchErrAt = 50
    bus := &fakeBus{}
    stats := testService(src, bus).RunBackfill(context.Background())

    if stats.Pages != 1 { t.Fatalf("expected 1 successful page, got %d", stats.Pages) }
    if stats.Scanned != 50 || stats.Published != 50 {
        t.Fatalf("first page must still be processed, got %+v", stats)
    }
}

func TestRunBackfill_UsesInitialLoadEventType(t *testing.T) {
    src := newFakeSource(1)
    bus := &fakeBus{}
    testService(src, bus).RunBackfill(context.Background())
    var m map[string]any
    if err := json.Unmarshal(bus.sent[0], &m); err != nil { t.Fatalf("bad payload: %v", err) }
    if m["event_type"] != EventInitialLoad {
        t.Fatalf("expected %q, got %v", EventInitialLoad, m["event_type"])
    }
    if m["url"] != "https://jira.example.com/browse/TES-1" {
        t.Fatalf("unexpected url %v", m["url"])
    }
}

func TestSyncIssue_ErrorTaxonomy(t *testing.T) {
    src := newFakeSource(1)
    src.fetchErrIDs["404"] = true
    bus := &fakeBus{failAfter: 1}
    svc := testService(src, bus)

    err := svc.SyncIssue(context.Background(), "404", "jira:issue_updated")
    var fe *FetchError
    if !errors.As(err, &fe) { t.Fatalf("expected *FetchError, got %v", err) }
    if fe.IssueID != "404" { t.Fatalf("fetch error lost issue id: %+v", fe) }

    err = svc.SyncIssue(context.Background(), "1", "jira:issue_updated")
    var pe *PublishError
    if !errors.As(err, &pe) { t.Fatalf("expected *PublishError, got %v", err) }
    if pe.IssueID != "1" { t.Fatalf("publish error lost issue id: %+v", pe) }
}

func TestSyncIssue_PublishesWebhookEventType(t *testing.T) {
    src := newFakeSource(1)
    bus := &fakeBus{}
    if err := testService(src, bus).SyncIssue(context.Background(), "1", "jira:issue_created"); err != nil {
        t.Fatalf("sync failed: %v", err)
    }
    var m map[string]any
    if err := json.Unmarshal(bus.sent[0], &m); err != nil { t.Fatalf("bad payload: %v", err) }
    if m["event_type"] != "jira:issue_created" {
        t.Fatalf("unexpected event_type %v", m["event_type"])
    }
}
