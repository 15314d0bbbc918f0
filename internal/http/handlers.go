/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "errors"
    "fmt"
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/example/jira-relay/internal/config"
    "github.com/example/jira-relay/internal/domain"
    "github.com/example/jira-relay/internal/pipeline"
    "github.com/rs/zerolog"
)

type service interface {
    SyncIssue(ctx context.Context, issueID, eventType string) error
    RunBackfill(ctx context.Context) domain.SyncStats
    GetLastRun(ctx context.Context) (*domain.SyncRun, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

// JiraWebhook receives a push event and drives the single-issue sync. The
// body must carry issue.id; the event kind travels in the X-Event-Key header.
// Fetch and publish failures map to distinct status codes so the webhook
// deliverer can decide whether redelivery makes sense.
func (h *Handlers) JiraWebhook(c *gin.Context) {
    eventType := c.GetHeader("X-Event-Key")
    if eventType == "" { eventType = pipeline.EventUnknown }

    var body struct {
        Issue *struct {
            ID any `json:"id"`
        } `json:"issue"`
    }
    if err := c.ShouldBindJSON(&body); err != nil || body.Issue == nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "no issue data found in payload"})
        return
    }
    issueID := idString(body.Issue.ID)
    if issueID == "" {
        c.JSON(http.StatusBadRequest, gin.H{"error": "no issue data found in payload"})
        return
    }

    err := h.svc.SyncIssue(c.Request.Context(), issueID, eventType)
    var fe *pipeline.FetchError
    var pe *pipeline.PublishError
    switch {
    case errors.As(err, &fe):
        h.log.Error().Err(err).Str("issue", issueID).Msg("webhook: fetch failed")
        c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch issue details"})
    case errors.As(err, &pe):
        h.log.Error().Err(err).Str("issue", issueID).Msg("webhook: publish failed")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish issue"})
    case err != nil:
        h.log.Error().Err(err).Str("issue", issueID).Msg("webhook: sync failed")
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    default:
        c.JSON(http.StatusOK, gin.H{"status": "success"})
    }
}

func (h *Handlers) RunSync(c *gin.Context) {
    // detached from the request so caller cancellation does not stop the run
    go func() { _ = h.svc.RunBackfill(context.Background()) }()
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.svc.GetLastRun(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, lr)
}

// idString accepts the id as JSON string or number; Jira webhooks send both.
func idString(v any) string {
    switch t := v.(type) {
    case string:
        return t
    case float64:
        return fmt.Sprintf("%.0f", t)
    default:
        return ""
    }
}
