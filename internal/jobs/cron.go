package jobs

import (
    "context"
    "time"

    "github.com/example/jira-relay/internal/config"
    "github.com/example/jira-relay/internal/domain"
    "github.com/example/jira-relay/internal/repo"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

type service interface {
    RunBackfill(ctx context.Context) domain.SyncStats
}

type Cron struct {
    cfg  config.Config
    log  zerolog.Logger
    svc  service
    repo *repo.Repository
    c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
    c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
    _, _ = c.AddFunc(cfg.SyncCron, cr.resync)
    return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) resync() {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour); defer cancel()
    const lockKey int64 = 731031
    ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
    if err != nil { cr.log.Error().Err(err).Msg("cron: lock error"); return }
    if !ok { cr.log.Info().Msg("cron: resync already running elsewhere"); return }
    defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()
    cr.log.Info().Msg("cron: full resync")
    stats := cr.svc.RunBackfill(ctx)
    if stats.Failed > 0 {
        cr.log.Warn().Int("failed", stats.Failed).Msg("cron: resync finished with failures")
    }
}
