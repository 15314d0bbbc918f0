/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/example/jira-relay/internal/adapters/jira"
    "github.com/example/jira-relay/internal/adapters/pulsar"
    "github.com/example/jira-relay/internal/config"
    httpx "github.com/example/jira-relay/internal/http"
    "github.com/example/jira-relay/internal/jobs"
    "github.com/example/jira-relay/internal/logger"
    "github.com/example/jira-relay/internal/pipeline"
    "github.com/example/jira-relay/internal/repo"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    if err := cfg.Validate(); err != nil {
        log.Fatal().Err(err).Msg("invalid configuration")
    }
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB (run ledger)
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()
    repository := repo.NewRepository(db, log)
    if err := repository.EnsureSchema(ctx); err != nil {
        log.Fatal().Err(err).Msg("schema setup failed")
    }

    // Adapters: one long-lived tracker credential set, one long-lived producer
    jc := jira.NewClient(cfg, log)
    producer, err := pulsar.New(cfg, log)
    if err != nil {
        log.Fatal().Err(err).Msg("pulsar setup failed")
    }
    defer producer.Close()

    // Pipeline
    svc := pipeline.NewService(cfg, log, jc, producer, repository)

    // HTTP server (Gin)
    router := httpx.NewRouter(cfg, log, svc)

    // Periodic full resync
    cron := jobs.NewCron(cfg, log, svc, repository)
    cron.Start()
    defer cron.Stop()

    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()
    log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
