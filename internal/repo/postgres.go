/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
    "context"
    "errors"
    "time"

    "github.com/example/jira-relay/internal/config"
    "github.com/example/jira-relay/internal/domain"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

// EnsureSchema creates the run ledger table. The bus is the only carrier of
// issue data; this table holds run bookkeeping only.
func (r *Repository) EnsureSchema(ctx context.Context) error {
    const q = `
        CREATE TABLE IF NOT EXISTS sync_runs(
            id               BIGSERIAL PRIMARY KEY,
            started_at       TIMESTAMPTZ NOT NULL,
            finished_at      TIMESTAMPTZ,
            pages            INT NOT NULL DEFAULT 0,
            issues_scanned   INT NOT NULL DEFAULT 0,
            issues_published INT NOT NULL DEFAULT 0,
            issues_failed    INT NOT NULL DEFAULT 0,
            success          BOOLEAN NOT NULL DEFAULT false,
            error            TEXT NOT NULL DEFAULT ''
        )`
    _, err := r.db.Pool.Exec(ctx, q)
    return err
}

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

func (r *Repository) StartSyncRun(ctx context.Context) (int64, error) {
    const q = `INSERT INTO sync_runs(started_at, success) VALUES(now(), false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishSyncRun(ctx context.Context, id int64, stats domain.SyncStats, success bool, errStr string) error {
    const q = `UPDATE sync_runs SET finished_at=now(), pages=$2, issues_scanned=$3,
        issues_published=$4, issues_failed=$5, success=$6, error=$7 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, stats.Pages, stats.Scanned, stats.Published, stats.Failed, success, errStr)
    return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*domain.SyncRun, error) {
    const q = `SELECT id, started_at, finished_at, pages, issues_scanned, issues_published,
        issues_failed, success, error FROM sync_runs ORDER BY id DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    sr := &domain.SyncRun{}
    if err := row.Scan(&sr.ID, &sr.StartedAt, &sr.FinishedAt, &sr.Pages, &sr.Scanned,
        &sr.Published, &sr.Failed, &sr.Success, &sr.Error); err != nil { return nil, err }
    return sr, nil
}
