package domain

import "time"

// SyncStats counts the outcome of one backfill run. A run never carries an
// aggregate error; failures are per-issue and recorded here and in the log.
type SyncStats struct {
    Pages     int `json:"pages"`
    Scanned   int `json:"issues_scanned"`
    Published int `json:"issues_published"`
    Failed    int `json:"issues_failed"`
}

// SyncRun is one row of the run ledger.
type SyncRun struct {
    ID         int64      `json:"id"`
    StartedAt  time.Time  `json:"started_at"`
    FinishedAt *time.Time `json:"finished_at"`
    Pages      int        `json:"pages"`
    Scanned    int        `json:"issues_scanned"`
    Published  int        `json:"issues_published"`
    Failed     int        `json:"issues_failed"`
    Success    bool       `json:"success"`
    Error      string     `json:"error"`
}
