/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package pipeline

import (
    "strings"
    "time"
)

const (
    // EventInitialLoad marks records originating from a backfill run.
    EventInitialLoad = "initial_load"
    // EventUnknown is the sentinel for webhook events without a declared kind.
    // Any string is accepted as an event type; no event is dropped over it.
    EventUnknown = "Unknown Event"
)

// timestampLayout renders UTC with millisecond precision. The +0000 offset is
// appended as a literal so every message compares the same across systems.
const timestampLayout = "2006-01-02T15:04:05.000"

// EnvelopeBuilder stamps pipeline metadata onto normalized records.
type EnvelopeBuilder struct {
    baseURL string
    now     func() time.Time
}

func NewEnvelopeBuilder(baseURL string) *EnvelopeBuilder {
    return &EnvelopeBuilder{baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

// Build adds timestamp, date, event_type and url to a normalized record.
// The record is owned by the current sync attempt and immutable afterwards.
func (b *EnvelopeBuilder) Build(normalized map[string]any, key, eventType string) map[string]any {
    ts := b.now().UTC().Format(timestampLayout) + "+0000"
    normalized["timestamp"] = ts
    normalized["date"] = strings.SplitN(ts, "T", 2)[0]
    normalized["event_type"] = eventType
    normalized["url"] = b.baseURL + "/browse/" + key
    return normalized
}
