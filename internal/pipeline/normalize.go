/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package pipeline

// The whitelists are exact and exhaustive: anything not listed is dropped,
// anything listed but absent stays absent. This is deliberate data
// minimization, not lossy parsing — downstream consumers get a stable,
// reduced schema no matter what the tracker adds to its payloads.

var topLevelKeys = map[string]struct{}{
    "id": {}, "key": {}, "fields": {},
}

var fieldKeys = map[string]struct{}{
    "issuetype":   {},
    "project":     {},
    "priority":    {},
    "summary":     {},
    "description": {},
    "status":      {},
    "creator":     {},
    "reporter":    {},
    "created":     {},
    "updated":     {},
    "labels":      {},
    "comment":     {},
}

var nestedKeys = map[string]map[string]struct{}{
    "statusCategory": {"key": {}, "name": {}, "colorName": {}},
    "creator":        {"displayName": {}, "emailAddress": {}, "timeZone": {}},
    "reporter":       {"displayName": {}, "emailAddress": {}, "timeZone": {}},
    "project":        {"key": {}, "name": {}, "projectTypeKey": {}},
    "issuetype":      {"name": {}, "description": {}, "subtask": {}},
}

// Normalize reduces a raw tracker issue to the canonical record. Pure and
// total: any well-formed JSON object goes through without error, missing
// optional sub-objects are simply omitted.
func Normalize(raw map[string]any) map[string]any {
    out := make(map[string]any, len(topLevelKeys))
    for k, v := range raw {
        if _, ok := topLevelKeys[k]; ok { out[k] = v }
    }
    fields, ok := out["fields"].(map[string]any)
    if !ok {
        // no fields object: nothing structured to reduce
        return out
    }
    reduced := make(map[string]any, len(fieldKeys))
    for k, v := range fields {
        if _, keep := fieldKeys[k]; !keep { continue }
        if nested, pruned := nestedKeys[k]; pruned {
            if m, isMap := v.(map[string]any); isMap {
                reduced[k] = pruneKeys(m, nested)
                continue
            }
        }
        if k == "comment" {
            if m, isMap := v.(map[string]any); isMap {
                reduced[k] = reduceComments(m)
            }
            // non-object comment payloads are dropped rather than forwarded
            continue
        }
        reduced[k] = v
    }
    out["fields"] = reduced
    return out
}

func pruneKeys(m map[string]any, keep map[string]struct{}) map[string]any {
    out := make(map[string]any, len(keep))
    for k, v := range m {
        if _, ok := keep[k]; ok { out[k] = v }
    }
    return out
}

// reduceComments rebuilds the comment container as an ordered list of
// {author{displayName,emailAddress}, body, created, updated} entries.
func reduceComments(comment map[string]any) map[string]any {
    raw, _ := comment["comments"].([]any)
    comments := make([]any, 0, len(raw))
    for _, c := range raw {
        cm, ok := c.(map[string]any)
        if !ok { continue }
        author := map[string]any{}
        if am, ok := cm["author"].(map[string]any); ok {
            if v, ok := am["displayName"]; ok { author["displayName"] = v }
            if v, ok := am["emailAddress"]; ok { author["emailAddress"] = v }
        }
        entry := map[string]any{"author": author}
        for _, k := range []string{"body", "created", "updated"} {
            if v, ok := cm[k]; ok { entry[k] = v }
        }
        comments = append(comments, entry)
    }
    return map[string]any{"comments": comments}
}
