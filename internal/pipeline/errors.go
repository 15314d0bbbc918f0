/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package pipeline

import "fmt"

// FetchError means the tracker read failed and no issue data was obtained.
// A precondition failure: nothing was published for this issue.
type FetchError struct {
    IssueID string
    Err     error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch issue %s: %v", e.IssueID, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// PublishError means the envelope could not be serialized or the broker did
// not acknowledge it. A delivery failure: the issue was fetched and normalized.
type PublishError struct {
    IssueID string
    Err     error
}

func (e *PublishError) Error() string { return fmt.Sprintf("publish issue %s: %v", e.IssueID, e.Err) }
func (e *PublishError) Unwrap() error { return e.Err }
