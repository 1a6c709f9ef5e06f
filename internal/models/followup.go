package models

import (
	"math"
	"strings"
	"time"
)

// FollowupStatus is the follow-up bucket stored on a patient.
type FollowupStatus string

const (
	StatusScheduled FollowupStatus = "Scheduled"
	StatusPending   FollowupStatus = "Pending"
	StatusToday     FollowupStatus = "Today"
	StatusOverdue   FollowupStatus = "Overdue"
	StatusCompleted FollowupStatus = "Completed"
	StatusMissed    FollowupStatus = "Missed"
)

// PendingWindowDays is how far ahead a follow-up counts as pending.
const PendingWindowDays = 7

// DeriveFollowupStatus buckets a follow-up date relative to now. The day
// difference is rounded up, so a follow-up later today is "Today" and one
// earlier than today is "Overdue".
func DeriveFollowupStatus(nextFollowup Date, now time.Time) FollowupStatus {
	diff := nextFollowup.Time().Sub(now).Hours() / 24
	diffDays := int(math.Ceil(diff))

	switch {
	case diffDays < 0:
		return StatusOverdue
	case diffDays == 0:
		return StatusToday
	case diffDays <= PendingWindowDays:
		return StatusPending
	default:
		return StatusScheduled
	}
}

// IsCompleted matches the completed status case-insensitively.
func (s FollowupStatus) IsCompleted() bool {
	return strings.EqualFold(string(s), string(StatusCompleted))
}

// IsMissed matches the missed status case-insensitively.
func (s FollowupStatus) IsMissed() bool {
	return strings.EqualFold(string(s), string(StatusMissed))
}
