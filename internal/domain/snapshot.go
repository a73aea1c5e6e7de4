package domain

import "time"

// SubscriptionActive is the subscription status that counts toward readiness.
const SubscriptionActive = "active"

// ReadinessSnapshot is the composite account-readiness value produced by one
// verification round trip. Snapshots are immutable: every check produces a
// new one, it is never patched in place.
type ReadinessSnapshot struct {
	WorkspaceID        string
	SubscriptionPlan   string
	SubscriptionStatus string
	ProfileExists      bool
	WorkspaceExists    bool
	NeedsPayment       bool
	IsReady            bool
	Error              string
	FetchedAt          time.Time
}

// NewSnapshot builds a snapshot from a verification result and derives
// IsReady. This is the only place IsReady is computed; no other code path
// may set it.
func NewSnapshot(v VerifyResult, fetchedAt time.Time) ReadinessSnapshot {
	s := ReadinessSnapshot{
		WorkspaceID:        v.WorkspaceID,
		SubscriptionPlan:   v.SubscriptionPlan,
		SubscriptionStatus: v.SubscriptionStatus,
		ProfileExists:      v.ProfileExists,
		WorkspaceExists:    v.WorkspaceExists,
		NeedsPayment:       v.NeedsPayment,
		FetchedAt:          fetchedAt,
	}
	s.IsReady = deriveReady(s)
	return s
}

// ErrorSnapshot builds the snapshot published after a failed verification.
// Known fields carry over from the previous snapshot so the UI keeps showing
// the last good state, but IsReady is re-derived and the error is set.
func ErrorSnapshot(prev ReadinessSnapshot, errMsg string, fetchedAt time.Time) ReadinessSnapshot {
	s := prev
	s.Error = errMsg
	s.FetchedAt = fetchedAt
	s.IsReady = deriveReady(s)
	return s
}

func deriveReady(s ReadinessSnapshot) bool {
	return s.ProfileExists &&
		s.WorkspaceExists &&
		s.SubscriptionStatus == SubscriptionActive &&
		!s.NeedsPayment
}

// CacheEntry is a cached snapshot with its expiry deadline.
type CacheEntry struct {
	Snapshot  ReadinessSnapshot
	ExpiresAt time.Time
}

// Fresh reports whether the entry may still be served at the given instant.
func (e CacheEntry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
