package models

import "strings"

// Run statuses reported by the verification service.
const (
	StatusQueued        = "queued"
	StatusInProgress    = "in_progress"
	StatusAwaitingVotes = "awaiting_votes"
	StatusCompleted     = "completed"
)

// DemoRunPrefix marks run IDs that are synthesized locally and never
// correspond to a job at the verification service. Demo runs are excluded
// from external polling and from WebSocket subscriptions.
const DemoRunPrefix = "demo_"

func IsDemoRunID(runID string) bool {
	return strings.HasPrefix(runID, DemoRunPrefix)
}

type Vote struct {
	UserID string `json:"userId"`
	Value  int    `json:"value"`
}

type Evidence struct {
	Tool    string `json:"tool"`
	Summary string `json:"summary"`
	URL     string `json:"url,omitempty"`
}

// Run is the relay's read-only view of one verification job. The
// verification service owns the authoritative state; the relay only caches
// the last copy it broadcast.
type Run struct {
	RunID             string     `json:"runId"`
	Status            string     `json:"status"`
	Confidence        float64    `json:"confidence"`
	ProvisionalAnswer string     `json:"provisionalAnswer"`
	Votes             []Vote     `json:"votes"`
	Evidence          []Evidence `json:"evidence"`
}

// Changed reports whether next differs structurally from r: status,
// confidence, provisional answer, or the content of the vote or evidence
// lists. Lists compare by ordered value equality; the verifier returns
// append-only lists, so a reorder of identical content re-broadcasting is
// accepted rather than canonicalized away.
func (r Run) Changed(next Run) bool {
	if r.Status != next.Status ||
		r.Confidence != next.Confidence ||
		r.ProvisionalAnswer != next.ProvisionalAnswer {
		return true
	}
	if len(r.Votes) != len(next.Votes) {
		return true
	}
	for i := range r.Votes {
		if r.Votes[i] != next.Votes[i] {
			return true
		}
	}
	if len(r.Evidence) != len(next.Evidence) {
		return true
	}
	for i := range r.Evidence {
		if r.Evidence[i] != next.Evidence[i] {
			return true
		}
	}
	return false
}

// Clone returns a copy with freshly allocated vote and evidence slices, so
// a cached snapshot and a broadcast payload never share backing arrays.
func (r Run) Clone() Run {
	out := r
	if r.Votes != nil {
		out.Votes = append([]Vote(nil), r.Votes...)
	}
	if r.Evidence != nil {
		out.Evidence = append([]Evidence(nil), r.Evidence...)
	}
	return out
}
