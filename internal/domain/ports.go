package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// DocumentStore persists the state document as an atomic unit. Save replaces
// the whole document; there are no partial writes. A failed Save means the
// mutation is lost and must be reported as failed even though in-memory state
// already changed.
type DocumentStore interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
	// Snapshot copies doc to a side artifact named distinctly from the live
	// document and returns that name. Used before destructive resets.
	Snapshot(ctx context.Context, doc Document) (string, error)
}

// VoteEvent is the feed payload mirroring one accepted ballot. When a re-vote
// replaced an earlier ballot, Replaced carries the candidate that lost the
// vote so live counters can be moved instead of double counted.
type VoteEvent struct {
	RoundID     RoundID       `json:"round_id"`
	CandidateID ParticipantID `json:"candidate_id"`
	Replaced    ParticipantID `json:"replaced,omitempty"`
	TieBreak    bool          `json:"tie_break"`
	CastAt      time.Time     `json:"cast_at"`
}

// Feed carries accepted votes to the live-tally worker.
type Feed interface {
	PublishVote(ctx context.Context, event VoteEvent) error
	ConsumeVotes(ctx context.Context, handler func(context.Context, VoteEvent) error) error
}

// Counter backs the advisory live totals shown on venue displays.
type Counter interface {
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	GetAll(ctx context.Context, keys []string) (map[string]int64, error)
}

// Guard throttles boundary operations per network identity.
type Guard interface {
	Allow(ctx context.Context, operation, identity string) error
}

type Clock interface {
	Now() time.Time
}
