// Package worker applies vote events from the Redis feed to the live-tally
// counters consumed by venue displays.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelojr/awards-night/internal/app/ceremony"
	"github.com/marcelojr/awards-night/internal/domain"
	"github.com/marcelojr/awards-night/internal/platform/metrics"
)

// TallyProcessor keeps per-round and per-candidate counters in step with the
// feed. Counters are advisory; the document tally at reveal time is the
// source of truth.
type TallyProcessor struct {
	counter domain.Counter
}

func NewTallyProcessor(counter domain.Counter) *TallyProcessor {
	return &TallyProcessor{counter: counter}
}

func (p *TallyProcessor) Process(ctx context.Context, event domain.VoteEvent) error {
	start := time.Now()

	// Tie-break ballots replace the plain ballot on the same round, so mixing
	// them into the same counters would double count. Only the open, plain
	// vote set feeds the live board.
	if event.TieBreak {
		metrics.ObserveFeedProcessing(time.Since(start).Seconds())
		return nil
	}

	if event.Replaced != "" {
		// A re-vote moved an existing ballot: the round total is unchanged,
		// the replaced candidate gives one back.
		if _, err := p.counter.Increment(ctx, ceremony.CounterKeyCandidate(event.RoundID, event.Replaced), -1); err != nil {
			return fmt.Errorf("worker: decrement replaced candidate %s/%s: %w", event.RoundID, event.Replaced, err)
		}
	} else {
		if _, err := p.counter.Increment(ctx, ceremony.CounterKeyRoundTotal(event.RoundID), 1); err != nil {
			return fmt.Errorf("worker: increment round total %s: %w", event.RoundID, err)
		}
	}

	if _, err := p.counter.Increment(ctx, ceremony.CounterKeyCandidate(event.RoundID, event.CandidateID), 1); err != nil {
		return fmt.Errorf("worker: increment candidate %s/%s: %w", event.RoundID, event.CandidateID, err)
	}

	metrics.ObserveFeedProcessing(time.Since(start).Seconds())

	return nil
}
