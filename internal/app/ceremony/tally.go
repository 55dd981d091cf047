package ceremony

import (
	"fmt"
	"sort"

	"github.com/marcelojr/awards-night/internal/domain"
)

// Count is the outcome of tallying one vote set.
type Count struct {
	Stats   map[domain.ParticipantID]int64
	Max     int64
	Winners []domain.ParticipantID
}

// Tied reports whether more than one candidate holds the maximum count.
func (c Count) Tied() bool {
	return len(c.Winners) > 1
}

// Tally counts occurrences per candidate. Max is 0 for an empty vote set and
// Winners holds every candidate at the maximum, sorted for determinism. Ties
// are never resolved here; that is what a tie-break round is for.
func Tally(votes []domain.Vote) Count {
	stats := make(map[domain.ParticipantID]int64, len(votes))
	for _, v := range votes {
		stats[v.CandidateID]++
	}

	var max int64
	for _, total := range stats {
		if total > max {
			max = total
		}
	}

	var winners []domain.ParticipantID
	for id, total := range stats {
		if total == max {
			winners = append(winners, id)
		}
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i] < winners[j] })

	return Count{Stats: stats, Max: max, Winners: winners}
}

func CounterKeyRoundTotal(roundID domain.RoundID) string {
	return fmt.Sprintf("round:%s:total", roundID)
}

func CounterKeyCandidate(roundID domain.RoundID, candidateID domain.ParticipantID) string {
	return fmt.Sprintf("round:%s:candidate:%s", roundID, candidateID)
}
