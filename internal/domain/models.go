package domain

type (
	ParticipantID string
	CategoryID    string
	RoundID       string
)

// RoundStatus is the closed set of states a round moves through.
type RoundStatus string

const (
	RoundVoting     RoundStatus = "voting"
	RoundTieBreaker RoundStatus = "tie_breaker"
	RoundRevealing  RoundStatus = "revealing"
	RoundCompleted  RoundStatus = "completed"
)

// AcceptsVotes reports whether ballots may still be cast in this status.
func (s RoundStatus) AcceptsVotes() bool {
	return s == RoundVoting || s == RoundTieBreaker
}

// ServiceStatus tracks the overall event lifecycle.
type ServiceStatus string

const (
	ServiceNotStarted ServiceStatus = "not_started"
	ServiceStarted    ServiceStatus = "started"
	ServiceFinished   ServiceStatus = "finished"
)

// DrawWinner is the sentinel winner id stored when a reveal ends in a tie.
const DrawWinner = "draw"

// Photo is an embedded image blob decoded from a base64 data URI at
// registration time. The binary payload travels inside the document.
type Photo struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Participant is immutable after registration. Identity is the caller's
// network address and must be unique across the whole document.
type Participant struct {
	ID       ParticipantID `json:"id"`
	Name     string        `json:"name"`
	Identity string        `json:"identity"`
	Photo    *Photo        `json:"photo,omitempty"`
	IsAdmin  bool          `json:"is_admin"`
}

// Category names one award. Insertion order defines the progression sequence.
type Category struct {
	ID          CategoryID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

// Vote is one ballot. A voter holds at most one entry per active vote set;
// re-voting replaces the candidate rather than appending.
type Vote struct {
	VoterID     ParticipantID `json:"voter_id"`
	CandidateID ParticipantID `json:"candidate_id"`
}

// Result freezes the outcome of a reveal: the winner (or DrawWinner) plus the
// full per-candidate count map that produced it.
type Result struct {
	WinnerID string                  `json:"winner_id"`
	Stats    map[ParticipantID]int64 `json:"stats"`
}

// Round resolves one category. TieBreakParticipants is populated only when a
// reveal detects a draw, and bounds the candidates of the tie-break ballot.
type Round struct {
	ID                   RoundID         `json:"id"`
	CategoryID           CategoryID      `json:"category_id"`
	Status               RoundStatus     `json:"status"`
	Votes                []Vote          `json:"votes"`
	HasDraw              bool            `json:"has_draw"`
	TieBreakParticipants []ParticipantID `json:"tie_break_participants"`
	TieBreakVotes        []Vote          `json:"tie_break_votes"`
	Result               *Result         `json:"result"`
}

// ActiveVotes returns the vote set ballots are currently counted against.
func (r *Round) ActiveVotes() []Vote {
	if r.Status == RoundTieBreaker {
		return r.TieBreakVotes
	}
	return r.Votes
}

// InTieBreakSet reports whether id is an eligible tie-break candidate.
func (r *Round) InTieBreakSet(id ParticipantID) bool {
	for _, p := range r.TieBreakParticipants {
		if p == id {
			return true
		}
	}
	return false
}

// ServiceState is the global event pointer: lifecycle status plus the single
// active round, if any.
type ServiceState struct {
	Status        ServiceStatus `json:"status"`
	ActiveRoundID RoundID       `json:"active_round_id,omitempty"`
}

// Document is the whole persisted state. Every operation loads it, mutates it
// in memory and writes it back as a unit; there are no partial updates.
type Document struct {
	Participants []Participant `json:"participants"`
	Categories   []Category    `json:"categories"`
	Rounds       []Round       `json:"rounds"`
	Service      ServiceState  `json:"service"`
}

// NewDocument returns an empty document in the not-started state.
func NewDocument() Document {
	return Document{Service: ServiceState{Status: ServiceNotStarted}}
}

// FindParticipant looks a participant up by id.
func (d *Document) FindParticipant(id ParticipantID) (Participant, bool) {
	for _, p := range d.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// FindParticipantByIdentity looks a participant up by network identity.
func (d *Document) FindParticipantByIdentity(identity string) (Participant, bool) {
	for _, p := range d.Participants {
		if p.Identity == identity {
			return p, true
		}
	}
	return Participant{}, false
}

// IsAdmin reports whether id belongs to a registered admin.
func (d *Document) IsAdmin(id ParticipantID) bool {
	p, ok := d.FindParticipant(id)
	return ok && p.IsAdmin
}

// FindRound returns a pointer into the rounds slice so callers can mutate the
// round in place before saving the document.
func (d *Document) FindRound(id RoundID) *Round {
	for i := range d.Rounds {
		if d.Rounds[i].ID == id {
			return &d.Rounds[i]
		}
	}
	return nil
}

// FindRoundByCategory returns the round resolving the given category, if one
// was ever created. At most one round per category exists at a time.
func (d *Document) FindRoundByCategory(id CategoryID) *Round {
	for i := range d.Rounds {
		if d.Rounds[i].CategoryID == id {
			return &d.Rounds[i]
		}
	}
	return nil
}

// ActiveRound returns the round pointed to by the service state, or nil.
func (d *Document) ActiveRound() *Round {
	if d.Service.ActiveRoundID == "" {
		return nil
	}
	return d.FindRound(d.Service.ActiveRoundID)
}

// CategoryIndex returns the position of a category in the progression
// sequence, or -1. Kept as a scan so the ordered list stays authoritative.
func (d *Document) CategoryIndex(id CategoryID) int {
	for i, c := range d.Categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}
