// Package ceremony implements the award-night rules: registration, category
// setup and the round lifecycle from voting to reveal, tie-break and
// navigation across categories.
package ceremony

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/marcelojr/awards-night/internal/domain"
	"github.com/marcelojr/awards-night/internal/platform/ids"
	"github.com/marcelojr/awards-night/internal/platform/logger"
)

var (
	ErrNameRequired          = errors.New("name is required")
	ErrDuplicateIdentity     = errors.New("identity already registered")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrExistingRounds        = errors.New("rounds already exist")
	ErrInvalidResetAction    = errors.New("invalid reset action")
	ErrNoCategories          = errors.New("no categories to start voting")
	ErrRoundNotFound         = errors.New("round not found")
	ErrVotingClosed          = errors.New("voting is closed for this round")
	ErrSelfVote              = errors.New("cannot vote for yourself")
	ErrAdminCannotVote       = errors.New("admins cannot vote")
	ErrCannotVoteForAdmin    = errors.New("cannot vote for an admin")
	ErrInvalidTieBreakTarget = errors.New("candidate is not in the tie break set")
	ErrNoActiveRound         = errors.New("no active round")
	ErrNoDrawDetected        = errors.New("no draw detected")
	ErrNoPreviousCategory    = errors.New("no previous category")
	ErrPreviousRoundNotFound = errors.New("previous round not found")
	ErrParticipantNotFound   = errors.New("participant not found")
	ErrStoreUnavailable      = errors.New("state document unavailable")
)

// ResetAction tells Start what to do with rounds left over from a prior event.
type ResetAction string

const (
	ResetNone      ResetAction = ""
	ResetBackup    ResetAction = "backup"
	ResetOverwrite ResetAction = "overwrite"
)

// Service owns the shared state document. Every mutating operation runs the
// full load-mutate-save sequence under one mutex, so concurrent admin calls
// can never clobber each other's saves. Read-only queries skip the mutex and
// observe whatever document the store returns.
type Service struct {
	mu      sync.Mutex
	store   domain.DocumentStore
	feed    domain.Feed
	counter domain.Counter
	guard   domain.Guard
	clock   domain.Clock
	ids     *ids.Generator
}

func NewService(
	store domain.DocumentStore,
	feed domain.Feed,
	counter domain.Counter,
	guard domain.Guard,
	clock domain.Clock,
	idsGen *ids.Generator,
) *Service {
	if idsGen == nil {
		idsGen = ids.DefaultGenerator()
	}
	return &Service{
		store:   store,
		feed:    feed,
		counter: counter,
		guard:   guard,
		clock:   clock,
		ids:     idsGen,
	}
}

// StatusOverview is the per-caller view of the event.
type StatusOverview struct {
	Service      domain.ServiceState  `json:"service"`
	ActiveRound  *domain.Round        `json:"active_round,omitempty"`
	Participants []domain.Participant `json:"participants"`
	You          *domain.Participant  `json:"you,omitempty"`
}

// ResultsOverview exposes the full document for the results board.
type ResultsOverview struct {
	Categories   []domain.Category    `json:"categories"`
	Rounds       []domain.Round       `json:"rounds"`
	Participants []domain.Participant `json:"participants"`
}

// Register creates a participant keyed by its network identity. A photo data
// URI that fails to decode degrades silently: the participant is created
// without a photo rather than failing the registration.
func (s *Service) Register(ctx context.Context, name, identity, photoDataURI string) (domain.Participant, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Participant{}, ErrNameRequired
	}
	if err := s.allow(ctx, "register", identity); err != nil {
		return domain.Participant{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return domain.Participant{}, err
	}

	if _, ok := doc.FindParticipantByIdentity(identity); ok {
		return domain.Participant{}, ErrDuplicateIdentity
	}

	participant := domain.Participant{
		ID:       domain.ParticipantID(s.ids.New()),
		Name:     strings.TrimSpace(name),
		Identity: identity,
		IsAdmin:  false,
	}

	if photoDataURI != "" {
		photo, decodeErr := decodePhotoDataURI(photoDataURI)
		if decodeErr != nil {
			logger.L().Warn("photo discarded during registration", "err", decodeErr, "identity", identity)
		} else {
			participant.Photo = photo
		}
	}

	doc.Participants = append(doc.Participants, participant)
	if err := s.save(ctx, doc); err != nil {
		return domain.Participant{}, err
	}
	return participant, nil
}

// Bootstrap seeds the admin participant once at startup. It is a no-op when
// the identity is already registered; the API itself never grants admin.
func (s *Service) Bootstrap(ctx context.Context, name, identity string) (domain.Participant, error) {
	if strings.TrimSpace(name) == "" || identity == "" {
		return domain.Participant{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return domain.Participant{}, err
	}

	if existing, ok := doc.FindParticipantByIdentity(identity); ok {
		return existing, nil
	}

	admin := domain.Participant{
		ID:       domain.ParticipantID(s.ids.New()),
		Name:     strings.TrimSpace(name),
		Identity: identity,
		IsAdmin:  true,
	}
	doc.Participants = append(doc.Participants, admin)
	if err := s.save(ctx, doc); err != nil {
		return domain.Participant{}, err
	}
	return admin, nil
}

// AddCategory appends one award to the progression sequence. Categories are
// never edited or reordered once voting starts; Start refuses to run without
// at least one of them.
func (s *Service) AddCategory(ctx context.Context, actorID domain.ParticipantID, name, description string) (domain.Category, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Category{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	if !doc.IsAdmin(actorID) {
		return domain.Category{}, ErrUnauthorized
	}

	category := domain.Category{
		ID:          domain.CategoryID(s.ids.New()),
		Name:        strings.TrimSpace(name),
		Description: description,
	}
	doc.Categories = append(doc.Categories, category)
	if err := s.save(ctx, doc); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// Start opens the event on the first category. When rounds from a previous
// event exist the caller must pick a reset action: backup snapshots the
// document before clearing, overwrite clears in place. Without an action the
// distinct ErrExistingRounds lets the boundary offer that choice.
func (s *Service) Start(ctx context.Context, actorID domain.ParticipantID, action ResetAction) (domain.ServiceState, error) {
	if action != ResetNone && action != ResetBackup && action != ResetOverwrite {
		return domain.ServiceState{}, ErrInvalidResetAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return domain.ServiceState{}, err
	}
	if !doc.IsAdmin(actorID) {
		return domain.ServiceState{}, ErrUnauthorized
	}

	if len(doc.Rounds) > 0 {
		if action == ResetNone {
			return domain.ServiceState{}, ErrExistingRounds
		}

		if action == ResetBackup {
			name, snapErr := s.store.Snapshot(ctx, doc)
			if snapErr != nil {
				return domain.ServiceState{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, snapErr)
			}
			logger.L().Info("document snapshot taken before reset", "snapshot", name)
		}

		doc.Rounds = nil
		doc.Service = domain.ServiceState{Status: domain.ServiceNotStarted}
	}

	if len(doc.Categories) == 0 {
		return domain.ServiceState{}, ErrNoCategories
	}

	round := s.newRound(doc.Categories[0].ID)
	doc.Rounds = append(doc.Rounds, round)
	doc.Service = domain.ServiceState{
		Status:        domain.ServiceStarted,
		ActiveRoundID: round.ID,
	}

	if err := s.save(ctx, doc); err != nil {
		return domain.ServiceState{}, err
	}
	return doc.Service, nil
}

// CastVote records one ballot. Re-voting replaces the voter's previous
// candidate in the currently active vote set, so a voter always holds exactly
// one counted ballot per round state.
func (s *Service) CastVote(ctx context.Context, voterID domain.ParticipantID, roundID domain.RoundID, candidateID domain.ParticipantID) error {
	if voterID == candidateID {
		return ErrSelfVote
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}

	round := doc.FindRound(roundID)
	if round == nil {
		return ErrRoundNotFound
	}
	if !round.Status.AcceptsVotes() {
		return ErrVotingClosed
	}

	voter, ok := doc.FindParticipant(voterID)
	if !ok {
		return ErrParticipantNotFound
	}
	candidate, ok := doc.FindParticipant(candidateID)
	if !ok {
		return ErrParticipantNotFound
	}
	if voter.IsAdmin {
		return ErrAdminCannotVote
	}
	if candidate.IsAdmin {
		return ErrCannotVoteForAdmin
	}

	if err := s.allow(ctx, "vote", voter.Identity); err != nil {
		return err
	}

	ballot := domain.Vote{VoterID: voterID, CandidateID: candidateID}
	tieBreak := round.Status == domain.RoundTieBreaker

	var previous domain.ParticipantID
	var existed bool
	if tieBreak {
		if !round.InTieBreakSet(candidateID) {
			return ErrInvalidTieBreakTarget
		}
		round.TieBreakVotes, previous, existed = upsertVote(round.TieBreakVotes, ballot)
	} else {
		round.Votes, previous, existed = upsertVote(round.Votes, ballot)
	}

	if err := s.save(ctx, doc); err != nil {
		return err
	}

	if !existed || previous != candidateID {
		// Re-confirming the same candidate changes nothing, so the feed only
		// sees new ballots and actual candidate switches.
		var replaced domain.ParticipantID
		if existed {
			replaced = previous
		}
		s.publishVote(ctx, domain.VoteEvent{
			RoundID:     roundID,
			CandidateID: candidateID,
			Replaced:    replaced,
			TieBreak:    tieBreak,
			CastAt:      s.clock.Now(),
		})
	}
	return nil
}

// Reveal closes the ballot of the active round and stages its outcome. A
// unique maximum produces a winner; a shared maximum flags a draw and records
// the tied candidates as the eligible pool for a tie-break. Either way the
// round parks in revealing until the next forward navigation.
func (s *Service) Reveal(ctx context.Context, actorID domain.ParticipantID) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return domain.Round{}, err
	}
	if !doc.IsAdmin(actorID) {
		return domain.Round{}, ErrUnauthorized
	}

	round := doc.ActiveRound()
	if round == nil {
		return domain.Round{}, ErrNoActiveRound
	}

	count := Tally(round.ActiveVotes())
	switch {
	case count.Tied():
		// A tie-break that ties again lands here too: the pool narrows to the
		// new max-scoring subset and the admin may open another tie-break.
		round.HasDraw = true
		round.TieBreakParticipants = count.Winners
		round.Result = &domain.Result{WinnerID: domain.DrawWinner, Stats: count.Stats}
	case len(count.Winners) == 1:
		round.HasDraw = false
		round.Result = &domain.Result{WinnerID: string(count.Winners[0]), Stats: count.Stats}
	default:
		// Empty ballot: no winner, no draw. The result still carries the
		// (empty) stats so the outcome is inspectable.
		round.HasDraw = false
		round.Result = &domain.Result{Stats: count.Stats}
	}
	round.Status = domain.RoundRevealing

	if err := s.save(ctx, doc); err != nil {
		return domain.Round{}, err
	}
	return *round, nil
}

// StartTieBreaker opens a fresh ballot restricted to the candidates tied in
// the previous reveal.
func (s *Service) StartTieBreaker(ctx context.Context, actorID domain.ParticipantID) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return domain.Round{}, err
	}
	if !doc.IsAdmin(actorID) {
		return domain.Round{}, ErrUnauthorized
	}

	round := doc.ActiveRound()
	if round == nil {
		return domain.Round{}, ErrNoActiveRound
	}
	if !round.HasDraw {
		return domain.Round{}, ErrNoDrawDetected
	}

	round.Status = domain.RoundTieBreaker
	round.TieBreakVotes = nil

	if err := s.save(ctx, doc); err != nil {
		return domain.Round{}, err
	}
	return *round, nil
}

// Advance completes the active round and moves the event to the next
// category, reusing a round created by earlier backward navigation when one
// exists. Past the last category the event is finished and no round is active.
func (s *Service) Advance(ctx context.Context, actorID domain.ParticipantID) (domain.ServiceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return domain.ServiceState{}, err
	}
	if !doc.IsAdmin(actorID) {
		return domain.ServiceState{}, ErrUnauthorized
	}

	current := doc.ActiveRound()
	if current == nil {
		return domain.ServiceState{}, ErrNoActiveRound
	}
	current.Status = domain.RoundCompleted

	index := doc.CategoryIndex(current.CategoryID)
	if index == -1 || index == len(doc.Categories)-1 {
		doc.Service = domain.ServiceState{Status: domain.ServiceFinished}
	} else {
		next := doc.Categories[index+1]
		if existing := doc.FindRoundByCategory(next.ID); existing != nil {
			// Reached again after a retreat; its stored status stands.
			doc.Service.ActiveRoundID = existing.ID
		} else {
			round := s.newRound(next.ID)
			doc.Rounds = append(doc.Rounds, round)
			doc.Service.ActiveRoundID = round.ID
		}
		doc.Service.Status = domain.ServiceStarted
	}

	if err := s.save(ctx, doc); err != nil {
		return domain.ServiceState{}, err
	}
	return doc.Service, nil
}

// Retreat steps back one category. The previous round is forced to completed
// so its result is visible, and retreating out of the finished state puts the
// event back in started.
func (s *Service) Retreat(ctx context.Context, actorID domain.ParticipantID) (domain.ServiceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return domain.ServiceState{}, err
	}
	if !doc.IsAdmin(actorID) {
		return domain.ServiceState{}, ErrUnauthorized
	}

	index := -1
	if current := doc.ActiveRound(); current != nil {
		index = doc.CategoryIndex(current.CategoryID)
	} else if doc.Service.Status == domain.ServiceFinished {
		// Finished means one position past the last category, so retreating
		// lands on the last category's round.
		index = len(doc.Categories)
	}

	if index <= 0 {
		return domain.ServiceState{}, ErrNoPreviousCategory
	}

	previous := doc.FindRoundByCategory(doc.Categories[index-1].ID)
	if previous == nil {
		return domain.ServiceState{}, ErrPreviousRoundNotFound
	}

	previous.Status = domain.RoundCompleted
	doc.Service = domain.ServiceState{
		Status:        domain.ServiceStarted,
		ActiveRoundID: previous.ID,
	}

	if err := s.save(ctx, doc); err != nil {
		return domain.ServiceState{}, err
	}
	return doc.Service, nil
}

// Status reports the event from the caller's point of view. Read-only, so it
// runs without the mutation lock; the loaded document is a consistent
// snapshot either way.
func (s *Service) Status(ctx context.Context, identity string) (StatusOverview, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return StatusOverview{}, err
	}

	overview := StatusOverview{
		Service:      doc.Service,
		Participants: doc.Participants,
	}
	if round := doc.ActiveRound(); round != nil {
		copied := *round
		overview.ActiveRound = &copied
	}
	if you, ok := doc.FindParticipantByIdentity(identity); ok {
		overview.You = &you
	}
	return overview, nil
}

// Results returns everything the results board needs.
func (s *Service) Results(ctx context.Context) (ResultsOverview, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return ResultsOverview{}, err
	}
	return ResultsOverview{
		Categories:   doc.Categories,
		Rounds:       doc.Rounds,
		Participants: doc.Participants,
	}, nil
}

// LiveTotals reads the advisory per-candidate counters maintained by the
// worker. The document tally at reveal time remains the source of truth.
func (s *Service) LiveTotals(ctx context.Context, roundID domain.RoundID) (map[domain.ParticipantID]int64, error) {
	if s.counter == nil {
		return map[domain.ParticipantID]int64{}, nil
	}

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if doc.FindRound(roundID) == nil {
		return nil, ErrRoundNotFound
	}

	var candidates []domain.ParticipantID
	keys := make([]string, 0, len(doc.Participants))
	for _, p := range doc.Participants {
		if p.IsAdmin {
			continue
		}
		candidates = append(candidates, p.ID)
		keys = append(keys, CounterKeyCandidate(roundID, p.ID))
	}

	values, err := s.counter.GetAll(ctx, keys)
	if err != nil {
		return nil, err
	}

	totals := make(map[domain.ParticipantID]int64, len(candidates))
	for i, id := range candidates {
		totals[id] = values[keys[i]]
	}
	return totals, nil
}

func (s *Service) newRound(categoryID domain.CategoryID) domain.Round {
	return domain.Round{
		ID:         domain.RoundID(s.ids.New()),
		CategoryID: categoryID,
		Status:     domain.RoundVoting,
	}
}

func (s *Service) allow(ctx context.Context, operation, identity string) error {
	if s.guard == nil {
		return nil
	}
	return s.guard.Allow(ctx, operation, identity)
}

// publishVote mirrors an accepted ballot onto the feed. Best effort: the vote
// is already committed to the document, so feed failures only cost live
// totals and must never fail the call.
func (s *Service) publishVote(ctx context.Context, event domain.VoteEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.PublishVote(ctx, event); err != nil {
		logger.L().Warn("vote event not published to feed", "err", err, "round", event.RoundID)
	}
}

func (s *Service) load(ctx context.Context) (domain.Document, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return doc, nil
}

func (s *Service) save(ctx context.Context, doc domain.Document) error {
	if err := s.store.Save(ctx, doc); err != nil {
		// The in-memory mutation is lost; the caller must see the failure.
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// upsertVote records vote, replacing the voter's previous ballot when one
// exists. The previous candidate is returned so the caller can report the
// change to the live-tally feed.
func upsertVote(votes []domain.Vote, vote domain.Vote) (updated []domain.Vote, previous domain.ParticipantID, existed bool) {
	for i := range votes {
		if votes[i].VoterID == vote.VoterID {
			previous = votes[i].CandidateID
			votes[i].CandidateID = vote.CandidateID
			return votes, previous, true
		}
	}
	return append(votes, vote), "", false
}
