// Package session keeps interview sessions in memory, keyed by candidate.
package session

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tjfontaine/interview-gateway/internal/domain"
)

// DefaultMaxSessions bounds the store when no limit is configured.
const DefaultMaxSessions = 10000

// entry pairs a session with the mutex that serialises its mutations.
type entry struct {
	mu      sync.Mutex
	session *domain.InterviewSession
}

// Store is an in-memory session store safe for concurrent use. Writes to one
// session never block writes to another. Once more than the configured number
// of sessions exist the least recently used one is dropped.
type Store struct {
	sessions *lru.Cache[string, *entry]
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report evictions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store holding at most maxSessions sessions.
// A non-positive limit selects DefaultMaxSessions.
func NewStore(maxSessions int, opts ...Option) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	s := &Store{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := lru.NewWithEvict(maxSessions, func(candidateID string, e *entry) {
		s.logger.Warn("session evicted",
			slog.String("candidate_id", candidateID),
			slog.Int("max_sessions", maxSessions))
	})
	if err != nil {
		// Only reachable with a non-positive size, which is excluded above.
		panic(err)
	}
	s.sessions = cache
	return s
}

// lookup returns the entry for candidateID, creating an empty session when
// create is set. PeekOrAdd makes creation atomic: racing callers all receive
// the same entry.
func (s *Store) lookup(candidateID string, create bool) (*entry, bool) {
	if e, ok := s.sessions.Get(candidateID); ok {
		return e, true
	}
	if !create {
		return nil, false
	}

	now := s.now()
	fresh := &entry{session: &domain.InterviewSession{
		CandidateID: candidateID,
		TaskIDs:     []string{},
		Submissions: []domain.Submission{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
	if prev, ok, _ := s.sessions.PeekOrAdd(candidateID, fresh); ok {
		return prev, true
	}
	return fresh, true
}

// GetOrCreate returns a snapshot of the candidate's session, creating an
// empty one if none exists.
func (s *Store) GetOrCreate(candidateID string) *domain.InterviewSession {
	e, _ := s.lookup(candidateID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

// Get returns a snapshot of the candidate's session.
func (s *Store) Get(candidateID string) (*domain.InterviewSession, bool) {
	e, ok := s.lookup(candidateID, false)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), true
}

// AppendSubmission records sub for the candidate, creating the session if
// needed, and returns how many submissions the session now holds.
// Submissions keep arrival order.
func (s *Store) AppendSubmission(candidateID string, sub domain.Submission) int {
	e, _ := s.lookup(candidateID, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Submissions = append(e.session.Submissions, sub)
	e.session.UpdatedAt = s.now()
	return len(e.session.Submissions)
}

// AssignTasks sets the ordered task list for the candidate and moves the
// cursor back to the first task. Submissions are kept.
func (s *Store) AssignTasks(candidateID string, taskIDs []string) *domain.InterviewSession {
	e, _ := s.lookup(candidateID, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.TaskIDs = append([]string{}, taskIDs...)
	e.session.CurrentTaskIndex = 0
	e.session.UpdatedAt = s.now()
	return e.session.Clone()
}

// Advance moves the cursor to the next task. It fails once every task has
// been passed.
func (s *Store) Advance(candidateID string) (*domain.InterviewSession, error) {
	e, ok := s.lookup(candidateID, false)
	if !ok {
		return nil, domain.ErrNotFound("session not found: " + candidateID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Completed() {
		return nil, domain.ErrValidation("interview already completed")
	}
	e.session.CurrentTaskIndex++
	e.session.UpdatedAt = s.now()
	return e.session.Clone(), nil
}

// AppendEvent attaches an anti-cheat event to the candidate's session,
// creating the session if needed.
func (s *Store) AppendEvent(candidateID string, ev domain.AnticheatEvent) {
	e, _ := s.lookup(candidateID, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Events = append(e.session.Events, ev)
	e.session.UpdatedAt = s.now()
}

// Len returns the number of sessions currently held.
func (s *Store) Len() int {
	return s.sessions.Len()
}
