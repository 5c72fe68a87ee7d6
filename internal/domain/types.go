package domain

import (
	"encoding/json"
	"time"
)

// Submission is one immutable code attempt. Once appended to a session it is
// never mutated or removed.
type Submission struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Language    string    `json:"language"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// InterviewSession is one candidate's attempt.
// CurrentTaskIndex always satisfies 0 <= CurrentTaskIndex <= len(TaskIDs).
type InterviewSession struct {
	CandidateID      string           `json:"candidate_id"`
	TaskIDs          []string         `json:"task_ids"`
	CurrentTaskIndex int              `json:"current_task_index"`
	Submissions      []Submission     `json:"submissions"`
	Events           []AnticheatEvent `json:"events,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Completed reports whether the cursor has moved past the last task.
func (s *InterviewSession) Completed() bool {
	return s.CurrentTaskIndex >= len(s.TaskIDs)
}

// CurrentTaskID returns the task under the cursor, or "" once completed.
func (s *InterviewSession) CurrentTaskID() string {
	if s.Completed() {
		return ""
	}
	return s.TaskIDs[s.CurrentTaskIndex]
}

// Clone returns a deep copy safe to hand out past the store's locks.
func (s *InterviewSession) Clone() *InterviewSession {
	out := *s
	out.TaskIDs = append([]string(nil), s.TaskIDs...)
	out.Submissions = append([]Submission(nil), s.Submissions...)
	if s.Events != nil {
		out.Events = make([]AnticheatEvent, len(s.Events))
		for i, ev := range s.Events {
			ev.Details = append(json.RawMessage(nil), ev.Details...)
			out.Events[i] = ev
		}
	}
	return &out
}

// AnticheatEvent is a telemetry signal reported by the candidate's client,
// e.g. "paste_attempt" or "window_blur".
type AnticheatEvent struct {
	CandidateID string          `json:"candidate_id,omitempty"`
	EventType   string          `json:"event_type"`
	Details     json.RawMessage `json:"details,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// Interview is a generated set of tasks registered under an access token.
// Tasks is the generator's document, passed through unmodified.
type Interview struct {
	Token      string          `json:"token"`
	Position   string          `json:"position,omitempty"`
	Complexity string          `json:"complexity,omitempty"`
	Tasks      json.RawMessage `json:"tasks"`
	TaskIDs    []string        `json:"task_ids"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Verdict is the outcome of a single test group.
type Verdict string

const (
	VerdictPassed Verdict = "passed"
	VerdictFailed Verdict = "failed"
)

// TestResults is the verdict block attached to every submission result.
type TestResults struct {
	VisibleTests map[string]Verdict `json:"visible_tests"`
	HiddenTests  Verdict            `json:"hidden_tests"`
}

// SubmissionResult is what the pipeline returns for an accepted submission.
type SubmissionResult struct {
	Status          string      `json:"status"`
	Message         string      `json:"message"`
	Analysis        string      `json:"analysis"`
	TestResults     TestResults `json:"test_results"`
	SubmissionID    string      `json:"submission_id"`
	CandidateID     string      `json:"candidate_id"`
	SubmissionCount int         `json:"submission_count"`
}
