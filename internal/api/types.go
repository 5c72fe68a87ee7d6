package api

import (
	"encoding/json"
	"time"

	"github.com/tjfontaine/interview-gateway/internal/domain"
)

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse acknowledges a recorded event.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error *domain.Error `json:"error"`
}

// SubmitRequest is the body of POST /api/interview/submit.
type SubmitRequest struct {
	Code        string `json:"code"`
	Language    string `json:"language"`
	CandidateID string `json:"candidate_id,omitempty"`
}

// AnticheatEventRequest is the body of POST /api/anticheat/event.
type AnticheatEventRequest struct {
	EventType   string          `json:"event_type"`
	Details     json.RawMessage `json:"details,omitempty"`
	CandidateID string          `json:"candidate_id,omitempty"`
}

// CheatEventRequest is the body the interview frontend posts to
// /api/interview/{token}/cheat-event.
type CheatEventRequest struct {
	Type    string          `json:"type"`
	Time    string          `json:"time,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// GenerateTasksRequest is the body of POST /api/generate-tasks.
type GenerateTasksRequest struct {
	Vacancy    string `json:"vacancy"`
	Token      string `json:"token,omitempty"`
	Position   string `json:"position,omitempty"`
	Complexity string `json:"complexity,omitempty"`
}

// SessionView is a session as served over HTTP.
type SessionView struct {
	CandidateID      string                  `json:"candidate_id"`
	TaskIDs          []string                `json:"task_ids"`
	CurrentTaskIndex int                     `json:"current_task_index"`
	CurrentTaskID    string                  `json:"current_task_id,omitempty"`
	Completed        bool                    `json:"completed"`
	Submissions      []domain.Submission     `json:"submissions"`
	Events           []domain.AnticheatEvent `json:"events"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func newSessionView(s *domain.InterviewSession) SessionView {
	events := s.Events
	if events == nil {
		events = []domain.AnticheatEvent{}
	}
	return SessionView{
		CandidateID:      s.CandidateID,
		TaskIDs:          s.TaskIDs,
		CurrentTaskIndex: s.CurrentTaskIndex,
		CurrentTaskID:    s.CurrentTaskID(),
		Completed:        s.Completed(),
		Submissions:      s.Submissions,
		Events:           events,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// EventsResponse lists recorded anti-cheat events.
type EventsResponse struct {
	Events []domain.AnticheatEvent `json:"events"`
}
