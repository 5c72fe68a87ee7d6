// Package api exposes the interview components over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tjfontaine/interview-gateway/internal/anticheat"
	"github.com/tjfontaine/interview-gateway/internal/domain"
	"github.com/tjfontaine/interview-gateway/internal/interview"
	"github.com/tjfontaine/interview-gateway/internal/server"
	"github.com/tjfontaine/interview-gateway/internal/session"
	"github.com/tjfontaine/interview-gateway/internal/taskgen"
)

const (
	// CandidateHeader names the candidate when the submit body does not.
	CandidateHeader = "X-Candidate-ID"
	// InterviewTokenHeader carries the token of a newly generated interview.
	InterviewTokenHeader = "X-Interview-Token"

	maxBodyBytes = 1 << 20
)

// EventLister reads back journaled anti-cheat events.
type EventLister interface {
	ListEvents(ctx context.Context, candidateID string, limit int) ([]domain.AnticheatEvent, error)
}

// Deps are the components served by a Handler. Journal is optional.
type Deps struct {
	Pipeline   *interview.Pipeline
	Recorder   *anticheat.Recorder
	Generator  taskgen.TaskGenerator
	Sessions   *session.Store
	Interviews *session.Interviews
	Journal    EventLister
	Logger     *slog.Logger
}

// Handler serves the interview API.
type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{deps: deps, logger: logger}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Post("/interview/submit", h.handleSubmit)
		r.Post("/anticheat/event", h.handleAnticheatEvent)
		r.Post("/generate-tasks", h.handleGenerateTasks)

		r.Route("/interview/{token}", func(r chi.Router) {
			r.Get("/", h.handleGetInterview)
			r.Post("/cheat-event", h.handleCheatEvent)
			r.Get("/session", h.handleGetSession)
			r.Post("/advance", h.handleAdvance)
			r.Get("/diff", h.handleDiff)
			r.Get("/events", h.handleListEvents)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Message: "Backend is running"})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	candidateID := strings.TrimSpace(req.CandidateID)
	if candidateID == "" {
		candidateID = strings.TrimSpace(r.Header.Get(CandidateHeader))
	}
	if candidateID == "" {
		candidateID = interview.AnonymousCandidate
	}
	server.AddLogField(r.Context(), "candidate_id", candidateID)

	result, err := h.deps.Pipeline.Submit(r.Context(), candidateID, req.Code, req.Language)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAnticheatEvent(w http.ResponseWriter, r *http.Request) {
	var req AnticheatEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	candidateID := strings.TrimSpace(req.CandidateID)
	server.AddLogField(r.Context(), "candidate_id", candidateID)

	if _, err := h.deps.Recorder.Record(r.Context(), candidateID, req.EventType, req.Details, time.Time{}); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "logged"})
}

func (h *Handler) handleGenerateTasks(w http.ResponseWriter, r *http.Request) {
	var req GenerateTasksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Vacancy) == "" {
		h.writeError(w, r, domain.ErrValidation("missing vacancy").WithField("vacancy"))
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = uuid.NewString()
	}
	server.AddLogField(r.Context(), "interview_token", token)

	tasks, err := h.deps.Generator.Generate(r.Context(), req.Vacancy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	taskIDs := session.DeriveTaskIDs(tasks)
	h.deps.Interviews.Put(domain.Interview{
		Token:      token,
		Position:   req.Position,
		Complexity: req.Complexity,
		Tasks:      tasks,
		TaskIDs:    taskIDs,
		CreatedAt:  time.Now(),
	})
	h.deps.Sessions.AssignTasks(token, taskIDs)

	h.logger.Info("interview generated",
		slog.String("token", token),
		slog.Int("tasks", len(taskIDs)))

	w.Header().Set(InterviewTokenHeader, token)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tasks)
}

func (h *Handler) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	iv, ok := h.deps.Interviews.Get(token)
	if !ok {
		h.writeError(w, r, domain.ErrNotFound("interview not found"))
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (h *Handler) handleCheatEvent(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	server.AddLogField(r.Context(), "candidate_id", token)

	var req CheatEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var occurredAt time.Time
	if req.Time != "" {
		t, err := time.Parse(time.RFC3339Nano, req.Time)
		if err != nil {
			h.writeError(w, r, domain.ErrValidation("time must be an RFC 3339 timestamp").WithField("time").WithCause(err))
			return
		}
		occurredAt = t
	}

	if _, err := h.deps.Recorder.Record(r.Context(), token, req.Type, req.Details, occurredAt); err != nil {
		h.writeError(w, r, renameField(err, "event_type", "type"))
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "logged"})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	s, ok := h.deps.Sessions.Get(token)
	if !ok {
		h.writeError(w, r, domain.ErrNotFound("session not found"))
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	s, err := h.deps.Sessions.Advance(token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

func (h *Handler) handleDiff(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	from, err := intParam(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := intParam(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.deps.Sessions.Diff(token, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if h.deps.Journal != nil {
		limit := 0
		if r.URL.Query().Get("limit") != "" {
			n, err := intParam(r, "limit")
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			limit = n
		}
		events, err := h.deps.Journal.ListEvents(r.Context(), token, limit)
		if err != nil {
			h.writeError(w, r, domain.ErrIO("failed to read event journal", err))
			return
		}
		writeJSON(w, http.StatusOK, EventsResponse{Events: events})
		return
	}

	s, ok := h.deps.Sessions.Get(token)
	if !ok {
		h.writeError(w, r, domain.ErrNotFound("session not found"))
		return
	}
	events := s.Events
	if events == nil {
		events = []domain.AnticheatEvent{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	de := domain.AsError(err)
	status := de.HTTPStatusCode()

	server.AddError(r.Context(), err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("request_id", server.GetRequestID(r.Context())),
			slog.String("kind", string(de.Kind)),
			slog.String("error", err.Error()))
	}

	writeJSON(w, status, ErrorResponse{Error: de})
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.ErrValidation("request body too large")
		case errors.Is(err, io.EOF):
			return domain.ErrParse("request body is empty", err)
		default:
			return domain.ErrParse("invalid JSON body", err)
		}
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, domain.ErrValidation("missing query parameter " + name).WithField(name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ErrValidation("query parameter " + name + " must be an integer").WithField(name).WithCause(err)
	}
	return n, nil
}

// renameField reports a validation error under the field name used by the
// endpoint's request body.
func renameField(err error, from, to string) error {
	var de *domain.Error
	if errors.As(err, &de) && de.Field == from {
		out := *de
		out.Field = to
		out.Message = strings.Replace(de.Message, from, to, 1)
		return &out
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
