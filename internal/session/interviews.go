package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tjfontaine/interview-gateway/internal/domain"
)

// DefaultMaxInterviews bounds the registry when no limit is configured.
const DefaultMaxInterviews = 1000

// Interviews maps access tokens to generated interviews.
type Interviews struct {
	items *lru.Cache[string, *domain.Interview]
}

// NewInterviews creates a registry holding at most max interviews.
func NewInterviews(max int) *Interviews {
	if max <= 0 {
		max = DefaultMaxInterviews
	}
	items, err := lru.New[string, *domain.Interview](max)
	if err != nil {
		panic(err)
	}
	return &Interviews{items: items}
}

// Put registers iv under its token, replacing any previous interview.
func (r *Interviews) Put(iv domain.Interview) {
	iv.Tasks = append(json.RawMessage(nil), iv.Tasks...)
	iv.TaskIDs = append([]string{}, iv.TaskIDs...)
	r.items.Add(iv.Token, &iv)
}

// Get returns a copy of the interview registered under token.
func (r *Interviews) Get(token string) (*domain.Interview, bool) {
	iv, ok := r.items.Get(token)
	if !ok {
		return nil, false
	}
	out := *iv
	out.Tasks = append(json.RawMessage(nil), iv.Tasks...)
	out.TaskIDs = append([]string{}, iv.TaskIDs...)
	return &out, true
}

// Len returns the number of registered interviews.
func (r *Interviews) Len() int {
	return r.items.Len()
}

// DeriveTaskIDs lists the task identifiers of a generated document. The
// document is either an array of tasks or an object with a "tasks" array.
// A task's string or numeric "id" is used when present, numbers in their
// literal JSON form, otherwise "task-N" (1-based).
// Documents of any other shape yield no ids.
func DeriveTaskIDs(doc json.RawMessage) []string {
	var tasks []json.RawMessage
	if err := json.Unmarshal(doc, &tasks); err != nil {
		var wrapped struct {
			Tasks []json.RawMessage `json:"tasks"`
		}
		if err := json.Unmarshal(doc, &wrapped); err != nil {
			return []string{}
		}
		tasks = wrapped.Tasks
	}

	ids := make([]string, 0, len(tasks))
	for i, raw := range tasks {
		var task struct {
			ID any `json:"id"`
		}
		id := fmt.Sprintf("task-%d", i+1)
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&task); err == nil {
			switch v := task.ID.(type) {
			case string:
				if v != "" {
					id = v
				}
			case json.Number:
				id = v.String()
			}
		}
		ids = append(ids, id)
	}
	return ids
}
