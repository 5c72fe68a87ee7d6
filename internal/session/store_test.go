package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/interview-gateway/internal/domain"
)

func sub(id, code string) domain.Submission {
	return domain.Submission{ID: id, Code: code, Language: "cpp", SubmittedAt: time.Now()}
}

func TestStore_GetOrCreate(t *testing.T) {
	store := NewStore(0)

	s := store.GetOrCreate("c1")
	if s.CandidateID != "c1" {
		t.Errorf("CandidateID = %q, want c1", s.CandidateID)
	}
	if len(s.Submissions) != 0 || len(s.TaskIDs) != 0 || s.CurrentTaskIndex != 0 {
		t.Errorf("new session not empty: %+v", s)
	}
	if !s.Completed() {
		t.Error("session without tasks should report Completed()")
	}

	store.GetOrCreate("c1")
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStore_AppendSubmission(t *testing.T) {
	store := NewStore(0)

	if n := store.AppendSubmission("c1", sub("s1", "int main(){}")); n != 1 {
		t.Errorf("first append count = %d, want 1", n)
	}
	if n := store.AppendSubmission("c1", sub("s2", "int main(){return 0;}")); n != 2 {
		t.Errorf("second append count = %d, want 2", n)
	}

	s, ok := store.Get("c1")
	if !ok {
		t.Fatal("Get() ok = false")
	}
	if s.Submissions[0].ID != "s1" || s.Submissions[1].ID != "s2" {
		t.Errorf("submissions out of order: %+v", s.Submissions)
	}

	other := store.GetOrCreate("c2")
	if len(other.Submissions) != 0 {
		t.Errorf("c2 saw c1's submissions: %+v", other.Submissions)
	}
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	store := NewStore(0)
	store.AppendSubmission("c1", sub("s1", "a"))

	snap, _ := store.Get("c1")
	snap.Submissions[0].Code = "mutated"
	snap.Submissions = append(snap.Submissions, sub("x", "x"))

	again, _ := store.Get("c1")
	if len(again.Submissions) != 1 || again.Submissions[0].Code != "a" {
		t.Errorf("store state changed through snapshot: %+v", again.Submissions)
	}
}

func TestStore_ConcurrentAppends(t *testing.T) {
	store := NewStore(0)

	const (
		writers = 8
		each    = 50
	)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				store.AppendSubmission("shared", sub(fmt.Sprintf("%d-%d", w, i), "x"))
				store.AppendSubmission(fmt.Sprintf("own-%d", w), sub("y", "y"))
			}
		}(w)
	}
	wg.Wait()

	s, _ := store.Get("shared")
	if len(s.Submissions) != writers*each {
		t.Errorf("shared submissions = %d, want %d", len(s.Submissions), writers*each)
	}

	// Each writer's own submissions must appear in the order it issued them.
	last := make(map[string]int)
	for _, sb := range s.Submissions {
		var w, i int
		fmt.Sscanf(sb.ID, "%d-%d", &w, &i)
		key := fmt.Sprint(w)
		if prev, ok := last[key]; ok && i <= prev {
			t.Fatalf("writer %d order broken: %d after %d", w, i, prev)
		}
		last[key] = i
	}

	if store.Len() != writers+1 {
		t.Errorf("Len() = %d, want %d", store.Len(), writers+1)
	}
}

func TestStore_AssignAndAdvance(t *testing.T) {
	store := NewStore(0)

	if _, err := store.Advance("nobody"); !domain.IsKind(err, domain.ErrorKindNotFound) {
		t.Errorf("Advance(unknown) error = %v, want not_found", err)
	}

	s := store.AssignTasks("c1", []string{"t1", "t2"})
	if s.CurrentTaskID() != "t1" {
		t.Errorf("CurrentTaskID() = %q, want t1", s.CurrentTaskID())
	}

	s, err := store.Advance("c1")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if s.CurrentTaskIndex != 1 || s.CurrentTaskID() != "t2" {
		t.Errorf("after first advance: %+v", s)
	}

	s, err = store.Advance("c1")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if !s.Completed() || s.CurrentTaskIndex != 2 {
		t.Errorf("after second advance: %+v", s)
	}

	if _, err := store.Advance("c1"); !domain.IsKind(err, domain.ErrorKindValidation) {
		t.Errorf("Advance past end error = %v, want validation", err)
	}

	s = store.AssignTasks("c1", []string{"t3"})
	if s.CurrentTaskIndex != 0 || s.CurrentTaskID() != "t3" {
		t.Errorf("reassign did not reset cursor: %+v", s)
	}
}

func TestStore_AppendEvent(t *testing.T) {
	store := NewStore(0)
	store.AppendEvent("c1", domain.AnticheatEvent{EventType: "paste_attempt", Details: json.RawMessage(`{"len":10}`)})

	s, _ := store.Get("c1")
	if len(s.Events) != 1 || s.Events[0].EventType != "paste_attempt" {
		t.Errorf("events = %+v", s.Events)
	}
}

func TestStore_Eviction(t *testing.T) {
	store := NewStore(2)
	store.GetOrCreate("a")
	store.GetOrCreate("b")
	store.GetOrCreate("a") // a becomes most recent
	store.GetOrCreate("c")

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	if _, ok := store.Get("b"); ok {
		t.Error("least recently used session b was not evicted")
	}
	if _, ok := store.Get("a"); !ok {
		t.Error("session a was evicted")
	}
}

func TestStore_Clock(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewStore(0, WithClock(func() time.Time { return fixed }))

	s := store.GetOrCreate("c1")
	if !s.CreatedAt.Equal(fixed) || !s.UpdatedAt.Equal(fixed) {
		t.Errorf("timestamps = %v / %v, want %v", s.CreatedAt, s.UpdatedAt, fixed)
	}
}

func TestStore_Diff(t *testing.T) {
	store := NewStore(0)
	store.AppendSubmission("c1", sub("s1", "int main() {\n  return 1;\n}\n"))
	store.AppendSubmission("c1", sub("s2", "int main() {\n  return 0;\n}\n"))

	d, err := store.Diff("c1", 0, 1)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if d.FromID != "s1" || d.ToID != "s2" {
		t.Errorf("ids = %s -> %s", d.FromID, d.ToID)
	}
	for _, want := range []string{"--- submission/0", "+++ submission/1", "-  return 1;", "+  return 0;"} {
		if !strings.Contains(d.Diff, want) {
			t.Errorf("diff missing %q:\n%s", want, d.Diff)
		}
	}
	// SplitLines yields four lines per side (trailing empty line included), three of which match.
	if d.Similarity != 0.75 {
		t.Errorf("Similarity = %v, want 0.75", d.Similarity)
	}

	same, err := store.Diff("c1", 1, 1)
	if err != nil {
		t.Fatalf("Diff(1,1) error = %v", err)
	}
	if same.Diff != "" || same.Similarity != 1 {
		t.Errorf("identical diff = %+v", same)
	}
}

func TestStore_DiffErrors(t *testing.T) {
	store := NewStore(0)
	store.AppendSubmission("c1", sub("s1", "x"))

	tests := []struct {
		name      string
		candidate string
		from, to  int
		wantKind  domain.ErrorKind
		wantField string
	}{
		{"unknown session", "nobody", 0, 0, domain.ErrorKindNotFound, ""},
		{"from out of range", "c1", 1, 0, domain.ErrorKindValidation, "from"},
		{"to negative", "c1", 0, -1, domain.ErrorKindValidation, "to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Diff(tt.candidate, tt.from, tt.to)
			if !domain.IsKind(err, tt.wantKind) {
				t.Fatalf("Diff() error = %v, want %s", err, tt.wantKind)
			}
			if got := domain.AsError(err).Field; got != tt.wantField {
				t.Errorf("Field = %q, want %q", got, tt.wantField)
			}
		})
	}
}
