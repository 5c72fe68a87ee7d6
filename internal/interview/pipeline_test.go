package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/tjfontaine/interview-gateway/internal/domain"
	"github.com/tjfontaine/interview-gateway/internal/oracle"
	"github.com/tjfontaine/interview-gateway/internal/session"
	"github.com/tjfontaine/interview-gateway/internal/tokens"
)

type fakeAnalyzer struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type failingEvaluator struct{}

func (failingEvaluator) Evaluate(ctx context.Context, sub domain.Submission) (domain.TestResults, error) {
	return domain.TestResults{}, errors.New("runner offline")
}

func TestPipeline_Submit_Success(t *testing.T) {
	store := session.NewStore(0)
	analyzer := &fakeAnalyzer{reply: "Looks correct."}
	p := NewPipeline(store, analyzer)

	res, err := p.Submit(context.Background(), "cand-1", "int main(){}", "cpp")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if res.Status != "success" || res.Message != "Code received and sent for analysis." {
		t.Errorf("status/message = %q / %q", res.Status, res.Message)
	}
	if res.Analysis != "Looks correct." {
		t.Errorf("Analysis = %q", res.Analysis)
	}
	if res.TestResults.VisibleTests["test_1"] != domain.VerdictPassed ||
		res.TestResults.VisibleTests["test_2"] != domain.VerdictPassed ||
		res.TestResults.HiddenTests != domain.VerdictPassed {
		t.Errorf("TestResults = %+v", res.TestResults)
	}
	if res.SubmissionCount != 1 || res.CandidateID != "cand-1" || res.SubmissionID == "" {
		t.Errorf("result = %+v", res)
	}

	s, _ := store.Get("cand-1")
	if len(s.Submissions) != 1 || s.Submissions[0].ID != res.SubmissionID || s.Submissions[0].Code != "int main(){}" {
		t.Errorf("stored submissions = %+v", s.Submissions)
	}

	if len(analyzer.prompts) != 1 {
		t.Fatalf("oracle called %d times, want 1", len(analyzer.prompts))
	}
	want := "Analyze the following C++ code for correctness, style, and potential bugs. Provide a short summary.\n\n```cpp\nint main(){}\n```"
	if analyzer.prompts[0] != want {
		t.Errorf("prompt = %q, want %q", analyzer.prompts[0], want)
	}
}

func TestPipeline_Submit_CountsPerCandidate(t *testing.T) {
	store := session.NewStore(0)
	p := NewPipeline(store, &fakeAnalyzer{reply: "ok"})

	for i := 1; i <= 3; i++ {
		res, err := p.Submit(context.Background(), "cand-1", "x", "python")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if res.SubmissionCount != i {
			t.Errorf("SubmissionCount = %d, want %d", res.SubmissionCount, i)
		}
	}

	res, _ := p.Submit(context.Background(), "", "x", "python")
	if res.CandidateID != AnonymousCandidate || res.SubmissionCount != 1 {
		t.Errorf("anonymous result = %+v", res)
	}
}

func TestPipeline_Submit_Validation(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		language  string
		wantField string
	}{
		{"missing code", "", "cpp", "code"},
		{"blank code", "  \n", "cpp", "code"},
		{"missing language", "int main(){}", "", "language"},
		{"missing both", "", "", "code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewStore(0)
			analyzer := &fakeAnalyzer{reply: "unused"}
			p := NewPipeline(store, analyzer)

			res, err := p.Submit(context.Background(), "cand-1", tt.code, tt.language)
			if res != nil {
				t.Errorf("Submit() result = %+v, want nil", res)
			}
			if !domain.IsKind(err, domain.ErrorKindValidation) {
				t.Fatalf("Submit() error = %v, want validation", err)
			}
			de := domain.AsError(err)
			if de.Message != "missing required fields" || de.Field != tt.wantField {
				t.Errorf("error = %+v", de)
			}
			if store.Len() != 0 {
				t.Error("store touched by invalid submission")
			}
			if len(analyzer.prompts) != 0 {
				t.Error("oracle called for invalid submission")
			}
		})
	}
}

func TestPipeline_Submit_OracleFailure(t *testing.T) {
	store := session.NewStore(0)
	analyzer := &fakeAnalyzer{err: &oracle.Error{Kind: oracle.ErrorKindConnection, Detail: "Connection refused"}}
	p := NewPipeline(store, analyzer)

	res, err := p.Submit(context.Background(), "cand-1", "print(1)", "python")
	if err != nil {
		t.Fatalf("Submit() error = %v, want nil", err)
	}
	if res.Status != "success" {
		t.Errorf("Status = %q", res.Status)
	}
	if res.Analysis != "Error: Failed to connect to LLM service: Connection refused" {
		t.Errorf("Analysis = %q", res.Analysis)
	}
	if res.TestResults.HiddenTests != domain.VerdictPassed {
		t.Errorf("TestResults = %+v", res.TestResults)
	}

	s, _ := store.Get("cand-1")
	if len(s.Submissions) != 1 {
		t.Errorf("submission not recorded after oracle failure: %d", len(s.Submissions))
	}
}

func TestPipeline_Submit_TokenBudget(t *testing.T) {
	store := session.NewStore(0)
	analyzer := &fakeAnalyzer{reply: "ok"}
	p := NewPipeline(store, analyzer, WithTokenBudget(&tokens.Estimator{CharsPerToken: 4}, "qwen2-32b-awq", 10))

	res, err := p.Submit(context.Background(), "cand-1", strings.Repeat("x", 400), "cpp")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !strings.HasPrefix(res.Analysis, "Error: Submission is too large to analyze (") {
		t.Errorf("Analysis = %q", res.Analysis)
	}
	if !strings.Contains(res.Analysis, "limit 10") {
		t.Errorf("Analysis = %q, want limit", res.Analysis)
	}
	if len(analyzer.prompts) != 0 {
		t.Error("oracle called for oversized prompt")
	}
	if res.SubmissionCount != 1 {
		t.Errorf("SubmissionCount = %d, want 1", res.SubmissionCount)
	}
}

func TestPipeline_Submit_LogsPromptTokens(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	p := NewPipeline(session.NewStore(0), &fakeAnalyzer{reply: "ok"},
		WithLogger(logger),
		WithTokenBudget(&tokens.Estimator{CharsPerToken: 4}, "qwen2-32b-awq", 10000))

	if _, err := p.Submit(context.Background(), "cand-1", "print(1)", "python"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["msg"] != "submission analysed" {
		t.Errorf("msg = %v", line["msg"])
	}
	if n, ok := line["prompt_tokens"].(float64); !ok || n <= 0 {
		t.Errorf("prompt_tokens = %v", line["prompt_tokens"])
	}
}

func TestPipeline_Submit_EvaluatorFailure(t *testing.T) {
	p := NewPipeline(session.NewStore(0), &fakeAnalyzer{reply: "ok"}, WithEvaluator(failingEvaluator{}))

	_, err := p.Submit(context.Background(), "c", "x", "go")
	if !domain.IsKind(err, domain.ErrorKindServer) {
		t.Fatalf("Submit() error = %v, want server", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		language  string
		wantName  string
		wantFence string
	}{
		{"cpp", "C++", "```cpp\n"},
		{"C++", "C++", "```cpp\n"},
		{"python", "Python", "```python\n"},
		{"golang", "Go", "```go\n"},
		{"Haskell", "Haskell", "```haskell\n"},
	}
	for _, tt := range tests {
		t.Run(tt.language, func(t *testing.T) {
			got := BuildPrompt(tt.language, "body")
			if !strings.HasPrefix(got, "Analyze the following "+tt.wantName+" code ") {
				t.Errorf("prompt = %q", got)
			}
			if !strings.Contains(got, tt.wantFence+"body\n```") {
				t.Errorf("prompt = %q, want fence %q", got, tt.wantFence)
			}
		})
	}
}
