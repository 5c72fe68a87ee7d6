// Package interview implements the submission pipeline: record the attempt,
// have it analysed, and attach test verdicts.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tjfontaine/interview-gateway/internal/domain"
	"github.com/tjfontaine/interview-gateway/internal/oracle"
	"github.com/tjfontaine/interview-gateway/internal/tokens"
)

const (
	// AnonymousCandidate is used when a submission names no candidate.
	AnonymousCandidate = "anonymous"

	statusSuccess   = "success"
	acceptedMessage = "Code received and sent for analysis."
)

var tracer = otel.Tracer("github.com/tjfontaine/interview-gateway/internal/interview")

// Analyzer turns a prompt into analysis text. *oracle.Client implements it.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// SubmissionStore records submissions. *session.Store implements it.
type SubmissionStore interface {
	AppendSubmission(candidateID string, sub domain.Submission) int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEvaluator replaces the PlaceholderEvaluator.
func WithEvaluator(e CodeEvaluator) Option {
	return func(p *Pipeline) {
		p.evaluator = e
	}
}

// WithTokenBudget refuses to send prompts longer than maxTokens for model.
// A non-positive maxTokens disables the check.
func WithTokenBudget(counter tokens.Counter, model string, maxTokens int) Option {
	return func(p *Pipeline) {
		p.counter = counter
		p.model = model
		p.maxTokens = maxTokens
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline processes code submissions.
type Pipeline struct {
	store     SubmissionStore
	analyzer  Analyzer
	evaluator CodeEvaluator
	counter   tokens.Counter
	model     string
	maxTokens int
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline creates a pipeline that records into store and analyses with analyzer.
func NewPipeline(store SubmissionStore, analyzer Analyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		analyzer:  analyzer,
		evaluator: PlaceholderEvaluator{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit records one submission and returns its analysis and verdicts.
//
// Validation failures leave the store and the oracle untouched. Once
// validated, the submission is recorded before the oracle is called, and an
// oracle failure is reported inside the result's Analysis text rather than as
// an error.
func (p *Pipeline) Submit(ctx context.Context, candidateID, code, language string) (*domain.SubmissionResult, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(language) == "" {
		field := "code"
		if strings.TrimSpace(code) != "" {
			field = "language"
		}
		return nil, domain.ErrValidation("missing required fields").WithField(field)
	}
	if candidateID == "" {
		candidateID = AnonymousCandidate
	}

	ctx, span := tracer.Start(ctx, "interview.submit")
	defer span.End()

	start := p.now()
	sub := domain.Submission{
		ID:          uuid.NewString(),
		Code:        code,
		Language:    language,
		SubmittedAt: start,
	}
	count := p.store.AppendSubmission(candidateID, sub)

	span.SetAttributes(
		attribute.String("interview.candidate_id", candidateID),
		attribute.String("interview.language", language),
		attribute.Int("interview.submission_count", count),
	)

	analysis, promptTokens, analyzeErr := p.analyze(ctx, BuildPrompt(language, code))
	if analyzeErr != nil {
		analysis = oracle.Render(analyzeErr)
	}

	results, err := p.evaluator.Evaluate(ctx, sub)
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindServer, "failed to evaluate submission").WithCause(err)
	}

	attrs := []any{
		slog.String("candidate_id", candidateID),
		slog.String("submission_id", sub.ID),
		slog.String("language", language),
		slog.Int("submission_count", count),
		slog.Duration("duration", p.now().Sub(start)),
	}
	if promptTokens > 0 {
		attrs = append(attrs, slog.Int("prompt_tokens", promptTokens))
		span.SetAttributes(attribute.Int("interview.prompt_tokens", promptTokens))
	}
	if analyzeErr != nil {
		attrs = append(attrs, slog.String("analysis_error", analyzeErr.Error()))
		p.logger.WarnContext(ctx, "submission analysis failed", attrs...)
	} else {
		p.logger.InfoContext(ctx, "submission analysed", attrs...)
	}

	return &domain.SubmissionResult{
		Status:          statusSuccess,
		Message:         acceptedMessage,
		Analysis:        analysis,
		TestResults:     results,
		SubmissionID:    sub.ID,
		CandidateID:     candidateID,
		SubmissionCount: count,
	}, nil
}

// analyze returns the analysis and the prompt's token count, which is zero
// when no budget is configured.
func (p *Pipeline) analyze(ctx context.Context, prompt string) (string, int, error) {
	var n int
	if p.counter != nil && p.maxTokens > 0 {
		var estimated bool
		n, estimated = p.counter.Count(p.model, prompt)
		if n > p.maxTokens {
			detail := fmt.Sprintf("%d tokens, limit %d", n, p.maxTokens)
			if estimated {
				detail = "~" + detail
			}
			return "", n, &oracle.Error{Kind: oracle.ErrorKindPromptTooLarge, Detail: detail}
		}
	}
	analysis, err := p.analyzer.Analyze(ctx, prompt)
	return analysis, n, err
}
