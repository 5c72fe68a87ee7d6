package session

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/tjfontaine/interview-gateway/internal/domain"
)

// diffContext is the number of unchanged lines shown around each hunk.
const diffContext = 3

// SubmissionDiff compares two submissions of one session.
type SubmissionDiff struct {
	CandidateID string  `json:"candidate_id"`
	From        int     `json:"from"`
	To          int     `json:"to"`
	FromID      string  `json:"from_submission_id"`
	ToID        string  `json:"to_submission_id"`
	Similarity  float64 `json:"similarity"`
	Diff        string  `json:"diff"`
}

// Diff returns a unified diff between the submissions at indexes from and to
// (zero-based, arrival order) together with their line similarity in [0, 1].
func (s *Store) Diff(candidateID string, from, to int) (*SubmissionDiff, error) {
	sess, ok := s.Get(candidateID)
	if !ok {
		return nil, domain.ErrNotFound("session not found: " + candidateID)
	}

	n := len(sess.Submissions)
	for _, idx := range []struct {
		name  string
		value int
	}{{"from", from}, {"to", to}} {
		if idx.value < 0 || idx.value >= n {
			return nil, domain.ErrValidation(
				fmt.Sprintf("submission index %d out of range (session has %d)", idx.value, n),
			).WithField(idx.name)
		}
	}

	a, b := sess.Submissions[from], sess.Submissions[to]
	aLines := difflib.SplitLines(a.Code)
	bLines := difflib.SplitLines(b.Code)

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        aLines,
		B:        bLines,
		FromFile: fmt.Sprintf("submission/%d", from),
		ToFile:   fmt.Sprintf("submission/%d", to),
		Context:  diffContext,
	})
	if err != nil {
		return nil, domain.NewError(domain.ErrorKindServer, "failed to render diff").WithCause(err)
	}

	return &SubmissionDiff{
		CandidateID: candidateID,
		From:        from,
		To:          to,
		FromID:      a.ID,
		ToID:        b.ID,
		Similarity:  difflib.NewMatcher(aLines, bLines).Ratio(),
		Diff:        text,
	}, nil
}
