package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Reviews are much longer than a single question.
const reviewMaxTokens = 2048

const reviewInstruction = `You are an expert interviewer and evaluator.
Below is the complete record of a job interview: every question and the candidate's answer.
Based on all of it, produce:
1. overall_review: a final evaluation of at most 500 characters covering answer quality,
   technical ability, strengths and areas to improve.
2. scores: for each category an integer from 0 to 100 and a one-line evaluation.
   - OVERALL: overall score
   - RESPONSE_ACCURACY: accuracy and relevance of the answers
   - SPEAKING_PACE: clarity and concision of the answers
   - VOCABULARY_QUALITY: vocabulary level and use of domain terms
   - PRONUNCIATION_ACCURACY: precision and consistency of expression
Evaluate the answers only, never the questions.`

// Score is one category of a Review.
type Score struct {
	Score      int    `json:"score"`
	Evaluation string `json:"evaluation"`
}

// Review is the overall evaluation of a finished interview.
type Review struct {
	OverallReview string           `json:"overall_review"`
	Scores        map[string]Score `json:"scores"`
}

// Review asks the model for an overall evaluation of a finished session.
// The result is returned only; nothing is stored.
func (s *Session) Review(ctx context.Context) (*Review, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.lock.Release(1)

	if s.State() != StateFinished {
		return nil, fmt.Errorf("%w: review needs a finished session", ErrInvalidState)
	}

	_, result, err := s.engine.call(ctx, Request{
		SessionID:   s.id,
		Instruction: reviewInstruction,
		History:     []Message{{Role: MessageRoleUser, Content: transcript(s.History())}},
		Schema:      SchemaReview,
		MaxTokens:   max(reviewMaxTokens, s.engine.opts.MaxTokens),
	})
	if err != nil {
		return nil, err
	}

	review, err := parseReview(result.Content)
	if err != nil {
		s.logger.Warn("review response malformed", "error", err)
		return nil, err
	}
	return review, nil
}

func parseReview(raw string) (*Review, error) {
	var review Review
	if err := json.Unmarshal([]byte(stripFences(strings.TrimSpace(raw))), &review); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	if strings.TrimSpace(review.OverallReview) == "" {
		return nil, fmt.Errorf("%w: empty overall review", ErrReviewUnavailable)
	}
	for k, sc := range review.Scores {
		sc.Score = min(max(sc.Score, 0), 100)
		review.Scores[k] = sc
	}
	return &review, nil
}

// transcript renders interviewer/candidate pairs as numbered Q/A blocks.
func transcript(turns []Turn) string {
	var b strings.Builder
	b.WriteString("--- Interview record ---\n")
	n := 0
	for i, t := range turns {
		if t.Role != RoleInterviewer {
			continue
		}
		answer := "(no answer)"
		if i+1 < len(turns) && turns[i+1].Role == RoleCandidate {
			answer = turns[i+1].Text
		} else if i == len(turns)-1 {
			// closing remark
			continue
		}
		n++
		fmt.Fprintf(&b, "\n[Question %d]\nQ: %s\nA: %s\n", n, t.Text, answer)
	}
	return b.String()
}
