// Package scripted provides a deterministic interview.Provider for local runs
// and tests. It replays queued steps and falls back to canned questions.
package scripted

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meikuraledutech/interview"
)

// Step is one scripted provider answer.
type Step struct {
	Content string
	Err     error
	// Delay is waited before answering; the request context can cut it short.
	Delay time.Duration
}

var cannedQuestions = []string{
	"Could you introduce yourself and the kind of work you enjoy most?",
	"Tell me about a project you are proud of. What was your role?",
	"Describe a difficult problem you solved recently. How did you approach it?",
	"How do you handle disagreements within a team?",
	"Where would you like to grow over the next few years?",
}

// Provider replays steps in order.
type Provider struct {
	mu    sync.Mutex
	steps []Step
	calls []interview.Request
	next  int
}

// New creates a Provider that answers with steps, then with canned questions.
func New(steps ...Step) *Provider {
	return &Provider{steps: steps}
}

func (p *Provider) Name() string { return "scripted" }

// Push queues more steps.
func (p *Provider) Push(steps ...Step) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, steps...)
}

// Calls returns the requests seen so far.
func (p *Provider) Calls() []interview.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]interview.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

// Generate implements interview.Provider.
func (p *Provider) Generate(ctx context.Context, req interview.Request) (*interview.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	var step Step
	if len(p.steps) > 0 {
		step = p.steps[0]
		p.steps = p.steps[1:]
	} else {
		step = Step{Content: p.canned(req)}
	}
	p.mu.Unlock()

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &interview.Result{
		Content: step.Content,
		Usage:   interview.Usage{ResponseTokens: len(strings.Fields(step.Content))},
	}, nil
}

// canned builds a schema-valid answer. Caller holds p.mu.
func (p *Provider) canned(req interview.Request) string {
	if req.Schema == interview.SchemaReview {
		return Review("A consistent interview with clear answers.", 70)
	}
	if strings.Contains(req.Instruction, "Closing rules:") {
		return Question("Thank you for your time today. That concludes our interview.", interview.ExpressionSmile)
	}
	q := cannedQuestions[p.next%len(cannedQuestions)]
	p.next++
	face := interview.ExpressionNeutral
	if p.next > 1 {
		face = interview.ExpressionCurious
	}
	return Question(q, face)
}

// Question renders a schema-valid question payload.
func Question(text string, face interview.Expression) string {
	data, _ := json.Marshal(interview.StructuredResponse{NextQuestion: text, Face: face})
	return string(data)
}

// Finish renders a question payload carrying the early-termination marker.
func Finish(text string, face interview.Expression) string {
	data, _ := json.Marshal(interview.StructuredResponse{NextQuestion: text, Face: face, Finished: true})
	return string(data)
}

// Review renders a schema-valid review payload with the same score everywhere.
func Review(summary string, score int) string {
	r := interview.Review{OverallReview: summary, Scores: map[string]interview.Score{}}
	for _, st := range interview.ReviewScoreTypes {
		r.Scores[st] = interview.Score{Score: score, Evaluation: fmt.Sprintf("%s: %d", strings.ToLower(st), score)}
	}
	data, _ := json.Marshal(r)
	return string(data)
}

// Ensure Provider implements interview.Provider at compile time.
var _ interview.Provider = (*Provider)(nil)
