package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Session is one interview. Operations on a session run one at a time;
// a second caller waits for the first until its own context gives up.
// A failed operation changes nothing, so it can simply be retried.
type Session struct {
	id                 string
	persona            *Persona
	settingID          string
	instruction        string
	closingInstruction string
	engine             *Engine
	logger             *slog.Logger

	// lock serializes operations; it is held across the model call.
	lock *semaphore.Weighted

	// mu guards the fields below for readers that do not hold lock.
	mu       sync.RWMutex
	m        machine
	turns    []Turn
	messages []Message
}

func (s *Session) ID() string { return s.id }

func (s *Session) Persona() *Persona { return s.persona }

func (s *Session) SettingID() string { return s.settingID }

// Instruction is the system instruction sent with every question request.
func (s *Session) Instruction() string { return s.instruction }

// QuestionCount is the number of candidate answers processed so far.
func (s *Session) QuestionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.questionCount
}

func (s *Session) MaxQuestions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.maxQuestions
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.state
}

func (s *Session) Finished() bool {
	return s.State() == StateFinished
}

// History returns a copy of the transcript in insertion order.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// FirstQuestionAsync runs FirstQuestion on its own goroutine.
func (s *Session) FirstQuestionAsync(ctx context.Context) *Task[Reply] {
	return runTask(func() (Reply, error) { return s.FirstQuestion(ctx) })
}

// AnswerAsync runs Answer on its own goroutine.
func (s *Session) AnswerAsync(ctx context.Context, text string) *Task[Reply] {
	return runTask(func() (Reply, error) { return s.Answer(ctx, text) })
}

// FirstQuestion asks the opening question. Valid only in INIT.
func (s *Session) FirstQuestion(ctx context.Context) (Reply, error) {
	if err := s.acquire(ctx); err != nil {
		return Reply{}, err
	}
	defer s.lock.Release(1)

	m, msgs := s.snapshot()
	next, err := m.begin()
	if err != nil {
		return Reply{}, err
	}

	msgs = append(msgs, Message{
		Role:    MessageRoleUser,
		Content: s.engine.prompts.FirstQuestionDirective(next.maxQuestions),
	})
	parsed, err := s.ask(ctx, s.instruction, msgs)
	if err != nil {
		return Reply{}, err
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, ctxFailure(err)
	}

	next = next.asked()
	s.commit(next, nil, parsed.Response, msgs)
	s.logger.Info("first question asked", "outcome", parsed.Outcome)

	return Reply{
		Text:           parsed.Response.NextQuestion,
		Expression:     parsed.Response.Face,
		QuestionNumber: 1,
		TotalQuestions: next.maxQuestions,
	}, nil
}

// Answer records the candidate's answer and returns the next interviewer turn.
// The answer that spends the question budget gets the closing remark and
// finishes the session; so does a model's early-termination hint.
func (s *Session) Answer(ctx context.Context, text string) (Reply, error) {
	if err := s.acquire(ctx); err != nil {
		return Reply{}, err
	}
	defer s.lock.Release(1)

	m, base := s.snapshot()
	next, err := m.answered()
	if err != nil {
		return Reply{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyAnswer
	}

	var parsed Parsed
	var msgs []Message
	if !next.budgetSpent() {
		msgs = append(base, s.answerMessage(text,
			s.engine.prompts.NextQuestionDirective(text, next.questionCount+1, next.maxQuestions)))
		parsed, err = s.ask(ctx, s.instruction, msgs)
		if err != nil {
			return Reply{}, err
		}
		if parsed.Finished {
			s.logger.Info("model signalled early termination", "question", next.questionCount)
		}
	}

	if next.budgetSpent() || parsed.Finished {
		next = next.closing()
		msgs = append(base, s.answerMessage(text, s.engine.prompts.ClosingDirective()))
		parsed, err = s.ask(ctx, s.closingInstruction, msgs)
		if err != nil {
			return Reply{}, err
		}
		parsed.Response.Finished = true
		next = next.finish()
	} else {
		next = next.asked()
	}

	if err := ctx.Err(); err != nil {
		return Reply{}, ctxFailure(err)
	}

	s.commit(next, &Turn{Role: RoleCandidate, Text: text}, parsed.Response, msgs)

	finished := next.state == StateFinished
	number := next.questionCount + 1
	if finished {
		number = next.questionCount
		s.logger.Info("interview finished", "questions", next.questionCount)
	} else {
		s.logger.Info("question asked", "question", number, "outcome", parsed.Outcome)
	}

	return Reply{
		Text:           parsed.Response.NextQuestion,
		Expression:     parsed.Response.Face,
		Finished:       finished,
		QuestionNumber: number,
		TotalQuestions: next.maxQuestions,
	}, nil
}

// acquire takes the session lock. Only a wait behind another call is reported
// as ErrSessionBusy; a context that is already done fails like a model call would.
func (s *Session) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ctxFailure(err)
	}
	if s.lock.TryAcquire(1) {
		return nil
	}
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionBusy, ctxFailure(err))
	}
	return nil
}

// snapshot copies the machine and model conversation so the caller can build
// the next step without touching committed state.
func (s *Session) snapshot() (machine, []Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.messages), len(s.messages)+1)
	copy(msgs, s.messages)
	return s.m, msgs
}

func (s *Session) answerMessage(answer, directive string) Message {
	return Message{
		Role:    MessageRoleUser,
		Content: "Candidate answer:\n" + answer + "\n\n" + directive,
	}
}

func (s *Session) ask(ctx context.Context, instruction string, msgs []Message) (Parsed, error) {
	parsed, _, err := s.engine.call(ctx, Request{
		SessionID:   s.id,
		Instruction: instruction,
		History:     msgs,
		Schema:      SchemaQuestion,
	})
	if err != nil {
		s.logger.Error("model request failed", "error", err)
		return Parsed{}, err
	}
	if parsed.Outcome != OutcomeStructured {
		s.logger.Warn("model response recovered", "outcome", parsed.Outcome)
	}
	return parsed, nil
}

// commit applies a completed step: the optional candidate turn, the interviewer
// turn, the new machine state and the model conversation.
func (s *Session) commit(next machine, candidate *Turn, resp StructuredResponse, msgs []Message) {
	now := s.engine.now()
	reply, _ := json.Marshal(resp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if candidate != nil {
		candidate.Seq = len(s.turns) + 1
		candidate.CreatedAt = now
		s.turns = append(s.turns, *candidate)
	}
	s.turns = append(s.turns, Turn{
		Seq:        len(s.turns) + 1,
		Role:       RoleInterviewer,
		Text:       resp.NextQuestion,
		Expression: resp.Face,
		CreatedAt:  now,
	})
	s.messages = append(msgs, Message{Role: MessageRoleAssistant, Content: string(reply)})
	s.m = next
}
