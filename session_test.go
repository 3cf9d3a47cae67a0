package interview_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meikuraledutech/interview"
	"github.com/meikuraledutech/interview/persona"
	"github.com/meikuraledutech/interview/scripted"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEngine(t *testing.T, p interview.Provider, opts interview.Options) *interview.Engine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	client := interview.NewClient(p, 2*time.Second).WithLogger(quiet)
	return interview.NewEngine(persona.Default(), client, opts)
}

func newSession(t *testing.T, p interview.Provider, maxQuestions int) *interview.Session {
	t.Helper()
	s, err := newEngine(t, p, interview.Options{}).CreateSession(context.Background(), interview.SessionOptions{
		PersonaID:    "FORMAL",
		MaxQuestions: maxQuestions,
	})
	require.NoError(t, err)
	return s
}

func TestInterviewRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	p := scripted.New()
	s := newSession(t, p, 2)
	require.Equal(t, interview.StateInit, s.State())

	reply, err := s.FirstQuestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reply.QuestionNumber)
	assert.Equal(t, 2, reply.TotalQuestions)
	assert.False(t, reply.Finished)
	assert.NotEmpty(t, reply.Text)
	assert.Len(t, s.History(), 1)
	assert.Equal(t, interview.StateAwaitingAnswer, s.State())

	reply, err = s.Answer(ctx, "I have built payment systems in Go for five years.")
	require.NoError(t, err)
	assert.Equal(t, 2, reply.QuestionNumber)
	assert.False(t, reply.Finished)
	assert.Equal(t, 1, s.QuestionCount())
	assert.Len(t, s.History(), 3)

	reply, err = s.Answer(ctx, "I once migrated a monolith to services without downtime.")
	require.NoError(t, err)
	assert.True(t, reply.Finished)
	assert.Equal(t, 2, reply.QuestionNumber)
	assert.Equal(t, 2, s.QuestionCount())
	assert.Equal(t, interview.StateFinished, s.State())

	history := s.History()
	require.Len(t, history, 5)
	for i, turn := range history {
		assert.Equal(t, i+1, turn.Seq)
		want := interview.RoleInterviewer
		if i%2 == 1 {
			want = interview.RoleCandidate
		}
		assert.Equal(t, want, turn.Role, "turn %d", i)
		if turn.Role == interview.RoleInterviewer {
			assert.True(t, turn.Expression.Valid())
		}
	}
	assert.Equal(t, "I have built payment systems in Go for five years.", history[1].Text)

	calls := p.Calls()
	require.Len(t, calls, 3)
	assert.Len(t, calls[0].History, 1)
	assert.Len(t, calls[1].History, 3)
	assert.Contains(t, calls[1].History[2].Content, "Candidate answer:")
	assert.Contains(t, calls[1].History[2].Content, "Current question: 2 of 2")
	assert.NotContains(t, calls[1].Instruction, "Closing rules:")
	assert.Contains(t, calls[2].Instruction, "Closing rules:")
	assert.Equal(t, s.Instruction(), calls[0].Instruction)
	for _, c := range calls {
		assert.Equal(t, s.ID(), c.SessionID)
		assert.Equal(t, interview.SchemaQuestion, c.Schema)
	}

	_, err = s.Answer(ctx, "One more thing")
	assert.ErrorIs(t, err, interview.ErrSessionTerminated)
	_, err = s.FirstQuestion(ctx)
	assert.ErrorIs(t, err, interview.ErrSessionTerminated)
	assert.Len(t, s.History(), 5)
	assert.Len(t, p.Calls(), 3)
}

func TestSingleQuestionInterview(t *testing.T) {
	ctx := context.Background()
	p := scripted.New()
	s := newSession(t, p, 1)

	_, err := s.FirstQuestion(ctx)
	require.NoError(t, err)
	reply, err := s.Answer(ctx, "A short but complete answer about myself.")
	require.NoError(t, err)

	assert.True(t, reply.Finished)
	assert.Len(t, s.History(), 3)
	assert.Len(t, p.Calls(), 2)
}

func TestAnswerBeforeFirstQuestion(t *testing.T) {
	s := newSession(t, scripted.New(), 3)

	_, err := s.Answer(context.Background(), "hello")
	require.ErrorIs(t, err, interview.ErrInvalidState)
	assert.Equal(t, interview.StateInit, s.State())
}

func TestFirstQuestionTwice(t *testing.T) {
	s := newSession(t, scripted.New(), 3)
	_, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)

	_, err = s.FirstQuestion(context.Background())
	require.ErrorIs(t, err, interview.ErrInvalidState)
	assert.Len(t, s.History(), 1)
}

func TestEmptyAnswerRejected(t *testing.T) {
	p := scripted.New()
	s := newSession(t, p, 3)
	_, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)

	_, err = s.Answer(context.Background(), "   \n")
	require.ErrorIs(t, err, interview.ErrEmptyAnswer)
	assert.Equal(t, 0, s.QuestionCount())
	assert.Len(t, p.Calls(), 1)
}

func TestEmptyAnswerOnFinishedSession(t *testing.T) {
	ctx := context.Background()
	p := scripted.New()
	s := newSession(t, p, 1)
	_, err := s.FirstQuestion(ctx)
	require.NoError(t, err)
	_, err = s.Answer(ctx, "The only answer this interview needs.")
	require.NoError(t, err)
	require.True(t, s.Finished())

	_, err = s.Answer(ctx, "")
	require.ErrorIs(t, err, interview.ErrSessionTerminated)
	assert.NotErrorIs(t, err, interview.ErrEmptyAnswer)
	assert.Len(t, p.Calls(), 2)
}

func TestEmptyAnswerBeforeFirstQuestion(t *testing.T) {
	p := scripted.New()
	s := newSession(t, p, 3)

	_, err := s.Answer(context.Background(), " ")
	require.ErrorIs(t, err, interview.ErrInvalidState)
	assert.Equal(t, interview.StateInit, s.State())
	assert.Empty(t, p.Calls())
}

func TestUnknownExpressionBecomesNeutral(t *testing.T) {
	p := scripted.New(scripted.Step{Content: `{"next_question":"Tell me about yourself.","face":"furious"}`})
	s := newSession(t, p, 3)

	reply, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, interview.ExpressionNeutral, reply.Expression)
	assert.Equal(t, "Tell me about yourself.", reply.Text)
}

func TestMalformedResponseUsesDefaultQuestion(t *testing.T) {
	p := scripted.New(
		scripted.Step{Content: ""},
		scripted.Step{Content: `{"next_question": 42`},
	)
	s := newSession(t, p, 3)

	reply, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, interview.DefaultQuestion, reply.Text)
	assert.Equal(t, interview.ExpressionNeutral, reply.Expression)

	reply, err = s.Answer(context.Background(), "Something reasonably detailed here.")
	require.NoError(t, err)
	assert.Equal(t, interview.DefaultQuestion, reply.Text)
	assert.Equal(t, interview.StateAwaitingAnswer, s.State())
}

func TestLegacyInlineTags(t *testing.T) {
	p := scripted.New(scripted.Step{Content: "[smile] Welcome! What brings you here today?"})
	s := newSession(t, p, 3)

	reply, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, interview.ExpressionSmile, reply.Expression)
	assert.Equal(t, "Welcome! What brings you here today?", reply.Text)
}

func TestModelFailureLeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	p := scripted.New()
	s := newSession(t, p, 3)
	_, err := s.FirstQuestion(ctx)
	require.NoError(t, err)

	p.Push(scripted.Step{Err: &interview.StatusError{Code: 400, Err: errors.New("invalid argument")}})
	_, err = s.Answer(ctx, "My answer about distributed systems.")
	require.ErrorIs(t, err, interview.ErrModelUnavailable)
	assert.Equal(t, 0, s.QuestionCount())
	assert.Len(t, s.History(), 1)
	assert.Equal(t, interview.StateAwaitingAnswer, s.State())

	reply, err := s.Answer(ctx, "My answer about distributed systems.")
	require.NoError(t, err)
	assert.Equal(t, 2, reply.QuestionNumber)
	assert.Len(t, s.History(), 3)

	calls := p.Calls()
	require.Len(t, calls, 3)
	assert.Len(t, calls[2].History, 3, "failed attempt must not leak into the conversation")
}

func TestTransientFailureIsRetried(t *testing.T) {
	p := scripted.New(
		scripted.Step{Err: &interview.StatusError{Code: 503, Err: errors.New("unavailable")}},
		scripted.Step{Content: scripted.Question("Hello, shall we start?", interview.ExpressionHappy)},
	)
	s := newSession(t, p, 3)

	reply, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello, shall we start?", reply.Text)
	assert.Len(t, p.Calls(), 2)
}

func TestCallerTimeoutCommitsNothing(t *testing.T) {
	p := scripted.New()
	s := newSession(t, p, 3)
	_, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)

	p.Push(scripted.Step{Delay: time.Second, Content: scripted.Question("Too late?", interview.ExpressionNeutral)})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = s.Answer(ctx, "An answer that will time out.")
	require.ErrorIs(t, err, interview.ErrModelTimeout)
	assert.Equal(t, 0, s.QuestionCount())
	assert.Len(t, s.History(), 1)

	reply, err := s.Answer(context.Background(), "An answer that will time out.")
	require.NoError(t, err)
	assert.NotEqual(t, "Too late?", reply.Text)
	assert.Equal(t, 1, s.QuestionCount())
}

func TestEarlyTermination(t *testing.T) {
	ctx := context.Background()
	p := scripted.New(
		scripted.Step{Content: scripted.Question("Please introduce yourself.", interview.ExpressionNeutral)},
		scripted.Step{Content: scripted.Finish("I think we should stop here.", interview.ExpressionSerious)},
		scripted.Step{Content: scripted.Question("Thank you for coming in today.", interview.ExpressionSmile)},
	)
	s := newSession(t, p, 5)

	_, err := s.FirstQuestion(ctx)
	require.NoError(t, err)
	reply, err := s.Answer(ctx, "I would rather not talk about my experience.")
	require.NoError(t, err)

	assert.True(t, reply.Finished)
	assert.Equal(t, "Thank you for coming in today.", reply.Text)
	assert.Equal(t, interview.StateFinished, s.State())
	assert.Equal(t, 1, s.QuestionCount())

	history := s.History()
	require.Len(t, history, 3)
	for _, turn := range history {
		assert.NotEqual(t, "I think we should stop here.", turn.Text)
	}
	calls := p.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[2].Instruction, "Closing rules:")
}

func TestFinishHintOnFirstQuestionIgnored(t *testing.T) {
	p := scripted.New(scripted.Step{Content: scripted.Finish("Hello, tell me about yourself.", interview.ExpressionHappy)})
	s := newSession(t, p, 3)

	reply, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)
	assert.False(t, reply.Finished)
	assert.Equal(t, interview.StateAwaitingAnswer, s.State())
}

func TestConcurrentAnswersAreSerialized(t *testing.T) {
	p := scripted.New()
	s := newSession(t, p, 5)
	_, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)

	p.Push(
		scripted.Step{Delay: 50 * time.Millisecond, Content: scripted.Question("Second?", interview.ExpressionCurious)},
		scripted.Step{Delay: 50 * time.Millisecond, Content: scripted.Question("Third?", interview.ExpressionCurious)},
	)

	ctx := context.Background()
	a := s.AnswerAsync(ctx, "First concurrent answer with some detail.")
	b := s.AnswerAsync(ctx, "Second concurrent answer with some detail.")
	_, errA := a.Wait(ctx)
	_, errB := b.Wait(ctx)
	require.NoError(t, errA)
	require.NoError(t, errB)

	assert.Equal(t, 2, s.QuestionCount())
	history := s.History()
	require.Len(t, history, 5)
	for i, turn := range history {
		assert.Equal(t, i+1, turn.Seq)
	}
	assert.Equal(t, interview.RoleCandidate, history[1].Role)
	assert.Equal(t, interview.RoleCandidate, history[3].Role)
	assert.ElementsMatch(t,
		[]string{"First concurrent answer with some detail.", "Second concurrent answer with some detail."},
		[]string{history[1].Text, history[3].Text})
}

func TestBusySessionReportsErrSessionBusy(t *testing.T) {
	p := scripted.New()
	s := newSession(t, p, 5)
	_, err := s.FirstQuestion(context.Background())
	require.NoError(t, err)

	p.Push(scripted.Step{Delay: 300 * time.Millisecond, Content: scripted.Question("Next?", interview.ExpressionNeutral)})
	slow := s.AnswerAsync(context.Background(), "A slow answer to process.")
	require.Eventually(t, func() bool { return len(p.Calls()) == 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Answer(ctx, "An impatient answer.")
	require.ErrorIs(t, err, interview.ErrSessionBusy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.ErrorIs(t, err, interview.ErrModelTimeout)

	_, err = slow.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.QuestionCount())
}

func TestExpiredContextOnIdleSessionIsTimeout(t *testing.T) {
	p := scripted.New()
	s := newSession(t, p, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := s.FirstQuestion(ctx)
	require.ErrorIs(t, err, interview.ErrModelTimeout)
	assert.NotErrorIs(t, err, interview.ErrSessionBusy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, p.Calls())
	assert.Equal(t, interview.StateInit, s.State())

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = s.FirstQuestion(cancelled)
	require.ErrorIs(t, err, interview.ErrModelUnavailable)
	assert.NotErrorIs(t, err, interview.ErrSessionBusy)

	_, err = s.FirstQuestion(context.Background())
	require.NoError(t, err)
}

func TestTaskWaitRespectsContext(t *testing.T) {
	p := scripted.New(scripted.Step{Delay: 200 * time.Millisecond, Content: scripted.Question("Hi?", interview.ExpressionNeutral)})
	s := newSession(t, p, 3)

	task := s.FirstQuestionAsync(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := task.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	<-task.Done()
	reply, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hi?", reply.Text)
	assert.Len(t, s.History(), 1)
}

func TestSessionsAreIndependent(t *testing.T) {
	engine := newEngine(t, scripted.New(), interview.Options{})
	ctx := context.Background()

	a, err := engine.CreateSession(ctx, interview.SessionOptions{PersonaID: "casual", MaxQuestions: 2})
	require.NoError(t, err)
	b, err := engine.CreateSession(ctx, interview.SessionOptions{PersonaID: "PRESSURE", MaxQuestions: 2})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "CASUAL", a.Persona().ID)

	_, err = a.FirstQuestion(ctx)
	require.NoError(t, err)
	assert.Len(t, a.History(), 1)
	assert.Empty(t, b.History())
	assert.Equal(t, interview.StateInit, b.State())
}

func TestWorkerPoolBoundsModelCalls(t *testing.T) {
	p := &gaugeProvider{Provider: scripted.New(), delay: 20 * time.Millisecond}
	engine := newEngine(t, p, interview.Options{Workers: 2})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		s, err := engine.CreateSession(ctx, interview.SessionOptions{PersonaID: "FORMAL", MaxQuestions: 1})
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.FirstQuestion(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, p.peak.Load(), int32(2))
	assert.GreaterOrEqual(t, p.peak.Load(), int32(1))
}

type gaugeProvider struct {
	*scripted.Provider
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (g *gaugeProvider) Generate(ctx context.Context, req interview.Request) (*interview.Result, error) {
	n := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(g.delay)
	return g.Provider.Generate(ctx, req)
}

func TestCreateSessionUnknownPersona(t *testing.T) {
	engine := newEngine(t, scripted.New(), interview.Options{})

	_, err := engine.CreateSession(context.Background(), interview.SessionOptions{PersonaID: "NOPE"})
	require.ErrorIs(t, err, interview.ErrPersonaNotFound)
}

func TestCreateSessionDefaults(t *testing.T) {
	engine := newEngine(t, scripted.New(), interview.Options{DefaultPersona: "CASUAL", MaxQuestions: 4})

	s, err := engine.CreateSession(context.Background(), interview.SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "CASUAL", s.Persona().ID)
	assert.Equal(t, 4, s.MaxQuestions())
}

func TestTemperatureReachesProvider(t *testing.T) {
	ctx := context.Background()

	p := scripted.New()
	s, err := newEngine(t, p, interview.Options{}).CreateSession(ctx, interview.SessionOptions{})
	require.NoError(t, err)
	_, err = s.FirstQuestion(ctx)
	require.NoError(t, err)
	require.NotNil(t, p.Calls()[0].Temperature)
	assert.InDelta(t, interview.DefaultConfig().Temperature, *p.Calls()[0].Temperature, 1e-6)

	zero := float32(0)
	p = scripted.New()
	s, err = newEngine(t, p, interview.Options{Temperature: &zero}).CreateSession(ctx, interview.SessionOptions{})
	require.NoError(t, err)
	zero = 0.9
	_, err = s.FirstQuestion(ctx)
	require.NoError(t, err)
	require.NotNil(t, p.Calls()[0].Temperature)
	assert.Zero(t, *p.Calls()[0].Temperature)
}

type fakeContexts struct {
	text string
	err  error
}

func (f fakeContexts) SettingContext(context.Context, string) (string, error) { return f.text, f.err }

func TestCreateSessionWithSettingContext(t *testing.T) {
	engine := newEngine(t, scripted.New(), interview.Options{
		Contexts: fakeContexts{text: "[InterviewSetting]\n- position: Backend engineer"},
	})

	s, err := engine.CreateSession(context.Background(), interview.SessionOptions{PersonaID: "FORMAL", SettingID: "set-1"})
	require.NoError(t, err)
	assert.Equal(t, "set-1", s.SettingID())
	assert.Contains(t, s.Instruction(), "[Interview setting (use it to shape your questions)]")
	assert.Contains(t, s.Instruction(), "- position: Backend engineer")
}

func TestCreateSessionMissingSettingContinues(t *testing.T) {
	engine := newEngine(t, scripted.New(), interview.Options{
		Contexts: fakeContexts{err: interview.ErrSettingNotFound},
	})

	s, err := engine.CreateSession(context.Background(), interview.SessionOptions{PersonaID: "FORMAL", SettingID: "missing"})
	require.NoError(t, err)
	assert.NotContains(t, s.Instruction(), "[Interview setting")
}

func TestCreateSessionSettingStoreFailure(t *testing.T) {
	engine := newEngine(t, scripted.New(), interview.Options{
		Contexts: fakeContexts{err: errors.New("connection reset")},
	})

	_, err := engine.CreateSession(context.Background(), interview.SessionOptions{PersonaID: "FORMAL", SettingID: "set-1"})
	require.Error(t, err)
}

func TestReview(t *testing.T) {
	ctx := context.Background()
	p := scripted.New()
	s := newSession(t, p, 1)

	_, err := s.Review(ctx)
	require.ErrorIs(t, err, interview.ErrInvalidState)

	_, err = s.FirstQuestion(ctx)
	require.NoError(t, err)
	_, err = s.Answer(ctx, "I enjoy building reliable backend services.")
	require.NoError(t, err)

	review, err := s.Review(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, review.OverallReview)
	require.Len(t, review.Scores, len(interview.ReviewScoreTypes))
	assert.Equal(t, 70, review.Scores["OVERALL"].Score)

	calls := p.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, interview.SchemaReview, last.Schema)
	require.Len(t, last.History, 1)
	assert.Contains(t, last.History[0].Content, "I enjoy building reliable backend services.")
	assert.False(t, strings.Contains(last.Instruction, "Interview rules:"))
}

func TestReviewMalformed(t *testing.T) {
	ctx := context.Background()
	p := scripted.New()
	s := newSession(t, p, 1)
	_, err := s.FirstQuestion(ctx)
	require.NoError(t, err)
	_, err = s.Answer(ctx, "I enjoy building reliable backend services.")
	require.NoError(t, err)

	p.Push(scripted.Step{Content: "not json"})
	_, err = s.Review(ctx)
	require.ErrorIs(t, err, interview.ErrReviewUnavailable)
}
