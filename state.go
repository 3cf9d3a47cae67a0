package interview

import "fmt"

// State is a session lifecycle state.
type State string

const (
	StateInit           State = "init"
	StateAsking         State = "asking"
	StateAwaitingAnswer State = "awaiting_answer"
	StateClosing        State = "closing"
	StateFinished       State = "finished"
)

// machine is the turn-based state of a session. It is a value: transitions
// return a new machine so a failed model call never leaves a half-applied step.
type machine struct {
	state         State
	questionCount int
	maxQuestions  int
}

func newMachine(maxQuestions int) machine {
	return machine{state: StateInit, maxQuestions: maxQuestions}
}

func (m machine) check(want State) error {
	switch {
	case m.state == want:
		return nil
	case m.state == StateFinished:
		return ErrSessionTerminated
	default:
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, m.state, want)
	}
}

// begin moves INIT to ASKING for the first question.
func (m machine) begin() (machine, error) {
	if err := m.check(StateInit); err != nil {
		return m, err
	}
	m.state = StateAsking
	return m, nil
}

// answered moves AWAITING_ANSWER to ASKING and counts the answered question.
func (m machine) answered() (machine, error) {
	if err := m.check(StateAwaitingAnswer); err != nil {
		return m, err
	}
	m.state = StateAsking
	m.questionCount++
	return m, nil
}

// budgetSpent reports whether the next interviewer turn must be the closing remark.
func (m machine) budgetSpent() bool {
	return m.questionCount >= m.maxQuestions
}

// asked moves ASKING to AWAITING_ANSWER once a question is out.
func (m machine) asked() machine {
	m.state = StateAwaitingAnswer
	return m
}

// closing moves ASKING to CLOSING.
func (m machine) closing() machine {
	m.state = StateClosing
	return m
}

// finish moves CLOSING to FINISHED. Terminal.
func (m machine) finish() machine {
	m.state = StateFinished
	return m
}
