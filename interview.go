package interview

import (
	"strings"
	"time"
)

// Persona is a named interviewer profile. Immutable once loaded.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role"`
	Personality string `json:"personality"`
	Rules       string `json:"rules"`
}

// Expression is the facial label attached to interviewer turns.
type Expression string

const (
	ExpressionHappy       Expression = "happy"
	ExpressionNeutral     Expression = "neutral"
	ExpressionThinking    Expression = "thinking"
	ExpressionSerious     Expression = "serious"
	ExpressionSmile       Expression = "smile"
	ExpressionCurious     Expression = "curious"
	ExpressionEncouraging Expression = "encouraging"
)

// Expressions lists the full vocabulary in schema order.
func Expressions() []Expression {
	return []Expression{
		ExpressionHappy,
		ExpressionNeutral,
		ExpressionThinking,
		ExpressionSerious,
		ExpressionSmile,
		ExpressionCurious,
		ExpressionEncouraging,
	}
}

// ExpressionNames returns the vocabulary as plain strings, for schemas and prompts.
func ExpressionNames() []string {
	out := make([]string, 0, 7)
	for _, e := range Expressions() {
		out = append(out, string(e))
	}
	return out
}

// Valid reports whether e is one of the seven known expressions.
func (e Expression) Valid() bool {
	switch e {
	case ExpressionHappy, ExpressionNeutral, ExpressionThinking, ExpressionSerious,
		ExpressionSmile, ExpressionCurious, ExpressionEncouraging:
		return true
	}
	return false
}

// NormalizeExpression maps s onto the vocabulary, falling back to neutral.
func NormalizeExpression(s string) Expression {
	e := Expression(strings.ToLower(strings.TrimSpace(s)))
	if e.Valid() {
		return e
	}
	return ExpressionNeutral
}

// Role identifies who produced a turn.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Turn is a single utterance in the transcript.
type Turn struct {
	Seq        int        `json:"seq"`
	Role       Role       `json:"role"`
	Text       string     `json:"text"`
	Expression Expression `json:"expression,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Message is one entry of the conversation sent to a provider.
// Role is "user" or "assistant"; providers translate to their own names.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// StructuredResponse is the payload the model is constrained to emit.
type StructuredResponse struct {
	Sequence         int        `json:"sequence,omitempty"`
	NextQuestion     string     `json:"next_question"`
	Face             Expression `json:"face"`
	BeforeUserAnswer string     `json:"before_user_answer,omitempty"`
	IsFollowup       bool       `json:"is_followup,omitempty"`
	Finished         bool       `json:"fin,omitempty"`
}

// Reply is what callers get back from a session operation.
type Reply struct {
	Text           string     `json:"text"`
	Expression     Expression `json:"expression"`
	Finished       bool       `json:"finished"`
	QuestionNumber int        `json:"question_number"`
	TotalQuestions int        `json:"total_questions"`
}

// Usage holds token counts from the provider response.
type Usage struct {
	PromptTokens   int `json:"prompt_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
	ThoughtTokens  int `json:"thought_tokens"`
}

// SchemaKind selects the structured-output contract for a request.
type SchemaKind string

const (
	SchemaQuestion SchemaKind = "question"
	SchemaReview   SchemaKind = "review"
)

// Request is a single model invocation.
type Request struct {
	SessionID   string
	Instruction string
	History     []Message
	Schema      SchemaKind
	MaxTokens   int
	// Temperature is nil to keep the provider's default; zero is a real setting.
	Temperature *float32
}

// Result is what the provider returns: raw content + token usage.
type Result struct {
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
	Attempts int    `json:"attempts"`
}
