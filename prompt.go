package interview

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	shortAnswerRunes = 20
	longAnswerRunes  = 500
)

const interviewRules = `Interview rules:
- Ask exactly one question at a time.
- Keep each question short: one to three sentences.
- Open with a brief, natural reaction to the candidate's previous answer, then ask the next question.
- Write the reaction and the question together in "next_question".
- Never repeat a question that was already asked.
- If an answer is vague or lacks specifics, ask a follow-up on the same topic and set "is_followup" to true.
- If an answer is insincere, off-topic or inappropriate, address it before moving on to a new topic.
- Set "fin" to true only if the interview cannot reasonably continue.`

const closingRules = `Closing rules:
- All questions have been asked. Do not ask a new question.
- Put a short closing remark in "next_question": thank the candidate and acknowledge their effort.
- Set "fin" to true.`

// PromptBuilder composes the instruction text sent with every model call.
// Its output depends only on its inputs.
type PromptBuilder struct{}

// Instruction builds the system instruction for normal questions.
func (PromptBuilder) Instruction(p *Persona, settingContext string) string {
	return buildInstruction(p, settingContext, interviewRules)
}

// ClosingInstruction builds the instruction variant used for the closing remark.
func (PromptBuilder) ClosingInstruction(p *Persona, settingContext string) string {
	return buildInstruction(p, settingContext, interviewRules+"\n\n"+closingRules)
}

func buildInstruction(p *Persona, settingContext, rules string) string {
	var b strings.Builder
	for _, block := range []string{p.Role, p.Personality, p.Rules} {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		b.WriteString(block)
		b.WriteString("\n\n")
	}

	b.WriteString(rules)
	b.WriteString("\n\n")
	b.WriteString(expressionRules())

	if ctx := strings.TrimSpace(settingContext); ctx != "" {
		b.WriteString("\n\n[Interview setting (use it to shape your questions)]\n")
		b.WriteString(ctx)
	}
	return b.String()
}

func expressionRules() string {
	return "Expression rules:\n" +
		"- Set \"face\" to exactly one of: " + strings.Join(ExpressionNames(), ", ") + ".\n" +
		"- Pick the face that matches your reaction to the quality, sincerity and attitude of the last answer.\n" +
		"- Use \"neutral\" when unsure."
}

// FirstQuestionDirective is the user message that asks for the opening question.
func (PromptBuilder) FirstQuestionDirective(total int) string {
	return fmt.Sprintf("Start the interview with the first question.\n\nCurrent question: 1 of %d", total)
}

// NextQuestionDirective is the user message sent after a candidate answer.
// Very short or very long answers add a hint on how to react.
func (PromptBuilder) NextQuestionDirective(answer string, next, total int) string {
	var b strings.Builder
	b.WriteString("Based on the answer above, react briefly and ask the next interview question.")

	var hints []string
	n := utf8.RuneCountInString(strings.TrimSpace(answer))
	if n < shortAnswerRunes {
		hints = append(hints, "- The answer was very short. Encourage the candidate to be more specific.")
	}
	if n > longAnswerRunes {
		hints = append(hints, "- The answer was long. You may ask the candidate to summarise the key point.")
	}
	if len(hints) > 0 {
		b.WriteString("\n\nAnswer analysis:\n")
		b.WriteString(strings.Join(hints, "\n"))
	}

	fmt.Fprintf(&b, "\n\nCurrent question: %d of %d", next, total)
	return b.String()
}

// ClosingDirective is the user message that asks for the closing remark.
func (PromptBuilder) ClosingDirective() string {
	return "That was the last answer. React to it briefly and close the interview. " +
		"Write the closing remark in \"next_question\" and do not ask a new question."
}
