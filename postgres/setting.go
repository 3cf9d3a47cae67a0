package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/interview"
)

const (
	none     = "(none)"
	noResume = "(no resume)"
)

// Setting is an interview_settings row with its skills and pre-questions.
type Setting struct {
	ID                    string
	QuestionCount         int
	InterviewerStyle      string
	InterviewerGender     string
	InterviewerAppearance string
	Position              string
	ResumeText            string
	Skills                []string
	PreQuestions          []PreQuestion
}

// PreQuestion is a question the candidate answered before the interview.
type PreQuestion struct {
	Question string
	Answer   string
}

// GetSetting loads a setting by id.
func (s *PGStore) GetSetting(ctx context.Context, settingID string) (*Setting, error) {
	st := &Setting{ID: settingID}
	var position, resume *string
	err := s.db.QueryRow(ctx, `
		SELECT question_count, interviewer_style, interviewer_gender, interviewer_appearance, position, resume_text
		FROM interview_settings WHERE setting_id = $1
	`, settingID).Scan(&st.QuestionCount, &st.InterviewerStyle, &st.InterviewerGender, &st.InterviewerAppearance, &position, &resume)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", interview.ErrSettingNotFound, settingID)
	}
	if err != nil {
		return nil, fmt.Errorf("interview: get setting: %w", err)
	}
	if position != nil {
		st.Position = *position
	}
	if resume != nil {
		st.ResumeText = *resume
	}

	rows, err := s.db.Query(ctx, `
		SELECT sk.skill
		FROM setting_skills ss JOIN skills sk ON sk.skill_id = ss.skill_id
		WHERE ss.setting_id = $1
		ORDER BY sk.skill
	`, settingID)
	if err != nil {
		return nil, fmt.Errorf("interview: list skills: %w", err)
	}
	st.Skills, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("interview: list skills: %w", err)
	}

	rows, err = s.db.Query(ctx, `
		SELECT question, answer FROM pre_questions
		WHERE setting_id = $1
		ORDER BY created_at, pre_question_id
	`, settingID)
	if err != nil {
		return nil, fmt.Errorf("interview: list pre-questions: %w", err)
	}
	st.PreQuestions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (PreQuestion, error) {
		var pq PreQuestion
		err := row.Scan(&pq.Question, &pq.Answer)
		return pq, err
	})
	if err != nil {
		return nil, fmt.Errorf("interview: list pre-questions: %w", err)
	}
	return st, nil
}

// SettingContext renders the setting as a prompt block. An empty id yields "".
func (s *PGStore) SettingContext(ctx context.Context, settingID string) (string, error) {
	if settingID == "" {
		return "", nil
	}
	st, err := s.GetSetting(ctx, settingID)
	if err != nil {
		return "", err
	}
	return FormatSetting(st), nil
}

// FormatSetting renders st in the sectioned layout the instruction builder embeds.
func FormatSetting(st *Setting) string {
	lines := []string{
		"[InterviewSetting]",
		"- setting_id: " + st.ID,
		fmt.Sprintf("- question_count: %d", st.QuestionCount),
		"- interviewer_style: " + st.InterviewerStyle,
		"- interviewer_gender: " + st.InterviewerGender,
		"- interviewer_appearance: " + st.InterviewerAppearance,
		"- position: " + orNone(st.Position),
		"",
		"[Resume]",
	}
	if resume := strings.TrimSpace(st.ResumeText); resume != "" {
		lines = append(lines, resume)
	} else {
		lines = append(lines, noResume)
	}

	lines = append(lines, "", "[Skill]")
	if len(st.Skills) == 0 {
		lines = append(lines, "- "+none)
	}
	for _, sk := range st.Skills {
		lines = append(lines, "- "+sk)
	}

	lines = append(lines, "", "[PreQuestion]")
	for _, pq := range st.PreQuestions {
		lines = append(lines, "Q: "+pq.Question, "A: "+pq.Answer, "")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return none
	}
	return s
}
