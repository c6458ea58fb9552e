// Package export renders exam results: a machine-readable JSON dump of the
// full document with answers, and a localized Markdown report.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/openexams/examtaker/internal/grader"
	"github.com/openexams/examtaker/internal/i18n"
	"github.com/openexams/examtaker/internal/model"
)

// passThreshold is the fraction of the total score considered a pass.
const passThreshold = 0.6

// JSON returns the full document, including user answers, as indented JSON.
func JSON(exam *model.Examination) ([]byte, error) {
	data, err := json.MarshalIndent(exam, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal exam: %w", err)
	}
	return data, nil
}

// Markdown renders a human-readable report: per question the stem, options,
// user answer, correct answer, obtained/max score, correctness, and any AI
// feedback. Labels are localized to the document's language. feedback maps
// question id to AI feedback text and may be nil.
func Markdown(exam *model.Examination, rec *model.ScoreRecord, feedback map[string]string) (string, error) {
	if exam == nil || exam.Metadata == nil || rec == nil {
		return "", model.ErrInvalidFormat
	}
	if err := i18n.Init(); err != nil {
		return "", err
	}
	loc := i18n.NewLocalizer(exam.Metadata.Language)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", exam.Metadata.Title)
	fmt.Fprintf(&sb, "%s: %g/%g\n", i18n.T(loc, "report.score"), rec.ObtainedScore, rec.TotalScore)
	fmt.Fprintf(&sb, "%s: %s\n\n", i18n.T(loc, "report.date"), rec.Timestamp.Format("2006-01-02 15:04:05"))

	if rec.TotalScore > 0 {
		if rec.ObtainedScore >= rec.TotalScore*passThreshold {
			sb.WriteString(i18n.T(loc, "report.passed") + "\n\n")
		} else {
			sb.WriteString(i18n.T(loc, "report.failed") + "\n\n")
		}
	}

	for si := range exam.Sections {
		section := &exam.Sections[si]
		fmt.Fprintf(&sb, "## %s\n\n", section.Title)
		if section.Description != "" {
			sb.WriteString(section.Description + "\n\n")
		}

		key := section.Key()
		for qi := range section.Questions {
			writeQuestion(&sb, loc, &section.Questions[qi], qi+1, rec.QuestionScores[key], feedback)
		}
	}

	return sb.String(), nil
}

func writeQuestion(sb *strings.Builder, loc *goi18n.Localizer, q *model.Question, number int, scores map[string]model.QuestionScore, feedback map[string]string) {
	fmt.Fprintf(sb, "### %s\n\n", i18n.Td(loc, "report.question", map[string]any{
		"Number": number,
		"Points": q.Score,
	}))
	sb.WriteString(q.Stem + "\n\n")

	if len(q.Options) > 0 {
		sb.WriteString(i18n.T(loc, "report.options") + ":\n")
		for _, opt := range q.Options {
			fmt.Fprintf(sb, "- %s: %s\n", opt.ID, opt.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(i18n.T(loc, "report.your_answer") + ":\n")
	if q.Answered() {
		sb.WriteString(strings.Join(q.UserAnswer, ", ") + "\n\n")
	} else {
		sb.WriteString(i18n.T(loc, "report.no_answer") + "\n\n")
	}

	sb.WriteString(i18n.T(loc, "report.correct_answer") + ":\n")
	sb.WriteString(strings.Join(q.Answer, ", ") + "\n\n")

	if score, ok := scores[q.QuestionID]; ok {
		fmt.Fprintf(sb, "%s: %g/%g\n", i18n.T(loc, "report.score"), score.ObtainedScore, score.MaxScore)
		status := i18n.T(loc, "report.incorrect")
		if score.IsCorrect {
			status = i18n.T(loc, "report.correct")
		}
		fmt.Fprintf(sb, "%s: %s\n\n", i18n.T(loc, "report.status"), status)
	}

	if q.IsAiJudge && feedback != nil {
		if fb, ok := feedback[q.QuestionID]; ok && fb != "" {
			sb.WriteString(i18n.T(loc, "report.ai_feedback") + ":\n")
			sb.WriteString(fb + "\n\n")
		}
	}

	sb.WriteString("---\n\n")
}

// FeedbackFromReports extracts the per-question AI feedback out of grading
// batch reports for use in the Markdown report.
func FeedbackFromReports(reports []grader.Report) map[string]string {
	out := make(map[string]string, len(reports))
	for _, r := range reports {
		if r.Feedback != "" {
			out[r.QuestionID] = r.Feedback
		}
	}
	return out
}
