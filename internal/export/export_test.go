package export

import (
	"strings"
	"testing"
	"time"

	"github.com/openexams/examtaker/internal/grader"
	"github.com/openexams/examtaker/internal/model"
	"github.com/openexams/examtaker/internal/scoring"
)

func reportExam(lang string) *model.Examination {
	return &model.Examination{
		Version:  &model.Version{Major: 2, Minor: 1, Patch: 0},
		Metadata: &model.Metadata{ExamID: "e1", Title: "Biology Final", Language: lang, TotalScore: 25},
		Sections: []model.Section{
			{SectionID: "s1", Title: "Multiple Choice", Description: "Choose the best answer.", Questions: []model.Question{
				{QuestionID: "q1", Type: model.TypeSingleChoice, Score: 10, Stem: "Pick one",
					Options:    []model.Option{{ID: "A", Text: "mitochondria"}, {ID: "B", Text: "chloroplast"}},
					Answer:     []string{"B"},
					UserAnswer: []string{"B"}},
				{QuestionID: "q2", Type: model.TypeEssay, Score: 15, Stem: "Discuss osmosis",
					IsAiJudge: true, Answer: []string{"water moves across membranes"},
					UserAnswer: []string{"my essay"}},
			}},
		},
	}
}

func TestMarkdownReport(t *testing.T) {
	exam := reportExam("en")
	rec := scoring.Calculate(exam, nil)
	rec.Timestamp = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	grader.Merge(rec, "q2", 12)

	md, err := Markdown(exam, rec, map[string]string{"q2": "Solid discussion of diffusion."})
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}

	for _, want := range []string{
		"# Biology Final",
		"Score: 22/25",
		"Date: 2025-03-14 09:30:00",
		"## Multiple Choice",
		"Choose the best answer.",
		"Question 1 (10 points)",
		"- A: mitochondria",
		"- B: chloroplast",
		"Your Answer:\nB",
		"Correct Answer:\nB",
		"Score: 10/10",
		"Status: Correct",
		"Question 2 (15 points)",
		"Score: 12/15",
		"Status: Incorrect",
		"AI Feedback:\nSolid discussion of diffusion.",
		"Congratulations! You passed the exam.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n---\n%s", want, md)
		}
	}
}

func TestMarkdownReportLocalized(t *testing.T) {
	exam := reportExam("zh")
	rec := scoring.Calculate(exam, nil)

	md, err := Markdown(exam, rec, nil)
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	for _, want := range []string{"得分", "正确答案", "第 1 题（10 分）"} {
		if !strings.Contains(md, want) {
			t.Errorf("zh report missing %q", want)
		}
	}
}

func TestMarkdownReportUnanswered(t *testing.T) {
	exam := reportExam("en")
	exam.Sections[0].Questions[1].UserAnswer = nil
	rec := scoring.Calculate(exam, nil)

	md, err := Markdown(exam, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md, "No answer provided") {
		t.Error("unanswered question should carry the no-answer marker")
	}
	if !strings.Contains(md, "You did not pass the exam") {
		t.Error("10/25 should report a fail")
	}
}

func TestMarkdownInvalidInput(t *testing.T) {
	if _, err := Markdown(nil, nil, nil); err == nil {
		t.Error("expected error for nil inputs")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	exam := reportExam("en")
	data, err := JSON(exam)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	parsed, err := model.Parse(data)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if parsed.Metadata.Title != "Biology Final" {
		t.Errorf("title lost: %q", parsed.Metadata.Title)
	}
	if got := parsed.Sections[0].Questions[0].UserAnswer; len(got) != 1 || got[0] != "B" {
		t.Errorf("user answer lost: %v", got)
	}
}

func TestFeedbackFromReports(t *testing.T) {
	got := FeedbackFromReports([]grader.Report{
		{QuestionID: "q1", Status: grader.StatusCompleted, Feedback: "good"},
		{QuestionID: "q2", Status: grader.StatusError, Feedback: ""},
	})
	if len(got) != 1 || got["q1"] != "good" {
		t.Errorf("unexpected feedback map: %v", got)
	}
}
