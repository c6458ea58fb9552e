package grader

import (
	"context"
	"errors"
	"testing"

	"github.com/openexams/examtaker/internal/model"
	"github.com/openexams/examtaker/internal/scoring"
)

// fakeClient returns canned results or errors per question id.
type fakeClient struct {
	results map[string]Result
	errs    map[string]error
	calls   []string
}

func (f *fakeClient) Grade(_ context.Context, q *model.Question) (Result, error) {
	f.calls = append(f.calls, q.QuestionID)
	if err, ok := f.errs[q.QuestionID]; ok {
		return Result{}, err
	}
	return f.results[q.QuestionID], nil
}

func gradedExam() *model.Examination {
	return &model.Examination{
		Metadata: &model.Metadata{ExamID: "e1", Title: "T", TotalScore: 60},
		Sections: []model.Section{
			{SectionID: "s1", Title: "Objective", Questions: []model.Question{
				{QuestionID: "d1", Type: model.TypeSingleChoice, Score: 10, Answer: []string{"A"}, UserAnswer: []string{"A"}},
			}},
			{SectionID: "s2", Title: "Subjective", Questions: []model.Question{
				{QuestionID: "a1", Type: model.TypeEssay, Score: 20, IsAiJudge: true, Answer: []string{"ref"}, UserAnswer: []string{"essay text"}},
				{QuestionID: "a2", Type: model.TypeShortAnswer, Score: 15, IsAiJudge: true, Answer: []string{"ref"}, UserAnswer: []string{"short text"}},
				{QuestionID: "a3", Type: model.TypeCalculation, Score: 15, IsAiJudge: true, Answer: []string{"42"}, UserAnswer: []string{"42"}},
				{QuestionID: "skip", Type: model.TypeEssay, Score: 5, IsAiJudge: true, Answer: []string{"ref"}},
			}},
		},
	}
}

func TestCollect(t *testing.T) {
	exam := gradedExam()
	got := Collect(exam)
	if len(got) != 3 {
		t.Fatalf("expected 3 gradable questions, got %d", len(got))
	}
	for i, want := range []string{"a1", "a2", "a3"} {
		if got[i].QuestionID != want {
			t.Errorf("position %d: got %q, want %q", i, got[i].QuestionID, want)
		}
	}

	if Collect(nil) != nil {
		t.Error("nil exam should collect nothing")
	}
}

func TestGradeAllMergesSequentially(t *testing.T) {
	exam := gradedExam()
	rec := scoring.Calculate(exam, nil)

	client := &fakeClient{results: map[string]Result{
		"a1": {Score: 20, MaxScore: 20, ConfidenceLevel: 0.9, Feedback: "full marks"},
		"a2": {Score: 7.5, MaxScore: 15, ConfidenceLevel: 0.8, Feedback: "half right"},
		"a3": {Score: 15, MaxScore: 15, ConfidenceLevel: 1, Feedback: "correct"},
	}}

	var seen []Report
	reports := GradeAll(context.Background(), Collect(exam), rec, client, func(r Report) {
		seen = append(seen, r)
	})

	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	for _, r := range reports {
		if r.Status != StatusCompleted {
			t.Errorf("%s: status %q, want completed", r.QuestionID, r.Status)
		}
	}

	// Questions are processed strictly in document order.
	for i, want := range []string{"a1", "a2", "a3"} {
		if client.calls[i] != want {
			t.Errorf("call %d: got %q, want %q", i, client.calls[i], want)
		}
	}

	// Each question goes pending before completing.
	if len(seen) != 6 || seen[0].Status != StatusPending || seen[1].Status != StatusCompleted {
		t.Errorf("unexpected progress feed: %+v", seen)
	}

	if got := rec.QuestionScores["s2"]["a1"]; got.ObtainedScore != 20 || !got.IsCorrect {
		t.Errorf("a1 not merged: %+v", got)
	}
	if got := rec.QuestionScores["s2"]["a2"]; got.ObtainedScore != 7.5 || got.IsCorrect {
		t.Errorf("a2 merge wrong: %+v", got)
	}
	if rec.SectionScores["s2"] != 42.5 {
		t.Errorf("section s2 = %v, want 42.5", rec.SectionScores["s2"])
	}
	if rec.ObtainedScore != 52.5 {
		t.Errorf("total = %v, want 52.5", rec.ObtainedScore)
	}
}

func TestGradeAllBatchResilience(t *testing.T) {
	exam := gradedExam()
	rec := scoring.Calculate(exam, nil)

	client := &fakeClient{
		results: map[string]Result{
			"a1": {Score: 20, Feedback: "ok"},
			"a3": {Score: 15, Feedback: "ok"},
		},
		errs: map[string]error{
			"a2": errors.New("connection refused"),
		},
	}

	reports := GradeAll(context.Background(), Collect(exam), rec, client, nil)

	byID := map[string]Report{}
	for _, r := range reports {
		byID[r.QuestionID] = r
	}
	if byID["a1"].Status != StatusCompleted || byID["a3"].Status != StatusCompleted {
		t.Errorf("neighbors of a failed question must complete: %+v", reports)
	}
	if byID["a2"].Status != StatusError || byID["a2"].Err == "" {
		t.Errorf("a2 should report the error: %+v", byID["a2"])
	}

	// The failed question keeps its pre-batch score.
	if got := rec.QuestionScores["s2"]["a2"]; got.ObtainedScore != 0 {
		t.Errorf("a2 score changed on failure: %+v", got)
	}
	if rec.SectionScores["s2"] != 35 {
		t.Errorf("section s2 = %v, want 35", rec.SectionScores["s2"])
	}
}

func TestMergeIsolation(t *testing.T) {
	exam := gradedExam()
	rec := scoring.Calculate(exam, nil)
	before := rec.Clone()

	if !Merge(rec, "a1", 12.5) {
		t.Fatal("merge should find a1")
	}

	for key, qs := range rec.QuestionScores {
		for id, s := range qs {
			if id == "a1" {
				continue
			}
			if s != before.QuestionScores[key][id] {
				t.Errorf("question %q disturbed by merge: %+v", id, s)
			}
		}
	}

	// Record invariant holds after the merge.
	var total float64
	for key, score := range rec.SectionScores {
		var qsum float64
		for _, s := range rec.QuestionScores[key] {
			qsum += s.ObtainedScore
		}
		if qsum != score {
			t.Errorf("section %q: %v != %v", key, qsum, score)
		}
		total += score
	}
	if total != rec.ObtainedScore {
		t.Errorf("total %v != obtained %v", total, rec.ObtainedScore)
	}
}

func TestMergeCorrectnessTolerance(t *testing.T) {
	exam := gradedExam()
	rec := scoring.Calculate(exam, nil)

	Merge(rec, "a1", 19.9995)
	if !rec.QuestionScores["s2"]["a1"].IsCorrect {
		t.Error("score within tolerance of max should be correct")
	}

	Merge(rec, "a1", 19.9)
	if rec.QuestionScores["s2"]["a1"].IsCorrect {
		t.Error("score outside tolerance should not be correct")
	}

	if Merge(rec, "unknown", 5) {
		t.Error("merge of unknown id should report false")
	}
}
