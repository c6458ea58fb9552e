package store

import (
	"testing"
	"time"

	"github.com/openexams/examtaker/internal/model"
	"github.com/openexams/examtaker/internal/scoring"
	"github.com/openexams/examtaker/internal/session"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func storedExam() *model.Examination {
	return &model.Examination{
		Version:  &model.Version{Major: 2, Minor: 1, Patch: 0},
		Metadata: &model.Metadata{ExamID: "e1", Title: "History Quiz", TotalScore: 10},
		Sections: []model.Section{
			{SectionID: "s1", Title: "Part 1", Questions: []model.Question{
				{QuestionID: "q1", Type: model.TypeSingleChoice, Score: 10,
					Answer: []string{"A"}, UserAnswer: []string{"A"}},
			}},
		},
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	exam := storedExam()
	rec := scoring.Calculate(exam, nil)
	if err := s.SaveSession(session.PhaseCompleted, true, exam, rec); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	phase, study, gotExam, gotRec, err := s.LoadSession()
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if phase != session.PhaseCompleted {
		t.Errorf("phase = %q, want completed", phase)
	}
	if !study {
		t.Error("study mode flag lost")
	}
	if gotExam == nil || gotExam.Metadata.Title != "History Quiz" {
		t.Fatalf("exam not restored: %+v", gotExam)
	}
	if got := gotExam.Sections[0].Questions[0].UserAnswer; len(got) != 1 || got[0] != "A" {
		t.Errorf("user answer lost: %v", got)
	}
	if gotRec == nil || gotRec.ID != rec.ID {
		t.Fatalf("record not restored: %+v", gotRec)
	}
	if gotRec.ObtainedScore != 10 {
		t.Errorf("ObtainedScore = %g, want 10", gotRec.ObtainedScore)
	}
}

func TestLoadSessionEmpty(t *testing.T) {
	s := newTestStore(t)

	phase, study, exam, rec, err := s.LoadSession()
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if phase != session.PhaseEmpty || study || exam != nil || rec != nil {
		t.Errorf("empty store yielded phase=%q study=%v exam=%v rec=%v", phase, study, exam, rec)
	}
}

func TestSaveSessionOverwrites(t *testing.T) {
	s := newTestStore(t)

	exam := storedExam()
	rec := scoring.Calculate(exam, nil)
	if err := s.SaveSession(session.PhaseInProgress, false, exam, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSession(session.PhaseCompleted, false, exam, rec); err != nil {
		t.Fatal(err)
	}

	phase, _, _, _, err := s.LoadSession()
	if err != nil {
		t.Fatal(err)
	}
	if phase != session.PhaseCompleted {
		t.Errorf("phase = %q, want completed", phase)
	}
}

func TestClearSessionKeepsHistory(t *testing.T) {
	s := newTestStore(t)

	exam := storedExam()
	rec := scoring.Calculate(exam, nil)
	if err := s.SaveSession(session.PhaseCompleted, false, exam, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendHistory(rec); err != nil {
		t.Fatal(err)
	}

	if err := s.ClearSession(); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	phase, _, _, _, err := s.LoadSession()
	if err != nil {
		t.Fatal(err)
	}
	if phase != session.PhaseEmpty {
		t.Errorf("phase after clear = %q, want empty", phase)
	}

	entries, err := s.ListHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("history lost on clear: %d entries", len(entries))
	}
}

func TestHistoryOrderAndUpsert(t *testing.T) {
	s := newTestStore(t)

	exam := storedExam()
	first := scoring.Calculate(exam, nil)
	first.Timestamp = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	second := scoring.Calculate(exam, nil)
	second.Timestamp = time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := s.AppendHistory(first); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendHistory(second); err != nil {
		t.Fatal(err)
	}

	entries, err := s.ListHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != second.ID {
		t.Errorf("newest first: got %q, want %q", entries[0].ID, second.ID)
	}

	// Re-appending the same attempt updates it in place.
	second.ObtainedScore = 8
	if err := s.AppendHistory(second); err != nil {
		t.Fatal(err)
	}
	entries, err = s.ListHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("upsert duplicated a row: %d entries", len(entries))
	}
	if entries[0].ObtainedScore != 8 {
		t.Errorf("upsert did not update score: %g", entries[0].ObtainedScore)
	}
}

func TestGetHistoryRecord(t *testing.T) {
	s := newTestStore(t)

	exam := storedExam()
	rec := scoring.Calculate(exam, nil)
	if err := s.AppendHistory(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetHistoryRecord(rec.ID)
	if err != nil {
		t.Fatalf("GetHistoryRecord: %v", err)
	}
	if got == nil || got.ID != rec.ID || got.ObtainedScore != rec.ObtainedScore {
		t.Errorf("record mismatch: %+v", got)
	}

	missing, err := s.GetHistoryRecord("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown id, got %+v", missing)
	}
}
