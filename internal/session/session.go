// Package session owns the lifecycle of a single local exam attempt: which
// document is loaded, whether the attempt is running, and the score record.
// All mutations publish complete copy-on-write snapshots, so a reader that
// grabbed the exam or record earlier never observes a half-updated value.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openexams/examtaker/internal/model"
	"github.com/openexams/examtaker/internal/scoring"
)

// Phase is the session's lifecycle state.
type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseLoaded     Phase = "loaded"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
)

// ErrUsage reports an operation invoked from the wrong phase or without its
// prerequisites. It is recoverable and changes no state.
var ErrUsage = errors.New("usage error")

// Session is the exam session state machine. The zero value is not usable;
// call New.
type Session struct {
	mu        sync.Mutex
	phase     Phase
	studyMode bool
	exam      *model.Examination
	record    *model.ScoreRecord
}

// New returns an empty session with no document loaded.
func New() *Session {
	return &Session{phase: PhaseEmpty}
}

// LoadExam installs a document and a fresh zeroed score record. Valid from
// any phase. A document without a version tag is stamped with the current
// protocol version; full legacy migration is a separate concern.
func (s *Session) LoadExam(exam *model.Examination) error {
	if exam == nil || exam.Metadata == nil || exam.Sections == nil {
		return model.ErrInvalidFormat
	}

	doc := exam.Clone()
	if doc.Version == nil {
		v := model.CurrentProtocolVersion
		doc.Version = &v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.exam = doc
	s.record = model.NewScoreRecord(doc)
	s.phase = PhaseLoaded
	s.studyMode = false
	slog.Info("exam loaded", "exam_id", doc.Metadata.ExamID, "title", doc.Metadata.Title, "sections", len(doc.Sections))
	return nil
}

// StartExam moves the session to InProgress. Valid from Loaded or, to
// restart an attempt, Completed. Study mode only changes which affordances
// a caller exposes; scoring semantics are identical.
func (s *Session) StartExam(studyMode bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLoaded && s.phase != PhaseCompleted {
		return fmt.Errorf("%w: cannot start exam from phase %q", ErrUsage, s.phase)
	}
	if s.phase == PhaseCompleted {
		// Restarting discards the previous attempt's scores.
		s.record = model.NewScoreRecord(s.exam)
	}
	s.phase = PhaseInProgress
	s.studyMode = studyMode
	slog.Info("exam started", "study_mode", studyMode)
	return nil
}

// UpdateUserAnswer writes an answer into the identified question. Only the
// touched section and question are cloned; untouched sections are shared
// with the previous snapshot. Out-of-range indices and a missing document
// are recoverable usage errors: the call logs and returns without change.
func (s *Session) UpdateUserAnswer(sectionIndex, questionIndex int, answer []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseInProgress || s.exam == nil {
		slog.Debug("answer update ignored", "phase", s.phase)
		return
	}
	if sectionIndex < 0 || sectionIndex >= len(s.exam.Sections) {
		slog.Debug("answer update ignored: section out of range", "section", sectionIndex)
		return
	}
	if questionIndex < 0 || questionIndex >= len(s.exam.Sections[sectionIndex].Questions) {
		slog.Debug("answer update ignored: question out of range", "section", sectionIndex, "question", questionIndex)
		return
	}

	next := *s.exam
	next.Sections = append([]model.Section(nil), s.exam.Sections...)
	section := next.Sections[sectionIndex]
	section.Questions = append([]model.Question(nil), section.Questions...)
	q := section.Questions[questionIndex].Clone()
	q.UserAnswer = append([]string(nil), answer...)
	section.Questions[questionIndex] = q
	next.Sections[sectionIndex] = section
	s.exam = &next
}

// EndExam runs the deterministic scoring pass over every question and moves
// the session to Completed. The pass is a total recompute, which would wipe
// any AI-assigned scores, so re-ending a completed attempt is rejected
// instead of silently rescoring.
func (s *Session) EndExam() (*model.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseCompleted {
		return nil, fmt.Errorf("%w: exam already completed", ErrUsage)
	}
	if s.phase != PhaseInProgress {
		return nil, fmt.Errorf("%w: cannot end exam from phase %q", ErrUsage, s.phase)
	}

	s.record = scoring.Calculate(s.exam, s.record)
	s.phase = PhaseCompleted
	slog.Info("exam completed", "obtained", s.record.ObtainedScore, "total", s.record.TotalScore)
	return s.record.Clone(), nil
}

// ApplyRecord replaces the score record snapshot. The grading orchestrator
// uses this to publish targeted AI merges.
func (s *Session) ApplyRecord(rec *model.ScoreRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = rec.Clone()
}

// ResetExam clears the document, record, and mode flags. Valid from any
// phase.
func (s *Session) ResetExam() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exam = nil
	s.record = nil
	s.studyMode = false
	s.phase = PhaseEmpty
	slog.Info("session reset")
}

// Restore rehydrates a persisted session without running transitions.
func (s *Session) Restore(phase Phase, studyMode bool, exam *model.Examination, rec *model.ScoreRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.studyMode = studyMode
	s.exam = exam.Clone()
	s.record = rec.Clone()
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// StudyMode reports whether the current attempt runs in study mode.
func (s *Session) StudyMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studyMode
}

// Exam returns the current document snapshot, or nil when empty. The
// snapshot is safe to read while the session keeps mutating.
func (s *Session) Exam() *model.Examination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam
}

// Record returns the current score record snapshot, or nil when empty.
func (s *Session) Record() *model.ScoreRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}
