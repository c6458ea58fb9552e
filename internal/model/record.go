package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionScore is the scoring outcome for one question in one attempt.
type QuestionScore struct {
	QuestionID    string  `json:"questionId"`
	MaxScore      float64 `json:"maxScore"`
	ObtainedScore float64 `json:"obtainedScore"`
	IsCorrect     bool    `json:"isCorrect"`
}

// ScoreRecord is the scoring artifact for one exam attempt. Invariant:
// ObtainedScore equals the sum of SectionScores, and each section score
// equals the sum of its question scores. Every score mutation re-establishes
// this by summation.
type ScoreRecord struct {
	ID             string                              `json:"id"`
	ExamID         string                              `json:"examId"`
	ExamTitle      string                              `json:"examTitle"`
	UserID         string                              `json:"userId"`
	UserName       string                              `json:"userName"`
	Timestamp      time.Time                           `json:"timestamp"`
	TotalScore     float64                             `json:"totalScore"`
	ObtainedScore  float64                             `json:"obtainedScore"`
	SectionScores  map[string]float64                  `json:"sectionScores"`
	QuestionScores map[string]map[string]QuestionScore `json:"questionScores"`
}

// NewScoreRecord creates a zeroed record for the given document. The system
// models a single local user; the identity fields are placeholders.
func NewScoreRecord(exam *Examination) *ScoreRecord {
	rec := &ScoreRecord{
		ID:             uuid.NewString(),
		UserID:         "local-user",
		UserName:       "Local User",
		Timestamp:      time.Now(),
		SectionScores:  map[string]float64{},
		QuestionScores: map[string]map[string]QuestionScore{},
	}
	if exam != nil && exam.Metadata != nil {
		rec.ExamID = exam.Metadata.ExamID
		rec.ExamTitle = exam.Metadata.Title
		rec.TotalScore = exam.Metadata.TotalScore
	}
	return rec
}

// Clone returns a deep copy of the record.
func (r *ScoreRecord) Clone() *ScoreRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.SectionScores = make(map[string]float64, len(r.SectionScores))
	for k, v := range r.SectionScores {
		out.SectionScores[k] = v
	}
	out.QuestionScores = make(map[string]map[string]QuestionScore, len(r.QuestionScores))
	for k, qs := range r.QuestionScores {
		m := make(map[string]QuestionScore, len(qs))
		for id, s := range qs {
			m[id] = s
		}
		out.QuestionScores[k] = m
	}
	return &out
}

// Lookup finds the score entry for a question id, returning its section key.
func (r *ScoreRecord) Lookup(questionID string) (sectionKey string, score QuestionScore, ok bool) {
	for key, qs := range r.QuestionScores {
		if s, found := qs[questionID]; found {
			return key, s, true
		}
	}
	return "", QuestionScore{}, false
}
