// Package grader obtains scores for AI-judged questions from an external
// grading collaborator and merges them into the score record.
package grader

import (
	"context"
	"log/slog"
	"math"

	"github.com/openexams/examtaker/internal/model"
)

// scoreTolerance is the float tolerance used to derive correctness from the
// merged score instead of trusting the collaborator's own flag.
const scoreTolerance = 0.001

// Result is the structured payload expected from the grading collaborator.
type Result struct {
	IsCorrect       bool        `json:"isCorrect"`
	Score           float64     `json:"score"`
	MaxScore        float64     `json:"maxScore"`
	ConfidenceLevel float64     `json:"confidenceLevel"`
	Dimensions      []Dimension `json:"dimensions,omitempty"`
	Feedback        string      `json:"feedback"`
}

// Dimension is a named sub-score for essay and short-answer grading.
type Dimension struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"maxScore"`
}

// Client is the grading collaborator contract. Grade blocks until the
// collaborator answers or fails; timeouts are the collaborator's concern.
type Client interface {
	Grade(ctx context.Context, q *model.Question) (Result, error)
}

// Status tracks one question's progress through a grading batch.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Report is the per-question outcome of a grading batch.
type Report struct {
	QuestionID string `json:"questionId"`
	Status     Status `json:"status"`
	Feedback   string `json:"feedback,omitempty"`
	Err        string `json:"error,omitempty"`
}

// Collect returns the questions that define the grading workload: those
// flagged for AI judgment that the user actually answered, in document
// order.
func Collect(exam *model.Examination) []*model.Question {
	if exam == nil {
		return nil
	}
	var out []*model.Question
	for si := range exam.Sections {
		qs := exam.Sections[si].Questions
		for qi := range qs {
			if qs[qi].IsAiJudge && qs[qi].Answered() {
				out = append(out, &qs[qi])
			}
		}
	}
	return out
}

// GradeAll grades the collected questions strictly sequentially: the
// collaborator may be rate limited, and a one-at-a-time loop gives callers
// a stable incrementally-updating status feed. A failed question is
// reported and skipped; it never aborts the batch. Merges mutate rec in
// place; pass a clone if the previous record must survive.
//
// The progress callback, when non-nil, observes every status change.
func GradeAll(ctx context.Context, questions []*model.Question, rec *model.ScoreRecord, client Client, progress func(Report)) []Report {
	reports := make([]Report, 0, len(questions))

	notify := func(r Report) {
		if progress != nil {
			progress(r)
		}
	}

	for _, q := range questions {
		if q.QuestionID == "" {
			continue
		}
		notify(Report{QuestionID: q.QuestionID, Status: StatusPending})

		res, err := client.Grade(ctx, q)
		if err != nil {
			slog.Warn("AI grading failed", "question_id", q.QuestionID, "error", err)
			r := Report{QuestionID: q.QuestionID, Status: StatusError, Feedback: res.Feedback, Err: err.Error()}
			reports = append(reports, r)
			notify(r)
			continue
		}

		Merge(rec, q.QuestionID, res.Score)
		r := Report{QuestionID: q.QuestionID, Status: StatusCompleted, Feedback: res.Feedback}
		reports = append(reports, r)
		notify(r)
		slog.Info("AI grading merged", "question_id", q.QuestionID, "score", res.Score, "confidence", res.ConfidenceLevel)
	}

	return reports
}

// Merge writes one AI-assigned score into the record without disturbing any
// other question. The touched section total and the grand total are re-summed
// so the record invariant holds after every merge. Correctness is derived
// from the merged score against the question's max, within tolerance.
func Merge(rec *model.ScoreRecord, questionID string, score float64) bool {
	for sectionKey, qs := range rec.QuestionScores {
		entry, ok := qs[questionID]
		if !ok {
			continue
		}

		entry.ObtainedScore = score
		entry.IsCorrect = math.Abs(score-entry.MaxScore) < scoreTolerance
		qs[questionID] = entry

		var sectionTotal float64
		for _, s := range qs {
			sectionTotal += s.ObtainedScore
		}
		rec.SectionScores[sectionKey] = sectionTotal

		var grandTotal float64
		for _, s := range rec.SectionScores {
			grandTotal += s
		}
		rec.ObtainedScore = grandTotal
		return true
	}
	return false
}
