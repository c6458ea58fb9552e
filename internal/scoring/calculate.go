package scoring

import (
	"time"

	"github.com/openexams/examtaker/internal/model"
)

// Calculate builds a complete score record for the document. The pass is
// total: section and question maps are rebuilt from scratch, so running it
// twice over the same answers yields identical results apart from the
// timestamp. AI-judged questions get a provisional 0/false entry that the
// grading orchestrator fills in later; an earlier AI merge does not survive
// a recompute, which is why the session only allows one end-of-exam pass
// per attempt.
//
// Questions without an id are excluded from scoring entirely. That is a
// documented boundary of the schema, not something to patch with invented
// ids.
func Calculate(exam *model.Examination, prev *model.ScoreRecord) *model.ScoreRecord {
	rec := prev.Clone()
	if rec == nil {
		rec = model.NewScoreRecord(exam)
	}
	if exam.Metadata != nil {
		rec.TotalScore = exam.Metadata.TotalScore
	}

	rec.SectionScores = map[string]float64{}
	rec.QuestionScores = map[string]map[string]model.QuestionScore{}

	var totalObtained float64
	for si := range exam.Sections {
		section := &exam.Sections[si]
		key := section.Key()

		var sectionScore float64
		questionScores := map[string]model.QuestionScore{}

		for qi := range section.Questions {
			q := &section.Questions[qi]
			if q.QuestionID == "" {
				continue
			}

			var res Result
			if Deterministic(q.Type) && !q.IsAiJudge {
				res = Evaluate(q)
			}

			questionScores[q.QuestionID] = model.QuestionScore{
				QuestionID:    q.QuestionID,
				MaxScore:      q.Score,
				ObtainedScore: res.Score,
				IsCorrect:     res.IsCorrect,
			}
			sectionScore += res.Score
		}

		rec.SectionScores[key] = sectionScore
		rec.QuestionScores[key] = questionScores
		totalObtained += sectionScore
	}

	rec.ObtainedScore = totalObtained
	rec.Timestamp = time.Now()
	return rec
}
