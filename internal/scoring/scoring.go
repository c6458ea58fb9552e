// Package scoring decides correctness and points for deterministic question
// types. Everything here is pure: no state, no side effects.
package scoring

import (
	"strings"

	"github.com/openexams/examtaker/internal/model"
)

// Result is the outcome of evaluating one question.
type Result struct {
	IsCorrect bool
	Score     float64
}

// Deterministic reports whether a question type can be graded by string
// comparison. The engine trusts this predicate, not the document's
// isAiJudge flag: subjective types are never autograded even when the flag
// says otherwise.
func Deterministic(t model.QuestionType) bool {
	switch t {
	case model.TypeSingleChoice, model.TypeMultipleChoice, model.TypeJudgment, model.TypeFillInTheBlank:
		return true
	default:
		return false
	}
}

// Evaluate scores a question against its recorded user answer. Subjective
// types and unanswered questions score zero; there is no partial credit at
// this layer.
func Evaluate(q *model.Question) Result {
	if len(q.UserAnswer) == 0 || len(q.Answer) == 0 {
		return Result{}
	}

	var correct bool
	switch q.Type {
	case model.TypeSingleChoice, model.TypeJudgment, model.TypeFillInTheBlank:
		correct = fold(q.UserAnswer[0]) == fold(q.Answer[0])
	case model.TypeMultipleChoice:
		correct = sameSet(q.UserAnswer, q.Answer)
	default:
		return Result{}
	}

	if !correct {
		return Result{}
	}
	return Result{IsCorrect: true, Score: q.Score}
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sameSet compares answer token sets: same membership, same cardinality,
// order-independent.
func sameSet(user, canonical []string) bool {
	us := tokenSet(user)
	cs := tokenSet(canonical)
	if len(us) != len(cs) {
		return false
	}
	for tok := range us {
		if _, ok := cs[tok]; !ok {
			return false
		}
	}
	return true
}

func tokenSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[fold(s)] = struct{}{}
	}
	return set
}
