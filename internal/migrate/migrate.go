// Package migrate upgrades exam documents from the legacy option encoding
// (positional item pairs) to the current id/text encoding and stamps the
// current protocol version.
package migrate

import (
	"fmt"
	"log/slog"

	"github.com/openexams/examtaker/internal/model"
)

// Migrate upgrades a document to the current protocol version. The input is
// never mutated; the returned document is a deep copy. The log holds a
// human-readable trace of the major steps. Running Migrate on an
// already-current document is a no-op with an updated count of zero.
func Migrate(doc *model.Examination) (*model.Examination, []string, error) {
	if doc == nil || doc.Metadata == nil || doc.Sections == nil {
		return nil, nil, model.ErrInvalidFormat
	}

	from := model.Version{Major: 1}
	if doc.Version != nil {
		from = *doc.Version
	}
	to := model.CurrentProtocolVersion

	log := []string{
		fmt.Sprintf("Starting upgrade from v%d.%d.%d to v%d.%d.%d",
			from.Major, from.Minor, from.Patch, to.Major, to.Minor, to.Patch),
	}

	upgraded := doc.Clone()
	v := to
	upgraded.Version = &v
	log = append(log, "Updated protocol version")

	var total, updated int
	for si := range upgraded.Sections {
		walkQuestions(upgraded.Sections[si].Questions, &total, &updated)
	}

	log = append(log, fmt.Sprintf("Processed %d questions, updated %d question options", total, updated))
	log = append(log, "Upgrade completed successfully")

	slog.Info("document migrated",
		"from", fmt.Sprintf("%d.%d.%d", from.Major, from.Minor, from.Patch),
		"to", fmt.Sprintf("%d.%d.%d", to.Major, to.Minor, to.Patch),
		"questions", total, "updated", updated)

	return upgraded, log, nil
}

// walkQuestions rewrites legacy options in place (on the copy) and recurses
// into sub-questions, counting visited and changed questions.
func walkQuestions(questions []model.Question, total, updated *int) {
	for i := range questions {
		q := &questions[i]
		*total++

		changed := false
		for oi := range q.Options {
			if q.Options[oi].Legacy {
				q.Options[oi].Legacy = false
				changed = true
			}
		}
		if changed {
			*updated++
		}

		if len(q.SubQuestions) > 0 {
			walkQuestions(q.SubQuestions, total, updated)
		}
	}
}
