package model

// Clone returns a deep copy of the examination. Snapshot mutation paths
// (answer updates, migration) operate on clones so a previously published
// document is never modified in place.
func (e *Examination) Clone() *Examination {
	if e == nil {
		return nil
	}
	out := &Examination{}
	if e.Version != nil {
		v := *e.Version
		out.Version = &v
	}
	if e.Metadata != nil {
		m := *e.Metadata
		m.ReferenceMaterials = cloneMaterials(e.Metadata.ReferenceMaterials)
		out.Metadata = &m
	}
	if e.Sections != nil {
		out.Sections = make([]Section, len(e.Sections))
		for i := range e.Sections {
			out.Sections[i] = e.Sections[i].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the section.
func (s *Section) Clone() Section {
	out := *s
	out.ReferenceMaterials = cloneMaterials(s.ReferenceMaterials)
	if s.Score != nil {
		sc := *s.Score
		out.Score = &sc
	}
	if s.Questions != nil {
		out.Questions = make([]Question, len(s.Questions))
		for i := range s.Questions {
			out.Questions[i] = s.Questions[i].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the question, including sub-questions.
func (q *Question) Clone() Question {
	out := *q
	out.Options = append([]Option(nil), q.Options...)
	out.Answer = append([]string(nil), q.Answer...)
	out.ReferenceAnswer = append([]string(nil), q.ReferenceAnswer...)
	out.UserAnswer = append([]string(nil), q.UserAnswer...)
	out.Commits = append([]string(nil), q.Commits...)
	out.ReferenceMaterials = cloneMaterials(q.ReferenceMaterials)
	if q.SubQuestions != nil {
		out.SubQuestions = make([]Question, len(q.SubQuestions))
		for i := range q.SubQuestions {
			out.SubQuestions[i] = q.SubQuestions[i].Clone()
		}
	}
	return out
}

func cloneMaterials(in []ReferenceMaterial) []ReferenceMaterial {
	if in == nil {
		return nil
	}
	out := make([]ReferenceMaterial, len(in))
	for i, m := range in {
		out[i] = ReferenceMaterial{
			Materials: append([]string(nil), m.Materials...),
			Images:    append([]ReferenceImage(nil), m.Images...),
		}
	}
	return out
}
