package model

// Version is the semantic version tag of an exam document schema. It is
// compared for presence and equality only; no ordering logic is applied.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// CurrentProtocolVersion is the schema version produced by this release.
var CurrentProtocolVersion = Version{Major: 2, Minor: 1, Patch: 0}

// ImageType tags where a reference-material image lives.
type ImageType int

const (
	ImageUnknown  ImageType = 0
	ImageLocal    ImageType = 1
	ImageRemote   ImageType = 2
	ImageEmbedded ImageType = 3
)

// ReferenceImage is an image attached to a reference material, either by
// URI or as an inline base64 payload.
type ReferenceImage struct {
	Type  ImageType `json:"type"`
	URI   string    `json:"uri,omitempty"`
	Image string    `json:"image,omitempty"`
}

// ReferenceMaterial is a block of supporting text with optional images.
type ReferenceMaterial struct {
	Materials []string         `json:"materials"`
	Images    []ReferenceImage `json:"images,omitempty"`
}

// Metadata describes an examination document.
type Metadata struct {
	ExamID             string              `json:"examId,omitempty"`
	Title              string              `json:"title"`
	Description        string              `json:"description,omitempty"`
	Subject            string              `json:"subject,omitempty"`
	Language           string              `json:"language,omitempty"`
	TotalScore         float64             `json:"totalScore"`
	ReferenceMaterials []ReferenceMaterial `json:"referenceMaterials,omitempty"`
}

// QuestionType enumerates the supported question formats (wire values 1-10).
type QuestionType int

const (
	TypeUnknown        QuestionType = 0
	TypeSingleChoice   QuestionType = 1
	TypeMultipleChoice QuestionType = 2
	TypeJudgment       QuestionType = 3
	TypeFillInTheBlank QuestionType = 4
	TypeMath           QuestionType = 5
	TypeEssay          QuestionType = 6
	TypeShortAnswer    QuestionType = 7
	TypeCalculation    QuestionType = 8
	TypeComplex        QuestionType = 9
	TypeOther          QuestionType = 10
)

// Label returns the human-readable description used in grading prompts.
func (t QuestionType) Label() string {
	switch t {
	case TypeSingleChoice:
		return "Single Choice Question"
	case TypeMultipleChoice:
		return "Multiple Choice Question"
	case TypeJudgment:
		return "True/False Question"
	case TypeFillInTheBlank:
		return "Fill in the Blank Question"
	case TypeMath:
		return "Mathematics Problem"
	case TypeEssay:
		return "Essay Question"
	case TypeShortAnswer:
		return "Short Answer Question"
	case TypeCalculation:
		return "Calculation Question"
	case TypeComplex:
		return "Complex Question with Multiple Parts"
	case TypeOther:
		return "Other Question Format"
	default:
		return "Unknown Question Type"
	}
}

// Option is one answer choice. Two wire encodings exist: the current
// {id,text} shape and a superseded positional {item1,item2} pair. The shape
// is resolved once while decoding; Legacy marks options that arrived in the
// old encoding so migration can count and rewrite them.
type Option struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Legacy bool   `json:"-"`
}

// Question is a single exam item. Answer holds the canonical answer tokens;
// ReferenceAnswer is extra context for AI grading prompts only. Commits are
// free-form grading instructions carried through to the grader.
type Question struct {
	QuestionID         string              `json:"questionId,omitempty"`
	Type               QuestionType        `json:"type"`
	Stem               string              `json:"stem"`
	Options            []Option            `json:"options,omitempty"`
	Score              float64             `json:"score"`
	Answer             []string            `json:"answer"`
	ReferenceAnswer    []string            `json:"referenceAnswer,omitempty"`
	UserAnswer         []string            `json:"userAnswer,omitempty"`
	IsAiJudge          bool                `json:"isAiJudge"`
	Commits            []string            `json:"commits,omitempty"`
	SubQuestions       []Question          `json:"subQuestions,omitempty"`
	ReferenceMaterials []ReferenceMaterial `json:"referenceMaterials,omitempty"`
}

// Answered reports whether the question has a non-empty user answer.
func (q *Question) Answered() bool {
	return len(q.UserAnswer) > 0
}

// Section groups an ordered run of questions.
type Section struct {
	SectionID          string              `json:"sectionId,omitempty"`
	Title              string              `json:"title"`
	Description        string              `json:"description,omitempty"`
	ReferenceMaterials []ReferenceMaterial `json:"referenceMaterials,omitempty"`
	Score              *float64            `json:"score,omitempty"`
	Questions          []Question          `json:"questions"`
}

// Key returns the section's identity for scoring purposes: the section ID,
// or the title when no ID is set. Every place sections are indexed must use
// this derived key.
func (s *Section) Key() string {
	if s.SectionID != "" {
		return s.SectionID
	}
	return s.Title
}

// MaxScore returns the section's declared score, or the sum of its question
// scores when none is declared.
func (s *Section) MaxScore() float64 {
	if s.Score != nil {
		return *s.Score
	}
	var sum float64
	for i := range s.Questions {
		sum += s.Questions[i].Score
	}
	return sum
}

// Examination is the root document aggregate.
type Examination struct {
	Version  *Version  `json:"examinationVersion,omitempty"`
	Metadata *Metadata `json:"examinationMetadata"`
	Sections []Section `json:"examinationSections"`
}
