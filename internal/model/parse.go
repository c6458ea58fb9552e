package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidFormat reports a document missing its metadata or sections.
var ErrInvalidFormat = errors.New("invalid examination format")

// Parse decodes a JSON examination document and validates its structure.
// All optional fields may be absent; only metadata and sections are
// required. Option encodings are resolved here, never re-sniffed later.
func Parse(raw []byte) (*Examination, error) {
	var exam Examination
	if err := json.Unmarshal(raw, &exam); err != nil {
		return nil, fmt.Errorf("parse examination: %w", err)
	}
	if exam.Metadata == nil || exam.Sections == nil {
		return nil, ErrInvalidFormat
	}
	return &exam, nil
}

// optionWire covers both option encodings. encoding/json matches field
// names case-insensitively, so historical PascalCase keys decode too.
type optionWire struct {
	ID    *string `json:"id"`
	Text  *string `json:"text"`
	Item1 *string `json:"item1"`
	Item2 *string `json:"item2"`
}

// UnmarshalJSON resolves the option encoding once at decode time. An option
// carrying item1/item2 without id/text is tagged Legacy.
func (o *Option) UnmarshalJSON(data []byte) error {
	var w optionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.ID != nil || w.Text != nil:
		o.ID = deref(w.ID)
		o.Text = deref(w.Text)
		o.Legacy = false
	case w.Item1 != nil || w.Item2 != nil:
		o.ID = deref(w.Item1)
		o.Text = deref(w.Item2)
		o.Legacy = true
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
