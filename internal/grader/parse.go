package grader

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedResponse reports a collaborator reply with no parseable
// structured payload.
var ErrMalformedResponse = errors.New("malformed grading response")

var fencedJSONRegex = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// parseResult extracts the structured grading payload from a raw reply.
// A fenced ```json block is preferred; failing that, the first balanced
// top-level JSON object in the text is tried. When neither parses, the
// returned result is a zero-score, zero-confidence placeholder with a
// diagnostic feedback string alongside ErrMalformedResponse, so grading
// failures degrade to a visible zero instead of crashing the session.
func parseResult(raw string) (Result, error) {
	candidate := raw
	if m := fencedJSONRegex.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	} else if obj := firstJSONObject(raw); obj != "" {
		candidate = obj
	}

	var res Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &res); err != nil {
		return Result{
			Feedback: fmt.Sprintf("Error parsing AI response: %v", err),
		}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return res, nil
}

// firstJSONObject returns the first balanced top-level {...} span in s,
// ignoring braces inside string literals.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
