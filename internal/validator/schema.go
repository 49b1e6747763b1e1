package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names a JSON schema that a model response must satisfy.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Validate checks a decoded document against the schema.
func (s Schema) Validate(doc any) error {
	if len(s.Definition) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(s.Definition),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%s: validation error: %w", s.Name, err)
	}

	if !result.Valid() {
		errors := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errors = append(errors, e.String())
		}
		return fmt.Errorf("%s: response does not match schema: %s", s.Name, strings.Join(errors, "; "))
	}
	return nil
}

// Decode extracts the JSON object from model text, validates it against the
// schema and unmarshals it into out.
func (s Schema) Decode(text string, out any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("%s: failed to parse JSON: %w", s.Name, err)
	}
	if err := s.Validate(doc); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", s.Name, err)
	}
	return nil
}

// ExtractJSON finds the first JSON object in model output. A reply that is
// itself an object is taken whole, so fences inside its strings survive. Otherwise
// the object after a ```json fence is preferred, then the first valid object in
// the text.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	var starts []int
	if strings.HasPrefix(text, "{") {
		starts = append(starts, 0)
	} else if fence := strings.Index(text, "```json"); fence != -1 {
		if brace := strings.Index(text[fence:], "{"); brace != -1 {
			starts = append(starts, fence+brace)
		}
	}
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return "", fmt.Errorf("no JSON object found in output")
	}

	balanced := false
	for _, start := range starts {
		obj, ok := balancedObject(text, start)
		if !ok {
			continue
		}
		balanced = true
		if json.Valid([]byte(obj)) {
			return obj, nil
		}
	}
	if !balanced {
		return "", fmt.Errorf("no matching closing brace found")
	}
	return "", fmt.Errorf("no valid JSON object found in output")
}

// balancedObject returns the brace-balanced span opening at text[start],
// ignoring braces inside strings.
func balancedObject(text string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
