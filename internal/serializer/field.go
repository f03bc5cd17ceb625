package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sakif/snippet-api/internal/apperror"
)

// Field validates one named member of an input object and stores the decoded
// value into T. Validate returns the messages to report for the field, or nil.
type Field[T any] struct {
	Name string
	// Required fields must be present on Create. Every field is required on
	// Replace, none on Patch.
	Required bool
	// Default runs on Create when the field is absent.
	Default  func(*T)
	Validate func(raw json.RawMessage, into *T) []string
}

// Record is the composed validator for one input type. Fields not listed are
// ignored, which is how read-only fields such as id or owner are dropped.
type Record[T any] []Field[T]

// Validate runs every field validator against fields and returns the decoded
// input, or an apperror.ValidationErrors carrying every failure at once.
func (r Record[T]) Validate(fields Fields, mode Mode) (T, error) {
	var out T
	errs := apperror.ValidationErrors{}

	for _, f := range r {
		raw, present := fields[f.Name]
		if !present {
			switch {
			case mode == Patch:
			case mode == Replace, f.Required:
				errs.Add(f.Name, MsgRequired)
			case f.Default != nil:
				f.Default(&out)
			}
			continue
		}
		for _, msg := range f.Validate(raw, &out) {
			errs.Add(f.Name, msg)
		}
	}

	if err := errs.Err(); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// stringRule describes how a text field is checked.
type stringRule struct {
	allowBlank bool
	trim       bool // store the trimmed value
	maxLen     int  // in characters; 0 means unlimited
}

// decodeString accepts JSON strings and numbers (stored as their literal
// text). Booleans, arrays and objects are rejected.
func decodeString(raw json.RawMessage, rule stringRule) (string, []string) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return "", []string{MsgNull}
	}

	var s string
	switch {
	case len(raw) > 0 && raw[0] == '"':
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", []string{MsgNotString}
		}
	case isNumber(raw):
		s = string(raw)
	default:
		return "", []string{MsgNotString}
	}

	if rule.trim {
		s = strings.TrimSpace(s)
	}
	if !rule.allowBlank && strings.TrimSpace(s) == "" {
		return "", []string{MsgBlank}
	}
	if rule.maxLen > 0 && utf8.RuneCountInString(s) > rule.maxLen {
		return "", []string{fmt.Sprintf("Ensure this field has no more than %d characters.", rule.maxLen)}
	}
	return s, nil
}

func isNumber(raw json.RawMessage) bool {
	var n json.Number
	return json.Unmarshal(raw, &n) == nil
}

var (
	trueValues  = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "on": true, "1": true}
	falseValues = map[string]bool{"false": true, "f": true, "no": true, "n": true, "off": true, "0": true}
)

// decodeBool accepts JSON booleans, 0 and 1, and the usual spellings of
// yes/no that form-encoded clients send as strings.
func decodeBool(raw json.RawMessage) (bool, []string) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return false, []string{MsgNull}
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, []string{MsgNotBoolean}
	}

	var text string
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		text = string(raw)
	case string:
		text = strings.ToLower(strings.TrimSpace(t))
	default:
		return false, []string{MsgNotBoolean}
	}

	switch {
	case trueValues[text]:
		return true, nil
	case falseValues[text]:
		return false, nil
	default:
		return false, []string{MsgNotBoolean}
	}
}

// decodeChoice checks the value against a fixed set. The error quotes what
// the client sent so they can see which value was refused.
func decodeChoice(raw json.RawMessage, valid func(string) bool) (string, []string) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return "", []string{MsgNull}
	}

	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = s
		if valid(s) {
			return s, nil
		}
	}
	return "", []string{fmt.Sprintf(`"%s" is not a valid choice.`, text)}
}
