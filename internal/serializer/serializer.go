// Package serializer converts between stored records and their JSON form.
//
// Input goes through per-field validators that are composed into one record
// validator. Each validator sees the raw JSON of its own field (or learns it
// was absent) and either fills the decoded input or records messages under
// the field name. The whole record is checked before anything is returned, so
// a client gets every problem in one response and nothing is half-applied.
//
// Output goes through plain structs with json tags. The struct is the wire
// contract; model types stay free of json tags.
package serializer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sakif/snippet-api/internal/apperror"
)

// Messages shared by the field validators. Clients match on this wording.
const (
	MsgRequired   = "This field is required."
	MsgBlank      = "This field may not be blank."
	MsgNull       = "This field may not be null."
	MsgNotString  = "Not a valid string."
	MsgNotBoolean = "Must be a valid boolean."
)

// Mode selects which presence rules apply to an input record.
type Mode int

const (
	// Create fills absent optional fields with their defaults.
	Create Mode = iota
	// Replace (PUT) requires every writable field.
	Replace
	// Patch (PATCH) validates only the fields that are present.
	Patch
)

func (m Mode) String() string {
	switch m {
	case Create:
		return "create"
	case Replace:
		return "replace"
	case Patch:
		return "patch"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Fields is a decoded JSON object with each value left raw, so validators can
// tell "absent" from "null" from "wrong type".
type Fields map[string]json.RawMessage

// ParseObject reads a JSON object from r.
//
// An empty body is an empty object, so a bare POST reports missing fields
// rather than a parse error. Malformed JSON is an apperror.ErrBadRequest;
// valid JSON that is not an object is a non-field validation error.
func ParseObject(r io.Reader) (Fields, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperror.BadRequest("Request body too large.")
		}
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Fields{}, nil
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, apperror.BadRequest("JSON parse error - " + err.Error())
	}

	if _, ok := v.(map[string]any); !ok {
		return nil, apperror.ValidationFailed("non_field_errors",
			fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", jsonKind(v)))
	}

	var fields Fields
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, apperror.BadRequest("JSON parse error - " + err.Error())
	}
	return fields, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "list"
	case string:
		return "str"
	case float64:
		return "int"
	case bool:
		return "bool"
	case nil:
		return "NoneType"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// isNull reports whether raw is the JSON literal null.
func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// FieldsOf builds Fields from Go values, for callers that are not decoding a
// request body (the createuser command, tests).
func FieldsOf(values map[string]any) (Fields, error) {
	fields := make(Fields, len(values))
	for name, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", name, err)
		}
		fields[name] = raw
	}
	return fields, nil
}
