package serializer

import (
	"encoding/json"
	"time"

	"github.com/sakif/snippet-api/internal/model"
)

// MaxTitleLength bounds Snippet.Title, counted in characters.
const MaxTitleLength = 100

// SnippetInput holds the writable fields of a snippet. A nil pointer means
// the client did not send the field, which only happens on Patch.
type SnippetInput struct {
	Title    *string
	Code     *string
	Linenos  *bool
	Language *string
	Style    *string
}

// Apply copies the supplied fields onto s and leaves the rest alone.
func (in SnippetInput) Apply(s *model.Snippet) {
	if in.Title != nil {
		s.Title = *in.Title
	}
	if in.Code != nil {
		s.Code = *in.Code
	}
	if in.Linenos != nil {
		s.Linenos = *in.Linenos
	}
	if in.Language != nil {
		s.Language = *in.Language
	}
	if in.Style != nil {
		s.Style = *in.Style
	}
}

func ptr[T any](v T) *T { return &v }

// snippetRecord lists the writable snippet fields. id, owner and created are
// deliberately missing: anything a client sends for them is ignored.
var snippetRecord = Record[SnippetInput]{
	{
		Name:    "title",
		Default: func(in *SnippetInput) { in.Title = ptr("") },
		Validate: func(raw json.RawMessage, in *SnippetInput) []string {
			v, errs := decodeString(raw, stringRule{allowBlank: true, trim: true, maxLen: MaxTitleLength})
			in.Title = &v
			return errs
		},
	},
	{
		Name:     "code",
		Required: true,
		Validate: func(raw json.RawMessage, in *SnippetInput) []string {
			// Leading indentation is part of the code, so the value is only
			// trimmed for the blank check.
			v, errs := decodeString(raw, stringRule{})
			in.Code = &v
			return errs
		},
	},
	{
		Name:    "linenos",
		Default: func(in *SnippetInput) { in.Linenos = ptr(false) },
		Validate: func(raw json.RawMessage, in *SnippetInput) []string {
			v, errs := decodeBool(raw)
			in.Linenos = &v
			return errs
		},
	},
	{
		Name:    "language",
		Default: func(in *SnippetInput) { in.Language = ptr(model.DefaultLanguage) },
		Validate: func(raw json.RawMessage, in *SnippetInput) []string {
			v, errs := decodeChoice(raw, model.IsLanguage)
			in.Language = &v
			return errs
		},
	},
	{
		Name:    "style",
		Default: func(in *SnippetInput) { in.Style = ptr(model.DefaultStyle) },
		Validate: func(raw json.RawMessage, in *SnippetInput) []string {
			v, errs := decodeChoice(raw, model.IsStyle)
			in.Style = &v
			return errs
		},
	},
}

// DecodeSnippet validates fields for the given mode.
func DecodeSnippet(fields Fields, mode Mode) (SnippetInput, error) {
	return snippetRecord.Validate(fields, mode)
}

// SnippetResponse is the wire form of a snippet.
type SnippetResponse struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Code     string    `json:"code"`
	Linenos  bool      `json:"linenos"`
	Language string    `json:"language"`
	Style    string    `json:"style"`
	Owner    string    `json:"owner"`
	Created  time.Time `json:"created"`
}

// NewSnippetResponse renders s. The owner is shown by username.
func NewSnippetResponse(s *model.Snippet) SnippetResponse {
	return SnippetResponse{
		ID:       s.ID,
		Title:    s.Title,
		Code:     s.Code,
		Linenos:  s.Linenos,
		Language: s.Language,
		Style:    s.Style,
		Owner:    s.OwnerUsername,
		Created:  s.CreatedAt.UTC(),
	}
}

// NewSnippetResponses renders a list, returning an empty (not nil) slice for
// no snippets so the JSON is [] rather than null.
func NewSnippetResponses(snippets []model.Snippet) []SnippetResponse {
	out := make([]SnippetResponse, 0, len(snippets))
	for i := range snippets {
		out = append(out, NewSnippetResponse(&snippets[i]))
	}
	return out
}
