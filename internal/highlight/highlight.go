// Package highlight renders a snippet as a standalone HTML page.
//
// The heavy lifting is done by chroma, a Go port of the Pygments
// highlighter. Language names map to chroma lexers and style names map to
// chroma styles, so the choices accepted by the model package are exactly
// the names chroma knows.
package highlight

import (
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Options controls one rendering.
type Options struct {
	Language string
	Style    string
	Linenos  bool
}

// Render writes code as a complete HTML document to w.
//
// Unknown languages fall back to plain text and unknown styles to chroma's
// default style. Validated snippets never hit either path, but rows written
// by an older release might.
func Render(w io.Writer, code string, opts Options) error {
	lexer := lexers.Get(opts.Language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	// Coalesce merges runs of identical tokens into one <span>.
	lexer = chroma.Coalesce(lexer)

	formatter := html.New(
		html.Standalone(true),
		html.WithLineNumbers(opts.Linenos),
		html.TabWidth(4),
	)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return fmt.Errorf("highlight: tokenising %s: %w", opts.Language, err)
	}

	if err := formatter.Format(w, styles.Get(opts.Style), iterator); err != nil {
		return fmt.Errorf("highlight: formatting: %w", err)
	}
	return nil
}

// HasLexer reports whether chroma has a dedicated lexer for language.
func HasLexer(language string) bool {
	return lexers.Get(language) != nil
}

// HasStyle reports whether chroma ships a style called name.
func HasStyle(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}
