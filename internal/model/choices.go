package model

import "sort"

// Defaults applied when a create payload omits the field.
const (
	DefaultLanguage = "python"
	DefaultStyle    = "friendly"
)

// languages is the fixed set of accepted snippet languages. Every entry is a
// lexer name understood by the highlight package.
var languages = map[string]struct{}{
	"bash": {}, "c": {}, "clojure": {}, "cpp": {}, "csharp": {}, "css": {},
	"dart": {}, "docker": {}, "elixir": {}, "erlang": {}, "go": {}, "haskell": {},
	"html": {}, "java": {}, "javascript": {}, "json": {}, "kotlin": {}, "lua": {},
	"makefile": {}, "markdown": {}, "ocaml": {}, "perl": {}, "php": {},
	"python": {}, "python2": {}, "r": {}, "ruby": {}, "rust": {}, "scala": {},
	"sql": {}, "swift": {}, "text": {}, "toml": {}, "typescript": {}, "xml": {},
	"yaml": {},
}

// styles is the fixed set of accepted display styles.
var styles = map[string]struct{}{
	"abap": {}, "algol": {}, "autumn": {}, "borland": {}, "bw": {},
	"colorful": {}, "dracula": {}, "emacs": {}, "friendly": {}, "fruity": {},
	"github": {}, "igor": {}, "lovelace": {}, "manni": {}, "monokai": {},
	"murphy": {}, "native": {}, "paraiso-dark": {}, "paraiso-light": {},
	"pastie": {}, "perldoc": {}, "rrt": {}, "solarized-dark": {},
	"solarized-light": {}, "tango": {}, "trac": {}, "vim": {}, "vs": {},
	"xcode": {},
}

// IsLanguage reports whether name is a supported language.
func IsLanguage(name string) bool {
	_, ok := languages[name]
	return ok
}

// IsStyle reports whether name is a supported display style.
func IsStyle(name string) bool {
	_, ok := styles[name]
	return ok
}

// Languages returns the supported languages in sorted order.
func Languages() []string { return sortedKeys(languages) }

// Styles returns the supported styles in sorted order.
func Styles() []string { return sortedKeys(styles) }

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
