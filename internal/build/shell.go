package build

import (
	"strings"

	"github.com/cruciblehq/bootpack/internal/crex"
	"mvdan.cc/sh/v3/syntax"
)

// Quotes s as a single POSIX shell word. Words without special characters
// are returned unchanged.
func quote(s string) (string, error) {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "", crex.Wrapf(ErrShellQuote, "%q: %w", s, err)
	}
	return q, nil
}

// Quotes each word and joins them with spaces.
func shellJoin(words ...string) (string, error) {
	quoted := make([]string, len(words))
	for i, w := range words {
		q, err := quote(w)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}

// Checks that a composed command parses as a POSIX shell program.
func checkScript(command string) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(strings.NewReader(command), "command"); err != nil {
		return crex.Wrapf(ErrShellQuote, "%q: %w", command, err)
	}
	return nil
}
