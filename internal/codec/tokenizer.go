package codec

import (
	"io"
	"strconv"
	"strings"

	"multimesh/internal/mesherr"
)

// tokenizer splits a text document into whitespace-delimited tokens.
//
// Blank lines and lines whose first non-blank character is '#' are skipped.
// Tokens never span lines, so callers can ask for the rest of the current
// line without consuming the next one.
type tokenizer struct {
	lines []string
	pos   int // index of the next unread line
	buf   []string
	line  int // 1-based line of the last returned token
}

// readTokenizer buffers all of r. Read failures are reported as Io errors.
func readTokenizer(r io.Reader) (*tokenizer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, mesherr.Io(err)
	}
	return newTokenizer(string(data)), nil
}

func newTokenizer(data string) *tokenizer {
	return &tokenizer{lines: strings.Split(data, "\n")}
}

// Line returns the line of the most recently returned token.
func (t *tokenizer) Line() int {
	return t.line
}

// fill loads the next non-empty, non-comment line into buf.
func (t *tokenizer) fill() bool {
	for t.pos < len(t.lines) {
		raw := t.lines[t.pos]
		t.pos++
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		t.buf = strings.Fields(trimmed)
		t.line = t.pos
		return true
	}
	return false
}

// Next returns the next token, moving to following lines as needed.
func (t *tokenizer) Next() (string, bool) {
	for len(t.buf) == 0 {
		if !t.fill() {
			return "", false
		}
	}
	tok := t.buf[0]
	t.buf = t.buf[1:]
	return tok, true
}

// NextInLine returns the next token of the current line only.
func (t *tokenizer) NextInLine() (string, bool) {
	if len(t.buf) == 0 {
		return "", false
	}
	tok := t.buf[0]
	t.buf = t.buf[1:]
	return tok, true
}

// RestOfLine consumes and returns the remaining tokens of the current line.
func (t *tokenizer) RestOfLine() []string {
	rest := t.buf
	t.buf = nil
	return rest
}

// Expect returns the next token or a Syntax error naming what was missing.
func (t *tokenizer) Expect(what string) (string, error) {
	tok, ok := t.Next()
	if !ok {
		return "", mesherr.Syntax(t.line, "unexpected end of input, expected %s", what)
	}
	return tok, nil
}

// ExpectInLine is Expect restricted to the current line.
func (t *tokenizer) ExpectInLine(what string) (string, error) {
	tok, ok := t.NextInLine()
	if !ok {
		return "", mesherr.Syntax(t.line, "unexpected end of line, expected %s", what)
	}
	return tok, nil
}

// Float reads a token that must parse as a 64-bit float.
func (t *tokenizer) Float(what string) (float64, error) {
	tok, err := t.Expect(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, mesherr.Syntax(t.line, "invalid %s %q", what, tok)
	}
	return v, nil
}

// FloatText reads a token that must parse as a float and returns it verbatim.
func (t *tokenizer) FloatText(what string) (string, error) {
	tok, err := t.Expect(what)
	if err != nil {
		return "", err
	}
	if _, err := strconv.ParseFloat(tok, 64); err != nil {
		return "", mesherr.Syntax(t.line, "invalid %s %q", what, tok)
	}
	return tok, nil
}

// Count reads a non-negative integer.
func (t *tokenizer) Count(what string) (int, error) {
	tok, err := t.Expect(what)
	if err != nil {
		return 0, err
	}
	return parseCount(tok, what, t.line)
}

// CountInLine reads a non-negative integer from the current line.
func (t *tokenizer) CountInLine(what string) (int, error) {
	tok, err := t.ExpectInLine(what)
	if err != nil {
		return 0, err
	}
	return parseCount(tok, what, t.line)
}

func parseCount(tok, what string, line int) (int, error) {
	v, err := strconv.ParseUint(tok, 10, 63)
	if err != nil {
		return 0, mesherr.Syntax(line, "invalid %s %q", what, tok)
	}
	return int(v), nil
}
