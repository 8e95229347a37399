// Package tokenizer splits a raw query string into word, structural and
// whitespace segments. Only word segments are eligible for phrase matching;
// structural segments (field:value pairs, quoted sub-queries, operators and
// modified terms such as chair* or wheel~2) are carried through verbatim.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a Token.
type Kind int

const (
	Word Kind = iota
	Structural
	Whitespace
)

func (k Kind) String() string {
	switch k {
	case Word:
		return "word"
	case Structural:
		return "structural"
	case Whitespace:
		return "whitespace"
	default:
		return "unknown"
	}
}

// Token is one segment of a query. Start and End are byte offsets into the
// query, so query[Start:End] == Text.
type Token struct {
	Kind  Kind
	Text  string
	Start int
	End   int
}

// termModifiers may directly follow a word to turn it into a wildcard,
// fuzzy or boosted term.
const termModifiers = "*?~^"

// Tokenize scans query left to right. The result covers every byte of the
// input in order.
func Tokenize(query string) []Token {
	tokens := make([]Token, 0, len(query)/4+1)
	i := 0
	for i < len(query) {
		r, size := utf8.DecodeRuneInString(query[i:])
		start := i
		switch {
		case unicode.IsSpace(r):
			i = scanWhile(query, i, unicode.IsSpace)
			tokens = append(tokens, Token{Kind: Whitespace, Text: query[start:i], Start: start, End: i})
		case r == '"':
			i = scanQuoted(query, i)
			tokens = append(tokens, Token{Kind: Structural, Text: query[start:i], Start: start, End: i})
		case isWordRune(r):
			i = scanWhile(query, i, isWordRune)
			kind := Word
			if end, ok := scanFieldValue(query, i); ok {
				i, kind = end, Structural
			} else if end, ok := scanModified(query, i); ok {
				i, kind = end, Structural
			}
			tokens = append(tokens, Token{Kind: kind, Text: query[start:i], Start: start, End: i})
		default:
			i += size
			i = scanWhile(query, i, isOther)
			tokens = append(tokens, Token{Kind: Structural, Text: query[start:i], Start: start, End: i})
		}
	}
	return tokens
}

// Words returns the text of the word tokens only.
func Words(tokens []Token) []string {
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind == Word {
			words = append(words, t.Text)
		}
	}
	return words
}

// IsWord reports whether s is exactly one Word token, i.e. text the rewriter
// could match as a single phrase word.
func IsWord(s string) bool {
	return s != "" && scanWhile(s, 0, isWordRune) == len(s)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isOther(r rune) bool {
	return !isWordRune(r) && !unicode.IsSpace(r) && r != '"'
}

func scanWhile(s string, i int, pred func(rune) bool) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !pred(r) {
			break
		}
		i += size
	}
	return i
}

// scanQuoted returns the offset just past the closing quote of the quoted
// string starting at i, or len(s) when it is unterminated.
func scanQuoted(s string, i int) int {
	end := strings.IndexByte(s[i+1:], '"')
	if end < 0 {
		return len(s)
	}
	return i + 1 + end + 1
}

// scanFieldValue recognizes ":value" right after a word. The value is a
// quoted string or a run of non-space characters.
func scanFieldValue(s string, i int) (int, bool) {
	if i+1 >= len(s) || s[i] != ':' {
		return i, false
	}
	r, _ := utf8.DecodeRuneInString(s[i+1:])
	if unicode.IsSpace(r) {
		return i, false
	}
	if r == '"' {
		return scanQuoted(s, i+1), true
	}
	return scanWhile(s, i+1, func(r rune) bool { return !unicode.IsSpace(r) }), true
}

// scanModified recognizes term modifiers glued to a word, e.g. chair*,
// wh?el, wheel~2 or chair^1.5.
func scanModified(s string, i int) (int, bool) {
	if i >= len(s) || strings.IndexByte(termModifiers, s[i]) < 0 {
		return i, false
	}
	end := scanWhile(s, i, func(r rune) bool {
		return isWordRune(r) || r == '.' || strings.ContainsRune(termModifiers, r)
	})
	return end, true
}
