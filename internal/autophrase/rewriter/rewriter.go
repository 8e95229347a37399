// Package rewriter implements the longest-match, left-to-right,
// non-overlapping phrase scan over a tokenized query and rebuilds the query
// string with every detected phrase collapsed into one term.
package rewriter

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/phrase"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/tokenizer"
)

// Options control how a matched phrase is emitted. The rewritten query only
// ever carries the joined form; IncludeOriginalTokens records the surface
// words of each match on Match.Tokens.
type Options struct {
	ReplacementChar       rune
	IncludeOriginalTokens bool
}

// Match describes one detected phrase.
type Match struct {
	Phrase phrase.Phrase `json:"phrase"`
	Joined string        `json:"joined"`
	Tokens []string      `json:"tokens,omitempty"`
	Start  int           `json:"start"`
	End    int           `json:"end"`
}

// Output is the rewritten query plus what was matched in it.
type Output struct {
	Query   string  `json:"query"`
	Matches []Match `json:"matches"`
}

// Rewriter is stateless apart from its immutable inputs and is safe for
// concurrent use.
type Rewriter struct {
	dict *phrase.Dictionary
	opts Options
}

func New(dict *phrase.Dictionary, opts Options) *Rewriter {
	return &Rewriter{dict: dict, opts: opts}
}

// Rewrite tokenizes query and rewrites it. It never fails: with no matching
// phrase the result is the query with whitespace runs collapsed.
func (rw *Rewriter) Rewrite(query string) Output {
	return rw.RewriteTokens(tokenizer.Tokenize(query))
}

// RewriteTokens runs the scan over an already tokenized query.
func (rw *Rewriter) RewriteTokens(tokens []tokenizer.Token) Output {
	out := Output{}
	var b emitter
	sep := string(rw.opts.ReplacementChar)

	for i := 0; i < len(tokens); {
		tok := tokens[i]
		switch tok.Kind {
		case tokenizer.Whitespace:
			b.space()
			i++
		case tokenizer.Structural:
			b.write(tok.Text)
			i++
		case tokenizer.Word:
			p, last, ok := rw.longestMatch(tokens, i)
			if !ok {
				b.write(tok.Text)
				i++
				continue
			}
			words := matchedWords(tokens[i:last+1], p, rw.dict.CaseInsensitive())
			joined := strings.Join(words, sep)
			b.write(joined)
			m := Match{
				Phrase: p,
				Joined: joined,
				Start:  tok.Start,
				End:    tokens[last].End,
			}
			if rw.opts.IncludeOriginalTokens {
				m.Tokens = tokenizer.Words(tokens[i : last+1])
			}
			out.Matches = append(out.Matches, m)
			i = last + 1
		}
	}
	out.Query = b.String()
	return out
}

// longestMatch tries the candidates for the word at i, longest first, and
// returns the first one whose words are matched by consecutive Word tokens
// separated only by whitespace. last is the index of the final matched token.
func (rw *Rewriter) longestMatch(tokens []tokenizer.Token, i int) (p phrase.Phrase, last int, ok bool) {
	for _, cand := range rw.dict.CandidatesStartingWith(tokens[i].Text) {
		if end, matched := rw.matchAt(tokens, i, cand); matched {
			return cand, end, true
		}
	}
	return nil, 0, false
}

func (rw *Rewriter) matchAt(tokens []tokenizer.Token, i int, cand phrase.Phrase) (int, bool) {
	pos := i
	for w := 1; w < len(cand); w++ {
		pos++
		for pos < len(tokens) && tokens[pos].Kind == tokenizer.Whitespace {
			pos++
		}
		if pos >= len(tokens) || tokens[pos].Kind != tokenizer.Word {
			return 0, false
		}
		if rw.dict.Normalize(tokens[pos].Text) != cand[w] {
			return 0, false
		}
	}
	return pos, true
}

// matchedWords picks the text emitted for a matched phrase: the surface text
// of each word, or the normalized dictionary words when matching ignores case.
func matchedWords(span []tokenizer.Token, p phrase.Phrase, caseInsensitive bool) []string {
	if caseInsensitive {
		return p
	}
	return tokenizer.Words(span)
}

// emitter concatenates output units. Whitespace becomes one space between
// units and is never emitted first or last.
type emitter struct {
	b            strings.Builder
	pendingSpace bool
}

func (e *emitter) space() {
	if e.b.Len() > 0 {
		e.pendingSpace = true
	}
}

func (e *emitter) write(s string) {
	if e.pendingSpace {
		e.b.WriteByte(' ')
		e.pendingSpace = false
	}
	e.b.WriteString(s)
}

func (e *emitter) String() string {
	return e.b.String()
}
