// Package phrase holds the normalized dictionary of configured multi-word
// phrases. A Dictionary is built once from the lines of a phrase list and is
// read-only afterwards, so any number of goroutines may query it.
package phrase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

// Phrase is an ordered sequence of at least two normalized words.
type Phrase []string

// Len returns the number of words in the phrase.
func (p Phrase) Len() int { return len(p) }

// Join joins the words with sep.
func (p Phrase) Join(sep string) string { return strings.Join(p, sep) }

func (p Phrase) String() string { return p.Join(" ") }

// BuildStats reports what happened to the input lines during a build.
type BuildStats struct {
	Lines       int `json:"lines"`
	Kept        int `json:"kept"`
	Comments    int `json:"comments"`
	SingleWord  int `json:"single_word"`
	Duplicates  int `json:"duplicates"`
	Unmatchable int `json:"unmatchable"`
}

// Dictionary maps a normalized first word to the phrases starting with it,
// longest first. Equal-length phrases keep the order they were built in.
type Dictionary struct {
	byFirst         map[string][]Phrase
	ordered         []Phrase
	caseInsensitive bool
	stats           BuildStats
}

// Build creates a Dictionary from phrase-list lines. Blank lines, lines
// starting with '#', and lines with fewer than two words are dropped, as are
// lines with a word that does not tokenize as a plain word (wi-fi, at&t,
// chair*), since no query could ever match them.
func Build(lines []string, caseInsensitive bool) *Dictionary {
	d := &Dictionary{
		byFirst:         make(map[string][]Phrase),
		caseInsensitive: caseInsensitive,
	}
	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(lines))

	for _, line := range lines {
		d.stats.Lines++
		line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			d.stats.Comments++
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 {
			d.stats.SingleWord++
			continue
		}
		if !allWords(words) {
			d.stats.Unmatchable++
			continue
		}
		if caseInsensitive {
			for i, w := range words {
				words[i] = lower.String(w)
			}
		}
		key := strings.Join(words, " ")
		if _, dup := seen[key]; dup {
			d.stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		p := Phrase(words)
		d.ordered = append(d.ordered, p)
		d.byFirst[p[0]] = append(d.byFirst[p[0]], p)
		d.stats.Kept++
	}

	for _, candidates := range d.byFirst {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Len() > candidates[j].Len()
		})
	}
	return d
}

func allWords(words []string) bool {
	for _, w := range words {
		if !tokenizer.IsWord(w) {
			return false
		}
	}
	return true
}

// LineSource yields the lines of a named phrase-list resource.
type LineSource interface {
	Lines(ctx context.Context, resource string) ([]string, error)
}

// BuildFrom reads resource through src and builds a Dictionary from it. A
// read failure is reported as a configuration error and no Dictionary is
// returned.
func BuildFrom(ctx context.Context, src LineSource, resource string, caseInsensitive bool) (*Dictionary, error) {
	lines, err := src.Lines(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("%w: reading phrase list %q: %w", apperrors.ErrConfiguration, resource, err)
	}
	return Build(lines, caseInsensitive), nil
}

// CandidatesStartingWith returns the phrases whose first word is word,
// longest first. The returned slice must not be modified.
func (d *Dictionary) CandidatesStartingWith(word string) []Phrase {
	if d == nil {
		return nil
	}
	return d.byFirst[d.Normalize(word)]
}

// A cases.Caser keeps state between calls, so concurrent lookups borrow one.
var lowerPool = sync.Pool{
	New: func() any { return cases.Lower(language.Und) },
}

// Normalize applies the build-time normalization to a single word.
func (d *Dictionary) Normalize(word string) string {
	if d == nil || !d.caseInsensitive {
		return word
	}
	if lowered, ok := lowerASCII(word); ok {
		return lowered
	}
	c := lowerPool.Get().(cases.Caser)
	defer lowerPool.Put(c)
	return c.String(word)
}

// lowerASCII lower-cases an ASCII word without allocating when it is already
// lower case. ok is false for any non-ASCII input.
func lowerASCII(word string) (string, bool) {
	hasUpper := false
	for i := 0; i < len(word); i++ {
		b := word[i]
		if b >= utf8.RuneSelf {
			return "", false
		}
		if 'A' <= b && b <= 'Z' {
			hasUpper = true
		}
	}
	if !hasUpper {
		return word, true
	}
	return strings.ToLower(word), true
}

// CaseInsensitive reports whether words are lower-cased for storage and lookup.
func (d *Dictionary) CaseInsensitive() bool {
	return d != nil && d.caseInsensitive
}

// Size returns the number of distinct phrases.
func (d *Dictionary) Size() int {
	if d == nil {
		return 0
	}
	return len(d.ordered)
}

// Phrases returns every phrase in build order.
func (d *Dictionary) Phrases() []Phrase {
	if d == nil {
		return nil
	}
	out := make([]Phrase, len(d.ordered))
	copy(out, d.ordered)
	return out
}

// Stats returns the line accounting gathered while building.
func (d *Dictionary) Stats() BuildStats {
	if d == nil {
		return BuildStats{}
	}
	return d.stats
}
