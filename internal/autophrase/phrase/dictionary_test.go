package phrase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

func TestBuildDropsShortAndCommentLines(t *testing.T) {
	d := Build([]string{
		"hi there",
		"wheel chair",
		"",
		"   ",
		"# a comment line",
		"single",
		"  padded   phrase  words ",
	}, false)

	assert.Equal(t, 3, d.Size())
	assert.Equal(t, []Phrase{{"hi", "there"}, {"wheel", "chair"}, {"padded", "phrase", "words"}}, d.Phrases())

	stats := d.Stats()
	assert.Equal(t, 7, stats.Lines)
	assert.Equal(t, 3, stats.Kept)
	assert.Equal(t, 3, stats.Comments)
	assert.Equal(t, 1, stats.SingleWord)
}

func TestBuildDropsUnmatchableLines(t *testing.T) {
	d := Build([]string{"wi-fi router", "at&t wireless", "wheel chair*", "brand:acme chair", "wifi router"}, true)

	assert.Equal(t, []Phrase{{"wifi", "router"}}, d.Phrases())
	stats := d.Stats()
	assert.Equal(t, 4, stats.Unmatchable)
	assert.Equal(t, 1, stats.Kept)
	assert.Empty(t, d.CandidatesStartingWith("wi-fi"))
}

func TestNormalizeMatchesBuild(t *testing.T) {
	d := Build([]string{"Wheel CHAIR", "ÉCOLE Normale"}, true)
	for word, want := range map[string]string{
		"wheel":  "wheel",
		"WHEEL":  "wheel",
		"ChAiR":  "chair",
		"ÉCOLE":  "école",
		"école":  "école",
		"Straße": "straße",
		"":       "",
	} {
		assert.Equal(t, want, d.Normalize(word), "word %q", word)
	}
	assert.Equal(t, "Wheel", Build(nil, false).Normalize("Wheel"))
}

func TestBuildDeduplicates(t *testing.T) {
	d := Build([]string{"wheel chair", "wheel  chair", "Wheel Chair"}, true)
	assert.Equal(t, 1, d.Size())
	assert.Equal(t, 2, d.Stats().Duplicates)

	d = Build([]string{"wheel chair", "Wheel Chair"}, false)
	assert.Equal(t, 2, d.Size())
}

func TestCandidatesLongestFirst(t *testing.T) {
	d := Build([]string{
		"new york",
		"new york city hall",
		"new jersey",
		"new york city",
	}, false)

	got := d.CandidatesStartingWith("new")
	require.Len(t, got, 4)
	assert.Equal(t, Phrase{"new", "york", "city", "hall"}, got[0])
	assert.Equal(t, Phrase{"new", "york", "city"}, got[1])
	// equal lengths keep build order
	assert.Equal(t, Phrase{"new", "york"}, got[2])
	assert.Equal(t, Phrase{"new", "jersey"}, got[3])

	assert.Empty(t, d.CandidatesStartingWith("york"))
}

func TestCaseNormalization(t *testing.T) {
	sensitive := Build([]string{"wheel chair"}, false)
	assert.Empty(t, sensitive.CandidatesStartingWith("Wheel"))
	assert.Len(t, sensitive.CandidatesStartingWith("wheel"), 1)

	insensitive := Build([]string{"Wheel CHAIR", "ÉCOLE Normale"}, true)
	assert.Equal(t, []Phrase{{"wheel", "chair"}}, insensitive.CandidatesStartingWith("WHEEL"))
	assert.Equal(t, []Phrase{{"école", "normale"}}, insensitive.CandidatesStartingWith("École"))
	assert.True(t, insensitive.CaseInsensitive())
}

func TestNilDictionary(t *testing.T) {
	var d *Dictionary
	assert.Equal(t, 0, d.Size())
	assert.Nil(t, d.CandidatesStartingWith("wheel"))
	assert.Nil(t, d.Phrases())
}

type stubSource struct {
	lines []string
	err   error
}

func (s stubSource) Lines(context.Context, string) ([]string, error) {
	return s.lines, s.err
}

func TestBuildFrom(t *testing.T) {
	d, err := BuildFrom(context.Background(), stubSource{lines: []string{"hi there"}}, "phrases.txt", false)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Size())

	_, err = BuildFrom(context.Background(), stubSource{err: errors.New("no such file")}, "phrases.txt", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	assert.Contains(t, err.Error(), "phrases.txt")
}
