package autophrase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParamsDefaults(t *testing.T) {
	cfg, err := ParseParams(map[string]string{ParamPhrases: "phrases.txt"})
	require.NoError(t, err)
	assert.Equal(t, RewriteConfig{
		ReplacementChar:  DefaultReplacementChar,
		DownstreamParser: DefaultParser,
		PhrasesResource:  "phrases.txt",
	}, cfg)
}

func TestParseParams(t *testing.T) {
	cfg, err := ParseParams(map[string]string{
		ParamPhrases:               " postgres:medical ",
		ParamIgnoreCase:            "TRUE",
		ParamReplaceWhitespaceWith: "Z",
		ParamIncludeTokens:         "1",
		ParamDefType:               "terms",
		"unknown":                  "ignored",
	})
	require.NoError(t, err)
	assert.True(t, cfg.CaseInsensitive)
	assert.True(t, cfg.IncludeOriginalTokens)
	assert.Equal(t, 'Z', cfg.ReplacementChar)
	assert.Equal(t, "terms", cfg.DownstreamParser)
	assert.Equal(t, "postgres:medical", cfg.PhrasesResource)
}

func TestParseParamsErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"multi-char replacement": {ParamReplaceWhitespaceWith: "ZZ"},
		"empty replacement":      {ParamReplaceWhitespaceWith: ""},
		"whitespace replacement": {ParamReplaceWhitespaceWith: " "},
		"tab replacement":        {ParamReplaceWhitespaceWith: "\t"},
		"bad ignoreCase":         {ParamIgnoreCase: "sometimes"},
		"bad includeTokens":      {ParamIncludeTokens: "yes please"},
		"empty defType":          {ParamDefType: "  "},
	}
	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseParams(params)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestParseParamsMultiByteReplacement(t *testing.T) {
	cfg, err := ParseParams(map[string]string{ParamReplaceWhitespaceWith: "·"})
	require.NoError(t, err)
	assert.Equal(t, '·', cfg.ReplacementChar)
}

func TestParamsRoundTrip(t *testing.T) {
	in := RewriteConfig{
		CaseInsensitive:  true,
		ReplacementChar:  'Z',
		DownstreamParser: "terms",
		PhrasesResource:  "redis:phrases",
	}
	out, err := ParseParams(in.Params())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
