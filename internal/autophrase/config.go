package autophrase

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

// Option names accepted in the flat parameter list.
const (
	ParamPhrases               = "phrases"
	ParamIgnoreCase            = "ignoreCase"
	ParamReplaceWhitespaceWith = "replaceWhitespaceWith"
	ParamIncludeTokens         = "includeTokens"
	ParamDefType               = "defType"
)

const (
	// DefaultReplacementChar is a zero-width space: invisible to readers and
	// neither a letter nor whitespace, so the joined phrase stays one term.
	DefaultReplacementChar = '\u200b'
	DefaultParser          = "boolean"
)

// RewriteConfig is immutable once built; share it by value or pointer.
type RewriteConfig struct {
	CaseInsensitive       bool   `json:"ignore_case"`
	ReplacementChar       rune   `json:"replacement_char"`
	IncludeOriginalTokens bool   `json:"include_tokens"`
	DownstreamParser      string `json:"def_type"`
	PhrasesResource       string `json:"phrases"`
}

// ParseParams converts the flat key/value option list a host hands to the
// plugin into a validated RewriteConfig. Unknown keys are ignored.
func ParseParams(params map[string]string) (RewriteConfig, error) {
	cfg := RewriteConfig{
		ReplacementChar:  DefaultReplacementChar,
		DownstreamParser: DefaultParser,
	}
	var err error
	if v, ok := params[ParamIgnoreCase]; ok {
		if cfg.CaseInsensitive, err = parseBool(ParamIgnoreCase, v); err != nil {
			return RewriteConfig{}, err
		}
	}
	if v, ok := params[ParamIncludeTokens]; ok {
		if cfg.IncludeOriginalTokens, err = parseBool(ParamIncludeTokens, v); err != nil {
			return RewriteConfig{}, err
		}
	}
	if v, ok := params[ParamReplaceWhitespaceWith]; ok {
		if utf8.RuneCountInString(v) != 1 {
			return RewriteConfig{}, fmt.Errorf("%w: %s must be a single character, got %q",
				apperrors.ErrConfiguration, ParamReplaceWhitespaceWith, v)
		}
		cfg.ReplacementChar, _ = utf8.DecodeRuneInString(v)
	}
	if v, ok := params[ParamDefType]; ok {
		cfg.DownstreamParser = strings.TrimSpace(v)
	}
	cfg.PhrasesResource = strings.TrimSpace(params[ParamPhrases])

	if err := cfg.Validate(); err != nil {
		return RewriteConfig{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the rewriter relies on.
func (c RewriteConfig) Validate() error {
	if c.ReplacementChar == utf8.RuneError || unicode.IsSpace(c.ReplacementChar) {
		return fmt.Errorf("%w: %s must not be whitespace or invalid, got %q",
			apperrors.ErrConfiguration, ParamReplaceWhitespaceWith, c.ReplacementChar)
	}
	if c.DownstreamParser == "" {
		return fmt.Errorf("%w: %s must not be empty", apperrors.ErrConfiguration, ParamDefType)
	}
	return nil
}

// Params renders the config back into its flat option form.
func (c RewriteConfig) Params() map[string]string {
	return map[string]string{
		ParamPhrases:               c.PhrasesResource,
		ParamIgnoreCase:            strconv.FormatBool(c.CaseInsensitive),
		ParamReplaceWhitespaceWith: string(c.ReplacementChar),
		ParamIncludeTokens:         strconv.FormatBool(c.IncludeOriginalTokens),
		ParamDefType:               c.DownstreamParser,
	}
}

func parseBool(name, v string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", apperrors.ErrConfiguration, name, v)
	}
	return b, nil
}
