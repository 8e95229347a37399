package qparser

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

func parse(t *testing.T, parser, query string, params url.Values) *Plan {
	t.Helper()
	f, err := NewRegistry().Lookup(parser)
	require.NoError(t, err)
	p, err := f.CreateParser(query, params, url.Values{}, &Request{ID: "test"})
	require.NoError(t, err)
	plan, err := p.Parse(context.Background())
	require.NoError(t, err)
	return plan
}

func TestBooleanParser(t *testing.T) {
	plan := parse(t, BooleanParserName, "electric wheel\u200bchair NOT manual brand:acme \"folding frame\"", nil)

	assert.Equal(t, BooleanParserName, plan.Parser)
	assert.Equal(t, QueryAND, plan.Type)
	assert.Equal(t, []string{"electric", "wheel\u200bchair"}, plan.Terms)
	assert.Equal(t, []string{"manual"}, plan.ExcludeTerms)
	assert.Equal(t, map[string]string{"brand": "acme"}, plan.Filters)
	assert.Equal(t, []string{"folding frame"}, plan.Phrases)
}

func TestBooleanParserOperators(t *testing.T) {
	plan := parse(t, BooleanParserName, "wheelZchair OR walker -rental +(Cane)", nil)
	assert.Equal(t, QueryOR, plan.Type)
	assert.Equal(t, []string{"wheelzchair", "walker", "cane"}, plan.Terms)
	assert.Equal(t, []string{"rental"}, plan.ExcludeTerms)
}

func TestBooleanParserParams(t *testing.T) {
	plan := parse(t, BooleanParserName, "a b", url.Values{"q.op": {"OR"}, "rows": {"25"}})
	assert.Equal(t, QueryOR, plan.Type)
	assert.Equal(t, 25, plan.Rows)
}

func TestBooleanParserEmpty(t *testing.T) {
	plan := parse(t, BooleanParserName, "   ", nil)
	assert.Empty(t, plan.Terms)
	assert.NotNil(t, plan.Terms)
}

func TestTermsParser(t *testing.T) {
	plan := parse(t, TermsParserName, "hiZthere AND -you NOT", nil)
	assert.Equal(t, QueryOR, plan.Type)
	assert.Equal(t, []string{"hizthere", "and", "you", "not"}, plan.Terms)
	assert.Empty(t, plan.ExcludeTerms)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{BooleanParserName, TermsParserName}, r.Names())

	_, err := r.Lookup("edismax")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownParser))

	custom := FactoryFunc(func(q string, _, _ url.Values, _ *Request) (Parser, error) {
		return newTermsParser(q, nil, nil, nil)
	})
	require.NoError(t, r.Register("edismax", custom))
	require.Error(t, r.Register("edismax", custom))

	f, err := r.Lookup("edismax")
	require.NoError(t, err)
	assert.NotNil(t, f)
}

func TestPlanJSON(t *testing.T) {
	data, err := json.Marshal(&Plan{Parser: "boolean", Type: QueryOR, Terms: []string{"a"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"OR"`)

	var back Plan
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, QueryOR, back.Type)
}

func TestParseHonoursCancelledContext(t *testing.T) {
	p, err := newBooleanParser("a", nil, nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Parse(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
