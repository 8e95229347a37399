package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser/cache"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/reload"
	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/logger"
)

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) Trigger(_ context.Context, trigger, reason string) (reload.Outcome, error) {
	f.calls++
	if f.err != nil {
		return reload.Outcome{}, f.err
	}
	return reload.Outcome{Event: reload.Event{ID: "01HZX", Reason: reason}}, nil
}

type mapCache struct {
	mu          sync.Mutex
	plans       map[string]*qparser.Plan
	invalidated int
}

func (c *mapCache) GetOrCompute(_ context.Context, k cache.Key, compute func() (*qparser.Plan, error)) (*qparser.Plan, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := k.Parser + "|" + k.Query + "|" + k.Params.Encode()
	if p, ok := c.plans[key]; ok {
		return p, true, nil
	}
	p, err := compute()
	if err != nil {
		return nil, false, err
	}
	c.plans[key] = p
	return p, false, nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.invalidated++
	c.plans = map[string]*qparser.Plan{}
	return nil
}

func (c *mapCache) Stats() (int64, int64) { return 3, 1 }

type trackerFunc func(analytics.RewriteEvent)

func (f trackerFunc) Track(ev analytics.RewriteEvent) { f(ev) }

type fixture struct {
	h        *Handler
	plugin   *autophrase.Plugin
	reloader *fakeReloader
	cache    *mapCache
	events   []analytics.RewriteEvent
}

func newFixture(t *testing.T, loaded bool) *fixture {
	t.Helper()
	plugin := autophrase.New(qparser.NewRegistry(), autophrase.WithLogger(logger.Discard()))
	require.NoError(t, plugin.Init(map[string]string{
		autophrase.ParamPhrases:               "phrases.txt",
		autophrase.ParamReplaceWhitespaceWith: "Z",
		autophrase.ParamIgnoreCase:            "true",
	}))
	if loaded {
		plugin.LoadDictionary([]string{"wheel chair", "hi there"})
	}
	f := &fixture{plugin: plugin, reloader: &fakeReloader{}, cache: &mapCache{plans: map[string]*qparser.Plan{}}}
	f.h = New(Deps{
		Rewriter: plugin,
		Reloader: f.reloader,
		Cache:    f.cache,
		Tracker:  trackerFunc(func(ev analytics.RewriteEvent) { f.events = append(f.events, ev) }),
	})
	return f
}

func get(t *testing.T, hf http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	hf(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRewrite(t *testing.T) {
	f := newFixture(t, true)
	rec := get(t, f.h.Rewrite, "/api/v1/rewrite?q="+url.QueryEscape("Wheel Chair hi there"))
	require.Equal(t, http.StatusOK, rec.Code)

	var res autophrase.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "wheelZchair hiZthere", res.Query)
	assert.Len(t, res.Matches, 2)
	assert.Equal(t, uint64(1), res.Version)

	require.Len(t, f.events, 1)
	assert.Equal(t, analytics.OutcomeRewritten, f.events[0].Outcome)
	assert.Equal(t, []string{"wheel chair", "hi there"}, f.events[0].Phrases)
}

func TestRewriteRequiresQuery(t *testing.T) {
	f := newFixture(t, true)
	rec := get(t, f.h.Rewrite, "/api/v1/rewrite")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"query parameter 'q' is required"}`, rec.Body.String())

	rec = get(t, f.h.Rewrite, "/api/v1/rewrite?q=")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRewriteNotReady(t *testing.T) {
	f := newFixture(t, false)
	rec := get(t, f.h.Rewrite, "/api/v1/rewrite?q=wheel+chair")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Len(t, f.events, 1)
	assert.Equal(t, analytics.OutcomeNotReady, f.events[0].Outcome)
}

func TestParse(t *testing.T) {
	f := newFixture(t, true)
	target := "/api/v1/parse?q=" + url.QueryEscape("wheel chair NOT rental") + "&rows=5&local.q.op=OR"

	rec := get(t, f.h.Parse, target)
	require.Equal(t, http.StatusOK, rec.Code)
	var body parseResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.CacheHit)
	assert.Equal(t, "wheelZchair NOT rental", body.Rewrite.Query)
	assert.Equal(t, qparser.BooleanParserName, body.Plan.Parser)
	assert.Equal(t, []string{"wheelzchair"}, body.Plan.Terms)
	assert.Equal(t, []string{"rental"}, body.Plan.ExcludeTerms)
	assert.Equal(t, qparser.QueryOR, body.Plan.Type)
	assert.Equal(t, 5, body.Plan.Rows)

	rec = get(t, f.h.Parse, target)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.CacheHit)
}

func TestParseDefTypeOverride(t *testing.T) {
	f := newFixture(t, true)
	rec := get(t, f.h.Parse, "/api/v1/parse?q=wheel+chair+AND+cane&defType=terms")
	require.Equal(t, http.StatusOK, rec.Code)
	var body parseResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, qparser.TermsParserName, body.Plan.Parser)
	assert.Equal(t, []string{"wheelzchair", "and", "cane"}, body.Plan.Terms)
}

func TestParseUnknownParser(t *testing.T) {
	f := newFixture(t, true)
	rec := get(t, f.h.Parse, "/api/v1/parse?q=wheel+chair&defType=edismax")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown downstream parser")
	require.Len(t, f.events, 1)
	assert.Equal(t, analytics.OutcomeUnknownParser, f.events[0].Outcome)
}

func TestPhrases(t *testing.T) {
	f := newFixture(t, true)
	rec := get(t, f.h.Phrases, "/api/v1/phrases")
	require.Equal(t, http.StatusOK, rec.Code)
	var body phrasesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Size)
	assert.Equal(t, []string{"wheel chair", "hi there"}, body.Phrases)
	assert.Equal(t, "phrases.txt", body.Resource)

	rec = get(t, f.h.Phrases, "/api/v1/phrases?limit=1")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Phrases, 1)
	assert.Equal(t, 2, body.Size)

	rec = get(t, f.h.Phrases, "/api/v1/phrases?limit=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, newFixture(t, false).h.Phrases, "/api/v1/phrases")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReload(t *testing.T) {
	f := newFixture(t, true)
	rec := httptest.NewRecorder()
	f.h.Reload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/phrases/reload?reason=edit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out reload.Outcome
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "edit", out.Event.Reason)
	assert.Equal(t, 1, f.cache.invalidated)

	f.reloader.err = apperrors.ErrConfiguration
	rec = httptest.NewRecorder()
	f.h.Reload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/phrases/reload", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, f.cache.invalidated)
}

func TestCacheStats(t *testing.T) {
	f := newFixture(t, true)
	rec := get(t, f.h.CacheStats, "/api/v1/cache/stats")
	assert.JSONEq(t, `{"hits":3,"misses":1,"hit_rate":0.75}`, rec.Body.String())

	h := New(Deps{Rewriter: f.plugin, Reloader: f.reloader})
	rec = get(t, h.CacheStats, "/api/v1/cache/stats")
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())
}

func TestSplitParams(t *testing.T) {
	params, local := splitParams(url.Values{
		"q":          {"x"},
		"defType":    {"terms"},
		"rows":       {"10"},
		"local.q.op": {"OR"},
	})
	assert.Equal(t, url.Values{"rows": {"10"}}, params)
	assert.Equal(t, url.Values{"q.op": {"OR"}}, local)
}
