// Package handler implements the autophrase HTTP API: rewriting queries,
// delegating them to a downstream parser, inspecting the dictionary and
// triggering reloads.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser/cache"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/reload"
	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/tracing"
)

const localParamPrefix = "local."

// Rewriter is the plugin surface the API uses.
type Rewriter interface {
	Rewrite(query string) (autophrase.Result, error)
	Delegate(res autophrase.Result, params, localParams url.Values, req *qparser.Request) (qparser.Parser, error)
	Snapshot() *autophrase.Snapshot
}

type Reloader interface {
	Trigger(ctx context.Context, trigger, reason string) (reload.Outcome, error)
}

type PlanCache interface {
	GetOrCompute(ctx context.Context, k cache.Key, compute func() (*qparser.Plan, error)) (*qparser.Plan, bool, error)
	Invalidate(ctx context.Context) error
	Stats() (hits, misses int64)
}

type Tracker interface {
	Track(event analytics.RewriteEvent)
}

// Deps are the handler's collaborators. Cache and Tracker are optional.
type Deps struct {
	Rewriter Rewriter
	Reloader Reloader
	Cache    PlanCache
	Tracker  Tracker
}

type Handler struct {
	rewriter Rewriter
	reloader Reloader
	cache    PlanCache
	tracker  Tracker
	logger   *slog.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		rewriter: d.Rewriter,
		reloader: d.Reloader,
		cache:    d.Cache,
		tracker:  d.Tracker,
		logger:   slog.Default().With("component", "api-handler"),
	}
}

type parseResponse struct {
	Rewrite  autophrase.Result `json:"rewrite"`
	Plan     *qparser.Plan     `json:"plan"`
	CacheHit bool              `json:"cache_hit"`
}

type phrasesResponse struct {
	Version  uint64                   `json:"version"`
	Resource string                   `json:"resource"`
	LoadedAt time.Time                `json:"loaded_at"`
	Size     int                      `json:"size"`
	Config   autophrase.RewriteConfig `json:"config"`
	Phrases  []string                 `json:"phrases"`
}

// Rewrite handles GET /api/v1/rewrite?q=.
func (h *Handler) Rewrite(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	query, ok := h.requireQuery(w, r)
	if !ok {
		return
	}
	res, err := h.rewriter.Rewrite(query)
	if err != nil {
		h.track(r.Context(), query, autophrase.Result{}, analytics.OutcomeNotReady, start, false)
		h.writeAppError(w, err)
		return
	}
	h.track(r.Context(), query, res, outcomeOf(res), start, false)
	h.writeJSON(w, http.StatusOK, res)
}

// Parse handles GET /api/v1/parse?q=&defType=. Parameters prefixed with
// "local." are handed to the parser as local params; the rest as params.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query, ok := h.requireQuery(w, r)
	if !ok {
		return
	}
	params, localParams := splitParams(r.URL.Query())

	ctx, root := tracing.StartSpan(ctx, "parse", middleware.GetRequestID(ctx))
	defer func() {
		root.End()
		root.Log(ctx, log)
	}()

	_, rewriteSpan := tracing.StartChildSpan(ctx, "rewrite")
	res, err := h.rewriter.Rewrite(query)
	rewriteSpan.End()
	if err != nil {
		h.track(ctx, query, autophrase.Result{}, analytics.OutcomeNotReady, start, false)
		h.writeAppError(w, err)
		return
	}
	rewriteSpan.SetAttr("matches", len(res.Matches))
	if defType := r.URL.Query().Get(autophrase.ParamDefType); defType != "" {
		res.Parser = defType
	}

	planCtx, planSpan := tracing.StartChildSpan(ctx, "plan")
	req := &qparser.Request{ID: middleware.GetRequestID(ctx)}
	compute := func() (*qparser.Plan, error) {
		parser, err := h.rewriter.Delegate(res, params, localParams, req)
		if err != nil {
			return nil, err
		}
		return parser.Parse(planCtx)
	}

	var plan *qparser.Plan
	cacheHit := false
	if h.cache != nil {
		plan, cacheHit, err = h.cache.GetOrCompute(planCtx, cache.Key{
			Version:     res.Version,
			Parser:      res.Parser,
			Query:       res.Query,
			Params:      params,
			LocalParams: localParams,
		}, compute)
	} else {
		plan, err = compute()
	}
	planSpan.SetAttr("cache_hit", cacheHit)
	planSpan.End()

	if err != nil {
		outcome := analytics.OutcomeParserError
		if errors.Is(err, apperrors.ErrUnknownParser) {
			outcome = analytics.OutcomeUnknownParser
		}
		log.Warn("downstream parse failed", "parser", res.Parser, "rewritten", res.Query, "error", err)
		h.track(ctx, query, res, outcome, start, cacheHit)
		h.writeAppError(w, err)
		return
	}

	h.track(ctx, query, res, outcomeOf(res), start, cacheHit)
	h.writeJSON(w, http.StatusOK, parseResponse{Rewrite: res, Plan: plan, CacheHit: cacheHit})
}

// Phrases handles GET /api/v1/phrases[?limit=].
func (h *Handler) Phrases(w http.ResponseWriter, r *http.Request) {
	snap := h.rewriter.Snapshot()
	if snap == nil {
		h.writeAppError(w, apperrors.ErrNotReady)
		return
	}
	phrases := snap.Dict.Phrases()
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(phrases) {
			phrases = phrases[:limit]
		}
	}
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = p.String()
	}
	h.writeJSON(w, http.StatusOK, phrasesResponse{
		Version:  snap.Version,
		Resource: snap.Config.PhrasesResource,
		LoadedAt: snap.LoadedAt,
		Size:     snap.Dict.Size(),
		Config:   snap.Config,
		Phrases:  out,
	})
}

// Reload handles POST /api/v1/phrases/reload[?reason=].
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	outcome, err := h.reloader.Trigger(ctx, autophrase.TriggerAPI, r.URL.Query().Get("reason"))
	if err != nil {
		logger.FromContext(ctx).Error("phrase reload failed", "error", err)
		h.writeAppError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			h.logger.Warn("plan cache invalidation after reload failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, outcome)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
	})
}

func (h *Handler) requireQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := r.URL.Query()
	if !q.Has("q") {
		h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return "", false
	}
	return q.Get("q"), true
}

func (h *Handler) track(ctx context.Context, query string, res autophrase.Result, outcome analytics.Outcome, start time.Time, cacheHit bool) {
	if h.tracker == nil {
		return
	}
	phrases := make([]string, len(res.Matches))
	for i, m := range res.Matches {
		phrases[i] = m.Phrase.String()
	}
	h.tracker.Track(analytics.RewriteEvent{
		Query:     query,
		Rewritten: res.Query,
		Phrases:   phrases,
		Parser:    res.Parser,
		Version:   res.Version,
		Outcome:   outcome,
		LatencyUs: time.Since(start).Microseconds(),
		CacheHit:  cacheHit,
		RequestID: middleware.GetRequestID(ctx),
		Timestamp: time.Now().UTC(),
	})
}

func outcomeOf(res autophrase.Result) analytics.Outcome {
	if res.Rewritten() {
		return analytics.OutcomeRewritten
	}
	return analytics.OutcomeUnchanged
}

// splitParams drops q and defType and separates local params.
func splitParams(values url.Values) (params, localParams url.Values) {
	params = url.Values{}
	localParams = url.Values{}
	for k, v := range values {
		switch {
		case k == "q" || k == autophrase.ParamDefType:
		case strings.HasPrefix(k, localParamPrefix):
			localParams[strings.TrimPrefix(k, localParamPrefix)] = v
		default:
			params[k] = v
		}
	}
	return params, localParams
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeError(w, status, message)
}
