// Package autophrase is the query-rewrite plugin: it owns the published
// phrase dictionary, rewrites incoming queries against it and hands the
// result to the configured downstream parser.
package autophrase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/phrase"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/rewriter"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser"
	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/metrics"
)

// Reload triggers, used as the metrics label.
const (
	TriggerStartup = "startup"
	TriggerAPI     = "api"
	TriggerEvent   = "event"
	TriggerWatch   = "watch"
)

// ParserRegistry resolves a downstream parser by name.
type ParserRegistry interface {
	Lookup(name string) (qparser.Factory, error)
}

// Snapshot is one published dictionary together with the rewriter and
// config it was built for. Snapshots are never mutated after publication.
type Snapshot struct {
	Dict     *phrase.Dictionary
	Rewriter *rewriter.Rewriter
	Config   RewriteConfig
	Version  uint64
	LoadedAt time.Time
}

// Result is a rewritten query.
type Result struct {
	Original string           `json:"original"`
	Query    string           `json:"query"`
	Matches  []rewriter.Match `json:"matches"`
	Version  uint64           `json:"version"`
	Parser   string           `json:"parser"`
}

// Rewritten reports whether at least one phrase was joined.
func (r Result) Rewritten() bool {
	return len(r.Matches) > 0
}

type Option func(*Plugin)

func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Plugin) { p.metrics = m }
}

// Plugin is safe for concurrent use. Rewrites read the current snapshot
// without locking; configuration and dictionary builds are serialized.
type Plugin struct {
	registry ParserRegistry
	snap     atomic.Pointer[Snapshot]

	mu      sync.Mutex
	cfg     RewriteConfig
	loader  phrase.LineSource
	version uint64

	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(registry ParserRegistry, opts ...Option) *Plugin {
	p := &Plugin{
		registry: registry,
		cfg: RewriteConfig{
			ReplacementChar:  DefaultReplacementChar,
			DownstreamParser: DefaultParser,
		},
		logger: logger.WithComponent("autophrase"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init configures the plugin from the flat option list.
func (p *Plugin) Init(params map[string]string) error {
	cfg, err := ParseParams(params)
	if err != nil {
		return err
	}
	return p.Configure(cfg)
}

// Configure replaces the configuration used by the next dictionary build.
// The published snapshot keeps the config it was built with.
func (p *Plugin) Configure(cfg RewriteConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// Config returns the configuration the next build will use.
func (p *Plugin) Config() RewriteConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Inform reads the configured phrase resource through loader and publishes
// the resulting dictionary. The loader is kept for later reloads.
func (p *Plugin) Inform(ctx context.Context, loader phrase.LineSource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loader = loader
	return p.buildLocked(ctx, TriggerStartup)
}

// Reload rebuilds from the loader given to Inform. On failure the previous
// snapshot stays published.
func (p *Plugin) Reload(ctx context.Context, trigger string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loader == nil {
		return fmt.Errorf("%w: reload before the phrase resource was loaded", apperrors.ErrNotReady)
	}
	return p.buildLocked(ctx, trigger)
}

// LoadDictionary builds and publishes a dictionary from in-memory lines.
func (p *Plugin) LoadDictionary(lines []string) *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishLocked(phrase.Build(lines, p.cfg.CaseInsensitive))
}

func (p *Plugin) buildLocked(ctx context.Context, trigger string) error {
	if p.cfg.PhrasesResource == "" {
		p.observeReload(trigger, "error")
		return fmt.Errorf("%w: %s is required", apperrors.ErrConfiguration, ParamPhrases)
	}
	start := time.Now()
	dict, err := phrase.BuildFrom(ctx, p.loader, p.cfg.PhrasesResource, p.cfg.CaseInsensitive)
	if err != nil {
		p.observeReload(trigger, "error")
		p.logger.Error("phrase dictionary build failed",
			"resource", p.cfg.PhrasesResource,
			"trigger", trigger,
			"error", err,
		)
		return err
	}
	snap := p.publishLocked(dict)
	p.observeReload(trigger, "ok")

	stats := dict.Stats()
	p.logger.Info("phrase dictionary published",
		"resource", p.cfg.PhrasesResource,
		"trigger", trigger,
		"version", snap.Version,
		"phrases", dict.Size(),
		"lines", stats.Lines,
		"dropped_single_word", stats.SingleWord,
		"duplicates", stats.Duplicates,
		"unmatchable", stats.Unmatchable,
		"duration", time.Since(start),
	)
	return nil
}

func (p *Plugin) publishLocked(dict *phrase.Dictionary) *Snapshot {
	p.version++
	snap := &Snapshot{
		Dict: dict,
		Rewriter: rewriter.New(dict, rewriter.Options{
			ReplacementChar:       p.cfg.ReplacementChar,
			IncludeOriginalTokens: p.cfg.IncludeOriginalTokens,
		}),
		Config:   p.cfg,
		Version:  p.version,
		LoadedAt: time.Now(),
	}
	p.snap.Store(snap)
	if p.metrics != nil {
		p.metrics.DictionaryPhrases.Set(float64(dict.Size()))
		p.metrics.DictionaryVersion.Set(float64(snap.Version))
	}
	return snap
}

func (p *Plugin) observeReload(trigger, status string) {
	if p.metrics != nil {
		p.metrics.DictionaryReloadsTotal.WithLabelValues(trigger, status).Inc()
	}
}

// Snapshot returns the published snapshot, or nil before the first build.
func (p *Plugin) Snapshot() *Snapshot {
	return p.snap.Load()
}

// Ready reports whether a dictionary has been published.
func (p *Plugin) Ready() bool {
	return p.snap.Load() != nil
}

// Rewrite rewrites query against the current snapshot.
func (p *Plugin) Rewrite(query string) (Result, error) {
	snap := p.snap.Load()
	if snap == nil {
		return Result{}, apperrors.ErrNotReady
	}

	start := time.Now()
	out := snap.Rewriter.Rewrite(query)
	res := Result{
		Original: query,
		Query:    out.Query,
		Matches:  out.Matches,
		Version:  snap.Version,
		Parser:   snap.Config.DownstreamParser,
	}

	if p.metrics != nil {
		p.metrics.RewriteDuration.Observe(time.Since(start).Seconds())
		outcome := "unchanged"
		if res.Rewritten() {
			outcome = "rewritten"
			p.metrics.PhrasesMatchedTotal.Add(float64(len(res.Matches)))
		}
		p.metrics.RewritesTotal.WithLabelValues(outcome).Inc()
	}
	return res, nil
}

// Delegate builds the downstream parser named by res.Parser for the
// rewritten query. params, localParams and req are forwarded untouched.
func (p *Plugin) Delegate(res Result, params, localParams url.Values, req *qparser.Request) (qparser.Parser, error) {
	factory, err := p.registry.Lookup(res.Parser)
	if err != nil {
		p.observeDelegation("unknown_parser")
		return nil, err
	}
	parser, err := factory.CreateParser(res.Query, params, localParams, req)
	if err != nil {
		p.observeDelegation("parser_error")
		return nil, err
	}
	return parser, nil
}

// CreateParser rewrites query and returns the downstream parser for it.
func (p *Plugin) CreateParser(ctx context.Context, query string, params, localParams url.Values, req *qparser.Request) (qparser.Parser, error) {
	res, err := p.Rewrite(query)
	if err != nil {
		return nil, err
	}
	if res.Rewritten() {
		logger.FromContext(ctx).Debug("query rewritten",
			"component", "autophrase",
			"original", query,
			"rewritten", res.Query,
			"matches", len(res.Matches),
			"version", res.Version,
		)
	}
	return p.Delegate(res, params, localParams, req)
}

func (p *Plugin) observeDelegation(reason string) {
	if p.metrics != nil {
		p.metrics.DelegationErrorsTotal.WithLabelValues(reason).Inc()
	}
}
