// Package analytics tracks how the rewriter is used: which phrases fire,
// how often queries are rewritten, delegation failures and rewrite latency.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/kafka"
)

const latencyWindow = 10000

type AggregatedStats struct {
	TotalRewrites       int64         `json:"total_rewrites"`
	Rewritten           int64         `json:"rewritten"`
	RewriteRatio        float64       `json:"rewrite_ratio"`
	NotReady            int64         `json:"not_ready"`
	UnknownParserErrors int64         `json:"unknown_parser_errors"`
	ParserErrors        int64         `json:"parser_errors"`
	CacheHits           int64         `json:"cache_hits"`
	CacheMisses         int64         `json:"cache_misses"`
	AvgLatencyUs        float64       `json:"avg_latency_us"`
	P50LatencyUs        int64         `json:"p50_latency_us"`
	P95LatencyUs        int64         `json:"p95_latency_us"`
	P99LatencyUs        int64         `json:"p99_latency_us"`
	TopPhrases          []PhraseCount `json:"top_phrases"`
	TopUnmatchedQueries []PhraseCount `json:"top_unmatched_queries"`
	RewritesPerMinute   float64       `json:"rewrites_per_minute"`
}

type PhraseCount struct {
	Text  string `json:"text"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals in memory. Latency percentiles cover the
// most recent latencyWindow events.
type Aggregator struct {
	mu             sync.RWMutex
	total          atomic.Int64
	rewritten      atomic.Int64
	notReady       atomic.Int64
	unknownParser  atomic.Int64
	parserErrors   atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	latencies      []int64
	latencyNext    int
	phraseCounts   map[string]int64
	unmatchedCount map[string]int64
	startTime      time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil when events are
// fed in-process through LocalSink.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:      make([]int64, 0, latencyWindow),
		phraseCounts:   make(map[string]int64),
		unmatchedCount: make(map[string]int64),
		startTime:      time.Now(),
		consumer:       consumer,
		logger:         slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start consumes the events topic until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		<-ctx.Done()
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent is the kafka.MessageHandler for the rewrite events topic.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RewriteEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode rewrite event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the running totals.
func (a *Aggregator) Record(event RewriteEvent) {
	a.total.Add(1)
	switch event.Outcome {
	case OutcomeRewritten:
		a.rewritten.Add(1)
	case OutcomeNotReady:
		a.notReady.Add(1)
	case OutcomeUnknownParser:
		a.unknownParser.Add(1)
	case OutcomeParserError:
		a.parserErrors.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyUs)
	} else {
		a.latencies[a.latencyNext] = event.LatencyUs
		a.latencyNext = (a.latencyNext + 1) % latencyWindow
	}
	for _, p := range event.Phrases {
		a.phraseCounts[p]++
	}
	if event.Outcome == OutcomeUnchanged && event.Query != "" {
		a.unmatchedCount[event.Query]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRewrites:       a.total.Load(),
		Rewritten:           a.rewritten.Load(),
		NotReady:            a.notReady.Load(),
		UnknownParserErrors: a.unknownParser.Load(),
		ParserErrors:        a.parserErrors.Load(),
		CacheHits:           a.cacheHits.Load(),
		CacheMisses:         a.cacheMisses.Load(),
	}
	if stats.TotalRewrites > 0 {
		stats.RewriteRatio = float64(stats.Rewritten) / float64(stats.TotalRewrites)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopPhrases = topN(a.phraseCounts, 10)
	stats.TopUnmatchedQueries = topN(a.unmatchedCount, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.RewritesPerMinute = float64(stats.TotalRewrites) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n highest counts; ties are ordered by text.
func topN(counts map[string]int64, n int) []PhraseCount {
	result := make([]PhraseCount, 0, len(counts))
	for text, count := range counts {
		result = append(result, PhraseCount{Text: text, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Text < result[j].Text
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
