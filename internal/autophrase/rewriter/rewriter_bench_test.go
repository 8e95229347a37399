package rewriter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/phrase"
)

var benchQueries = map[string]string{
	"short":  "electric wheel chair rental",
	"medium": `new york city power of attorney form "durable" -template brand:acme hi there wheel chair ramp`,
	"long":   strings.Repeat("cheap electric wheel chair near new york city with free delivery ", 40),
}

func benchDictionary(extra int) *phrase.Dictionary {
	lines := []string{"wheel chair", "electric wheel chair", "new york", "new york city", "power of attorney", "hi there"}
	for i := 0; i < extra; i++ {
		lines = append(lines, fmt.Sprintf("term%d filler%d", i, i%97))
	}
	return phrase.Build(lines, true)
}

func BenchmarkRewrite(b *testing.B) {
	rw := New(benchDictionary(10000), Options{ReplacementChar: '\u200b'})
	for name, q := range benchQueries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(q)))
			for i := 0; i < b.N; i++ {
				_ = rw.Rewrite(q)
			}
		})
	}
}

func BenchmarkRewriteParallel(b *testing.B) {
	rw := New(benchDictionary(10000), Options{ReplacementChar: '\u200b', IncludeOriginalTokens: true})
	q := benchQueries["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(q)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = rw.Rewrite(q)
		}
	})
}

func BenchmarkBuild(b *testing.B) {
	lines := make([]string, 0, 50000)
	for i := 0; i < cap(lines); i++ {
		lines = append(lines, fmt.Sprintf("Word%d Other%d Third", i, i%113))
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = phrase.Build(lines, true)
	}
}
