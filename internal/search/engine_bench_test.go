package search

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/peregrinehq/peregrine/internal/index"
)

var benchWords = []string{
	"budget", "hiring", "migration", "onboarding", "retention",
	"capacity", "incident", "roadmap", "procurement", "compliance",
	"security", "vendor", "staffing", "forecast", "audit",
	"review", "plan", "summary", "proposal", "checklist",
	"retrospective", "postmortem", "estimate", "survey", "inventory",
}

// buildBenchTable fills a table with n synthetic records from a fixed
// seed. Each record carries a few pool words plus suffixed variants so
// the keyword posting count grows with n, which is what fuzzy scans pay
// for.
func buildBenchTable(b *testing.B, n int) *index.Table {
	b.Helper()

	rng := rand.New(rand.NewSource(42))
	tbl := index.NewTable()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		kws := index.NewKeywords()
		for j := 0; j < 4; j++ {
			kws.Add(benchWords[rng.Intn(len(benchWords))])
		}
		kws.Add(fmt.Sprintf("%s%03d", benchWords[rng.Intn(len(benchWords))], rng.Intn(n+1)))

		rel := fmt.Sprintf("docs/%s-%d.txt", benchWords[rng.Intn(len(benchWords))], i)
		mt := base.Add(time.Duration(rng.Intn(365*24)) * time.Hour)
		tbl.Upsert(rel, nil, mt, kws)
	}
	return tbl
}

func BenchmarkEngine_Keyword_Exact(b *testing.B) {
	for _, scale := range []int{1000, 10000, 100000} {
		b.Run(fmt.Sprintf("scale_%d", scale), func(b *testing.B) {
			eng := New(buildBenchTable(b, scale))

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = eng.Keyword(benchWords[i%len(benchWords)], false)
			}
		})
	}
}

func BenchmarkEngine_Keyword_Fuzzy(b *testing.B) {
	for _, scale := range []int{1000, 10000} {
		b.Run(fmt.Sprintf("scale_%d", scale), func(b *testing.B) {
			eng := New(buildBenchTable(b, scale))

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				// "budgte" is one transposition off "budget".
				_ = eng.Keyword("budgte", true)
			}
		})
	}
}

func BenchmarkEngine_Name_Fuzzy(b *testing.B) {
	eng := New(buildBenchTable(b, 10000))

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = eng.Name("forecast", true)
	}
}

func BenchmarkEngine_MultiKeyword(b *testing.B) {
	eng := New(buildBenchTable(b, 10000))
	ctx := context.Background()
	keywords := []string{"budget", "forecast", "audit"}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := eng.MultiKeyword(ctx, keywords, "", "", ""); err != nil {
			b.Fatalf("query failed: %v", err)
		}
	}
}

func BenchmarkEngine_MultiKeyword_Windowed(b *testing.B) {
	eng := New(buildBenchTable(b, 10000))
	ctx := context.Background()
	keywords := []string{"budget", "forecast"}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := eng.MultiKeyword(ctx, keywords, "2025", "", "on"); err != nil {
			b.Fatalf("query failed: %v", err)
		}
	}
}

func BenchmarkEngine_Time_FullScan(b *testing.B) {
	eng := New(buildBenchTable(b, 100000))
	high := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := eng.Time(high, time.Time{}, "before", nil); err != nil {
			b.Fatalf("time query failed: %v", err)
		}
	}
}
