// Package search answers keyword, name and time queries against an
// index table. Exact lookups hit the postings directly; fuzzy lookups
// scan the posting keys with Jaro similarity.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xrash/smetrics"
	"golang.org/x/sync/errgroup"

	perrors "github.com/peregrinehq/peregrine/internal/errors"
	"github.com/peregrinehq/peregrine/internal/index"
)

// FuzzyThreshold is the minimum Jaro similarity for a fuzzy match.
const FuzzyThreshold = 0.80

// Engine runs queries against a table. It holds no state of its own, so
// a single engine is safe for concurrent use.
type Engine struct {
	table *index.Table
}

func New(table *index.Table) *Engine {
	return &Engine{table: table}
}

// Keyword returns the ids of files carrying the keyword. Exact mode is a
// single posting lookup; fuzzy mode unions the postings of every indexed
// keyword within the similarity threshold. An unknown keyword yields an
// empty set, not an error.
func (e *Engine) Keyword(keyword string, fuzzy bool) *index.Set {
	if !fuzzy {
		return e.table.KeywordIDs(keyword)
	}
	out := index.NewSet()
	e.table.ScanKeywords(func(kw string, ids *index.Set) {
		if smetrics.Jaro(kw, keyword) >= FuzzyThreshold {
			out.Or(ids)
		}
	})
	return out
}

// Name returns the ids of files whose basename matches. Fuzzy mode ranks
// similarity matches first and substring containment matches after them,
// each band ordered by ascending id, with no id repeated.
func (e *Engine) Name(name string, fuzzy bool) []index.FileID {
	if !fuzzy {
		return e.table.NameIDs(name).Slice()
	}
	similar := index.NewSet()
	containing := index.NewSet()
	e.table.ScanNames(func(base string, ids *index.Set) {
		if smetrics.Jaro(base, name) >= FuzzyThreshold {
			similar.Or(ids)
		}
		if strings.Contains(base, name) {
			containing.Or(ids)
		}
	})
	containing.AndNot(similar)
	return append(similar.Slice(), containing.Slice()...)
}

// Time filters files by modification time at second precision. The op
// names the comparison: "before" keeps times at or below high, "after"
// keeps times at or above low, "on" keeps times inside [low, high]. A
// nil candidates set means every tracked file is a candidate.
func (e *Engine) Time(high, low time.Time, op string, candidates *index.Set) (*index.Set, error) {
	var check func(mt time.Time) bool
	highSec := high.Unix()
	lowSec := low.Unix()
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "before":
		check = func(mt time.Time) bool { return mt.Unix() <= highSec }
	case "after":
		check = func(mt time.Time) bool { return mt.Unix() >= lowSec }
	case "on":
		check = func(mt time.Time) bool {
			sec := mt.Unix()
			return sec >= lowSec && sec <= highSec
		}
	default:
		return nil, perrors.QueryError(perrors.ErrCodeQueryBadTimeOp,
			fmt.Sprintf("time operation %q is not before, after or on", op))
	}

	out := index.NewSet()
	if candidates == nil {
		e.table.ScanModTimes(func(id index.FileID, mt time.Time) {
			if check(mt) {
				out.Add(id)
			}
		})
		return out, nil
	}
	for id := range candidates.All() {
		mt, ok := e.table.ModTimeOf(id)
		if ok && check(mt) {
			out.Add(id)
		}
	}
	return out, nil
}

// MultiResult is the outcome of a composite keyword query. Warnings
// carry malformed time components that were skipped; they never abort
// the query.
type MultiResult struct {
	IDs      []index.FileID
	Warnings []error
}

// MultiKeyword answers a composite query over several keywords, best
// matches first. Results arrive in four bands: files matching every
// keyword exactly, every keyword fuzzily, any keyword exactly, any
// keyword fuzzily. Each band is filtered by the optional time window,
// ordered by ascending id, and excludes files already placed by an
// earlier band. An empty keyword list yields an empty result.
func (e *Engine) MultiKeyword(ctx context.Context, keywords []string, date, clock, op string) (*MultiResult, error) {
	res := &MultiResult{}
	if len(keywords) == 0 {
		return res, nil
	}

	window, warns := ResolveWindow(date, clock, time.Now())
	res.Warnings = warns
	if window.Constrained {
		// Validate the op before doing any matching work.
		switch strings.ToLower(strings.TrimSpace(op)) {
		case "before", "after", "on":
		default:
			return nil, perrors.QueryError(perrors.ErrCodeQueryBadTimeOp,
				fmt.Sprintf("time operation %q is not before, after or on", op))
		}
	}

	// Shortest keyword first keeps intersections cheap.
	sorted := make([]string, len(keywords))
	copy(sorted, keywords)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })

	exact := make([]*index.Set, len(sorted))
	for i, kw := range sorted {
		exact[i] = e.Keyword(kw, false)
	}

	// Fuzzy matching scans every posting key per keyword; fan the
	// keywords out.
	fuzzy := make([]*index.Set, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	for i, kw := range sorted {
		i, kw := i, kw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fuzzy[i] = e.Keyword(kw, true)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tiers := []*index.Set{
		intersectAll(exact),
		intersectAll(fuzzy),
		unionAll(exact),
		unionAll(fuzzy),
	}

	placed := index.NewSet()
	for _, tier := range tiers {
		tier.AndNot(placed)
		if window.Constrained {
			filtered, err := e.Time(window.High, window.Low, op, tier)
			if err != nil {
				return nil, err
			}
			tier = filtered
		}
		res.IDs = append(res.IDs, tier.Slice()...)
		placed.Or(tier)
	}
	return res, nil
}

// intersectAll clones before narrowing so the input sets survive for the
// union tiers.
func intersectAll(sets []*index.Set) *index.Set {
	out := sets[0].Clone()
	for _, s := range sets[1:] {
		out.And(s)
	}
	return out
}

func unionAll(sets []*index.Set) *index.Set {
	out := index.NewSet()
	for _, s := range sets {
		out.Or(s)
	}
	return out
}
