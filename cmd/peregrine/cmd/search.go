package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/peregrinehq/peregrine/internal/index"
	"github.com/peregrinehq/peregrine/internal/output"
	"github.com/peregrinehq/peregrine/internal/search"
)

// searchOptions carries the parsed search flags.
type searchOptions struct {
	keyword string
	name    string
	fuzzy   bool
	date    string
	clock   string
	op      string
	json    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [keywords...]",
		Short: "Search the index",
		Long: `Search indexed files by keyword, name or modification time.

Positional keywords run a composite query: files matching every keyword
exactly come first, then every keyword fuzzily, then any keyword exactly,
then any keyword fuzzily. --keyword and --name query a single posting
instead; --fuzzy widens either to Jaro similarity >= 0.80.

Dates are digit strings: YYYY, YYYYMM or YYYYMMDD. Times are HH, HHMM or
HHMMSS and narrow a single day. --op picks the comparison (before, after
or on, the default). A time window combines with keyword queries as a
filter, or stands alone to match on time only.

Results print one workspace-relative path per line.`,
		Example: `  # Composite keyword query, best matches first
  peregrine search quarterly budget

  # Single keyword, exact then fuzzy
  peregrine search --keyword budget
  peregrine search --keyword budjet --fuzzy

  # Name lookup
  peregrine search --name report.txt --fuzzy

  # Everything modified during March 2024
  peregrine search --date 202403

  # Keywords filtered to one afternoon
  peregrine search budget --date 20240315 --time 14 --op on`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.keyword, "keyword", "k", "", "Search for a single keyword")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Search by file basename")
	cmd.Flags().BoolVarP(&opts.fuzzy, "fuzzy", "f", false, "Widen --keyword or --name to similar spellings")
	cmd.Flags().StringVar(&opts.date, "date", "", "Date window: YYYY, YYYYMM or YYYYMMDD")
	cmd.Flags().StringVar(&opts.clock, "time", "", "Time window within a day: HH, HHMM or HHMMSS")
	cmd.Flags().StringVar(&opts.op, "op", "on", "Time comparison: before, after or on")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output results as JSON")
	cmd.MarkFlagsMutuallyExclusive("keyword", "name")

	return cmd
}

// searchReport is the --json document.
type searchReport struct {
	Count    int      `json:"count"`
	Results  []string `json:"results"`
	Warnings []string `json:"warnings,omitempty"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, keywords []string, opts searchOptions) error {
	if len(keywords) > 0 && (opts.keyword != "" || opts.name != "") {
		return fmt.Errorf("positional keywords cannot be combined with --keyword or --name")
	}
	hasWindow := opts.date != "" || opts.clock != ""
	if len(keywords) == 0 && opts.keyword == "" && opts.name == "" && !hasWindow {
		return fmt.Errorf("nothing to search for: give keywords, --keyword, --name, --date or --time")
	}

	ws, err := openWorkspace(".")
	if err != nil {
		return err
	}
	cfg, _ := loadConfig(ws)

	// Read-only: no lock. WAL (sqlite) and atomic rename (file) keep a
	// concurrent writer from corrupting what we read.
	st, err := openStore(ws, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	tbl, existed, err := loadTable(ctx, st)
	if err != nil {
		return err
	}
	if !existed {
		return errNoIndex(ws)
	}

	eng := search.New(tbl)

	ids, warns, err := resolveQuery(ctx, eng, keywords, opts)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		if rel, ok := tbl.PathOf(id); ok {
			paths = append(paths, filepath.ToSlash(rel))
		}
	}

	out := output.New(cmd.OutOrStdout())
	errOut := output.New(cmd.ErrOrStderr())

	if opts.json {
		report := searchReport{Count: len(paths), Results: paths}
		for _, w := range warns {
			report.Warnings = append(report.Warnings, w.Error())
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, w := range warns {
		errOut.Warning(w.Error())
	}
	for _, p := range paths {
		out.Raw(p)
	}
	if len(paths) == 0 {
		errOut.Hint("no matches")
	}
	return nil
}

// resolveQuery runs the query the flags describe and returns ids in
// result order. Keyword queries are lowercased to match what extraction
// stores; name queries stay case-exact like the tracked basenames.
func resolveQuery(ctx context.Context, eng *search.Engine, keywords []string, opts searchOptions) ([]index.FileID, []error, error) {
	hasWindow := opts.date != "" || opts.clock != ""

	switch {
	case len(keywords) > 0:
		lowered := make([]string, len(keywords))
		for i, kw := range keywords {
			lowered[i] = strings.ToLower(kw)
		}
		res, err := eng.MultiKeyword(ctx, lowered, opts.date, opts.clock, opts.op)
		if err != nil {
			return nil, nil, err
		}
		return res.IDs, res.Warnings, nil

	case opts.keyword != "":
		ids := eng.Keyword(strings.ToLower(opts.keyword), opts.fuzzy)
		if !hasWindow {
			return ids.Slice(), nil, nil
		}
		window, warns := search.ResolveWindow(opts.date, opts.clock, time.Now())
		if !window.Constrained {
			return ids.Slice(), warns, nil
		}
		filtered, err := eng.Time(window.High, window.Low, opts.op, ids)
		if err != nil {
			return nil, nil, err
		}
		return filtered.Slice(), warns, nil

	case opts.name != "":
		ids := eng.Name(opts.name, opts.fuzzy)
		if !hasWindow {
			return ids, nil, nil
		}
		window, warns := search.ResolveWindow(opts.date, opts.clock, time.Now())
		if !window.Constrained {
			return ids, warns, nil
		}
		inWindow, err := eng.Time(window.High, window.Low, opts.op, index.NewSet(ids...))
		if err != nil {
			return nil, nil, err
		}
		// Keep the name ranking; the window only drops entries.
		kept := ids[:0]
		for _, id := range ids {
			if inWindow.Contains(id) {
				kept = append(kept, id)
			}
		}
		return kept, warns, nil

	default:
		window, warns := search.ResolveWindow(opts.date, opts.clock, time.Now())
		if !window.Constrained {
			return nil, warns, fmt.Errorf("time window did not resolve: check --date and --time")
		}
		ids, err := eng.Time(window.High, window.Low, opts.op, nil)
		if err != nil {
			return nil, nil, err
		}
		return ids.Slice(), warns, nil
	}
}
