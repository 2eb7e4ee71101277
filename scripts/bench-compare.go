//go:build ignore

// Compares two `go test -bench` outputs and fails on regressions.
// Usage: go run scripts/bench-compare.go [options] <current.txt> <baseline.txt>
//
// A benchmark counts as regressed when its ns/op grows by more than the
// threshold (20% by default).
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const improvementThreshold = 0.10

type benchResult struct {
	Name        string  `json:"name"`
	Iterations  int     `json:"iterations"`
	NsPerOp     float64 `json:"ns_per_op"`
	BytesPerOp  int     `json:"bytes_per_op"`
	AllocsPerOp int     `json:"allocs_per_op"`
}

type comparison struct {
	Name      string  `json:"name"`
	Current   float64 `json:"current_ns_per_op"`
	Baseline  float64 `json:"baseline_ns_per_op"`
	DeltaPct  float64 `json:"delta_percent"`
	Regressed bool    `json:"regressed"`
	Improved  bool    `json:"improved"`
	Status    string  `json:"status"`
}

type report struct {
	Total        int           `json:"total_benchmarks"`
	Regressions  int           `json:"regressions"`
	Improvements int           `json:"improvements"`
	Unchanged    int           `json:"unchanged"`
	New          int           `json:"new_benchmarks"`
	Missing      int           `json:"missing_from_current"`
	Results      []*comparison `json:"results"`
	Failed       bool          `json:"regression_failed"`
}

var (
	outputJSON = flag.Bool("json", false, "Output the report as JSON")
	threshold  = flag.Float64("threshold", 0.20, "Regression threshold (0.0-1.0)")
	verbose    = flag.Bool("verbose", false, "Show unchanged and new benchmarks too")
	failFlag   = flag.Bool("fail", true, "Exit 1 when a regression is found")
)

// BenchmarkName-N   iterations   ns/op   [B/op]   [allocs/op]
var benchLine = regexp.MustCompile(`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+(\d+)\s+B/op)?(?:\s+(\d+)\s+allocs/op)?`)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <current.txt> <baseline.txt>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	current, err := parseFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
	baseline, err := parseFile(flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsing %s: %v\n", flag.Arg(1), err)
		os.Exit(1)
	}

	rep := compare(current, baseline, *threshold)

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			fmt.Fprintf(os.Stderr, "encoding report: %v\n", err)
			os.Exit(1)
		}
	} else {
		printReport(rep)
	}

	if *failFlag && rep.Failed {
		os.Exit(1)
	}
}

func parseFile(path string) (map[string]*benchResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	results := make(map[string]*benchResult)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if r := parseLine(scanner.Text()); r != nil {
			results[r.Name] = r
		}
	}
	return results, scanner.Err()
}

func parseLine(line string) *benchResult {
	m := benchLine.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	r := &benchResult{Name: m[1]}
	r.Iterations, _ = strconv.Atoi(m[2])
	r.NsPerOp, _ = strconv.ParseFloat(m[3], 64)
	if m[4] != "" {
		r.BytesPerOp, _ = strconv.Atoi(m[4])
	}
	if m[5] != "" {
		r.AllocsPerOp, _ = strconv.Atoi(m[5])
	}
	return r
}

func compare(current, baseline map[string]*benchResult, threshold float64) *report {
	rep := &report{}

	for name, curr := range current {
		rep.Total++

		base, ok := baseline[name]
		if !ok {
			rep.New++
			if *verbose {
				rep.Results = append(rep.Results, &comparison{Name: name, Current: curr.NsPerOp, Status: "NEW"})
			}
			continue
		}

		delta := 0.0
		if base.NsPerOp > 0 {
			delta = (curr.NsPerOp - base.NsPerOp) / base.NsPerOp
		}

		c := &comparison{
			Name:     name,
			Current:  curr.NsPerOp,
			Baseline: base.NsPerOp,
			DeltaPct: delta * 100,
		}

		switch {
		case delta > threshold:
			c.Regressed = true
			c.Status = "REGRESS"
			rep.Regressions++
			rep.Failed = true
		case delta < -improvementThreshold:
			c.Improved = true
			c.Status = "FASTER"
			rep.Improvements++
		default:
			c.Status = "OK"
			rep.Unchanged++
		}

		if c.Regressed || c.Improved || *verbose {
			rep.Results = append(rep.Results, c)
		}
	}

	for name, base := range baseline {
		if _, ok := current[name]; !ok {
			rep.Missing++
			if *verbose {
				rep.Results = append(rep.Results, &comparison{Name: name, Baseline: base.NsPerOp, Status: "MISSING"})
			}
		}
	}

	return rep
}

func printReport(rep *report) {
	fmt.Printf("benchmarks: %d  regressions: %d  improvements: %d  unchanged: %d  new: %d  missing: %d\n\n",
		rep.Total, rep.Regressions, rep.Improvements, rep.Unchanged, rep.New, rep.Missing)

	if len(rep.Results) > 0 {
		fmt.Printf("%-50s %12s %12s %9s  %s\n", "BENCHMARK", "CURRENT", "BASELINE", "DELTA", "STATUS")
		fmt.Println(strings.Repeat("-", 96))
		for _, c := range rep.Results {
			if c.Baseline > 0 {
				fmt.Printf("%-50s %10.0fns %10.0fns %+8.1f%%  %s\n",
					truncate(c.Name, 50), c.Current, c.Baseline, c.DeltaPct, c.Status)
			} else {
				fmt.Printf("%-50s %10.0fns %12s %9s  %s\n",
					truncate(c.Name, 50), c.Current, "-", "-", c.Status)
			}
		}
		fmt.Println(strings.Repeat("-", 96))
	}

	fmt.Println()
	if rep.Failed {
		fmt.Printf("FAILED: %d benchmark(s) regressed by more than %.0f%%\n", rep.Regressions, *threshold*100)
	} else {
		fmt.Println("PASSED: no significant regressions")
	}
}

func truncate(name string, max int) string {
	if len(name) <= max {
		return name
	}
	return name[:max-3] + "..."
}
