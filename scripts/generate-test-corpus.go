//go:build ignore

// Generates a synthetic document tree for benchmarking the indexer.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
//
// Files get modification times spread over the past two years so
// time-window queries have real variance to chew on.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var noteTemplate = `%s %s notes

Attendees discussed the %s %s and agreed to revisit the %s next cycle.
Open items: %s review, %s follow-up, %s sign-off.

Decisions
- %s owns the %s rollout
- %s stays frozen until the %s lands

Next steps
- draft the %s summary
- schedule the %s walkthrough
`

var reportTemplate = `%s %s report

Summary
The %s %s completed with %d open findings. The %s trend is %s
quarter over quarter. %s remains the main driver.

Details
Reviewed the %s pipeline end to end. The %s stage dominates cost;
the %s stage dominates latency. Recommended owner: %s team.

Appendix
Raw numbers live next to this file as %s-data.txt.
`

var readmeTemplate = `# %s %s

Working folder for the %s effort.

## Layout

- notes/    meeting notes, newest last
- reports/  %s reports per quarter
- drafts/   anything not ready for review

## Conventions

Name files %s-<topic>.txt so they sort by stream. Keep one topic per
file; the indexer ranks per-file keywords, and mixed topics dilute both.
`

// Word pools skewed toward office documents, the tree peregrine indexes.
var (
	streams = []string{
		"budget", "hiring", "migration", "onboarding", "retention",
		"capacity", "incident", "roadmap", "procurement", "compliance",
		"security", "vendor", "staffing", "forecast", "audit",
	}
	artifacts = []string{
		"review", "plan", "summary", "proposal", "checklist",
		"retrospective", "postmortem", "estimate", "survey", "inventory",
	}
	qualifiers = []string{
		"quarterly", "weekly", "annual", "interim", "final",
		"draft", "revised", "archived", "pending", "approved",
	}
	owners = []string{
		"finance", "platform", "operations", "support", "legal",
		"facilities", "marketing", "research", "logistics", "design",
	}
	trends = []string{"flat", "improving", "worsening", "recovering", "volatile"}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for _, sub := range []string{"notes", "reports", "drafts"} {
		if err := os.MkdirAll(filepath.Join(*outputDir, sub), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "creating %s: %v\n", sub, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d files in %s...\n", *numFiles, *outputDir)

	// Rough split: half notes, a third reports, the rest drafts.
	notes := *numFiles / 2
	reports := *numFiles / 3
	drafts := *numFiles - notes - reports

	generated := 0
	for i := 0; i < notes; i++ {
		if err := writeNote(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "note %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < reports; i++ {
		if err := writeReport(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "report %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < drafts; i++ {
		if err := writeDraft(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "draft %d: %v\n", i, err)
			continue
		}
		generated++
	}

	// One README per subtree so name search has stable anchors.
	for _, sub := range []string{"notes", "reports", "drafts"} {
		stream := pick(rng, streams)
		content := fmt.Sprintf(readmeTemplate, strings.ToUpper(sub[:1])+sub[1:],
			pick(rng, artifacts), stream, pick(rng, qualifiers), stream)
		path := filepath.Join(*outputDir, sub, "README.md")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "readme %s: %v\n", sub, err)
			continue
		}
		generated++
	}

	fmt.Printf("Generated %d files.\n", generated)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

// spread returns a timestamp up to two years back, truncated to the
// minute so runs with the same seed produce comparable trees.
func spread(rng *rand.Rand) time.Time {
	back := time.Duration(rng.Intn(730*24)) * time.Hour
	return time.Now().Add(-back).Truncate(time.Minute)
}

func writeNote(rng *rand.Rand, index int) error {
	stream := pick(rng, streams)
	content := fmt.Sprintf(noteTemplate,
		pick(rng, qualifiers), stream,
		stream, pick(rng, artifacts), pick(rng, artifacts),
		pick(rng, streams), pick(rng, streams), pick(rng, owners),
		pick(rng, owners), pick(rng, artifacts),
		pick(rng, streams), pick(rng, artifacts),
		pick(rng, artifacts), pick(rng, artifacts),
	)
	name := fmt.Sprintf("%s-%s-%d.txt", stream, pick(rng, artifacts), index)
	return writeWithMtime(rng, filepath.Join(*outputDir, "notes", name), content)
}

func writeReport(rng *rand.Rand, index int) error {
	stream := pick(rng, streams)
	content := fmt.Sprintf(reportTemplate,
		pick(rng, qualifiers), stream,
		stream, pick(rng, artifacts), rng.Intn(20), stream, pick(rng, trends),
		pick(rng, owners),
		stream, pick(rng, artifacts), pick(rng, artifacts), pick(rng, owners),
		stream,
	)
	name := fmt.Sprintf("%s-report-%d.txt", stream, index)
	return writeWithMtime(rng, filepath.Join(*outputDir, "reports", name), content)
}

func writeDraft(rng *rand.Rand, index int) error {
	stream := pick(rng, streams)
	lines := make([]string, 0, 8)
	for i := 0; i < 4+rng.Intn(5); i++ {
		lines = append(lines, fmt.Sprintf("%s %s for the %s %s",
			pick(rng, qualifiers), pick(rng, artifacts), stream, pick(rng, artifacts)))
	}
	name := fmt.Sprintf("draft-%s-%d.txt", stream, index)
	return writeWithMtime(rng, filepath.Join(*outputDir, "drafts", name), strings.Join(lines, "\n")+"\n")
}

func writeWithMtime(rng *rand.Rand, path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return err
	}
	at := spread(rng)
	return os.Chtimes(path, at, at)
}
