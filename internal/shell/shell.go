// Package shell implements the interactive session. A session holds a
// cursor rooted at the workspace and runs index, search and metadata
// commands against the in-memory table; mutations are persisted through
// a save hook after every mutating command.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	perrors "github.com/peregrinehq/peregrine/internal/errors"
	"github.com/peregrinehq/peregrine/internal/extract"
	"github.com/peregrinehq/peregrine/internal/index"
	"github.com/peregrinehq/peregrine/internal/indexer"
	"github.com/peregrinehq/peregrine/internal/search"
	"github.com/peregrinehq/peregrine/internal/workspace"
)

// DefaultHistorySize caps the history file when the config does not say
// otherwise.
const DefaultHistorySize = 1000

// Options configures a session.
type Options struct {
	// HistorySize caps the persisted history line count. Zero means
	// DefaultHistorySize.
	HistorySize int
	// Output receives everything the session prints. Defaults to stdout.
	Output io.Writer
	// NoColor disables styled output.
	NoColor bool
	// Save persists the table after mutating commands. Nil means
	// mutations live only in memory.
	Save func() error
}

// Shell is one interactive session.
type Shell struct {
	ws  *workspace.Workspace
	cwd string // workspace-relative cursor, "." at the root

	table *index.Table
	ix    *indexer.Indexer
	eng   *search.Engine
	ext   extract.Extractor

	line    *liner.State
	out     io.Writer
	styles  styles
	histCap int
	save    func() error
	dirty   bool
}

// New builds a session over an open workspace. The table and indexer are
// shared with the caller, which keeps ownership of the store.
func New(ws *workspace.Workspace, table *index.Table, ix *indexer.Indexer, opts Options) *Shell {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	histCap := opts.HistorySize
	if histCap <= 0 {
		histCap = DefaultHistorySize
	}
	return &Shell{
		ws:      ws,
		cwd:     ".",
		table:   table,
		ix:      ix,
		eng:     search.New(table),
		ext:     extract.NewDefault(),
		out:     out,
		styles:  getStyles(opts.NoColor),
		histCap: histCap,
		save:    opts.Save,
	}
}

// Run reads and executes commands until exit, Ctrl+D or context
// cancellation. History is loaded at start and saved on the way out.
func (s *Shell) Run(ctx context.Context) error {
	s.line = liner.NewLiner()
	s.line.SetCtrlCAborts(true)
	defer s.closeLiner()

	s.loadHistory()
	s.banner()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		input, err := s.line.Prompt(s.prompt())
		if errors.Is(err, liner.ErrPromptAborted) {
			// Ctrl+C clears the line, it does not end the session.
			fmt.Fprintln(s.out)
			continue
		}
		if err != nil {
			// Ctrl+D or a dead terminal.
			fmt.Fprintln(s.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		s.line.AppendHistory(input)

		if s.execute(ctx, input) {
			return nil
		}
	}
}

// execute runs one command line and reports whether the session should
// end.
func (s *Shell) execute(ctx context.Context, input string) bool {
	args := tokenize(input)
	if len(args) == 0 {
		return false
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "exit", "quit":
		fmt.Fprintln(s.out, s.styles.info.Render("bye"))
		return true
	case "help":
		s.cmdHelp(rest)
	case "pwd":
		s.cmdPwd()
	case "cd":
		s.cmdCd(rest)
	case "ls":
		s.cmdLs(rest)
	case "find":
		s.cmdFind(ctx, rest)
	case "meta":
		s.cmdMeta(rest)
	case "index":
		s.cmdIndex(ctx, rest)
	case "extract":
		s.cmdExtract(rest)
	default:
		s.errorf("unknown command %q (try help)", cmd)
	}
	return false
}

func (s *Shell) prompt() string {
	display := "/"
	if s.cwd != "." {
		display = "/" + filepath.ToSlash(s.cwd)
	}
	return s.styles.prompt.Render("peregrine:"+display+"> ")
}

func (s *Shell) banner() {
	fmt.Fprintln(s.out, s.styles.header.Render("peregrine shell"))
	fmt.Fprintln(s.out, s.styles.info.Render("workspace "+s.ws.Root))
	fmt.Fprintln(s.out, s.styles.info.Render("type help for commands, exit to leave"))
	fmt.Fprintln(s.out)
}

// resolve turns a command argument into a workspace-relative path. A
// leading slash addresses the workspace root; everything else is
// relative to the cursor.
func (s *Shell) resolve(arg string) (string, error) {
	var rel string
	switch {
	case arg == "" || arg == "/":
		rel = "."
	case strings.HasPrefix(arg, "/"):
		rel = filepath.Clean(strings.TrimPrefix(arg, "/"))
	default:
		rel = filepath.Join(s.cwd, arg)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", perrors.PathError(perrors.ErrCodePathOutOfScope, arg, nil).
			WithDetail("root", s.ws.Root)
	}
	return rel, nil
}

func (s *Shell) abs(rel string) string {
	return filepath.Join(s.ws.Root, rel)
}

func (s *Shell) cmdPwd() {
	fmt.Fprintln(s.out, s.abs(s.cwd))
}

func (s *Shell) cmdCd(args []string) {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	rel, err := s.resolve(target)
	if err != nil {
		s.printErr(err)
		return
	}
	info, err := os.Stat(s.abs(rel))
	if err != nil || !info.IsDir() {
		s.errorf("no such directory: %s", target)
		return
	}
	s.cwd = rel
}

func (s *Shell) cmdLs(args []string) {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	rel, err := s.resolve(target)
	if err != nil {
		s.printErr(err)
		return
	}
	entries, err := os.ReadDir(s.abs(rel))
	if err != nil {
		s.errorf("cannot list %s: %v", target, err)
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() {
			fmt.Fprintln(s.out, s.styles.dir.Render(entry.Name()+"/"))
			continue
		}
		fmt.Fprintln(s.out, entry.Name())
	}
}

func (s *Shell) cmdFind(ctx context.Context, args []string) {
	if len(args) == 0 {
		s.errorf("usage: find KEYWORD...")
		return
	}
	keywords := make([]string, len(args))
	for i, arg := range args {
		keywords[i] = strings.ToLower(arg)
	}
	res, err := s.eng.MultiKeyword(ctx, keywords, "", "", "")
	if err != nil {
		s.printErr(err)
		return
	}
	for _, id := range res.IDs {
		if rel, ok := s.table.PathOf(id); ok {
			fmt.Fprintln(s.out, filepath.ToSlash(rel))
		}
	}
	fmt.Fprintln(s.out, s.styles.info.Render(fmt.Sprintf("%d files", len(res.IDs))))
}

func (s *Shell) cmdMeta(args []string) {
	if len(args) < 2 {
		s.errorf("usage: meta PATH --add KEYWORD... | --rm KEYWORD... | --clear")
		return
	}
	rel, err := s.resolve(args[0])
	if err != nil {
		s.printErr(err)
		return
	}
	id, ok := s.table.IDForPath(rel)
	if !ok {
		s.errorf("%s is not tracked (index it first)", args[0])
		return
	}

	op, words := args[1], splitKeywords(args[2:])
	switch op {
	case "--add":
		if len(words) == 0 {
			s.errorf("--add needs at least one keyword")
			return
		}
		s.table.AddUserKeywords(id, words)
		s.successf("added %d keywords to %s", len(words), rel)
	case "--rm":
		if len(words) == 0 {
			s.errorf("--rm needs at least one keyword")
			return
		}
		s.table.RemoveUserKeywords(id, words)
		s.successf("removed %d keywords from %s", len(words), rel)
	case "--clear":
		s.table.ClearUserKeywords(id)
		s.successf("cleared user keywords from %s", rel)
	default:
		s.errorf("unknown meta operation %q", op)
		return
	}
	s.persist()
}

func (s *Shell) cmdIndex(ctx context.Context, args []string) {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	rel, err := s.resolve(target)
	if err != nil {
		s.printErr(err)
		return
	}
	abs := s.abs(rel)

	info, err := os.Stat(abs)
	if err != nil {
		s.errorf("cannot index %s: %v", target, err)
		return
	}

	if info.IsDir() {
		stats, err := s.ix.IndexTree(ctx, abs)
		if err != nil {
			s.printErr(err)
			return
		}
		s.successf("indexed %d files (%d added, %d updated, %d moved, %d unchanged)",
			stats.Indexed, stats.Added, stats.Updated, stats.Moved, stats.Unchanged)
		for _, failure := range stats.Failures {
			s.errorf("%s: %v", failure.Path, failure.Err)
		}
	} else {
		res, err := s.ix.IndexFile(ctx, abs)
		if err != nil {
			s.printErr(err)
			return
		}
		s.successf("%s %s (%d keywords)", res.Action, res.Path, res.Keywords)
	}
	s.persist()
}

func (s *Shell) cmdExtract(args []string) {
	if len(args) == 0 {
		s.errorf("usage: extract TEXT...")
		return
	}
	phrases, err := s.ext.Phrases(strings.Join(args, " "))
	if err != nil {
		s.printErr(err)
		return
	}
	if len(phrases) == 0 {
		fmt.Fprintln(s.out, s.styles.info.Render("no phrases"))
		return
	}
	for i, phrase := range phrases {
		fmt.Fprintf(s.out, "%2d. %s\n", i+1, phrase)
	}
}

func (s *Shell) cmdHelp(args []string) {
	usages := []struct{ cmd, desc string }{
		{"pwd", "print the cursor directory"},
		{"cd [DIR]", "move the cursor; / is the workspace root"},
		{"ls [DIR]", "list a directory"},
		{"find KEYWORD...", "search the index, best matches first"},
		{"meta PATH --add|--rm KEYWORD... | --clear", "edit user keywords"},
		{"index [PATH]", "index a file or tree under the cursor"},
		{"extract TEXT...", "show the ranked phrases a text yields"},
		{"help [COMMAND]", "this list"},
		{"exit", "save and leave"},
	}

	if len(args) > 0 {
		for _, u := range usages {
			if strings.HasPrefix(u.cmd, args[0]) {
				fmt.Fprintf(s.out, "  %s\n      %s\n", s.styles.command.Render(u.cmd), u.desc)
				return
			}
		}
		s.errorf("unknown command %q", args[0])
		return
	}
	for _, u := range usages {
		fmt.Fprintf(s.out, "  %-45s %s\n", s.styles.command.Render(u.cmd), u.desc)
	}
}

// persist pushes table mutations through the save hook. Failures keep
// the session alive; the index stays dirty and the next mutation retries.
func (s *Shell) persist() {
	s.dirty = true
	if s.save == nil {
		return
	}
	if err := s.save(); err != nil {
		s.errorf("save failed, changes kept in memory: %v", err)
		return
	}
	s.dirty = false
}

func (s *Shell) successf(format string, args ...any) {
	fmt.Fprintln(s.out, s.styles.success.Render("✓ ")+fmt.Sprintf(format, args...))
}

func (s *Shell) errorf(format string, args ...any) {
	fmt.Fprintln(s.out, s.styles.err.Render("✗ ")+fmt.Sprintf(format, args...))
}

func (s *Shell) printErr(err error) {
	var perr *perrors.PeregrineError
	if errors.As(err, &perr) {
		s.errorf("%s", perr.Message)
		if perr.Suggestion != "" {
			fmt.Fprintln(s.out, s.styles.info.Render("  "+perr.Suggestion))
		}
		return
	}
	s.errorf("%v", err)
}

// splitKeywords flattens comma- or space-separated keyword arguments,
// lowercased to match what extraction stores.
func splitKeywords(args []string) []string {
	var out []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// tokenize splits a command line on whitespace, honoring single and
// double quotes so paths with spaces survive.
func tokenize(line string) []string {
	var (
		out     []string
		current strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				out = append(out, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		out = append(out, current.String())
	}
	return out
}
