// Package ignore implements .peregrineignore pattern matching. The syntax
// is a small glob dialect: one pattern per line, # comments, ! negation,
// trailing / for directory-only patterns, leading / to anchor at the
// matcher's directory, * ? and character classes within a component, **
// across components. Later patterns override earlier ones.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher holds compiled ignore patterns for one directory. Patterns are
// matched against paths relative to that directory. A Matcher is immutable
// after loading and safe for concurrent use.
type Matcher struct {
	rules []rule
}

type rule struct {
	pattern  string
	regex    *regexp.Regexp
	negation bool
	dirOnly  bool
	anchored bool
}

// New creates an empty matcher that ignores nothing.
func New() *Matcher {
	return &Matcher{}
}

// Len returns the number of compiled patterns.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// AddPattern compiles and appends one pattern line. Blank lines and
// comments are skipped.
func (m *Matcher) AddPattern(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := rule{pattern: pattern}

	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	// A slash in the middle anchors too: "doc/drafts" means the path from
	// the matcher's directory, not any nested "drafts".
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + patternToRegex(pattern) + "$")
	m.rules = append(m.rules, r)
}

// AddFromFile reads patterns from an ignore file, one per line.
func (m *Matcher) AddFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.AddPattern(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read ignore file: %w", err)
	}
	return nil
}

// Match reports whether path should be ignored. path is relative to the
// matcher's directory, slash-separated or native. The last matching rule
// decides, so a later !pattern can re-include an earlier exclusion.
func (m *Matcher) Match(path string, isDir bool) bool {
	if len(m.rules) == 0 {
		return false
	}
	path = filepath.ToSlash(path)

	ignored := false
	for _, r := range m.rules {
		if r.matches(path, isDir) {
			ignored = !r.negation
		}
	}
	return ignored
}

func (r rule) matches(path string, isDir bool) bool {
	parts := strings.Split(path, "/")

	if r.anchored {
		if r.regex.MatchString(path) {
			return !r.dirOnly || isDir
		}
		// A directory pattern also claims everything beneath it.
		for i := 0; i < len(parts)-1; i++ {
			if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
				return true
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	if r.regex.MatchString(parts[len(parts)-1]) {
		return true
	}
	if r.regex.MatchString(path) {
		return true
	}
	for _, part := range parts[:len(parts)-1] {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex translates the glob dialect into a regular expression.
// * matches within a component, ** across components, ? a single
// character, [...] passes through as a class.
func patternToRegex(pattern string) string {
	var out strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					out.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				out.WriteString(".*")
				i += 2
				continue
			}
			out.WriteString("[^/]*")
			i++
		case '?':
			out.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				out.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				out.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		default:
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return out.String()
}
