package index

import (
	"path/filepath"
	"sort"
	"time"
)

// Keywords is a set of keyword strings.
type Keywords map[string]struct{}

// NewKeywords builds a set from the given words.
func NewKeywords(words ...string) Keywords {
	k := make(Keywords, len(words))
	for _, w := range words {
		k[w] = struct{}{}
	}
	return k
}

// Has reports whether w is in the set.
func (k Keywords) Has(w string) bool {
	_, ok := k[w]
	return ok
}

// Add inserts w.
func (k Keywords) Add(w string) {
	k[w] = struct{}{}
}

// Clone returns an independent copy.
func (k Keywords) Clone() Keywords {
	out := make(Keywords, len(k))
	for w := range k {
		out[w] = struct{}{}
	}
	return out
}

// Union returns a new set holding every word from k and other.
func (k Keywords) Union(other Keywords) Keywords {
	out := make(Keywords, len(k)+len(other))
	for w := range k {
		out[w] = struct{}{}
	}
	for w := range other {
		out[w] = struct{}{}
	}
	return out
}

// Sorted returns the words in ascending order.
func (k Keywords) Sorted() []string {
	words := make([]string, 0, len(k))
	for w := range k {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// FileRecord is the authoritative state of one tracked file.
//
// Keywords holds the full searchable set: extracted content keywords
// unioned with user-attached ones. UserKeywords tracks the user-attached
// subset so it survives re-extraction when the file changes on disk.
type FileRecord struct {
	Path         string
	Keywords     Keywords
	UserKeywords Keywords
	Identity     *Identity
	ModTime      time.Time
}

// Basename returns the final path element, the key of the name index.
func (r *FileRecord) Basename() string {
	return filepath.Base(r.Path)
}

// identityCopy returns a detached copy of the record's identity pointer.
func (r *FileRecord) identityCopy() *Identity {
	if r.Identity == nil {
		return nil
	}
	ident := *r.Identity
	return &ident
}
