package index

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Set is a compressed bitmap of FileIDs. It is the value type of the name
// and keyword postings and the working currency of the search engine.
// A Set is not safe for concurrent mutation; the Table's lock covers the
// postings, and search code operates on clones.
type Set struct {
	bm *roaring64.Bitmap
}

// NewSet creates a set holding the given ids.
func NewSet(ids ...FileID) *Set {
	s := &Set{bm: roaring64.New()}
	for _, id := range ids {
		s.bm.Add(uint64(id))
	}
	return s
}

// Add inserts id into the set.
func (s *Set) Add(id FileID) {
	s.bm.Add(uint64(id))
}

// Remove deletes id from the set if present.
func (s *Set) Remove(id FileID) {
	s.bm.Remove(uint64(id))
}

// Contains reports whether id is in the set.
func (s *Set) Contains(id FileID) bool {
	return s.bm.Contains(uint64(id))
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool {
	return s.bm.IsEmpty()
}

// Len returns the number of members.
func (s *Set) Len() int {
	return int(s.bm.GetCardinality())
}

// Min returns the smallest member. It panics on an empty set; callers
// check IsEmpty first.
func (s *Set) Min() FileID {
	return FileID(s.bm.Minimum())
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	return &Set{bm: s.bm.Clone()}
}

// And intersects s with other in place.
func (s *Set) And(other *Set) {
	s.bm.And(other.bm)
}

// Or unions other into s in place.
func (s *Set) Or(other *Set) {
	s.bm.Or(other.bm)
}

// AndNot removes every member of other from s in place.
func (s *Set) AndNot(other *Set) {
	s.bm.AndNot(other.bm)
}

// Equal reports whether both sets hold exactly the same ids.
func (s *Set) Equal(other *Set) bool {
	return s.bm.Equals(other.bm)
}

// Slice returns the members in ascending order.
func (s *Set) Slice() []FileID {
	raw := s.bm.ToArray()
	ids := make([]FileID, len(raw))
	for i, v := range raw {
		ids[i] = FileID(v)
	}
	return ids
}

// All iterates the members in ascending order.
func (s *Set) All() iter.Seq[FileID] {
	return func(yield func(FileID) bool) {
		it := s.bm.Iterator()
		for it.HasNext() {
			if !yield(FileID(it.Next())) {
				return
			}
		}
	}
}
