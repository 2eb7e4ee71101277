package index

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// FileID identifies one tracked file for the lifetime of its record.
type FileID uint64

// Allocator issues FileIDs monotonically and recycles released ones.
// Released ids are reissued smallest-first, so allocation order is
// deterministic for a given history.
type Allocator struct {
	free *roaring64.Bitmap
	last int64
}

// NewAllocator creates an allocator that has never issued an id.
func NewAllocator() *Allocator {
	return &Allocator{
		free: roaring64.New(),
		last: -1,
	}
}

// NextID returns the smallest released id if any exist, otherwise the next
// never-issued id.
func (a *Allocator) NextID() FileID {
	if !a.free.IsEmpty() {
		id := a.free.Minimum()
		a.free.Remove(id)
		return FileID(id)
	}
	a.last++
	return FileID(a.last)
}

// Release returns an id to the free pool. The caller must have stripped it
// from every index mapping first.
func (a *Allocator) Release(id FileID) {
	a.free.Add(uint64(id))
}

// InUse reports whether id has been issued and not released.
func (a *Allocator) InUse(id FileID) bool {
	return int64(id) <= a.last && !a.free.Contains(uint64(id))
}

// Last returns the highest id ever issued, or -1 when none has been.
func (a *Allocator) Last() int64 {
	return a.last
}

// FreeCount returns the number of released ids awaiting reuse.
func (a *Allocator) FreeCount() int {
	return int(a.free.GetCardinality())
}

// FreeIDs returns the released ids in ascending order.
func (a *Allocator) FreeIDs() []FileID {
	raw := a.free.ToArray()
	ids := make([]FileID, len(raw))
	for i, v := range raw {
		ids[i] = FileID(v)
	}
	return ids
}

// restoreAllocator rebuilds an allocator from persisted state.
func restoreAllocator(free []FileID, last int64) *Allocator {
	a := &Allocator{
		free: roaring64.New(),
		last: last,
	}
	for _, id := range free {
		a.free.Add(uint64(id))
	}
	return a
}
