package index

// Identity is the physical identity of a file: its (device, inode) pair.
// Two paths with equal identity name the same underlying file, which is how
// renames and hard links are told apart from genuinely new files.
// Modification time is deliberately not part of identity; it lives on the
// record and is compared separately, so an in-place rewrite of the same
// inode still registers as a change.
type Identity struct {
	Dev uint64 `json:"dev"`
	Ino uint64 `json:"ino"`
}
