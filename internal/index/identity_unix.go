//go:build unix

package index

import (
	"io/fs"
	"syscall"
)

// IdentityFromInfo extracts the (device, inode) pair from a stat result.
// ok is false when the platform stat carries no inode data.
func IdentityFromInfo(info fs.FileInfo) (Identity, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return Identity{}, false
	}
	return Identity{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, true
}
