//go:build !unix

package index

import "io/fs"

// IdentityFromInfo reports no identity on platforms without stable
// (device, inode) pairs. Records indexed here carry a nil identity and
// rename detection degrades to remove-plus-add.
func IdentityFromInfo(info fs.FileInfo) (Identity, bool) {
	_ = info
	return Identity{}, false
}
