// Package peregrine embeds a workspace file index in another Go program.
//
// The package wraps the same engine the peregrine CLI uses: a persistent
// keyword index over a directory tree, searched by keyword, file name and
// modification time. A handle opened here and a CLI run against the same
// workspace read the same snapshot and respect the same write lock.
//
// Basic usage:
//
//	ix, err := peregrine.Open(".", peregrine.Writable())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ix.Close()
//
//	if _, err := ix.Update(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := ix.Find(ctx, peregrine.Query{Keywords: []string{"budget", "forecast"}})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, m := range res.Matches {
//		fmt.Println(m.Path, m.ModTime)
//	}
//
// Open locates the workspace by walking upward from the given directory,
// the way every CLI command does, so any path inside the tree works. A
// handle is read-only unless opened with Writable; a writable handle holds
// the workspace write lock until Close and therefore excludes 'peregrine
// index', 'peregrine watch' and every other writable handle for its
// lifetime.
//
// All methods are safe for concurrent use. A search sees the index state
// either before or after a concurrent Update, never a partial pass.
package peregrine
