// Package download streams an HTTP response body into a freshly acquired
// temporary workspace while enforcing an optional size ceiling.
//
// # Single Transfer
//
// [New] validates the options up front. [Transfer.Run] then rejects an
// advertised Content-Length above the ceiling before a single body byte is
// read, copies the body in [ChunkSize] chunks and stops as soon as the
// running count passes the ceiling:
//
//	t, err := download.New(logger, download.WithMaxSizeMB(10))
//	if err != nil {
//		return err
//	}
//	res, err := t.Run(ctx, resp.Body, resp.ContentLength, "data.csv")
//
// Every call acquires its own [Workspace], so concurrent transfers never
// share a path.
//
// # Partial Files
//
// A failed transfer leaves whatever was written on disk unless
// [WithRemovePartial] is given, in which case [PartialPath] reports
// nothing. Otherwise use [PartialPath] to find the leftover file and
// [Discard] to remove it:
//
//	if p, ok := download.PartialPath(err); ok {
//		_ = download.Discard(afero.NewOsFs(), p)
//	}
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/fetchpack/client] package, which builds a
// Transfer per fetch and re-exports all download options.
package download
