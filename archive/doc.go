// Package archive bundles directory trees into deflate-compressed zip
// files and reads them back.
//
// Entry names are slash-separated paths relative to the source
// directory, so an archive re-extracts into an equivalent tree wherever
// it was built. Only regular files become entries; directories are
// implied by entry names and symbolic links are never followed.
//
//	dst, err := archive.Dir(ctx, "/data/run-42", "/data/run-42.zip",
//		archive.WithCompressionLevel(flate.BestSpeed),
//		archive.WithExclude("*.tmp"),
//	)
//
// A failed [Dir] removes the partially written archive. Filesystem
// failures are returned as [fault.FileSystemError].
package archive
