// Package fetchpack fetches remote files under a size ceiling and packs
// directory trees into zip archives.
//
// The two halves are independent: see the client package for fetching
// and the archive package for packing. This package holds shorthands
// for the common case.
package fetchpack

import (
	"context"

	"github.com/adamwoolhether/fetchpack/archive"
	"github.com/adamwoolhether/fetchpack/client"
)

// NewClient instantiates a new *Client with the provided options.
// If not specified, the default http.Client and http.Transport are used.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}

// Archive zips every regular file under src into dst and returns dst.
func Archive(ctx context.Context, src, dst string, opts ...archive.Option) (string, error) {
	return archive.Dir(ctx, src, dst, opts...)
}
