// Package client fetches remote files over HTTP into fresh local
// workspaces, built on [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(30 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//		client.WithThrottle(10, 5),
//	)
//
// # Fetching Files
//
// [Client.Fetch] streams a response body into a uniquely named
// temporary directory. The local file name is taken from the URL path:
//
//	res, err := c.Fetch(ctx, "https://example.com/data/report.csv",
//		client.WithMaxSizeMB(50),
//		client.WithChecksum(sha256.New(), expectedHex),
//	)
//	defer res.Release()
//
// A ceiling set with [WithMaxSizeMB] is enforced twice: against an
// advertised Content-Length before the body is read, and against the
// running byte count while streaming.
//
// # Errors
//
// A failed fetch returns one of [UnexpectedStatusError], [SizeLimitError],
// [NetworkError] or [FileSystemError], each matchable with [errors.As].
// A file cut short is left on disk; [PartialPath] reports it and
// [Discard] removes it. [WithRemovePartial] removes it automatically.
//
// For lower-level control see the
// [github.com/adamwoolhether/fetchpack/client/download] package.
package client
