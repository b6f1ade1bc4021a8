package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/fault"
)

// Transfer is a validated set of options for a single transfer.
// A checksum option carries hash state, so a Transfer must not be reused.
type Transfer struct {
	opts   options
	logger *slog.Logger
}

// New validates optFns and returns a Transfer ready to run.
func New(logger *slog.Logger, optFns ...Option) (*Transfer, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	if opts.fs == nil {
		opts.fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Transfer{opts: opts, logger: logger}, nil
}

// Run streams body into name inside a freshly acquired workspace.
// contentLength is the advertised length, or -1 when unknown. A ceiling
// set with WithMaxSizeMB is checked against contentLength before any
// body byte is read, and against the running count after every chunk.
// The caller owns body and must close it.
//
// With WithRemovePartial a failed transfer removes its workspace, and the
// returned error no longer names a partial file.
func (t *Transfer) Run(ctx context.Context, body io.Reader, contentLength int64, name string) (_ *Result, err error) {
	opts, logger := t.opts, t.logger

	if opts.limit.exceeded(contentLength) {
		return nil, &SizeLimitError{LimitMB: opts.limit.mb, Observed: contentLength, Advertised: true}
	}

	if err := ctx.Err(); err != nil {
		return nil, &fault.NetworkError{Op: "read body", Err: cancelled(ctx)}
	}

	ws, err := Acquire(opts.fs, opts.root)
	if err != nil {
		return nil, err
	}

	file, path, err := ws.Create(name)
	if err != nil {
		// Nothing was written, so the workspace holds nothing worth keeping.
		if rerr := ws.Release(); rerr != nil {
			logger.Error("failed to remove empty workspace", "dir", ws.Dir(), "error", rerr)
		}
		return nil, err
	}

	var successful bool
	defer func() {
		if successful || !opts.removePartial {
			return
		}
		if rerr := ws.Release(); rerr != nil {
			logger.Error("failed to remove partial workspace", "dir", ws.Dir(), "error", rerr)
			return
		}
		forgetPath(err)
	}()

	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing download file", "path", path, "error", err)
		}
	}()

	logger.Info("downloading file", "path", path)

	var writer io.Writer = file
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}

	if opts.progress {
		writer = newMeter(writer, logger, path, contentLength)
	}

	n, err := stream(ctx, writer, body, opts.limit)
	if err != nil {
		return nil, withPath(err, path)
	}

	if contentLength >= 0 && n != contentLength {
		return nil, &fault.NetworkError{
			Op:   "read body",
			Path: path,
			Err: &Error{
				Err:    ErrContentLengthMismatch,
				Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
			},
		}
	}

	if err := opts.checksum.check(path); err != nil {
		return nil, err
	}

	if err := file.Sync(); err != nil {
		return nil, fault.FileSystem(opSync, path, err)
	}
	if err := file.Close(); err != nil {
		return nil, fault.FileSystem(opClose, path, err)
	}

	successful = true

	logger.Info("file downloaded", "path", path, "bytes", n)

	return &Result{Path: path, Dir: ws.Dir(), Bytes: n, fs: opts.fs}, nil
}

// stream copies src to dst in chunks of at most ChunkSize, in the order
// received. With a ceiling set, no read asks for more than one byte past
// the ceiling, and the loop stops right after the write that crosses it.
func stream(ctx context.Context, dst io.Writer, src io.Reader, limit ceiling) (int64, error) {
	src = &contextReader{ctx: ctx, r: src}
	buf := make([]byte, ChunkSize)

	var written int64
	for {
		chunk := buf
		if limit.set() {
			if remaining := limit.bytes - written + 1; remaining < int64(len(chunk)) {
				chunk = chunk[:remaining]
			}
		}

		nr, rerr := src.Read(chunk)
		if nr > 0 {
			nw, werr := dst.Write(chunk[:nr])
			written += int64(nw)
			if werr == nil && nw != nr {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return written, &fault.FileSystemError{Op: opWrite, Err: werr}
			}

			if limit.exceeded(written) {
				return written, &SizeLimitError{LimitMB: limit.mb, Observed: written}
			}
		}

		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return written, &fault.NetworkError{Op: "read body", Err: cancelled(ctx)}
			}

			return written, &fault.NetworkError{Op: "read body", Err: rerr}
		}
	}
}

// withPath records the partial file location on errors raised by stream.
func withPath(err error, path string) error {
	switch e := err.(type) {
	case *SizeLimitError:
		e.Path = path
	case *fault.NetworkError:
		e.Path = path
	case *fault.FileSystemError:
		e.Path = path
	}

	return err
}

// forgetPath clears the partial file location from every error in the
// chain once the file is gone.
func forgetPath(err error) {
	if e, ok := errors.AsType[*SizeLimitError](err); ok {
		e.Path = ""
	}
	if e, ok := errors.AsType[*fault.NetworkError](err); ok {
		e.Path = ""
	}
	if e, ok := errors.AsType[*Error](err); ok {
		e.Path = ""
	}
	if e, ok := errors.AsType[*fault.FileSystemError](err); ok {
		e.Path = ""
	}
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrDownloadCancelled, context.Cause(ctx))
}

// contextReader stops a read loop once ctx is done, even if the
// underlying reader would keep returning data.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}
