package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/adamwoolhether/fetchpack/archive"
	"github.com/adamwoolhether/fetchpack/internal/metrics"
	"github.com/adamwoolhether/fetchpack/web"
	"github.com/adamwoolhether/fetchpack/web/errs"
	"github.com/adamwoolhether/fetchpack/web/mux"
	"github.com/adamwoolhether/fetchpack/workdir"
)

// archiveDir zips a directory under the archive root into an archive that
// also lives under the archive root.
func (h *handlers) archiveDir(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req archiveRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	src, err := under(h.archives, req.SourceDirectory)
	if err != nil {
		h.metrics.ObserveArchive(outcome(err), 0)
		return archiveError(err)
	}

	dst, err := under(h.archives, req.DestinationArchivePath)
	if err != nil {
		h.metrics.ObserveArchive(outcome(err), 0)
		return archiveError(err)
	}

	resp, err := h.pack(ctx, src, dst)
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, resp)
}

// runArchive zips a run's directory to <archive root>/<run_id>.zip.
func (h *handlers) runArchive(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	runID, err := web.Param(r, "run_id")
	if err != nil {
		return archiveError(err)
	}

	src, err := workdir.Path(h.runs, runID)
	if err != nil {
		h.metrics.ObserveArchive(outcome(err), 0)
		return archiveError(err)
	}

	resp, err := h.pack(ctx, src, filepath.Join(h.archives, runID+".zip"))
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, resp)
}

// runFiles lists the files fetched for a run so far.
func (h *handlers) runFiles(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	runID, err := web.Param(r, "run_id")
	if err != nil {
		return archiveError(err)
	}

	dir, err := workdir.Path(h.runs, runID)
	if err != nil {
		return archiveError(err)
	}

	files, err := workdir.ListFiles(h.fs, dir)
	if err != nil {
		return archiveError(err)
	}

	return web.RespondJSON(ctx, w, http.StatusOK, runFilesResponse{RunID: runID, Files: files})
}

func (h *handlers) pack(ctx context.Context, src, dst string) (archiveResponse, error) {
	ctx, span := mux.StartSpan(ctx, "archive", attribute.String("src", src), attribute.String("dst", dst))
	defer span.End()

	info, err := h.fs.Stat(src)
	if err != nil || !info.IsDir() {
		h.metrics.ObserveArchive(metrics.OutcomeInvalid, 0)
		return archiveResponse{}, errs.New(http.StatusNotFound, fmt.Errorf("source directory %q not found", src))
	}

	if err := h.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		h.metrics.ObserveArchive(outcome(err), 0)
		return archiveResponse{}, errs.NewInternal(err)
	}

	opts := []archive.Option{archive.WithFS(h.fs), archive.WithLogger(h.log)}

	path, err := archive.Dir(ctx, src, dst, opts...)
	if err != nil {
		span.RecordError(err)
		h.metrics.ObserveArchive(outcome(err), 0)
		return archiveResponse{}, archiveError(err)
	}

	entries, err := archive.List(path, opts...)
	if err != nil {
		h.metrics.ObserveArchive(outcome(err), 0)
		return archiveResponse{}, archiveError(err)
	}

	h.metrics.ObserveArchive(outcome(nil), len(entries))

	return archiveResponse{ArchivePath: path, Entries: len(entries)}, nil
}
