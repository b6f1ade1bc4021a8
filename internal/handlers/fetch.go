package handlers

import (
	"context"
	"crypto/sha256"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/adamwoolhether/fetchpack/client"
	"github.com/adamwoolhether/fetchpack/web"
	"github.com/adamwoolhether/fetchpack/web/mux"
	"github.com/adamwoolhether/fetchpack/workdir"
)

// fetch downloads a URL into a fresh workspace and reports its location.
// The file is left for the caller; the janitor sweeps old workspaces.
// ?remove_partial=false keeps the partial file of a failed fetch.
func (h *handlers) fetch(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req fetchRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	removePartial, err := web.QueryBool(r, "remove_partial", true)
	if err != nil {
		return err
	}

	res, err := h.doFetch(ctx, req, removePartial)
	if err != nil {
		return fetchError(err)
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, fetchResponse{Path: res.Path, Bytes: res.Bytes})
}

// runFetch downloads a URL and moves the file into the run's directory.
func (h *handlers) runFetch(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	runID, err := web.Param(r, "run_id")
	if err != nil {
		return archiveError(err)
	}
	if !workdir.ValidRunID(runID) {
		return archiveError(workdir.ErrInvalidRunID)
	}

	var req fetchRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	dir, err := workdir.RunDir(h.fs, h.runs, runID)
	if err != nil {
		return archiveError(err)
	}

	res, err := h.doFetch(ctx, req, true)
	if err != nil {
		return fetchError(err)
	}
	defer func() {
		if err := res.Release(); err != nil {
			h.log.Error("releasing workspace", "dir", res.Dir, "error", err)
		}
	}()

	path, err := workdir.Adopt(h.fs, dir, res.Path)
	if err != nil {
		return archiveError(err)
	}

	n, err := workdir.CountFiles(h.fs, dir)
	if err != nil {
		return archiveError(err)
	}

	h.log.Info("file added to run", "run_id", runID, "path", path, "files", n)

	return web.RespondJSON(ctx, w, http.StatusCreated, runFetchResponse{
		RunID: runID,
		Path:  path,
		Bytes: res.Bytes,
		Files: n,
	})
}

func (h *handlers) doFetch(ctx context.Context, req fetchRequest, removePartial bool) (*client.FetchResult, error) {
	ctx, span := mux.StartSpan(ctx, "fetch", attribute.String("url", req.URL))
	defer span.End()

	var opts []client.FetchOption
	switch {
	case req.MaxSizeMB > 0:
		opts = append(opts, client.WithMaxSizeMB(req.MaxSizeMB))
	case h.defaultMax > 0:
		opts = append(opts, client.WithMaxSizeMB(h.defaultMax))
	}
	if req.SHA256 != "" {
		opts = append(opts, client.WithChecksum(sha256.New(), req.SHA256))
	}
	if removePartial {
		opts = append(opts, client.WithRemovePartial())
	}

	done := h.metrics.FetchStarted()

	res, err := h.client.Fetch(ctx, req.URL, opts...)
	if err != nil {
		span.RecordError(err)
		done(outcome(err), 0)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("bytes", res.Bytes))
	done(outcome(nil), res.Bytes)

	return res, nil
}
