package handlers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/adamwoolhether/fetchpack/archive"
	"github.com/adamwoolhether/fetchpack/client"
	"github.com/adamwoolhether/fetchpack/internal/metrics"
	"github.com/adamwoolhether/fetchpack/web/errs"
	"github.com/adamwoolhether/fetchpack/workdir"
)

var errIllegalPath = errors.New("illegal path")

// fetchError maps a client.Fetch failure to its HTTP response.
func fetchError(err error) error {
	if sizeErr, ok := errors.AsType[*client.SizeLimitError](err); ok {
		return errs.New(http.StatusRequestEntityTooLarge, sizeErr)
	}

	if statusErr, ok := errors.AsType[*client.UnexpectedStatusError](err); ok {
		return errs.New(http.StatusBadGateway, fmt.Errorf("origin responded with status %d", statusErr.StatusCode))
	}

	if errors.Is(err, client.ErrInvalidURL) {
		return errs.New(http.StatusBadRequest, err)
	}

	if errors.Is(err, client.ErrNetwork) {
		if timedOut(err) {
			return errs.New(http.StatusGatewayTimeout, err)
		}
		return errs.New(http.StatusBadGateway, err)
	}

	if errors.Is(err, client.ErrChecksumMismatch) {
		return errs.New(http.StatusBadGateway, err)
	}

	return errs.NewInternal(err)
}

// archiveError maps an archive or workdir failure to its HTTP response.
func archiveError(err error) error {
	switch {
	case errors.Is(err, errIllegalPath), errors.Is(err, workdir.ErrInvalidRunID):
		return errs.New(http.StatusBadRequest, err)
	case errors.Is(err, archive.ErrCancelled):
		return errs.New(http.StatusGatewayTimeout, err)
	}

	return errs.NewInternal(err)
}

func timedOut(err error) bool {
	if errors.Is(err, client.ErrDownloadCancelled) {
		return true
	}

	netErr, ok := errors.AsType[net.Error](err)
	return ok && netErr.Timeout()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, client.ErrSizeLimitExceeded):
		return metrics.OutcomeSizeLimit
	case errors.Is(err, client.ErrUnexpectedStatusCode):
		return metrics.OutcomeStatus
	case errors.Is(err, client.ErrInvalidURL), errors.Is(err, errIllegalPath), errors.Is(err, workdir.ErrInvalidRunID):
		return metrics.OutcomeInvalid
	case errors.Is(err, client.ErrNetwork), errors.Is(err, client.ErrChecksumMismatch):
		return metrics.OutcomeNetwork
	}

	return metrics.OutcomeFS
}

// under resolves p against root and rejects anything that lands outside it.
// Relative paths are taken relative to root.
func under(root, p string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errIllegalPath, err)
	}

	if !filepath.IsAbs(p) {
		p = filepath.Join(rootAbs, p)
	}
	target := filepath.Clean(p)

	rel, err := filepath.Rel(rootAbs, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is outside the archive root", errIllegalPath, p)
	}

	return target, nil
}
