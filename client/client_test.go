package client_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/client"
	"github.com/adamwoolhether/fetchpack/client/download"
)

const root = "/downloads"

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newFetchClient builds a client writing into an in-memory filesystem.
func newFetchClient(t *testing.T, opts ...client.Option) (*client.Client, afero.Fs) {
	t.Helper()

	fsys := afero.NewMemMapFs()
	base := []client.Option{
		client.WithFS(fsys),
		client.WithDownloadRoot(root),
		client.WithLogger(discardLogger()),
	}

	c, err := client.Build(append(base, opts...)...)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	return c, fsys
}

func workspaces(t *testing.T, fsys afero.Fs) int {
	t.Helper()

	entries, err := afero.ReadDir(fsys, root)
	if err != nil {
		return 0
	}

	return len(entries)
}

func serveBytes(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// serveChunked streams n bytes without a Content-Length header.
func serveChunked(n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		chunk := bytes.Repeat([]byte("c"), 16<<10)
		for sent := 0; sent < n; sent += len(chunk) {
			if _, err := w.Write(chunk[:min(len(chunk), n-sent)]); err != nil {
				return
			}
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// -------------------------------------------------------------------------
// Build options
// -------------------------------------------------------------------------

func TestClient_WithUserAgent(t *testing.T) {
	expectedUA := "TestUserAgent/1.0"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != expectedUA {
			t.Errorf("expected User-Agent %q, got %q", expectedUA, ua)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		serveBytes([]byte("ok"))(w, r)
	}))
	defer ts.Close()

	c, _ := newFetchClient(t, client.WithUserAgent(expectedUA))

	if _, err := c.Fetch(t.Context(), ts.URL+"/ua"); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestClient_WithHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := r.Header.Get("X-Token"); tok != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		serveBytes([]byte("ok"))(w, r)
	}))
	defer ts.Close()

	c, _ := newFetchClient(t, client.WithHeaders(map[string]string{"X-Token": "secret"}))

	if _, err := c.Fetch(t.Context(), ts.URL+"/h"); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestClient_FullChainComposition(t *testing.T) {
	expectedUA := "FullChain/1.0"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != expectedUA {
			t.Errorf("expected User-Agent %q, got %q", expectedUA, ua)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		serveBytes([]byte("chain"))(w, r)
	}))
	defer ts.Close()

	var transportCalled atomic.Bool
	custom := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		transportCalled.Store(true)
		return http.DefaultTransport.RoundTrip(r)
	})

	// All three options in various orders should produce the same result.
	orders := [][]client.Option{
		{client.WithTransport(custom), client.WithUserAgent(expectedUA), client.WithThrottle(100, 10)},
		{client.WithThrottle(100, 10), client.WithTransport(custom), client.WithUserAgent(expectedUA)},
		{client.WithUserAgent(expectedUA), client.WithThrottle(100, 10), client.WithTransport(custom)},
	}

	for i, opts := range orders {
		transportCalled.Store(false)

		c, _ := newFetchClient(t, opts...)

		if _, err := c.Fetch(t.Context(), ts.URL+"/chain"); err != nil {
			t.Errorf("order %d: expected no error, got: %v", i, err)
		}
		if !transportCalled.Load() {
			t.Errorf("order %d: custom transport was not called", i)
		}
	}
}

func TestClient_BuildValidation(t *testing.T) {
	testCases := []struct {
		name string
		opt  client.Option
	}{
		{"nil transport", client.WithTransport(nil)},
		{"nil client", client.WithClient(nil)},
		{"nil filesystem", client.WithFS(nil)},
		{"negative timeout", client.WithTimeout(-1)},
		{"zero rps", client.WithThrottle(0, 1)},
		{"zero burst", client.WithThrottle(1, 0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.Build(tc.opt); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestClient_WithTimeoutZero(t *testing.T) {
	// Zero means no timeout per stdlib.
	if _, err := client.Build(client.WithTimeout(0)); err != nil {
		t.Fatalf("expected no error for zero timeout, got: %v", err)
	}
}

func TestClient_WithClientIsNotMutated(t *testing.T) {
	custom := &http.Client{Timeout: 42 * time.Second}

	_, err := client.Build(
		client.WithClient(custom),
		client.WithTimeout(time.Second),
		client.WithNoFollowRedirects(),
		client.WithUserAgent("x/1.0"),
	)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	if custom.Timeout != 42*time.Second {
		t.Errorf("caller's timeout changed to %v", custom.Timeout)
	}
	if custom.CheckRedirect != nil {
		t.Error("caller's CheckRedirect was set")
	}
	if custom.Transport != nil {
		t.Error("caller's Transport was set")
	}
}

func TestClient_WithClientCustomTransport(t *testing.T) {
	var called atomic.Bool
	custom := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called.Store(true)
		return http.DefaultTransport.RoundTrip(r)
	})}

	ts := httptest.NewServer(serveBytes([]byte("x")))
	defer ts.Close()

	c, _ := newFetchClient(t, client.WithClient(custom))
	if _, err := c.Fetch(t.Context(), ts.URL+"/x"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if !called.Load() {
		t.Error("transport from WithClient was not used")
	}
}

func TestClient_WithNoFollowRedirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		serveBytes([]byte("end"))(w, r)
	}))
	defer ts.Close()

	follow, _ := newFetchClient(t)
	res, err := follow.Fetch(t.Context(), ts.URL+"/start")
	if err != nil {
		t.Fatalf("following client: %v", err)
	}
	if filepath.Base(res.Path) != "start" {
		t.Errorf("file name should come from the requested URL, got %q", res.Path)
	}

	noFollow, fsys := newFetchClient(t, client.WithNoFollowRedirects())
	_, err = noFollow.Fetch(t.Context(), ts.URL+"/start")

	statusErr, ok := errors.AsType[*client.UnexpectedStatusError](err)
	if !ok {
		t.Fatalf("expected *UnexpectedStatusError, got: %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusFound {
		t.Errorf("expected 302, got %d", statusErr.StatusCode)
	}
	if n := workspaces(t, fsys); n != 0 {
		t.Errorf("expected no workspace, found %d", n)
	}
}

// -------------------------------------------------------------------------
// Fetch
// -------------------------------------------------------------------------

func TestClient_Fetch_Basic(t *testing.T) {
	body := []byte("id,name\n1,alice\n")

	ts := httptest.NewServer(serveBytes(body))
	defer ts.Close()

	c, fsys := newFetchClient(t)

	res, err := c.Fetch(t.Context(), ts.URL+"/exports/report.csv?version=2")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if diff := cmp.Diff("report.csv", filepath.Base(res.Path)); diff != "" {
		t.Errorf("file name mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(res.Path, root+"/") {
		t.Errorf("expected path under %s, got %s", root, res.Path)
	}
	if res.Bytes != int64(len(body)) {
		t.Errorf("expected %d bytes, got %d", len(body), res.Bytes)
	}

	got, err := afero.ReadFile(fsys, res.Path)
	if err != nil {
		t.Fatalf("reading fetched file: %v", err)
	}
	if diff := cmp.Diff(body, got); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Fetch_FileNames(t *testing.T) {
	ts := httptest.NewServer(serveBytes([]byte("n")))
	defer ts.Close()

	testCases := []struct {
		name string
		path string
		exp  string
	}{
		{"bare host", "", download.DefaultFileName},
		{"root", "/", download.DefaultFileName},
		{"query only", "/?q=1", download.DefaultFileName},
		{"nested", "/a/b/c.tar.gz", "c.tar.gz"},
		{"trailing slash", "/dir/", download.DefaultFileName},
		{"escaped", "/my%20file.txt", "my file.txt"},
	}

	c, _ := newFetchClient(t)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := c.Fetch(t.Context(), ts.URL+tc.path)
			if err != nil {
				t.Fatalf("fetch failed: %v", err)
			}
			if got := filepath.Base(res.Path); got != tc.exp {
				t.Errorf("expected file name %q, got %q", tc.exp, got)
			}
		})
	}
}

func TestClient_Fetch_UnderLimit(t *testing.T) {
	body := bytes.Repeat([]byte("u"), 512<<10)

	ts := httptest.NewServer(serveBytes(body))
	defer ts.Close()

	c, _ := newFetchClient(t)

	res, err := c.Fetch(t.Context(), ts.URL+"/half.bin", client.WithMaxSizeMB(1))
	if err != nil {
		t.Fatalf("fetch under the limit failed: %v", err)
	}
	if res.Bytes != int64(len(body)) {
		t.Errorf("expected %d bytes, got %d", len(body), res.Bytes)
	}
}

func TestClient_Fetch_ExactlyAtLimit(t *testing.T) {
	ts := httptest.NewServer(serveChunked(1 << 20))
	defer ts.Close()

	c, _ := newFetchClient(t)

	res, err := c.Fetch(t.Context(), ts.URL+"/exact.bin", client.WithMaxSizeMB(1))
	if err != nil {
		t.Fatalf("a body of exactly the limit must pass: %v", err)
	}
	if res.Bytes != 1<<20 {
		t.Errorf("expected %d bytes, got %d", 1<<20, res.Bytes)
	}
}

func TestClient_Fetch_AdvertisedOversize(t *testing.T) {
	var served atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2000000")
		w.WriteHeader(http.StatusOK)
		chunk := bytes.Repeat([]byte("o"), 1000)
		for range 2000 {
			n, err := w.Write(chunk)
			served.Add(int64(n))
			if err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	c, fsys := newFetchClient(t)

	_, err := c.Fetch(t.Context(), ts.URL+"/big.bin", client.WithMaxSizeMB(1))
	if !errors.Is(err, client.ErrSizeLimitExceeded) {
		t.Fatalf("expected ErrSizeLimitExceeded, got: %v", err)
	}

	sizeErr, ok := errors.AsType[*client.SizeLimitError](err)
	if !ok {
		t.Fatalf("expected *SizeLimitError, got %T", err)
	}

	want := client.SizeLimitError{LimitMB: 1, Observed: 2_000_000, Advertised: true}
	if diff := cmp.Diff(want, *sizeErr); diff != "" {
		t.Errorf("size error mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(err.Error(), "maximum allowed size of 1 MB") {
		t.Errorf("unexpected message: %v", err)
	}

	if n := workspaces(t, fsys); n != 0 {
		t.Errorf("no workspace may be created on an advertised violation, found %d", n)
	}
	if _, ok := client.PartialPath(err); ok {
		t.Error("advertised violation must not report a partial file")
	}
}

func TestClient_Fetch_StreamedOversize(t *testing.T) {
	ts := httptest.NewServer(serveChunked(2 << 20))
	defer ts.Close()

	c, fsys := newFetchClient(t)

	_, err := c.Fetch(t.Context(), ts.URL+"/stream.bin", client.WithMaxSizeMB(1))

	sizeErr, ok := errors.AsType[*client.SizeLimitError](err)
	if !ok {
		t.Fatalf("expected *SizeLimitError, got: %T: %v", err, err)
	}
	if sizeErr.Advertised {
		t.Error("chunked body must be reported as received, not advertised")
	}

	const limit = 1 << 20
	if sizeErr.Observed <= limit || sizeErr.Observed >= limit+download.ChunkSize {
		t.Errorf("observed %d bytes, want in (%d, %d)", sizeErr.Observed, limit, limit+download.ChunkSize)
	}

	partial, ok := client.PartialPath(err)
	if !ok {
		t.Fatal("expected partial file to be reported")
	}

	info, err := fsys.Stat(partial)
	if err != nil {
		t.Fatalf("partial file should remain: %v", err)
	}
	if info.Size() != sizeErr.Observed {
		t.Errorf("partial size %d, want %d", info.Size(), sizeErr.Observed)
	}

	if err := client.Discard(fsys, partial); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if n := workspaces(t, fsys); n != 0 {
		t.Errorf("discard should remove the workspace, found %d", n)
	}
}

func TestClient_Fetch_RemovePartial(t *testing.T) {
	ts := httptest.NewServer(serveChunked(2 << 20))
	defer ts.Close()

	c, fsys := newFetchClient(t)

	_, err := c.Fetch(t.Context(), ts.URL+"/stream.bin", client.WithMaxSizeMB(1), client.WithRemovePartial())
	if !errors.Is(err, client.ErrSizeLimitExceeded) {
		t.Fatalf("expected ErrSizeLimitExceeded, got: %v", err)
	}

	if n := workspaces(t, fsys); n != 0 {
		t.Errorf("expected workspace to be removed, found %d", n)
	}
	if p, ok := client.PartialPath(err); ok {
		t.Errorf("removed file still reported as partial: %s", p)
	}
}

func TestClient_Fetch_UnexpectedStatus(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		auth   bool
	}{
		{"not found", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, false},
		{"unauthorized", http.StatusUnauthorized, true},
		{"forbidden", http.StatusForbidden, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, "nope")
			}))
			defer ts.Close()

			c, fsys := newFetchClient(t)

			_, err := c.Fetch(t.Context(), ts.URL+"/missing.txt")

			statusErr, ok := errors.AsType[*client.UnexpectedStatusError](err)
			if !ok {
				t.Fatalf("expected *UnexpectedStatusError, got: %T: %v", err, err)
			}
			if statusErr.StatusCode != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, statusErr.StatusCode)
			}
			if statusErr.Body != "nope" {
				t.Errorf("expected body %q, got %q", "nope", statusErr.Body)
			}
			if !errors.Is(err, client.ErrUnexpectedStatusCode) {
				t.Error("expected ErrUnexpectedStatusCode")
			}
			if got := errors.Is(err, client.ErrAuthFailure); got != tc.auth {
				t.Errorf("ErrAuthFailure = %v, want %v", got, tc.auth)
			}
			if n := workspaces(t, fsys); n != 0 {
				t.Errorf("no local file may be created, found %d workspaces", n)
			}
		})
	}
}

func TestClient_Fetch_ErrorBodyCapped(t *testing.T) {
	largeBody := bytes.Repeat([]byte("X"), 8192)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(largeBody)
	}))
	defer ts.Close()

	c, _ := newFetchClient(t)

	_, err := c.Fetch(t.Context(), ts.URL+"/capped")

	statusErr, ok := errors.AsType[*client.UnexpectedStatusError](err)
	if !ok {
		t.Fatalf("expected *UnexpectedStatusError, got: %T: %v", err, err)
	}

	const maxErrBodySize = 4 << 10
	if len(statusErr.Body) != maxErrBodySize {
		t.Errorf("expected body to be exactly %d bytes (capped), got %d", maxErrBodySize, len(statusErr.Body))
	}
}

func TestClient_Fetch_NetworkError(t *testing.T) {
	ts := httptest.NewServer(serveBytes([]byte("gone")))
	addr := ts.URL
	ts.Close()

	c, fsys := newFetchClient(t)

	_, err := c.Fetch(t.Context(), addr+"/gone.txt")
	if !errors.Is(err, client.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got: %v", err)
	}

	netErr, ok := errors.AsType[*client.NetworkError](err)
	if !ok {
		t.Fatalf("expected *NetworkError, got %T", err)
	}
	if netErr.URL != addr+"/gone.txt" {
		t.Errorf("expected url %q, got %q", addr+"/gone.txt", netErr.URL)
	}
	if n := workspaces(t, fsys); n != 0 {
		t.Errorf("expected no workspace, found %d", n)
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c, _ := newFetchClient(t, client.WithTimeout(50*time.Millisecond))

	_, err := c.Fetch(t.Context(), ts.URL+"/slow")
	if !errors.Is(err, client.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got: %v", err)
	}

	netErr, ok := errors.AsType[net.Error](err)
	if !ok || !netErr.Timeout() {
		t.Errorf("expected a timeout error, got: %v", err)
	}
}

func TestClient_Fetch_InvalidURL(t *testing.T) {
	testCases := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"unsupported scheme", "ftp://example.com/file"},
		{"no scheme", "example.com/file"},
		{"missing host", "http:///file"},
		{"unparsable", "http://[::1"},
	}

	c, _ := newFetchClient(t)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Fetch(t.Context(), tc.url)
			if !errors.Is(err, client.ErrInvalidURL) {
				t.Errorf("expected ErrInvalidURL, got: %v", err)
			}
		})
	}
}

func TestClient_Fetch_InvalidOptionMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	c, _ := newFetchClient(t)

	for _, mb := range []int64{0, -1} {
		if _, err := c.Fetch(t.Context(), ts.URL+"/x", client.WithMaxSizeMB(mb)); err == nil {
			t.Errorf("expected error for max size %d", mb)
		}
	}

	if calls.Load() != 0 {
		t.Errorf("invalid options must not reach the server, got %d calls", calls.Load())
	}
}

func TestClient_Fetch_FileSystemError(t *testing.T) {
	ts := httptest.NewServer(serveBytes([]byte("data")))
	defer ts.Close()

	c, err := client.Build(
		client.WithFS(afero.NewReadOnlyFs(afero.NewMemMapFs())),
		client.WithDownloadRoot(root),
		client.WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	_, err = c.Fetch(t.Context(), ts.URL+"/data.txt")
	if !errors.Is(err, client.ErrFileSystem) {
		t.Fatalf("expected ErrFileSystem, got: %v", err)
	}
	if _, ok := errors.AsType[*client.FileSystemError](err); !ok {
		t.Errorf("expected *FileSystemError, got %T", err)
	}
}

func TestClient_Fetch_ChecksumPass(t *testing.T) {
	body := []byte("verified content")
	sum := sha256.Sum256(body)

	ts := httptest.NewServer(serveBytes(body))
	defer ts.Close()

	c, _ := newFetchClient(t)

	res, err := c.Fetch(t.Context(), ts.URL+"/v.txt", client.WithChecksum(sha256.New(), hex.EncodeToString(sum[:])))
	if err != nil {
		t.Fatalf("fetch with valid checksum failed: %v", err)
	}
	if res.Bytes != int64(len(body)) {
		t.Errorf("expected %d bytes, got %d", len(body), res.Bytes)
	}
}

func TestClient_Fetch_ChecksumFail(t *testing.T) {
	ts := httptest.NewServer(serveBytes([]byte("tampered")))
	defer ts.Close()

	c, _ := newFetchClient(t)

	_, err := c.Fetch(t.Context(), ts.URL+"/v.txt", client.WithChecksum(sha256.New(), strings.Repeat("0", 64)))
	if !errors.Is(err, client.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got: %v", err)
	}

	if _, ok := errors.AsType[*client.DownloadError](err); !ok {
		t.Errorf("expected *DownloadError, got %T", err)
	}
	if _, ok := client.PartialPath(err); !ok {
		t.Error("expected the unverified file to be reported")
	}
}

func TestClient_Fetch_Release(t *testing.T) {
	ts := httptest.NewServer(serveBytes([]byte("temp")))
	defer ts.Close()

	c, fsys := newFetchClient(t)

	res, err := c.Fetch(t.Context(), ts.URL+"/t.txt")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if err := res.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if n := workspaces(t, fsys); n != 0 {
		t.Errorf("expected workspace to be removed, found %d", n)
	}
}

func TestClient_Fetch_CancelMidDownload(t *testing.T) {
	const chunkSize = 1024
	const totalChunks = 20
	chunk := bytes.Repeat([]byte("a"), chunkSize)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(chunkSize*totalChunks))
		w.WriteHeader(http.StatusOK)

		for range totalChunks {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			select {
			case <-r.Context().Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
	}))
	defer ts.Close()

	c, _ := newFetchClient(t)

	ctx, cancel := context.WithCancel(t.Context())

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, ts.URL+"/slow.bin")
		errCh <- err
	}()

	// Let a few chunks arrive, then cancel.
	time.Sleep(250 * time.Millisecond)
	cancel()

	err := <-errCh
	if !errors.Is(err, client.ErrDownloadCancelled) {
		t.Fatalf("expected ErrDownloadCancelled, got: %v", err)
	}
	if !errors.Is(err, client.ErrNetwork) {
		t.Errorf("expected ErrNetwork, got: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got: %v", err)
	}
}

func TestClient_Fetch_AlreadyCancelledContext(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	c, fsys := newFetchClient(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := c.Fetch(ctx, ts.URL+"/never")
	if !errors.Is(err, client.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("request should not have been made, got %d calls", calls.Load())
	}
	if n := workspaces(t, fsys); n != 0 {
		t.Errorf("expected no workspace, found %d", n)
	}
}

func TestClient_Fetch_Concurrent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveBytes([]byte("body:" + r.URL.Path))(w, r)
	}))
	defer ts.Close()

	c, fsys := newFetchClient(t)

	const n = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paths = make(map[string]string, n)
	)

	for i := range n {
		wg.Go(func() {
			// Every goroutine asks for the same file name.
			res, err := c.Fetch(t.Context(), fmt.Sprintf("%s/same.txt?i=%d", ts.URL, i))
			if err != nil {
				t.Errorf("fetch %d: %v", i, err)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			paths[res.Path] = res.Dir
		})
	}
	wg.Wait()

	if len(paths) != n {
		t.Fatalf("expected %d distinct paths, got %d", n, len(paths))
	}

	for p := range paths {
		got, err := afero.ReadFile(fsys, p)
		if err != nil {
			t.Fatalf("reading %s: %v", p, err)
		}
		if diff := cmp.Diff("body:/same.txt", string(got)); diff != "" {
			t.Errorf("content mismatch for %s (-want +got):\n%s", p, diff)
		}
	}
}

func TestClient_Fetch_ThrottleLimitsRequests(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		serveBytes([]byte("t"))(w, r)
	}))
	defer ts.Close()

	c, _ := newFetchClient(t, client.WithThrottle(1, 1))

	if _, err := c.Fetch(t.Context(), ts.URL+"/first"); err != nil {
		t.Fatalf("first fetch should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Fetch(ctx, ts.URL+"/second"); !errors.Is(err, client.ErrNetwork) {
		t.Fatalf("expected throttled fetch to fail with ErrNetwork, got: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("throttled fetch must not reach the server, got %d calls", calls.Load())
	}
}
