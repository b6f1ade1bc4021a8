package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/client/download"
	"github.com/adamwoolhether/fetchpack/client/throttle"
	"github.com/adamwoolhether/fetchpack/fault"
)

// Client fetches remote files into local workspaces. The zero value is
// not usable; construct one with Build.
type Client struct {
	c       *http.Client
	logger  *slog.Logger
	headers map[string]string
	fs      afero.Fs
	root    string
}

// Build assembles a Client. Transport layers stack in a fixed order:
// the throttle wraps the user agent, which wraps the base transport.
func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
		fs:     afero.NewOsFs(),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		cpy := *opts.client
		client.c = &cpy
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if opts.fs != nil {
		client.fs = opts.fs
	}
	client.root = opts.downloadRoot
	client.headers = opts.headers

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Fetch downloads rawURL into a fresh temporary workspace and returns the
// local file. The file name is the final segment of the URL path. Options
// are validated before any connection is made.
//
// On failure the error is one of [UnexpectedStatusError], [SizeLimitError],
// [NetworkError] or [FileSystemError]. A partially written file is left in
// place unless [WithRemovePartial] is given; see [PartialPath].
func (c *Client) Fetch(ctx context.Context, rawURL string, opts ...FetchOption) (*FetchResult, error) {
	defaults := []FetchOption{download.WithFS(c.fs), download.WithRoot(c.root)}

	transfer, err := download.New(c.logger, slices.Concat(defaults, opts)...)
	if err != nil {
		return nil, err
	}

	u, err := parseURL(rawURL)
	if err != nil {
		return nil, fault.Network("parse url", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.logger.Info("starting to fetch file", "url", u.Redacted())

	name := download.FileName(u)

	var res *FetchResult
	fetchFn := func(resp *http.Response) error {
		res, err = transfer.Run(ctx, resp.Body, resp.ContentLength, name)
		return err
	}

	if err := c.exec(req, fetchFn); err != nil {
		c.logger.Error("failed to fetch file", "url", u.Redacted(), "error", err)
		return nil, err
	}

	return res, nil
}

// exec sends req and hands a 2xx response to fn. Whatever fn leaves
// unread is drained, up to errBodyLimit, so the connection can be reused;
// a failed fn means the body is already abandoned.
func (c *Client) exec(req *http.Request, fn func(*http.Response) error) error {
	resp, err := c.c.Do(req)
	if err != nil {
		return fault.Network("get", req.URL.Redacted(), err)
	}

	drain := true
	defer func() {
		if drain {
			if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, errBodyLimit)); err != nil {
				c.logger.Error("failed to discard unused body", "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if err := rejectStatus(resp); err != nil {
		return err
	}

	if err := fn(resp); err != nil {
		drain = false
		return fmt.Errorf("exec fn: %w", err)
	}

	return nil
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme[%s] must be http or https", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return u, nil
}
