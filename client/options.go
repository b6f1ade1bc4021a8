package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/client/download"
	"github.com/adamwoolhether/fetchpack/client/throttle"
)

// Option configures a [Client]. An Option that rejects its argument
// makes [Build] fail.
type Option func(*options) error

// FetchOption configures a single [Client.Fetch].
type FetchOption = download.Option

type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	headers           map[string]string
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger
	fs                afero.Fs
	downloadRoot      string
}

// set wraps an option that cannot fail.
func set(fn func(*options)) Option {
	return func(o *options) error {
		fn(o)
		return nil
	}
}

// WithClient starts from a copy of hc instead of a zero http.Client.
// Its Transport, if any, becomes the base transport.
func WithClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets the base transport, taking precedence over the
// transport of a client given to [WithClient].
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithTimeout bounds each fetch end to end, body included. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = &d
		return nil
	}
}

// WithUserAgent overrides the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return set(func(o *options) { o.userAgent = ua })
}

// WithHeaders sets extra headers on every fetch request.
func WithHeaders(headers map[string]string) Option {
	return set(func(o *options) { o.headers = headers })
}

// WithThrottle limits requests to each host with a token bucket of
// burst tokens refilled at rps per second.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithNoFollowRedirects stops at the first response, so a 3xx fails the
// fetch with an [UnexpectedStatusError].
func WithNoFollowRedirects() Option {
	return set(func(o *options) { o.noFollowRedirects = true })
}

// WithLogger sets the logger for the client and its fetches.
func WithLogger(logger *slog.Logger) Option {
	return set(func(o *options) { o.logger = logger })
}

// WithFS sets the filesystem workspaces live on. Default is the OS.
func WithFS(fsys afero.Fs) Option {
	return func(o *options) error {
		if fsys == nil {
			return errors.New("filesystem must not be nil")
		}
		o.fs = fsys
		return nil
	}
}

// WithDownloadRoot sets the directory workspaces are created in.
// Empty means the system temp directory.
func WithDownloadRoot(dir string) Option {
	return set(func(o *options) { o.downloadRoot = dir })
}

// userAgent stamps the User-Agent header on a clone of each request.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	out := r.Clone(r.Context())
	out.Header.Set("User-Agent", ua.value)

	return ua.base.RoundTrip(out)
}
