package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrMustNotBeZero rejects a non-positive rate or burst.
	ErrMustNotBeZero = errors.New("must be greater than zero")
	// ErrWaitingFailed wraps the limiter error when a request gave up
	// waiting for a token, usually because its deadline would pass first.
	ErrWaitingFailed = errors.New("limiter waiting failed")
	// ErrContextEnded means the request context was already done.
	ErrContextEnded = errors.New("throttle context ended")
)

// Config is the per-host budget: RPS tokens a second, Burst at most.
type Config struct {
	RPS   int
	Burst int
}

type hostLimiter struct {
	cfg  Config
	next http.RoundTripper
	log  func() *slog.Logger

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewRoundTripper wraps next, which defaults to http.DefaultTransport.
// logFn is called per request so the logger may be swapped after
// construction; a nil logger silences the wait messages.
func NewRoundTripper(rps, burst int, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, ErrMustNotBeZero)
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	return &hostLimiter{
		cfg:   Config{RPS: rps, Burst: burst},
		next:  next,
		log:   logFn,
		hosts: make(map[string]*rate.Limiter),
	}, nil
}

func (h *hostLimiter) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	host := r.URL.Host
	lim := h.bucket(host)

	log := h.log()
	if log != nil && lim.Tokens() < 1 {
		log.Info("throttle tokens exhausted", "host", host, "rate", h.cfg.RPS, "burst", h.cfg.Burst)
		defer func(start time.Time) {
			log.Info("throttle wait complete", "host", host, "waited", time.Since(start).String())
		}(time.Now())
	}

	if err := lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return h.next.RoundTrip(r)
}

func (h *hostLimiter) bucket(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	if lim, ok := h.hosts[host]; ok {
		return lim
	}

	lim := rate.NewLimiter(rate.Limit(h.cfg.RPS), h.cfg.Burst)
	h.hosts[host] = lim

	return lim
}
