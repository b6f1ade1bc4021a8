package download

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"strings"
	"time"
)

// digest hashes everything streamed to disk and compares the result
// against the hex sum the caller expects. A nil digest always matches.
type digest struct {
	h    hash.Hash
	want string
}

func (d *digest) Write(p []byte) (int, error) { return d.h.Write(p) }

func (d *digest) check(path string) error {
	if d == nil {
		return nil
	}

	got := hex.EncodeToString(d.h.Sum(nil))
	if strings.EqualFold(got, d.want) {
		return nil
	}

	return &Error{
		Err:    ErrChecksumMismatch,
		Path:   path,
		Detail: fmt.Sprintf("expected %s, got %s", d.want, got),
	}
}

// meter logs transfer progress, throttled to one line a second, plus a
// final line once the advertised length has arrived.
type meter struct {
	next   io.Writer
	log    *slog.Logger
	path   string
	total  int64
	done   int64
	start  time.Time
	logged time.Time
}

func newMeter(next io.Writer, log *slog.Logger, path string, total int64) *meter {
	return &meter{next: next, log: log, path: path, total: total, start: time.Now()}
}

func (m *meter) Write(p []byte) (int, error) {
	n, err := m.next.Write(p)
	m.done += int64(n)

	if now := time.Now(); now.Sub(m.logged) >= time.Second {
		m.logged = now
		m.report("downloading")
	}
	if m.total >= 0 && m.done == m.total {
		m.report("download complete")
	}

	return n, err
}

func (m *meter) report(msg string) {
	elapsed := time.Since(m.start)

	pct := "unknown"
	if m.total > 0 {
		pct = fmt.Sprintf("%.1f%%", 100*float64(m.done)/float64(m.total))
	}

	var rate float64
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(m.done) / s / bytesPerMB
	}

	m.log.Info(msg,
		"path", m.path,
		"progress", pct,
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", m.done,
		"total", m.total,
		"mbps", fmt.Sprintf("%.2f", rate),
	)
}
