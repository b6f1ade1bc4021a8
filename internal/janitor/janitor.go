// Package janitor periodically removes abandoned download workspaces.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/adamwoolhether/fetchpack/client/download"
)

// Janitor sweeps workspaces under Root older than TTL every Interval.
type Janitor struct {
	FS       afero.Fs
	Root     string
	TTL      time.Duration
	Interval time.Duration
	Logger   *slog.Logger

	// OnSwept, when set, receives the number of workspaces removed by
	// each pass.
	OnSwept func(n int)

	now func() time.Time
}

// Run sweeps once immediately and then on every tick until ctx is done.
// It returns nil on cancellation; sweep failures are logged, not returned.
func (j *Janitor) Run(ctx context.Context) error {
	if j.Logger == nil {
		j.Logger = slog.Default()
	}
	if j.now == nil {
		j.now = time.Now
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		j.sweep()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (j *Janitor) sweep() {
	removed, err := download.Sweep(j.FS, j.Root, j.now().Add(-j.TTL))
	if err != nil {
		j.Logger.Error("sweeping workspaces", "root", j.Root, "error", err)
	}

	if len(removed) > 0 {
		j.Logger.Info("workspaces swept", "root", j.Root, "removed", len(removed))
	}

	if j.OnSwept != nil {
		j.OnSwept(len(removed))
	}
}
