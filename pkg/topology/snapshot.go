package topology

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/naumanni/naumanni-server/pkg/statusstore"
)

// TakeSnapshot samples the current process. Sampling failures are recorded
// in the snapshot's Error field; the fields that could be read are kept.
func TakeSnapshot(ctx context.Context, taskID int, activeHandlers int64) statusstore.Snapshot {
	snap := statusstore.Snapshot{
		TaskID:         taskID,
		PID:            int32(os.Getpid()), // #nosec G115 - pids fit in int32
		ActiveHandlers: activeHandlers,
		Goroutines:     runtime.NumGoroutine(),
		CollectedAt:    statusstore.UnixSeconds(time.Now()),
	}

	proc, err := process.NewProcessWithContext(ctx, snap.PID)
	if err != nil {
		snap.Error = err.Error()
		return snap
	}

	var errs []error
	if fds, err := proc.NumFDsWithContext(ctx); err == nil {
		snap.WatchedFDs = fds
	} else {
		errs = append(errs, fmt.Errorf("fds: %w", err))
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		snap.Memory.RSS = mem.RSS
	} else {
		errs = append(errs, fmt.Errorf("rss: %w", err))
	}
	if uss, err := uniqueSetSize(ctx, proc); err == nil {
		snap.Memory.USS = uss
	} else {
		errs = append(errs, fmt.Errorf("uss: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		snap.Error = err.Error()
	}
	return snap
}

// uniqueSetSize sums the private pages of every mapping.
func uniqueSetSize(ctx context.Context, proc *process.Process) (uint64, error) {
	maps, err := proc.MemoryMapsWithContext(ctx, true)
	if err != nil {
		return 0, err
	}
	if maps == nil {
		return 0, nil
	}
	var kb uint64
	for _, m := range *maps {
		kb += m.PrivateClean + m.PrivateDirty
	}
	// smaps reports kB.
	return kb * 1024, nil
}
