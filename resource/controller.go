package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxTransfers is the maximum number of accessions processed
	// concurrently. If 0, defaults to 1 (sequential).
	MaxTransfers int64

	// ScratchLimitBytes is the hard limit for staged bytes on the scratch
	// volume. If 0, no hard limit is enforced (only tracking).
	ScratchLimitBytes int64

	// ArchiveOpsPerSec paces operations against the remote archive.
	// Public archives expect polite clients. If 0, unpaced.
	ArchiveOpsPerSec float64

	// IOLimitBytesPerSec is the maximum download throughput. If 0,
	// unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages shared resources (transfer slots, scratch space,
// archive pacing).
type Controller struct {
	cfg Config

	// Transfer slots
	transferSem *semaphore.Weighted

	// Scratch space
	scratchSem  *semaphore.Weighted // nil if unlimited
	scratchUsed atomic.Int64

	// Archive pacing
	opLimiter *rate.Limiter

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxTransfers <= 0 {
		cfg.MaxTransfers = 1
	}

	c := &Controller{
		cfg:         cfg,
		transferSem: semaphore.NewWeighted(cfg.MaxTransfers),
	}

	if cfg.ScratchLimitBytes > 0 {
		c.scratchSem = semaphore.NewWeighted(cfg.ScratchLimitBytes)
	}

	if cfg.ArchiveOpsPerSec > 0 {
		c.opLimiter = rate.NewLimiter(rate.Limit(cfg.ArchiveOpsPerSec), 1)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireTransfer reserves a transfer slot. Blocks until a slot is free or
// ctx is canceled.
func (c *Controller) AcquireTransfer(ctx context.Context) error {
	return c.transferSem.Acquire(ctx, 1)
}

// TryAcquireTransfer reserves a transfer slot without blocking.
func (c *Controller) TryAcquireTransfer() bool {
	return c.transferSem.TryAcquire(1)
}

// ReleaseTransfer releases a transfer slot.
func (c *Controller) ReleaseTransfer() {
	c.transferSem.Release(1)
}

// AcquireScratch attempts to reserve scratch space. If a hard limit is
// configured and usage would exceed it, this blocks until space is released
// or ctx is canceled.
func (c *Controller) AcquireScratch(ctx context.Context, bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.scratchSem != nil {
		if err := c.scratchSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.scratchUsed.Add(bytes)
	return nil
}

// TryAcquireScratch attempts to reserve scratch space without blocking.
// Returns true if acquired, false if the limit would be exceeded.
func (c *Controller) TryAcquireScratch(bytes int64) bool {
	if c == nil {
		return true
	}
	if bytes <= 0 {
		return true
	}

	if c.scratchSem != nil {
		if !c.scratchSem.TryAcquire(bytes) {
			return false
		}
	}

	c.scratchUsed.Add(bytes)
	return true
}

// ReleaseScratch releases reserved scratch space.
func (c *Controller) ReleaseScratch(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.scratchSem != nil {
		c.scratchSem.Release(bytes)
	}
	c.scratchUsed.Add(-bytes)
}

// ScratchUsage returns the currently reserved scratch bytes.
func (c *Controller) ScratchUsage() int64 {
	return c.scratchUsed.Load()
}

// AwaitTurn waits until the archive pacing limit allows the next operation.
func (c *Controller) AwaitTurn(ctx context.Context) error {
	if c == nil || c.opLimiter == nil {
		return nil
	}
	return c.opLimiter.Wait(ctx)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}
