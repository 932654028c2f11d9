package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/micro-nova/apportal/internal/models"
)

// GetInfo returns the device information reported by the driver.
func (c *Controller) GetInfo(ctx context.Context) (models.Info, *models.AppError) {
	info, err := c.hw.Info(ctx)
	if err != nil {
		slog.Error("controller: failed to read device info", "err", err)
		return models.Info{}, models.ErrInternal("failed to read device information")
	}
	return info, nil
}

// Restart schedules a daemon restart after the action delay. It reports
// false when a restart or reset is already pending.
func (c *Controller) Restart() bool {
	return c.schedule("restart", c.hw.Restart)
}

// Reset schedules a host reset after the action delay. It reports false
// when a restart or reset is already pending.
func (c *Controller) Reset() bool {
	return c.schedule("reset", c.hw.Reset)
}

// Wait blocks until scheduled actions have run.
func (c *Controller) Wait() { c.pending.Wait() }

func (c *Controller) schedule(name string, fn func(context.Context) error) bool {
	c.actionMu.Lock()
	if c.actionBusy {
		c.actionMu.Unlock()
		slog.Warn("controller: action already pending", "action", name)
		return false
	}
	c.actionBusy = true
	c.actionMu.Unlock()

	slog.Info("controller: action scheduled", "action", name, "delay", c.actionDelay)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		time.Sleep(c.actionDelay)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Error("controller: action failed", "action", name, "err", err)
		}

		c.actionMu.Lock()
		c.actionBusy = false
		c.actionMu.Unlock()
	}()
	return true
}
