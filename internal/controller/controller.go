// Package controller ties the configuration manager to the device: it is the
// single path through which settings change and the access point is driven.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/micro-nova/apportal/internal/config"
	"github.com/micro-nova/apportal/internal/events"
	"github.com/micro-nova/apportal/internal/hardware"
	"github.com/micro-nova/apportal/internal/models"
)

// DefaultActionDelay is how long restart and reset wait after being
// requested, so the HTTP reply reaches the client first.
const DefaultActionDelay = 500 * time.Millisecond

// Redirector is the part of the DNS redirector the controller drives.
type Redirector interface {
	SetTarget(addr netip.Addr)
}

// Controller serializes configuration updates and device actions.
type Controller struct {
	mgr *config.Manager
	hw  hardware.Driver
	dns Redirector
	bus *events.Bus

	actionDelay time.Duration
	pending     sync.WaitGroup
	actionMu    sync.Mutex
	actionBusy  bool
}

// New creates a Controller. dns and bus may be nil.
func New(mgr *config.Manager, hw hardware.Driver, dns Redirector, bus *events.Bus) *Controller {
	return &Controller{
		mgr:         mgr,
		hw:          hw,
		dns:         dns,
		bus:         bus,
		actionDelay: DefaultActionDelay,
	}
}

// SetActionDelay changes the delay applied to restart and reset.
func (c *Controller) SetActionDelay(d time.Duration) { c.actionDelay = d }

// Configuration returns the live configuration.
func (c *Controller) Configuration() models.Configuration {
	return c.mgr.Current()
}

// Settings returns the client-facing view of the live configuration.
func (c *Controller) Settings() models.Settings {
	return c.mgr.Current().Settings()
}

// BringUp applies the live configuration to the device and points the DNS
// redirector at the access point address.
func (c *Controller) BringUp(ctx context.Context) error {
	cfg := c.mgr.Current()
	if c.dns != nil {
		c.dns.SetTarget(cfg.IPAddress)
	}
	if err := hardware.BringUp(ctx, c.hw, cfg); err != nil {
		slog.Error("controller: access point bring-up failed", "iface", c.hw.Interface(), "err", err)
		return err
	}
	slog.Info("controller: access point up", "iface", c.hw.Interface(), "config", cfg.String())
	return nil
}

// UpdateSettings validates and commits a settings form. Only a validation
// failure is reported to the caller. A commit whose save failed is logged
// and still reported as a success: the new values are live and the
// previous settings file is intact.
func (c *Controller) UpdateSettings(ctx context.Context, fields map[string]string) (models.Configuration, *models.AppError) {
	cfg, err := c.mgr.Update(fields)

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		slog.Debug("controller: settings rejected", "field", verr.Field, "reason", verr.Reason)
		return cfg, verr.AppError()
	}
	if err != nil {
		slog.Error("controller: settings committed but not saved", "err", err)
	}

	if c.bus != nil {
		c.bus.Publish(cfg)
	}
	slog.Info("controller: settings updated", "config", cfg.String())
	return cfg, nil
}
