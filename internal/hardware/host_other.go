//go:build !linux

package hardware

import (
	"context"
	"net/netip"

	"github.com/micro-nova/apportal/internal/models"
)

// HostOptions configures the real host driver.
type HostOptions struct {
	Interface   string
	HostapdPath string
	RunDir      string
	Channel     int
	StorageRoot string
	Version     string
}

// Host is only implemented on Linux. Every call fails elsewhere; run with
// the mock driver instead.
type Host struct {
	opts HostOptions
}

// NewHost creates a host driver that reports it is unsupported.
func NewHost(opts HostOptions) *Host { return &Host{opts: opts} }

var errUnsupported = ErrHardware("host: real hardware driver requires linux")

func (h *Host) Init(ctx context.Context) error { return errUnsupported }

func (h *Host) ConfigureAP(ctx context.Context, ip, gateway, subnet netip.Addr) error {
	return errUnsupported
}

func (h *Host) StartAP(ctx context.Context, ssid, password string) error { return errUnsupported }

func (h *Host) StopAP(ctx context.Context) error { return nil }

func (h *Host) Restart(ctx context.Context) error { return errUnsupported }

func (h *Host) Reset(ctx context.Context) error { return errUnsupported }

func (h *Host) Info(ctx context.Context) (models.Info, error) {
	return models.Info{}, errUnsupported
}

func (h *Host) Interface() string { return h.opts.Interface }

func (h *Host) IsReal() bool { return true }

var _ Driver = (*Host)(nil)
