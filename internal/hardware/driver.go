// Package hardware provides the device abstraction layer for the portal.
// It defines the Driver interface used for access-point bring-up, device
// restart/reset, and information reporting, implemented by the real host
// driver and the mock driver.
package hardware

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/micro-nova/apportal/internal/models"
)

// Driver is the device abstraction for the Wi-Fi radio and the host.
// All operations are context-aware and safe for concurrent use.
type Driver interface {
	// Init prepares the driver. Must be called before any other method.
	Init(ctx context.Context) error

	// ConfigureAP sets the access point's own address, gateway, and subnet mask.
	ConfigureAP(ctx context.Context, ip, gateway, subnet netip.Addr) error

	// StartAP starts advertising ssid. An empty password means an open network.
	StartAP(ctx context.Context, ssid, password string) error

	// StopAP stops the access point.
	StopAP(ctx context.Context) error

	// Restart restarts the portal software. On success it does not return.
	Restart(ctx context.Context) error

	// Reset reboots the whole device. On success it does not return.
	Reset(ctx context.Context) error

	// Info reports read-only hardware and runtime values.
	Info(ctx context.Context) (models.Info, error)

	// Interface returns the name of the network interface the AP runs on.
	Interface() string

	// IsReal returns true for a real hardware driver, false for a mock.
	IsReal() bool
}

// PrefixLen converts a dotted-quad subnet mask to a prefix length.
// Non-contiguous masks are rejected.
func PrefixLen(subnet netip.Addr) (int, error) {
	if !subnet.Is4() {
		return 0, fmt.Errorf("hardware: subnet %s is not an IPv4 mask", subnet)
	}
	ones, bits := net.IPMask(subnet.AsSlice()).Size()
	if bits == 0 {
		return 0, fmt.Errorf("hardware: subnet %s is not a contiguous mask", subnet)
	}
	return ones, nil
}

// BringUp configures and starts the access point from cfg, in the same
// order the device does it at boot.
func BringUp(ctx context.Context, d Driver, cfg models.Configuration) error {
	if err := d.ConfigureAP(ctx, cfg.IPAddress, cfg.Gateway, cfg.Subnet); err != nil {
		return fmt.Errorf("configure AP: %w", err)
	}
	if err := d.StartAP(ctx, cfg.SSID, cfg.Password); err != nil {
		return fmt.Errorf("start AP: %w", err)
	}
	return nil
}

// HardwareError is returned when a hardware operation fails.
type HardwareError struct {
	msg string
}

func (e HardwareError) Error() string { return e.msg }

// ErrHardware creates a new hardware error.
func ErrHardware(msg string) error { return HardwareError{msg: msg} }
