// Package zeroconf advertises the portal as an mDNS/DNS-SD service so it can
// be found from an uplink network as <hostname>.local.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/micro-nova/apportal/internal/models"
)

const (
	serviceType = "_http._tcp"
	domain      = "local."
)

// Service manages the mDNS registration.
type Service struct {
	name    string
	port    int
	version string
	ifaces  []string

	mu     sync.Mutex
	server *zeroconf.Server
}

// New creates a Service advertising port under the instance name. An empty
// ifaces list registers on every multicast-capable interface.
func New(name string, port int, version string, ifaces ...string) *Service {
	return &Service{name: name, port: port, version: version, ifaces: ifaces}
}

// TXT returns the TXT records advertised for cfg.
func (s *Service) TXT(cfg models.Configuration) []string {
	return []string{
		"ssid=" + cfg.SSID,
		"ip=" + cfg.IPAddress.String(),
		"version=" + s.version,
	}
}

func (s *Service) interfaces() ([]net.Interface, error) {
	if len(s.ifaces) == 0 {
		return nil, nil
	}
	out := make([]net.Interface, 0, len(s.ifaces))
	for _, name := range s.ifaces {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("zeroconf: interface %s: %w", name, err)
		}
		out = append(out, *ifi)
	}
	return out, nil
}

// Start registers the service with TXT records for cfg and blocks until ctx
// is cancelled, then unregisters.
func (s *Service) Start(ctx context.Context, cfg models.Configuration) error {
	ifaces, err := s.interfaces()
	if err != nil {
		return err
	}

	txt := s.TXT(cfg)
	server, err := zeroconf.Register(s.name, serviceType, domain, s.port, txt, ifaces)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}

	s.mu.Lock()
	s.server = server
	s.mu.Unlock()
	slog.Info("zeroconf: registered mDNS service", "name", s.name, "port", s.port, "txt", txt)

	<-ctx.Done()

	s.mu.Lock()
	s.server = nil
	s.mu.Unlock()
	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}

// Update replaces the advertised TXT records with those for cfg.
func (s *Service) Update(cfg models.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("zeroconf: server not started")
	}
	txt := s.TXT(cfg)
	s.server.SetText(txt)
	slog.Debug("zeroconf: TXT records updated", "txt", txt)
	return nil
}
