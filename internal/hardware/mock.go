package hardware

import (
	"context"
	"net/netip"
	"runtime"
	"sync"

	"github.com/micro-nova/apportal/internal/models"
)

// APState is the access-point state recorded by the mock driver.
type APState struct {
	IP       netip.Addr
	Gateway  netip.Addr
	Subnet   netip.Addr
	SSID     string
	Password string
	Running  bool
}

// Mock is a thread-safe in-memory mock hardware driver for testing and development.
type Mock struct {
	mu            sync.Mutex
	ap            APState
	restarts      int
	resets        int
	failConfigure bool
	failStart     bool
	failInfo      bool
}

// NewMock creates a new mock driver with the AP stopped.
func NewMock() *Mock {
	return &Mock{}
}

// SetFailConfigure configures the mock to fail ConfigureAP.
func (m *Mock) SetFailConfigure(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failConfigure = fail
}

// SetFailStart configures the mock to fail StartAP.
func (m *Mock) SetFailStart(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStart = fail
}

// SetFailInfo configures the mock to fail Info.
func (m *Mock) SetFailInfo(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failInfo = fail
}

func (m *Mock) Init(ctx context.Context) error {
	return nil
}

func (m *Mock) ConfigureAP(ctx context.Context, ip, gateway, subnet netip.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConfigure {
		return ErrHardware("mock: configure failure configured")
	}
	if _, err := PrefixLen(subnet); err != nil {
		return err
	}
	m.ap.IP, m.ap.Gateway, m.ap.Subnet = ip, gateway, subnet
	return nil
}

func (m *Mock) StartAP(ctx context.Context, ssid, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStart {
		return ErrHardware("mock: start failure configured")
	}
	m.ap.SSID, m.ap.Password = ssid, password
	m.ap.Running = true
	return nil
}

func (m *Mock) StopAP(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ap.Running = false
	return nil
}

func (m *Mock) Restart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts++
	return nil
}

func (m *Mock) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

func (m *Mock) Info(ctx context.Context) (models.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInfo {
		return models.Info{}, ErrHardware("mock: info failure configured")
	}
	return models.Info{
		ChipID:       "mock",
		BootID:       "00000000-0000-0000-0000-000000000000",
		Hostname:     "apportal-mock",
		CoreVersion:  "mock",
		SDKVersion:   runtime.Version(),
		FullVersion:  "mock/" + runtime.Version(),
		Machine:      runtime.GOARCH,
		CPUCount:     runtime.NumCPU(),
		Goroutines:   runtime.NumGoroutine(),
		ResetReason:  "power-on",
		Interface:    "mock0",
		RealHardware: false,
	}, nil
}

func (m *Mock) Interface() string { return "mock0" }

func (m *Mock) IsReal() bool {
	return false
}

// AP returns the recorded access-point state for testing purposes.
func (m *Mock) AP() APState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ap
}

// Restarts returns how many times Restart was called.
func (m *Mock) Restarts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restarts
}

// Resets returns how many times Reset was called.
func (m *Mock) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

var _ Driver = (*Mock)(nil)
