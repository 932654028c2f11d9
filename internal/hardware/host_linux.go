//go:build linux

package hardware

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/micro-nova/apportal/internal/identity"
	"github.com/micro-nova/apportal/internal/models"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

const (
	login1Dest   = "org.freedesktop.login1"
	login1Path   = "/org/freedesktop/login1"
	login1Reboot = "org.freedesktop.login1.Manager.Reboot"

	hostapdStopTimeout = 5 * time.Second

	// 802.11 and WPA2-PSK limits enforced by hostapd.
	maxSSIDLen       = 32
	minPassphraseLen = 8
	maxPassphraseLen = 63
)

// HostOptions configures the real host driver.
type HostOptions struct {
	Interface   string // wireless interface, e.g. "wlan0"
	HostapdPath string // hostapd binary, default "hostapd"
	RunDir      string // where the generated hostapd.conf is written
	Channel     int    // 2.4 GHz channel, default 1
	StorageRoot string // reported as free storage space
	Version     string
}

// Host drives a Linux wireless interface through netlink and hostapd.
type Host struct {
	mu      sync.Mutex
	opts    HostOptions
	hostapd *exec.Cmd
	done    chan struct{}

	md5Once sync.Once
	exeMD5  string
	exeSize int64
}

// NewHost creates a new real host driver.
func NewHost(opts HostOptions) *Host {
	if opts.HostapdPath == "" {
		opts.HostapdPath = "hostapd"
	}
	if opts.RunDir == "" {
		opts.RunDir = os.TempDir()
	}
	if opts.Channel == 0 {
		opts.Channel = 1
	}
	return &Host{opts: opts}
}

func (h *Host) Init(ctx context.Context) error {
	if h.opts.Interface == "" {
		return fmt.Errorf("host: no wireless interface configured")
	}
	if _, err := netlink.LinkByName(h.opts.Interface); err != nil {
		return fmt.Errorf("host: interface %s: %w", h.opts.Interface, err)
	}
	if _, err := exec.LookPath(h.opts.HostapdPath); err != nil {
		return fmt.Errorf("host: %s not found: %w", h.opts.HostapdPath, err)
	}
	return nil
}

// ConfigureAP assigns ip/subnet to the interface and brings it up. The
// gateway is what clients are told to route through; on the AP itself it
// is only logged.
func (h *Host) ConfigureAP(ctx context.Context, ip, gateway, subnet netip.Addr) error {
	ones, err := PrefixLen(subnet)
	if err != nil {
		return err
	}
	link, err := netlink.LinkByName(h.opts.Interface)
	if err != nil {
		return fmt.Errorf("host: interface %s: %w", h.opts.Interface, err)
	}
	addr := &netlink.Addr{IPNet: &net.IPNet{
		IP:   net.IP(ip.AsSlice()),
		Mask: net.CIDRMask(ones, 32),
	}}
	if err := netlink.AddrReplace(link, addr); err != nil {
		return fmt.Errorf("host: assign %s to %s: %w", addr, h.opts.Interface, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("host: set %s up: %w", h.opts.Interface, err)
	}
	slog.Info("host: interface configured",
		"iface", h.opts.Interface,
		"addr", addr.IPNet.String(),
		"gateway", gateway,
	)
	return nil
}

// StartAP writes a hostapd configuration and launches hostapd. A running
// hostapd is stopped first.
func (h *Host) StartAP(ctx context.Context, ssid, password string) error {
	conf, err := hostapdConfig(h.opts.Interface, h.opts.Channel, ssid, password)
	if err != nil {
		return err
	}
	confPath := filepath.Join(h.opts.RunDir, "hostapd-"+h.opts.Interface+".conf")
	if err := os.WriteFile(confPath, []byte(conf), 0600); err != nil {
		return fmt.Errorf("host: write %s: %w", confPath, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()

	cmd := exec.Command(h.opts.HostapdPath, confPath)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("host: start hostapd: %w", err)
	}
	done := make(chan struct{})
	h.hostapd, h.done = cmd, done
	go func() {
		err := cmd.Wait()
		close(done)
		slog.Info("host: hostapd exited", "pid", cmd.Process.Pid, "err", err)
	}()
	slog.Info("host: access point started", "ssid", ssid, "open", password == "", "pid", cmd.Process.Pid)
	return nil
}

func (h *Host) StopAP(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
	return nil
}

func (h *Host) stopLocked() {
	if h.hostapd == nil {
		return
	}
	_ = h.hostapd.Process.Signal(unix.SIGTERM)
	select {
	case <-h.done:
	case <-time.After(hostapdStopTimeout):
		_ = h.hostapd.Process.Kill()
		<-h.done
	}
	h.hostapd, h.done = nil, nil
}

// Restart re-executes the running binary with the same arguments.
func (h *Host) Restart(ctx context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("host: restart: %w", err)
	}
	_ = h.StopAP(ctx)
	env := append(os.Environ(), identity.ResetReasonEnv+"=software restart")
	slog.Info("host: restarting", "exe", exe)
	return unix.Exec(exe, os.Args, env)
}

// Reset reboots the machine through systemd-logind, falling back to the
// reboot syscall when the system bus is unavailable.
func (h *Host) Reset(ctx context.Context) error {
	_ = h.StopAP(ctx)
	conn, err := dbus.ConnectSystemBus()
	if err == nil {
		defer conn.Close()
		obj := conn.Object(login1Dest, dbus.ObjectPath(login1Path))
		call := obj.CallWithContext(ctx, login1Reboot, 0, false)
		if call.Err == nil {
			slog.Info("host: reboot requested via logind")
			return nil
		}
		err = call.Err
	}
	slog.Warn("host: logind reboot failed, using reboot syscall", "err", err)
	unix.Sync()
	return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
}

func (h *Host) Info(ctx context.Context) (models.Info, error) {
	info := models.Info{
		ChipID:       identity.MachineID(),
		BootID:       identity.BootID(),
		Hostname:     identity.GetHostname(),
		CoreVersion:  h.opts.Version,
		SDKVersion:   runtime.Version(),
		FullVersion:  h.opts.Version + "/" + runtime.Version() + "/" + runtime.GOOS + "-" + runtime.GOARCH,
		CPUCount:     runtime.NumCPU(),
		Goroutines:   runtime.NumGoroutine(),
		ResetReason:  identity.ResetReason(),
		Interface:    h.opts.Interface,
		RealHardware: true,
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info.HeapAlloc = ms.HeapAlloc
	info.FreeHeap = ms.HeapIdle - ms.HeapReleased

	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return models.Info{}, fmt.Errorf("host: sysinfo: %w", err)
	}
	unit := uint64(si.Unit)
	if unit == 0 {
		unit = 1
	}
	info.UptimeSeconds = int64(si.Uptime)
	info.TotalRAM = uint64(si.Totalram) * unit
	info.FreeRAM = uint64(si.Freeram) * unit
	info.LoadAverage = float64(si.Loads[0]) / float64(1<<unix.SI_LOAD_SHIFT)

	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		info.KernelRelease = unix.ByteSliceToString(uts.Release[:])
		info.Machine = unix.ByteSliceToString(uts.Machine[:])
	}

	if h.opts.StorageRoot != "" {
		var st unix.Statfs_t
		if err := unix.Statfs(h.opts.StorageRoot, &st); err == nil {
			info.FreeStorage = uint64(st.Bavail) * uint64(st.Bsize)
		}
	}

	h.md5Once.Do(h.hashExecutable)
	info.ExecutableMD5 = h.exeMD5
	info.ExecutableSize = h.exeSize
	return info, nil
}

func (h *Host) hashExecutable() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	f, err := os.Open(exe)
	if err != nil {
		return
	}
	defer f.Close()
	sum := md5.New()
	n, err := io.Copy(sum, f)
	if err != nil {
		slog.Debug("host: hash executable", "err", err)
		return
	}
	h.exeMD5 = hex.EncodeToString(sum.Sum(nil))
	h.exeSize = n
}

func (h *Host) Interface() string { return h.opts.Interface }

func (h *Host) IsReal() bool { return true }

// hostapdConfig renders a minimal 2.4 GHz hostapd configuration. A
// non-empty password enables WPA2-PSK. The ssid is written hex-encoded
// through ssid2 so any byte is carried literally.
func hostapdConfig(iface string, channel int, ssid, password string) (string, error) {
	if len(ssid) == 0 || len(ssid) > maxSSIDLen {
		return "", fmt.Errorf("host: ssid must be 1 to %d bytes, got %d", maxSSIDLen, len(ssid))
	}
	if password != "" {
		if len(password) < minPassphraseLen || len(password) > maxPassphraseLen {
			return "", fmt.Errorf("host: WPA passphrase must be %d to %d characters, got %d",
				minPassphraseLen, maxPassphraseLen, len(password))
		}
		if strings.IndexFunc(password, isControl) >= 0 {
			return "", fmt.Errorf("host: WPA passphrase contains control characters")
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "interface=%s\n", iface)
	b.WriteString("driver=nl80211\n")
	fmt.Fprintf(&b, "ssid2=%s\n", hex.EncodeToString([]byte(ssid)))
	b.WriteString("hw_mode=g\n")
	fmt.Fprintf(&b, "channel=%d\n", channel)
	b.WriteString("auth_algs=1\n")
	if password != "" {
		b.WriteString("wpa=2\n")
		fmt.Fprintf(&b, "wpa_passphrase=%s\n", password)
		b.WriteString("wpa_key_mgmt=WPA-PSK\n")
		b.WriteString("rsn_pairwise=CCMP\n")
	}
	return b.String(), nil
}

func isControl(r rune) bool { return r < 0x20 || r == 0x7f }

var _ Driver = (*Host)(nil)
