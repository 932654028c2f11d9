// Package identity provides system identity information for the portal.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultVersion is the fallback version string when metadata.json is not found.
const DefaultVersion = "0.1.0"

// ResetReasonEnv carries the reason for the last restart across a re-exec.
const ResetReasonEnv = "APPORTAL_RESET_REASON"

// machineIDPaths are checked in order for a stable per-device id.
var machineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

var (
	bootOnce sync.Once
	bootID   string
)

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "apportal"
	}
	return h
}

// GetVersionFromDir reads the version from metadata.json in dir.
// Falls back to DefaultVersion if the file is missing or unreadable.
func GetVersionFromDir(dir string) string {
	if dir == "" {
		return DefaultVersion
	}

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return DefaultVersion
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return DefaultVersion
	}

	if v, ok := meta["version"].(string); ok && v != "" {
		return v
	}
	return DefaultVersion
}

// MachineID returns the host's machine id, or "unknown".
func MachineID() string {
	return machineIDFrom(machineIDPaths)
}

func machineIDFrom(paths []string) string {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	return "unknown"
}

// BootID returns a random id generated once per process start.
func BootID() string {
	bootOnce.Do(func() {
		bootID = uuid.NewString()
	})
	return bootID
}

// ResetReason returns why the process was last started. A fresh start
// reports "power-on"; a software restart sets ResetReasonEnv before re-exec.
func ResetReason() string {
	if r := os.Getenv(ResetReasonEnv); r != "" {
		return r
	}
	return "power-on"
}
