// Package models defines the data structures for the access-point portal.
// JSON field names match the on-flash settings document.
package models

import (
	"fmt"
	"net/netip"
)

// Configuration is the persisted access-point configuration.
// Exactly one live instance exists, owned by config.Manager.
type Configuration struct {
	SSID      string
	Password  string // empty means an open network
	IPAddress netip.Addr
	Gateway   netip.Addr
	Subnet    netip.Addr
}

// Validate reports whether the configuration can be used to bring up the AP.
func (c Configuration) Validate() error {
	if c.SSID == "" {
		return &ValidationError{Field: FieldSSID, Reason: ReasonEmpty}
	}
	addrs := []struct {
		field string
		addr  netip.Addr
	}{
		{FieldIPAddress, c.IPAddress},
		{FieldSubnet, c.Subnet},
		{FieldGateway, c.Gateway},
	}
	for _, a := range addrs {
		if !a.addr.IsValid() || !a.addr.Is4() {
			return &ValidationError{Field: a.field, Reason: ReasonInvalidAddress}
		}
	}
	return nil
}

// String renders the configuration without the password.
func (c Configuration) String() string {
	return fmt.Sprintf("ssid=%q ip=%s gateway=%s subnet=%s open=%t",
		c.SSID, c.IPAddress, c.Gateway, c.Subnet, c.Password == "")
}

// Settings is the client-facing view of a Configuration. The password is
// never included.
type Settings struct {
	SSID      string `json:"ssid"`
	IPAddress string `json:"ip_address"`
	Subnet    string `json:"subnet"`
	Gateway   string `json:"gateway"`
	Open      bool   `json:"open"`
}

// Settings returns the client-facing view of c.
func (c Configuration) Settings() Settings {
	return Settings{
		SSID:      c.SSID,
		IPAddress: c.IPAddress.String(),
		Subnet:    c.Subnet.String(),
		Gateway:   c.Gateway.String(),
		Open:      c.Password == "",
	}
}

// ParseIPv4 parses a dotted-quad address. Anything other than a plain
// four-octet IPv4 address is rejected.
func ParseIPv4(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, true
}

// Info is the device information returned by GET /esp8266/information.
// Every field is a read-only value reported by the hardware driver.
type Info struct {
	ChipID         string  `json:"chip_id"`
	BootID         string  `json:"boot_id"`
	Hostname       string  `json:"hostname"`
	CoreVersion    string  `json:"core_version"`
	SDKVersion     string  `json:"sdk_version"`
	FullVersion    string  `json:"full_version"`
	KernelRelease  string  `json:"kernel_release"`
	Machine        string  `json:"machine"`
	CPUCount       int     `json:"cpu_count"`
	Goroutines     int     `json:"goroutines"`
	FreeHeap       uint64  `json:"free_heap"`
	HeapAlloc      uint64  `json:"heap_alloc"`
	TotalRAM       uint64  `json:"total_ram"`
	FreeRAM        uint64  `json:"free_ram"`
	UptimeSeconds  int64   `json:"uptime"`
	LoadAverage    float64 `json:"load_average"`
	FreeStorage    uint64  `json:"free_storage_space"`
	ExecutableMD5  string  `json:"sketch_md5"`
	ExecutableSize int64   `json:"sketch_size"`
	ResetReason    string  `json:"reset_reason"`
	Interface      string  `json:"interface"`
	RealHardware   bool    `json:"real_hardware"`
}
