package models

import "net/netip"

// Defaults used when no settings file can be loaded.
const (
	DefaultSSID      = "apportal"
	DefaultPassword  = ""
	DefaultIPAddress = "192.168.4.1"
	DefaultGateway   = "192.168.4.1"
	DefaultSubnet    = "255.255.255.0"
)

// DefaultConfiguration returns the configuration a device boots with when
// the settings file is missing or unreadable.
func DefaultConfiguration() Configuration {
	return Configuration{
		SSID:      DefaultSSID,
		Password:  DefaultPassword,
		IPAddress: netip.MustParseAddr(DefaultIPAddress),
		Gateway:   netip.MustParseAddr(DefaultGateway),
		Subnet:    netip.MustParseAddr(DefaultSubnet),
	}
}
