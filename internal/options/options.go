// Package options holds the daemon's own settings: built-in defaults, then
// an optional YAML file, then command-line flags.
package options

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when -config is not given. It may be absent.
const DefaultFile = "/etc/apportal/apportal.yaml"

// Options configures the daemon. The access-point configuration itself lives
// in the settings file on the storage root, not here.
type Options struct {
	HTTPAddr     string  `yaml:"http_addr"`
	DNSPort      int     `yaml:"dns_port"`
	DNSDomain    string  `yaml:"dns_domain"`
	DNSTTL       int     `yaml:"dns_ttl"` // seconds
	DNSRate      float64 `yaml:"dns_rate"`
	StorageDir   string  `yaml:"storage_dir"`
	SettingsFile string  `yaml:"settings_file"`
	AuthDir      string  `yaml:"auth_dir"`
	Interface    string  `yaml:"interface"`
	Mock         bool    `yaml:"mock"`
	Console      string  `yaml:"console"`
	ConsoleBaud  int     `yaml:"console_baud"`
	Debug        bool    `yaml:"debug"`
	MDNS         bool    `yaml:"mdns"`
}

// Defaults returns the built-in options.
func Defaults() Options {
	return Options{
		HTTPAddr:     ":80",
		DNSPort:      53,
		DNSDomain:    "*",
		DNSTTL:       86400,
		DNSRate:      0,
		StorageDir:   "/var/lib/apportal",
		SettingsFile: "/settings.json",
		AuthDir:      "/etc/apportal",
		Interface:    "wlan0",
		ConsoleBaud:  9600,
		MDNS:         true,
	}
}

// LoadFile merges the YAML file at path into o. Keys absent from the file
// keep their current value.
func LoadFile(path string, o *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		return fmt.Errorf("options: parse %s: %w", path, err)
	}
	return nil
}

func newFlagSet(o *Options, configPath *string) *flag.FlagSet {
	fs := flag.NewFlagSet("apportal", flag.ContinueOnError)
	fs.StringVar(configPath, "config", DefaultFile, "YAML options file")
	fs.StringVar(&o.HTTPAddr, "addr", o.HTTPAddr, "HTTP listen address")
	fs.IntVar(&o.DNSPort, "dns-port", o.DNSPort, "DNS redirector UDP port")
	fs.StringVar(&o.DNSDomain, "dns-domain", o.DNSDomain, `domain answered by the DNS redirector ("*" for all)`)
	fs.IntVar(&o.DNSTTL, "dns-ttl", o.DNSTTL, "TTL of redirect answers in seconds")
	fs.Float64Var(&o.DNSRate, "dns-rate", o.DNSRate, "DNS queries answered per second (0 = unlimited)")
	fs.StringVar(&o.StorageDir, "storage-dir", o.StorageDir, "storage root for web files and settings")
	fs.StringVar(&o.SettingsFile, "settings-file", o.SettingsFile, "settings file name on the storage root")
	fs.StringVar(&o.AuthDir, "auth-dir", o.AuthDir, "directory holding access.json")
	fs.StringVar(&o.Interface, "iface", o.Interface, "wireless interface for the access point")
	fs.BoolVar(&o.Mock, "mock", o.Mock, "use the mock device driver")
	fs.StringVar(&o.Console, "console", o.Console, `serial device for log output ("auto" for the first port)`)
	fs.IntVar(&o.ConsoleBaud, "console-baud", o.ConsoleBaud, "serial console baud rate")
	fs.BoolVar(&o.Debug, "debug", o.Debug, "enable debug logging")
	fs.BoolVar(&o.MDNS, "mdns", o.MDNS, "advertise the portal over mDNS")
	return fs
}

// Parse builds the options from args (without the program name). Flags
// override the options file, which overrides the defaults. A missing
// DefaultFile is not an error; a missing file named with -config is.
func Parse(args []string, output io.Writer) (Options, error) {
	// First pass only finds the options file.
	var configPath string
	probe := Defaults()
	fs := newFlagSet(&probe, &configPath)
	fs.SetOutput(output)
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	o := Defaults()
	if err := LoadFile(configPath, &o); err != nil {
		if !errors.Is(err, os.ErrNotExist) || configPath != DefaultFile {
			return Options{}, err
		}
	}

	fs = newFlagSet(&o, &configPath)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if fs.NArg() > 0 {
		return Options{}, fmt.Errorf("options: unexpected arguments %v", fs.Args())
	}
	return o, o.Validate()
}

// Validate checks values that would only fail later at startup.
func (o Options) Validate() error {
	if o.DNSPort < 0 || o.DNSPort > 65535 {
		return fmt.Errorf("options: dns_port %d out of range", o.DNSPort)
	}
	if o.DNSTTL < 0 {
		return fmt.Errorf("options: dns_ttl must not be negative")
	}
	if o.DNSRate < 0 {
		return fmt.Errorf("options: dns_rate must not be negative")
	}
	if o.StorageDir == "" {
		return errors.New("options: storage_dir is required")
	}
	if o.SettingsFile == "" {
		return errors.New("options: settings_file is required")
	}
	if o.Console != "" && o.ConsoleBaud <= 0 {
		return fmt.Errorf("options: console_baud %d must be positive", o.ConsoleBaud)
	}
	if !o.Mock && o.Interface == "" {
		return errors.New("options: interface is required unless mock is set")
	}
	return nil
}
