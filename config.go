//
// Copyright (c) 2025 Cedrik Pischem
// SPDX-License-Identifier: BSD-2-Clause
//
// config.go - Runtime configuration from command-line flags and YAML
//
// Flags control the interface, capture method, route installer, solicitation
// and logging. An optional YAML file (-config) provides the same settings;
// flags given explicitly on the command line override the file.
//

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Capture methods and installers.
const (
	CapturePcap   = "pcap"
	CaptureSocket = "socket"

	InstallerScript  = "script"
	InstallerNetlink = "netlink"
)

// DefaultScript is the route configuration script used when none is given.
const DefaultScript = "/usr/local/bin/configure-ipv6-route.sh"

// Duration is a time.Duration that reads "5s"-style strings from YAML.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// Set implements flag.Value.
func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.Set(s)
}

// Config holds runtime configuration.
type Config struct {
	Interface string `yaml:"interface"`
	Debug     bool   `yaml:"debug"`
	Verbose   bool   `yaml:"verbose"`

	EnableRS   bool     `yaml:"enable-rs"`
	RSInterval Duration `yaml:"rs-interval"`

	Capture     string   `yaml:"capture"`
	PcapTimeout Duration `yaml:"pcap-timeout"`

	Installer      string   `yaml:"installer"`
	Script         string   `yaml:"script"`
	InstallTimeout Duration `yaml:"install-timeout"`
	InstallQPS     int      `yaml:"install-qps"`
	InstallBurst   int      `yaml:"install-burst"`
	KeyPolicy      string   `yaml:"key-policy"`

	ConfigFile string `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Interface:      "eth0",
		RSInterval:     Duration(DefaultSolicitInterval),
		Capture:        CapturePcap,
		PcapTimeout:    Duration(100 * time.Millisecond),
		Installer:      InstallerScript,
		Script:         DefaultScript,
		InstallTimeout: Duration(10 * time.Second),
		InstallQPS:     5,
		InstallBurst:   5,
		KeyPolicy:      KeyByRouter.String(),
	}
}

// flagSet binds flags to c, using c's current values as defaults.
func (c *Config) flagSet(out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("ula-route-listener", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "optional YAML configuration file")
	fs.StringVar(&c.Interface, "i", c.Interface, "network interface to monitor (shorthand)")
	fs.StringVar(&c.Interface, "interface", c.Interface, "network interface to monitor")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "enable verbose packet and option tracing")
	fs.BoolVar(&c.EnableRS, "enable-rs", c.EnableRS, "send Router Solicitations to provoke RAs")
	fs.Var(&c.RSInterval, "rs-interval", "Router Solicitation interval (0 sends a single RS at startup)")
	fs.StringVar(&c.Capture, "capture", c.Capture, "capture method: pcap or socket")
	fs.Var(&c.PcapTimeout, "pcap-timeout", "pcap read timeout")
	fs.StringVar(&c.Installer, "installer", c.Installer, "route installer: script or netlink")
	fs.StringVar(&c.Script, "script", c.Script, "route configuration script (installer=script)")
	fs.Var(&c.InstallTimeout, "install-timeout", "maximum run time of one route installation (0 = none)")
	fs.IntVar(&c.InstallQPS, "install-qps", c.InstallQPS, "max route installations per second (rate limited)")
	fs.IntVar(&c.InstallBurst, "install-burst", c.InstallBurst, "burst of route installations allowed before limiting")
	fs.StringVar(&c.KeyPolicy, "key-policy", c.KeyPolicy, "configured-route identity: router (prefix, router, interface, kind) or interface (prefix, interface)")
	return fs
}

// ParseFlags parses args (without the program name) into a Config.
func ParseFlags(args []string, out io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.flagSet(out).Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		file := DefaultConfig()
		if err := file.Load(cfg.ConfigFile); err != nil {
			return nil, err
		}
		file.ConfigFile = cfg.ConfigFile
		// Re-apply the command line on top of the file.
		if err := file.flagSet(io.Discard).Parse(args); err != nil {
			return nil, err
		}
		cfg = file
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads YAML settings from path into c.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("no interface given")
	}
	switch c.Capture {
	case CapturePcap, CaptureSocket:
	default:
		return fmt.Errorf("unknown capture method %q (want %s or %s)", c.Capture, CapturePcap, CaptureSocket)
	}
	switch c.Installer {
	case InstallerScript:
		if c.Script == "" {
			return fmt.Errorf("installer %s needs -script", InstallerScript)
		}
	case InstallerNetlink:
	default:
		return fmt.Errorf("unknown installer %q (want %s or %s)", c.Installer, InstallerScript, InstallerNetlink)
	}
	if c.InstallQPS <= 0 || c.InstallBurst <= 0 {
		return fmt.Errorf("install-qps and install-burst must be positive")
	}
	if c.RSInterval < 0 || c.InstallTimeout < 0 || c.PcapTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if _, err := ParseKeyPolicy(c.KeyPolicy); err != nil {
		return err
	}
	return nil
}
