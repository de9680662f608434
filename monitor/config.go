// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/godbus/dbus/v5"
	"gopkg.in/yaml.v2"

	"github.com/stratis-storage/testing/pkg/confopt"
)

const (
	// DefaultTimeout bounds every remote call. It matches the D-Bus
	// timeout used throughout the stratis certification harness.
	DefaultTimeout = 120 * time.Second

	// reconnectDelay is the fixed sleep between attempts to reach the
	// service during bootstrap.
	reconnectDelay = 4 * time.Second

	// timeoutEnvVar overrides DefaultTimeout with a value in milliseconds.
	timeoutEnvVar = "STRATIS_DBUS_TIMEOUT"

	// maxTimeoutMs is the largest timeout D-Bus accepts, in milliseconds.
	maxTimeoutMs = 1073741823
)

// Config describes a single monitoring run. It can be read from a YAML
// profile, from command line options, or both (flags win).
type Config struct {
	// Service is the D-Bus service (bus name) to monitor.
	Service string `yaml:"service" json:"service"`
	// Manager is the object path implementing ObjectManager.
	Manager string `yaml:"manager" json:"manager"`
	// TopInterfaces lists the interfaces belonging to the manager object
	// itself; only these participate in root-object filtering and in the
	// per-interface GetAll merge of the snapshot fetch.
	TopInterfaces []string `yaml:"top_interfaces" json:"top_interfaces"`
	// OnlyCheck restricts which interfaces anywhere in the graph are
	// tracked. The expression must match the whole interface name.
	// Empty means track everything.
	OnlyCheck string `yaml:"only_check" json:"only_check"`
	// Timeout bounds each remote call.
	Timeout confopt.Duration `yaml:"timeout" json:"timeout"`
}

// LoadConfig reads a monitor profile from a YAML file.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read monitor profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse monitor profile '%s': %w", path, err)
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Service == "" {
		return fmt.Errorf("no service to monitor given")
	}
	if c.Manager == "" {
		return fmt.Errorf("no manager object path given")
	}
	if !dbus.ObjectPath(c.Manager).IsValid() {
		return fmt.Errorf("invalid manager object path '%s'", c.Manager)
	}
	return nil
}

func (c Config) timeout() time.Duration {
	if c.Timeout != 0 {
		return c.Timeout.Duration()
	}
	if v := os.Getenv(timeoutEnvVar); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 && ms <= maxTimeoutMs {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return DefaultTimeout
}

// compileInterfaceFilter anchors the user expression so that, like the
// harness's other tools, it must match the whole interface name.
func compileInterfaceFilter(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		expr = ".*"
	}
	re, err := regexp.Compile(`\A(?:` + expr + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("invalid interface filter: %w", err)
	}
	return re, nil
}
