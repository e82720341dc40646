// Package config loads station configuration from YAML.
//
// A minimal file only needs the access points the simulated environment
// should offer; every timing parameter has a default matching the usual
// 802.11 station agent settings:
//
//	station:
//	  address: "02:00:00:00:00:01"
//	agent:
//	  probe_delay: 100ms
//	  min_channel_time: 150ms
//	  max_channel_time: 300ms
//	  authentication_timeout: 5s
//	  association_timeout: 5s
//	environment:
//	  scan_delay: 300ms
//	  access_points:
//	    - bssid: "02:00:00:00:00:0a"
//	      ssid: alpha
//	      channel: 1
//	      rx_power: -70
//	log:
//	  level: info
//	  protocol_log: station.stalog
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stamgmt/stamgmt-go/pkg/agent"
	"github.com/stamgmt/stamgmt-go/pkg/mlme"
	"github.com/stamgmt/stamgmt-go/pkg/sim"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Defaults.
const (
	DefaultStationAddress = "02:00:00:00:00:01"

	DefaultProbeDelay            = 100 * time.Millisecond
	DefaultMinChannelTime        = 150 * time.Millisecond
	DefaultMaxChannelTime        = 300 * time.Millisecond
	DefaultAuthenticationTimeout = 5 * time.Second
	DefaultAssociationTimeout    = 5 * time.Second

	DefaultScanDelay      = 300 * time.Millisecond
	DefaultBeaconInterval = 100 * time.Millisecond
	DefaultLogLevel       = "info"
)

// Config is the complete station configuration.
type Config struct {
	Station     StationConfig     `yaml:"station"`
	Agent       AgentConfig       `yaml:"agent"`
	Environment EnvironmentConfig `yaml:"environment"`
	Log         LogConfig         `yaml:"log"`
}

// StationConfig identifies the local station.
type StationConfig struct {
	Address   string `yaml:"address"`
	StateFile string `yaml:"state_file,omitempty"`
}

// AgentConfig holds the agent's timing parameters.
type AgentConfig struct {
	ProbeDelay            Duration `yaml:"probe_delay"`
	MinChannelTime        Duration `yaml:"min_channel_time"`
	MaxChannelTime        Duration `yaml:"max_channel_time"`
	AuthenticationTimeout Duration `yaml:"authentication_timeout"`
	AssociationTimeout    Duration `yaml:"association_timeout"`
}

// EnvironmentConfig describes the simulated radio environment.
type EnvironmentConfig struct {
	ScanDelay    Duration   `yaml:"scan_delay"`
	AccessPoints []APConfig `yaml:"access_points"`
}

// APConfig describes one simulated access point.
type APConfig struct {
	BSSID          string   `yaml:"bssid"`
	SSID           string   `yaml:"ssid"`
	Channel        int      `yaml:"channel"`
	BeaconInterval Duration `yaml:"beacon_interval,omitempty"`
	RxPower        float64  `yaml:"rx_power"`
	RejectAuth     bool     `yaml:"reject_auth,omitempty"`
	RejectAssoc    bool     `yaml:"reject_assoc,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	ProtocolLog string `yaml:"protocol_log,omitempty"`
}

// Duration is a time.Duration written as a string such as "150ms".
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML accepts duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LoadError reports a configuration file that could not be used.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return e.File + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.File + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Station: StationConfig{Address: DefaultStationAddress},
		Agent: AgentConfig{
			ProbeDelay:            Duration(DefaultProbeDelay),
			MinChannelTime:        Duration(DefaultMinChannelTime),
			MaxChannelTime:        Duration(DefaultMaxChannelTime),
			AuthenticationTimeout: Duration(DefaultAuthenticationTimeout),
			AssociationTimeout:    Duration(DefaultAssociationTimeout),
		},
		Environment: EnvironmentConfig{ScanDelay: Duration(DefaultScanDelay)},
		Log:         LogConfig{Level: DefaultLogLevel},
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to load", Cause: err}
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.StationAddress(); err != nil {
		return err
	}
	if err := c.AgentConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.SimEnvironment(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// StationAddress parses the station address.
func (c *Config) StationAddress() (mlme.MACAddress, error) {
	addr, err := mlme.ParseMAC(c.Station.Address)
	if err != nil {
		return mlme.MACAddress{}, fmt.Errorf("%w: station address: %w", ErrInvalid, err)
	}
	if addr.IsZero() {
		return mlme.MACAddress{}, fmt.Errorf("%w: station address must not be zero", ErrInvalid)
	}
	return addr, nil
}

// AgentConfig converts the agent section.
func (c *Config) AgentConfig() agent.Config {
	return agent.Config{
		ProbeDelay:            c.Agent.ProbeDelay.D(),
		MinChannelTime:        c.Agent.MinChannelTime.D(),
		MaxChannelTime:        c.Agent.MaxChannelTime.D(),
		AuthenticationTimeout: c.Agent.AuthenticationTimeout.D(),
		AssociationTimeout:    c.Agent.AssociationTimeout.D(),
	}
}

// SimEnvironment converts the environment section. BSSIDs must be valid
// and unique.
func (c *Config) SimEnvironment() (sim.Environment, error) {
	env := sim.Environment{ScanDelay: c.Environment.ScanDelay.D()}
	if env.ScanDelay < 0 {
		return sim.Environment{}, fmt.Errorf("%w: negative scan delay", ErrInvalid)
	}

	seen := make(map[mlme.MACAddress]bool, len(c.Environment.AccessPoints))
	for i, ap := range c.Environment.AccessPoints {
		addr, err := mlme.ParseMAC(ap.BSSID)
		if err != nil {
			return sim.Environment{}, fmt.Errorf("%w: access point %d: %w", ErrInvalid, i, err)
		}
		if addr.IsZero() {
			return sim.Environment{}, fmt.Errorf("%w: access point %d: zero BSSID", ErrInvalid, i)
		}
		if seen[addr] {
			return sim.Environment{}, fmt.Errorf("%w: access point %d: duplicate BSSID %s", ErrInvalid, i, addr)
		}
		seen[addr] = true

		interval := ap.BeaconInterval.D()
		if interval == 0 {
			interval = DefaultBeaconInterval
		}
		env.APs = append(env.APs, sim.AP{
			BSS: mlme.BSSDescription{
				BSSID:          addr,
				Channel:        ap.Channel,
				SSID:           ap.SSID,
				BeaconInterval: interval,
				RxPower:        ap.RxPower,
			},
			RejectAuth:  ap.RejectAuth,
			RejectAssoc: ap.RejectAssoc,
		})
	}
	return env, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalid, s)
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
