// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

// Package config loads a simulated BMC definition from a YAML (or JSON) file.
package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	valid "github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	ipmi "github.com/vmware/ipmisim"
	"github.com/vmware/ipmisim/sdr"
)

const (
	DefaultListen         = ":623"
	DefaultUsername       = "admin"
	DefaultPassword       = "password"
	DefaultSessionLimit   = 32
	DefaultSessionTimeout = 60 * time.Second

	// MaxPasswordLen is the v1.5 MD5 key size, the simulator always
	// advertises MD5 so longer RMCP+ passwords are refused
	MaxPasswordLen = 16
)

// Config is a simulated BMC definition
type Config struct {
	Listen   string        `yaml:"listen"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Sessions SessionConfig `yaml:"sessions"`
	// InvalidCommandResponses answers unsupported commands with 0xc1
	InvalidCommandResponses bool `yaml:"invalid_command_responses"`

	BMC BMCConfig          `yaml:"bmc"`
	SDR []SDRConfig        `yaml:"sdr"`
	FRU map[uint8]HexBytes `yaml:"fru"`
}

// SessionConfig bounds the session table
type SessionConfig struct {
	Limit   int           `yaml:"limit"`
	Timeout time.Duration `yaml:"timeout"`
}

// BMCConfig is the identity and initial state of the BMC
type BMCConfig struct {
	// GUID is the system GUID, a fresh one when empty
	GUID string `yaml:"guid"`
	// Manufacturer is a vendor name such as "dell" or an IANA enterprise number
	Manufacturer  string              `yaml:"manufacturer"`
	ProductID     uint16              `yaml:"product_id"`
	PowerOn       *bool               `yaml:"power_on"`
	McID          string              `yaml:"mc_id"`
	PowerReadings []ipmi.PowerReading `yaml:"power_readings"`
}

// SDRConfig is one sensor data record. ID 0 takes the id from the record header.
type SDRConfig struct {
	ID       uint16    `yaml:"id"`
	Data     HexBytes  `yaml:"data"`
	Readings []float64 `yaml:"readings"`
}

// HexBytes is either a hex string, whitespace and colons allowed, or a list
// of byte values
type HexBytes []byte

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (b *HexBytes) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var buf []uint8
		if err := value.Decode(&buf); err != nil {
			return err
		}
		*b = buf
		return nil
	}

	s := strings.NewReplacer(" ", "", "\t", "", "\n", "", ":", "").Replace(value.Value)
	s = strings.TrimPrefix(strings.ToLower(s), "0x")

	buf, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid hex data: %w", value.Line, err)
	}
	*b = buf

	return nil
}

// New returns a Config with defaults applied
func New() *Config {
	return &Config{
		Listen:   DefaultListen,
		Username: DefaultUsername,
		Password: DefaultPassword,
		Sessions: SessionConfig{
			Limit:   DefaultSessionLimit,
			Timeout: DefaultSessionTimeout,
		},
	}
}

// Load reads the file at path, decoding it over the defaults
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that cannot be caught while decoding
func (c *Config) Validate() error {
	host, port, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return fmt.Errorf("invalid listen value: %v", c.Listen)
	}
	if host != "" && !valid.IsHost(host) {
		return fmt.Errorf("invalid listen host: %v", host)
	}
	if port != "0" && !valid.IsPort(port) {
		return fmt.Errorf("invalid listen port: %v", port)
	}
	if len(c.Username) > 16 {
		return fmt.Errorf("invalid username value: %v", c.Username)
	}
	if len(c.Password) > MaxPasswordLen {
		return fmt.Errorf("invalid password length: %d", len(c.Password))
	}
	if !valid.InRange(c.Sessions.Limit, 1, 255) {
		return fmt.Errorf("invalid sessions.limit value: %v", c.Sessions.Limit)
	}
	if c.Sessions.Timeout <= 0 {
		return fmt.Errorf("invalid sessions.timeout value: %v", c.Sessions.Timeout)
	}
	if len(c.BMC.GUID) > 0 && !valid.IsUUID(c.BMC.GUID) {
		return fmt.Errorf("invalid bmc.guid value: %v", c.BMC.GUID)
	}
	if len(c.BMC.McID) > ipmi.MaxMcIDStringLen {
		return fmt.Errorf("invalid bmc.mc_id length: %d", len(c.BMC.McID))
	}
	if c.BMC.Manufacturer != "" {
		if _, err := ipmi.ParseOemID(c.BMC.Manufacturer); err != nil {
			return fmt.Errorf("invalid bmc.manufacturer value: %w", err)
		}
	}
	for i, r := range c.SDR {
		if len(r.Data) < sdr.HeaderSize {
			return fmt.Errorf("invalid sdr[%d].data: %d bytes", i, len(r.Data))
		}
	}

	return nil
}

// Addr resolves the listen address
func (c *Config) Addr() (net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", c.Listen)
	if err != nil {
		return net.UDPAddr{}, err
	}
	return *addr, nil
}

// State returns the initial BMC state
func (c *Config) State() (*ipmi.State, error) {
	state := ipmi.DefaultState()

	if c.BMC.GUID != "" {
		guid, err := uuid.Parse(c.BMC.GUID)
		if err != nil {
			return nil, fmt.Errorf("invalid bmc.guid value: %w", err)
		}
		state.GUID = guid
	}
	if c.BMC.Manufacturer != "" {
		id, err := ipmi.ParseOemID(c.BMC.Manufacturer)
		if err != nil {
			return nil, err
		}
		state.Device.ManufacturerID = id
	}
	if c.BMC.ProductID != 0 {
		state.Device.ProductID = c.BMC.ProductID
	}
	if c.BMC.PowerOn != nil {
		state.Chassis.PowerOn = *c.BMC.PowerOn
	}
	if c.BMC.McID != "" {
		state.McID = c.BMC.McID
	}
	if len(c.BMC.PowerReadings) > 0 {
		state.PowerReadings = c.BMC.PowerReadings
	}
	for id, data := range c.FRU {
		state.FRU[id] = data
	}

	return state, nil
}

// Store returns the SDR repository
func (c *Config) Store() (*sdr.Store, error) {
	entries := make([]sdr.Entry, 0, len(c.SDR))
	for _, r := range c.SDR {
		entries = append(entries, sdr.Entry{
			ID:       r.ID,
			Data:     r.Data,
			Readings: r.Readings,
		})
	}
	return sdr.NewStore(entries)
}

// Options returns the simulator options for this BMC
func (c *Config) Options() ([]ipmi.Option, error) {
	state, err := c.State()
	if err != nil {
		return nil, err
	}

	store, err := c.Store()
	if err != nil {
		return nil, err
	}

	opts := []ipmi.Option{
		ipmi.WithState(state),
		ipmi.WithSDR(store),
		ipmi.WithCredentials(c.Username, c.Password),
		ipmi.WithSessionLimit(c.Sessions.Limit),
		ipmi.WithSessionTimeout(c.Sessions.Timeout),
	}
	if c.InvalidCommandResponses {
		opts = append(opts, ipmi.WithInvalidCommandResponses())
	}

	return opts, nil
}
