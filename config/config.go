// Package config defines tracker configurations: the kind table with manufacturer limits, the
// kind specific payloads trackers and tools carry, static validation, and reading configuration
// files from disk.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.igtrack.org/tracking/serial"
	"go.igtrack.org/tracking/utils"
)

// DefaultHardwareTimeoutMs bounds every driver call when a configuration sets no timeout.
const DefaultHardwareTimeoutMs = 5000

// Config is the top level document: one entry per tracker.
type Config struct {
	ConfigFilePath string          `json:"-"`
	Trackers       []TrackerConfig `json:"trackers"`
}

// Ensure converts the kind specific attributes of every tracker and validates all of them. All
// failures are reported together.
func (c *Config) Ensure() error {
	var errs error
	names := map[string]bool{}
	for i := range c.Trackers {
		path := fmt.Sprintf("trackers.%d", i)
		tc := &c.Trackers[i]
		if names[tc.Name] && tc.Name != "" {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.Errorf("duplicate tracker name %q", tc.Name)))
			continue
		}
		names[tc.Name] = true
		if err := tc.ConvertAttributes(); err != nil {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path, err))
			continue
		}
		if _, err := tc.Validate(path); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// FindTracker returns the tracker named name.
func (c *Config) FindTracker(name string) (*TrackerConfig, bool) {
	for i := range c.Trackers {
		if c.Trackers[i].Name == name {
			return &c.Trackers[i], true
		}
	}
	return nil, false
}

// SerialConfig describes the communication channel of a serial tracker.
type SerialConfig struct {
	Path      string `json:"path"`
	BaudRate  int    `json:"baud_rate,omitempty"`
	DataBits  int    `json:"data_bits,omitempty"`
	Parity    string `json:"parity,omitempty"`
	StopBits  int    `json:"stop_bits,omitempty"`
	Handshake bool   `json:"handshake,omitempty"`
	// ReadTimeoutMs defaults to 100.
	ReadTimeoutMs int `json:"read_timeout_ms,omitempty"`
}

// Validate checks the port settings.
func (sc *SerialConfig) Validate(path string) error {
	if sc.Path == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "path")
	}
	if sc.BaudRate != 0 && !utils.ValidateBaudRate(ValidBaudRates, sc.BaudRate) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("baud_rate must be one of %v, got %d", ValidBaudRates, sc.BaudRate))
	}
	if sc.DataBits != 0 && (sc.DataBits < 5 || sc.DataBits > 8) {
		return goutils.NewConfigValidationError(path, errors.Errorf("data_bits must be between 5 and 8, got %d", sc.DataBits))
	}
	if sc.StopBits != 0 && sc.StopBits != 1 && sc.StopBits != 2 {
		return goutils.NewConfigValidationError(path, errors.Errorf("stop_bits must be 1 or 2, got %d", sc.StopBits))
	}
	if _, err := serial.ParseParity(sc.Parity); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// Options converts the settings for serial.Open, filling defaults from the kind table.
func (sc *SerialConfig) Options(kind Kind) serial.Options {
	opts := serial.DefaultOptions()
	if info, ok := kind.Info(); ok && info.DefaultBaudRate != 0 {
		opts.BaudRate = info.DefaultBaudRate
	}
	if sc.BaudRate != 0 {
		opts.BaudRate = sc.BaudRate
	}
	if sc.DataBits != 0 {
		opts.DataBits = sc.DataBits
	}
	if sc.StopBits == 2 {
		opts.StopBits = serial.TwoStopBits
	}
	//nolint:errcheck
	opts.Parity, _ = serial.ParseParity(sc.Parity)
	opts.Handshake = sc.Handshake
	if sc.ReadTimeoutMs != 0 {
		opts.ReadTimeout = sc.ReadTimeoutMs
	}
	return opts
}
