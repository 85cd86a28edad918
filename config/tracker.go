package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// TrackerConfig describes one tracker and the tools to attach to it.
type TrackerConfig struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	// Frequency is the polling rate in Hz. Zero selects the kind's maximum.
	Frequency float64       `json:"frequency,omitempty"`
	Serial    *SerialConfig `json:"serial,omitempty"`
	// HardwareTimeoutMs bounds each driver call.
	HardwareTimeoutMs int          `json:"hardware_timeout_ms,omitempty"`
	Tools             []ToolConfig `json:"tools"`
	ReferenceTool     *ToolConfig  `json:"reference_tool,omitempty"`

	Attributes map[string]interface{} `json:"attributes,omitempty"`
	// Payload is the kind specific tracker configuration decoded from Attributes.
	Payload TrackerPayload `json:"-"`
}

// PollingFrequency returns the configured frequency, or the kind's maximum when unset.
func (tc *TrackerConfig) PollingFrequency() float64 {
	if tc.Frequency > 0 {
		return tc.Frequency
	}
	info, _ := tc.Kind.Info()
	return info.MaxFrequency
}

// TrackerToolList returns the non reference tools.
func (tc *TrackerConfig) TrackerToolList() []ToolConfig {
	return tc.Tools
}

// ReferenceToolConfig returns the reference tool. ok is false when none is configured.
func (tc *TrackerConfig) ReferenceToolConfig() (ref *ToolConfig, ok bool) {
	return tc.ReferenceTool, tc.ReferenceTool != nil
}

// HardwareTimeout returns the bound on driver calls in milliseconds.
func (tc *TrackerConfig) HardwareTimeout() int {
	if tc.HardwareTimeoutMs > 0 {
		return tc.HardwareTimeoutMs
	}
	return DefaultHardwareTimeoutMs
}

// allTools returns the tools followed by the reference tool.
func (tc *TrackerConfig) allTools() []*ToolConfig {
	tools := make([]*ToolConfig, 0, len(tc.Tools)+1)
	for i := range tc.Tools {
		tools = append(tools, &tc.Tools[i])
	}
	if tc.ReferenceTool != nil {
		tools = append(tools, tc.ReferenceTool)
	}
	return tools
}

// ConvertAttributes decodes the tracker and tool attribute maps into the kind's payload types.
// Unknown kinds are left without a payload.
func (tc *TrackerConfig) ConvertAttributes() error {
	if _, ok := tc.Kind.Info(); !ok {
		return nil
	}
	payload := newTrackerPayload(tc.Kind)
	if err := decodeAttributes(tc.Attributes, payload); err != nil {
		return errors.Wrapf(err, "tracker %q attributes", tc.Name)
	}
	tc.Payload = payload
	for _, tool := range tc.allTools() {
		tp := newToolPayload(tc.Kind)
		if err := decodeAttributes(tool.Attributes, tp); err != nil {
			return errors.Wrapf(err, "tool %q attributes", tool.Name)
		}
		tool.Payload = tp
	}
	return nil
}

func decodeAttributes(attrs map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(attrs)
}

// Validate checks the tracker configuration without touching hardware. It returns the names of
// the serial ports it depends on.
func (tc *TrackerConfig) Validate(path string) ([]string, error) {
	var deps []string
	if tc.Name == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if tc.Kind == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "kind")
	}
	info, ok := tc.Kind.Info()
	if !ok {
		return nil, goutils.NewConfigValidationError(path, errors.Errorf("unknown tracker kind %q", tc.Kind))
	}
	if tc.Frequency < 0 || tc.Frequency > info.MaxFrequency {
		return nil, goutils.NewConfigValidationError(path,
			errors.Errorf("frequency must be in (0, %g] Hz for %s, got %g", info.MaxFrequency, tc.Kind, tc.Frequency))
	}
	if tc.HardwareTimeoutMs < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("hardware_timeout_ms cannot be negative"))
	}
	if info.NeedsSerial {
		if tc.Serial == nil {
			return nil, goutils.NewConfigValidationFieldRequiredError(path, "serial")
		}
		if err := tc.Serial.Validate(path + ".serial"); err != nil {
			return nil, err
		}
		deps = append(deps, tc.Serial.Path)
	}
	if tc.Payload != nil {
		if err := tc.Payload.Validate(path + ".attributes"); err != nil {
			return nil, err
		}
	}

	seen := map[string]bool{}
	for i, tool := range tc.allTools() {
		toolPath := fmt.Sprintf("%s.tools.%d", path, i)
		if tool == tc.ReferenceTool {
			toolPath = path + ".reference_tool"
		}
		if seen[tool.Name] {
			return nil, goutils.NewConfigValidationError(toolPath, errors.Errorf("duplicate tool name %q", tool.Name))
		}
		seen[tool.Name] = true
		if err := tool.Validate(toolPath, tc.Kind); err != nil {
			return nil, err
		}
	}
	return deps, nil
}

// ToolConfig describes one tool.
type ToolConfig struct {
	Name        string      `json:"name"`
	Calibration *PoseConfig `json:"calibration,omitempty"`

	Attributes map[string]interface{} `json:"attributes,omitempty"`
	// Payload is the kind specific tool configuration decoded from Attributes.
	Payload ToolPayload `json:"-"`
}

// Validate checks the tool for a tracker of the given kind.
func (tc *ToolConfig) Validate(path string, kind Kind) error {
	if tc.Name == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if tc.Payload == nil {
		return nil
	}
	if tc.Payload.Kind() != kind && !(kind.IsPolaris() && tc.Payload.Kind().IsPolaris()) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("%s tool cannot be attached to a %s tracker", tc.Payload.Kind(), kind))
	}
	return tc.Payload.Validate(path + ".attributes")
}
