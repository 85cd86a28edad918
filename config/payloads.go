package config

import (
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"go.igtrack.org/tracking/utils"
)

// TrackerPayload is the kind specific part of a tracker configuration. The set of
// implementations is closed; consumers switch over the concrete types.
type TrackerPayload interface {
	Kind() Kind
	Validate(path string) error
	isTrackerPayload()
}

// ToolPayload is the kind specific part of a tool configuration.
type ToolPayload interface {
	Kind() Kind
	Validate(path string) error
	isToolPayload()
}

func newTrackerPayload(kind Kind) TrackerPayload {
	switch kind {
	case KindPolarisVicra, KindPolarisSpectra, KindPolarisHybrid:
		return &PolarisTracker{Variant: kind}
	case KindAurora:
		return &AuroraTracker{}
	case KindMicron:
		return &MicronTracker{}
	case KindAscension:
		return &AscensionTracker{}
	case KindInfiniTrack:
		return &InfiniTrackTracker{}
	case KindSimulated:
		return &SimulatedTracker{}
	default:
		return nil
	}
}

func newToolPayload(kind Kind) ToolPayload {
	switch kind {
	case KindPolarisVicra, KindPolarisSpectra, KindPolarisHybrid:
		return &PolarisTool{Variant: kind}
	case KindAurora:
		return &AuroraTool{}
	case KindMicron:
		return &MicronTool{}
	case KindAscension:
		return &AscensionTool{}
	case KindInfiniTrack:
		return &InfiniTrackTool{}
	case KindSimulated:
		return &SimulatedTool{}
	default:
		return nil
	}
}

// PolarisTracker configures a Polaris Vicra, Spectra or Hybrid.
type PolarisTracker struct {
	Variant Kind `json:"-"`
}

// Kind returns the Polaris variant.
func (p *PolarisTracker) Kind() Kind { return p.Variant }

// Validate has nothing to check beyond the common fields.
func (p *PolarisTracker) Validate(path string) error { return nil }

func (*PolarisTracker) isTrackerPayload() {}

// AuroraTracker configures an Aurora electromagnetic tracker.
type AuroraTracker struct{}

// Kind returns KindAurora.
func (*AuroraTracker) Kind() Kind { return KindAurora }

// Validate has nothing to check beyond the common fields.
func (*AuroraTracker) Validate(path string) error { return nil }

func (*AuroraTracker) isTrackerPayload() {}

// MicronTracker configures a Micron optical tracker.
type MicronTracker struct {
	MarkerTemplateDirectory string `json:"marker_template_directory"`
	CameraCalibrationFile   string `json:"camera_calibration_file,omitempty"`
}

// Kind returns KindMicron.
func (*MicronTracker) Kind() Kind { return KindMicron }

// Validate requires the marker template directory.
func (m *MicronTracker) Validate(path string) error {
	if m.MarkerTemplateDirectory == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "marker_template_directory")
	}
	return nil
}

func (*MicronTracker) isTrackerPayload() {}

// AscensionTracker configures an Ascension flock of birds.
type AscensionTracker struct{}

// Kind returns KindAscension.
func (*AscensionTracker) Kind() Kind { return KindAscension }

// Validate has nothing to check beyond the common fields.
func (*AscensionTracker) Validate(path string) error { return nil }

func (*AscensionTracker) isTrackerPayload() {}

// InfiniTrackTracker configures an InfiniTrack optical tracker.
type InfiniTrackTracker struct {
	MarkerTemplateDirectory string `json:"marker_template_directory"`
}

// Kind returns KindInfiniTrack.
func (*InfiniTrackTracker) Kind() Kind { return KindInfiniTrack }

// Validate requires the marker template directory.
func (it *InfiniTrackTracker) Validate(path string) error {
	if it.MarkerTemplateDirectory == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "marker_template_directory")
	}
	return nil
}

func (*InfiniTrackTracker) isTrackerPayload() {}

// Driver hooks a simulated tracker can be told to fail.
const (
	HookOpen         = "open"
	HookClose        = "close"
	HookStart        = "start"
	HookStop         = "stop"
	HookUpdateStatus = "update_status"
	HookVerifyTool   = "verify_tool"
)

var simulatedHooks = []string{HookOpen, HookClose, HookStart, HookStop, HookUpdateStatus, HookVerifyTool}

// SimulatedTracker configures the software tracker.
type SimulatedTracker struct {
	// Threaded runs acquisition on its own goroutine.
	Threaded bool `json:"threaded,omitempty"`
	// FailOn lists driver hooks that always fail.
	FailOn []string `json:"fail_on,omitempty"`
}

// Kind returns KindSimulated.
func (*SimulatedTracker) Kind() Kind { return KindSimulated }

// Validate checks the hook names in FailOn.
func (s *SimulatedTracker) Validate(path string) error {
	for _, hook := range s.FailOn {
		if !lo.Contains(simulatedHooks, hook) {
			return goutils.NewConfigValidationError(path, errors.Errorf("unknown hook %q in fail_on", hook))
		}
	}
	return nil
}

func (*SimulatedTracker) isTrackerPayload() {}

// PolarisTool is a passive or active Polaris tool. Wireless tools need an SROM file; wired tools
// sit on one of the twelve tool ports.
type PolarisTool struct {
	Variant  Kind   `json:"-"`
	Wireless bool   `json:"wireless,omitempty"`
	SROMFile string `json:"srom_file,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// Kind returns the Polaris variant.
func (p *PolarisTool) Kind() Kind { return p.Variant }

// Validate checks the SROM requirement and the port range.
func (p *PolarisTool) Validate(path string) error {
	if p.Wireless {
		if p.SROMFile == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "srom_file")
		}
		return nil
	}
	if err := utils.ValidateIntRange("port", p.Port, 0, 11); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

func (*PolarisTool) isToolPayload() {}

// AuroraTool is an electromagnetic sensor coil.
type AuroraTool struct {
	Port     int    `json:"port"`
	Channel  int    `json:"channel,omitempty"`
	SROMFile string `json:"srom_file,omitempty"`
	FiveDOF  bool   `json:"five_dof,omitempty"`
}

// Kind returns KindAurora.
func (*AuroraTool) Kind() Kind { return KindAurora }

// Validate checks the port and channel ranges. Channel 1 only exists on 5DOF splitters.
func (a *AuroraTool) Validate(path string) error {
	if err := utils.ValidateIntRange("port", a.Port, 0, 3); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if err := utils.ValidateIntRange("channel", a.Channel, 0, 1); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if a.Channel == 1 && !a.FiveDOF {
		return goutils.NewConfigValidationError(path, errors.New("channel 1 requires a five_dof tool"))
	}
	return nil
}

func (*AuroraTool) isToolPayload() {}

// MicronTool is an optical marker known by its template name.
type MicronTool struct {
	MarkerName string `json:"marker_name"`
}

// Kind returns KindMicron.
func (*MicronTool) Kind() Kind { return KindMicron }

// Validate requires the marker name.
func (m *MicronTool) Validate(path string) error {
	if m.MarkerName == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "marker_name")
	}
	return nil
}

func (*MicronTool) isToolPayload() {}

// AscensionTool is a bird sensor.
type AscensionTool struct {
	BirdPort int `json:"bird_port"`
}

// Kind returns KindAscension.
func (*AscensionTool) Kind() Kind { return KindAscension }

// Validate checks the bird port range.
func (a *AscensionTool) Validate(path string) error {
	if err := utils.ValidateIntRange("bird_port", a.BirdPort, 1, 4); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

func (*AscensionTool) isToolPayload() {}

// InfiniTrackTool is an optical marker known by its template name.
type InfiniTrackTool struct {
	MarkerName string `json:"marker_name"`
}

// Kind returns KindInfiniTrack.
func (*InfiniTrackTool) Kind() Kind { return KindInfiniTrack }

// Validate requires the marker name.
func (it *InfiniTrackTool) Validate(path string) error {
	if it.MarkerName == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "marker_name")
	}
	return nil
}

func (*InfiniTrackTool) isToolPayload() {}

// Trajectories a simulated tool can follow.
const (
	TrajectoryStatic = "static"
	TrajectoryCircle = "circle"
	TrajectoryLine   = "line"
)

// SimulatedTool moves along a generated trajectory.
type SimulatedTool struct {
	Trajectory string    `json:"trajectory,omitempty"`
	Center     r3.Vector `json:"center"`
	// Radius is the circle radius or the half length of the line, in mm.
	Radius   float64 `json:"radius,omitempty"`
	PeriodMs float64 `json:"period_ms,omitempty"`
	// HiddenEvery makes the tool invisible on every n-th update. Zero keeps it visible.
	HiddenEvery int `json:"hidden_every,omitempty"`
}

// Kind returns KindSimulated.
func (*SimulatedTool) Kind() Kind { return KindSimulated }

// Validate checks the trajectory name and its parameters.
func (s *SimulatedTool) Validate(path string) error {
	switch s.Trajectory {
	case "", TrajectoryStatic:
	case TrajectoryCircle, TrajectoryLine:
		if s.PeriodMs <= 0 {
			return goutils.NewConfigValidationError(path, errors.Errorf("%s trajectory needs a positive period_ms", s.Trajectory))
		}
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown trajectory %q", s.Trajectory))
	}
	if s.Radius < 0 || s.HiddenEvery < 0 {
		return goutils.NewConfigValidationError(path, errors.New("radius and hidden_every cannot be negative"))
	}
	return nil
}

func (*SimulatedTool) isToolPayload() {}

// RequiredToolFiles lists the files that must exist on disk before tool can be attached to a
// tracker configured with tracker.
func RequiredToolFiles(tracker TrackerPayload, tool ToolPayload) []string {
	switch t := tool.(type) {
	case *PolarisTool:
		if t.SROMFile != "" {
			return []string{t.SROMFile}
		}
	case *AuroraTool:
		if t.SROMFile != "" {
			return []string{t.SROMFile}
		}
	case *MicronTool:
		if m, ok := tracker.(*MicronTracker); ok {
			return []string{filepath.Join(m.MarkerTemplateDirectory, t.MarkerName)}
		}
	case *InfiniTrackTool:
		if it, ok := tracker.(*InfiniTrackTracker); ok {
			return []string{filepath.Join(it.MarkerTemplateDirectory, t.MarkerName)}
		}
	}
	return nil
}
