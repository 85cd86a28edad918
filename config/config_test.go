package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"go.igtrack.org/tracking/logging"
	"go.igtrack.org/tracking/serial"
)

const sampleConfig = `{
	"trackers": [
		{
			"name": "polaris",
			"kind": "polaris_vicra",
			"frequency": 20,
			"serial": {"path": "${TRACKER_PORT}", "baud_rate": 115200, "parity": "none", "handshake": true},
			"tools": [
				{"name": "pointer", "attributes": {"wireless": true, "srom_file": "/srom/pointer.rom"},
				 "calibration": {"translation": {"x": 0, "y": 0, "z": -160}}}
			],
			"reference_tool": {"name": "patient", "attributes": {"port": 3}}
		},
		{
			"name": "sim",
			"kind": "simulated",
			"frequency": 100,
			"attributes": {"threaded": true},
			"tools": [
				{"name": "needle", "attributes": {"trajectory": "circle", "radius": 20, "period_ms": 2000,
				 "center": {"x": 1, "y": 2, "z": 3}}}
			]
		}
	]
}`

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "trackers.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestRead(t *testing.T) {
	t.Setenv("TRACKER_PORT", "/dev/ttyUSB7")
	logger := logging.NewTestLogger(t)
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := Read(context.Background(), path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, len(cfg.Trackers), test.ShouldEqual, 2)

	polaris, ok := cfg.FindTracker("polaris")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, polaris.Serial.Path, test.ShouldEqual, "/dev/ttyUSB7")
	test.That(t, polaris.Payload, test.ShouldResemble, &PolarisTracker{Variant: KindPolarisVicra})
	test.That(t, polaris.Tools[0].Payload, test.ShouldResemble,
		&PolarisTool{Variant: KindPolarisVicra, Wireless: true, SROMFile: "/srom/pointer.rom"})
	ref, ok := polaris.ReferenceToolConfig()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ref.Payload.(*PolarisTool).Port, test.ShouldEqual, 3)
	test.That(t, polaris.Tools[0].Calibration.Transform().Translation().Z, test.ShouldEqual, -160.0)

	opts := polaris.Serial.Options(polaris.Kind)
	test.That(t, opts.BaudRate, test.ShouldEqual, 115200)
	test.That(t, opts.Handshake, test.ShouldBeTrue)
	test.That(t, opts.Parity, test.ShouldEqual, serial.NoParity)

	sim, ok := cfg.FindTracker("sim")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, sim.Payload.(*SimulatedTracker).Threaded, test.ShouldBeTrue)
	needle := sim.Tools[0].Payload.(*SimulatedTool)
	test.That(t, needle.Trajectory, test.ShouldEqual, TrajectoryCircle)
	test.That(t, needle.Center.Y, test.ShouldEqual, 2.0)
	test.That(t, sim.HardwareTimeout(), test.ShouldEqual, DefaultHardwareTimeoutMs)
	test.That(t, sim.PollingFrequency(), test.ShouldEqual, 100.0)
}

func TestReadRejects(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for name, tc := range map[string]struct {
		conf string
		msg  string
	}{
		"unknown field":   {`{"trackers": [], "bogus": 1}`, "unknown field"},
		"frequency":       {`{"trackers": [{"name": "a", "kind": "polaris_vicra", "frequency": 60, "serial": {"path": "/dev/x"}, "tools": []}]}`, "frequency"},
		"missing serial":  {`{"trackers": [{"name": "a", "kind": "aurora", "tools": []}]}`, "serial"},
		"baud":            {`{"trackers": [{"name": "a", "kind": "aurora", "serial": {"path": "/dev/x", "baud_rate": 1234}, "tools": []}]}`, "baud_rate"},
		"aurora port":     {`{"trackers": [{"name": "a", "kind": "aurora", "serial": {"path": "/dev/x"}, "tools": [{"name": "t", "attributes": {"port": 4}}]}]}`, "port must be between 0 and 3"},
		"unused attr":     {`{"trackers": [{"name": "a", "kind": "simulated", "attributes": {"thread": true}, "tools": []}]}`, "thread"},
		"duplicate tools": {`{"trackers": [{"name": "a", "kind": "simulated", "tools": [{"name": "t"}], "reference_tool": {"name": "t"}}]}`, "duplicate tool"},
		"unknown kind":    {`{"trackers": [{"name": "a", "kind": "optotrak", "tools": []}]}`, "unknown tracker kind"},
		"wireless srom":   {`{"trackers": [{"name": "a", "kind": "polaris_hybrid", "serial": {"path": "/dev/x"}, "tools": [{"name": "t", "attributes": {"wireless": true}}]}]}`, "srom_file"},
		"micron marker":   {`{"trackers": [{"name": "a", "kind": "micron", "attributes": {"marker_template_directory": "/m"}, "tools": [{"name": "t"}]}]}`, "marker_name"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromReader(context.Background(), "", strings.NewReader(tc.conf), logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}
}

func TestEnsureCollectsAllErrors(t *testing.T) {
	cfg := &Config{Trackers: []TrackerConfig{
		{Name: "a", Kind: KindSimulated, Frequency: 5000},
		{Name: "b", Kind: KindAscension, Serial: &SerialConfig{Path: "/dev/x"},
			Tools: []ToolConfig{{Name: "bird", Attributes: map[string]interface{}{"bird_port": 9}}}},
		{Name: "a", Kind: KindSimulated},
	}}
	err := cfg.Ensure()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "trackers.0")
	test.That(t, err.Error(), test.ShouldContainSubstring, "bird_port must be between 1 and 4")
	test.That(t, err.Error(), test.ShouldContainSubstring, `duplicate tracker name "a"`)
}

func TestValidateDependencies(t *testing.T) {
	tc := TrackerConfig{Name: "em", Kind: KindAurora, Serial: &SerialConfig{Path: "/dev/ttyS1"},
		Tools: []ToolConfig{{Name: "coil", Attributes: map[string]interface{}{"port": 1, "channel": 1, "five_dof": true}}}}
	test.That(t, tc.ConvertAttributes(), test.ShouldBeNil)
	deps, err := tc.Validate("trackers.0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"/dev/ttyS1"})

	tc.Tools[0].Payload.(*AuroraTool).FiveDOF = false
	_, err = tc.Validate("trackers.0")
	test.That(t, err, test.ShouldNotBeNil)

	tc.Tools[0].Payload = &SimulatedTool{}
	_, err = tc.Validate("trackers.0")
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot be attached")
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	test.That(t, len(kinds), test.ShouldEqual, 8)
	test.That(t, kinds[0], test.ShouldEqual, KindAscension)
	info, ok := KindPolarisVicra.Info()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, info.MaxFrequency, test.ShouldEqual, 20.0)
	test.That(t, info.NeedsSerial, test.ShouldBeTrue)
	_, ok = Kind("optotrak").Info()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, KindPolarisHybrid.IsPolaris(), test.ShouldBeTrue)
	test.That(t, KindAurora.IsPolaris(), test.ShouldBeFalse)
}

func TestRequiredToolFiles(t *testing.T) {
	micron := &MicronTracker{MarkerTemplateDirectory: "/markers"}
	test.That(t, RequiredToolFiles(micron, &MicronTool{MarkerName: "pointer"}), test.ShouldResemble, []string{"/markers/pointer"})
	test.That(t, RequiredToolFiles(&PolarisTracker{}, &PolarisTool{Port: 2}), test.ShouldBeEmpty)
	test.That(t, RequiredToolFiles(&AuroraTracker{}, &AuroraTool{SROMFile: "a.rom"}), test.ShouldResemble, []string{"a.rom"})
}

func TestWatcher(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, `{"trackers": []}`)

	w, err := NewWatcher(path, logger)
	test.That(t, err, test.ShouldBeNil)

	writeConfig(t, dir, `{"trackers": [{"name": "oops", "kind": "optotrak", "tools": []}]}`)
	writeConfig(t, dir, `{"trackers": [{"name": "sim", "kind": "simulated", "tools": []}]}`)

	deadline := time.After(5 * time.Second)
	var got *Config
	for got == nil || len(got.Trackers) == 0 {
		select {
		case got = <-w.Config():
		case <-deadline:
			t.Fatal("no config published")
		}
	}
	test.That(t, got.Trackers[0].Name, test.ShouldEqual, "sim")
	test.That(t, w.Close(), test.ShouldBeNil)
	_, open := <-w.Config()
	test.That(t, open, test.ShouldBeFalse)
}

func TestAttributeSchema(t *testing.T) {
	schemas, err := AttributeSchema(KindSimulated)
	test.That(t, err, test.ShouldBeNil)
	trackerMd, err := json.Marshal(schemas.Tracker)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(trackerMd), test.ShouldContainSubstring, "fail_on")
	toolMd, err := json.Marshal(schemas.Tool)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(toolMd), test.ShouldContainSubstring, "trajectory")

	schemas, err = AttributeSchema(KindPolarisSpectra)
	test.That(t, err, test.ShouldBeNil)
	toolMd, err = json.Marshal(schemas.Tool)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(toolMd), test.ShouldContainSubstring, "srom_file")
	test.That(t, string(toolMd), test.ShouldNotContainSubstring, "Variant")

	_, err = AttributeSchema("optotrak")
	test.That(t, err, test.ShouldNotBeNil)

	fileMd, err := json.Marshal(Schema())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(fileMd), test.ShouldContainSubstring, "reference_tool")
}

func TestDiff(t *testing.T) {
	logger := logging.NewTestLogger(t)
	left, err := FromReader(context.Background(), "left.json", strings.NewReader(sampleConfig), logger)
	test.That(t, err, test.ShouldBeNil)
	right, err := FromReader(context.Background(), "right.json", strings.NewReader(sampleConfig), logger)
	test.That(t, err, test.ShouldBeNil)

	diff, err := Diff(left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diff, test.ShouldBeEmpty)

	right.Trackers[1].Frequency = 75
	diff, err = Diff(left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diff, test.ShouldContainSubstring, "75")
}
