package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cropper/internal/crop"
	"github.com/roach88/cropper/internal/engine"
	"github.com/roach88/cropper/internal/geometry"
)

// StepCapture is the step kind that captures the current crop.
const StepCapture = "capture"

// Scenario is a scripted crop session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Image is the synthetic source image.
	Image ImageSpec `yaml:"image"`

	// FileID keys the session in the store.
	FileID string `yaml:"file_id"`

	// ViewportWidth is the container width; height follows 3:4.
	ViewportWidth float64 `yaml:"viewport_width"`

	// Limits overrides the default gesture limits.
	Limits *geometry.Limits `yaml:"limits,omitempty"`

	// Saved is a transform stored for FileID before mounting.
	Saved *crop.Transform `yaml:"saved,omitempty"`

	// Steps are applied in order after the mount settles.
	Steps []Step `yaml:"steps"`

	// Expect is checked against the live transform after the last step.
	Expect *Expect `yaml:"expect,omitempty"`

	// Tolerance for float comparisons. Default 1e-9.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// ImageSpec describes the synthetic image. A non-empty Fail makes the
// metadata load fail with that message.
type ImageSpec struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Fail   string `yaml:"fail,omitempty"`
}

// Step is one gesture event or a capture.
type Step struct {
	Kind   string  `yaml:"kind"`
	DX     float64 `yaml:"dx,omitempty"`
	DY     float64 `yaml:"dy,omitempty"`
	Factor float64 `yaml:"factor,omitempty"`
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match on a transform, or on an error code when Error
// is set.
type Expect struct {
	Scale      *float64 `yaml:"scale,omitempty"`
	TranslateX *float64 `yaml:"translate_x,omitempty"`
	TranslateY *float64 `yaml:"translate_y,omitempty"`
	Error      string   `yaml:"error,omitempty"`
}

var stepKinds = map[string]bool{
	string(engine.GesturePanBegin):    true,
	string(engine.GesturePanUpdate):   true,
	string(engine.GesturePanEnd):      true,
	string(engine.GesturePinchBegin):  true,
	string(engine.GesturePinchUpdate): true,
	string(engine.GesturePinchEnd):    true,
	string(engine.GestureReset):       true,
	StepCapture:                       true,
}

// Event converts a gesture step to an engine event.
func (s Step) Event() engine.GestureEvent {
	return engine.GestureEvent{
		Kind:   engine.GestureKind(s.Kind),
		DX:     s.DX,
		DY:     s.DY,
		Factor: s.Factor,
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.FileID == "" {
		return fmt.Errorf("file_id is required")
	}
	if s.ViewportWidth <= 0 {
		return fmt.Errorf("viewport_width must be positive")
	}
	if s.Image.Fail == "" && (s.Image.Width <= 0 || s.Image.Height <= 0) {
		return fmt.Errorf("image width and height must be positive")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative")
	}

	for i, step := range s.Steps {
		if step.Kind == "" {
			return fmt.Errorf("steps[%d]: kind is required", i)
		}
		if !stepKinds[step.Kind] {
			return fmt.Errorf("steps[%d]: unknown step kind %q", i, step.Kind)
		}
	}
	return nil
}
