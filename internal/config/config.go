package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultIterations   = 10000
	DefaultKp           = 0.04
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 19997
	DefaultTimeout      = 100 * time.Millisecond
	DefaultRetries      = 10
	DefaultStartupDelay = 100 * time.Millisecond
	DefaultRefFile      = "list_torques_ref.csv"
	DefaultReadFile     = "list_torques_read.csv"
	DefaultSceneDt      = 0.05
	NumJoints           = 7

	BackendRemote = "remote"
	BackendLocal  = "local"
)

var (
	Backends    = []string{BackendRemote, BackendLocal}
	Controllers = []string{"pd", "none"}
	Integrators = []string{"rk4", "euler", "verlet", "leapfrog"}
)

// DefaultDesired is the goal configuration qd [rad].
func DefaultDesired() []float64 {
	return []float64{-0.70, -0.10, 1.66, -2.34, 0.40, 1.26, 0.070}
}

func DefaultJointNames() []string {
	names := make([]string, NumJoints)
	for i := range names {
		names[i] = fmt.Sprintf("Franka_joint%d", i+1)
	}
	return names
}

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Iterations   int           `yaml:"iterations"`
	Kp           float64       `yaml:"kp"`
	Desired      []float64     `yaml:"desired"`
	JointNames   []string      `yaml:"joint_names"`
	Controller   string        `yaml:"controller"`
	Backend      string        `yaml:"backend"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	StartupDelay time.Duration `yaml:"startup_delay"`
	OutDir       string        `yaml:"out_dir"`
	RefFile      string        `yaml:"ref_file"`
	ReadFile     string        `yaml:"read_file"`
	LogLevel     string        `yaml:"log_level"`
	Report       ReportConfig  `yaml:"report"`
	Scene        SceneConfig   `yaml:"scene"`
}

type ReportConfig struct {
	Every int  `yaml:"every"`
	Quiet bool `yaml:"quiet"`
}

// SceneConfig parameterises the in-process simulator used by the local
// backend and by the serve command.
type SceneConfig struct {
	Integrator string    `yaml:"integrator"`
	Dt         float64   `yaml:"dt"`
	Initial    []float64 `yaml:"initial"`
	MaxTorque  []float64 `yaml:"max_torque"`
	Inertia    []float64 `yaml:"inertia"`
	Damping    []float64 `yaml:"damping"`
}

func DefaultConfig() *Config {
	return &Config{
		Iterations:   DefaultIterations,
		Kp:           DefaultKp,
		Desired:      DefaultDesired(),
		JointNames:   DefaultJointNames(),
		Controller:   "pd",
		Backend:      BackendRemote,
		Host:         DefaultHost,
		Port:         DefaultPort,
		Timeout:      DefaultTimeout,
		Retries:      DefaultRetries,
		StartupDelay: DefaultStartupDelay,
		RefFile:      DefaultRefFile,
		ReadFile:     DefaultReadFile,
		LogLevel:     "info",
		Report:       ReportConfig{Every: 1},
		Scene: SceneConfig{
			Integrator: "rk4",
			Dt:         DefaultSceneDt,
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads path on top of base, so keys missing from the file keep
// the values base already has.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the settings a run depends on. Scene vectors may be empty,
// in which case the scene falls back to its own defaults.
func (c *Config) Validate() error {
	if c.Iterations < 1 {
		return invalid("iterations must be at least 1, got %d", c.Iterations)
	}
	if c.Kp < 0 || math.IsNaN(c.Kp) || math.IsInf(c.Kp, 0) {
		return invalid("kp must be a finite non-negative number, got %v", c.Kp)
	}
	if len(c.Desired) != NumJoints {
		return invalid("desired has %d joints, want %d", len(c.Desired), NumJoints)
	}
	if len(c.JointNames) != NumJoints {
		return invalid("joint_names has %d entries, want %d", len(c.JointNames), NumJoints)
	}
	if !slices.Contains(Controllers, c.Controller) {
		return invalid("unknown controller %q (want one of %v)", c.Controller, Controllers)
	}
	if !slices.Contains(Backends, c.Backend) {
		return invalid("unknown backend %q (want one of %v)", c.Backend, Backends)
	}
	if c.Backend == BackendRemote && (c.Port < 1 || c.Port > 65535) {
		return invalid("port %d out of range", c.Port)
	}
	if c.Timeout <= 0 {
		return invalid("timeout must be positive")
	}
	if c.Retries < 1 {
		return invalid("retries must be at least 1, got %d", c.Retries)
	}
	if c.StartupDelay < 0 {
		return invalid("startup_delay must not be negative")
	}
	if c.RefFile == "" || c.ReadFile == "" {
		return invalid("torque log file names must not be empty")
	}
	if c.RefFile == c.ReadFile {
		return invalid("ref_file and read_file must differ")
	}
	if c.Report.Every < 1 {
		return invalid("report.every must be at least 1, got %d", c.Report.Every)
	}
	return c.Scene.Validate()
}

func (s *SceneConfig) Validate() error {
	if !slices.Contains(Integrators, s.Integrator) {
		return invalid("unknown integrator %q (want one of %v)", s.Integrator, Integrators)
	}
	if s.Dt <= 0 {
		return invalid("scene.dt must be positive, got %v", s.Dt)
	}
	for name, v := range map[string][]float64{
		"initial":    s.Initial,
		"max_torque": s.MaxTorque,
		"inertia":    s.Inertia,
		"damping":    s.Damping,
	} {
		if len(v) != 0 && len(v) != NumJoints {
			return invalid("scene.%s has %d values, want %d", name, len(v), NumJoints)
		}
	}
	return nil
}
