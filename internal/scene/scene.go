// Package scene is an in-process simulator of the Panda joint-torque scene.
// It implements bridge.Simulator so the control loop can run without an
// external simulator, either directly or behind the gRPC bridge.
package scene

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/san-kum/jointtorque/internal/bridge"
	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/integrators"
	"github.com/san-kum/jointtorque/internal/kinematics"
	"github.com/san-kum/jointtorque/internal/physics"
)

const (
	DesiredFrame   = "DesiredFrame"
	ReferenceFrame = "ReferenceFrame"
)

type Config struct {
	// Dt is the simulated time advanced by one step [s].
	Dt         float64
	JointNames []string
	Initial    dynamo.Vector
	MaxTorque  []float64
	Inertia    []float64
	Damping    []float64
	// MaxCatchUpSteps caps how many steps a free-running scene takes per access.
	MaxCatchUpSteps int
}

func DefaultJointNames() []string {
	names := make([]string, dynamo.NumJoints)
	for i := range names {
		names[i] = fmt.Sprintf("Franka_joint%d", i+1)
	}
	return names
}

func DefaultConfig() Config {
	return Config{
		Dt:              0.05,
		JointNames:      DefaultJointNames(),
		Initial:         dynamo.Vector{0, -math.Pi / 4, 0, -3 * math.Pi / 4, 0, math.Pi / 2, math.Pi / 4},
		MaxTorque:       []float64{87, 87, 87, 87, 12, 12, 12},
		Inertia:         append([]float64(nil), physics.PandaInertia...),
		Damping:         append([]float64(nil), physics.PandaDamping...),
		MaxCatchUpSteps: 100,
	}
}

type Option func(*Scene)

func WithClock(c clock.Clock) Option {
	return func(s *Scene) { s.clock = c }
}

func WithIntegrator(integ dynamo.Integrator) Option {
	return func(s *Scene) { s.integ = integ }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Scene) { s.logger = logger }
}

type Scene struct {
	mu     sync.Mutex
	cfg    Config
	chain  *physics.JointChain
	integ  dynamo.Integrator
	clock  clock.Clock
	logger *zap.SugaredLogger

	index   map[string]int
	x       dynamo.State
	tau     dynamo.Vector
	objects map[string]kinematics.Pose

	running     bool
	synchronous bool
	simTime     float64
	steps       int
	lastAdvance time.Time
}

var _ bridge.Simulator = (*Scene)(nil)

func New(cfg Config, opts ...Option) (*Scene, error) {
	n := len(cfg.JointNames)
	if n == 0 {
		return nil, fmt.Errorf("scene: no joints configured")
	}
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("scene: dt must be positive, got %f", cfg.Dt)
	}
	for what, v := range map[string][]float64{"initial": cfg.Initial, "max_torque": cfg.MaxTorque} {
		if err := dynamo.CheckDim("scene: "+what, v, n); err != nil {
			return nil, err
		}
	}
	chain, err := physics.NewJointChain(cfg.Inertia, cfg.Damping)
	if err != nil {
		return nil, err
	}
	if chain.ControlDim() != n {
		return nil, fmt.Errorf("scene: %d joints but %d inertias", n, chain.ControlDim())
	}
	if cfg.MaxCatchUpSteps < 1 {
		cfg.MaxCatchUpSteps = 1
	}

	s := &Scene{
		cfg:     cfg,
		chain:   chain,
		integ:   integrators.NewRK4(),
		clock:   clock.New(),
		logger:  zap.NewNop().Sugar(),
		index:   make(map[string]int, n),
		objects: map[string]kinematics.Pose{DesiredFrame: kinematics.Identity(), ReferenceFrame: kinematics.Identity()},
	}
	for i, name := range cfg.JointNames {
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("scene: duplicate joint name %q", name)
		}
		s.index[name] = i
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s, nil
}

func (s *Scene) reset() {
	n := len(s.cfg.JointNames)
	s.x = make(dynamo.State, 2*n)
	copy(s.x, s.cfg.Initial)
	s.tau = dynamo.Zeros(n)
	s.simTime = 0
	s.steps = 0
}

func (s *Scene) step() {
	s.x = s.integ.Step(s.chain, s.x, s.tau, s.simTime, s.cfg.Dt)
	s.simTime += s.cfg.Dt
	s.steps++
}

// catchUp advances a free-running scene by the wall-clock time since the last advance.
func (s *Scene) catchUp() {
	if !s.running || s.synchronous {
		return
	}
	now := s.clock.Now()
	dt := time.Duration(s.cfg.Dt * float64(time.Second))
	n := int(now.Sub(s.lastAdvance) / dt)
	if n <= 0 {
		return
	}
	if n > s.cfg.MaxCatchUpSteps {
		s.logger.Debugw("scene falling behind", "pending", n, "taken", s.cfg.MaxCatchUpSteps)
		n = s.cfg.MaxCatchUpSteps
		s.lastAdvance = now
	} else {
		s.lastAdvance = s.lastAdvance.Add(time.Duration(n) * dt)
	}
	for i := 0; i < n; i++ {
		s.step()
	}
}

func (s *Scene) indices(names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j, ok := s.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", bridge.ErrUnknownJoint, name)
		}
		idx[i] = j
	}
	return idx, nil
}

func (s *Scene) SetSynchronous(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.catchUp()
	s.synchronous = enabled
	s.lastAdvance = s.clock.Now()
	return nil
}

func (s *Scene) StartSimulation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.lastAdvance = s.clock.Now()
	s.logger.Infow("simulation started", "synchronous", s.synchronous, "dt", s.cfg.Dt)
	return nil
}

// StopSimulation halts the scene and restores the initial joint state.
func (s *Scene) StopSimulation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.logger.Infow("simulation stopped", "steps", s.steps, "time", s.simTime, "kinetic_energy", s.chain.Energy(s.x))
	s.running = false
	s.reset()
	return nil
}

func (s *Scene) TriggerNextSimulationStep(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return bridge.ErrNotRunning
	}
	if !s.synchronous {
		return bridge.ErrNotSynchronous
	}
	s.step()
	return nil
}

func (s *Scene) read(names []string, pick func(j int) float64) (dynamo.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.catchUp()
	idx, err := s.indices(names)
	if err != nil {
		return nil, err
	}
	out := make(dynamo.Vector, len(idx))
	for i, j := range idx {
		out[i] = pick(j)
	}
	return out, nil
}

func (s *Scene) GetJointPositions(ctx context.Context, names []string) (dynamo.Vector, error) {
	return s.read(names, func(j int) float64 { return s.x[j] })
}

func (s *Scene) GetJointVelocities(ctx context.Context, names []string) (dynamo.Vector, error) {
	n := len(s.cfg.JointNames)
	return s.read(names, func(j int) float64 { return s.x[n+j] })
}

// GetJointTorques returns the torque the joints applied, i.e. the last
// command clamped to each joint's limit.
func (s *Scene) GetJointTorques(ctx context.Context, names []string) (dynamo.Vector, error) {
	return s.read(names, func(j int) float64 { return s.tau[j] })
}

func (s *Scene) write(names []string, values dynamo.Vector, apply func(j int, v float64)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := dynamo.CheckDim("scene: values", values, len(names)); err != nil {
		return err
	}
	s.catchUp()
	idx, err := s.indices(names)
	if err != nil {
		return err
	}
	for i, j := range idx {
		apply(j, values[i])
	}
	return nil
}

func (s *Scene) SetJointPositions(ctx context.Context, names []string, q dynamo.Vector) error {
	return s.write(names, q, func(j int, v float64) { s.x[j] = v })
}

func (s *Scene) SetJointTargetVelocities(ctx context.Context, names []string, qdot dynamo.Vector) error {
	n := len(s.cfg.JointNames)
	return s.write(names, qdot, func(j int, v float64) { s.x[n+j] = v })
}

func (s *Scene) SetJointTorques(ctx context.Context, names []string, tau dynamo.Vector) error {
	return s.write(names, tau, func(j int, v float64) {
		limit := s.cfg.MaxTorque[j]
		s.tau[j] = math.Max(-limit, math.Min(limit, v))
	})
}

func (s *Scene) SetObjectPose(ctx context.Context, name string, pose kinematics.Pose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[name] = pose
	return nil
}

func (s *Scene) GetObjectPose(ctx context.Context, name string) (kinematics.Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pose, ok := s.objects[name]
	if !ok {
		return kinematics.Pose{}, fmt.Errorf("%w: %q", bridge.ErrUnknownObject, name)
	}
	return pose, nil
}

// Time returns the simulated time and the number of steps taken since start.
func (s *Scene) Time() (float64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime, s.steps
}

// KineticEnergy is the current Σ ½·I·qdot² of the arm [J].
func (s *Scene) KineticEnergy() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.Energy(s.x)
}

func (s *Scene) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scene) Close() error {
	return nil
}
