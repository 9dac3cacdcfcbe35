package experiment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/jointtorque/internal/bridge"
	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/kinematics"
	"github.com/san-kum/jointtorque/internal/scene"
	"github.com/san-kum/jointtorque/internal/storage"
)

var ErrNotSetup = errors.New("experiment not setup")

type Config struct {
	Iterations int
	Desired    dynamo.Vector
	JointNames []string
	// StartupDelay is waited after StartSimulation to let the simulator settle.
	StartupDelay time.Duration
	OutDir       string
	RefFile      string
	ReadFile     string
}

type Result struct {
	Iterations int
	Metrics    map[string]float64
	FinalError float64
	RefPath    string
	ReadPath   string
}

type Experiment struct {
	cfg        Config
	sim        bridge.Simulator
	model      *kinematics.SerialManipulator
	controller dynamo.Controller
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	logger     *zap.SugaredLogger
	clock      clock.Clock
}

func New(cfg Config, logger *zap.SugaredLogger) *Experiment {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Experiment{
		cfg:    cfg,
		logger: logger,
		clock:  clock.New(),
	}
}

// WithClock replaces the clock used for the startup delay.
func (e *Experiment) WithClock(c clock.Clock) *Experiment {
	e.clock = c
	return e
}

func (e *Experiment) Setup(sim bridge.Simulator, model *kinematics.SerialManipulator, controller dynamo.Controller, metrics []dynamo.Metric) error {
	if sim == nil || model == nil || controller == nil {
		return fmt.Errorf("experiment setup: simulator, model and controller are required")
	}
	n := len(e.cfg.JointNames)
	if err := dynamo.CheckDim("desired configuration", e.cfg.Desired, n); err != nil {
		return err
	}
	if model.Dim() != n {
		return &dynamo.DimensionError{What: "kinematic model", Got: model.Dim(), Want: n}
	}
	if e.cfg.Iterations < 1 {
		return fmt.Errorf("experiment setup: iterations must be at least 1, got %d", e.cfg.Iterations)
	}
	e.sim = sim
	e.model = model
	e.controller = controller
	e.metrics = metrics
	return nil
}

func (e *Experiment) AddObserver(o dynamo.Observer) { e.observers = append(e.observers, o) }

// Run drives the simulator for the configured number of iterations. Whatever
// happens in the loop, the torque logs are closed, the simulation is stopped
// and the simulator connection is closed before Run returns.
func (e *Experiment) Run(ctx context.Context) (result *Result, err error) {
	if e.sim == nil {
		return nil, ErrNotSetup
	}

	result = &Result{
		Metrics:  make(map[string]float64),
		RefPath:  filepath.Join(e.cfg.OutDir, e.cfg.RefFile),
		ReadPath: filepath.Join(e.cfg.OutDir, e.cfg.ReadFile),
	}
	for _, m := range e.metrics {
		m.Reset()
	}

	var logs *storage.TorqueLogs
	defer func() {
		err = multierr.Append(err, e.shutdown(context.WithoutCancel(ctx), logs))
		for _, m := range e.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
	}()

	if err := e.start(ctx); err != nil {
		return result, err
	}

	desired, err := e.model.Fkm(e.cfg.Desired)
	if err != nil {
		return result, err
	}
	if err := e.sim.SetObjectPose(ctx, scene.DesiredFrame, desired); err != nil {
		return result, fmt.Errorf("set desired frame: %w", err)
	}

	logs, err = storage.OpenTorqueLogs(e.cfg.OutDir, e.cfg.RefFile, e.cfg.ReadFile, len(e.cfg.JointNames))
	if err != nil {
		return result, err
	}

	for i := 0; i < e.cfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		sample, err := e.iterate(ctx, i, logs)
		if err != nil {
			return result, fmt.Errorf("iteration %d: %w", i, err)
		}
		result.Iterations++
		result.FinalError = sample.QError.Norm()

		for _, m := range e.metrics {
			m.Observe(sample)
		}
		for _, obs := range e.observers {
			obs.OnStep(sample)
		}
	}

	return result, nil
}

func (e *Experiment) start(ctx context.Context) error {
	if err := e.sim.SetSynchronous(ctx, true); err != nil {
		return fmt.Errorf("set synchronous: %w", err)
	}
	e.logger.Info("starting simulation")
	if err := e.sim.StartSimulation(ctx); err != nil {
		return fmt.Errorf("start simulation: %w", err)
	}

	if e.cfg.StartupDelay <= 0 {
		return nil
	}
	timer := e.clock.Timer(e.cfg.StartupDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// iterate runs one command-step-read cycle.
func (e *Experiment) iterate(ctx context.Context, i int, logs *storage.TorqueLogs) (dynamo.Sample, error) {
	names := e.cfg.JointNames

	q, err := e.sim.GetJointPositions(ctx, names)
	if err != nil {
		return dynamo.Sample{}, err
	}
	qdot, err := e.sim.GetJointVelocities(ctx, names)
	if err != nil {
		return dynamo.Sample{}, err
	}
	qerr := e.cfg.Desired.Sub(q)

	pose, err := e.model.Fkm(q)
	if err != nil {
		return dynamo.Sample{}, err
	}
	if err := e.sim.SetObjectPose(ctx, scene.ReferenceFrame, pose); err != nil {
		return dynamo.Sample{}, err
	}

	tau := e.controller.Compute(q, qdot)
	if err := e.sim.SetJointTorques(ctx, names, tau); err != nil {
		return dynamo.Sample{}, err
	}
	if err := e.sim.TriggerNextSimulationStep(ctx); err != nil {
		return dynamo.Sample{}, err
	}
	tauRead, err := e.sim.GetJointTorques(ctx, names)
	if err != nil {
		return dynamo.Sample{}, err
	}

	if err := logs.Append(tau, tauRead); err != nil {
		return dynamo.Sample{}, err
	}

	return dynamo.Sample{
		Iteration:  i,
		Remaining:  e.cfg.Iterations - i,
		Q:          q,
		QDot:       qdot,
		QError:     qerr,
		TorqueRef:  tau,
		TorqueRead: tauRead,
	}, nil
}

func (e *Experiment) shutdown(ctx context.Context, logs *storage.TorqueLogs) error {
	var err error
	if logs != nil {
		err = multierr.Append(err, logs.Close())
	}
	e.logger.Info("stopping simulation")
	if stopErr := e.sim.StopSimulation(ctx); stopErr != nil {
		err = multierr.Append(err, fmt.Errorf("stop simulation: %w", stopErr))
	}
	return multierr.Append(err, e.sim.Close())
}
