package experiment

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/jointtorque/internal/bridge"
	"github.com/san-kum/jointtorque/internal/config"
	"github.com/san-kum/jointtorque/internal/control"
	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/integrators"
	"github.com/san-kum/jointtorque/internal/kinematics"
	"github.com/san-kum/jointtorque/internal/metrics"
	"github.com/san-kum/jointtorque/internal/scene"
)

type Registry struct {
	models      map[string]func() *kinematics.SerialManipulator
	integrators map[string]func() dynamo.Integrator
	controllers map[string]func(kp float64, desired dynamo.Vector) dynamo.Controller
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func() *kinematics.SerialManipulator),
		integrators: make(map[string]func() dynamo.Integrator),
		controllers: make(map[string]func(float64, dynamo.Vector) dynamo.Controller),
	}

	r.models["panda"] = kinematics.NewFrankaEmikaPanda

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["verlet"] = func() dynamo.Integrator { return integrators.NewVerlet() }
	r.integrators["leapfrog"] = func() dynamo.Integrator { return integrators.NewLeapfrog() }

	r.controllers["pd"] = func(kp float64, desired dynamo.Vector) dynamo.Controller {
		return control.NewJointPD(kp, desired)
	}
	r.controllers["none"] = func(_ float64, desired dynamo.Vector) dynamo.Controller {
		return control.NewNone(len(desired))
	}

	return r
}

func (r *Registry) GetModel(name string) (*kinematics.SerialManipulator, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(name string, kp float64, desired dynamo.Vector) (dynamo.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(kp, desired), nil
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) ListModels() []string      { return sortedKeys(r.models) }
func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }
func (r *Registry) ListControllers() []string { return sortedKeys(r.controllers) }

func (r *Registry) DefaultMetrics() []dynamo.Metric {
	return metrics.Defaults()
}

// SceneConfig converts the run config into a scene config, keeping the
// scene's defaults for any vector left empty.
func SceneConfig(cfg *config.Config) scene.Config {
	sc := scene.DefaultConfig()
	sc.Dt = cfg.Scene.Dt
	sc.JointNames = slices.Clone(cfg.JointNames)
	if len(cfg.Scene.Initial) > 0 {
		sc.Initial = slices.Clone(cfg.Scene.Initial)
	}
	if len(cfg.Scene.MaxTorque) > 0 {
		sc.MaxTorque = slices.Clone(cfg.Scene.MaxTorque)
	}
	if len(cfg.Scene.Inertia) > 0 {
		sc.Inertia = slices.Clone(cfg.Scene.Inertia)
	}
	if len(cfg.Scene.Damping) > 0 {
		sc.Damping = slices.Clone(cfg.Scene.Damping)
	}
	return sc
}

// NewScene builds the in-process simulator described by cfg.
func (r *Registry) NewScene(cfg *config.Config, logger *zap.SugaredLogger) (*scene.Scene, error) {
	integ, err := r.GetIntegrator(cfg.Scene.Integrator)
	if err != nil {
		return nil, err
	}
	opts := []scene.Option{scene.WithIntegrator(integ)}
	if logger != nil {
		opts = append(opts, scene.WithLogger(logger))
	}
	return scene.New(SceneConfig(cfg), opts...)
}

// OpenSimulator returns the simulator selected by cfg.Backend.
func (r *Registry) OpenSimulator(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (bridge.Simulator, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return r.NewScene(cfg, logger)
	case config.BackendRemote:
		return bridge.Connect(ctx, bridge.ConnectOptions{
			Host:    cfg.Host,
			Port:    cfg.Port,
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
			Logger:  logger,
		})
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}

// FromConfig extracts the loop settings from a run config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Iterations:   cfg.Iterations,
		Desired:      dynamo.Vector(slices.Clone(cfg.Desired)),
		JointNames:   slices.Clone(cfg.JointNames),
		StartupDelay: cfg.StartupDelay,
		OutDir:       cfg.OutDir,
		RefFile:      cfg.RefFile,
		ReadFile:     cfg.ReadFile,
	}
}

// Build wires a ready-to-run experiment from cfg. The caller owns nothing
// afterwards: Run closes the simulator.
func (r *Registry) Build(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := r.GetModel("panda")
	if err != nil {
		return nil, err
	}
	controller, err := r.GetController(cfg.Controller, cfg.Kp, cfg.Desired)
	if err != nil {
		return nil, err
	}
	sim, err := r.OpenSimulator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	exp := New(FromConfig(cfg), logger)
	if err := exp.Setup(sim, model, controller, r.DefaultMetrics()); err != nil {
		return nil, multierr.Append(err, sim.Close())
	}
	return exp, nil
}
