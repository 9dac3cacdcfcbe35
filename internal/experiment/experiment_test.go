package experiment_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/jointtorque/internal/config"
	"github.com/san-kum/jointtorque/internal/control"
	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/experiment"
	"github.com/san-kum/jointtorque/internal/kinematics"
	"github.com/san-kum/jointtorque/internal/logging"
	"github.com/san-kum/jointtorque/internal/metrics"
	"github.com/san-kum/jointtorque/internal/scene"
	"github.com/san-kum/jointtorque/internal/storage"
)

var _ = Describe("Experiment", func() {
	var (
		dir     string
		sim     *fakeSim
		cfg     experiment.Config
		exp     *experiment.Experiment
		model   *kinematics.SerialManipulator
		desired dynamo.Vector
		q, qdot dynamo.Vector
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		desired = dynamo.Vector(config.DefaultDesired())
		q = dynamo.Vector{0, -0.5, 0, -2, 0, 1.5, 0.8}
		qdot = dynamo.Vector{0.1, -0.2, 0.3, 0, -0.1, 0.05, 0}
		sim = newFakeSim(q, qdot)
		model = kinematics.NewFrankaEmikaPanda()
		cfg = experiment.Config{
			Iterations: 25,
			Desired:    desired,
			JointNames: config.DefaultJointNames(),
			OutDir:     dir,
			RefFile:    storage.DefaultReferenceFile,
			ReadFile:   storage.DefaultMeasuredFile,
		}
	})

	JustBeforeEach(func() {
		exp = experiment.New(cfg, logging.NewTest(GinkgoT()))
		Expect(exp.Setup(sim, model, control.NewJointPD(config.DefaultKp, desired), metrics.Defaults())).To(Succeed())
	})

	Describe("a complete run", func() {
		var (
			result *experiment.Result
			obs    *countingObserver
		)

		JustBeforeEach(func() {
			obs = &countingObserver{}
			exp.AddObserver(obs)
			var err error
			result, err = exp.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
		})

		It("runs exactly the configured number of iterations", func() {
			Expect(result.Iterations).To(Equal(25))
			Expect(sim.count("TriggerNextSimulationStep")).To(Equal(25))
			Expect(sim.count("SetJointTorques")).To(Equal(25))
			Expect(obs.samples).To(HaveLen(25))
			Expect(obs.samples[0].Remaining).To(Equal(25))
			Expect(obs.samples[24].Remaining).To(Equal(1))
		})

		It("starts in synchronous mode and shuts down in order", func() {
			Expect(sim.calls[0]).To(Equal("SetSynchronous"))
			Expect(sim.calls[1]).To(Equal("StartSimulation"))
			n := len(sim.calls)
			Expect(sim.calls[n-2:]).To(Equal([]string{"StopSimulation", "Close"}))
			Expect(sim.closed).To(BeTrue())
		})

		It("commands, steps, then reads within each iteration", func() {
			cycle := []string{
				"GetJointPositions",
				"GetJointVelocities",
				"SetObjectPose:" + scene.ReferenceFrame,
				"SetJointTorques",
				"TriggerNextSimulationStep",
				"GetJointTorques",
			}
			Expect(sim.calls[3 : 3+len(cycle)]).To(Equal(cycle))
			Expect(sim.calls[3+len(cycle) : 3+2*len(cycle)]).To(Equal(cycle))
		})

		It("sends the desired frame exactly once, before the loop", func() {
			Expect(sim.calls[2]).To(Equal("SetObjectPose:" + scene.DesiredFrame))
			Expect(sim.count("SetObjectPose:" + scene.DesiredFrame)).To(Equal(1))

			want, err := model.Fkm(desired)
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.poses[scene.DesiredFrame][0].ApproxEqual(want, 1e-12)).To(BeTrue())
		})

		It("updates the reference frame with the current configuration", func() {
			want, err := model.Fkm(q)
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.poses[scene.ReferenceFrame]).To(HaveLen(25))
			Expect(sim.poses[scene.ReferenceFrame][24].ApproxEqual(want, 1e-12)).To(BeTrue())
		})

		It("commands tau = Kp (qd - q) - Kv qdot with Kv = 3 sqrt(Kp)", func() {
			kp := 0.04
			kv := 3 * math.Sqrt(kp)
			for _, tau := range sim.torque {
				for i := range tau {
					want := kp*(desired[i]-q[i]) + kv*(-qdot[i])
					Expect(tau[i]).To(BeNumerically("~", want, 1e-15))
				}
			}
		})

		It("writes one row per iteration to each log", func() {
			ref, read, err := storage.LoadPair(result.RefPath, result.ReadPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(ref).To(HaveLen(25))
			Expect(read).To(HaveLen(25))
			for i := range ref {
				Expect(ref[i]).To(HaveLen(7))
				Expect(read[i][0]).To(BeNumerically("~", ref[i][0]*0.5, 1e-6))
			}
			Expect(result.RefPath).To(Equal(filepath.Join(dir, storage.DefaultReferenceFile)))
		})

		It("reports the final tracking error and metrics", func() {
			Expect(result.FinalError).To(BeNumerically("~", desired.Sub(q).Norm(), 1e-12))
			Expect(result.Metrics).To(HaveKeyWithValue("tracking_error", result.FinalError))
			Expect(result.Metrics).To(HaveKey("torque_tracking_rms"))
			Expect(result.Metrics["control_effort"]).To(BeNumerically(">", 0))
		})
	})

	Context("when a simulator call fails mid-run", func() {
		BeforeEach(func() {
			sim.failOn = "TriggerNextSimulationStep"
			sim.failErr = errors.New("bridge went away")
		})

		It("aborts without retrying but still shuts down", func() {
			result, err := exp.Run(context.Background())
			Expect(err).To(MatchError(ContainSubstring("bridge went away")))
			Expect(result.Iterations).To(Equal(0))
			Expect(sim.count("TriggerNextSimulationStep")).To(Equal(1))
			Expect(sim.count("StopSimulation")).To(Equal(1))
			Expect(sim.closed).To(BeTrue())

			rows, err := storage.Load(result.RefPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})
	})

	Context("when shutdown also fails", func() {
		BeforeEach(func() {
			sim.failOn = "StopSimulation"
			sim.failErr = errors.New("stop refused")
		})

		It("reports the shutdown error and still disconnects", func() {
			_, err := exp.Run(context.Background())
			Expect(err).To(MatchError(ContainSubstring("stop refused")))
			Expect(sim.closed).To(BeTrue())
		})
	})

	Context("when the measured torques are not finite", func() {
		BeforeEach(func() {
			sim.readScale = math.NaN()
		})

		It("keeps going and logs them as they are", func() {
			result, err := exp.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Iterations).To(Equal(25))
			rows, err := storage.Load(result.ReadPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(math.IsNaN(rows[0][0])).To(BeTrue())
		})
	})

	Context("when the context is cancelled", func() {
		It("stops between iterations and still shuts down", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			result, err := exp.Run(ctx)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(result.Iterations).To(Equal(0))
			Expect(sim.count("StopSimulation")).To(Equal(1))
			Expect(sim.closed).To(BeTrue())
		})
	})

	Context("with a startup delay", func() {
		var mock *clock.Mock

		BeforeEach(func() {
			cfg.StartupDelay = 100 * time.Millisecond
			cfg.Iterations = 1
			mock = clock.NewMock()
		})

		It("waits before sending the desired frame", func() {
			exp.WithClock(mock)
			done := make(chan error, 1)
			go func() {
				_, err := exp.Run(context.Background())
				done <- err
			}()

			Eventually(func() int { return sim.count("StartSimulation") }).Should(Equal(1))
			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
			Expect(sim.count("SetObjectPose:" + scene.DesiredFrame)).To(Equal(0))

			mock.Add(100 * time.Millisecond)
			Eventually(done).Should(Receive(BeNil()))
			Expect(sim.count("SetObjectPose:" + scene.DesiredFrame)).To(Equal(1))
		})
	})

	It("refuses to run before setup", func() {
		_, err := experiment.New(cfg, nil).Run(context.Background())
		Expect(err).To(MatchError(experiment.ErrNotSetup))
	})

	It("rejects a desired configuration of the wrong length", func() {
		bad := experiment.New(experiment.Config{
			Iterations: 1,
			Desired:    dynamo.Vector{1, 2, 3},
			JointNames: config.DefaultJointNames(),
		}, nil)
		err := bad.Setup(sim, model, control.NewNone(7), nil)
		Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
	})
})

var _ = Describe("Registry", func() {
	var r *experiment.Registry

	BeforeEach(func() {
		r = experiment.NewRegistry()
	})

	It("lists the available components", func() {
		Expect(r.ListControllers()).To(Equal([]string{"none", "pd"}))
		Expect(r.ListIntegrators()).To(Equal([]string{"euler", "leapfrog", "rk4", "verlet"}))
		Expect(r.ListModels()).To(Equal([]string{"panda"}))
	})

	It("rejects unknown names", func() {
		_, err := r.GetIntegrator("rk45")
		Expect(err).To(HaveOccurred())
		_, err = r.GetController("lqr", 1, nil)
		Expect(err).To(HaveOccurred())
		_, err = r.GetModel("ur5")
		Expect(err).To(HaveOccurred())
	})

	It("builds a pd controller with the derived damping gain", func() {
		c, err := r.GetController("pd", 0.04, dynamo.Vector(config.DefaultDesired()))
		Expect(err).NotTo(HaveOccurred())
		pd, ok := c.(*control.JointPD)
		Expect(ok).To(BeTrue())
		Expect(pd.Kv).To(BeNumerically("~", 0.6, 1e-12))
	})

	It("fills empty scene vectors with defaults", func() {
		cfg := config.DefaultConfig()
		cfg.Scene.Inertia = []float64{1, 1, 1, 1, 1, 1, 1}
		sc := experiment.SceneConfig(cfg)
		Expect(sc.Inertia).To(Equal([]float64{1, 1, 1, 1, 1, 1, 1}))
		Expect(sc.MaxTorque).To(Equal(scene.DefaultConfig().MaxTorque))
		Expect(sc.JointNames).To(Equal(cfg.JointNames))
	})

	It("runs end to end against the local scene", func() {
		cfg := config.DefaultConfig()
		cfg.Backend = config.BackendLocal
		cfg.Iterations = 400
		cfg.StartupDelay = 0
		cfg.OutDir = GinkgoT().TempDir()

		exp, err := r.Build(context.Background(), cfg, logging.NewTest(GinkgoT()))
		Expect(err).NotTo(HaveOccurred())

		result, err := exp.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Iterations).To(Equal(400))
		Expect(result.Metrics["mean_tracking_error"]).To(BeNumerically(">", result.FinalError))

		ref, read, err := storage.LoadPair(result.RefPath, result.ReadPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(HaveLen(400))
		Expect(read).To(HaveLen(400))
	})

	It("gives up on an unreachable remote simulator", func() {
		cfg := config.DefaultConfig()
		cfg.Port = 1
		cfg.Retries = 1
		cfg.Timeout = 20 * time.Millisecond

		_, err := r.Build(context.Background(), cfg, nil)
		Expect(err).To(HaveOccurred())
	})
})
