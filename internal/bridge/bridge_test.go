package bridge_test

import (
	"context"
	"errors"
	"math"
	"net"
	"strconv"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.viam.com/test"

	"github.com/san-kum/jointtorque/internal/bridge"
	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/kinematics"
	"github.com/san-kum/jointtorque/internal/logging"
	"github.com/san-kum/jointtorque/internal/scene"
)

func serveScene(t *testing.T) (*scene.Scene, int) {
	t.Helper()

	sc, err := scene.New(scene.DefaultConfig())
	test.That(t, err, test.ShouldBeNil)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Serve(ctx, lis, sc, logging.NewTest(t)) }()
	t.Cleanup(func() {
		cancel()
		test.That(t, <-done, test.ShouldBeNil)
	})

	return sc, lis.Addr().(*net.TCPAddr).Port
}

func connect(t *testing.T, port int) *bridge.Client {
	t.Helper()
	client, err := bridge.Connect(context.Background(), bridge.ConnectOptions{
		Host:    "127.0.0.1",
		Port:    port,
		Timeout: time.Second,
		Retries: 3,
		Logger:  logging.NewTest(t),
	})
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRemoteControlCycle(t *testing.T) {
	sc, port := serveScene(t)
	client := connect(t, port)
	ctx := context.Background()
	names := scene.DefaultJointNames()

	test.That(t, client.SetSynchronous(ctx, true), test.ShouldBeNil)
	test.That(t, client.StartSimulation(ctx), test.ShouldBeNil)

	q, err := client.GetJointPositions(ctx, names)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, q, test.ShouldResemble, scene.DefaultConfig().Initial)

	tau := dynamo.Vector{1, 2, 3, 4, 5, 6, 7}
	test.That(t, client.SetJointTorques(ctx, names, tau), test.ShouldBeNil)
	test.That(t, client.TriggerNextSimulationStep(ctx), test.ShouldBeNil)

	_, steps := sc.Time()
	test.That(t, steps, test.ShouldEqual, 1)

	read, err := client.GetJointTorques(ctx, names)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read, test.ShouldResemble, tau)

	qdot, err := client.GetJointVelocities(ctx, names)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, qdot[6], test.ShouldBeGreaterThan, 0)

	test.That(t, client.StopSimulation(ctx), test.ShouldBeNil)
	test.That(t, sc.Running(), test.ShouldBeFalse)
}

func TestRemoteSetters(t *testing.T) {
	_, port := serveScene(t)
	client := connect(t, port)
	ctx := context.Background()

	joint := []string{"Franka_joint3"}
	test.That(t, client.SetJointPositions(ctx, joint, dynamo.Vector{1.25}), test.ShouldBeNil)
	test.That(t, client.SetJointTargetVelocities(ctx, joint, dynamo.Vector{-0.5}), test.ShouldBeNil)

	q, err := client.GetJointPositions(ctx, joint)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, q[0], test.ShouldEqual, 1.25)

	qdot, err := client.GetJointVelocities(ctx, joint)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, qdot[0], test.ShouldEqual, -0.5)
}

func TestRemoteNonFiniteValues(t *testing.T) {
	_, port := serveScene(t)
	client := connect(t, port)
	ctx := context.Background()

	joint := []string{"Franka_joint1"}
	test.That(t, client.SetJointTorques(ctx, joint, dynamo.Vector{math.NaN()}), test.ShouldBeNil)

	read, err := client.GetJointTorques(ctx, joint)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.IsNaN(read[0]), test.ShouldBeTrue)
}

func TestRemoteObjectPose(t *testing.T) {
	sc, port := serveScene(t)
	client := connect(t, port)
	ctx := context.Background()

	panda := kinematics.NewFrankaEmikaPanda()
	pose, err := panda.Fkm(dynamo.Vector{-0.70, -0.10, 1.66, -2.34, 0.40, 1.26, 0.070})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, client.SetObjectPose(ctx, scene.DesiredFrame, pose), test.ShouldBeNil)

	local, err := sc.GetObjectPose(ctx, scene.DesiredFrame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, local.ApproxEqual(pose, 0), test.ShouldBeTrue)

	remote, err := client.GetObjectPose(ctx, scene.DesiredFrame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, remote.ApproxEqual(pose, 0), test.ShouldBeTrue)
}

func TestRemoteErrorsKeepTheirIdentity(t *testing.T) {
	_, port := serveScene(t)
	client := connect(t, port)
	ctx := context.Background()

	err := client.TriggerNextSimulationStep(ctx)
	test.That(t, errors.Is(err, bridge.ErrNotRunning), test.ShouldBeTrue)

	_, err = client.GetJointPositions(ctx, []string{"Franka_joint9"})
	test.That(t, errors.Is(err, bridge.ErrUnknownJoint), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Franka_joint9")

	_, err = client.GetObjectPose(ctx, "Nowhere")
	test.That(t, errors.Is(err, bridge.ErrUnknownObject), test.ShouldBeTrue)

	err = client.SetJointTorques(ctx, []string{"Franka_joint1"}, dynamo.Vector{1, 2})
	test.That(t, errors.Is(err, dynamo.ErrDimensionMismatch), test.ShouldBeTrue)
}

func TestClosedClient(t *testing.T) {
	_, port := serveScene(t)
	client := connect(t, port)

	test.That(t, client.Close(), test.ShouldBeNil)
	test.That(t, client.Close(), test.ShouldBeNil)

	err := client.StartSimulation(context.Background())
	test.That(t, errors.Is(err, bridge.ErrNotConnected), test.ShouldBeTrue)
}

func TestConnectGivesUp(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	port := lis.Addr().(*net.TCPAddr).Port
	test.That(t, lis.Close(), test.ShouldBeNil)

	start := time.Now()
	_, err = bridge.Connect(context.Background(), bridge.ConnectOptions{
		Host:    "127.0.0.1",
		Port:    port,
		Timeout: 50 * time.Millisecond,
		Retries: 3,
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "after 3 attempts")
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 100*time.Millisecond)
}

func TestConnectReachesLateSimulator(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	port := lis.Addr().(*net.TCPAddr).Port
	test.That(t, lis.Close(), test.ShouldBeNil)

	sc, err := scene.New(scene.DefaultConfig())
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		time.Sleep(250 * time.Millisecond)
		late, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			done <- err
			return
		}
		done <- bridge.Serve(ctx, late, sc, logging.NewTest(t))
	}()
	t.Cleanup(func() {
		cancel()
		test.That(t, <-done, test.ShouldBeNil)
	})

	client, err := bridge.Connect(context.Background(), bridge.ConnectOptions{
		Host:    "127.0.0.1",
		Port:    port,
		Timeout: 100 * time.Millisecond,
		Retries: 10,
		Logger:  logging.NewTest(t),
	})
	test.That(t, err, test.ShouldBeNil)
	defer client.Close()
	test.That(t, client.StartSimulation(context.Background()), test.ShouldBeNil)
}

func TestServeStopsOnListenerError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lis.Close(), test.ShouldBeNil)

	sc, err := scene.New(scene.DefaultConfig())
	test.That(t, err, test.ShouldBeNil)

	err = bridge.Serve(context.Background(), lis, sc, logging.NewTest(t))
	test.That(t, err, test.ShouldNotBeNil)
}
