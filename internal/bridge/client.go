package bridge

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/kinematics"
)

type ConnectOptions struct {
	Host string
	Port int
	// Timeout bounds each connection attempt.
	Timeout time.Duration
	// Retries is the number of attempts before giving up.
	Retries int
	Logger  *zap.SugaredLogger
}

// Client is a Simulator reached over the bridge.
type Client struct {
	conn   *grpc.ClientConn
	closed atomic.Bool
}

var _ Simulator = (*Client)(nil)

// Connect dials the bridge and pings it up to opts.Retries times. Each
// attempt redials and takes at least opts.Timeout, so a simulator that comes
// up within Retries·Timeout is reached.
func Connect(ctx context.Context, opts ConnectOptions) (*Client, error) {
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	target := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", target, err)
	}
	c := &Client{conn: conn}

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		start := time.Now()
		if attempt > 1 {
			// Skip grpc's reconnect backoff so every attempt dials again.
			c.conn.ResetConnectBackoff()
		}
		pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		lastErr = c.conn.Invoke(pingCtx, fullMethod(methodPing), &Request{}, &Reply{}, grpc.WaitForReady(true))
		cancel()
		if lastErr == nil {
			logger.Infow("connected to simulator", "target", target, "attempt", attempt)
			return c, nil
		}
		logger.Debugw("connect attempt failed", "target", target, "attempt", attempt, "error", lastErr)

		if wait := opts.Timeout - time.Since(start); wait > 0 && attempt < opts.Retries {
			select {
			case <-ctx.Done():
				conn.Close()
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	conn.Close()
	return nil, fmt.Errorf("bridge: no simulator at %s after %d attempts: %w", target, opts.Retries, lastErr)
}

func (c *Client) call(ctx context.Context, method string, req *Request) (*Reply, error) {
	if c.closed.Load() {
		return nil, ErrNotConnected
	}
	reply := new(Reply)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, reply); err != nil {
		return nil, fromStatus(err)
	}
	return reply, nil
}

func (c *Client) values(ctx context.Context, method string, names []string) (dynamo.Vector, error) {
	reply, err := c.call(ctx, method, &Request{Names: names})
	if err != nil {
		return nil, err
	}
	if err := dynamo.CheckDim(method, reply.Values, len(names)); err != nil {
		return nil, err
	}
	return dynamo.Vector(reply.Values), nil
}

func (c *Client) SetSynchronous(ctx context.Context, enabled bool) error {
	_, err := c.call(ctx, methodSetSynchronous, &Request{Enabled: enabled})
	return err
}

func (c *Client) StartSimulation(ctx context.Context) error {
	_, err := c.call(ctx, methodStartSimulation, &Request{})
	return err
}

func (c *Client) StopSimulation(ctx context.Context) error {
	_, err := c.call(ctx, methodStopSimulation, &Request{})
	return err
}

func (c *Client) TriggerNextSimulationStep(ctx context.Context) error {
	_, err := c.call(ctx, methodTriggerNextSimulationStep, &Request{})
	return err
}

func (c *Client) GetJointPositions(ctx context.Context, names []string) (dynamo.Vector, error) {
	return c.values(ctx, methodGetJointPositions, names)
}

func (c *Client) GetJointVelocities(ctx context.Context, names []string) (dynamo.Vector, error) {
	return c.values(ctx, methodGetJointVelocities, names)
}

func (c *Client) GetJointTorques(ctx context.Context, names []string) (dynamo.Vector, error) {
	return c.values(ctx, methodGetJointTorques, names)
}

func (c *Client) SetJointPositions(ctx context.Context, names []string, q dynamo.Vector) error {
	_, err := c.call(ctx, methodSetJointPositions, &Request{Names: names, Values: q})
	return err
}

func (c *Client) SetJointTargetVelocities(ctx context.Context, names []string, qdot dynamo.Vector) error {
	_, err := c.call(ctx, methodSetJointTargetVelocities, &Request{Names: names, Values: qdot})
	return err
}

func (c *Client) SetJointTorques(ctx context.Context, names []string, tau dynamo.Vector) error {
	_, err := c.call(ctx, methodSetJointTorques, &Request{Names: names, Values: tau})
	return err
}

func (c *Client) SetObjectPose(ctx context.Context, name string, pose kinematics.Pose) error {
	_, err := c.call(ctx, methodSetObjectPose, &Request{Object: name, Pose: pose.Vec8()})
	return err
}

func (c *Client) GetObjectPose(ctx context.Context, name string) (kinematics.Pose, error) {
	reply, err := c.call(ctx, methodGetObjectPose, &Request{Object: name})
	if err != nil {
		return kinematics.Pose{}, err
	}
	return kinematics.PoseFromVec8(reply.Pose)
}

// Close disconnects. Later calls return ErrNotConnected.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
