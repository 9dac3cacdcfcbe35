package bridge

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/kinematics"
)

const serviceName = "jointtorque.bridge.v1.SimBridge"

// Request carries the arguments of every bridge method; unused fields stay empty.
type Request struct {
	Names   []string
	Values  []float64
	Object  string
	Pose    []float64
	Enabled bool
}

type Reply struct {
	Values []float64
	Pose   []float64
}

const (
	methodPing                      = "Ping"
	methodSetSynchronous            = "SetSynchronous"
	methodStartSimulation           = "StartSimulation"
	methodStopSimulation            = "StopSimulation"
	methodTriggerNextSimulationStep = "TriggerNextSimulationStep"
	methodGetJointPositions         = "GetJointPositions"
	methodGetJointVelocities        = "GetJointVelocities"
	methodGetJointTorques           = "GetJointTorques"
	methodSetJointPositions         = "SetJointPositions"
	methodSetJointTargetVelocities  = "SetJointTargetVelocities"
	methodSetJointTorques           = "SetJointTorques"
	methodSetObjectPose             = "SetObjectPose"
	methodGetObjectPose             = "GetObjectPose"
)

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

type handlerFunc func(ctx context.Context, sim Simulator, req *Request) (*Reply, error)

func empty(err error) (*Reply, error) {
	if err != nil {
		return nil, err
	}
	return &Reply{}, nil
}

func values(v dynamo.Vector, err error) (*Reply, error) {
	if err != nil {
		return nil, err
	}
	return &Reply{Values: v}, nil
}

var handlers = map[string]handlerFunc{
	methodPing: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return &Reply{}, nil
	},
	methodSetSynchronous: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return empty(sim.SetSynchronous(ctx, req.Enabled))
	},
	methodStartSimulation: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return empty(sim.StartSimulation(ctx))
	},
	methodStopSimulation: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return empty(sim.StopSimulation(ctx))
	},
	methodTriggerNextSimulationStep: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return empty(sim.TriggerNextSimulationStep(ctx))
	},
	methodGetJointPositions: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return values(sim.GetJointPositions(ctx, req.Names))
	},
	methodGetJointVelocities: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return values(sim.GetJointVelocities(ctx, req.Names))
	},
	methodGetJointTorques: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return values(sim.GetJointTorques(ctx, req.Names))
	},
	methodSetJointPositions: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return empty(sim.SetJointPositions(ctx, req.Names, req.Values))
	},
	methodSetJointTargetVelocities: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return empty(sim.SetJointTargetVelocities(ctx, req.Names, req.Values))
	},
	methodSetJointTorques: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		return empty(sim.SetJointTorques(ctx, req.Names, req.Values))
	},
	methodSetObjectPose: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		pose, err := kinematics.PoseFromVec8(req.Pose)
		if err != nil {
			return nil, err
		}
		return empty(sim.SetObjectPose(ctx, req.Object, pose))
	},
	methodGetObjectPose: func(ctx context.Context, sim Simulator, req *Request) (*Reply, error) {
		pose, err := sim.GetObjectPose(ctx, req.Object)
		if err != nil {
			return nil, err
		}
		return &Reply{Pose: pose.Vec8()}, nil
	},
}

func methodHandler(name string, fn handlerFunc) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Request)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, req any) (any, error) {
			reply, err := fn(ctx, srv.(Simulator), req.(*Request))
			if err != nil {
				return nil, toStatus(err)
			}
			return reply, nil
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		return interceptor(ctx, in, info, call)
	}
}

func serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*Simulator)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "bridge/service.go",
	}
	for name, fn := range handlers {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    methodHandler(name, fn),
		})
	}
	return desc
}

var remoteErrors = []struct {
	err  error
	code codes.Code
}{
	{ErrUnknownJoint, codes.NotFound},
	{ErrUnknownObject, codes.NotFound},
	{ErrNotRunning, codes.FailedPrecondition},
	{ErrNotSynchronous, codes.FailedPrecondition},
	{dynamo.ErrDimensionMismatch, codes.InvalidArgument},
	{kinematics.ErrDimension, codes.InvalidArgument},
}

func toStatus(err error) error {
	for _, re := range remoteErrors {
		if errors.Is(err, re.err) {
			return status.Error(re.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// RemoteError is a simulator error received over the wire. It unwraps to
// the matching sentinel so errors.Is works the same locally and remotely.
type RemoteError struct {
	Code     codes.Code
	Message  string
	sentinel error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.sentinel
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	re := &RemoteError{Code: st.Code(), Message: st.Message()}
	for _, known := range remoteErrors {
		if known.code == st.Code() && strings.Contains(st.Message(), known.err.Error()) {
			re.sentinel = known.err
			break
		}
	}
	return re
}
