package bridge

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Serve exposes sim over gRPC on lis until ctx is done.
func Serve(ctx context.Context, lis net.Listener, sim Simulator, logger *zap.SugaredLogger) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(logCalls(logger)))
	srv.RegisterService(serviceDesc(), sim)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			srv.GracefulStop()
		case <-stopped:
		}
	}()

	logger.Infow("bridge listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil {
		srv.Stop()
		return err
	}
	logger.Info("bridge stopped")
	return nil
}

func logCalls(logger *zap.SugaredLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Debugw("bridge call failed", "method", info.FullMethod, "error", err)
		} else {
			logger.Debugw("bridge call", "method", info.FullMethod, "took", time.Since(start))
		}
		return resp, err
	}
}
