package rpc

import (
	"context"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RecoverUnary turns a panic in a unary handler into codes.Internal so one
// bad request cannot take the process down. The panic and stack are logged.
func RecoverUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("rpc: panic in handler",
					"method", info.FullMethod,
					"panic", p,
					"stack", string(debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// NewGRPCServer returns a grpc.Server with the standard interceptors and
// the assessment service registered.
func NewGRPCServer(srv AssessmentServer, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(RecoverUnary(logger)))
	s := grpc.NewServer(opts...)
	Register(s, srv)
	return s
}
