package grpcserver

import (
	"context"
	"path"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/ironkeep/internal/service"
)

// callInfo is filled in by AuthUnary so that outer interceptors can report
// which device made the call.
type callInfo struct {
	principal service.Principal
	authed    bool
}

type callInfoKey struct{}

func withCallInfo(ctx context.Context) (context.Context, *callInfo) {
	ci := &callInfo{}
	return context.WithValue(ctx, callInfoKey{}, ci), ci
}

func noteCaller(ctx context.Context, p service.Principal) {
	if ci, ok := ctx.Value(callInfoKey{}).(*callInfo); ok {
		ci.principal, ci.authed = p, true
	}
}

func (ci *callInfo) fields() []zap.Field {
	if ci == nil || !ci.authed {
		return []zap.Field{zap.String("account", "")}
	}
	return []zap.Field{
		zap.String("account", ci.principal.AccountID),
		zap.Int64("segment", ci.principal.SegmentID),
		zap.Int64("device", ci.principal.DeviceID),
	}
}

// levelFor logs denials at warn and server faults at error.
func levelFor(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK, codes.NotFound, codes.AlreadyExists, codes.InvalidArgument:
		return zapcore.InfoLevel
	case codes.Unauthenticated, codes.PermissionDenied, codes.ResourceExhausted:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// LoggingUnary logs one line per call: operation, status, caller device and peer host.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx, ci := withCallInfo(ctx)
		resp, err := next(ctx, req)
		code := status.Code(err)

		// metadata only, never payloads: requests carry wrapped keys
		fields := append([]zap.Field{
			zap.String("op", path.Base(info.FullMethod)),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remoteIP(ctx)),
			zap.Bool("identity", identityMethods[info.FullMethod]),
		}, ci.fields()...)
		if ce := log.Check(levelFor(code), "call"); ce != nil {
			ce.Write(fields...)
		}
		return resp, err
	}
}

// RecoverUnary turns handler panics into codes.Internal.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("op", path.Base(info.FullMethod)),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// AuthUnary authenticates device tokens before the handler runs. Identity
// calls pass through; their JWT travels in the request body.
func AuthUnary(s *Server) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if identityMethods[info.FullMethod] {
			return next(ctx, req)
		}
		p, err := s.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		noteCaller(ctx, p)
		return next(WithPrincipal(ctx, p), req)
	}
}
