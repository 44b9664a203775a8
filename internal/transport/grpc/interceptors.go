package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/cwrk-planet/attendance-service/internal/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor: лог вызова, recover, и 10s deadline, если клиент его не задал.
func UnaryServerInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				err = panicked(log, info.FullMethod, r)
			}
			log.LogAttrs(ctx, levelFor(err), "grpc unary",
				slog.String("method", info.FullMethod),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()),
				logger.Err(err))
		}()

		return handler(ctx, req)
	}
}

func StreamServerInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				err = panicked(log, info.FullMethod, r)
			}
			log.LogAttrs(ss.Context(), levelFor(err), "grpc stream",
				slog.String("method", info.FullMethod),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
				slog.String("code", status.Code(err).String()),
				logger.Err(err))
		}()

		return handler(srv, ss)
	}
}

func panicked(log *slog.Logger, method string, r any) error {
	log.Error("grpc panic",
		slog.String("method", method),
		slog.Any("panic", r),
		slog.String("stack", string(debug.Stack())))
	return status.Error(codes.Internal, "internal server error")
}

// Canceled для Watch — обычное отключение клиента.
func levelFor(err error) slog.Level {
	switch status.Code(err) {
	case codes.OK, codes.Canceled:
		return slog.LevelInfo
	case codes.Internal, codes.Unavailable, codes.Unknown:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
