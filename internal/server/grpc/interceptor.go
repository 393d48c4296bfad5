package grpc

import (
	"context"
	"path"
	"time"

	"github.com/dmitrijs2005/booksync/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const deviceIDKey ctxKey = "deviceID"

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) > 0 {
		return values[0]
	}
	return ""
}

// credentialsInterceptor resolves the calling device for every method except
// the public ones and stores its id in the context.
func (s *GRPCServer) credentialsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var deviceID, secret string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		deviceID = firstValue(md, common.DeviceIDHeaderName)
		secret = firstValue(md, common.DeviceSecretHeaderName)
	}
	if deviceID == "" || secret == "" {
		return nil, common.ErrMissingCredentials
	}

	device, err := s.svc.Gate.Authenticate(ctx, deviceID, secret)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, deviceIDKey, device.ID)

	return handler(ctx, req)
}

// statusInterceptor turns service errors into gRPC statuses. Errors outside
// the API contract are logged and reported as Internal.
func (s *GRPCServer) statusInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}

	st, known := toStatus(err)
	if !known {
		s.logger.Error(ctx, "request failed", "method", info.FullMethod, "error", err.Error())
	}
	return nil, st.Err()
}

// observeInterceptor logs every call and records its latency.
func (s *GRPCServer) observeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	start := time.Now()
	resp, err := handler(ctx, req)
	elapsed := time.Since(start)

	code := status.Code(err)
	method := path.Base(info.FullMethod)

	var deviceID string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		deviceID = firstValue(md, common.DeviceIDHeaderName)
	}

	s.metrics.ObserveRPC(method, code.String(), elapsed)
	s.logger.Info(ctx, "rpc", "method", method, "device", deviceID, "code", code.String(), "elapsed", elapsed.String())

	return resp, err
}

// deviceFromContext returns the id stored by credentialsInterceptor.
func deviceFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(deviceIDKey).(string)
	if !ok || id == "" {
		return "", common.ErrMissingCredentials
	}
	return id, nil
}
