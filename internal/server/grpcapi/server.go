// Package grpcapi 通过 gRPC 暴露与 HTTP 相同的只读查询能力。
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/lookup"
	"github.com/John-Robertt/SortCode/internal/metrics"
)

// Server exposes a lookup.Engine over the Lookup gRPC service.
type Server struct {
	UnimplementedLookupServer
	Engine  *lookup.Engine
	Metrics *metrics.Metrics
}

func (s *Server) Lookup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	_ = ctx
	if s == nil || s.Engine == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing engine")
	}
	start := time.Now()
	f := in.GetFields()

	mode, err := domain.ParseMode(f["mode"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ward := strings.TrimSpace(f["ward"].GetStringValue())
	if ward != "" {
		if err := s.Engine.CheckWard(ward); errors.Is(err, lookup.ErrUnknownWard) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	res := s.Engine.Match(domain.Query{Raw: f["q"].GetStringValue(), Mode: mode, Ward: ward})
	if pick := strings.TrimSpace(f["pick"].GetStringValue()); pick != "" {
		if res, err = res.Pick(pick); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	s.Metrics.ObserveLookup("grpc", res, start)

	if res.Problem == domain.ErrCodeNotReady || res.Problem == domain.ErrCodeDatasetLoadFailed {
		return nil, status.Error(codes.Unavailable, res.Problem+": "+res.Message)
	}
	return toStruct(res)
}

func (s *Server) Wards(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	_ = ctx
	if s == nil || s.Engine == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing engine")
	}
	wards := s.Engine.Wards()
	vals := make([]any, len(wards))
	for i, w := range wards {
		vals[i] = w
	}
	lv, err := structpb.NewList(vals)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return lv, nil
}

func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	_ = ctx
	if s == nil || s.Engine == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing engine")
	}
	return toStruct(s.Engine.Status())
}

// toStruct 经 JSON 转为 Struct，保证与 HTTP 输出字段一致。
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// Serve 在 ln 上运行 gRPC 服务，直到 ctx 结束后优雅关闭。
func Serve(ctx context.Context, ln net.Listener, srv *Server, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	gs := grpc.NewServer()
	RegisterLookupServer(gs, srv)

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Serve(ln) }()
	logger.Info("gRPC 服务已启动", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	gs.GracefulStop()
	<-errCh
	logger.Info("gRPC 服务已停止")
	return nil
}

// ListenAndServe 监听 addr 并调用 Serve。
func ListenAndServe(ctx context.Context, addr string, srv *Server, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, srv, logger)
}
