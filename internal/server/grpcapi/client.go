package grpcapi

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/John-Robertt/SortCode/internal/domain"
)

// Client 是 Lookup 服务的类型化客户端（供 `sortcode lookup --server` 使用）。
type Client struct {
	cc     *grpc.ClientConn
	client LookupClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout bounds the initial connect when non-zero; the dial blocks until the
	// connection is ready or the timeout expires.
	Timeout time.Duration
}

func Dial(target string, opts DialOptions) (*Client, error) {
	ctx := context.Background()
	dopts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		dopts = append(dopts, grpc.WithBlock())
	}
	cc, err := grpc.DialContext(ctx, target, dopts...)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient 包装一个已建立的连接；Close 会关闭它。
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewLookupClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Lookup 执行远程查询；pick 为空表示不做候选选择。
func (c *Client) Lookup(ctx context.Context, q domain.Query, pick string) (domain.Result, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	in, err := structpb.NewStruct(map[string]any{
		"q":    q.Raw,
		"mode": string(q.Mode),
		"ward": q.Ward,
		"pick": pick,
	})
	if err != nil {
		return domain.Result{}, err
	}
	out, err := c.client.Lookup(ctx, in)
	if err != nil {
		return domain.Result{}, err
	}
	var res domain.Result
	if err := fromStruct(out, &res); err != nil {
		return domain.Result{}, err
	}
	return res, nil
}

func (c *Client) Wards(ctx context.Context) ([]string, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	out, err := c.client.Wards(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	wards := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		wards = append(wards, v.GetStringValue())
	}
	return wards, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
