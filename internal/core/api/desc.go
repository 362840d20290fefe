package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dialectc.v1.Translator"

// TranslatorServer is the server API for the Translator service.
type TranslatorServer interface {
	Translate(context.Context, *TranslateRequest) (*TranslateResponse, error)
	Fix(context.Context, *FixRequest) (*FixResponse, error)
	ListRules(context.Context, *ListRulesRequest) (*ListRulesResponse, error)
	UpsertRules(context.Context, *UpsertRulesRequest) (*UpsertRulesResponse, error)
}

// TranslatorServiceDesc describes the Translator service for grpc.Server.RegisterService.
var TranslatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranslatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Translate", Handler: unary("Translate", TranslatorServer.Translate)},
		{MethodName: "Fix", Handler: unary("Fix", TranslatorServer.Fix)},
		{MethodName: "ListRules", Handler: unary("ListRules", TranslatorServer.ListRules)},
		{MethodName: "UpsertRules", Handler: unary("UpsertRules", TranslatorServer.UpsertRules)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dialectc/v1/translator",
}

// RegisterTranslatorServer registers srv on s.
func RegisterTranslatorServer(s grpc.ServiceRegistrar, srv TranslatorServer) {
	s.RegisterService(&TranslatorServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(TranslatorServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TranslatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TranslatorServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client is the client API for the Translator service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection. Calls use the JSON codec.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Translate(ctx context.Context, in *TranslateRequest, opts ...grpc.CallOption) (*TranslateResponse, error) {
	out := new(TranslateResponse)
	if err := c.invoke(ctx, "Translate", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Fix(ctx context.Context, in *FixRequest, opts ...grpc.CallOption) (*FixResponse, error) {
	out := new(FixResponse)
	if err := c.invoke(ctx, "Fix", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListRules(ctx context.Context, in *ListRulesRequest, opts ...grpc.CallOption) (*ListRulesResponse, error) {
	out := new(ListRulesResponse)
	if err := c.invoke(ctx, "ListRules", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpsertRules(ctx context.Context, in *UpsertRulesRequest, opts ...grpc.CallOption) (*UpsertRulesResponse, error) {
	out := new(UpsertRulesResponse)
	if err := c.invoke(ctx, "UpsertRules", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}
