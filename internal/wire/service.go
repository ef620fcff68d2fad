package wire

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ecsign.v1.SignerService"

// SignerServiceServer is the server API for SignerService.
type SignerServiceServer interface {
	GenerateKey(context.Context, *GenerateKeyRequest) (*KeyResponse, error)
	ImportKey(context.Context, *ImportKeyRequest) (*KeyResponse, error)
	GetPublicKey(context.Context, *KeyRequest) (*GetPublicKeyResponse, error)
	ListKeys(context.Context, *ListKeysRequest) (*ListKeysResponse, error)
	RotateKey(context.Context, *KeyRequest) (*RotateKeyResponse, error)
	DeactivateKey(context.Context, *KeyRequest) (*KeyResponse, error)
	Sign(context.Context, *SignRequest) (*SignResponse, error)
	BatchSign(context.Context, *BatchSignRequest) (*BatchSignResponse, error)
	Verify(context.Context, *VerifyRequest) (*VerifyResponse, error)
	QueryAudit(context.Context, *QueryAuditRequest) (*QueryAuditResponse, error)
}

// RegisterSignerServiceServer registers srv with s.
func RegisterSignerServiceServer(s grpc.ServiceRegistrar, srv SignerServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for SignerService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SignerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GenerateKey", Handler: unary[GenerateKeyRequest]("GenerateKey", SignerServiceServer.GenerateKey)},
		{MethodName: "ImportKey", Handler: unary[ImportKeyRequest]("ImportKey", SignerServiceServer.ImportKey)},
		{MethodName: "GetPublicKey", Handler: unary[KeyRequest]("GetPublicKey", SignerServiceServer.GetPublicKey)},
		{MethodName: "ListKeys", Handler: unary[ListKeysRequest]("ListKeys", SignerServiceServer.ListKeys)},
		{MethodName: "RotateKey", Handler: unary[KeyRequest]("RotateKey", SignerServiceServer.RotateKey)},
		{MethodName: "DeactivateKey", Handler: unary[KeyRequest]("DeactivateKey", SignerServiceServer.DeactivateKey)},
		{MethodName: "Sign", Handler: unary[SignRequest]("Sign", SignerServiceServer.Sign)},
		{MethodName: "BatchSign", Handler: unary[BatchSignRequest]("BatchSign", SignerServiceServer.BatchSign)},
		{MethodName: "Verify", Handler: unary[VerifyRequest]("Verify", SignerServiceServer.Verify)},
		{MethodName: "QueryAudit", Handler: unary[QueryAuditRequest]("QueryAudit", SignerServiceServer.QueryAudit)},
	},
	Metadata: "ecsign/v1/signer.proto",
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary adapts a typed server method to grpc.MethodHandler.
func unary[Req any, PReq interface {
	*Req
	Message
}, Resp any](method string, call func(SignerServiceServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			out, err := call(srv.(SignerServiceServer), ctx, in)
			return out, err
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			out, err := call(srv.(SignerServiceServer), ctx, req.(PReq))
			return out, err
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls SignerService using Codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any, PResp interface {
	*Resp
	Message
}](ctx context.Context, cc grpc.ClientConnInterface, method string, in Message, opts []grpc.CallOption) (PResp, error) {
	out := PResp(new(Resp))
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Name)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GenerateKey(ctx context.Context, in *GenerateKeyRequest, opts ...grpc.CallOption) (*KeyResponse, error) {
	return invoke[KeyResponse](ctx, c.cc, "GenerateKey", in, opts)
}

func (c *Client) ImportKey(ctx context.Context, in *ImportKeyRequest, opts ...grpc.CallOption) (*KeyResponse, error) {
	return invoke[KeyResponse](ctx, c.cc, "ImportKey", in, opts)
}

func (c *Client) GetPublicKey(ctx context.Context, in *KeyRequest, opts ...grpc.CallOption) (*GetPublicKeyResponse, error) {
	return invoke[GetPublicKeyResponse](ctx, c.cc, "GetPublicKey", in, opts)
}

func (c *Client) ListKeys(ctx context.Context, in *ListKeysRequest, opts ...grpc.CallOption) (*ListKeysResponse, error) {
	return invoke[ListKeysResponse](ctx, c.cc, "ListKeys", in, opts)
}

func (c *Client) RotateKey(ctx context.Context, in *KeyRequest, opts ...grpc.CallOption) (*RotateKeyResponse, error) {
	return invoke[RotateKeyResponse](ctx, c.cc, "RotateKey", in, opts)
}

func (c *Client) DeactivateKey(ctx context.Context, in *KeyRequest, opts ...grpc.CallOption) (*KeyResponse, error) {
	return invoke[KeyResponse](ctx, c.cc, "DeactivateKey", in, opts)
}

func (c *Client) Sign(ctx context.Context, in *SignRequest, opts ...grpc.CallOption) (*SignResponse, error) {
	return invoke[SignResponse](ctx, c.cc, "Sign", in, opts)
}

func (c *Client) BatchSign(ctx context.Context, in *BatchSignRequest, opts ...grpc.CallOption) (*BatchSignResponse, error) {
	return invoke[BatchSignResponse](ctx, c.cc, "BatchSign", in, opts)
}

func (c *Client) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (*VerifyResponse, error) {
	return invoke[VerifyResponse](ctx, c.cc, "Verify", in, opts)
}

func (c *Client) QueryAudit(ctx context.Context, in *QueryAuditRequest, opts ...grpc.CallOption) (*QueryAuditResponse, error) {
	return invoke[QueryAuditResponse](ctx, c.cc, "QueryAudit", in, opts)
}
