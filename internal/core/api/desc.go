package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "zipscope.v1.SelectionService"

// SelectionServiceServer is the server API for SelectionService.
type SelectionServiceServer interface {
	CreateSession(context.Context, *CreateSessionRequest) (*CreateSessionResponse, error)
	CloseSession(context.Context, *SessionRequest) (*Empty, error)
	ListRoots(context.Context, *SessionRequest) (*NodesResponse, error)
	LoadChildren(context.Context, *NodeRequest) (*NodesResponse, error)
	Toggle(context.Context, *NodeRequest) (*ToggleResponse, error)
	BulkSelect(*BulkSelectRequest, SelectionService_BulkSelectServer) error
	ClearAll(context.Context, *SessionRequest) (*SelectionResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	GenerateRules(context.Context, *SessionRequest) (*GenerateRulesResponse, error)
	EstimateZips(context.Context, *SessionRequest) (*EstimateZipsResponse, error)
	SubmitTask(context.Context, *SubmitTaskRequest) (*TaskResponse, error)
	GetTask(context.Context, *GetTaskRequest) (*TaskResponse, error)
	ListTasks(context.Context, *ListTasksRequest) (*ListTasksResponse, error)
	UpdateTaskStatus(context.Context, *UpdateTaskStatusRequest) (*TaskResponse, error)
}

// SelectionService_BulkSelectServer streams bulk selection progress.
type SelectionService_BulkSelectServer interface {
	Send(*BulkSelectProgress) error
	grpc.ServerStream
}

type bulkSelectServer struct {
	grpc.ServerStream
}

func (x *bulkSelectServer) Send(m *BulkSelectProgress) error {
	return x.ServerStream.SendMsg(m)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryMethod adapts a typed server method to a grpc.MethodDesc.
func unaryMethod[Req, Resp any](name string, call func(SelectionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SelectionServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SelectionServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func bulkSelectHandler(srv any, stream grpc.ServerStream) error {
	m := new(BulkSelectRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SelectionServiceServer).BulkSelect(m, &bulkSelectServer{stream})
}

// SelectionService_ServiceDesc describes SelectionService for grpc.Server.
var SelectionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SelectionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateSession", SelectionServiceServer.CreateSession),
		unaryMethod("CloseSession", SelectionServiceServer.CloseSession),
		unaryMethod("ListRoots", SelectionServiceServer.ListRoots),
		unaryMethod("LoadChildren", SelectionServiceServer.LoadChildren),
		unaryMethod("Toggle", SelectionServiceServer.Toggle),
		unaryMethod("ClearAll", SelectionServiceServer.ClearAll),
		unaryMethod("Search", SelectionServiceServer.Search),
		unaryMethod("GenerateRules", SelectionServiceServer.GenerateRules),
		unaryMethod("EstimateZips", SelectionServiceServer.EstimateZips),
		unaryMethod("SubmitTask", SelectionServiceServer.SubmitTask),
		unaryMethod("GetTask", SelectionServiceServer.GetTask),
		unaryMethod("ListTasks", SelectionServiceServer.ListTasks),
		unaryMethod("UpdateTaskStatus", SelectionServiceServer.UpdateTaskStatus),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "BulkSelect",
			Handler:       bulkSelectHandler,
			ServerStreams: true,
		},
	},
	Metadata: "zipscope/v1/selection",
}

// RegisterSelectionServiceServer registers srv on s.
func RegisterSelectionServiceServer(s grpc.ServiceRegistrar, srv SelectionServiceServer) {
	s.RegisterService(&SelectionService_ServiceDesc, srv)
}

// Client calls SelectionService using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateSession(ctx context.Context, in *CreateSessionRequest, opts ...grpc.CallOption) (*CreateSessionResponse, error) {
	return invoke[CreateSessionResponse](ctx, c, "CreateSession", in, opts)
}

func (c *Client) CloseSession(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "CloseSession", in, opts)
}

func (c *Client) ListRoots(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*NodesResponse, error) {
	return invoke[NodesResponse](ctx, c, "ListRoots", in, opts)
}

func (c *Client) LoadChildren(ctx context.Context, in *NodeRequest, opts ...grpc.CallOption) (*NodesResponse, error) {
	return invoke[NodesResponse](ctx, c, "LoadChildren", in, opts)
}

func (c *Client) Toggle(ctx context.Context, in *NodeRequest, opts ...grpc.CallOption) (*ToggleResponse, error) {
	return invoke[ToggleResponse](ctx, c, "Toggle", in, opts)
}

func (c *Client) ClearAll(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*SelectionResponse, error) {
	return invoke[SelectionResponse](ctx, c, "ClearAll", in, opts)
}

func (c *Client) Search(ctx context.Context, in *SearchRequest, opts ...grpc.CallOption) (*SearchResponse, error) {
	return invoke[SearchResponse](ctx, c, "Search", in, opts)
}

func (c *Client) GenerateRules(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*GenerateRulesResponse, error) {
	return invoke[GenerateRulesResponse](ctx, c, "GenerateRules", in, opts)
}

func (c *Client) EstimateZips(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*EstimateZipsResponse, error) {
	return invoke[EstimateZipsResponse](ctx, c, "EstimateZips", in, opts)
}

func (c *Client) SubmitTask(ctx context.Context, in *SubmitTaskRequest, opts ...grpc.CallOption) (*TaskResponse, error) {
	return invoke[TaskResponse](ctx, c, "SubmitTask", in, opts)
}

func (c *Client) GetTask(ctx context.Context, in *GetTaskRequest, opts ...grpc.CallOption) (*TaskResponse, error) {
	return invoke[TaskResponse](ctx, c, "GetTask", in, opts)
}

func (c *Client) ListTasks(ctx context.Context, in *ListTasksRequest, opts ...grpc.CallOption) (*ListTasksResponse, error) {
	return invoke[ListTasksResponse](ctx, c, "ListTasks", in, opts)
}

func (c *Client) UpdateTaskStatus(ctx context.Context, in *UpdateTaskStatusRequest, opts ...grpc.CallOption) (*TaskResponse, error) {
	return invoke[TaskResponse](ctx, c, "UpdateTaskStatus", in, opts)
}

// BulkSelectClient receives bulk selection progress.
type BulkSelectClient struct {
	grpc.ClientStream
}

// Recv returns the next progress message, or io.EOF after the last one.
func (x *BulkSelectClient) Recv() (*BulkSelectProgress, error) {
	m := new(BulkSelectProgress)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Client) BulkSelect(ctx context.Context, in *BulkSelectRequest, opts ...grpc.CallOption) (*BulkSelectClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &SelectionService_ServiceDesc.Streams[0], fullMethod("BulkSelect"), opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &BulkSelectClient{ClientStream: stream}, nil
}
