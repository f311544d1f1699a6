package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"github.com/and161185/ironkeep/internal/api"
)

// unary adapts a KeyService method to a grpc.MethodDesc.
func unary[Req, Resp any](method string, call func(api.KeyService, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			ks := srv.(api.KeyService)
			if ic == nil {
				return call(ks, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.FullMethod(method)}
			return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(ks, ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes KeyService for grpc.Server. Messages use api.Codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*api.KeyService)(nil),
	Methods: []grpc.MethodDesc{
		unary(api.MethodUserVerify, api.KeyService.UserVerify),
		unary(api.MethodUserCreate, api.KeyService.UserCreate),
		unary(api.MethodUserKeys, api.KeyService.UserKeys),
		unary(api.MethodDeviceAdd, api.KeyService.DeviceAdd),
		unary(api.MethodSessionInit, api.KeyService.SessionInit),
		unary(api.MethodDeviceList, api.KeyService.DeviceList),
		unary(api.MethodDeviceDelete, api.KeyService.DeviceDelete),
		unary(api.MethodUserPublicKeys, api.KeyService.UserPublicKeys),
		unary(api.MethodGroupPublicKeys, api.KeyService.GroupPublicKeys),
		unary(api.MethodGroupCreate, api.KeyService.GroupCreate),
		unary(api.MethodGroupList, api.KeyService.GroupList),
		unary(api.MethodGroupGet, api.KeyService.GroupGet),
		unary(api.MethodGroupUpdateName, api.KeyService.GroupUpdateName),
		unary(api.MethodGroupDelete, api.KeyService.GroupDelete),
		unary(api.MethodGroupAddMembers, api.KeyService.GroupAddMembers),
		unary(api.MethodGroupAddAdmins, api.KeyService.GroupAddAdmins),
		unary(api.MethodGroupRemoveMembers, api.KeyService.GroupRemoveMembers),
		unary(api.MethodGroupRemoveAdmins, api.KeyService.GroupRemoveAdmins),
		unary(api.MethodDocumentCreate, api.KeyService.DocumentCreate),
		unary(api.MethodDocumentList, api.KeyService.DocumentList),
		unary(api.MethodDocumentGet, api.KeyService.DocumentGet),
		unary(api.MethodDocumentKey, api.KeyService.DocumentKey),
		unary(api.MethodDocumentTouch, api.KeyService.DocumentTouch),
		unary(api.MethodDocumentUpdateName, api.KeyService.DocumentUpdateName),
		unary(api.MethodDocumentGrant, api.KeyService.DocumentGrant),
		unary(api.MethodDocumentRevoke, api.KeyService.DocumentRevoke),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ironkeep/v1/keyservice",
}

// Register attaches srv to a gRPC server.
func Register(r grpc.ServiceRegistrar, srv api.KeyService) {
	r.RegisterService(&ServiceDesc, srv)
}

// identityMethods carry an identity JWT instead of a device token.
var identityMethods = map[string]bool{
	api.FullMethod(api.MethodUserVerify): true,
	api.FullMethod(api.MethodUserCreate): true,
	api.FullMethod(api.MethodUserKeys):   true,
	api.FullMethod(api.MethodDeviceAdd):  true,
}
