// Package api defines the KeyService contract shared by the key server and its clients.
package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ironkeep.v1.KeyService"

// Method names, relative to ServiceName.
const (
	MethodUserVerify         = "UserVerify"
	MethodUserCreate         = "UserCreate"
	MethodUserKeys           = "UserKeys"
	MethodDeviceAdd          = "DeviceAdd"
	MethodSessionInit        = "SessionInit"
	MethodDeviceList         = "DeviceList"
	MethodDeviceDelete       = "DeviceDelete"
	MethodUserPublicKeys     = "UserPublicKeys"
	MethodGroupPublicKeys    = "GroupPublicKeys"
	MethodGroupCreate        = "GroupCreate"
	MethodGroupList          = "GroupList"
	MethodGroupGet           = "GroupGet"
	MethodGroupUpdateName    = "GroupUpdateName"
	MethodGroupDelete        = "GroupDelete"
	MethodGroupAddMembers    = "GroupAddMembers"
	MethodGroupAddAdmins     = "GroupAddAdmins"
	MethodGroupRemoveMembers = "GroupRemoveMembers"
	MethodGroupRemoveAdmins  = "GroupRemoveAdmins"
	MethodDocumentCreate     = "DocumentCreate"
	MethodDocumentList       = "DocumentList"
	MethodDocumentGet        = "DocumentGet"
	MethodDocumentKey        = "DocumentKey"
	MethodDocumentTouch      = "DocumentTouch"
	MethodDocumentUpdateName = "DocumentUpdateName"
	MethodDocumentGrant      = "DocumentGrant"
	MethodDocumentRevoke     = "DocumentRevoke"
)

// FullMethod returns "/ironkeep.v1.KeyService/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// KeyService is the backend an SDK session talks to. Identity calls carry an
// identity JWT in the request; every other call is authenticated by a device
// token, see WithBearer.
type KeyService interface {
	UserVerify(ctx context.Context, req *UserVerifyRequest) (*UserVerifyResponse, error)
	UserCreate(ctx context.Context, req *UserCreateRequest) (*User, error)
	UserKeys(ctx context.Context, req *UserKeysRequest) (*UserKeysResponse, error)
	DeviceAdd(ctx context.Context, req *DeviceAddRequest) (*DeviceAddResponse, error)

	SessionInit(ctx context.Context, req *Empty) (*SessionInitResponse, error)
	DeviceList(ctx context.Context, req *Empty) (*DeviceListResponse, error)
	DeviceDelete(ctx context.Context, req *DeviceDeleteRequest) (*DeviceDeleteResponse, error)
	UserPublicKeys(ctx context.Context, req *PublicKeysRequest) (*PublicKeysResponse, error)
	GroupPublicKeys(ctx context.Context, req *PublicKeysRequest) (*PublicKeysResponse, error)

	GroupCreate(ctx context.Context, req *GroupCreateRequest) (*Group, error)
	GroupList(ctx context.Context, req *Empty) (*GroupListResponse, error)
	GroupGet(ctx context.Context, req *GroupIDRequest) (*Group, error)
	GroupUpdateName(ctx context.Context, req *GroupUpdateNameRequest) (*Group, error)
	GroupDelete(ctx context.Context, req *GroupIDRequest) (*Empty, error)
	GroupAddMembers(ctx context.Context, req *GroupAddUsersRequest) (*AccessEditResponse, error)
	GroupAddAdmins(ctx context.Context, req *GroupAddUsersRequest) (*AccessEditResponse, error)
	GroupRemoveMembers(ctx context.Context, req *GroupRemoveUsersRequest) (*AccessEditResponse, error)
	GroupRemoveAdmins(ctx context.Context, req *GroupRemoveUsersRequest) (*AccessEditResponse, error)

	DocumentCreate(ctx context.Context, req *DocumentCreateRequest) (*DocumentCreateResponse, error)
	DocumentList(ctx context.Context, req *Empty) (*DocumentListResponse, error)
	DocumentGet(ctx context.Context, req *DocumentIDRequest) (*Document, error)
	DocumentKey(ctx context.Context, req *DocumentIDRequest) (*DocumentKeyResponse, error)
	DocumentTouch(ctx context.Context, req *DocumentIDRequest) (*Document, error)
	DocumentUpdateName(ctx context.Context, req *DocumentUpdateNameRequest) (*Document, error)
	DocumentGrant(ctx context.Context, req *DocumentGrantRequest) (*AccessEditResponse, error)
	DocumentRevoke(ctx context.Context, req *DocumentRevokeRequest) (*AccessEditResponse, error)
}

type bearerKey struct{}

// WithBearer attaches a device token to ctx. The gRPC client forwards it as
// "authorization: Bearer <token>" metadata; in-process servers read it directly.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerFromContext returns the token set by WithBearer.
func BearerFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(bearerKey{}).(string)
	return t, ok && t != ""
}

// CodecName is the gRPC content-subtype of KeyService messages.
const CodecName = "json"

// Codec marshals KeyService messages as JSON.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(Codec{})
}
