// Package grpcclient implements api.KeyService over a gRPC connection.
package grpcclient

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/and161185/ironkeep/internal/api"
)

var _ api.KeyService = (*Client)(nil)

// Client is a KeyService backed by a remote key server.
type Client struct {
	cc grpc.ClientConnInterface
}

// New wraps an existing connection.
func New(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Dial connects to addr. A nil tlsCfg dials without transport security.
func Dial(addr string, tlsCfg *tls.Config, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if tlsCfg != nil {
		creds = credentials.NewTLS(tlsCfg)
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(cc), cc, nil
}

// invoke forwards the bearer set by api.WithBearer and maps status errors
// back to errs sentinels.
func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	if tok, ok := api.BearerFromContext(ctx); ok {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
	}
	out := new(Resp)
	if err := c.cc.Invoke(ctx, api.FullMethod(method), req, out, grpc.CallContentSubtype(api.CodecName)); err != nil {
		return nil, api.FromStatus(err)
	}
	return out, nil
}

func (c *Client) UserVerify(ctx context.Context, req *api.UserVerifyRequest) (*api.UserVerifyResponse, error) {
	return invoke[api.UserVerifyResponse](ctx, c, api.MethodUserVerify, req)
}

func (c *Client) UserCreate(ctx context.Context, req *api.UserCreateRequest) (*api.User, error) {
	return invoke[api.User](ctx, c, api.MethodUserCreate, req)
}

func (c *Client) UserKeys(ctx context.Context, req *api.UserKeysRequest) (*api.UserKeysResponse, error) {
	return invoke[api.UserKeysResponse](ctx, c, api.MethodUserKeys, req)
}

func (c *Client) DeviceAdd(ctx context.Context, req *api.DeviceAddRequest) (*api.DeviceAddResponse, error) {
	return invoke[api.DeviceAddResponse](ctx, c, api.MethodDeviceAdd, req)
}

func (c *Client) SessionInit(ctx context.Context, req *api.Empty) (*api.SessionInitResponse, error) {
	return invoke[api.SessionInitResponse](ctx, c, api.MethodSessionInit, req)
}

func (c *Client) DeviceList(ctx context.Context, req *api.Empty) (*api.DeviceListResponse, error) {
	return invoke[api.DeviceListResponse](ctx, c, api.MethodDeviceList, req)
}

func (c *Client) DeviceDelete(ctx context.Context, req *api.DeviceDeleteRequest) (*api.DeviceDeleteResponse, error) {
	return invoke[api.DeviceDeleteResponse](ctx, c, api.MethodDeviceDelete, req)
}

func (c *Client) UserPublicKeys(ctx context.Context, req *api.PublicKeysRequest) (*api.PublicKeysResponse, error) {
	return invoke[api.PublicKeysResponse](ctx, c, api.MethodUserPublicKeys, req)
}

func (c *Client) GroupPublicKeys(ctx context.Context, req *api.PublicKeysRequest) (*api.PublicKeysResponse, error) {
	return invoke[api.PublicKeysResponse](ctx, c, api.MethodGroupPublicKeys, req)
}

func (c *Client) GroupCreate(ctx context.Context, req *api.GroupCreateRequest) (*api.Group, error) {
	return invoke[api.Group](ctx, c, api.MethodGroupCreate, req)
}

func (c *Client) GroupList(ctx context.Context, req *api.Empty) (*api.GroupListResponse, error) {
	return invoke[api.GroupListResponse](ctx, c, api.MethodGroupList, req)
}

func (c *Client) GroupGet(ctx context.Context, req *api.GroupIDRequest) (*api.Group, error) {
	return invoke[api.Group](ctx, c, api.MethodGroupGet, req)
}

func (c *Client) GroupUpdateName(ctx context.Context, req *api.GroupUpdateNameRequest) (*api.Group, error) {
	return invoke[api.Group](ctx, c, api.MethodGroupUpdateName, req)
}

func (c *Client) GroupDelete(ctx context.Context, req *api.GroupIDRequest) (*api.Empty, error) {
	return invoke[api.Empty](ctx, c, api.MethodGroupDelete, req)
}

func (c *Client) GroupAddMembers(ctx context.Context, req *api.GroupAddUsersRequest) (*api.AccessEditResponse, error) {
	return invoke[api.AccessEditResponse](ctx, c, api.MethodGroupAddMembers, req)
}

func (c *Client) GroupAddAdmins(ctx context.Context, req *api.GroupAddUsersRequest) (*api.AccessEditResponse, error) {
	return invoke[api.AccessEditResponse](ctx, c, api.MethodGroupAddAdmins, req)
}

func (c *Client) GroupRemoveMembers(ctx context.Context, req *api.GroupRemoveUsersRequest) (*api.AccessEditResponse, error) {
	return invoke[api.AccessEditResponse](ctx, c, api.MethodGroupRemoveMembers, req)
}

func (c *Client) GroupRemoveAdmins(ctx context.Context, req *api.GroupRemoveUsersRequest) (*api.AccessEditResponse, error) {
	return invoke[api.AccessEditResponse](ctx, c, api.MethodGroupRemoveAdmins, req)
}

func (c *Client) DocumentCreate(ctx context.Context, req *api.DocumentCreateRequest) (*api.DocumentCreateResponse, error) {
	return invoke[api.DocumentCreateResponse](ctx, c, api.MethodDocumentCreate, req)
}

func (c *Client) DocumentList(ctx context.Context, req *api.Empty) (*api.DocumentListResponse, error) {
	return invoke[api.DocumentListResponse](ctx, c, api.MethodDocumentList, req)
}

func (c *Client) DocumentGet(ctx context.Context, req *api.DocumentIDRequest) (*api.Document, error) {
	return invoke[api.Document](ctx, c, api.MethodDocumentGet, req)
}

func (c *Client) DocumentKey(ctx context.Context, req *api.DocumentIDRequest) (*api.DocumentKeyResponse, error) {
	return invoke[api.DocumentKeyResponse](ctx, c, api.MethodDocumentKey, req)
}

func (c *Client) DocumentTouch(ctx context.Context, req *api.DocumentIDRequest) (*api.Document, error) {
	return invoke[api.Document](ctx, c, api.MethodDocumentTouch, req)
}

func (c *Client) DocumentUpdateName(ctx context.Context, req *api.DocumentUpdateNameRequest) (*api.Document, error) {
	return invoke[api.Document](ctx, c, api.MethodDocumentUpdateName, req)
}

func (c *Client) DocumentGrant(ctx context.Context, req *api.DocumentGrantRequest) (*api.AccessEditResponse, error) {
	return invoke[api.AccessEditResponse](ctx, c, api.MethodDocumentGrant, req)
}

func (c *Client) DocumentRevoke(ctx context.Context, req *api.DocumentRevokeRequest) (*api.AccessEditResponse, error) {
	return invoke[api.AccessEditResponse](ctx, c, api.MethodDocumentRevoke, req)
}
