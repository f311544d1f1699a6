package grpcclient

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/and161185/ironkeep/internal/api"
	"github.com/and161185/ironkeep/internal/errs"
)

// fakeConn records the last call and answers with a canned response.
type fakeConn struct {
	method  string
	auth    []string
	subtype bool
	fill    func(reply any)
	err     error
}

var _ grpc.ClientConnInterface = (*fakeConn)(nil)

func (f *fakeConn) Invoke(ctx context.Context, method string, _ any, reply any, opts ...grpc.CallOption) error {
	f.method = method
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		f.auth = md.Get("authorization")
	}
	for _, o := range opts {
		if cs, ok := o.(grpc.ContentSubtypeCallOption); ok && cs.ContentSubtype == api.CodecName {
			f.subtype = true
		}
	}
	if f.err != nil {
		return f.err
	}
	if f.fill != nil {
		f.fill(reply)
	}
	return nil
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams are not used")
}

func TestInvoke_ForwardsBearerAndCodec(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{fill: func(reply any) {
		reply.(*api.GroupListResponse).Groups = []api.Group{{ID: "g1"}}
	}}
	c := New(fc)

	res, err := c.GroupList(api.WithBearer(context.Background(), "tok"), &api.Empty{})
	if err != nil {
		t.Fatalf("GroupList: %v", err)
	}
	if len(res.Groups) != 1 || res.Groups[0].ID != "g1" {
		t.Fatalf("reply not decoded: %+v", res)
	}
	if fc.method != "/ironkeep.v1.KeyService/GroupList" {
		t.Fatalf("method: %s", fc.method)
	}
	if len(fc.auth) != 1 || fc.auth[0] != "Bearer tok" {
		t.Fatalf("auth metadata: %v", fc.auth)
	}
	if !fc.subtype {
		t.Fatalf("json content-subtype not requested")
	}
}

func TestInvoke_NoBearerForIdentityCalls(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	if _, err := New(fc).UserVerify(context.Background(), &api.UserVerifyRequest{JWT: "x"}); err != nil {
		t.Fatalf("UserVerify: %v", err)
	}
	if len(fc.auth) != 0 {
		t.Fatalf("unexpected auth metadata: %v", fc.auth)
	}
}

func TestInvoke_MapsStatus(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{err: status.Error(codes.PermissionDenied, "access denied: not an admin")}
	_, err := New(fc).GroupDelete(context.Background(), &api.GroupIDRequest{ID: "g1"})
	if !errors.Is(err, errs.ErrAccessDenied) {
		t.Fatalf("want ErrAccessDenied, got %v", err)
	}
	if err.Error() != "access denied: not an admin" {
		t.Fatalf("message: %q", err.Error())
	}
}
