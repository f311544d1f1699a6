package grpcserver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/and161185/ironkeep/internal/api"
	pkgcrypto "github.com/and161185/ironkeep/internal/crypto"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/limiter"
	"github.com/and161185/ironkeep/internal/repository/memory"
	"github.com/and161185/ironkeep/internal/service"
)

const bufSize = 1 << 20

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := memory.New()
	users := service.NewUserService(st.Users(), st.Devices(), limiter.NewMemory(limiter.Settings{}),
		service.IdentityConfig{DefaultSegment: 1, Leeway: time.Second})
	return New(users, service.NewGroupService(st.Groups()),
		service.NewDocumentService(st.Documents(), st.Groups(), st.Users()), zaptest.NewLogger(t))
}

func startBufGRPC(t *testing.T, srv *Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(srv.log),
		LoggingUnary(srv.log),
		AuthUnary(srv),
	))
	Register(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	return cc
}

/************ helpers ************/
func identityFor(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub, "iat": time.Now().Unix(), "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func bytes32(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

// enroll creates sub with one device and returns that device's token.
func enroll(t *testing.T, cc *grpc.ClientConn, sub string) string {
	t.Helper()
	ctx := context.Background()
	idt := identityFor(t, sub)

	var u api.User
	require.NoError(t, cc.Invoke(ctx, api.FullMethod(api.MethodUserCreate),
		&api.UserCreateRequest{JWT: idt, PublicKey: bytes32(1), EncryptedPrivateKey: []byte("enc")}, &u))
	require.Equal(t, sub, u.AccountID)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	var added api.DeviceAddResponse
	require.NoError(t, cc.Invoke(ctx, api.FullMethod(api.MethodDeviceAdd),
		&api.DeviceAddRequest{JWT: idt, SigningPublicKey: pub, PublicKey: bytes32(2), WrappedUserKey: []byte("w")}, &added))
	require.Positive(t, added.Device.ID)

	tok, err := pkgcrypto.IssueDeviceToken(sub, added.SegmentID, priv, time.Now())
	require.NoError(t, err)
	return tok
}

func authed(tok string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

/************ tests ************/

func TestServer_IdentityAndSession(t *testing.T) {
	t.Parallel()
	cc := startBufGRPC(t, newTestServer(t))

	var v api.UserVerifyResponse
	require.NoError(t, cc.Invoke(context.Background(), api.FullMethod(api.MethodUserVerify),
		&api.UserVerifyRequest{JWT: identityFor(t, "alice")}, &v))
	require.Nil(t, v.User)

	tok := enroll(t, cc, "alice")

	var sess api.SessionInitResponse
	require.NoError(t, cc.Invoke(authed(tok), api.FullMethod(api.MethodSessionInit), &api.Empty{}, &sess))
	require.Equal(t, "alice", sess.AccountID)
	require.Equal(t, []byte("w"), sess.WrappedUserKey)

	var devs api.DeviceListResponse
	require.NoError(t, cc.Invoke(authed(tok), api.FullMethod(api.MethodDeviceList), &api.Empty{}, &devs))
	require.Len(t, devs.Devices, 1)
	require.True(t, devs.Devices[0].IsCurrent)
}

func TestServer_RejectsMissingOrBadToken(t *testing.T) {
	t.Parallel()
	cc := startBufGRPC(t, newTestServer(t))

	err := cc.Invoke(context.Background(), api.FullMethod(api.MethodGroupList), &api.Empty{}, &api.GroupListResponse{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	err = cc.Invoke(authed("garbage"), api.FullMethod(api.MethodGroupList), &api.Empty{}, &api.GroupListResponse{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	require.ErrorIs(t, api.FromStatus(err), errs.ErrUnauthorized)

	err = cc.Invoke(context.Background(), api.FullMethod(api.MethodUserKeys),
		&api.UserKeysRequest{JWT: identityFor(t, "nobody")}, &api.UserKeysResponse{})
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_GroupsAndDocuments(t *testing.T) {
	t.Parallel()
	cc := startBufGRPC(t, newTestServer(t))
	alice := enroll(t, cc, "alice")
	bob := enroll(t, cc, "bob")

	var g api.Group
	require.NoError(t, cc.Invoke(authed(alice), api.FullMethod(api.MethodGroupCreate), &api.GroupCreateRequest{
		ID: "team", Owner: "alice", PublicKey: bytes32(3),
		Users: []api.GroupUser{{AccountID: "alice", IsAdmin: true, IsMember: true, WrappedKey: []byte("ka")}},
	}, &g))
	require.True(t, g.IsAdmin)
	require.Equal(t, []byte("ka"), g.EncryptedKey)

	var edit api.AccessEditResponse
	require.NoError(t, cc.Invoke(authed(alice), api.FullMethod(api.MethodGroupAddMembers), &api.GroupAddUsersRequest{
		GroupID: "team", Keys: map[string][]byte{"bob": []byte("kb"), "ghost": []byte("kg")},
	}, &edit))
	require.Len(t, edit.Succeeded, 1)
	require.Len(t, edit.Failed, 1)
	require.Equal(t, api.FailNotFound, edit.Failed[0].Code)

	err := cc.Invoke(authed(bob), api.FullMethod(api.MethodGroupDelete), &api.GroupIDRequest{ID: "team"}, &api.Empty{})
	require.Equal(t, codes.PermissionDenied, status.Code(err))

	var created api.DocumentCreateResponse
	require.NoError(t, cc.Invoke(authed(alice), api.FullMethod(api.MethodDocumentCreate), &api.DocumentCreateRequest{
		ID: "d1", Grants: []api.Grant{{Kind: "group", ID: "team", EDEK: []byte("e")}},
	}, &created))
	require.Equal(t, "owner", created.Document.Association)

	var key api.DocumentKeyResponse
	require.NoError(t, cc.Invoke(authed(bob), api.FullMethod(api.MethodDocumentKey), &api.DocumentIDRequest{ID: "d1"}, &key))
	require.Equal(t, "group", key.Kind)
	require.Equal(t, []byte("kb"), key.GroupKey)

	err = cc.Invoke(authed(bob), api.FullMethod(api.MethodDocumentGet), &api.DocumentIDRequest{ID: "missing"}, &api.Document{})
	require.True(t, errors.Is(api.FromStatus(err), errs.ErrNotFound) || errors.Is(api.FromStatus(err), errs.ErrAccessDenied))
}

func TestServer_InProcessBearer(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	cc := startBufGRPC(t, srv)
	tok := enroll(t, cc, "alice")

	_, err := srv.GroupList(context.Background(), &api.Empty{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	res, err := srv.GroupList(api.WithBearer(context.Background(), tok), &api.Empty{})
	require.NoError(t, err)
	require.Empty(t, res.Groups)
}
