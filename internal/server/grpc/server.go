// Package grpcserver exposes the KeyService over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/ironkeep/internal/api"
	"github.com/and161185/ironkeep/internal/convert"
	"github.com/and161185/ironkeep/internal/model"
	"github.com/and161185/ironkeep/internal/service"
)

var _ api.KeyService = (*Server)(nil)

// Server wires services into KeyService handlers.
type Server struct {
	users  service.UserService
	groups service.GroupService
	docs   service.DocumentService
	log    *zap.Logger
}

// New constructs a KeyService server with injected services.
func New(users service.UserService, groups service.GroupService, docs service.DocumentService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{users: users, groups: groups, docs: docs, log: log}
}

// remoteIP returns the peer host without its port, so that reconnecting from
// a new ephemeral port keeps the same limiter key.
func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// toStatus maps service errors to gRPC status. Internal details are logged, not returned.
func (s *Server) toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := api.Code(err)
	if code == codes.Internal {
		s.log.Error("internal error", zap.Error(err))
		return status.Error(codes.Internal, "internal")
	}
	return status.Error(code, err.Error())
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

// authenticate resolves the device token carried by metadata or by api.WithBearer.
func (s *Server) authenticate(ctx context.Context) (service.Principal, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		var ok bool
		if tok, ok = api.BearerFromContext(ctx); !ok {
			return service.Principal{}, status.Error(codes.Unauthenticated, "no auth")
		}
	}
	p, err := s.users.Authenticate(ctx, tok)
	if err != nil {
		return service.Principal{}, s.toStatus(err)
	}
	return p, nil
}

// principal returns the device authenticated by AuthUnary or authenticates now.
func (s *Server) principal(ctx context.Context) (service.Principal, error) {
	if p, ok := PrincipalFromCtx(ctx); ok {
		return p, nil
	}
	return s.authenticate(ctx)
}

// --- identity ---

// UserVerify reports whether the asserted account exists.
func (s *Server) UserVerify(ctx context.Context, req *api.UserVerifyRequest) (*api.UserVerifyResponse, error) {
	u, err := s.users.Verify(ctx, req.JWT, remoteIP(ctx))
	if err != nil {
		return nil, s.toStatus(err)
	}
	if u == nil {
		return &api.UserVerifyResponse{}, nil
	}
	out := convert.ToAPIUser(u)
	return &api.UserVerifyResponse{User: &out}, nil
}

// UserCreate registers the asserted account.
func (s *Server) UserCreate(ctx context.Context, req *api.UserCreateRequest) (*api.User, error) {
	u, err := s.users.Create(ctx, req.JWT, remoteIP(ctx), model.User{
		PublicKey:           req.PublicKey,
		EncryptedPrivateKey: req.EncryptedPrivateKey,
		NeedsRotation:       req.NeedsRotation,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	out := convert.ToAPIUser(u)
	return &out, nil
}

// UserKeys returns the password protected private key of the asserted account.
func (s *Server) UserKeys(ctx context.Context, req *api.UserKeysRequest) (*api.UserKeysResponse, error) {
	u, err := s.users.Keys(ctx, req.JWT, remoteIP(ctx))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.UserKeysResponse{User: convert.ToAPIUser(u), EncryptedPrivateKey: u.EncryptedPrivateKey}, nil
}

// DeviceAdd authorizes a device for the asserted account.
func (s *Server) DeviceAdd(ctx context.Context, req *api.DeviceAddRequest) (*api.DeviceAddResponse, error) {
	u, d, err := s.users.AddDevice(ctx, req.JWT, remoteIP(ctx), model.Device{
		Name:             req.Name,
		SigningPublicKey: req.SigningPublicKey,
		PublicKey:        req.PublicKey,
		WrappedUserKey:   req.WrappedUserKey,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.DeviceAddResponse{AccountID: u.AccountID, SegmentID: u.SegmentID, Device: convert.ToAPIDevice(*d, d.ID)}, nil
}

// --- session and devices ---

func (s *Server) SessionInit(ctx context.Context, _ *api.Empty) (*api.SessionInitResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	u, d, err := s.users.SessionInit(ctx, p)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.SessionInitResponse{
		AccountID:      u.AccountID,
		SegmentID:      u.SegmentID,
		DeviceID:       d.ID,
		UserPublicKey:  u.PublicKey,
		WrappedUserKey: d.WrappedUserKey,
		NeedsRotation:  u.NeedsRotation,
	}, nil
}

func (s *Server) DeviceList(ctx context.Context, _ *api.Empty) (*api.DeviceListResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := s.users.ListDevices(ctx, p)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.DeviceListResponse{Devices: convert.ToAPIDevices(ds, p.DeviceID)}, nil
}

func (s *Server) DeviceDelete(ctx context.Context, req *api.DeviceDeleteRequest) (*api.DeviceDeleteResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	id, err := s.users.DeleteDevice(ctx, p, req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.DeviceDeleteResponse{ID: id}, nil
}

func (s *Server) UserPublicKeys(ctx context.Context, req *api.PublicKeysRequest) (*api.PublicKeysResponse, error) {
	if _, err := s.principal(ctx); err != nil {
		return nil, err
	}
	keys, err := s.users.PublicKeys(ctx, req.IDs)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.PublicKeysResponse{Keys: keys}, nil
}

func (s *Server) GroupPublicKeys(ctx context.Context, req *api.PublicKeysRequest) (*api.PublicKeysResponse, error) {
	if _, err := s.principal(ctx); err != nil {
		return nil, err
	}
	keys, err := s.groups.PublicKeys(ctx, req.IDs)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.PublicKeysResponse{Keys: keys}, nil
}

// --- groups ---

func (s *Server) GroupCreate(ctx context.Context, req *api.GroupCreateRequest) (*api.Group, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	g, rows := convert.FromAPIGroupCreate(req)
	v, err := s.groups.Create(ctx, p, g, rows)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIGroup(*v), nil
}

func (s *Server) GroupList(ctx context.Context, _ *api.Empty) (*api.GroupListResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	vs, err := s.groups.List(ctx, p)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.GroupListResponse{Groups: convert.ToAPIGroups(vs)}, nil
}

func (s *Server) GroupGet(ctx context.Context, req *api.GroupIDRequest) (*api.Group, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.groups.Get(ctx, p, req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIGroup(*v), nil
}

func (s *Server) GroupUpdateName(ctx context.Context, req *api.GroupUpdateNameRequest) (*api.Group, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.groups.UpdateName(ctx, p, req.ID, req.Name)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIGroup(*v), nil
}

func (s *Server) GroupDelete(ctx context.Context, req *api.GroupIDRequest) (*api.Empty, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.groups.Delete(ctx, p, req.ID); err != nil {
		return nil, s.toStatus(err)
	}
	return &api.Empty{}, nil
}

func (s *Server) addUsers(ctx context.Context, req *api.GroupAddUsersRequest, role service.Role) (*api.AccessEditResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.groups.AddUsers(ctx, p, req.GroupID, role, req.Keys)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIAccessEdit(res), nil
}

func (s *Server) removeUsers(ctx context.Context, req *api.GroupRemoveUsersRequest, role service.Role) (*api.AccessEditResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.groups.RemoveUsers(ctx, p, req.GroupID, role, req.Users)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIAccessEdit(res), nil
}

func (s *Server) GroupAddMembers(ctx context.Context, req *api.GroupAddUsersRequest) (*api.AccessEditResponse, error) {
	return s.addUsers(ctx, req, service.RoleMember)
}

func (s *Server) GroupAddAdmins(ctx context.Context, req *api.GroupAddUsersRequest) (*api.AccessEditResponse, error) {
	return s.addUsers(ctx, req, service.RoleAdmin)
}

func (s *Server) GroupRemoveMembers(ctx context.Context, req *api.GroupRemoveUsersRequest) (*api.AccessEditResponse, error) {
	return s.removeUsers(ctx, req, service.RoleMember)
}

func (s *Server) GroupRemoveAdmins(ctx context.Context, req *api.GroupRemoveUsersRequest) (*api.AccessEditResponse, error) {
	return s.removeUsers(ctx, req, service.RoleAdmin)
}

// --- documents ---

func (s *Server) DocumentCreate(ctx context.Context, req *api.DocumentCreateRequest) (*api.DocumentCreateResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	v, edit, err := s.docs.Create(ctx, p, model.Document{ID: req.ID, Name: req.Name}, convert.FromAPIGrants(req.Grants))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.DocumentCreateResponse{
		Document: *convert.ToAPIDocument(*v),
		Granted:  convert.ToAPITargets(edit.Succeeded),
		Failed:   convert.ToAPIFailures(edit.Failed),
	}, nil
}

func (s *Server) DocumentList(ctx context.Context, _ *api.Empty) (*api.DocumentListResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	vs, err := s.docs.List(ctx, p)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.DocumentListResponse{Documents: convert.ToAPIDocuments(vs)}, nil
}

func (s *Server) DocumentGet(ctx context.Context, req *api.DocumentIDRequest) (*api.Document, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.docs.Get(ctx, p, req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIDocument(*v), nil
}

func (s *Server) DocumentKey(ctx context.Context, req *api.DocumentIDRequest) (*api.DocumentKeyResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	k, err := s.docs.Key(ctx, p, req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &api.DocumentKeyResponse{
		Document:  *convert.ToAPIDocument(k.View),
		Kind:      k.Grant.Kind,
		GranteeID: k.Grant.GranteeID,
		EDEK:      k.Grant.EDEK,
		GroupKey:  k.GroupKey,
	}, nil
}

func (s *Server) DocumentTouch(ctx context.Context, req *api.DocumentIDRequest) (*api.Document, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.docs.Touch(ctx, p, req.ID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIDocument(*v), nil
}

func (s *Server) DocumentUpdateName(ctx context.Context, req *api.DocumentUpdateNameRequest) (*api.Document, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.docs.UpdateName(ctx, p, req.ID, req.Name)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIDocument(*v), nil
}

func (s *Server) DocumentGrant(ctx context.Context, req *api.DocumentGrantRequest) (*api.AccessEditResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.docs.Grant(ctx, p, req.ID, convert.FromAPIGrants(req.Grants))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIAccessEdit(res), nil
}

func (s *Server) DocumentRevoke(ctx context.Context, req *api.DocumentRevokeRequest) (*api.AccessEditResponse, error) {
	p, err := s.principal(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.docs.Revoke(ctx, p, req.ID, convert.FromAPIGrantees(req.Grantees))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return convert.ToAPIAccessEdit(res), nil
}
