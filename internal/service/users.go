// Package service contains the key server's application services: identity
// assertion and devices, groups, and managed documents.
package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	pkgcrypto "github.com/and161185/ironkeep/internal/crypto"
	"github.com/and161185/ironkeep/internal/crypto/clientcrypto"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/jwtclaims"
	"github.com/and161185/ironkeep/internal/limiter"
	"github.com/and161185/ironkeep/internal/model"
	"github.com/and161185/ironkeep/internal/repository"
)

// Principal is an authenticated device.
type Principal struct {
	AccountID string
	SegmentID int64
	DeviceID  int64
}

// Identity is the account asserted by a verified identity JWT.
type Identity struct {
	AccountID string
	SegmentID int64
}

// UserService defines identity assertion, account and device operations.
type UserService interface {
	// Verify returns the asserted account, or nil when it has not been created.
	Verify(ctx context.Context, jwt, peer string) (*model.User, error)
	// Create registers the asserted account with its password protected key.
	Create(ctx context.Context, jwt, peer string, u model.User) (*model.User, error)
	// Keys returns the asserted account including its encrypted private key.
	Keys(ctx context.Context, jwt, peer string) (*model.User, error)
	// AddDevice authorizes a device for the asserted account.
	AddDevice(ctx context.Context, jwt, peer string, d model.Device) (*model.User, *model.Device, error)

	// Authenticate verifies a device token.
	Authenticate(ctx context.Context, token string) (Principal, error)
	// SessionInit returns the calling user and device.
	SessionInit(ctx context.Context, p Principal) (*model.User, *model.Device, error)
	ListDevices(ctx context.Context, p Principal) ([]model.Device, error)
	// DeleteDevice removes one of the caller's devices; id 0 names the calling device.
	DeleteDevice(ctx context.Context, p Principal, id int64) (int64, error)
	PublicKeys(ctx context.Context, ids []string) (map[string][]byte, error)
}

// IdentityConfig controls identity JWT and device token acceptance.
type IdentityConfig struct {
	// VerifyKey, when set, is required to have signed every identity JWT (ES256).
	VerifyKey *ecdsa.PublicKey
	Leeway    time.Duration
	// DefaultSegment applies to identity JWTs without a sid claim.
	DefaultSegment int64
}

type UserServiceImpl struct {
	users   repository.UserRepository
	devices repository.DeviceRepository
	lim     limiter.Limiter
	cfg     IdentityConfig
	now     func() time.Time
}

// NewUserService constructs UserService with required dependencies.
func NewUserService(users repository.UserRepository, devices repository.DeviceRepository, lim limiter.Limiter, cfg IdentityConfig) *UserServiceImpl {
	return &UserServiceImpl{users: users, devices: devices, lim: lim, cfg: cfg, now: time.Now}
}

func unauthorized(reason string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", errs.ErrUnauthorized, reason)
	}
	return fmt.Errorf("%w: %s: %v", errs.ErrUnauthorized, reason, err)
}

// assert verifies an identity JWT with rate limiting by (subject, peer).
func (s *UserServiceImpl) assert(ctx context.Context, token, peer string) (Identity, error) {
	tok, err := jwtclaims.Validate(token)
	if err != nil {
		return Identity{}, unauthorized("identity token", err)
	}
	subject := tok.Claims.Subject
	peerHash := limiter.HashPeer(peer)

	allowed, _, err := s.lim.Allow(ctx, subject, peerHash)
	if err != nil {
		return Identity{}, err
	}
	if !allowed {
		return Identity{}, errs.ErrRateLimited
	}

	if err := s.check(token, tok); err != nil {
		// Record failure; if threshold reached, report the block instead.
		if blocked, _, ferr := s.lim.Failure(ctx, subject, peerHash); ferr == nil && blocked {
			return Identity{}, errs.ErrRateLimited
		}
		return Identity{}, err
	}

	// best-effort reset
	_ = s.lim.Success(ctx, subject, peerHash)

	id := Identity{AccountID: subject, SegmentID: s.cfg.DefaultSegment}
	if sid, ok := tok.Claims.SegmentID(); ok {
		id.SegmentID = int64(sid)
	}
	return id, nil
}

func (s *UserServiceImpl) check(raw string, tok *jwtclaims.Jwt) error {
	if s.cfg.VerifyKey != nil {
		if _, err := jwtclaims.VerifyES256(raw, s.cfg.VerifyKey); err != nil {
			return unauthorized("identity token signature", err)
		}
	}
	if tok.Claims.Expired(s.now(), s.cfg.Leeway) {
		return unauthorized("identity token expired", nil)
	}
	if _, err := model.ValidateUserID(tok.Claims.Subject); err != nil {
		return unauthorized("identity token subject", err)
	}
	return nil
}

// Verify returns the asserted user or nil when the account does not exist yet.
func (s *UserServiceImpl) Verify(ctx context.Context, jwt, peer string) (*model.User, error) {
	id, err := s.assert(ctx, jwt, peer)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, id.AccountID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// Create stores a new user; the segment always comes from the identity JWT.
func (s *UserServiceImpl) Create(ctx context.Context, jwt, peer string, u model.User) (*model.User, error) {
	if len(u.PublicKey) != clientcrypto.PublicKeyLen {
		return nil, errs.Invalid("user public key", "", "must be 32 bytes")
	}
	if len(u.EncryptedPrivateKey) == 0 {
		return nil, errs.Invalid("encrypted private key", "", "must not be empty")
	}
	id, err := s.assert(ctx, jwt, peer)
	if err != nil {
		return nil, err
	}
	u.AccountID, u.SegmentID = id.AccountID, id.SegmentID
	if err := s.users.Create(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Keys returns the asserted user with its encrypted private key.
func (s *UserServiceImpl) Keys(ctx context.Context, jwt, peer string) (*model.User, error) {
	id, err := s.assert(ctx, jwt, peer)
	if err != nil {
		return nil, err
	}
	return s.users.Get(ctx, id.AccountID)
}

// AddDevice registers a device holding the user key wrapped to its public key.
func (s *UserServiceImpl) AddDevice(ctx context.Context, jwt, peer string, d model.Device) (*model.User, *model.Device, error) {
	switch {
	case len(d.SigningPublicKey) != ed25519.PublicKeySize:
		return nil, nil, errs.Invalid("device signing key", "", "must be 32 bytes")
	case len(d.PublicKey) != clientcrypto.PublicKeyLen:
		return nil, nil, errs.Invalid("device public key", "", "must be 32 bytes")
	case len(d.WrappedUserKey) == 0:
		return nil, nil, errs.Invalid("wrapped user key", "", "must not be empty")
	}
	name, err := model.OptDeviceName(d.Name)
	if err != nil {
		return nil, nil, err
	}
	if name != nil {
		v := name.Name()
		d.Name = &v
	}
	id, err := s.assert(ctx, jwt, peer)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.users.Get(ctx, id.AccountID)
	if err != nil {
		return nil, nil, err
	}
	d.AccountID = u.AccountID
	if err := s.devices.Add(ctx, &d); err != nil {
		return nil, nil, err
	}
	return u, &d, nil
}

// Authenticate verifies an EdDSA device token against the registered device key.
func (s *UserServiceImpl) Authenticate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, unauthorized("missing device token", nil)
	}
	var (
		dev       *model.Device
		lookupErr error
	)
	claims, err := pkgcrypto.ParseDeviceToken(token, func(spk ed25519.PublicKey) (ed25519.PublicKey, error) {
		dev, lookupErr = s.devices.GetBySigningKey(ctx, spk)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return ed25519.PublicKey(dev.SigningPublicKey), nil
	}, s.cfg.Leeway)
	if lookupErr != nil && !errors.Is(lookupErr, errs.ErrNotFound) {
		return Principal{}, lookupErr
	}
	if err != nil {
		return Principal{}, unauthorized("device token", err)
	}
	if dev.AccountID != claims.Subject {
		return Principal{}, unauthorized("device belongs to another account", nil)
	}
	return Principal{AccountID: dev.AccountID, SegmentID: claims.SegmentID, DeviceID: dev.ID}, nil
}

// SessionInit loads what a device needs to unlock its user key.
func (s *UserServiceImpl) SessionInit(ctx context.Context, p Principal) (*model.User, *model.Device, error) {
	u, err := s.users.Get(ctx, p.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if u.SegmentID != p.SegmentID {
		return nil, nil, unauthorized("device token segment mismatch", nil)
	}
	d, err := s.devices.Get(ctx, p.AccountID, p.DeviceID)
	if err != nil {
		return nil, nil, err
	}
	return u, d, nil
}

func (s *UserServiceImpl) ListDevices(ctx context.Context, p Principal) ([]model.Device, error) {
	return s.devices.List(ctx, p.AccountID)
}

func (s *UserServiceImpl) DeleteDevice(ctx context.Context, p Principal, id int64) (int64, error) {
	if id == 0 {
		id = p.DeviceID
	}
	if _, err := model.ValidateDeviceID(id); err != nil {
		return 0, err
	}
	if err := s.devices.Delete(ctx, p.AccountID, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *UserServiceImpl) PublicKeys(ctx context.Context, ids []string) (map[string][]byte, error) {
	return s.users.PublicKeys(ctx, ids)
}
