// Package sdk is the client side of ironkeep: device sessions, groups and
// end-to-end encrypted documents whose keys are brokered by a key server.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/ironkeep/internal/api"
	"github.com/and161185/ironkeep/internal/crypto"
	"github.com/and161185/ironkeep/internal/crypto/clientcrypto"
	"github.com/and161185/ironkeep/internal/device"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

// Backend is the key server a session talks to. See grpcclient for the remote one.
type Backend = api.KeyService

// DeviceContext holds the credentials of one device.
type DeviceContext = device.Context

// DeviceAddResult carries fresh device credentials.
type DeviceAddResult = device.AddResult

// CacheConfig bounds the public key cache.
type CacheConfig struct {
	// MaxEntries of user and group public keys kept per session.
	MaxEntries int
}

// Config is read-only after Initialize.
type Config struct {
	// OperationTimeout bounds every backend call of one operation.
	OperationTimeout time.Duration
	Cache            CacheConfig
}

// DefaultConfig returns a 30s operation timeout and 128 cached public keys.
func DefaultConfig() Config {
	return Config{OperationTimeout: 30 * time.Second, Cache: CacheConfig{MaxEntries: 128}}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = d.OperationTimeout
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	return c
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session logger. Logs carry ids and op names, never key material.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// Session is an initialized device. It is safe for concurrent use.
type Session struct {
	dev      *device.Context
	backend  Backend
	cfg      Config
	log      *zap.Logger
	keys     *keyCache
	now      func() time.Time
	deviceID model.DeviceID
	userPub  []byte
	userKey  []byte // user master private key
}

// Initialize authenticates dev against backend and unlocks the user master key.
func Initialize(ctx context.Context, dev *DeviceContext, backend Backend, cfg Config, opts ...Option) (*Session, error) {
	const op = "initialize"
	if dev == nil || backend == nil {
		return nil, errs.Op(op, errs.Invalid("session", "", "device context and backend are required"))
	}
	s := &Session{dev: dev, backend: backend, cfg: cfg.withDefaults(), log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.keys = newKeyCache(s.cfg.Cache.MaxEntries)

	sess, err := call(ctx, s, op, func(ctx context.Context) (*api.SessionInitResponse, error) {
		return s.backend.SessionInit(ctx, &api.Empty{})
	})
	if err != nil {
		return nil, err
	}
	if sess.AccountID != dev.AccountID().ID() {
		return nil, errs.Op(op, fmt.Errorf("%w: device token names another account", errs.ErrUnauthorized))
	}
	userKey, err := clientcrypto.UnwrapKey(dev.PrivateKey(), sess.WrappedUserKey, clientcrypto.UserKeyAAD(sess.AccountID))
	if err != nil {
		return nil, errs.Op(op, fmt.Errorf("%w: unwrap user key: %v", errs.ErrUnauthorized, err))
	}
	s.deviceID = model.DeviceID(sess.DeviceID)
	s.userPub = sess.UserPublicKey
	s.userKey = userKey
	s.keys.put(model.GranteeUser, sess.AccountID, sess.UserPublicKey)
	s.log.Debug("session initialized",
		zap.String("account", sess.AccountID),
		zap.Int64("segment", sess.SegmentID),
		zap.Int64("device", sess.DeviceID))
	return s, nil
}

// Device returns the session's device context.
func (s *Session) Device() *DeviceContext { return s.dev }

// Config returns the effective configuration.
func (s *Session) Config() Config { return s.cfg }

// DeviceID is the backend number of the session's device.
func (s *Session) DeviceID() model.DeviceID { return s.deviceID }

func (s *Session) accountID() model.UserID { return s.dev.AccountID() }

// call runs fn with the operation timeout and a fresh device token, and wraps
// any failure as an SdkError for op.
func call[Resp any](ctx context.Context, s *Session, op string, fn func(context.Context) (*Resp, error)) (*Resp, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	tok, err := crypto.IssueDeviceToken(s.dev.AccountID().ID(), s.dev.SegmentID(), s.dev.SigningKey(), s.now())
	if err != nil {
		return nil, errs.Op(op, err)
	}
	start := s.now()
	resp, err := fn(api.WithBearer(ctx, tok))
	if err != nil {
		err = errs.Op(op, api.FromStatus(err))
		s.log.Debug("backend call failed", zap.String("op", op), zap.Duration("dur", time.Since(start)), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// identityCall is call for operations authenticated by an identity JWT.
func identityCall[Resp any](ctx context.Context, op string, fn func(context.Context) (*Resp, error)) (*Resp, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultConfig().OperationTimeout)
	defer cancel()
	resp, err := fn(ctx)
	if err != nil {
		return nil, errs.Op(op, api.FromStatus(err))
	}
	return resp, nil
}

// sealedUnwrap turns authentication failures of key unwrapping into ErrAccessDenied.
func sealedUnwrap(priv, wrapped, aad []byte) ([]byte, error) {
	k, err := clientcrypto.UnwrapKey(priv, wrapped, aad)
	if err != nil {
		if errors.Is(err, clientcrypto.ErrBadKey) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrAccessDenied, err)
	}
	return k, nil
}
