package sdk

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/and161185/ironkeep/internal/api"
	"github.com/and161185/ironkeep/internal/convert"
	"github.com/and161185/ironkeep/internal/crypto/clientcrypto"
	"github.com/and161185/ironkeep/internal/device"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

// UserVerify returns the account asserted by jwt, or nil if it was never created.
func UserVerify(ctx context.Context, backend Backend, jwt string) (*model.UserResult, error) {
	const op = "userVerify"
	resp, err := identityCall(ctx, op, func(ctx context.Context) (*api.UserVerifyResponse, error) {
		return backend.UserVerify(ctx, &api.UserVerifyRequest{JWT: jwt})
	})
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, nil
	}
	u, err := convert.FromAPIUser(*resp.User)
	if err != nil {
		return nil, errs.Op(op, err)
	}
	return &u, nil
}

// UserCreate registers the account asserted by jwt. Its master private key is
// stored on the backend only encrypted under password.
func UserCreate(ctx context.Context, backend Backend, jwt, password string, opts model.UserCreateOpts) (model.UserCreateResult, error) {
	const op = "userCreate"
	if password == "" {
		return model.UserCreateResult{}, errs.Op(op, errs.Invalid("password", "", "must not be empty"))
	}
	kp, err := clientcrypto.GenerateKeyPair()
	if err != nil {
		return model.UserCreateResult{}, errs.Op(op, err)
	}
	enc, err := clientcrypto.EncryptPrivateKey([]byte(password), kp.Private)
	if err != nil {
		return model.UserCreateResult{}, errs.Op(op, err)
	}
	u, err := identityCall(ctx, op, func(ctx context.Context) (*api.User, error) {
		return backend.UserCreate(ctx, &api.UserCreateRequest{
			JWT:                 jwt,
			PublicKey:           kp.Public,
			EncryptedPrivateKey: enc,
			NeedsRotation:       opts.NeedsRotation,
		})
	})
	if err != nil {
		return model.UserCreateResult{}, err
	}
	return model.UserCreateResult{PublicKey: u.PublicKey, NeedsRotation: u.NeedsRotation}, nil
}

// GenerateNewDevice unlocks the account asserted by jwt with password and
// authorizes a new device holding fresh keys.
func GenerateNewDevice(ctx context.Context, backend Backend, jwt, password string, opts model.DeviceCreateOpts) (DeviceAddResult, error) {
	const op = "generateNewDevice"
	keys, err := identityCall(ctx, op, func(ctx context.Context) (*api.UserKeysResponse, error) {
		return backend.UserKeys(ctx, &api.UserKeysRequest{JWT: jwt})
	})
	if err != nil {
		return DeviceAddResult{}, err
	}
	account, err := model.ValidateUserID(keys.User.AccountID)
	if err != nil {
		return DeviceAddResult{}, errs.Op(op, err)
	}
	userKey, err := clientcrypto.DecryptPrivateKey([]byte(password), keys.EncryptedPrivateKey)
	if err != nil {
		return DeviceAddResult{}, errs.Op(op, fmt.Errorf("%w: wrong password", errs.ErrUnauthorized))
	}

	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return DeviceAddResult{}, errs.Op(op, err)
	}
	devKP, err := clientcrypto.GenerateKeyPair()
	if err != nil {
		return DeviceAddResult{}, errs.Op(op, err)
	}
	wrapped, err := clientcrypto.WrapKey(devKP.Public, userKey, clientcrypto.UserKeyAAD(account.ID()))
	if err != nil {
		return DeviceAddResult{}, errs.Op(op, err)
	}
	var name *string
	if opts.Name != nil {
		n := opts.Name.Name()
		name = &n
	}
	added, err := identityCall(ctx, op, func(ctx context.Context) (*api.DeviceAddResponse, error) {
		return backend.DeviceAdd(ctx, &api.DeviceAddRequest{
			JWT:              jwt,
			Name:             name,
			SigningPublicKey: signPub,
			PublicKey:        devKP.Public,
			WrappedUserKey:   wrapped,
		})
	})
	if err != nil {
		return DeviceAddResult{}, err
	}
	id, err := model.ValidateDeviceID(added.Device.ID)
	if err != nil {
		return DeviceAddResult{}, errs.Op(op, err)
	}
	devName, err := model.OptDeviceName(added.Device.Name)
	if err != nil {
		return DeviceAddResult{}, errs.Op(op, err)
	}
	return device.AddResult{
		AccountID:         account,
		SegmentID:         added.SegmentID,
		DeviceID:          id,
		Name:              devName,
		SigningPrivateKey: signPriv,
		DevicePrivateKey:  devKP.Private,
		Created:           added.Device.Created,
		LastUpdated:       added.Device.Updated,
	}, nil
}

// UserListDevices lists the caller's devices, marking the current one.
func (s *Session) UserListDevices(ctx context.Context) (model.UserDeviceListResult, error) {
	const op = "userListDevices"
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.DeviceListResponse, error) {
		return s.backend.DeviceList(ctx, &api.Empty{})
	})
	if err != nil {
		return model.UserDeviceListResult{}, err
	}
	out, err := convert.FromAPIDevices(resp)
	return out, errs.Op(op, err)
}

// UserDeleteDevice removes a device of the caller; nil removes the current device.
func (s *Session) UserDeleteDevice(ctx context.Context, id *model.DeviceID) (model.DeviceID, error) {
	const op = "userDeleteDevice"
	var raw int64
	if id != nil {
		raw = int64(*id)
	}
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.DeviceDeleteResponse, error) {
		return s.backend.DeviceDelete(ctx, &api.DeviceDeleteRequest{ID: raw})
	})
	if err != nil {
		return 0, err
	}
	return model.DeviceID(resp.ID), nil
}

// UserGetPublicKey returns the public keys of the users that exist.
func (s *Session) UserGetPublicKey(ctx context.Context, users []model.UserID) (map[model.UserID][]byte, error) {
	const op = "userGetPublicKey"
	keys, err := s.publicKeys(ctx, op, model.GranteeUser, model.UserIDStrings(model.DedupUsers(users)))
	if err != nil {
		return nil, err
	}
	out := make(map[model.UserID][]byte, len(keys))
	for _, u := range users {
		if pub, ok := keys[u.ID()]; ok {
			out[u] = pub
		}
	}
	return out, nil
}
