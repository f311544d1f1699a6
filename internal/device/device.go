// Package device holds the credentials a device uses to act for its account.
package device

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/ironkeep/internal/crypto/clientcrypto"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

// Context is an account id, its segment and the two device private keys.
// It is immutable after construction and may back any number of sessions.
type Context struct {
	accountID  model.UserID
	segmentID  int64
	signingKey ed25519.PrivateKey
	privateKey []byte
}

// New validates the key sizes and builds a Context.
func New(accountID model.UserID, segmentID int64, signingKey ed25519.PrivateKey, devicePrivateKey []byte) (*Context, error) {
	if accountID.IsZero() {
		return nil, errs.Invalid("account id", "", "must not be empty")
	}
	if len(signingKey) != ed25519.PrivateKeySize {
		return nil, &errs.ParseError{What: "signing private key", Err: fmt.Errorf("want %d bytes, got %d", ed25519.PrivateKeySize, len(signingKey))}
	}
	if len(devicePrivateKey) != clientcrypto.PrivateKeyLen {
		return nil, &errs.ParseError{What: "device private key", Err: fmt.Errorf("want %d bytes, got %d", clientcrypto.PrivateKeyLen, len(devicePrivateKey))}
	}
	return &Context{
		accountID:  accountID,
		segmentID:  segmentID,
		signingKey: append(ed25519.PrivateKey(nil), signingKey...),
		privateKey: append([]byte(nil), devicePrivateKey...),
	}, nil
}

func (c *Context) AccountID() model.UserID { return c.accountID }

func (c *Context) SegmentID() int64 { return c.segmentID }

// SigningKey returns a copy of the Ed25519 signing key.
func (c *Context) SigningKey() ed25519.PrivateKey {
	return append(ed25519.PrivateKey(nil), c.signingKey...)
}

// SigningPublicKey is the public half embedded in the signing key.
func (c *Context) SigningPublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), c.signingKey[32:]...)
}

// PrivateKey returns a copy of the X25519 device private key.
func (c *Context) PrivateKey() []byte { return append([]byte(nil), c.privateKey...) }

// PublicKey derives the X25519 device public key.
func (c *Context) PublicKey() ([]byte, error) { return clientcrypto.PublicKey(c.privateKey) }

type bundle struct {
	AccountID         *string `json:"accountId"`
	SegmentID         *int64  `json:"segmentId"`
	SigningPrivateKey *string `json:"signingPrivateKey"`
	DevicePrivateKey  *string `json:"devicePrivateKey"`
}

// FromJSON parses the serialized device bundle.
func FromJSON(data []byte) (*Context, error) {
	var b bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &errs.ParseError{What: "device context", Err: err}
	}
	switch {
	case b.AccountID == nil:
		return nil, missing("accountId")
	case b.SegmentID == nil:
		return nil, missing("segmentId")
	case b.SigningPrivateKey == nil:
		return nil, missing("signingPrivateKey")
	case b.DevicePrivateKey == nil:
		return nil, missing("devicePrivateKey")
	}
	account, err := model.ValidateUserID(*b.AccountID)
	if err != nil {
		return nil, &errs.ParseError{What: "device context", Err: err}
	}
	sk, err := base64.StdEncoding.DecodeString(*b.SigningPrivateKey)
	if err != nil {
		return nil, &errs.ParseError{What: "signing private key", Err: err}
	}
	dk, err := base64.StdEncoding.DecodeString(*b.DevicePrivateKey)
	if err != nil {
		return nil, &errs.ParseError{What: "device private key", Err: err}
	}
	return New(account, *b.SegmentID, sk, dk)
}

func missing(field string) error {
	return &errs.ParseError{What: "device context", Err: errors.New("missing field " + field)}
}

// ToJSON renders c in the FromJSON format.
func (c *Context) ToJSON() ([]byte, error) {
	account := c.accountID.ID()
	seg := c.segmentID
	sk := base64.StdEncoding.EncodeToString(c.signingKey)
	dk := base64.StdEncoding.EncodeToString(c.privateKey)
	return json.Marshal(bundle{AccountID: &account, SegmentID: &seg, SigningPrivateKey: &sk, DevicePrivateKey: &dk})
}

// AddResult is returned by GenerateNewDevice and carries fresh device credentials.
type AddResult struct {
	AccountID         model.UserID
	SegmentID         int64
	DeviceID          model.DeviceID
	Name              *model.DeviceName
	SigningPrivateKey ed25519.PrivateKey
	DevicePrivateKey  []byte
	Created           time.Time
	LastUpdated       time.Time
}

// Context converts the result into a usable device context.
func (r AddResult) Context() (*Context, error) {
	return New(r.AccountID, r.SegmentID, r.SigningPrivateKey, r.DevicePrivateKey)
}
