package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeviceTokenTTL bounds the lifetime of a signed device request token.
const DeviceTokenTTL = 5 * time.Minute

// DeviceClaims is the claim set of a device request token.
type DeviceClaims struct {
	SegmentID  int64  `json:"sid"`
	SigningKey string `json:"spk"` // base64url Ed25519 public key of the device
	jwt.RegisteredClaims
}

// SigningPublicKey decodes the spk claim.
func (c *DeviceClaims) SigningPublicKey() (ed25519.PublicKey, error) {
	b, err := base64.RawURLEncoding.DecodeString(c.SigningKey)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, errors.New("signing key has wrong length")
	}
	return ed25519.PublicKey(b), nil
}

// IssueDeviceToken creates an EdDSA JWT for accountID signed by the device signing key.
func IssueDeviceToken(accountID string, segmentID int64, key ed25519.PrivateKey, now time.Time) (string, error) {
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return "", errors.New("bad signing key")
	}
	claims := DeviceClaims{
		SegmentID:  segmentID,
		SigningKey: base64.RawURLEncoding.EncodeToString(pub),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(DeviceTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
}

// KeyLookup resolves the registered public key for a presented signing key.
// It must fail when the key does not belong to a registered device.
type KeyLookup func(spk ed25519.PublicKey) (ed25519.PublicKey, error)

// ParseDeviceToken verifies tok against the registered device key and returns its claims.
func ParseDeviceToken(tok string, lookup KeyLookup, leeway time.Duration) (*DeviceClaims, error) {
	var claims DeviceClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		c, ok := t.Claims.(*DeviceClaims)
		if !ok {
			return nil, errors.New("unexpected claims type")
		}
		spk, err := c.SigningPublicKey()
		if err != nil {
			return nil, err
		}
		return lookup(spk)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token without subject")
	}
	return &claims, nil
}
