// Package jwtclaims parses identity assertion tokens issued for ironkeep users.
//
// Optional claims may appear either bare ("sid") or under the
// "http://ironcore/" namespace ("http://ironcore/sid"), never both.
package jwtclaims

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/ironkeep/internal/errs"
)

// Prefix is the namespace of prefixed claims.
const Prefix = "http://ironcore/"

// Form tells which spelling of a claim was present.
type Form int

const (
	Absent Form = iota
	Bare
	Prefixed
)

type numClaim struct {
	v    uint32
	form Form
}

type strClaim struct {
	v    string
	form Form
}

// Claims is the validated claim set.
type Claims struct {
	Subject   string
	IssuedAt  int64
	ExpiresAt int64

	pid, sid, kid numClaim
	uid           strClaim
}

// Jwt is a structurally valid token.
type Jwt struct {
	Algorithm string
	Claims    Claims
	raw       string
}

func (j *Jwt) String() string { return j.raw }

func bare(c numClaim) (uint32, bool)     { return c.v, c.form == Bare }
func prefixed(c numClaim) (uint32, bool) { return c.v, c.form == Prefixed }

// Pid is the bare project id.
func (c Claims) Pid() (uint32, bool) { return bare(c.pid) }

// PrefixedPid is the namespaced project id.
func (c Claims) PrefixedPid() (uint32, bool) { return prefixed(c.pid) }

func (c Claims) Sid() (uint32, bool)         { return bare(c.sid) }
func (c Claims) PrefixedSid() (uint32, bool) { return prefixed(c.sid) }
func (c Claims) Kid() (uint32, bool)         { return bare(c.kid) }
func (c Claims) PrefixedKid() (uint32, bool) { return prefixed(c.kid) }

func (c Claims) Uid() (string, bool)         { return c.uid.v, c.uid.form == Bare }
func (c Claims) PrefixedUid() (string, bool) { return c.uid.v, c.uid.form == Prefixed }

// ProjectID returns the project id in whichever form it was present.
func (c Claims) ProjectID() (uint32, bool) { return c.pid.v, c.pid.form != Absent }

// SegmentID returns the segment id in whichever form it was present.
func (c Claims) SegmentID() (uint32, bool) { return c.sid.v, c.sid.form != Absent }

// KeyID returns the key id in whichever form it was present.
func (c Claims) KeyID() (uint32, bool) { return c.kid.v, c.kid.form != Absent }

// UserID returns the user id in whichever form it was present.
func (c Claims) UserID() (string, bool) { return c.uid.v, c.uid.form != Absent }

// Expired reports whether exp is before now minus leeway.
func (c Claims) Expired(now time.Time, leeway time.Duration) bool {
	return time.Unix(c.ExpiresAt, 0).Add(leeway).Before(now)
}

func fail(reason string, err error) error { return &errs.JwtError{Reason: reason, Err: err} }

var parser = jwt.NewParser(jwt.WithJSONNumber())

// Validate decodes token and checks its structure. The signature is not verified.
func Validate(token string) (*Jwt, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return nil, fail("token must have three dot separated segments", nil)
	}
	claims := jwt.MapClaims{}
	t, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		return nil, fail("malformed token", err)
	}
	return build(token, t, claims)
}

// VerifyES256 checks the signature with key before validating the structure.
func VerifyES256(token string, key *ecdsa.PublicKey) (*Jwt, error) {
	token = strings.TrimSpace(token)
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithJSONNumber(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fail("signature verification failed", err)
	}
	return build(token, t, claims)
}

func build(raw string, t *jwt.Token, m jwt.MapClaims) (*Jwt, error) {
	alg, _ := t.Header["alg"].(string)
	if alg == "" {
		return nil, fail("header has no alg", nil)
	}
	out := &Jwt{Algorithm: alg, raw: raw}

	sub, ok := m["sub"].(string)
	if !ok || sub == "" {
		return nil, fail("claim sub is missing or not a string", nil)
	}
	out.Claims.Subject = sub

	var err error
	if out.Claims.IssuedAt, err = requiredInt(m, "iat"); err != nil {
		return nil, err
	}
	if out.Claims.ExpiresAt, err = requiredInt(m, "exp"); err != nil {
		return nil, err
	}
	if out.Claims.pid, err = optionalNum(m, "pid"); err != nil {
		return nil, err
	}
	if out.Claims.sid, err = optionalNum(m, "sid"); err != nil {
		return nil, err
	}
	if out.Claims.kid, err = optionalNum(m, "kid"); err != nil {
		return nil, err
	}
	if out.Claims.uid, err = optionalStr(m, "uid"); err != nil {
		return nil, err
	}
	return out, nil
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func requiredInt(m jwt.MapClaims, name string) (int64, error) {
	v, ok := m[name]
	if !ok {
		return 0, fail("claim "+name+" is missing", nil)
	}
	i, ok := asInt(v)
	if !ok {
		return 0, fail("claim "+name+" is not an integer", nil)
	}
	return i, nil
}

// lookup returns the claim value and its form, rejecting tokens carrying both.
func lookup(m jwt.MapClaims, name string) (any, Form, error) {
	b, hasBare := m[name]
	p, hasPrefixed := m[Prefix+name]
	switch {
	case hasBare && hasPrefixed:
		return nil, Absent, fail(fmt.Sprintf("claims %s and %s%s are mutually exclusive", name, Prefix, name), nil)
	case hasBare:
		return b, Bare, nil
	case hasPrefixed:
		return p, Prefixed, nil
	}
	return nil, Absent, nil
}

func optionalNum(m jwt.MapClaims, name string) (numClaim, error) {
	v, form, err := lookup(m, name)
	if err != nil || form == Absent {
		return numClaim{}, err
	}
	i, ok := asInt(v)
	if !ok || i < 0 || i > math.MaxUint32 {
		return numClaim{}, fail("claim "+name+" is not an unsigned 32 bit integer", nil)
	}
	return numClaim{v: uint32(i), form: form}, nil
}

func optionalStr(m jwt.MapClaims, name string) (strClaim, error) {
	v, form, err := lookup(m, name)
	if err != nil || form == Absent {
		return strClaim{}, err
	}
	s, ok := v.(string)
	if !ok {
		return strClaim{}, fail("claim "+name+" is not a string", nil)
	}
	return strClaim{v: s, form: form}, nil
}

// IsJwtError reports whether err came from this package.
func IsJwtError(err error) bool {
	var je *errs.JwtError
	return errors.As(err, &je)
}
