package jwtclaims

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return tok
}

func TestValidate_BareClaims(t *testing.T) {
	t.Parallel()
	tok := sign(t, jwt.MapClaims{
		"sub": "abcABC012_.$#|@/:;=+'-d1226d1b-4c39-49da-933c-642e23ac1945",
		"pid": 438, "sid": 1, "kid": 593, "uid": "u-1",
		"iat": 1591901740, "exp": 1591901860,
	})
	j, err := Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if j.Algorithm != "HS256" {
		t.Fatalf("alg=%s", j.Algorithm)
	}
	c := j.Claims
	if c.Subject != "abcABC012_.$#|@/:;=+'-d1226d1b-4c39-49da-933c-642e23ac1945" || c.IssuedAt != 1591901740 || c.ExpiresAt != 1591901860 {
		t.Fatalf("registered claims: %+v", c)
	}
	if v, ok := c.Pid(); !ok || v != 438 {
		t.Fatalf("pid=%d,%v", v, ok)
	}
	if _, ok := c.PrefixedPid(); ok {
		t.Fatalf("prefixed pid must be absent")
	}
	if v, ok := c.Sid(); !ok || v != 1 {
		t.Fatalf("sid=%d,%v", v, ok)
	}
	if v, ok := c.Kid(); !ok || v != 593 {
		t.Fatalf("kid=%d,%v", v, ok)
	}
	if v, ok := c.Uid(); !ok || v != "u-1" {
		t.Fatalf("uid=%q,%v", v, ok)
	}
	if _, ok := c.PrefixedUid(); ok {
		t.Fatalf("prefixed uid must be absent")
	}
	if j.String() != tok {
		t.Fatalf("raw token not kept")
	}
}

func TestValidate_PrefixedClaims(t *testing.T) {
	t.Parallel()
	tok := sign(t, jwt.MapClaims{
		"sub":          "abcABC012_.$#|@/:;=+'-d1226d1b-4c39-49da-933c-642e23ac1945",
		Prefix + "pid": 438,
		Prefix + "sid": 1,
		Prefix + "kid": 593,
		Prefix + "uid": "u-2",
		"iat":          1591901740,
		"exp":          1591901860,
	})
	j, err := Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	c := j.Claims
	if _, ok := c.Pid(); ok {
		t.Fatalf("bare pid must be absent")
	}
	if v, ok := c.PrefixedPid(); !ok || v != 438 {
		t.Fatalf("prefixed pid=%d,%v", v, ok)
	}
	if v, ok := c.PrefixedSid(); !ok || v != 1 {
		t.Fatalf("prefixed sid=%d,%v", v, ok)
	}
	if _, ok := c.Sid(); ok {
		t.Fatalf("bare sid must be absent")
	}
	if v, ok := c.PrefixedKid(); !ok || v != 593 {
		t.Fatalf("prefixed kid=%d,%v", v, ok)
	}
	if v, ok := c.PrefixedUid(); !ok || v != "u-2" {
		t.Fatalf("prefixed uid=%q,%v", v, ok)
	}
	if v, ok := c.SegmentID(); !ok || v != 1 {
		t.Fatalf("segment=%d,%v", v, ok)
	}
}

func TestValidate_OptionalAbsent(t *testing.T) {
	t.Parallel()
	j, err := Validate(sign(t, jwt.MapClaims{"sub": "a", "iat": 1, "exp": 2}))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, ok := j.Claims.ProjectID(); ok {
		t.Fatalf("pid must be absent")
	}
	if _, ok := j.Claims.UserID(); ok {
		t.Fatalf("uid must be absent")
	}
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"a","iat":1,"exp":2}`))
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	cases := map[string]string{
		"empty":          "",
		"two segments":   header + "." + payload,
		"bad base64":     header + ".!!!." + "sig",
		"bad json":       header + "." + base64.RawURLEncoding.EncodeToString([]byte("{")) + ".sig",
		"no sub":         sign(t, jwt.MapClaims{"iat": 1, "exp": 2}),
		"sub not string": sign(t, jwt.MapClaims{"sub": 5, "iat": 1, "exp": 2}),
		"no iat":         sign(t, jwt.MapClaims{"sub": "a", "exp": 2}),
		"exp string":     sign(t, jwt.MapClaims{"sub": "a", "iat": 1, "exp": "2"}),
		"both forms":     sign(t, jwt.MapClaims{"sub": "a", "iat": 1, "exp": 2, "sid": 1, Prefix + "sid": 1}),
		"negative pid":   sign(t, jwt.MapClaims{"sub": "a", "iat": 1, "exp": 2, "pid": -1}),
		"uid not string": sign(t, jwt.MapClaims{"sub": "a", "iat": 1, "exp": 2, "uid": 7}),
		"sid not number": sign(t, jwt.MapClaims{"sub": "a", "iat": 1, "exp": 2, "sid": "1"}),
	}
	for name, tok := range cases {
		_, err := Validate(tok)
		if err == nil {
			t.Fatalf("%s: want error", name)
		}
		if !IsJwtError(err) {
			t.Fatalf("%s: want JwtError, got %T", name, err)
		}
	}
}

func TestVerifyES256(t *testing.T) {
	t.Parallel()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	other, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	claims := jwt.MapClaims{"sub": "bob", "iat": time.Now().Unix(), "exp": time.Now().Add(time.Minute).Unix()}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	j, err := VerifyES256(tok, &key.PublicKey)
	if err != nil {
		t.Fatalf("VerifyES256: %v", err)
	}
	if j.Claims.Subject != "bob" || j.Algorithm != "ES256" {
		t.Fatalf("claims=%+v", j.Claims)
	}
	if _, err := VerifyES256(tok, &other.PublicKey); err == nil {
		t.Fatalf("want error for wrong key")
	}
	if _, err := VerifyES256(sign(t, claims), &key.PublicKey); err == nil {
		t.Fatalf("want error for HS256 token")
	}
}

func TestClaims_Expired(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	c := Claims{ExpiresAt: 990}
	if !c.Expired(now, 0) {
		t.Fatalf("want expired")
	}
	if c.Expired(now, 30*time.Second) {
		t.Fatalf("leeway must apply")
	}
}
