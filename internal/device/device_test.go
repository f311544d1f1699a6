package device

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

const bundleJSON = `{"accountId":"abcABC012_.$#|@/:;=+'-91e078f0-a60c-4251-8652-dd498c07a8f4","segmentId":1825,"signingPrivateKey":"uKHa70uwLVG3IU7XodT2kla/PuC/En8PkRCjMMc9ZE7HFrOV+g0vOwATp/CiXp65mVas0K6TSl/RaxDGlcmsnA==","devicePrivateKey":"YZRlDSkM+JxxSXCtWCVK693qfhNqcbhaPrtHs92uD4w="}`

func TestFromJSON_Bundle(t *testing.T) {
	t.Parallel()

	c, err := FromJSON([]byte(bundleJSON))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if c.AccountID().ID() != "abcABC012_.$#|@/:;=+'-91e078f0-a60c-4251-8652-dd498c07a8f4" {
		t.Fatalf("account=%q", c.AccountID().ID())
	}
	if c.SegmentID() != 1825 {
		t.Fatalf("segment=%d", c.SegmentID())
	}
	if len(c.SigningKey()) != 64 || len(c.PrivateKey()) != 32 {
		t.Fatalf("key sizes %d/%d", len(c.SigningKey()), len(c.PrivateKey()))
	}
	if _, err := c.PublicKey(); err != nil {
		t.Fatalf("PublicKey: %v", err)
	}

	// reusable and stable across serialization
	out, err := c.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	c2, err := FromJSON(out)
	if err != nil {
		t.Fatalf("FromJSON(ToJSON): %v", err)
	}
	if c2.AccountID() != c.AccountID() || !bytes.Equal(c2.SigningKey(), c.SigningKey()) || !bytes.Equal(c2.PrivateKey(), c.PrivateKey()) {
		t.Fatalf("round trip mismatch")
	}
}

func TestFromJSON_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":        `{`,
		"missing account": `{"segmentId":1,"signingPrivateKey":"AA==","devicePrivateKey":"AA=="}`,
		"missing segment": `{"accountId":"a","signingPrivateKey":"AA==","devicePrivateKey":"AA=="}`,
		"bad base64":      `{"accountId":"a","segmentId":1,"signingPrivateKey":"!!","devicePrivateKey":"YZRlDSkM+JxxSXCtWCVK693qfhNqcbhaPrtHs92uD4w="}`,
		"short signing":   `{"accountId":"a","segmentId":1,"signingPrivateKey":"AAAA","devicePrivateKey":"YZRlDSkM+JxxSXCtWCVK693qfhNqcbhaPrtHs92uD4w="}`,
		"short device":    `{"accountId":"a","segmentId":1,"signingPrivateKey":"uKHa70uwLVG3IU7XodT2kla/PuC/En8PkRCjMMc9ZE7HFrOV+g0vOwATp/CiXp65mVas0K6TSl/RaxDGlcmsnA==","devicePrivateKey":"AAAA"}`,
		"bad account":     `{"accountId":"a*b","segmentId":1,"signingPrivateKey":"uKHa70uwLVG3IU7XodT2kla/PuC/En8PkRCjMMc9ZE7HFrOV+g0vOwATp/CiXp65mVas0K6TSl/RaxDGlcmsnA==","devicePrivateKey":"YZRlDSkM+JxxSXCtWCVK693qfhNqcbhaPrtHs92uD4w="}`,
		"segment type":    `{"accountId":"a","segmentId":"1","signingPrivateKey":"AA==","devicePrivateKey":"AA=="}`,
	}
	for name, in := range cases {
		_, err := FromJSON([]byte(in))
		var pe *errs.ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: want ParseError, got %v", name, err)
		}
	}
}

func TestAddResult_Context(t *testing.T) {
	t.Parallel()
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	u, _ := model.ValidateUserID("dana")
	r := AddResult{AccountID: u, SegmentID: 3, DeviceID: 9, SigningPrivateKey: sk, DevicePrivateKey: make([]byte, 32)}
	c, err := r.Context()
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if !bytes.Equal(c.SigningPublicKey(), sk.Public().(ed25519.PublicKey)) {
		t.Fatalf("signing public key mismatch")
	}
}
