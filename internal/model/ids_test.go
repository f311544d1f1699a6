package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/and161185/ironkeep/internal/errs"
)

func TestValidateUserID(t *testing.T) {
	t.Parallel()

	ok := []string{
		"hello",
		"abcABC012_.$#|@/:;=+'-91e078f0-a60c-4251-8652-dd498c07a8f4",
		strings.Repeat("a", MaxIDLen),
	}
	for _, in := range ok {
		u, err := ValidateUserID(in)
		if err != nil {
			t.Fatalf("ValidateUserID(%q): %v", in, err)
		}
		if u.ID() != in {
			t.Fatalf("ID()=%q, want %q", u.ID(), in)
		}
	}

	bad := []string{"hello*^", "", "   ", "a b", "ümlaut", strings.Repeat("a", MaxIDLen+1)}
	for _, in := range bad {
		_, err := ValidateUserID(in)
		if err == nil {
			t.Fatalf("ValidateUserID(%q): want error", in)
		}
		var ve *errs.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("want ValidationError, got %T", err)
		}
		if len(err.Error()) <= 10 {
			t.Fatalf("message too terse: %q", err.Error())
		}
	}
}

func TestValidateUserID_Trims(t *testing.T) {
	t.Parallel()
	u, err := ValidateUserID("  bob  ")
	if err != nil {
		t.Fatalf("ValidateUserID: %v", err)
	}
	if u.ID() != "bob" {
		t.Fatalf("got %q", u.ID())
	}
}

func TestIdentifierEquality(t *testing.T) {
	t.Parallel()
	a, _ := ValidateGroupID("g-1")
	b, _ := ValidateGroupID("g-1")
	c, _ := ValidateGroupID("g-2")
	if a != b || a == c || a != a {
		t.Fatalf("value equality broken")
	}
}

func TestValidateGroupName(t *testing.T) {
	t.Parallel()
	if _, err := ValidateGroupName("My Group ☃"); err != nil {
		t.Fatalf("ValidateGroupName: %v", err)
	}
	for _, in := range []string{"", " ", "bad\nname", strings.Repeat("ж", MaxNameLen+1)} {
		if _, err := ValidateGroupName(in); err == nil {
			t.Fatalf("ValidateGroupName(%q): want error", in)
		}
	}
}

func TestGeneratedIDsValidate(t *testing.T) {
	t.Parallel()
	g, err := GenerateGroupID()
	if err != nil {
		t.Fatalf("GenerateGroupID: %v", err)
	}
	if len(g.ID()) != 32 {
		t.Fatalf("len=%d", len(g.ID()))
	}
	if _, err := ValidateGroupID(g.ID()); err != nil {
		t.Fatalf("generated id does not validate: %v", err)
	}
	d, _ := GenerateDocumentID()
	if d == (DocumentID{}) || d.ID() == g.ID() {
		t.Fatalf("bad document id %q", d.ID())
	}
}

func TestValidateDeviceID(t *testing.T) {
	t.Parallel()
	if _, err := ValidateDeviceID(0); err == nil {
		t.Fatalf("want error for 0")
	}
	if id, err := ValidateDeviceID(42); err != nil || id != 42 {
		t.Fatalf("got %d, %v", id, err)
	}
}

func TestUserIDText(t *testing.T) {
	t.Parallel()
	var u UserID
	if err := u.UnmarshalText([]byte("carol")); err != nil || u.ID() != "carol" {
		t.Fatalf("UnmarshalText: %v %q", err, u.ID())
	}
	if err := u.UnmarshalText([]byte("c*")); err == nil {
		t.Fatalf("want error")
	}
}

func TestDedupUsers(t *testing.T) {
	t.Parallel()
	a, _ := ValidateUserID("a")
	b, _ := ValidateUserID("b")
	got := DedupUsers([]UserID{a}, []UserID{b, a}, []UserID{b})
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("got %v", got)
	}
}
