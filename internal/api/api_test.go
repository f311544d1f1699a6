package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/and161185/ironkeep/internal/errs"
)

func TestCodecRegistered(t *testing.T) {
	t.Parallel()

	c := encoding.GetCodec(CodecName)
	if c == nil {
		t.Fatalf("json codec not registered")
	}
	in := &GroupCreateRequest{ID: "g1", Owner: "alice", PublicKey: []byte{1, 2}, Users: []GroupUser{{AccountID: "alice", IsAdmin: true}}}
	b, err := c.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out GroupCreateRequest
	if err := c.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != "g1" || len(out.Users) != 1 || !out.Users[0].IsAdmin || string(out.PublicKey) != "\x01\x02" {
		t.Fatalf("round trip: %+v", out)
	}
}

func TestBearer(t *testing.T) {
	t.Parallel()

	if _, ok := BearerFromContext(context.Background()); ok {
		t.Fatalf("empty context must have no bearer")
	}
	tok, ok := BearerFromContext(WithBearer(context.Background(), "abc"))
	if !ok || tok != "abc" {
		t.Fatalf("bearer: %q %v", tok, ok)
	}
}

func TestStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("load: %w", errs.ErrNotFound), codes.NotFound},
		{errs.ErrAlreadyExists, codes.AlreadyExists},
		{errs.ErrAccessDenied, codes.PermissionDenied},
		{errs.ErrUnauthorized, codes.Unauthenticated},
		{errs.ErrRateLimited, codes.ResourceExhausted},
		{errs.Invalid("group id", "x*", "bad chars"), codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.code {
			t.Errorf("Code(%v) = %v, want %v", tc.err, got, tc.code)
		}
	}

	back := FromStatus(status.Error(codes.PermissionDenied, "not an admin"))
	if !errors.Is(back, errs.ErrAccessDenied) || back.Error() != "access denied: not an admin" {
		t.Fatalf("FromStatus: %v", back)
	}
	dup := FromStatus(status.Error(codes.NotFound, "not found: group g1"))
	if dup.Error() != "not found: group g1" {
		t.Fatalf("sentinel prefix must not repeat: %v", dup)
	}
	if !errors.Is(FromStatus(status.Error(codes.DeadlineExceeded, "")), errs.ErrTimeout) {
		t.Fatalf("deadline must map to ErrTimeout")
	}
	if FromStatus(back) != back {
		t.Fatalf("FromStatus must be idempotent")
	}
	plain := errors.New("x")
	if FromStatus(plain) != plain || FromStatus(nil) != nil {
		t.Fatalf("non-status errors pass through")
	}
	internal := status.Error(codes.Internal, "db down")
	if FromStatus(internal) != internal {
		t.Fatalf("unmapped codes pass through")
	}
}

func TestFailureCodes(t *testing.T) {
	t.Parallel()

	f := Failure{ID: "bob", Code: FailureCode(fmt.Errorf("%w: already a member", errs.ErrAlreadyExists)), Message: "already a member"}
	if f.Code != FailAlreadyExists {
		t.Fatalf("code: %s", f.Code)
	}
	err := FailureError(f)
	if !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("sentinel lost: %v", err)
	}
	if FailureError(Failure{Code: FailInternal, Message: "boom"}).Error() != "boom" {
		t.Fatalf("internal failure message")
	}
	if FullMethod(MethodGroupCreate) != "/ironkeep.v1.KeyService/GroupCreate" {
		t.Fatalf("full method: %s", FullMethod(MethodGroupCreate))
	}
}
