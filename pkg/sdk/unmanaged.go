package sdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/ironkeep/internal/crypto/clientcrypto"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

// DocumentEncryptUnmanaged encrypts data without storing anything on the
// backend. The wrapped keys are returned in EncryptedDEKs and must be kept
// alongside the ciphertext.
func (s *Session) DocumentEncryptUnmanaged(ctx context.Context, data []byte, opts model.DocumentEncryptOpts) (model.DocumentEncryptUnmanagedResult, error) {
	const op = "documentEncryptUnmanaged"
	users, groups, err := opts.Grantees(s.accountID())
	if err != nil {
		return model.DocumentEncryptUnmanagedResult{}, errs.Op(op, err)
	}
	id, dek, sealed, err := s.sealNew(opts, data)
	if err != nil {
		return model.DocumentEncryptUnmanagedResult{}, errs.Op(op, err)
	}
	w, err := s.wrapDEK(ctx, op, id.ID(), dek, users, groups)
	if err != nil {
		return model.DocumentEncryptUnmanagedResult{}, err
	}
	if len(w.edeks) == 0 {
		return model.DocumentEncryptUnmanagedResult{}, errs.Op(op, fmt.Errorf("%w: no grantee exists", errs.ErrInvalidArgument))
	}
	set, err := clientcrypto.EncodeEDEKs(id.ID(), s.dev.SegmentID(), w.edeks)
	if err != nil {
		return model.DocumentEncryptUnmanagedResult{}, errs.Op(op, err)
	}
	grants := make([]model.UserOrGroup, 0, len(w.edeks))
	for _, e := range w.edeks {
		g, err := granteeOf(e)
		if err != nil {
			return model.DocumentEncryptUnmanagedResult{}, errs.Op(op, err)
		}
		grants = append(grants, g)
	}
	return model.DocumentEncryptUnmanagedResult{
		ID:            id,
		EncryptedData: sealed,
		EncryptedDEKs: set,
		Grants:        grants,
		AccessErrs:    w.failed,
	}, nil
}

func granteeOf(e clientcrypto.EncryptedDEK) (model.UserOrGroup, error) {
	if e.Kind == clientcrypto.GranteeUser {
		u, err := model.ValidateUserID(e.ID)
		return model.GranteeUserID(u), err
	}
	g, err := model.ValidateGroupID(e.ID)
	return model.GranteeGroupID(g), err
}

// DocumentDecryptUnmanaged decrypts a document produced by
// DocumentEncryptUnmanaged. A key wrapped to the caller is tried first, then
// keys wrapped to groups the caller is a member of.
func (s *Session) DocumentDecryptUnmanaged(ctx context.Context, data, edeks []byte) (model.DocumentDecryptUnmanagedResult, error) {
	const op = "documentDecryptUnmanaged"
	id, header, body, err := splitDocument(data)
	if err != nil {
		return model.DocumentDecryptUnmanagedResult{}, errs.Op(op, err)
	}
	docID, _, set, err := clientcrypto.DecodeEDEKs(edeks)
	if err != nil {
		return model.DocumentDecryptUnmanagedResult{}, errs.Op(op, &errs.ParseError{What: "encrypted deks", Err: err})
	}
	if docID != id.ID() {
		return model.DocumentDecryptUnmanagedResult{}, errs.Op(op, &errs.ParseError{
			What: "encrypted deks",
			Err:  fmt.Errorf("keys are for document %q, data is %q", docID, id.ID()),
		})
	}

	dek, via, err := s.unmanagedDEK(ctx, op, id, set)
	if err != nil {
		return model.DocumentDecryptUnmanagedResult{}, err
	}
	plain, err := clientcrypto.OpenDocument(dek, header, body)
	if err != nil {
		return model.DocumentDecryptUnmanagedResult{}, errs.Op(op, &errs.ParseError{What: "document body", Err: err})
	}
	return model.DocumentDecryptUnmanagedResult{ID: id, DecryptedData: plain, AccessVia: via}, nil
}

func (s *Session) unmanagedDEK(ctx context.Context, op string, id model.DocumentID, set []clientcrypto.EncryptedDEK) ([]byte, model.UserOrGroup, error) {
	aad := clientcrypto.DEKAAD(id.ID())
	me := s.accountID()
	for _, e := range set {
		if e.Kind == clientcrypto.GranteeUser && e.ID == me.ID() {
			dek, err := sealedUnwrap(s.userKey, e.EDEK, aad)
			if err != nil {
				return nil, model.UserOrGroup{}, errs.Op(op, err)
			}
			return dek, model.GranteeUserID(me), nil
		}
	}
	for _, e := range set {
		if e.Kind != clientcrypto.GranteeGroup {
			continue
		}
		gid, err := model.ValidateGroupID(e.ID)
		if err != nil {
			continue
		}
		g, err := s.getGroup(ctx, op, gid)
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrAccessDenied) {
			continue
		}
		if err != nil {
			return nil, model.UserOrGroup{}, err
		}
		if !g.IsMember || len(g.EncryptedKey) == 0 {
			continue
		}
		gpriv, err := s.groupPrivateKey(g.ID, g.EncryptedKey)
		if err != nil {
			return nil, model.UserOrGroup{}, errs.Op(op, err)
		}
		dek, err := sealedUnwrap(gpriv, e.EDEK, aad)
		if err != nil {
			return nil, model.UserOrGroup{}, errs.Op(op, err)
		}
		return dek, model.GranteeGroupID(gid), nil
	}
	return nil, model.UserOrGroup{}, errs.Op(op, fmt.Errorf("%w: no key in the set is usable by %s", errs.ErrAccessDenied, me))
}
