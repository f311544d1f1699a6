package sdk

import (
	"context"
	"fmt"

	"github.com/and161185/ironkeep/internal/api"
	"github.com/and161185/ironkeep/internal/convert"
	"github.com/and161185/ironkeep/internal/crypto/clientcrypto"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

// wrapped is a DEK wrapped to the grantees that exist, plus the ones that do not.
type wrapped struct {
	edeks  []clientcrypto.EncryptedDEK
	failed []model.DocAccessEditErr
}

// wrapDEK wraps dek to every user and group with a known public key.
func (s *Session) wrapDEK(ctx context.Context, op, docID string, dek []byte, users []model.UserID, groups []model.GroupID) (wrapped, error) {
	var out wrapped
	userKeys, err := s.publicKeys(ctx, op, model.GranteeUser, model.UserIDStrings(users))
	if err != nil {
		return out, err
	}
	groupKeys, err := s.publicKeys(ctx, op, model.GranteeGroup, model.GroupIDStrings(groups))
	if err != nil {
		return out, err
	}
	add := func(target model.UserOrGroup, pub []byte, ok bool) error {
		if !ok {
			out.failed = append(out.failed, model.DocAccessEditErr{
				Target: target,
				Err:    fmt.Errorf("%w: %s", errs.ErrNotFound, target),
			})
			return nil
		}
		edek, err := clientcrypto.WrapKey(pub, dek, clientcrypto.DEKAAD(docID))
		if err != nil {
			return err
		}
		out.edeks = append(out.edeks, clientcrypto.EncryptedDEK{Kind: target.Kind(), ID: target.ID(), EDEK: edek})
		return nil
	}
	for _, u := range users {
		pub, ok := userKeys[u.ID()]
		if err := add(model.GranteeUserID(u), pub, ok); err != nil {
			return out, errs.Op(op, err)
		}
	}
	for _, g := range groups {
		pub, ok := groupKeys[g.ID()]
		if err := add(model.GranteeGroupID(g), pub, ok); err != nil {
			return out, errs.Op(op, err)
		}
	}
	return out, nil
}

func toAPIGrants(edeks []clientcrypto.EncryptedDEK) []api.Grant {
	out := make([]api.Grant, 0, len(edeks))
	for _, e := range edeks {
		out = append(out, api.Grant{Kind: e.Kind, ID: e.ID, EDEK: e.EDEK})
	}
	return out
}

func nameOf(n *model.DocumentName) *string {
	if n == nil {
		return nil
	}
	v := n.Name()
	return &v
}

// sealNew picks the document id, draws a DEK and seals data under a fresh header.
func (s *Session) sealNew(opts model.DocumentEncryptOpts, data []byte) (model.DocumentID, []byte, []byte, error) {
	id := model.DocumentID{}
	if opts.ID != nil {
		id = *opts.ID
	} else {
		var err error
		if id, err = model.GenerateDocumentID(); err != nil {
			return id, nil, nil, err
		}
	}
	dek, err := clientcrypto.NewDEK()
	if err != nil {
		return id, nil, nil, err
	}
	sealed, err := s.seal(id, dek, data)
	return id, dek, sealed, err
}

func (s *Session) seal(id model.DocumentID, dek, data []byte) ([]byte, error) {
	header, err := clientcrypto.EncodeHeader(clientcrypto.DocHeader{DocumentID: id.ID(), SegmentID: s.dev.SegmentID()})
	if err != nil {
		return nil, err
	}
	body, err := clientcrypto.SealDocument(dek, header, data)
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// DocumentEncrypt encrypts data and registers the document and its wrapped
// keys with the backend. Grantees that cannot be granted are reported in
// AccessErrs; at least one grant must succeed.
func (s *Session) DocumentEncrypt(ctx context.Context, data []byte, opts model.DocumentEncryptOpts) (model.DocumentEncryptResult, error) {
	const op = "documentEncrypt"
	users, groups, err := opts.Grantees(s.accountID())
	if err != nil {
		return model.DocumentEncryptResult{}, errs.Op(op, err)
	}
	id, dek, sealed, err := s.sealNew(opts, data)
	if err != nil {
		return model.DocumentEncryptResult{}, errs.Op(op, err)
	}
	w, err := s.wrapDEK(ctx, op, id.ID(), dek, users, groups)
	if err != nil {
		return model.DocumentEncryptResult{}, err
	}
	if len(w.edeks) == 0 {
		return model.DocumentEncryptResult{}, errs.Op(op, fmt.Errorf("%w: no grantee exists", errs.ErrInvalidArgument))
	}
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.DocumentCreateResponse, error) {
		return s.backend.DocumentCreate(ctx, &api.DocumentCreateRequest{ID: id.ID(), Name: nameOf(opts.Name), Grants: toAPIGrants(w.edeks)})
	})
	if err != nil {
		return model.DocumentEncryptResult{}, err
	}
	meta, err := convert.FromAPIDocumentListMeta(resp.Document)
	if err != nil {
		return model.DocumentEncryptResult{}, errs.Op(op, err)
	}
	access, err := convert.FromAPIDocumentAccess(resp.Granted, resp.Failed)
	if err != nil {
		return model.DocumentEncryptResult{}, errs.Op(op, err)
	}
	return model.DocumentEncryptResult{
		ID:            meta.ID,
		Name:          meta.Name,
		Created:       meta.Created,
		LastUpdated:   meta.LastUpdated,
		EncryptedData: sealed,
		Grants:        access.Succeeded,
		AccessErrs:    append(w.failed, access.Failed...),
	}, nil
}

// documentKey fetches and unwraps the caller's DEK of a managed document.
func (s *Session) documentKey(ctx context.Context, op string, id model.DocumentID) (*api.DocumentKeyResponse, []byte, error) {
	k, err := call(ctx, s, op, func(ctx context.Context) (*api.DocumentKeyResponse, error) {
		return s.backend.DocumentKey(ctx, &api.DocumentIDRequest{ID: id.ID()})
	})
	if err != nil {
		return nil, nil, err
	}
	priv := s.userKey
	if k.Kind == model.GranteeGroup {
		if priv, err = s.groupPrivateKey(k.GranteeID, k.GroupKey); err != nil {
			return nil, nil, errs.Op(op, err)
		}
	}
	dek, err := sealedUnwrap(priv, k.EDEK, clientcrypto.DEKAAD(id.ID()))
	if err != nil {
		return nil, nil, errs.Op(op, err)
	}
	return k, dek, nil
}

func splitDocument(data []byte) (model.DocumentID, []byte, []byte, error) {
	h, raw, body, err := clientcrypto.SplitDocument(data)
	if err != nil {
		return model.DocumentID{}, nil, nil, &errs.ParseError{What: "encrypted document", Err: err}
	}
	id, err := model.ValidateDocumentID(h.DocumentID)
	if err != nil {
		return model.DocumentID{}, nil, nil, &errs.ParseError{What: "encrypted document", Err: err}
	}
	return id, raw, body, nil
}

// DocumentDecrypt recovers the plaintext of a managed document and its stored metadata.
func (s *Session) DocumentDecrypt(ctx context.Context, data []byte) (model.DocumentDecryptResult, error) {
	const op = "documentDecrypt"
	id, header, body, err := splitDocument(data)
	if err != nil {
		return model.DocumentDecryptResult{}, errs.Op(op, err)
	}
	k, dek, err := s.documentKey(ctx, op, id)
	if err != nil {
		return model.DocumentDecryptResult{}, err
	}
	plain, err := clientcrypto.OpenDocument(dek, header, body)
	if err != nil {
		return model.DocumentDecryptResult{}, errs.Op(op, &errs.ParseError{What: "document body", Err: err})
	}
	meta, err := convert.FromAPIDocumentListMeta(k.Document)
	if err != nil {
		return model.DocumentDecryptResult{}, errs.Op(op, err)
	}
	return model.DocumentDecryptResult{
		ID:            meta.ID,
		Name:          meta.Name,
		Created:       meta.Created,
		LastUpdated:   meta.LastUpdated,
		DecryptedData: plain,
	}, nil
}

// DocumentList lists documents the caller can decrypt.
func (s *Session) DocumentList(ctx context.Context) (model.DocumentListResult, error) {
	const op = "documentList"
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.DocumentListResponse, error) {
		return s.backend.DocumentList(ctx, &api.Empty{})
	})
	if err != nil {
		return model.DocumentListResult{}, err
	}
	res, err := convert.FromAPIDocumentList(resp)
	return res, errs.Op(op, err)
}

// DocumentGetMetadata returns a document's metadata and who it is shared with.
func (s *Session) DocumentGetMetadata(ctx context.Context, id model.DocumentID) (model.DocumentMetadataResult, error) {
	const op = "documentGetMetadata"
	d, err := call(ctx, s, op, func(ctx context.Context) (*api.Document, error) {
		return s.backend.DocumentGet(ctx, &api.DocumentIDRequest{ID: id.ID()})
	})
	if err != nil {
		return model.DocumentMetadataResult{}, err
	}
	res, err := convert.FromAPIDocumentMetadata(d)
	return res, errs.Op(op, err)
}

// DocumentGetIDFromBytes reads the document id from an encrypted document's header.
func DocumentGetIDFromBytes(data []byte) (model.DocumentID, error) {
	id, _, _, err := splitDocument(data)
	if err != nil {
		return model.DocumentID{}, errs.Op("documentGetIdFromBytes", err)
	}
	return id, nil
}

// DocumentGetIDFromBytes is the session form of the package function.
func (s *Session) DocumentGetIDFromBytes(data []byte) (model.DocumentID, error) {
	return DocumentGetIDFromBytes(data)
}

// DocumentUpdateBytes re-encrypts new content of an existing document under
// its current key and bumps LastUpdated.
func (s *Session) DocumentUpdateBytes(ctx context.Context, id model.DocumentID, data []byte) (model.DocumentEncryptResult, error) {
	const op = "documentUpdateBytes"
	_, dek, err := s.documentKey(ctx, op, id)
	if err != nil {
		return model.DocumentEncryptResult{}, err
	}
	sealed, err := s.seal(id, dek, data)
	if err != nil {
		return model.DocumentEncryptResult{}, errs.Op(op, err)
	}
	d, err := call(ctx, s, op, func(ctx context.Context) (*api.Document, error) {
		return s.backend.DocumentTouch(ctx, &api.DocumentIDRequest{ID: id.ID()})
	})
	if err != nil {
		return model.DocumentEncryptResult{}, err
	}
	meta, err := convert.FromAPIDocumentListMeta(*d)
	if err != nil {
		return model.DocumentEncryptResult{}, errs.Op(op, err)
	}
	return model.DocumentEncryptResult{
		ID:            meta.ID,
		Name:          meta.Name,
		Created:       meta.Created,
		LastUpdated:   meta.LastUpdated,
		EncryptedData: sealed,
	}, nil
}

// DocumentUpdateName sets or, with nil, clears the document name.
func (s *Session) DocumentUpdateName(ctx context.Context, id model.DocumentID, name *model.DocumentName) (model.DocumentMetadataResult, error) {
	const op = "documentUpdateName"
	d, err := call(ctx, s, op, func(ctx context.Context) (*api.Document, error) {
		return s.backend.DocumentUpdateName(ctx, &api.DocumentUpdateNameRequest{ID: id.ID(), Name: nameOf(name)})
	})
	if err != nil {
		return model.DocumentMetadataResult{}, err
	}
	res, err := convert.FromAPIDocumentMetadata(d)
	return res, errs.Op(op, err)
}

// DocumentGrantAccess wraps the document key to more users and groups.
func (s *Session) DocumentGrantAccess(ctx context.Context, id model.DocumentID, users []model.UserID, groups []model.GroupID) (model.DocumentAccessResult, error) {
	const op = "documentGrantAccess"
	_, dek, err := s.documentKey(ctx, op, id)
	if err != nil {
		return model.DocumentAccessResult{}, err
	}
	w, err := s.wrapDEK(ctx, op, id.ID(), dek, model.DedupUsers(users), model.DedupGroups(groups))
	if err != nil {
		return model.DocumentAccessResult{}, err
	}
	if len(w.edeks) == 0 {
		return model.DocumentAccessResult{Failed: w.failed}, nil
	}
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.AccessEditResponse, error) {
		return s.backend.DocumentGrant(ctx, &api.DocumentGrantRequest{ID: id.ID(), Grants: toAPIGrants(w.edeks)})
	})
	if err != nil {
		return model.DocumentAccessResult{}, err
	}
	res, err := convert.FromAPIDocumentAccess(resp.Succeeded, resp.Failed)
	if err != nil {
		return model.DocumentAccessResult{}, errs.Op(op, err)
	}
	res.Failed = append(res.Failed, w.failed...)
	return res, nil
}

// DocumentRevokeAccess removes grants. Only the document author may revoke.
func (s *Session) DocumentRevokeAccess(ctx context.Context, id model.DocumentID, users []model.UserID, groups []model.GroupID) (model.DocumentAccessResult, error) {
	const op = "documentRevokeAccess"
	var targets []api.Grantee
	for _, u := range model.DedupUsers(users) {
		targets = append(targets, api.Grantee{Kind: model.GranteeUser, ID: u.ID()})
	}
	for _, g := range model.DedupGroups(groups) {
		targets = append(targets, api.Grantee{Kind: model.GranteeGroup, ID: g.ID()})
	}
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.AccessEditResponse, error) {
		return s.backend.DocumentRevoke(ctx, &api.DocumentRevokeRequest{ID: id.ID(), Grantees: targets})
	})
	if err != nil {
		return model.DocumentAccessResult{}, err
	}
	res, err := convert.FromAPIDocumentAccess(resp.Succeeded, resp.Failed)
	return res, errs.Op(op, err)
}
