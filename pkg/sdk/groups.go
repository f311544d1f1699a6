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

// GroupCreate creates a group with a fresh key pair. The group private key is
// wrapped to every admin and member; all of them must exist.
func (s *Session) GroupCreate(ctx context.Context, opts model.GroupCreateOpts) (model.GroupCreateResult, error) {
	const op = "groupCreate"
	req, err := opts.Standardize(s.accountID())
	if err != nil {
		return model.GroupCreateResult{}, errs.Op(op, err)
	}
	id := model.GroupID{}
	if req.ID != nil {
		id = *req.ID
	} else if id, err = model.GenerateGroupID(); err != nil {
		return model.GroupCreateResult{}, errs.Op(op, err)
	}

	everyone := model.DedupUsers(req.Admins, req.Members)
	pubs, err := s.publicKeys(ctx, op, model.GranteeUser, model.UserIDStrings(everyone))
	if err != nil {
		return model.GroupCreateResult{}, err
	}
	var missing []string
	for _, u := range everyone {
		if _, ok := pubs[u.ID()]; !ok {
			missing = append(missing, u.ID())
		}
	}
	if len(missing) > 0 {
		return model.GroupCreateResult{}, errs.Op(op, fmt.Errorf("%w: users %v", errs.ErrNotFound, missing))
	}

	kp, err := clientcrypto.GenerateKeyPair()
	if err != nil {
		return model.GroupCreateResult{}, errs.Op(op, err)
	}
	users := make([]api.GroupUser, 0, len(everyone))
	for _, u := range everyone {
		wrapped, err := clientcrypto.WrapKey(pubs[u.ID()], kp.Private, clientcrypto.GroupKeyAAD(id.ID()))
		if err != nil {
			return model.GroupCreateResult{}, errs.Op(op, err)
		}
		users = append(users, api.GroupUser{
			AccountID:  u.ID(),
			IsAdmin:    model.ContainsUser(req.Admins, u),
			IsMember:   model.ContainsUser(req.Members, u),
			WrappedKey: wrapped,
		})
	}
	var name *string
	if req.Name != nil {
		n := req.Name.Name()
		name = &n
	}
	g, err := call(ctx, s, op, func(ctx context.Context) (*api.Group, error) {
		return s.backend.GroupCreate(ctx, &api.GroupCreateRequest{
			ID:            id.ID(),
			Name:          name,
			Owner:         req.Owner.ID(),
			PublicKey:     kp.Public,
			NeedsRotation: req.NeedsRotation,
			Users:         users,
		})
	})
	if err != nil {
		return model.GroupCreateResult{}, err
	}
	s.keys.put(model.GranteeGroup, g.ID, g.PublicKey)
	res, err := convert.FromAPIGroupCreated(g)
	return res, errs.Op(op, err)
}

// GroupList lists the groups the caller administers or belongs to.
func (s *Session) GroupList(ctx context.Context) (model.GroupListResult, error) {
	const op = "groupList"
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.GroupListResponse, error) {
		return s.backend.GroupList(ctx, &api.Empty{})
	})
	if err != nil {
		return model.GroupListResult{}, err
	}
	res, err := convert.FromAPIGroupList(resp)
	return res, errs.Op(op, err)
}

// GroupGetMetadata returns a group. Admin and member lists are only filled for
// admins and members.
func (s *Session) GroupGetMetadata(ctx context.Context, id model.GroupID) (model.GroupGetResult, error) {
	const op = "groupGetMetadata"
	g, err := s.getGroup(ctx, op, id)
	if err != nil {
		return model.GroupGetResult{}, err
	}
	res, err := convert.FromAPIGroupGet(g)
	return res, errs.Op(op, err)
}

func (s *Session) getGroup(ctx context.Context, op string, id model.GroupID) (*api.Group, error) {
	g, err := call(ctx, s, op, func(ctx context.Context) (*api.Group, error) {
		return s.backend.GroupGet(ctx, &api.GroupIDRequest{ID: id.ID()})
	})
	if err != nil {
		return nil, err
	}
	s.keys.put(model.GranteeGroup, g.ID, g.PublicKey)
	return g, nil
}

// groupPrivateKey unwraps the caller's copy of a group private key.
func (s *Session) groupPrivateKey(groupID string, wrapped []byte) ([]byte, error) {
	if len(wrapped) == 0 {
		return nil, fmt.Errorf("%w: no key for group %s", errs.ErrAccessDenied, groupID)
	}
	return sealedUnwrap(s.userKey, wrapped, clientcrypto.GroupKeyAAD(groupID))
}

// GroupUpdateName sets or, with nil, clears the group name. Admin only.
func (s *Session) GroupUpdateName(ctx context.Context, id model.GroupID, name *model.GroupName) (model.GroupMeta, error) {
	const op = "groupUpdateName"
	var raw *string
	if name != nil {
		n := name.Name()
		raw = &n
	}
	g, err := call(ctx, s, op, func(ctx context.Context) (*api.Group, error) {
		return s.backend.GroupUpdateName(ctx, &api.GroupUpdateNameRequest{ID: id.ID(), Name: raw})
	})
	if err != nil {
		return model.GroupMeta{}, err
	}
	res, err := convert.FromAPIGroupMeta(*g)
	return res, errs.Op(op, err)
}

// GroupDelete removes a group. Admin only.
func (s *Session) GroupDelete(ctx context.Context, id model.GroupID) (model.GroupID, error) {
	const op = "groupDelete"
	if _, err := call(ctx, s, op, func(ctx context.Context) (*api.Empty, error) {
		return s.backend.GroupDelete(ctx, &api.GroupIDRequest{ID: id.ID()})
	}); err != nil {
		return model.GroupID{}, err
	}
	return id, nil
}

// GroupAddMembers wraps the group key to users and adds them as members. Admin only.
func (s *Session) GroupAddMembers(ctx context.Context, id model.GroupID, users []model.UserID) (model.GroupAccessEditResult, error) {
	return s.addGroupUsers(ctx, "groupAddMembers", id, users, s.backend.GroupAddMembers)
}

// GroupAddAdmins wraps the group key to users and adds them as admins. Admin only.
func (s *Session) GroupAddAdmins(ctx context.Context, id model.GroupID, users []model.UserID) (model.GroupAccessEditResult, error) {
	return s.addGroupUsers(ctx, "groupAddAdmins", id, users, s.backend.GroupAddAdmins)
}

type addUsersFunc func(context.Context, *api.GroupAddUsersRequest) (*api.AccessEditResponse, error)

func (s *Session) addGroupUsers(ctx context.Context, op string, id model.GroupID, users []model.UserID, add addUsersFunc) (model.GroupAccessEditResult, error) {
	g, err := s.getGroup(ctx, op, id)
	if err != nil {
		return model.GroupAccessEditResult{}, err
	}
	if !g.IsAdmin {
		return model.GroupAccessEditResult{}, errs.Op(op, fmt.Errorf("%w: not an admin of %s", errs.ErrAccessDenied, id))
	}
	groupKey, err := s.groupPrivateKey(g.ID, g.EncryptedKey)
	if err != nil {
		return model.GroupAccessEditResult{}, errs.Op(op, err)
	}
	users = model.DedupUsers(users)
	pubs, err := s.publicKeys(ctx, op, model.GranteeUser, model.UserIDStrings(users))
	if err != nil {
		return model.GroupAccessEditResult{}, err
	}

	var local []model.GroupAccessEditErr
	keys := make(map[string][]byte, len(users))
	for _, u := range users {
		pub, ok := pubs[u.ID()]
		if !ok {
			local = append(local, model.GroupAccessEditErr{User: u, Err: fmt.Errorf("%w: user %s", errs.ErrNotFound, u)})
			continue
		}
		wrapped, err := clientcrypto.WrapKey(pub, groupKey, clientcrypto.GroupKeyAAD(g.ID))
		if err != nil {
			return model.GroupAccessEditResult{}, errs.Op(op, err)
		}
		keys[u.ID()] = wrapped
	}
	if len(keys) == 0 {
		return model.GroupAccessEditResult{Failed: local}, nil
	}
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.AccessEditResponse, error) {
		return add(ctx, &api.GroupAddUsersRequest{GroupID: g.ID, Keys: keys})
	})
	if err != nil {
		return model.GroupAccessEditResult{}, err
	}
	res, err := convert.FromAPIGroupAccessEdit(resp)
	if err != nil {
		return model.GroupAccessEditResult{}, errs.Op(op, err)
	}
	res.Failed = append(res.Failed, local...)
	return res, nil
}

// GroupRemoveMembers removes members. Admin only.
func (s *Session) GroupRemoveMembers(ctx context.Context, id model.GroupID, users []model.UserID) (model.GroupAccessEditResult, error) {
	return s.removeGroupUsers(ctx, "groupRemoveMembers", id, users, s.backend.GroupRemoveMembers)
}

// GroupRemoveAdmins removes admins. The owner cannot be removed. Admin only.
func (s *Session) GroupRemoveAdmins(ctx context.Context, id model.GroupID, users []model.UserID) (model.GroupAccessEditResult, error) {
	return s.removeGroupUsers(ctx, "groupRemoveAdmins", id, users, s.backend.GroupRemoveAdmins)
}

type removeUsersFunc func(context.Context, *api.GroupRemoveUsersRequest) (*api.AccessEditResponse, error)

func (s *Session) removeGroupUsers(ctx context.Context, op string, id model.GroupID, users []model.UserID, remove removeUsersFunc) (model.GroupAccessEditResult, error) {
	resp, err := call(ctx, s, op, func(ctx context.Context) (*api.AccessEditResponse, error) {
		return remove(ctx, &api.GroupRemoveUsersRequest{GroupID: id.ID(), Users: model.UserIDStrings(model.DedupUsers(users))})
	})
	if err != nil {
		return model.GroupAccessEditResult{}, err
	}
	res, err := convert.FromAPIGroupAccessEdit(resp)
	return res, errs.Op(op, err)
}
