package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/and161185/ironkeep/internal/crypto/clientcrypto"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
	"github.com/and161185/ironkeep/internal/repository"
)

// Role selects which group relation an edit applies to.
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "member"
}

func (r Role) held(gu model.GroupUser) bool {
	if r == RoleAdmin {
		return gu.IsAdmin
	}
	return gu.IsMember
}

func (r Role) set(gu *model.GroupUser, v bool) {
	if r == RoleAdmin {
		gu.IsAdmin = v
	} else {
		gu.IsMember = v
	}
}

// GroupService defines group management with admin-only edits.
type GroupService interface {
	Create(ctx context.Context, p Principal, g model.Group, users []model.GroupUser) (*model.GroupView, error)
	List(ctx context.Context, p Principal) ([]model.GroupView, error)
	// Get returns the group; rosters and the caller key are only included for admins and members.
	Get(ctx context.Context, p Principal, id string) (*model.GroupView, error)
	UpdateName(ctx context.Context, p Principal, id string, name *string) (*model.GroupView, error)
	Delete(ctx context.Context, p Principal, id string) error
	// AddUsers grants role to each account; keys holds the group key wrapped to it.
	AddUsers(ctx context.Context, p Principal, id string, role Role, keys map[string][]byte) (model.AccessEdit, error)
	RemoveUsers(ctx context.Context, p Principal, id string, role Role, accounts []string) (model.AccessEdit, error)
	PublicKeys(ctx context.Context, ids []string) (map[string][]byte, error)
}

type GroupServiceImpl struct {
	groups repository.GroupRepository
}

// NewGroupService constructs GroupService.
func NewGroupService(groups repository.GroupRepository) *GroupServiceImpl {
	return &GroupServiceImpl{groups: groups}
}

// Create stores a group with its complete roster. The owner must be an admin.
func (s *GroupServiceImpl) Create(ctx context.Context, p Principal, g model.Group, users []model.GroupUser) (*model.GroupView, error) {
	if _, err := model.ValidateGroupID(g.ID); err != nil {
		return nil, err
	}
	name, err := model.OptGroupName(g.Name)
	if err != nil {
		return nil, err
	}
	if name != nil {
		v := name.Name()
		g.Name = &v
	}
	if _, err := model.ValidateUserID(g.Owner); err != nil {
		return nil, err
	}
	if len(g.PublicKey) != clientcrypto.PublicKeyLen {
		return nil, errs.Invalid("group public key", "", "must be 32 bytes")
	}

	seen := make(map[string]bool, len(users))
	ownerIsAdmin := false
	for i := range users {
		u := &users[i]
		if _, err := model.ValidateUserID(u.AccountID); err != nil {
			return nil, err
		}
		if seen[u.AccountID] {
			return nil, errs.Invalid("group roster", u.AccountID, "lists the same user twice")
		}
		seen[u.AccountID] = true
		if !u.IsAdmin && !u.IsMember {
			return nil, errs.Invalid("group roster", u.AccountID, "user is neither admin nor member")
		}
		if len(u.WrappedKey) == 0 {
			return nil, errs.Invalid("group roster", u.AccountID, "missing wrapped group key")
		}
		u.GroupID = g.ID
		if u.AccountID == g.Owner && u.IsAdmin {
			ownerIsAdmin = true
		}
	}
	if !ownerIsAdmin {
		return nil, errs.Invalid("group owner", g.Owner, "the owner must be one of the admins")
	}

	g.SegmentID = p.SegmentID
	if err := s.groups.Create(ctx, &g, users); err != nil {
		return nil, err
	}
	// The creator supplied the roster, so it is returned even when the
	// creator holds no role in the group.
	v := view(g, users, p.AccountID)
	v.Admins, v.Members = roster(users)
	return &v, nil
}

// roster returns the sorted admin and member lists.
func roster(rows []model.GroupUser) (admins, members []string) {
	admins, members = []string{}, []string{}
	for _, r := range rows {
		if r.IsAdmin {
			admins = append(admins, r.AccountID)
		}
		if r.IsMember {
			members = append(members, r.AccountID)
		}
	}
	sort.Strings(admins)
	sort.Strings(members)
	return admins, members
}

// view projects a group and its rows onto what caller may see.
func view(g model.Group, rows []model.GroupUser, caller string) model.GroupView {
	v := model.GroupView{Group: g}
	for _, r := range rows {
		if r.AccountID == caller {
			v.IsAdmin, v.IsMember = r.IsAdmin, r.IsMember
			v.CallerKey = r.WrappedKey
		}
	}
	if v.IsAdmin || v.IsMember {
		v.Admins, v.Members = roster(rows)
	}
	return v
}

func (s *GroupServiceImpl) List(ctx context.Context, p Principal) ([]model.GroupView, error) {
	return s.groups.ListForUser(ctx, p.AccountID)
}

func (s *GroupServiceImpl) load(ctx context.Context, id string) (*model.Group, []model.GroupUser, error) {
	g, err := s.groups.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.groups.Users(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return g, rows, nil
}

func (s *GroupServiceImpl) Get(ctx context.Context, p Principal, id string) (*model.GroupView, error) {
	g, rows, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	v := view(*g, rows, p.AccountID)
	return &v, nil
}

// requireAdmin loads the group and fails unless the caller administers it.
func (s *GroupServiceImpl) requireAdmin(ctx context.Context, p Principal, id string) (*model.Group, []model.GroupUser, error) {
	g, rows, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range rows {
		if r.AccountID == p.AccountID && r.IsAdmin {
			return g, rows, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: not an admin of group %s", errs.ErrAccessDenied, id)
}

func (s *GroupServiceImpl) UpdateName(ctx context.Context, p Principal, id string, name *string) (*model.GroupView, error) {
	n, err := model.OptGroupName(name)
	if err != nil {
		return nil, err
	}
	var stored *string
	if n != nil {
		v := n.Name()
		stored = &v
	}
	_, rows, err := s.requireAdmin(ctx, p, id)
	if err != nil {
		return nil, err
	}
	g, err := s.groups.UpdateName(ctx, id, stored)
	if err != nil {
		return nil, err
	}
	v := view(*g, rows, p.AccountID)
	return &v, nil
}

func (s *GroupServiceImpl) Delete(ctx context.Context, p Principal, id string) error {
	if _, _, err := s.requireAdmin(ctx, p, id); err != nil {
		return err
	}
	return s.groups.Delete(ctx, id)
}

// AddUsers applies role per account; failures are reported per account.
func (s *GroupServiceImpl) AddUsers(ctx context.Context, p Principal, id string, role Role, keys map[string][]byte) (model.AccessEdit, error) {
	_, rows, err := s.requireAdmin(ctx, p, id)
	if err != nil {
		return model.AccessEdit{}, err
	}
	existing := make(map[string]model.GroupUser, len(rows))
	for _, r := range rows {
		existing[r.AccountID] = r
	}

	accounts := make([]string, 0, len(keys))
	for a := range keys {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)

	var edit model.AccessEdit
	for _, a := range accounts {
		if _, err := model.ValidateUserID(a); err != nil {
			edit.Failed = append(edit.Failed, model.Failure{Target: userTarget(a), Err: err})
			continue
		}
		row, ok := existing[a]
		switch {
		case ok && role.held(row):
			edit.Failed = append(edit.Failed, model.Failure{Target: userTarget(a), Err: fmt.Errorf("%w: already a group %s", errs.ErrAlreadyExists, role)})
			continue
		case !ok && len(keys[a]) == 0:
			edit.Failed = append(edit.Failed, model.Failure{Target: userTarget(a), Err: fmt.Errorf("%w: missing wrapped group key", errs.ErrInvalidArgument)})
			continue
		case !ok:
			row = model.GroupUser{GroupID: id, AccountID: a, WrappedKey: keys[a]}
		}
		role.set(&row, true)
		if err := s.groups.PutUser(ctx, row); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				edit.Failed = append(edit.Failed, model.Failure{Target: userTarget(a), Err: fmt.Errorf("%w: user does not exist", errs.ErrNotFound)})
				continue
			}
			return model.AccessEdit{}, err
		}
		edit.Succeeded = append(edit.Succeeded, userTarget(a))
	}
	return edit, nil
}

// RemoveUsers drops role per account. The owner always stays an admin.
func (s *GroupServiceImpl) RemoveUsers(ctx context.Context, p Principal, id string, role Role, accounts []string) (model.AccessEdit, error) {
	g, rows, err := s.requireAdmin(ctx, p, id)
	if err != nil {
		return model.AccessEdit{}, err
	}
	existing := make(map[string]model.GroupUser, len(rows))
	for _, r := range rows {
		existing[r.AccountID] = r
	}

	var edit model.AccessEdit
	done := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if done[a] {
			continue
		}
		done[a] = true
		row, ok := existing[a]
		if !ok || !role.held(row) {
			edit.Failed = append(edit.Failed, model.Failure{Target: userTarget(a), Err: fmt.Errorf("%w: not a group %s", errs.ErrNotFound, role)})
			continue
		}
		if role == RoleAdmin && a == g.Owner {
			edit.Failed = append(edit.Failed, model.Failure{Target: userTarget(a), Err: fmt.Errorf("%w: the group owner cannot be removed as admin", errs.ErrAccessDenied)})
			continue
		}
		role.set(&row, false)
		if row.IsAdmin || row.IsMember {
			err = s.groups.PutUser(ctx, row)
		} else {
			err = s.groups.DeleteUser(ctx, id, a)
		}
		if err != nil {
			return model.AccessEdit{}, err
		}
		edit.Succeeded = append(edit.Succeeded, userTarget(a))
	}
	return edit, nil
}

func userTarget(id string) model.Target { return model.Target{Kind: model.GranteeUser, ID: id} }

func (s *GroupServiceImpl) PublicKeys(ctx context.Context, ids []string) (map[string][]byte, error) {
	return s.groups.PublicKeys(ctx, ids)
}
