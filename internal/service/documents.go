package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
	"github.com/and161185/ironkeep/internal/repository"
)

// DocumentKey is the caller's path to a document key.
type DocumentKey struct {
	View  model.DocumentView
	Grant model.DocumentGrant
	// GroupKey is the group private key wrapped to the caller when Grant is a group grant.
	GroupKey []byte
}

// DocumentService defines managed document metadata and grant operations.
type DocumentService interface {
	// Create stores a document authored by the caller. Grants to unknown users
	// or groups are reported, not fatal; at least one grant must be stored.
	Create(ctx context.Context, p Principal, d model.Document, grants []model.DocumentGrant) (*model.DocumentView, model.AccessEdit, error)
	List(ctx context.Context, p Principal) ([]model.DocumentView, error)
	Get(ctx context.Context, p Principal, id string) (*model.DocumentView, error)
	Key(ctx context.Context, p Principal, id string) (*DocumentKey, error)
	Touch(ctx context.Context, p Principal, id string) (*model.DocumentView, error)
	UpdateName(ctx context.Context, p Principal, id string, name *string) (*model.DocumentView, error)
	Grant(ctx context.Context, p Principal, id string, grants []model.DocumentGrant) (model.AccessEdit, error)
	// Revoke is limited to the document author.
	Revoke(ctx context.Context, p Principal, id string, targets []model.Target) (model.AccessEdit, error)
}

type DocumentServiceImpl struct {
	docs   repository.DocumentRepository
	groups repository.GroupRepository
	users  repository.UserRepository
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(docs repository.DocumentRepository, groups repository.GroupRepository, users repository.UserRepository) *DocumentServiceImpl {
	return &DocumentServiceImpl{docs: docs, groups: groups, users: users}
}

func grantTarget(g model.DocumentGrant) model.Target {
	return model.Target{Kind: g.Kind, ID: g.GranteeID}
}

// checkGrants splits grants into storable ones and per-grantee failures.
func (s *DocumentServiceImpl) checkGrants(ctx context.Context, grants []model.DocumentGrant) ([]model.DocumentGrant, []model.Failure, error) {
	var userIDs, groupIDs []string
	var failed []model.Failure
	seen := make(map[model.Target]bool, len(grants))
	candidates := make([]model.DocumentGrant, 0, len(grants))
	for _, g := range grants {
		if seen[grantTarget(g)] {
			continue
		}
		seen[grantTarget(g)] = true
		var err error
		switch g.Kind {
		case model.GranteeUser:
			_, err = model.ValidateUserID(g.GranteeID)
			userIDs = append(userIDs, g.GranteeID)
		case model.GranteeGroup:
			_, err = model.ValidateGroupID(g.GranteeID)
			groupIDs = append(groupIDs, g.GranteeID)
		default:
			err = fmt.Errorf("%w: unknown grantee kind %q", errs.ErrInvalidArgument, g.Kind)
		}
		if err == nil && len(g.EDEK) == 0 {
			err = fmt.Errorf("%w: missing encrypted document key", errs.ErrInvalidArgument)
		}
		if err != nil {
			failed = append(failed, model.Failure{Target: grantTarget(g), Err: err})
			continue
		}
		candidates = append(candidates, g)
	}

	userKeys, err := s.users.PublicKeys(ctx, userIDs)
	if err != nil {
		return nil, nil, err
	}
	groupKeys, err := s.groups.PublicKeys(ctx, groupIDs)
	if err != nil {
		return nil, nil, err
	}
	ok := make([]model.DocumentGrant, 0, len(candidates))
	for _, g := range candidates {
		known := false
		if g.Kind == model.GranteeUser {
			_, known = userKeys[g.GranteeID]
		} else {
			_, known = groupKeys[g.GranteeID]
		}
		if !known {
			failed = append(failed, model.Failure{Target: grantTarget(g), Err: fmt.Errorf("%w: %s does not exist", errs.ErrNotFound, g.Kind)})
			continue
		}
		ok = append(ok, g)
	}
	return ok, failed, nil
}

func (s *DocumentServiceImpl) Create(ctx context.Context, p Principal, d model.Document, grants []model.DocumentGrant) (*model.DocumentView, model.AccessEdit, error) {
	if _, err := model.ValidateDocumentID(d.ID); err != nil {
		return nil, model.AccessEdit{}, err
	}
	name, err := model.OptDocumentName(d.Name)
	if err != nil {
		return nil, model.AccessEdit{}, err
	}
	if name != nil {
		v := name.Name()
		d.Name = &v
	}
	valid, failed, err := s.checkGrants(ctx, grants)
	if err != nil {
		return nil, model.AccessEdit{}, err
	}
	if len(valid) == 0 {
		return nil, model.AccessEdit{}, fmt.Errorf("%w: document has no valid grantee", errs.ErrInvalidArgument)
	}
	d.Author, d.SegmentID = p.AccountID, p.SegmentID
	edit := model.AccessEdit{Failed: failed}
	for i := range valid {
		valid[i].DocumentID = d.ID
		valid[i].GrantedBy = p.AccountID
		edit.Succeeded = append(edit.Succeeded, grantTarget(valid[i]))
	}
	if err := s.docs.Create(ctx, &d, valid); err != nil {
		return nil, model.AccessEdit{}, err
	}
	v := model.DocumentView{Document: d, Association: model.AssociationOwner}
	fillVisibility(&v, valid)
	return &v, edit, nil
}

func fillVisibility(v *model.DocumentView, grants []model.DocumentGrant) {
	v.VisibleUsers, v.VisibleGroups = nil, nil
	for _, g := range grants {
		if g.Kind == model.GranteeUser {
			v.VisibleUsers = append(v.VisibleUsers, g.GranteeID)
		} else {
			v.VisibleGroups = append(v.VisibleGroups, g.GranteeID)
		}
	}
}

// memberGroups returns the ids of groups the caller is a member of.
func (s *DocumentServiceImpl) memberGroups(ctx context.Context, p Principal) ([]string, error) {
	gs, err := s.groups.ListForUser(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(gs))
	for _, g := range gs {
		if g.IsMember {
			ids = append(ids, g.ID)
		}
	}
	return ids, nil
}

func (s *DocumentServiceImpl) List(ctx context.Context, p Principal) ([]model.DocumentView, error) {
	groups, err := s.memberGroups(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.docs.ListForUser(ctx, p.AccountID, groups)
}

type access struct {
	view      model.DocumentView
	userGrant *model.DocumentGrant
	// group grants whose group the caller is a member of
	groupGrants []model.DocumentGrant
}

// resolve loads a document and how the caller reaches it.
func (s *DocumentServiceImpl) resolve(ctx context.Context, p Principal, id string) (*access, error) {
	d, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	grants, err := s.docs.Grants(ctx, id)
	if err != nil {
		return nil, err
	}
	groups, err := s.memberGroups(ctx, p)
	if err != nil {
		return nil, err
	}
	member := make(map[string]bool, len(groups))
	for _, g := range groups {
		member[g] = true
	}

	a := &access{view: model.DocumentView{Document: *d}}
	fillVisibility(&a.view, grants)
	for i, g := range grants {
		switch {
		case g.Kind == model.GranteeUser && g.GranteeID == p.AccountID:
			a.userGrant = &grants[i]
		case g.Kind == model.GranteeGroup && member[g.GranteeID]:
			a.groupGrants = append(a.groupGrants, g)
		}
	}
	switch {
	case d.Author == p.AccountID:
		a.view.Association = model.AssociationOwner
	case a.userGrant != nil:
		a.view.Association = model.AssociationFromUser
	case len(a.groupGrants) > 0:
		a.view.Association = model.AssociationFromGroup
	default:
		return nil, fmt.Errorf("%w: no grant for document %s", errs.ErrAccessDenied, id)
	}
	return a, nil
}

func (s *DocumentServiceImpl) Get(ctx context.Context, p Principal, id string) (*model.DocumentView, error) {
	a, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return &a.view, nil
}

// Key prefers a direct user grant over group grants.
func (s *DocumentServiceImpl) Key(ctx context.Context, p Principal, id string) (*DocumentKey, error) {
	a, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if a.userGrant != nil {
		return &DocumentKey{View: a.view, Grant: *a.userGrant}, nil
	}
	for _, g := range a.groupGrants {
		rows, err := s.groups.Users(ctx, g.GranteeID)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if r.AccountID == p.AccountID && len(r.WrappedKey) > 0 {
				return &DocumentKey{View: a.view, Grant: g, GroupKey: r.WrappedKey}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no key for document %s", errs.ErrAccessDenied, id)
}

func (s *DocumentServiceImpl) Touch(ctx context.Context, p Principal, id string) (*model.DocumentView, error) {
	a, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}
	d, err := s.docs.Touch(ctx, id)
	if err != nil {
		return nil, err
	}
	a.view.Document = *d
	return &a.view, nil
}

func (s *DocumentServiceImpl) UpdateName(ctx context.Context, p Principal, id string, name *string) (*model.DocumentView, error) {
	n, err := model.OptDocumentName(name)
	if err != nil {
		return nil, err
	}
	var stored *string
	if n != nil {
		v := n.Name()
		stored = &v
	}
	a, err := s.resolve(ctx, p, id)
	if err != nil {
		return nil, err
	}
	d, err := s.docs.UpdateName(ctx, id, stored)
	if err != nil {
		return nil, err
	}
	a.view.Document = *d
	return &a.view, nil
}

// Grant adds grants. Any caller who can reach the document may grant, but an
// existing grant is never replaced.
func (s *DocumentServiceImpl) Grant(ctx context.Context, p Principal, id string, grants []model.DocumentGrant) (model.AccessEdit, error) {
	if _, err := s.resolve(ctx, p, id); err != nil {
		return model.AccessEdit{}, err
	}
	valid, failed, err := s.checkGrants(ctx, grants)
	if err != nil {
		return model.AccessEdit{}, err
	}
	edit := model.AccessEdit{Failed: failed}
	for _, g := range valid {
		g.DocumentID, g.GrantedBy = id, p.AccountID
		if err := s.docs.AddGrant(ctx, g); err != nil {
			switch {
			case errors.Is(err, errs.ErrNotFound):
				edit.Failed = append(edit.Failed, model.Failure{Target: grantTarget(g), Err: err})
				continue
			case errors.Is(err, errs.ErrAlreadyExists):
				edit.Failed = append(edit.Failed, model.Failure{Target: grantTarget(g), Err: fmt.Errorf("%w: already granted", errs.ErrAlreadyExists)})
				continue
			}
			return model.AccessEdit{}, err
		}
		edit.Succeeded = append(edit.Succeeded, grantTarget(g))
	}
	return edit, nil
}

func (s *DocumentServiceImpl) Revoke(ctx context.Context, p Principal, id string, targets []model.Target) (model.AccessEdit, error) {
	d, err := s.docs.Get(ctx, id)
	if err != nil {
		return model.AccessEdit{}, err
	}
	if d.Author != p.AccountID {
		return model.AccessEdit{}, fmt.Errorf("%w: only the author may revoke access", errs.ErrAccessDenied)
	}
	var edit model.AccessEdit
	for _, t := range targets {
		err := s.docs.DeleteGrant(ctx, id, t.Kind, t.ID)
		switch {
		case err == nil:
			edit.Succeeded = append(edit.Succeeded, t)
		case errors.Is(err, errs.ErrNotFound):
			edit.Failed = append(edit.Failed, model.Failure{Target: t, Err: fmt.Errorf("%w: no such grant", errs.ErrNotFound)})
		default:
			return model.AccessEdit{}, err
		}
	}
	return edit, nil
}
