package convert

import (
	"fmt"

	"github.com/and161185/ironkeep/internal/api"
	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

// --- api -> results (sdk) ---

// FromAPIGroupMeta validates the identifiers of a transported group.
func FromAPIGroupMeta(g api.Group) (model.GroupMeta, error) {
	id, err := model.ValidateGroupID(g.ID)
	if err != nil {
		return model.GroupMeta{}, err
	}
	name, err := model.OptGroupName(g.Name)
	if err != nil {
		return model.GroupMeta{}, err
	}
	return model.GroupMeta{
		ID:            id,
		Name:          name,
		IsAdmin:       g.IsAdmin,
		IsMember:      g.IsMember,
		NeedsRotation: g.NeedsRotation,
		Created:       g.Created,
		LastUpdated:   g.Updated,
	}, nil
}

// FromAPIGroupList converts GroupList output.
func FromAPIGroupList(r *api.GroupListResponse) (model.GroupListResult, error) {
	out := model.GroupListResult{Groups: make([]model.GroupMeta, 0, len(r.Groups))}
	for _, g := range r.Groups {
		m, err := FromAPIGroupMeta(g)
		if err != nil {
			return model.GroupListResult{}, err
		}
		out.Groups = append(out.Groups, m)
	}
	return out, nil
}

// FromAPIGroupGet converts full group metadata.
func FromAPIGroupGet(g *api.Group) (model.GroupGetResult, error) {
	meta, err := FromAPIGroupMeta(*g)
	if err != nil {
		return model.GroupGetResult{}, err
	}
	res := model.GroupGetResult{GroupMeta: meta, PublicKey: g.PublicKey}
	if g.Owner != "" {
		owner, err := model.ValidateUserID(g.Owner)
		if err != nil {
			return model.GroupGetResult{}, err
		}
		res.Owner = &owner
	}
	if g.Admins != nil || g.Members != nil {
		if res.Admins, err = model.UserIDs(g.Admins); err != nil {
			return model.GroupGetResult{}, err
		}
		if res.Members, err = model.UserIDs(g.Members); err != nil {
			return model.GroupGetResult{}, err
		}
	}
	return res, nil
}

// FromAPIGroupCreated converts the group returned by GroupCreate.
func FromAPIGroupCreated(g *api.Group) (model.GroupCreateResult, error) {
	full, err := FromAPIGroupGet(g)
	if err != nil {
		return model.GroupCreateResult{}, err
	}
	if full.Owner == nil {
		return model.GroupCreateResult{}, fmt.Errorf("%w: created group without owner", errs.ErrInvalidArgument)
	}
	return model.GroupCreateResult{
		GroupMeta: full.GroupMeta,
		Owner:     *full.Owner,
		PublicKey: full.PublicKey,
		Admins:    full.Admins,
		Members:   full.Members,
	}, nil
}

// FromAPIGroupAccessEdit converts a group roster change outcome.
func FromAPIGroupAccessEdit(r *api.AccessEditResponse) (model.GroupAccessEditResult, error) {
	var out model.GroupAccessEditResult
	for _, s := range r.Succeeded {
		u, err := model.ValidateUserID(s.ID)
		if err != nil {
			return model.GroupAccessEditResult{}, err
		}
		out.Succeeded = append(out.Succeeded, u)
	}
	for _, f := range r.Failed {
		u, err := model.ValidateUserID(f.ID)
		if err != nil {
			return model.GroupAccessEditResult{}, err
		}
		out.Failed = append(out.Failed, model.GroupAccessEditErr{User: u, Err: api.FailureError(f)})
	}
	return out, nil
}

// FromAPIGrantee validates a transported user or group reference.
func FromAPIGrantee(kind, id string) (model.UserOrGroup, error) {
	switch kind {
	case model.GranteeUser:
		u, err := model.ValidateUserID(id)
		if err != nil {
			return model.UserOrGroup{}, err
		}
		return model.GranteeUserID(u), nil
	case model.GranteeGroup:
		g, err := model.ValidateGroupID(id)
		if err != nil {
			return model.UserOrGroup{}, err
		}
		return model.GranteeGroupID(g), nil
	default:
		return model.UserOrGroup{}, fmt.Errorf("%w: unknown grantee kind %q", errs.ErrInvalidArgument, kind)
	}
}

// FromAPIDocumentAccess converts a grant or revoke outcome.
func FromAPIDocumentAccess(succeeded []api.Grantee, failed []api.Failure) (model.DocumentAccessResult, error) {
	var out model.DocumentAccessResult
	for _, s := range succeeded {
		t, err := FromAPIGrantee(s.Kind, s.ID)
		if err != nil {
			return model.DocumentAccessResult{}, err
		}
		out.Succeeded = append(out.Succeeded, t)
	}
	for _, f := range failed {
		t, err := FromAPIGrantee(f.Kind, f.ID)
		if err != nil {
			return model.DocumentAccessResult{}, err
		}
		out.Failed = append(out.Failed, model.DocAccessEditErr{Target: t, Err: api.FailureError(f)})
	}
	return out, nil
}

// FromAPIDocumentListMeta converts one DocumentList entry.
func FromAPIDocumentListMeta(d api.Document) (model.DocumentListMeta, error) {
	id, err := model.ValidateDocumentID(d.ID)
	if err != nil {
		return model.DocumentListMeta{}, err
	}
	name, err := model.OptDocumentName(d.Name)
	if err != nil {
		return model.DocumentListMeta{}, err
	}
	return model.DocumentListMeta{
		ID:          id,
		Name:        name,
		Association: model.AssociationType(d.Association),
		Created:     d.Created,
		LastUpdated: d.Updated,
	}, nil
}

// FromAPIDocumentList converts DocumentList output.
func FromAPIDocumentList(r *api.DocumentListResponse) (model.DocumentListResult, error) {
	out := model.DocumentListResult{Documents: make([]model.DocumentListMeta, 0, len(r.Documents))}
	for _, d := range r.Documents {
		m, err := FromAPIDocumentListMeta(d)
		if err != nil {
			return model.DocumentListResult{}, err
		}
		out.Documents = append(out.Documents, m)
	}
	return out, nil
}

// FromAPIDocumentMetadata converts full document metadata.
func FromAPIDocumentMetadata(d *api.Document) (model.DocumentMetadataResult, error) {
	meta, err := FromAPIDocumentListMeta(*d)
	if err != nil {
		return model.DocumentMetadataResult{}, err
	}
	users, err := model.UserIDs(d.VisibleUsers)
	if err != nil {
		return model.DocumentMetadataResult{}, err
	}
	groups, err := model.GroupIDs(d.VisibleGroups)
	if err != nil {
		return model.DocumentMetadataResult{}, err
	}
	return model.DocumentMetadataResult{
		ID:              meta.ID,
		Name:            meta.Name,
		Association:     meta.Association,
		Created:         meta.Created,
		LastUpdated:     meta.LastUpdated,
		VisibleToUsers:  users,
		VisibleToGroups: groups,
	}, nil
}

// FromAPIDevices converts UserListDevices output.
func FromAPIDevices(r *api.DeviceListResponse) (model.UserDeviceListResult, error) {
	out := model.UserDeviceListResult{Devices: make([]model.UserDevice, 0, len(r.Devices))}
	for _, d := range r.Devices {
		id, err := model.ValidateDeviceID(d.ID)
		if err != nil {
			return model.UserDeviceListResult{}, err
		}
		name, err := model.OptDeviceName(d.Name)
		if err != nil {
			return model.UserDeviceListResult{}, err
		}
		out.Devices = append(out.Devices, model.UserDevice{
			ID:              id,
			Name:            name,
			Created:         d.Created,
			LastUpdated:     d.Updated,
			IsCurrentDevice: d.IsCurrent,
		})
	}
	return out, nil
}

// FromAPIUser converts an account record.
func FromAPIUser(u api.User) (model.UserResult, error) {
	id, err := model.ValidateUserID(u.AccountID)
	if err != nil {
		return model.UserResult{}, err
	}
	return model.UserResult{AccountID: id, SegmentID: u.SegmentID, PublicKey: u.PublicKey, NeedsRotation: u.NeedsRotation}, nil
}
