// Package convert maps between domain records, KeyService messages and SDK results.
package convert

import (
	"github.com/and161185/ironkeep/internal/api"
	"github.com/and161185/ironkeep/internal/model"
)

// --- domain -> api (server) ---

// ToAPIUser drops the encrypted private key.
func ToAPIUser(u *model.User) api.User {
	return api.User{
		AccountID:     u.AccountID,
		SegmentID:     u.SegmentID,
		PublicKey:     u.PublicKey,
		NeedsRotation: u.NeedsRotation,
	}
}

// ToAPIDevice marks the device making the call.
func ToAPIDevice(d model.Device, current int64) api.Device {
	return api.Device{
		ID:        d.ID,
		Name:      d.Name,
		Created:   d.Created,
		Updated:   d.Updated,
		IsCurrent: d.ID == current,
	}
}

// ToAPIDevices converts a device list.
func ToAPIDevices(ds []model.Device, current int64) []api.Device {
	out := make([]api.Device, 0, len(ds))
	for _, d := range ds {
		out = append(out, ToAPIDevice(d, current))
	}
	return out
}

// ToAPIGroup converts a caller's view of a group.
func ToAPIGroup(v model.GroupView) *api.Group {
	return &api.Group{
		ID:            v.ID,
		Name:          v.Name,
		Owner:         v.Owner,
		PublicKey:     v.PublicKey,
		NeedsRotation: v.NeedsRotation,
		IsAdmin:       v.IsAdmin,
		IsMember:      v.IsMember,
		Admins:        v.Admins,
		Members:       v.Members,
		EncryptedKey:  v.CallerKey,
		Created:       v.Created,
		Updated:       v.Updated,
	}
}

// ToAPIGroups converts a group list.
func ToAPIGroups(vs []model.GroupView) []api.Group {
	out := make([]api.Group, 0, len(vs))
	for _, v := range vs {
		out = append(out, *ToAPIGroup(v))
	}
	return out
}

// ToAPIDocument converts a caller's view of a document.
func ToAPIDocument(v model.DocumentView) *api.Document {
	return &api.Document{
		ID:            v.ID,
		Name:          v.Name,
		Association:   string(v.Association),
		VisibleUsers:  v.VisibleUsers,
		VisibleGroups: v.VisibleGroups,
		Created:       v.Created,
		Updated:       v.Updated,
	}
}

// ToAPIDocuments converts a document list.
func ToAPIDocuments(vs []model.DocumentView) []api.Document {
	out := make([]api.Document, 0, len(vs))
	for _, v := range vs {
		out = append(out, *ToAPIDocument(v))
	}
	return out
}

// ToAPITargets converts touched users or groups.
func ToAPITargets(ts []model.Target) []api.Grantee {
	out := make([]api.Grantee, 0, len(ts))
	for _, t := range ts {
		out = append(out, api.Grantee{Kind: t.Kind, ID: t.ID})
	}
	return out
}

// ToAPIFailures classifies per-entity errors for transport.
func ToAPIFailures(fs []model.Failure) []api.Failure {
	out := make([]api.Failure, 0, len(fs))
	for _, f := range fs {
		out = append(out, api.Failure{Kind: f.Kind, ID: f.ID, Code: api.FailureCode(f.Err), Message: f.Err.Error()})
	}
	return out
}

// ToAPIAccessEdit converts a batch access change outcome.
func ToAPIAccessEdit(e model.AccessEdit) *api.AccessEditResponse {
	return &api.AccessEditResponse{Succeeded: ToAPITargets(e.Succeeded), Failed: ToAPIFailures(e.Failed)}
}

// --- api -> domain (server) ---

// FromAPIGroupCreate splits a create request into the group and its roster.
func FromAPIGroupCreate(req *api.GroupCreateRequest) (model.Group, []model.GroupUser) {
	g := model.Group{
		ID:            req.ID,
		Name:          req.Name,
		Owner:         req.Owner,
		PublicKey:     req.PublicKey,
		NeedsRotation: req.NeedsRotation,
	}
	users := make([]model.GroupUser, 0, len(req.Users))
	for _, u := range req.Users {
		users = append(users, model.GroupUser{
			GroupID:    req.ID,
			AccountID:  u.AccountID,
			IsAdmin:    u.IsAdmin,
			IsMember:   u.IsMember,
			WrappedKey: u.WrappedKey,
		})
	}
	return g, users
}

// FromAPIGrants converts wrapped document keys.
func FromAPIGrants(gs []api.Grant) []model.DocumentGrant {
	out := make([]model.DocumentGrant, 0, len(gs))
	for _, g := range gs {
		out = append(out, model.DocumentGrant{Kind: g.Kind, GranteeID: g.ID, EDEK: g.EDEK})
	}
	return out
}

// FromAPIGrantees converts revocation targets.
func FromAPIGrantees(gs []api.Grantee) []model.Target {
	out := make([]model.Target, 0, len(gs))
	for _, g := range gs {
		out = append(out, model.Target{Kind: g.Kind, ID: g.ID})
	}
	return out
}
