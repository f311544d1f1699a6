package model

import "github.com/and161185/ironkeep/internal/errs"

// GroupCreateOpts configures GroupCreate. Nil pointers mean "not set".
// Use NewGroupCreateOpts for the usual defaults.
type GroupCreateOpts struct {
	ID            *GroupID   // generated when nil
	Name          *GroupName // optional
	AddAsAdmin    bool       // add the caller to the admin list
	AddAsMember   bool       // add the caller to the member list
	Owner         *UserID    // defaults to the caller
	Admins        []UserID
	Members       []UserID
	NeedsRotation bool
}

// NewGroupCreateOpts returns options that make the caller owner, admin and member.
func NewGroupCreateOpts() GroupCreateOpts {
	return GroupCreateOpts{AddAsAdmin: true, AddAsMember: true}
}

// GroupCreateRequest is a GroupCreateOpts resolved against the caller.
type GroupCreateRequest struct {
	ID            *GroupID
	Name          *GroupName
	Owner         UserID
	Admins        []UserID
	Members       []UserID
	NeedsRotation bool
}

// Standardize resolves owner, admins and members for caller.
// The owner is always an admin. Lists are deduplicated keeping first occurrence.
func (o GroupCreateOpts) Standardize(caller UserID) (GroupCreateRequest, error) {
	if caller.IsZero() {
		return GroupCreateRequest{}, errs.Invalid("group options", "", "calling user is unknown")
	}
	if o.Owner == nil && !o.AddAsAdmin {
		return GroupCreateRequest{}, errs.Invalid("group options", "",
			"the caller must be an admin unless another owner is specified")
	}
	owner := caller
	if o.Owner != nil {
		if o.Owner.IsZero() {
			return GroupCreateRequest{}, errs.Invalid("group options", "", "owner is an empty user id")
		}
		owner = *o.Owner
	}

	var self []UserID
	if o.AddAsAdmin {
		self = []UserID{caller}
	}
	admins := DedupUsers(self, o.Admins, []UserID{owner})

	self = nil
	if o.AddAsMember {
		self = []UserID{caller}
	}
	members := DedupUsers(self, o.Members)

	for _, u := range append(admins, members...) {
		if u.IsZero() {
			return GroupCreateRequest{}, errs.Invalid("group options", "", "admin and member lists must not contain empty user ids")
		}
	}
	return GroupCreateRequest{
		ID:            o.ID,
		Name:          o.Name,
		Owner:         owner,
		Admins:        admins,
		Members:       members,
		NeedsRotation: o.NeedsRotation,
	}, nil
}

// DocumentEncryptOpts configures DocumentEncrypt. The zero value encrypts to the caller only.
type DocumentEncryptOpts struct {
	ID              *DocumentID // generated when nil
	Name            *DocumentName
	DontGrantToSelf bool
	UserGrants      []UserID
	GroupGrants     []GroupID
}

// Grantees resolves the user and group grant lists for caller.
func (o DocumentEncryptOpts) Grantees(caller UserID) ([]UserID, []GroupID, error) {
	var self []UserID
	if !o.DontGrantToSelf {
		if caller.IsZero() {
			return nil, nil, errs.Invalid("document options", "", "calling user is unknown")
		}
		self = []UserID{caller}
	}
	users := DedupUsers(self, o.UserGrants)
	groups := DedupGroups(o.GroupGrants)
	if len(users) == 0 && len(groups) == 0 {
		return nil, nil, errs.Invalid("document options", "",
			"at least one grant is required when not granting to self")
	}
	for _, u := range users {
		if u.IsZero() {
			return nil, nil, errs.Invalid("document options", "", "grant list contains an empty user id")
		}
	}
	for _, g := range groups {
		if g.IsZero() {
			return nil, nil, errs.Invalid("document options", "", "grant list contains an empty group id")
		}
	}
	return users, groups, nil
}

// UserCreateOpts configures UserCreate.
type UserCreateOpts struct {
	NeedsRotation bool
}

// DeviceCreateOpts configures GenerateNewDevice.
type DeviceCreateOpts struct {
	Name *DeviceName
}
