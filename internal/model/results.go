package model

import (
	"time"
)

// UserOrGroup names a grantee. The zero value names nothing.
type UserOrGroup struct {
	user  UserID
	group GroupID
}

// GranteeUserID wraps a user id.
func GranteeUserID(u UserID) UserOrGroup { return UserOrGroup{user: u} }

// GranteeGroupID wraps a group id.
func GranteeGroupID(g GroupID) UserOrGroup { return UserOrGroup{group: g} }

// User returns the user id if the grantee is a user.
func (x UserOrGroup) User() (UserID, bool) { return x.user, !x.user.IsZero() }

// Group returns the group id if the grantee is a group.
func (x UserOrGroup) Group() (GroupID, bool) { return x.group, !x.group.IsZero() }

// Kind is GranteeUser or GranteeGroup.
func (x UserOrGroup) Kind() string {
	if !x.user.IsZero() {
		return GranteeUser
	}
	return GranteeGroup
}

// ID returns the raw id of either kind.
func (x UserOrGroup) ID() string {
	if !x.user.IsZero() {
		return x.user.id
	}
	return x.group.id
}

func (x UserOrGroup) String() string { return x.Kind() + ":" + x.ID() }

// GroupMeta is the list view of a group.
type GroupMeta struct {
	ID            GroupID
	Name          *GroupName
	IsAdmin       bool
	IsMember      bool
	NeedsRotation bool
	Created       time.Time
	LastUpdated   time.Time
}

// GroupCreateResult describes a freshly created group.
type GroupCreateResult struct {
	GroupMeta
	Owner     UserID
	PublicKey []byte
	Admins    []UserID
	Members   []UserID
}

// GroupListResult lists every group the caller administers or belongs to.
type GroupListResult struct {
	Groups []GroupMeta
}

// GroupGetResult is full group metadata. Admins and Members are nil unless the
// caller is an admin or member.
type GroupGetResult struct {
	GroupMeta
	Owner     *UserID
	PublicKey []byte
	Admins    []UserID
	Members   []UserID
}

// GroupAccessEditErr is a failed per-user change.
type GroupAccessEditErr struct {
	User UserID
	Err  error
}

// GroupAccessEditResult is the outcome of adding or removing admins or members.
type GroupAccessEditResult struct {
	Succeeded []UserID
	Failed    []GroupAccessEditErr
}

// DocAccessEditErr is a failed per-grantee change.
type DocAccessEditErr struct {
	Target UserOrGroup
	Err    error
}

// DocumentAccessResult is the outcome of granting or revoking document access.
type DocumentAccessResult struct {
	Succeeded []UserOrGroup
	Failed    []DocAccessEditErr
}

// DocumentEncryptResult is a managed encrypted document.
type DocumentEncryptResult struct {
	ID            DocumentID
	Name          *DocumentName
	Created       time.Time
	LastUpdated   time.Time
	EncryptedData []byte
	Grants        []UserOrGroup
	AccessErrs    []DocAccessEditErr
}

// DocumentDecryptResult carries the recovered plaintext and stored metadata.
type DocumentDecryptResult struct {
	ID            DocumentID
	Name          *DocumentName
	Created       time.Time
	LastUpdated   time.Time
	DecryptedData []byte
}

// DocumentListMeta is the list view of a document.
type DocumentListMeta struct {
	ID          DocumentID
	Name        *DocumentName
	Association AssociationType
	Created     time.Time
	LastUpdated time.Time
}

// DocumentListResult lists documents the caller can decrypt.
type DocumentListResult struct {
	Documents []DocumentListMeta
}

// DocumentMetadataResult is full document metadata.
type DocumentMetadataResult struct {
	ID              DocumentID
	Name            *DocumentName
	Association     AssociationType
	Created         time.Time
	LastUpdated     time.Time
	VisibleToUsers  []UserID
	VisibleToGroups []GroupID
}

// DocumentEncryptUnmanagedResult is an encrypted document whose keys are
// returned to the caller instead of being stored on the key server.
type DocumentEncryptUnmanagedResult struct {
	ID            DocumentID
	EncryptedData []byte
	EncryptedDEKs []byte
	Grants        []UserOrGroup
	AccessErrs    []DocAccessEditErr
}

// DocumentDecryptUnmanagedResult is the plaintext of an unmanaged document.
type DocumentDecryptUnmanagedResult struct {
	ID            DocumentID
	DecryptedData []byte
	AccessVia     UserOrGroup
}

// UserCreateResult describes a newly created user.
type UserCreateResult struct {
	PublicKey     []byte
	NeedsRotation bool
}

// UserResult describes an existing user.
type UserResult struct {
	AccountID     UserID
	SegmentID     int64
	PublicKey     []byte
	NeedsRotation bool
}

// UserDevice is one entry of UserListDevices.
type UserDevice struct {
	ID              DeviceID
	Name            *DeviceName
	Created         time.Time
	LastUpdated     time.Time
	IsCurrentDevice bool
}

// UserDeviceListResult lists the caller's devices.
type UserDeviceListResult struct {
	Devices []UserDevice
}
