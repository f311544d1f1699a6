package api

import "time"

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

// User is an account record without its private key.
type User struct {
	AccountID     string `json:"accountId"`
	SegmentID     int64  `json:"segmentId"`
	PublicKey     []byte `json:"publicKey"`
	NeedsRotation bool   `json:"needsRotation"`
}

// UserVerifyRequest asks whether the identity asserted by JWT has an account.
type UserVerifyRequest struct {
	JWT string `json:"jwt"`
}

// UserVerifyResponse has User set only when the account exists.
type UserVerifyResponse struct {
	User *User `json:"user,omitempty"`
}

// UserCreateRequest registers the account asserted by JWT.
type UserCreateRequest struct {
	JWT                 string `json:"jwt"`
	PublicKey           []byte `json:"publicKey"`
	EncryptedPrivateKey []byte `json:"encryptedPrivateKey"`
	NeedsRotation       bool   `json:"needsRotation"`
}

// UserKeysRequest fetches the password protected key of the account asserted by JWT.
type UserKeysRequest struct {
	JWT string `json:"jwt"`
}

// UserKeysResponse carries the account and its encrypted private key.
type UserKeysResponse struct {
	User                User   `json:"user"`
	EncryptedPrivateKey []byte `json:"encryptedPrivateKey"`
}

// DeviceAddRequest authorizes a new device for the account asserted by JWT.
type DeviceAddRequest struct {
	JWT              string  `json:"jwt"`
	Name             *string `json:"name,omitempty"`
	SigningPublicKey []byte  `json:"signingPublicKey"`
	PublicKey        []byte  `json:"publicKey"`
	WrappedUserKey   []byte  `json:"wrappedUserKey"`
}

// Device is one authorized device.
type Device struct {
	ID        int64     `json:"id"`
	Name      *string   `json:"name,omitempty"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
	IsCurrent bool      `json:"isCurrent"`
}

// DeviceAddResponse describes the new device.
type DeviceAddResponse struct {
	AccountID string `json:"accountId"`
	SegmentID int64  `json:"segmentId"`
	Device    Device `json:"device"`
}

// SessionInitResponse carries what a device needs to act as its user.
type SessionInitResponse struct {
	AccountID      string `json:"accountId"`
	SegmentID      int64  `json:"segmentId"`
	DeviceID       int64  `json:"deviceId"`
	UserPublicKey  []byte `json:"userPublicKey"`
	WrappedUserKey []byte `json:"wrappedUserKey"`
	NeedsRotation  bool   `json:"needsRotation"`
}

// DeviceListResponse lists the caller's devices.
type DeviceListResponse struct {
	Devices []Device `json:"devices"`
}

// DeviceDeleteRequest removes a device. ID 0 names the calling device.
type DeviceDeleteRequest struct {
	ID int64 `json:"id"`
}

// DeviceDeleteResponse reports the removed device id.
type DeviceDeleteResponse struct {
	ID int64 `json:"id"`
}

// PublicKeysRequest looks up users or groups by id.
type PublicKeysRequest struct {
	IDs []string `json:"ids"`
}

// PublicKeysResponse omits ids that do not exist.
type PublicKeysResponse struct {
	Keys map[string][]byte `json:"keys"`
}

// GroupUser is a user's role in a new group plus the group key wrapped to that user.
type GroupUser struct {
	AccountID  string `json:"accountId"`
	IsAdmin    bool   `json:"isAdmin"`
	IsMember   bool   `json:"isMember"`
	WrappedKey []byte `json:"wrappedKey"`
}

// GroupCreateRequest creates a group with its complete initial roster.
type GroupCreateRequest struct {
	ID            string      `json:"id"`
	Name          *string     `json:"name,omitempty"`
	Owner         string      `json:"owner"`
	PublicKey     []byte      `json:"publicKey"`
	NeedsRotation bool        `json:"needsRotation"`
	Users         []GroupUser `json:"users"`
}

// Group is a group as seen by the caller. Admins and Members are only
// populated for admins and members; EncryptedKey only when the caller holds one.
type Group struct {
	ID            string    `json:"id"`
	Name          *string   `json:"name,omitempty"`
	Owner         string    `json:"owner"`
	PublicKey     []byte    `json:"publicKey"`
	NeedsRotation bool      `json:"needsRotation"`
	IsAdmin       bool      `json:"isAdmin"`
	IsMember      bool      `json:"isMember"`
	Admins        []string  `json:"admins,omitempty"`
	Members       []string  `json:"members,omitempty"`
	EncryptedKey  []byte    `json:"encryptedKey,omitempty"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}

// GroupListResponse lists groups the caller administers or belongs to.
type GroupListResponse struct {
	Groups []Group `json:"groups"`
}

// GroupIDRequest names one group.
type GroupIDRequest struct {
	ID string `json:"id"`
}

// GroupUpdateNameRequest sets or, with a nil Name, clears a group name.
type GroupUpdateNameRequest struct {
	ID   string  `json:"id"`
	Name *string `json:"name,omitempty"`
}

// GroupAddUsersRequest adds admins or members. Keys maps account id to the
// group private key wrapped to that account.
type GroupAddUsersRequest struct {
	GroupID string            `json:"groupId"`
	Keys    map[string][]byte `json:"keys"`
}

// GroupRemoveUsersRequest removes admins or members.
type GroupRemoveUsersRequest struct {
	GroupID string   `json:"groupId"`
	Users   []string `json:"users"`
}

// Failure is a per-entity error in a partially successful batch.
type Failure struct {
	Kind    string `json:"kind,omitempty"`
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Grantee names a user or group.
type Grantee struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// AccessEditResponse is the outcome of a batch access change.
type AccessEditResponse struct {
	Succeeded []Grantee `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

// Grant is a document key wrapped to a grantee.
type Grant struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	EDEK []byte `json:"edek"`
}

// DocumentCreateRequest stores metadata and grants of a new managed document.
type DocumentCreateRequest struct {
	ID     string  `json:"id"`
	Name   *string `json:"name,omitempty"`
	Grants []Grant `json:"grants"`
}

// Document is document metadata as seen by the caller.
type Document struct {
	ID            string    `json:"id"`
	Name          *string   `json:"name,omitempty"`
	Association   string    `json:"association"`
	VisibleUsers  []string  `json:"visibleUsers,omitempty"`
	VisibleGroups []string  `json:"visibleGroups,omitempty"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}

// DocumentCreateResponse is the stored document plus per-grant outcome.
type DocumentCreateResponse struct {
	Document Document  `json:"document"`
	Granted  []Grantee `json:"granted"`
	Failed   []Failure `json:"failed"`
}

// DocumentListResponse lists documents the caller can reach.
type DocumentListResponse struct {
	Documents []Document `json:"documents"`
}

// DocumentIDRequest names one document.
type DocumentIDRequest struct {
	ID string `json:"id"`
}

// DocumentKeyResponse is the caller's path to a document key. When Kind is
// "group", GroupKey is the group private key wrapped to the caller.
type DocumentKeyResponse struct {
	Document  Document `json:"document"`
	Kind      string   `json:"kind"`
	GranteeID string   `json:"granteeId"`
	EDEK      []byte   `json:"edek"`
	GroupKey  []byte   `json:"groupKey,omitempty"`
}

// DocumentUpdateNameRequest sets or clears a document name.
type DocumentUpdateNameRequest struct {
	ID   string  `json:"id"`
	Name *string `json:"name,omitempty"`
}

// DocumentGrantRequest adds grants to an existing document.
type DocumentGrantRequest struct {
	ID     string  `json:"id"`
	Grants []Grant `json:"grants"`
}

// DocumentRevokeRequest removes grants from a document.
type DocumentRevokeRequest struct {
	ID       string    `json:"id"`
	Grantees []Grantee `json:"grantees"`
}
