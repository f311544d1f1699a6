// Package model defines domain entities used by services and repositories.
package model

import "time"

// User is an account stored on the key server. The private key is only ever
// held encrypted under the user's password.
type User struct {
	AccountID           string
	SegmentID           int64
	PublicKey           []byte // X25519
	EncryptedPrivateKey []byte // salt || AEAD(Argon2id(password), private key)
	NeedsRotation       bool
	Created             time.Time
	Updated             time.Time
}

// Device is an authorized device of a user.
type Device struct {
	ID               int64
	AccountID        string
	Name             *string
	SigningPublicKey []byte // Ed25519, verifies device tokens
	PublicKey        []byte // X25519
	WrappedUserKey   []byte // user private key wrapped to PublicKey
	Created          time.Time
	Updated          time.Time
}

// Group is a cryptographic group. Its private key is stored wrapped per admin and member.
type Group struct {
	ID            string
	SegmentID     int64
	Name          *string
	Owner         string
	PublicKey     []byte
	NeedsRotation bool
	Created       time.Time
	Updated       time.Time
}

// GroupUser is one user's relation to a group.
type GroupUser struct {
	GroupID    string
	AccountID  string
	IsAdmin    bool
	IsMember   bool
	WrappedKey []byte // group private key wrapped to the user's public key
}

// GroupView is a group as seen by one caller.
type GroupView struct {
	Group
	Admins    []string // nil unless the caller is admin or member
	Members   []string
	IsAdmin   bool
	IsMember  bool
	CallerKey []byte // caller's wrapped group key, if any
}

// Document is the backend metadata of a managed encrypted document.
type Document struct {
	ID        string
	SegmentID int64
	Name      *string
	Author    string
	Created   time.Time
	Updated   time.Time
}

// Grantee kinds.
const (
	GranteeUser  = "user"
	GranteeGroup = "group"
)

// DocumentGrant is a document key wrapped to a user or group.
type DocumentGrant struct {
	DocumentID string
	Kind       string
	GranteeID  string
	EDEK       []byte
	GrantedBy  string
}

// Association types describe how a caller can reach a document.
type AssociationType string

const (
	AssociationOwner     AssociationType = "owner"
	AssociationFromUser  AssociationType = "fromUser"
	AssociationFromGroup AssociationType = "fromGroup"
)

// DocumentView is a document as seen by one caller.
type DocumentView struct {
	Document
	Association   AssociationType
	VisibleUsers  []string
	VisibleGroups []string
}

// Target names a user or group touched by an access change. Kind is GranteeUser or GranteeGroup.
type Target struct {
	Kind string
	ID   string
}

// Failure reports a per-entity failure in a partially successful batch.
type Failure struct {
	Target
	Err error
}

// AccessEdit is the outcome of a batch access change.
type AccessEdit struct {
	Succeeded []Target
	Failed    []Failure
}
