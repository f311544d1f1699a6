package model

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/and161185/ironkeep/internal/crypto"
	"github.com/and161185/ironkeep/internal/errs"
)

// Bounds for identifiers and human readable names (after trimming surrounding whitespace).
const (
	MaxIDLen   = 100
	MaxNameLen = 100
)

const idCharsetDesc = "[A-Za-z0-9_.$#|@/:;=+'-]"

var idCharset = regexp.MustCompile(`^[A-Za-z0-9_.$#|@/:;=+'-]+$`)

func validateID(kind, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	switch {
	case id == "":
		return "", errs.Invalid(kind, raw, "must contain at least one non-whitespace character")
	case len(id) > MaxIDLen:
		return "", errs.Invalid(kind, raw, "must be at most "+strconv.Itoa(MaxIDLen)+" characters long")
	case !idCharset.MatchString(id):
		return "", errs.Invalid(kind, raw, "contains characters outside the permitted set "+idCharsetDesc)
	}
	return id, nil
}

func validateName(kind, raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		return "", errs.Invalid(kind, raw, "must contain at least one non-whitespace character")
	case utf8.RuneCountInString(name) > MaxNameLen:
		return "", errs.Invalid(kind, raw, "must be at most "+strconv.Itoa(MaxNameLen)+" characters long")
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return "", errs.Invalid(kind, raw, "must not contain control characters")
	}
	return name, nil
}

// UserID identifies an account. The zero value is not a valid id.
type UserID struct{ id string }

// ValidateUserID parses raw into a UserID.
func ValidateUserID(raw string) (UserID, error) {
	id, err := validateID("user id", raw)
	return UserID{id: id}, err
}

// ID returns the validated string.
func (u UserID) ID() string { return u.id }

func (u UserID) String() string { return u.id }

// IsZero reports whether u was never validated.
func (u UserID) IsZero() bool { return u.id == "" }

func (u UserID) MarshalText() ([]byte, error) { return []byte(u.id), nil }

func (u *UserID) UnmarshalText(b []byte) error {
	v, err := ValidateUserID(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// GroupID identifies a group.
type GroupID struct{ id string }

// ValidateGroupID parses raw into a GroupID.
func ValidateGroupID(raw string) (GroupID, error) {
	id, err := validateID("group id", raw)
	return GroupID{id: id}, err
}

// GenerateGroupID returns a random 32 character group id.
func GenerateGroupID() (GroupID, error) {
	id, err := crypto.RandomID()
	return GroupID{id: id}, err
}

func (g GroupID) ID() string { return g.id }

func (g GroupID) String() string { return g.id }

func (g GroupID) IsZero() bool { return g.id == "" }

func (g GroupID) MarshalText() ([]byte, error) { return []byte(g.id), nil }

func (g *GroupID) UnmarshalText(b []byte) error {
	v, err := ValidateGroupID(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// DocumentID identifies an encrypted document.
type DocumentID struct{ id string }

// ValidateDocumentID parses raw into a DocumentID.
func ValidateDocumentID(raw string) (DocumentID, error) {
	id, err := validateID("document id", raw)
	return DocumentID{id: id}, err
}

// GenerateDocumentID returns a random 32 character document id.
func GenerateDocumentID() (DocumentID, error) {
	id, err := crypto.RandomID()
	return DocumentID{id: id}, err
}

func (d DocumentID) ID() string { return d.id }

func (d DocumentID) String() string { return d.id }

func (d DocumentID) IsZero() bool { return d.id == "" }

func (d DocumentID) MarshalText() ([]byte, error) { return []byte(d.id), nil }

func (d *DocumentID) UnmarshalText(b []byte) error {
	v, err := ValidateDocumentID(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// GroupName is an optional human readable group label.
type GroupName struct{ name string }

// ValidateGroupName parses raw into a GroupName.
func ValidateGroupName(raw string) (GroupName, error) {
	n, err := validateName("group name", raw)
	return GroupName{name: n}, err
}

func (n GroupName) Name() string { return n.name }

func (n GroupName) String() string { return n.name }

// DocumentName is an optional human readable document label.
type DocumentName struct{ name string }

// ValidateDocumentName parses raw into a DocumentName.
func ValidateDocumentName(raw string) (DocumentName, error) {
	n, err := validateName("document name", raw)
	return DocumentName{name: n}, err
}

func (n DocumentName) Name() string { return n.name }

func (n DocumentName) String() string { return n.name }

// DeviceName is an optional human readable device label.
type DeviceName struct{ name string }

// ValidateDeviceName parses raw into a DeviceName.
func ValidateDeviceName(raw string) (DeviceName, error) {
	n, err := validateName("device name", raw)
	return DeviceName{name: n}, err
}

func (n DeviceName) Name() string { return n.name }

func (n DeviceName) String() string { return n.name }

// DeviceID is the backend assigned, strictly positive device number.
type DeviceID int64

// ValidateDeviceID checks that id is a usable device number.
func ValidateDeviceID(id int64) (DeviceID, error) {
	if id < 1 {
		return 0, errs.Invalid("device id", strconv.FormatInt(id, 10), "must be a positive number")
	}
	return DeviceID(id), nil
}

// OptGroupName converts an optional raw name, treating nil as absent.
func OptGroupName(raw *string) (*GroupName, error) {
	if raw == nil {
		return nil, nil
	}
	n, err := ValidateGroupName(*raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// OptDocumentName converts an optional raw name, treating nil as absent.
func OptDocumentName(raw *string) (*DocumentName, error) {
	if raw == nil {
		return nil, nil
	}
	n, err := ValidateDocumentName(*raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// OptDeviceName converts an optional raw name, treating nil as absent.
func OptDeviceName(raw *string) (*DeviceName, error) {
	if raw == nil {
		return nil, nil
	}
	n, err := ValidateDeviceName(*raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UserIDs validates every raw id.
func UserIDs(raw []string) ([]UserID, error) {
	out := make([]UserID, 0, len(raw))
	for _, r := range raw {
		u, err := ValidateUserID(r)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// GroupIDs validates every raw id.
func GroupIDs(raw []string) ([]GroupID, error) {
	out := make([]GroupID, 0, len(raw))
	for _, r := range raw {
		g, err := ValidateGroupID(r)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// UserIDStrings renders ids for transport.
func UserIDStrings(ids []UserID) []string {
	out := make([]string, len(ids))
	for i, u := range ids {
		out[i] = u.id
	}
	return out
}

// GroupIDStrings renders ids for transport.
func GroupIDStrings(ids []GroupID) []string {
	out := make([]string, len(ids))
	for i, g := range ids {
		out[i] = g.id
	}
	return out
}

// DedupUsers concatenates lists keeping the first occurrence of every id.
func DedupUsers(lists ...[]UserID) []UserID {
	seen := make(map[UserID]struct{})
	out := make([]UserID, 0)
	for _, l := range lists {
		for _, u := range l {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// DedupGroups keeps the first occurrence of every id.
func DedupGroups(ids []GroupID) []GroupID {
	seen := make(map[GroupID]struct{}, len(ids))
	out := make([]GroupID, 0, len(ids))
	for _, g := range ids {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// ContainsUser reports whether u is in ids.
func ContainsUser(ids []UserID, u UserID) bool {
	for _, x := range ids {
		if x == u {
			return true
		}
	}
	return false
}
