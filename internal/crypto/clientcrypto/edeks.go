package clientcrypto

import (
	"encoding/json"
	"errors"
	"fmt"
)

const edekSetVersion = 1

// Grantee kinds used in EDEK sets.
const (
	GranteeUser  = "user"
	GranteeGroup = "group"
)

// EncryptedDEK is a document key wrapped to one user or group public key.
type EncryptedDEK struct {
	Kind string `json:"type"`
	ID   string `json:"id"`
	EDEK []byte `json:"edek"`
}

type edekSet struct {
	Version    int            `json:"v"`
	DocumentID string         `json:"did"`
	SegmentID  int64          `json:"sid"`
	EDEKs      []EncryptedDEK `json:"edeks"`
}

// EncodeEDEKs serializes the EDEKs of an unmanaged document.
func EncodeEDEKs(documentID string, segmentID int64, edeks []EncryptedDEK) ([]byte, error) {
	if len(edeks) == 0 {
		return nil, errors.New("no encrypted deks")
	}
	return json.Marshal(edekSet{Version: edekSetVersion, DocumentID: documentID, SegmentID: segmentID, EDEKs: edeks})
}

// DecodeEDEKs parses an EncodeEDEKs output.
func DecodeEDEKs(b []byte) (string, int64, []EncryptedDEK, error) {
	var s edekSet
	if err := json.Unmarshal(b, &s); err != nil {
		return "", 0, nil, err
	}
	if s.Version != edekSetVersion {
		return "", 0, nil, fmt.Errorf("unsupported edek set version %d", s.Version)
	}
	if s.DocumentID == "" || len(s.EDEKs) == 0 {
		return "", 0, nil, errors.New("edek set is empty")
	}
	for _, e := range s.EDEKs {
		if (e.Kind != GranteeUser && e.Kind != GranteeGroup) || e.ID == "" || len(e.EDEK) == 0 {
			return "", 0, nil, errors.New("malformed edek entry")
		}
	}
	return s.DocumentID, s.SegmentID, s.EDEKs, nil
}

// DEKAAD binds a wrapped DEK to its document.
func DEKAAD(documentID string) []byte { return []byte("dek:" + documentID) }

// GroupKeyAAD binds a wrapped group private key to its group.
func GroupKeyAAD(groupID string) []byte { return []byte("group:" + groupID) }

// UserKeyAAD binds a device-wrapped user master key to its account.
func UserKeyAAD(accountID string) []byte { return []byte("user:" + accountID) }
