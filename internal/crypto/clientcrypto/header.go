package clientcrypto

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// HeaderVersion is the leading byte of every encrypted document.
const HeaderVersion byte = 0x02

const maxHeaderLen = 1 << 12

// DocHeader is the cleartext, authenticated prefix of an encrypted document.
type DocHeader struct {
	DocumentID string `json:"_did_"`
	SegmentID  int64  `json:"_sid_"`
}

// EncodeHeader renders version || uint16be(len(header)) || header JSON.
// The sealed body follows it, and the returned bytes are its AAD.
func EncodeHeader(h DocHeader) ([]byte, error) {
	if h.DocumentID == "" {
		return nil, errors.New("header without document id")
	}
	js, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	if len(js) > maxHeaderLen {
		return nil, errors.New("header too large")
	}
	out := make([]byte, 3, 3+len(js))
	out[0] = HeaderVersion
	binary.BigEndian.PutUint16(out[1:3], uint16(len(js)))
	return append(out, js...), nil
}

// SplitDocument separates an encrypted document into its decoded header,
// the raw header bytes (the AAD) and the sealed body.
func SplitDocument(data []byte) (DocHeader, []byte, []byte, error) {
	if len(data) < 3 {
		return DocHeader{}, nil, nil, ErrShortCiphertext
	}
	if data[0] != HeaderVersion {
		return DocHeader{}, nil, nil, fmt.Errorf("unsupported document version %d", data[0])
	}
	n := int(binary.BigEndian.Uint16(data[1:3]))
	if n == 0 || len(data) < 3+n {
		return DocHeader{}, nil, nil, errors.New("truncated document header")
	}
	raw := data[:3+n]
	var h DocHeader
	if err := json.Unmarshal(data[3:3+n], &h); err != nil {
		return DocHeader{}, nil, nil, fmt.Errorf("document header: %w", err)
	}
	if h.DocumentID == "" {
		return DocHeader{}, nil, nil, errors.New("document header without id")
	}
	return h, raw, data[3+n:], nil
}
