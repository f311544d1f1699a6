// Package clientcrypto contains client-side primitives for key wrapping and AEAD.
package clientcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Params
const (
	DEKLen        = 32
	KeKLen        = 32
	PrivateKeyLen = curve25519.ScalarSize
	PublicKeyLen  = curve25519.PointSize
	SaltLen       = 16

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1

	wrapInfo = "ironkeep/wrap/v1"
)

var (
	ErrShortCiphertext = errors.New("ciphertext too short")
	ErrBadKey          = errors.New("key has wrong length")
)

func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// GenerateKeyPair returns a fresh X25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := Rand(PrivateKeyLen)
	if err != nil {
		return KeyPair{}, err
	}
	pub, err := PublicKey(priv)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

// PublicKey derives the X25519 public key of priv.
func PublicKey(priv []byte) ([]byte, error) {
	if len(priv) != PrivateKeyLen {
		return nil, ErrBadKey
	}
	return curve25519.X25519(priv, curve25519.Basepoint)
}

// DeriveKEK derives a KEK from password and kekSalt using Argon2id.
func DeriveKEK(password, kekSalt []byte) []byte {
	return argon2.IDKey(password, kekSalt, argonTime, argonMemory, argonThreads, KeKLen)
}

// WrapDEK encrypts DEK with KEK using XChaCha20-Poly1305 and random nonce.
func WrapDEK(kek, dek []byte) ([]byte, error) {
	return seal(kek, dek, nil)
}

// UnwrapDEK decrypts wrapped DEK using KEK.
func UnwrapDEK(kek, wrapped []byte) ([]byte, error) {
	return open(kek, wrapped, nil)
}

// EncryptPrivateKey protects a user master private key with a password: salt || WrapDEK(Argon2id(password, salt), key).
func EncryptPrivateKey(password, key []byte) ([]byte, error) {
	salt, err := Rand(SaltLen)
	if err != nil {
		return nil, err
	}
	wrapped, err := WrapDEK(DeriveKEK(password, salt), key)
	if err != nil {
		return nil, err
	}
	return append(salt, wrapped...), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey. A wrong password fails authentication.
func DecryptPrivateKey(password, enc []byte) ([]byte, error) {
	if len(enc) < SaltLen+chacha20poly1305.NonceSizeX {
		return nil, ErrShortCiphertext
	}
	return UnwrapDEK(DeriveKEK(password, enc[:SaltLen]), enc[SaltLen:])
}

// WrapKey encrypts key to the X25519 recipient public key.
// Layout: ephemeralPub(32) || nonce(24) || XChaCha20-Poly1305(key, aad).
func WrapKey(recipientPub, key, aad []byte) ([]byte, error) {
	if len(recipientPub) != PublicKeyLen {
		return nil, ErrBadKey
	}
	eph, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	kek, err := sharedKEK(eph.Private, recipientPub, eph.Public, recipientPub)
	if err != nil {
		return nil, err
	}
	ct, err := seal(kek, key, aad)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(eph.Public)+len(ct))
	out = append(out, eph.Public...)
	return append(out, ct...), nil
}

// UnwrapKey decrypts a WrapKey output with the recipient private key.
func UnwrapKey(recipientPriv, wrapped, aad []byte) ([]byte, error) {
	if len(wrapped) < PublicKeyLen+chacha20poly1305.NonceSizeX {
		return nil, ErrShortCiphertext
	}
	recipientPub, err := PublicKey(recipientPriv)
	if err != nil {
		return nil, err
	}
	ephPub := wrapped[:PublicKeyLen]
	kek, err := sharedKEK(recipientPriv, ephPub, ephPub, recipientPub)
	if err != nil {
		return nil, err
	}
	return open(kek, wrapped[PublicKeyLen:], aad)
}

// sharedKEK = HKDF-SHA256(X25519(priv, peer), salt = ephPub || recipientPub).
func sharedKEK(priv, peer, ephPub, recipientPub []byte) ([]byte, error) {
	shared, err := curve25519.X25519(priv, peer)
	if err != nil {
		return nil, err
	}
	salt := make([]byte, 0, len(ephPub)+len(recipientPub))
	salt = append(salt, ephPub...)
	salt = append(salt, recipientPub...)
	r := hkdf.New(sha256.New, shared, salt, []byte(wrapInfo))
	kek := make([]byte, KeKLen)
	if _, err := io.ReadFull(r, kek); err != nil {
		return nil, err
	}
	return kek, nil
}

// NewDEK returns a random document encryption key.
func NewDEK() ([]byte, error) { return Rand(DEKLen) }

// SealDocument encrypts plaintext with dek; header is bound as AAD.
func SealDocument(dek, header, plaintext []byte) ([]byte, error) {
	return seal(dek, plaintext, header)
}

// OpenDocument decrypts a SealDocument output using the same header.
func OpenDocument(dek, header, sealed []byte) ([]byte, error) {
	return open(dek, sealed, header)
}

func seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

func open(key, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, ErrShortCiphertext
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ct := sealed[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, aad)
}
