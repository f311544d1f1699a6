// Package limiter throttles identity assertion attempts per subject and peer.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter controls identity assertion attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether an attempt is currently allowed and optional retry-after.
	Allow(ctx context.Context, subject string, peerHash []byte) (bool, time.Duration, error)
	// Success resets counters after an accepted assertion.
	Success(ctx context.Context, subject string, peerHash []byte) error
	// Failure records a rejected attempt; may place a temporary block.
	Failure(ctx context.Context, subject string, peerHash []byte) (bool, time.Duration, error)
}

// HashPeer returns a stable hash for a peer address to avoid storing raw addresses.
func HashPeer(addr string) []byte {
	h := sha256.Sum256([]byte(addr))
	return h[:]
}

// Settings are shared by every backend.
type Settings struct {
	Window   time.Duration // failures older than this are forgotten
	MaxFails int
	BlockFor time.Duration
}

// DefaultSettings allows five failures per 15 minutes and then blocks for 15 minutes.
func DefaultSettings() Settings {
	return Settings{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Window <= 0 {
		s.Window = d.Window
	}
	if s.MaxFails <= 0 {
		s.MaxFails = d.MaxFails
	}
	if s.BlockFor <= 0 {
		s.BlockFor = d.BlockFor
	}
	return s
}
