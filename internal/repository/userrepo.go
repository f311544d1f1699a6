// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/ironkeep/internal/model"
)

// UserRepository stores accounts and their password protected master keys.
type UserRepository interface {
	// Create inserts a new user. A taken account id yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// Get loads a user by account id.
	Get(ctx context.Context, accountID string) (*model.User, error)
	// PublicKeys returns the public keys of the users that exist; unknown ids are omitted.
	PublicKeys(ctx context.Context, accountIDs []string) (map[string][]byte, error)
}

// DeviceRepository stores authorized devices.
type DeviceRepository interface {
	// Add inserts d and fills in its assigned ID and timestamps.
	Add(ctx context.Context, d *model.Device) error
	// Get loads one device of an account.
	Get(ctx context.Context, accountID string, id int64) (*model.Device, error)
	// GetBySigningKey finds the device registered with an Ed25519 public key.
	GetBySigningKey(ctx context.Context, signingKey []byte) (*model.Device, error)
	// List returns every device of an account ordered by id.
	List(ctx context.Context, accountID string) ([]model.Device, error)
	// Delete removes a device; errs.ErrNotFound when it does not exist.
	Delete(ctx context.Context, accountID string, id int64) error
}
