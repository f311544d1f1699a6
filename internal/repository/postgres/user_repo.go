package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (account_id, segment_id, public_key, encrypted_private_key, needs_rotation)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, u.AccountID, u.SegmentID, u.PublicKey, u.EncryptedPrivateKey, u.NeedsRotation).
		Scan(&u.Created, &u.Updated)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get selects a user by account id.
func (r *UserRepo) Get(ctx context.Context, accountID string) (*model.User, error) {
	const q = `
SELECT account_id, segment_id, public_key, encrypted_private_key, needs_rotation, created_at, updated_at
FROM users WHERE account_id=$1`
	var u model.User
	err := r.db.Pool.QueryRow(ctx, q, accountID).
		Scan(&u.AccountID, &u.SegmentID, &u.PublicKey, &u.EncryptedPrivateKey, &u.NeedsRotation, &u.Created, &u.Updated)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// PublicKeys selects the public keys of existing users.
func (r *UserRepo) PublicKeys(ctx context.Context, accountIDs []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(accountIDs))
	if len(accountIDs) == 0 {
		return out, nil
	}
	const q = `SELECT account_id, public_key FROM users WHERE account_id = ANY($1)`
	rows, err := r.db.Pool.Query(ctx, q, accountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var key []byte
		if err := rows.Scan(&id, &key); err != nil {
			return nil, err
		}
		out[id] = key
	}
	return out, rows.Err()
}

// DeviceRepo implements DeviceRepository using PostgreSQL.
type DeviceRepo struct{ db *DB }

// NewDeviceRepo constructs a device repository.
func NewDeviceRepo(db *DB) *DeviceRepo { return &DeviceRepo{db: db} }

const deviceColumns = `id, account_id, name, signing_public_key, public_key, wrapped_user_key, created_at, updated_at`

func scanDevice(row pgx.Row) (*model.Device, error) {
	var d model.Device
	if err := row.Scan(&d.ID, &d.AccountID, &d.Name, &d.SigningPublicKey, &d.PublicKey, &d.WrappedUserKey, &d.Created, &d.Updated); err != nil {
		return nil, err
	}
	return &d, nil
}

// Add inserts a device and assigns its id.
func (r *DeviceRepo) Add(ctx context.Context, d *model.Device) error {
	const q = `
INSERT INTO devices (account_id, name, signing_public_key, public_key, wrapped_user_key)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q, d.AccountID, d.Name, d.SigningPublicKey, d.PublicKey, d.WrappedUserKey).
		Scan(&d.ID, &d.Created, &d.Updated)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get selects one device of an account.
func (r *DeviceRepo) Get(ctx context.Context, accountID string, id int64) (*model.Device, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices WHERE account_id=$1 AND id=$2`
	d, err := scanDevice(r.db.Pool.QueryRow(ctx, q, accountID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// GetBySigningKey selects the device registered with signingKey.
func (r *DeviceRepo) GetBySigningKey(ctx context.Context, signingKey []byte) (*model.Device, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices WHERE signing_public_key=$1`
	d, err := scanDevice(r.db.Pool.QueryRow(ctx, q, signingKey))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// List selects all devices of an account.
func (r *DeviceRepo) List(ctx context.Context, accountID string) ([]model.Device, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices WHERE account_id=$1 ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Delete removes a device.
func (r *DeviceRepo) Delete(ctx context.Context, accountID string, id int64) error {
	const q = `DELETE FROM devices WHERE account_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, accountID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// notFound maps pgx.ErrNoRows to errs.ErrNotFound and keeps every other error.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	return err
}
