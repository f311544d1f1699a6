package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now()
	u := &model.User{
		AccountID:           "alice",
		SegmentID:           7,
		PublicKey:           []byte("pub"),
		EncryptedPrivateKey: []byte("enc"),
	}

	mock.ExpectQuery(`INSERT INTO users \(account_id, segment_id, public_key, encrypted_private_key, needs_rotation\)`).
		WithArgs(u.AccountID, u.SegmentID, u.PublicKey, u.EncryptedPrivateKey, false).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	require.NoError(t, r.Create(ctx, u))
	require.Equal(t, now, u.Created)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(u.AccountID, u.SegmentID, u.PublicKey, u.EncryptedPrivateKey, false).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	cols := []string{"account_id", "segment_id", "public_key", "encrypted_private_key", "needs_rotation", "created_at", "updated_at"}

	mock.ExpectQuery(`SELECT account_id, segment_id, public_key, encrypted_private_key, needs_rotation, created_at, updated_at FROM users WHERE account_id=\$1`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("alice", int64(7), []byte("pub"), []byte("enc"), true, time.Now(), time.Now()))
	u, err := r.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", u.AccountID)
	require.True(t, u.NeedsRotation)

	mock.ExpectQuery(`FROM users WHERE account_id=\$1`).
		WithArgs("bob").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, "bob")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_PublicKeys(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()

	got, err := r.PublicKeys(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, got)

	ids := []string{"alice", "ghost"}
	mock.ExpectQuery(`SELECT account_id, public_key FROM users WHERE account_id = ANY\(\$1\)`).
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "public_key"}).AddRow("alice", []byte("pa")))
	got, err = r.PublicKeys(ctx, ids)
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"alice": []byte("pa")}, got)
}

func TestDeviceRepo_AddGetDelete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDeviceRepo(db)
	ctx := context.Background()
	now := time.Now()
	name := "laptop"
	d := &model.Device{AccountID: "alice", Name: &name, SigningPublicKey: []byte("spk"), PublicKey: []byte("pk"), WrappedUserKey: []byte("w")}

	mock.ExpectQuery(`INSERT INTO devices \(account_id, name, signing_public_key, public_key, wrapped_user_key\)`).
		WithArgs("alice", &name, d.SigningPublicKey, d.PublicKey, d.WrappedUserKey).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(3), now, now))
	require.NoError(t, r.Add(ctx, d))
	require.Equal(t, int64(3), d.ID)

	cols := []string{"id", "account_id", "name", "signing_public_key", "public_key", "wrapped_user_key", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM devices WHERE signing_public_key=\$1`).
		WithArgs([]byte("spk")).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(int64(3), "alice", &name, []byte("spk"), []byte("pk"), []byte("w"), now, now))
	got, err := r.GetBySigningKey(ctx, []byte("spk"))
	require.NoError(t, err)
	require.Equal(t, "laptop", *got.Name)

	mock.ExpectQuery(`FROM devices WHERE account_id=\$1 ORDER BY id ASC`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(3), "alice", nil, []byte("spk"), []byte("pk"), []byte("w"), now, now).
			AddRow(int64(4), "alice", nil, []byte("spk2"), []byte("pk2"), []byte("w2"), now, now))
	list, err := r.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Nil(t, list[0].Name)

	mock.ExpectExec(`DELETE FROM devices WHERE account_id=\$1 AND id=\$2`).
		WithArgs("alice", int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, "alice", 9), errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM devices`).
		WithArgs("alice", int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, "alice", 3))
	require.NoError(t, mock.ExpectationsWereMet())
}
