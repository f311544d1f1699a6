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

func TestGroupRepo_Create_Tx(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewGroupRepo(db)
	ctx := context.Background()
	now := time.Now()
	g := &model.Group{ID: "g1", SegmentID: 1, Owner: "alice", PublicKey: []byte("gpk")}
	users := []model.GroupUser{
		{GroupID: "g1", AccountID: "alice", IsAdmin: true, IsMember: true, WrappedKey: []byte("k1")},
		{GroupID: "g1", AccountID: "bob", IsMember: true, WrappedKey: []byte("k2")},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO groups \(id, segment_id, name, owner, public_key, needs_rotation\)`).
		WithArgs("g1", int64(1), g.Name, "alice", []byte("gpk"), false).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO group_users`).
		WithArgs("g1", "alice", true, true, []byte("k1")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO group_users`).
		WithArgs("g1", "bob", false, true, []byte("k2")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, r.Create(ctx, g, users))
	require.Equal(t, now, g.Created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepo_Create_DuplicateRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewGroupRepo(db)
	g := &model.Group{ID: "g1", SegmentID: 1, Owner: "alice", PublicKey: []byte("gpk")}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO groups`).
		WithArgs("g1", int64(1), g.Name, "alice", []byte("gpk"), false).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	require.ErrorIs(t, r.Create(context.Background(), g, nil), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepo_Create_UnknownUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewGroupRepo(db)
	g := &model.Group{ID: "g1", SegmentID: 1, Owner: "alice", PublicKey: []byte("gpk")}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO groups`).
		WithArgs("g1", int64(1), g.Name, "alice", []byte("gpk"), false).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mock.ExpectExec(`INSERT INTO group_users`).
		WithArgs("g1", "ghost", false, true, []byte("k")).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err := r.Create(context.Background(), g, []model.GroupUser{{GroupID: "g1", AccountID: "ghost", IsMember: true, WrappedKey: []byte("k")}})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGroupRepo_ListForUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewGroupRepo(db)
	now := time.Now()
	name := "team"

	cols := []string{"id", "segment_id", "name", "owner", "public_key", "needs_rotation", "created_at", "updated_at", "is_admin", "is_member"}
	mock.ExpectQuery(`FROM groups g JOIN group_users gu ON gu.group_id = g.id WHERE gu.account_id=\$1`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("g1", int64(1), &name, "alice", []byte("k"), false, now, now, true, true).
			AddRow("g2", int64(1), nil, "bob", []byte("k2"), true, now, now, false, true))

	got, err := r.ListForUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "team", *got[0].Name)
	require.True(t, got[0].IsAdmin)
	require.False(t, got[1].IsAdmin)
	require.True(t, got[1].NeedsRotation)
}

func TestGroupRepo_GetAndUsers(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewGroupRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`FROM groups WHERE id=\$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)
	_, err := r.Get(ctx, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`SELECT group_id, account_id, is_admin, is_member, wrapped_key FROM group_users WHERE group_id=\$1`).
		WithArgs("g1").
		WillReturnRows(pgxmock.NewRows([]string{"group_id", "account_id", "is_admin", "is_member", "wrapped_key"}).
			AddRow("g1", "alice", true, false, []byte("k")))
	us, err := r.Users(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, us, 1)
	require.True(t, us[0].IsAdmin)
}

func TestGroupRepo_PutAndDeleteUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewGroupRepo(db)
	ctx := context.Background()
	gu := model.GroupUser{GroupID: "g1", AccountID: "bob", IsMember: true, WrappedKey: []byte("k")}

	mock.ExpectExec(`INSERT INTO group_users .* ON CONFLICT \(group_id, account_id\) DO UPDATE`).
		WithArgs("g1", "bob", false, true, []byte("k")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.PutUser(ctx, gu))

	mock.ExpectExec(`DELETE FROM group_users WHERE group_id=\$1 AND account_id=\$2`).
		WithArgs("g1", "carol").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.DeleteUser(ctx, "g1", "carol"), errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM groups WHERE id=\$1`).
		WithArgs("g1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, "g1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepo_UpdateName(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewGroupRepo(db)
	now := time.Now()
	name := "renamed"

	cols := []string{"id", "segment_id", "name", "owner", "public_key", "needs_rotation", "created_at", "updated_at"}
	mock.ExpectQuery(`UPDATE groups SET name=\$2, updated_at=now\(\) WHERE id=\$1 RETURNING`).
		WithArgs("g1", &name).
		WillReturnRows(pgxmock.NewRows(cols).AddRow("g1", int64(1), &name, "alice", []byte("k"), false, now, now))
	g, err := r.UpdateName(context.Background(), "g1", &name)
	require.NoError(t, err)
	require.Equal(t, "renamed", *g.Name)
}
