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

func TestDocumentRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDocumentRepo(db)
	now := time.Now()
	name := "notes"
	d := &model.Document{ID: "d1", SegmentID: 1, Name: &name, Author: "alice"}
	grants := []model.DocumentGrant{{DocumentID: "d1", Kind: model.GranteeUser, GranteeID: "alice", EDEK: []byte("e"), GrantedBy: "alice"}}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO documents \(id, segment_id, name, author\)`).
		WithArgs("d1", int64(1), &name, "alice").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO document_grants`).
		WithArgs("d1", model.GranteeUser, "alice", []byte("e"), "alice").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	require.NoError(t, r.Create(context.Background(), d, grants))
	require.Equal(t, d.Created, d.Updated)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO documents`).
		WithArgs("d1", int64(1), &name, "alice").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()
	require.ErrorIs(t, r.Create(context.Background(), d, grants), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepo_ListForUser(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDocumentRepo(db)
	now := time.Now()

	cols := []string{"id", "segment_id", "name", "author", "created_at", "updated_at", "assoc"}
	mock.ExpectQuery(`FROM documents d WHERE d.author = \$1`).
		WithArgs("alice", []string{}).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("d1", int64(1), nil, "alice", now, now, "owner").
			AddRow("d2", int64(1), nil, "bob", now, now, "fromGroup"))

	got, err := r.ListForUser(context.Background(), "alice", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, model.AssociationOwner, got[0].Association)
	require.Equal(t, model.AssociationFromGroup, got[1].Association)
}

func TestDocumentRepo_TouchAndGrants(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDocumentRepo(db)
	ctx := context.Background()
	now := time.Now()

	cols := []string{"id", "segment_id", "name", "author", "created_at", "updated_at"}
	mock.ExpectQuery(`UPDATE documents SET updated_at=now\(\) WHERE id=\$1 RETURNING`).
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("d1", int64(1), nil, "alice", now.Add(-time.Hour), now))
	d, err := r.Touch(ctx, "d1")
	require.NoError(t, err)
	require.True(t, d.Updated.After(d.Created))

	mock.ExpectQuery(`UPDATE documents SET updated_at=now\(\)`).
		WithArgs("zz").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Touch(ctx, "zz")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`SELECT document_id, kind, grantee_id, edek, granted_by FROM document_grants WHERE document_id=\$1`).
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows([]string{"document_id", "kind", "grantee_id", "edek", "granted_by"}).
			AddRow("d1", "group", "g1", []byte("e1"), "alice").
			AddRow("d1", "user", "alice", []byte("e2"), "alice"))
	gs, err := r.Grants(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, gs, 2)

	mock.ExpectExec(`INSERT INTO document_grants .* ON CONFLICT .* DO NOTHING`).
		WithArgs("d1", "user", "bob", []byte("e3"), "alice").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.AddGrant(ctx, model.DocumentGrant{DocumentID: "d1", Kind: "user", GranteeID: "bob", EDEK: []byte("e3"), GrantedBy: "alice"}))

	mock.ExpectExec(`INSERT INTO document_grants .* ON CONFLICT .* DO NOTHING`).
		WithArgs("d1", "user", "alice", []byte("junk"), "bob").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	require.ErrorIs(t, r.AddGrant(ctx, model.DocumentGrant{DocumentID: "d1", Kind: "user", GranteeID: "alice", EDEK: []byte("junk"), GrantedBy: "bob"}), errs.ErrAlreadyExists)

	mock.ExpectExec(`DELETE FROM document_grants WHERE document_id=\$1 AND kind=\$2 AND grantee_id=\$3`).
		WithArgs("d1", "user", "carol").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.DeleteGrant(ctx, "d1", "user", "carol"), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
