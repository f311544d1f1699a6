package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

// GroupRepo implements GroupRepository using PostgreSQL.
type GroupRepo struct{ db *DB }

// NewGroupRepo constructs a group repository.
func NewGroupRepo(db *DB) *GroupRepo { return &GroupRepo{db: db} }

const groupColumns = `id, segment_id, name, owner, public_key, needs_rotation, created_at, updated_at`

func scanGroup(row pgx.Row) (*model.Group, error) {
	var g model.Group
	if err := row.Scan(&g.ID, &g.SegmentID, &g.Name, &g.Owner, &g.PublicKey, &g.NeedsRotation, &g.Created, &g.Updated); err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts the group row and its user rows in one transaction.
func (r *GroupRepo) Create(ctx context.Context, g *model.Group, users []model.GroupUser) error {
	const ins = `
INSERT INTO groups (id, segment_id, name, owner, public_key, needs_rotation)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at`
	const insUser = `
INSERT INTO group_users (group_id, account_id, is_admin, is_member, wrapped_key)
VALUES ($1, $2, $3, $4, $5)`

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, ins, g.ID, g.SegmentID, g.Name, g.Owner, g.PublicKey, g.NeedsRotation).
			Scan(&g.Created, &g.Updated); err != nil {
			return err
		}
		for _, u := range users {
			if _, err := tx.Exec(ctx, insUser, g.ID, u.AccountID, u.IsAdmin, u.IsMember, u.WrappedKey); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	}
	return err
}

// Get selects a group by id.
func (r *GroupRepo) Get(ctx context.Context, id string) (*model.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM groups WHERE id=$1`
	g, err := scanGroup(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

// Users selects all user rows of a group.
func (r *GroupRepo) Users(ctx context.Context, groupID string) ([]model.GroupUser, error) {
	const q = `
SELECT group_id, account_id, is_admin, is_member, wrapped_key
FROM group_users WHERE group_id=$1 ORDER BY account_id ASC`
	rows, err := r.db.Pool.Query(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.GroupUser, 0)
	for rows.Next() {
		var u model.GroupUser
		if err := rows.Scan(&u.GroupID, &u.AccountID, &u.IsAdmin, &u.IsMember, &u.WrappedKey); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListForUser selects groups where accountID is admin or member.
func (r *GroupRepo) ListForUser(ctx context.Context, accountID string) ([]model.GroupView, error) {
	const q = `
SELECT g.id, g.segment_id, g.name, g.owner, g.public_key, g.needs_rotation, g.created_at, g.updated_at,
       gu.is_admin, gu.is_member
FROM groups g JOIN group_users gu ON gu.group_id = g.id
WHERE gu.account_id=$1 AND (gu.is_admin OR gu.is_member)
ORDER BY g.created_at ASC, g.id ASC`
	rows, err := r.db.Pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.GroupView, 0)
	for rows.Next() {
		var v model.GroupView
		g := &v.Group
		if err := rows.Scan(&g.ID, &g.SegmentID, &g.Name, &g.Owner, &g.PublicKey, &g.NeedsRotation, &g.Created, &g.Updated,
			&v.IsAdmin, &v.IsMember); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateName sets or clears the name.
func (r *GroupRepo) UpdateName(ctx context.Context, id string, name *string) (*model.Group, error) {
	q := `UPDATE groups SET name=$2, updated_at=now() WHERE id=$1 RETURNING ` + groupColumns
	g, err := scanGroup(r.db.Pool.QueryRow(ctx, q, id, name))
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

// Delete removes the group; user rows cascade.
func (r *GroupRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM groups WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// PutUser upserts one user row.
func (r *GroupRepo) PutUser(ctx context.Context, gu model.GroupUser) error {
	const q = `
INSERT INTO group_users (group_id, account_id, is_admin, is_member, wrapped_key)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (group_id, account_id) DO UPDATE
SET is_admin=EXCLUDED.is_admin, is_member=EXCLUDED.is_member, wrapped_key=EXCLUDED.wrapped_key`
	_, err := r.db.Pool.Exec(ctx, q, gu.GroupID, gu.AccountID, gu.IsAdmin, gu.IsMember, gu.WrappedKey)
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	return err
}

// DeleteUser removes one user row.
func (r *GroupRepo) DeleteUser(ctx context.Context, groupID, accountID string) error {
	const q = `DELETE FROM group_users WHERE group_id=$1 AND account_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, groupID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// PublicKeys selects the public keys of existing groups.
func (r *GroupRepo) PublicKeys(ctx context.Context, ids []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `SELECT id, public_key FROM groups WHERE id = ANY($1)`
	rows, err := r.db.Pool.Query(ctx, q, ids)
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
