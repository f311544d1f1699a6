package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
)

// DocumentRepo implements DocumentRepository using PostgreSQL.
type DocumentRepo struct{ db *DB }

// NewDocumentRepo constructs a document repository.
func NewDocumentRepo(db *DB) *DocumentRepo { return &DocumentRepo{db: db} }

const documentColumns = `id, segment_id, name, author, created_at, updated_at`

func scanDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	if err := row.Scan(&d.ID, &d.SegmentID, &d.Name, &d.Author, &d.Created, &d.Updated); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts the document and its grants in one transaction.
func (r *DocumentRepo) Create(ctx context.Context, d *model.Document, grants []model.DocumentGrant) error {
	const ins = `
INSERT INTO documents (id, segment_id, name, author)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`
	const insGrant = `
INSERT INTO document_grants (document_id, kind, grantee_id, edek, granted_by)
VALUES ($1, $2, $3, $4, $5)`

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, ins, d.ID, d.SegmentID, d.Name, d.Author).Scan(&d.Created, &d.Updated); err != nil {
			return err
		}
		for _, g := range grants {
			if _, err := tx.Exec(ctx, insGrant, d.ID, g.Kind, g.GranteeID, g.EDEK, g.GrantedBy); err != nil {
				return err
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get selects document metadata by id.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id=$1`
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// Grants selects every grant of a document.
func (r *DocumentRepo) Grants(ctx context.Context, documentID string) ([]model.DocumentGrant, error) {
	const q = `
SELECT document_id, kind, grantee_id, edek, granted_by
FROM document_grants WHERE document_id=$1 ORDER BY kind ASC, grantee_id ASC`
	rows, err := r.db.Pool.Query(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.DocumentGrant, 0)
	for rows.Next() {
		var g model.DocumentGrant
		if err := rows.Scan(&g.DocumentID, &g.Kind, &g.GranteeID, &g.EDEK, &g.GrantedBy); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListForUser selects the documents reachable by accountID, tagging how.
func (r *DocumentRepo) ListForUser(ctx context.Context, accountID string, groupIDs []string) ([]model.DocumentView, error) {
	const q = `
SELECT d.id, d.segment_id, d.name, d.author, d.created_at, d.updated_at,
       CASE
         WHEN d.author = $1 THEN 'owner'
         WHEN EXISTS (SELECT 1 FROM document_grants g
                      WHERE g.document_id = d.id AND g.kind = 'user' AND g.grantee_id = $1) THEN 'fromUser'
         ELSE 'fromGroup'
       END
FROM documents d
WHERE d.author = $1
   OR EXISTS (SELECT 1 FROM document_grants g
              WHERE g.document_id = d.id
                AND ((g.kind = 'user' AND g.grantee_id = $1) OR (g.kind = 'group' AND g.grantee_id = ANY($2))))
ORDER BY d.created_at ASC, d.id ASC`
	if groupIDs == nil {
		groupIDs = []string{}
	}
	rows, err := r.db.Pool.Query(ctx, q, accountID, groupIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.DocumentView, 0)
	for rows.Next() {
		var v model.DocumentView
		d := &v.Document
		var assoc string
		if err := rows.Scan(&d.ID, &d.SegmentID, &d.Name, &d.Author, &d.Created, &d.Updated, &assoc); err != nil {
			return nil, err
		}
		v.Association = model.AssociationType(assoc)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Touch bumps updated_at.
func (r *DocumentRepo) Touch(ctx context.Context, id string) (*model.Document, error) {
	q := `UPDATE documents SET updated_at=now() WHERE id=$1 RETURNING ` + documentColumns
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// UpdateName sets or clears the name.
func (r *DocumentRepo) UpdateName(ctx context.Context, id string, name *string) (*model.Document, error) {
	q := `UPDATE documents SET name=$2, updated_at=now() WHERE id=$1 RETURNING ` + documentColumns
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, q, id, name))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// AddGrant inserts one grant and never replaces an existing one.
func (r *DocumentRepo) AddGrant(ctx context.Context, g model.DocumentGrant) error {
	const q = `
INSERT INTO document_grants (document_id, kind, grantee_id, edek, granted_by)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (document_id, kind, grantee_id) DO NOTHING`
	tag, err := r.db.Pool.Exec(ctx, q, g.DocumentID, g.Kind, g.GranteeID, g.EDEK, g.GrantedBy)
	if isForeignKeyViolation(err) {
		return errs.ErrNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrAlreadyExists
	}
	return nil
}

// DeleteGrant removes one grant.
func (r *DocumentRepo) DeleteGrant(ctx context.Context, documentID, kind, granteeID string) error {
	const q = `DELETE FROM document_grants WHERE document_id=$1 AND kind=$2 AND grantee_id=$3`
	tag, err := r.db.Pool.Exec(ctx, q, documentID, kind, granteeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
