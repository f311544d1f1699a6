package repository

import (
	"context"

	"github.com/and161185/ironkeep/internal/model"
)

// DocumentRepository stores document metadata and wrapped document keys.
type DocumentRepository interface {
	// Create inserts d with its grants atomically and fills in the timestamps.
	// A taken document id yields errs.ErrAlreadyExists.
	Create(ctx context.Context, d *model.Document, grants []model.DocumentGrant) error
	// Get loads document metadata by id.
	Get(ctx context.Context, id string) (*model.Document, error)
	// Grants returns every grant of a document.
	Grants(ctx context.Context, documentID string) ([]model.DocumentGrant, error)
	// ListForUser returns documents authored by accountID or granted to it
	// directly or through one of groupIDs.
	ListForUser(ctx context.Context, accountID string, groupIDs []string) ([]model.DocumentView, error)
	// Touch bumps the update time.
	Touch(ctx context.Context, id string) (*model.Document, error)
	// UpdateName sets or clears the name and bumps the update time.
	UpdateName(ctx context.Context, id string, name *string) (*model.Document, error)
	// AddGrant inserts one grant; an existing (kind, grantee) yields errs.ErrAlreadyExists.
	AddGrant(ctx context.Context, g model.DocumentGrant) error
	// DeleteGrant removes one grant; errs.ErrNotFound when it does not exist.
	DeleteGrant(ctx context.Context, documentID, kind, granteeID string) error
}
