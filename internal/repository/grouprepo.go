package repository

import (
	"context"

	"github.com/and161185/ironkeep/internal/model"
)

// GroupRepository stores groups and the per-user wrapped group keys.
type GroupRepository interface {
	// Create inserts g and its users atomically and fills in the timestamps.
	// A taken group id yields errs.ErrAlreadyExists.
	Create(ctx context.Context, g *model.Group, users []model.GroupUser) error
	// Get loads a group by id.
	Get(ctx context.Context, id string) (*model.Group, error)
	// Users returns every admin and member row of a group.
	Users(ctx context.Context, groupID string) ([]model.GroupUser, error)
	// ListForUser returns the groups accountID administers or belongs to.
	ListForUser(ctx context.Context, accountID string) ([]model.GroupView, error)
	// UpdateName sets or clears the group name and bumps the update time.
	UpdateName(ctx context.Context, id string, name *string) (*model.Group, error)
	// Delete removes the group with all its users.
	Delete(ctx context.Context, id string) error
	// PutUser inserts or replaces one user row.
	PutUser(ctx context.Context, gu model.GroupUser) error
	// DeleteUser removes one user row.
	DeleteUser(ctx context.Context, groupID, accountID string) error
	// PublicKeys returns the public keys of the groups that exist.
	PublicKeys(ctx context.Context, ids []string) (map[string][]byte, error)
}
