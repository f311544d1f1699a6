// Package memory contains in-process implementations of the repository
// interfaces. It backs tests and the key server's --storage=memory mode.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
	"github.com/and161185/ironkeep/internal/repository"
)

type grantKey struct{ kind, id string }

// Store holds all tables behind one lock so cross-table checks stay consistent.
type Store struct {
	mu sync.RWMutex

	users      map[string]model.User
	devices    map[int64]model.Device
	nextDevice int64
	groups     map[string]model.Group
	groupUsers map[string]map[string]model.GroupUser
	docs       map[string]model.Document
	grants     map[string]map[grantKey]model.DocumentGrant

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:      make(map[string]model.User),
		devices:    make(map[int64]model.Device),
		groups:     make(map[string]model.Group),
		groupUsers: make(map[string]map[string]model.GroupUser),
		docs:       make(map[string]model.Document),
		grants:     make(map[string]map[grantKey]model.DocumentGrant),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the user repository view of s.
func (s *Store) Users() *UserRepo { return &UserRepo{s} }

// Devices returns the device repository view of s.
func (s *Store) Devices() *DeviceRepo { return &DeviceRepo{s} }

// Groups returns the group repository view of s.
func (s *Store) Groups() *GroupRepo { return &GroupRepo{s} }

// Documents returns the document repository view of s.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s} }

var (
	_ repository.UserRepository     = (*UserRepo)(nil)
	_ repository.DeviceRepository   = (*DeviceRepo)(nil)
	_ repository.GroupRepository    = (*GroupRepo)(nil)
	_ repository.DocumentRepository = (*DocumentRepo)(nil)
)

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func cloneName(n *string) *string {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

// UserRepo is the in-memory UserRepository.
type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.AccountID]; ok {
		return errs.ErrAlreadyExists
	}
	now := r.s.now()
	u.Created, u.Updated = now, now
	c := *u
	c.PublicKey = cloneBytes(u.PublicKey)
	c.EncryptedPrivateKey = cloneBytes(u.EncryptedPrivateKey)
	r.s.users[u.AccountID] = c
	return nil
}

func (r *UserRepo) Get(ctx context.Context, accountID string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[accountID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) PublicKeys(ctx context.Context, accountIDs []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string][]byte, len(accountIDs))
	for _, id := range accountIDs {
		if u, ok := r.s.users[id]; ok {
			out[id] = cloneBytes(u.PublicKey)
		}
	}
	return out, nil
}

// DeviceRepo is the in-memory DeviceRepository.
type DeviceRepo struct{ s *Store }

func (r *DeviceRepo) Add(ctx context.Context, d *model.Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[d.AccountID]; !ok {
		return errs.ErrNotFound
	}
	for _, x := range r.s.devices {
		if bytes.Equal(x.SigningPublicKey, d.SigningPublicKey) {
			return errs.ErrAlreadyExists
		}
	}
	r.s.nextDevice++
	now := r.s.now()
	d.ID, d.Created, d.Updated = r.s.nextDevice, now, now
	c := *d
	c.Name = cloneName(d.Name)
	r.s.devices[d.ID] = c
	return nil
}

func (r *DeviceRepo) Get(ctx context.Context, accountID string, id int64) (*model.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.devices[id]
	if !ok || d.AccountID != accountID {
		return nil, errs.ErrNotFound
	}
	return &d, nil
}

func (r *DeviceRepo) GetBySigningKey(ctx context.Context, signingKey []byte) (*model.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, d := range r.s.devices {
		if bytes.Equal(d.SigningPublicKey, signingKey) {
			return &d, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *DeviceRepo) List(ctx context.Context, accountID string) ([]model.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Device, 0)
	for _, d := range r.s.devices {
		if d.AccountID == accountID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *DeviceRepo) Delete(ctx context.Context, accountID string, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok || d.AccountID != accountID {
		return errs.ErrNotFound
	}
	delete(r.s.devices, id)
	return nil
}

// GroupRepo is the in-memory GroupRepository.
type GroupRepo struct{ s *Store }

func (r *GroupRepo) Create(ctx context.Context, g *model.Group, users []model.GroupUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.groups[g.ID]; ok {
		return errs.ErrAlreadyExists
	}
	if _, ok := r.s.users[g.Owner]; !ok {
		return errs.ErrNotFound
	}
	rows := make(map[string]model.GroupUser, len(users))
	for _, u := range users {
		if _, ok := r.s.users[u.AccountID]; !ok {
			return errs.ErrNotFound
		}
		u.GroupID = g.ID
		u.WrappedKey = cloneBytes(u.WrappedKey)
		rows[u.AccountID] = u
	}
	now := r.s.now()
	g.Created, g.Updated = now, now
	c := *g
	c.Name = cloneName(g.Name)
	r.s.groups[g.ID] = c
	r.s.groupUsers[g.ID] = rows
	return nil
}

func (r *GroupRepo) Get(ctx context.Context, id string) (*model.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	g, ok := r.s.groups[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	g.Name = cloneName(g.Name)
	return &g, nil
}

func (r *GroupRepo) Users(ctx context.Context, groupID string) ([]model.GroupUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.GroupUser, 0, len(r.s.groupUsers[groupID]))
	for _, u := range r.s.groupUsers[groupID] {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (r *GroupRepo) ListForUser(ctx context.Context, accountID string) ([]model.GroupView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.GroupView, 0)
	for gid, rows := range r.s.groupUsers {
		u, ok := rows[accountID]
		if !ok || (!u.IsAdmin && !u.IsMember) {
			continue
		}
		g := r.s.groups[gid]
		g.Name = cloneName(g.Name)
		out = append(out, model.GroupView{Group: g, IsAdmin: u.IsAdmin, IsMember: u.IsMember})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *GroupRepo) UpdateName(ctx context.Context, id string, name *string) (*model.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.groups[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	g.Name = cloneName(name)
	g.Updated = r.s.now()
	r.s.groups[id] = g
	return &g, nil
}

func (r *GroupRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.groups[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.s.groups, id)
	delete(r.s.groupUsers, id)
	return nil
}

func (r *GroupRepo) PutUser(ctx context.Context, gu model.GroupUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows, ok := r.s.groupUsers[gu.GroupID]
	if !ok {
		return errs.ErrNotFound
	}
	if _, ok := r.s.users[gu.AccountID]; !ok {
		return errs.ErrNotFound
	}
	gu.WrappedKey = cloneBytes(gu.WrappedKey)
	rows[gu.AccountID] = gu
	return nil
}

func (r *GroupRepo) DeleteUser(ctx context.Context, groupID, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.s.groupUsers[groupID]
	if _, ok := rows[accountID]; !ok {
		return errs.ErrNotFound
	}
	delete(rows, accountID)
	return nil
}

func (r *GroupRepo) PublicKeys(ctx context.Context, ids []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string][]byte, len(ids))
	for _, id := range ids {
		if g, ok := r.s.groups[id]; ok {
			out[id] = cloneBytes(g.PublicKey)
		}
	}
	return out, nil
}

// DocumentRepo is the in-memory DocumentRepository.
type DocumentRepo struct{ s *Store }

func (r *DocumentRepo) Create(ctx context.Context, d *model.Document, grants []model.DocumentGrant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.docs[d.ID]; ok {
		return errs.ErrAlreadyExists
	}
	rows := make(map[grantKey]model.DocumentGrant, len(grants))
	for _, g := range grants {
		g.DocumentID = d.ID
		g.EDEK = cloneBytes(g.EDEK)
		rows[grantKey{g.Kind, g.GranteeID}] = g
	}
	now := r.s.now()
	d.Created, d.Updated = now, now
	c := *d
	c.Name = cloneName(d.Name)
	r.s.docs[d.ID] = c
	r.s.grants[d.ID] = rows
	return nil
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.docs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	d.Name = cloneName(d.Name)
	return &d, nil
}

func (r *DocumentRepo) Grants(ctx context.Context, documentID string) ([]model.DocumentGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.DocumentGrant, 0, len(r.s.grants[documentID]))
	for _, g := range r.s.grants[documentID] {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].GranteeID < out[j].GranteeID
	})
	return out, nil
}

func (r *DocumentRepo) ListForUser(ctx context.Context, accountID string, groupIDs []string) ([]model.DocumentView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.DocumentView, 0)
	for id, d := range r.s.docs {
		rows := r.s.grants[id]
		var assoc model.AssociationType
		switch {
		case d.Author == accountID:
			assoc = model.AssociationOwner
		case hasGrant(rows, model.GranteeUser, accountID):
			assoc = model.AssociationFromUser
		default:
			for _, gid := range groupIDs {
				if hasGrant(rows, model.GranteeGroup, gid) {
					assoc = model.AssociationFromGroup
					break
				}
			}
		}
		if assoc == "" {
			continue
		}
		d.Name = cloneName(d.Name)
		out = append(out, model.DocumentView{Document: d, Association: assoc})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func hasGrant(rows map[grantKey]model.DocumentGrant, kind, id string) bool {
	_, ok := rows[grantKey{kind, id}]
	return ok
}

func (r *DocumentRepo) Touch(ctx context.Context, id string) (*model.Document, error) {
	return r.update(ctx, id, func(*model.Document) {})
}

func (r *DocumentRepo) UpdateName(ctx context.Context, id string, name *string) (*model.Document, error) {
	return r.update(ctx, id, func(d *model.Document) { d.Name = cloneName(name) })
}

func (r *DocumentRepo) update(ctx context.Context, id string, fn func(*model.Document)) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	fn(&d)
	d.Updated = r.s.now()
	r.s.docs[id] = d
	out := d
	out.Name = cloneName(d.Name)
	return &out, nil
}

func (r *DocumentRepo) AddGrant(ctx context.Context, g model.DocumentGrant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows, ok := r.s.grants[g.DocumentID]
	if !ok {
		return errs.ErrNotFound
	}
	k := grantKey{g.Kind, g.GranteeID}
	if _, dup := rows[k]; dup {
		return errs.ErrAlreadyExists
	}
	g.EDEK = cloneBytes(g.EDEK)
	rows[k] = g
	return nil
}

func (r *DocumentRepo) DeleteGrant(ctx context.Context, documentID, kind, granteeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.s.grants[documentID]
	k := grantKey{kind, granteeID}
	if _, ok := rows[k]; !ok {
		return errs.ErrNotFound
	}
	delete(rows, k)
	return nil
}
