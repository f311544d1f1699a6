package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/ironkeep/internal/errs"
	"github.com/and161185/ironkeep/internal/model"
	"github.com/and161185/ironkeep/internal/repository/memory"
)

type docFixture struct {
	st     *memory.Store
	docs   *DocumentServiceImpl
	groups *GroupServiceImpl
}

// newDocFixture seeds alice, bob, carol and dave; group "team" has alice as
// owner and carol as member, dave is only an admin.
func newDocFixture(t *testing.T) docFixture {
	t.Helper()
	st := memory.New()
	seedAccounts(t, st, "alice", "bob", "carol", "dave")
	f := docFixture{
		st:     st,
		docs:   NewDocumentService(st.Documents(), st.Groups(), st.Users()),
		groups: NewGroupService(st.Groups()),
	}
	newGroup(t, f.groups, "team", "alice",
		model.GroupUser{AccountID: "alice", IsAdmin: true, WrappedKey: []byte("ka")},
		model.GroupUser{AccountID: "carol", IsMember: true, WrappedKey: []byte("kc")},
		model.GroupUser{AccountID: "dave", IsAdmin: true, WrappedKey: []byte("kd")})
	return f
}

func userGrant(id, edek string) model.DocumentGrant {
	return model.DocumentGrant{Kind: model.GranteeUser, GranteeID: id, EDEK: []byte(edek)}
}

func groupGrant(id, edek string) model.DocumentGrant {
	return model.DocumentGrant{Kind: model.GranteeGroup, GranteeID: id, EDEK: []byte(edek)}
}

func TestDocuments_CreatePartialGrants(t *testing.T) {
	t.Parallel()
	f := newDocFixture(t)
	ctx := context.Background()
	p := principal("alice")

	_, _, err := f.docs.Create(ctx, p, model.Document{ID: "d1"}, []model.DocumentGrant{userGrant("ghost", "e")})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	name := " notes "
	v, edit, err := f.docs.Create(ctx, p, model.Document{ID: "d1", Name: &name}, []model.DocumentGrant{
		userGrant("alice", "ea"),
		userGrant("alice", "dup"),
		groupGrant("team", "et"),
		userGrant("ghost", "eg"),
		{Kind: "robot", GranteeID: "r2", EDEK: []byte("x")},
		userGrant("bob", ""),
	})
	require.NoError(t, err)
	require.Equal(t, "notes", *v.Name)
	require.Equal(t, model.AssociationOwner, v.Association)
	require.Equal(t, v.Created, v.Updated)
	require.Equal(t, []string{"alice"}, v.VisibleUsers)
	require.Equal(t, []string{"team"}, v.VisibleGroups)
	require.Len(t, edit.Succeeded, 2)
	require.Len(t, edit.Failed, 3)

	_, _, err = f.docs.Create(ctx, p, model.Document{ID: "d1"}, []model.DocumentGrant{userGrant("alice", "e")})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestDocuments_KeyResolution(t *testing.T) {
	t.Parallel()
	f := newDocFixture(t)
	ctx := context.Background()
	_, _, err := f.docs.Create(ctx, principal("alice"), model.Document{ID: "d1"},
		[]model.DocumentGrant{userGrant("alice", "ea"), groupGrant("team", "et")})
	require.NoError(t, err)

	k, err := f.docs.Key(ctx, principal("alice"), "d1")
	require.NoError(t, err)
	require.Equal(t, model.GranteeUser, k.Grant.Kind)
	require.Equal(t, []byte("ea"), k.Grant.EDEK)
	require.Nil(t, k.GroupKey)

	k, err = f.docs.Key(ctx, principal("carol"), "d1")
	require.NoError(t, err)
	require.Equal(t, model.AssociationFromGroup, k.View.Association)
	require.Equal(t, "team", k.Grant.GranteeID)
	require.Equal(t, []byte("kc"), k.GroupKey)

	// admins that are not members do not decrypt through the group
	_, err = f.docs.Key(ctx, principal("dave"), "d1")
	require.ErrorIs(t, err, errs.ErrAccessDenied)
	_, err = f.docs.Get(ctx, principal("bob"), "d1")
	require.ErrorIs(t, err, errs.ErrAccessDenied)
	_, err = f.docs.Key(ctx, principal("alice"), "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDocuments_AuthorWithoutGrant(t *testing.T) {
	t.Parallel()
	f := newDocFixture(t)
	ctx := context.Background()
	_, _, err := f.docs.Create(ctx, principal("alice"), model.Document{ID: "d1"}, []model.DocumentGrant{userGrant("bob", "eb")})
	require.NoError(t, err)

	v, err := f.docs.Get(ctx, principal("alice"), "d1")
	require.NoError(t, err)
	require.Equal(t, model.AssociationOwner, v.Association)
	_, err = f.docs.Key(ctx, principal("alice"), "d1")
	require.ErrorIs(t, err, errs.ErrAccessDenied)

	v, err = f.docs.Get(ctx, principal("bob"), "d1")
	require.NoError(t, err)
	require.Equal(t, model.AssociationFromUser, v.Association)
}

func TestDocuments_ListTouchRename(t *testing.T) {
	t.Parallel()
	f := newDocFixture(t)
	ctx := context.Background()
	_, _, err := f.docs.Create(ctx, principal("alice"), model.Document{ID: "d1"}, []model.DocumentGrant{groupGrant("team", "et")})
	require.NoError(t, err)
	_, _, err = f.docs.Create(ctx, principal("bob"), model.Document{ID: "d2"}, []model.DocumentGrant{userGrant("bob", "eb")})
	require.NoError(t, err)

	list, err := f.docs.List(ctx, principal("carol"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, model.AssociationFromGroup, list[0].Association)

	list, err = f.docs.List(ctx, principal("dave"))
	require.NoError(t, err)
	require.Empty(t, list)

	touched, err := f.docs.Touch(ctx, principal("carol"), "d1")
	require.NoError(t, err)
	require.False(t, touched.Updated.Before(touched.Created))

	name := "renamed"
	v, err := f.docs.UpdateName(ctx, principal("carol"), "d1", &name)
	require.NoError(t, err)
	require.Equal(t, "renamed", *v.Name)
	_, err = f.docs.UpdateName(ctx, principal("bob"), "d1", &name)
	require.ErrorIs(t, err, errs.ErrAccessDenied)
}

func TestDocuments_GrantAndRevoke(t *testing.T) {
	t.Parallel()
	f := newDocFixture(t)
	ctx := context.Background()
	_, _, err := f.docs.Create(ctx, principal("alice"), model.Document{ID: "d1"}, []model.DocumentGrant{userGrant("alice", "ea")})
	require.NoError(t, err)

	_, err = f.docs.Grant(ctx, principal("bob"), "d1", []model.DocumentGrant{userGrant("bob", "eb")})
	require.ErrorIs(t, err, errs.ErrAccessDenied)

	edit, err := f.docs.Grant(ctx, principal("alice"), "d1", []model.DocumentGrant{userGrant("bob", "eb"), groupGrant("ghosts", "eg")})
	require.NoError(t, err)
	require.Equal(t, []model.Target{{Kind: model.GranteeUser, ID: "bob"}}, edit.Succeeded)
	require.Len(t, edit.Failed, 1)
	require.ErrorIs(t, edit.Failed[0].Err, errs.ErrNotFound)

	k, err := f.docs.Key(ctx, principal("bob"), "d1")
	require.NoError(t, err)
	require.Equal(t, []byte("eb"), k.Grant.EDEK)

	// a grantee cannot overwrite an existing grant
	edit, err = f.docs.Grant(ctx, principal("bob"), "d1", []model.DocumentGrant{userGrant("alice", "junk"), userGrant("carol", "ec")})
	require.NoError(t, err)
	require.Equal(t, []model.Target{{Kind: model.GranteeUser, ID: "carol"}}, edit.Succeeded)
	require.Len(t, edit.Failed, 1)
	require.Equal(t, model.Target{Kind: model.GranteeUser, ID: "alice"}, edit.Failed[0].Target)
	require.ErrorIs(t, edit.Failed[0].Err, errs.ErrAlreadyExists)
	k, err = f.docs.Key(ctx, principal("alice"), "d1")
	require.NoError(t, err)
	require.Equal(t, []byte("ea"), k.Grant.EDEK)

	_, err = f.docs.Revoke(ctx, principal("bob"), "d1", []model.Target{{Kind: model.GranteeUser, ID: "bob"}})
	require.ErrorIs(t, err, errs.ErrAccessDenied)

	edit, err = f.docs.Revoke(ctx, principal("alice"), "d1", []model.Target{
		{Kind: model.GranteeUser, ID: "bob"},
		{Kind: model.GranteeGroup, ID: "team"},
	})
	require.NoError(t, err)
	require.Len(t, edit.Succeeded, 1)
	require.Len(t, edit.Failed, 1)
	_, err = f.docs.Key(ctx, principal("bob"), "d1")
	require.ErrorIs(t, err, errs.ErrAccessDenied)
}
