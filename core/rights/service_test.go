package rights_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/versioned"
	"github.com/trezcool/matembezi/storage/database/dummy"
)

var (
	owner  = rights.Actor{ID: "owner"}
	editor = rights.Actor{ID: "editor"}
	admin  = rights.Actor{ID: "admin", IsAdmin: true}
	other  = rights.Actor{ID: "other"}
	guest  = rights.Actor{}
	expRef = activity.Ref{Type: activity.TypeExploration, ID: "exp0"}
)

func newService(t *testing.T) (*rights.Service, *[]rights.Changed) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	bus := events.NewBus(nil)
	var changes []rights.Changed
	bus.Subscribe(rights.TopicChanged, func(_ context.Context, e events.Event) error {
		changes = append(changes, e.(rights.Changed))
		return nil
	})
	return rights.NewService(dummydb.NewVersionedStore(db), bus), &changes
}

func TestRights_Predicates(t *testing.T) {
	private := rights.New("owner")
	private.EditorIDs = []string{"editor"}
	private.ViewerIDs = []string{"viewer"}

	public := rights.New("owner")
	public.Status = activity.StatusPublic

	community := rights.Rights{CommunityOwned: true, Status: activity.StatusPublic}

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"guest cannot view private", private.CanView(guest), false},
		{"viewer can view private", private.CanView(rights.Actor{ID: "viewer"}), true},
		{"admin can view private", private.CanView(admin), true},
		{"guest can view public", public.CanView(guest), true},
		{"viewer cannot edit", private.CanEdit(rights.Actor{ID: "viewer"}), false},
		{"editor can edit", private.CanEdit(editor), true},
		{"anyone logged in can edit community owned", community.CanEdit(other), true},
		{"guest cannot edit community owned", community.CanEdit(guest), false},
		{"owner can delete private", private.CanDelete(owner), true},
		{"editor cannot delete private", private.CanDelete(editor), false},
		{"owner cannot delete public", public.CanDelete(owner), false},
		{"admin can delete public", public.CanDelete(admin), true},
		{"owner can modify roles", private.CanModifyRoles(owner), true},
		{"nobody but admins modify community roles", community.CanModifyRoles(other), false},
		{"owner can publish private", private.CanPublish(owner), true},
		{"editor cannot publish", private.CanPublish(editor), false},
		{"public cannot be published again", public.CanPublish(owner), false},
		{"owner cannot unpublish", public.CanUnpublish(owner), false},
		{"admin can unpublish public", public.CanUnpublish(admin), true},
		{"private cannot be publicized", private.CanPublicize(admin), false},
		{"private ownership cannot be released", private.CanReleaseOwnership(owner), false},
		{"public ownership can be released", public.CanReleaseOwnership(owner), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestRights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rights  rights.Rights
		wantMsg string
	}{
		{
			name:    "community owned with owners",
			rights:  rights.Rights{OwnerIDs: []string{"a"}, CommunityOwned: true, Status: activity.StatusPublic},
			wantMsg: "Community-owned activities should have no owners, editors or viewers specified.",
		},
		{
			name:    "public with viewers",
			rights:  rights.Rights{OwnerIDs: []string{"a"}, ViewerIDs: []string{"b"}, Status: activity.StatusPublic},
			wantMsg: "Public activities should have no viewers specified.",
		},
		{
			name:    "owner and editor",
			rights:  rights.Rights{OwnerIDs: []string{"a"}, EditorIDs: []string{"a"}, Status: activity.StatusPrivate},
			wantMsg: "A user cannot be both an owner and an editor: a",
		},
		{
			name:    "bad status",
			rights:  rights.Rights{Status: "draft"},
			wantMsg: "Invalid activity status: draft",
		},
		{name: "new rights", rights: rights.New("a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rights.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, core.IsValidationError(err))
			assert.EqualError(t, err, tt.wantMsg)
		})
	}
}

func TestService_AssignRole(t *testing.T) {
	ctx := context.Background()
	svc, changes := newService(t)

	_, err := svc.Create(ctx, expRef, owner.ID)
	require.NoError(t, err)

	ent, err := svc.AssignRole(ctx, owner, expRef, "viewer", activity.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer"}, ent.Content.ViewerIDs)

	ent, err = svc.AssignRole(ctx, owner, expRef, "viewer", activity.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer"}, ent.Content.EditorIDs)
	assert.Empty(t, ent.Content.ViewerIDs)
	assert.Equal(t, 3, ent.Version)

	last := (*changes)[len(*changes)-1]
	assert.Equal(t, []versioned.Command{{
		Cmd:        rights.CmdChangeRole,
		AssigneeID: "viewer",
		OldRole:    "viewer",
		NewRole:    "editor",
	}}, last.Commands)
	assert.Equal(t, "Changed role of viewer from viewer to editor", last.Message)

	tests := []struct {
		name     string
		actor    rights.Actor
		assignee string
		role     activity.Role
		check    func(error) bool
		wantMsg  string
	}{
		{"already owner", owner, "owner", activity.RoleOwner, core.IsPreconditionError, "This user already owns this activity."},
		{"already editor", owner, "viewer", activity.RoleEditor, core.IsPreconditionError, "This user already can edit this activity."},
		{"already viewer", owner, "viewer", activity.RoleViewer, core.IsPreconditionError, "This user already can view this activity."},
		{"editor cannot assign", rights.Actor{ID: "viewer"}, "x", activity.RoleViewer, core.IsAuthorizationError, ""},
		{"invalid role", owner, "x", "admin", core.IsValidationError, "Invalid role: admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AssignRole(ctx, tt.actor, expRef, tt.assignee, tt.role)
			assert.True(t, tt.check(err), err)
			if tt.wantMsg != "" {
				assert.EqualError(t, err, tt.wantMsg)
			}
		})
	}
}

// racingStore runs race right before the next commit reaches the store.
type racingStore struct {
	versioned.Store
	race func()
}

func (s *racingStore) Commit(ctx context.Context, kind string, rec versioned.Record, snap versioned.Snapshot) error {
	if race := s.race; race != nil {
		s.race = nil
		race()
	}
	return s.Store.Commit(ctx, kind, rec, snap)
}

func TestService_ConcurrentChanges(t *testing.T) {
	ctx := context.Background()
	db, err := dummydb.Open()
	require.NoError(t, err)
	store := &racingStore{Store: dummydb.NewVersionedStore(db)}
	svc := rights.NewService(store, nil)

	_, err = svc.Create(ctx, expRef, owner.ID)
	require.NoError(t, err)

	store.race = func() {
		_, err := svc.AssignRole(ctx, owner, expRef, "tester", activity.RoleViewer)
		require.NoError(t, err)
	}
	ent, err := svc.AssignRole(ctx, owner, expRef, "editor", activity.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, 3, ent.Version)
	assert.Equal(t, []string{"editor"}, ent.Content.EditorIDs)
	assert.Equal(t, []string{"tester"}, ent.Content.ViewerIDs)

	hist, err := svc.History(ctx, expRef)
	require.NoError(t, err)
	assert.Len(t, hist, 3)
}

func TestService_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	svc, changes := newService(t)

	ready := false
	svc.RegisterPublishChecker(activity.TypeExploration, func(_ context.Context, id string) error {
		if !ready {
			return core.NewValidationErrorf("not playable")
		}
		return nil
	})

	_, err := svc.Create(ctx, expRef, owner.ID)
	require.NoError(t, err)
	_, err = svc.AssignRole(ctx, owner, expRef, "viewer", activity.RoleViewer)
	require.NoError(t, err)

	_, err = svc.Publicize(ctx, admin, expRef)
	assert.True(t, core.IsAuthorizationError(err), "private -> publicized is not allowed")

	_, err = svc.Publish(ctx, other, expRef)
	assert.True(t, core.IsAuthorizationError(err))

	_, err = svc.Publish(ctx, owner, expRef)
	assert.True(t, core.IsPreconditionError(err))
	assert.EqualError(t, err, "exploration exp0 cannot be published: not playable")

	ready = true
	ent, err := svc.Publish(ctx, owner, expRef)
	require.NoError(t, err)
	assert.Equal(t, activity.StatusPublic, ent.Content.Status)
	assert.Empty(t, ent.Content.ViewerIDs)
	require.NotNil(t, ent.Content.FirstPublishedAt)
	last := (*changes)[len(*changes)-1]
	assert.Equal(t, "change_exploration_status", last.Commands[0].Cmd)
	assert.Equal(t, "private", last.Commands[0].OldStatus)
	assert.Equal(t, "public", last.Commands[0].NewStatus)

	ent, err = svc.Publicize(ctx, admin, expRef)
	require.NoError(t, err)
	assert.Equal(t, activity.StatusPublicized, ent.Content.Status)

	_, err = svc.Unpublish(ctx, admin, expRef)
	assert.True(t, core.IsAuthorizationError(err), "publicized activities are unpublicized first")

	_, err = svc.Unpublicize(ctx, admin, expRef)
	require.NoError(t, err)
	ent, err = svc.Unpublish(ctx, admin, expRef)
	require.NoError(t, err)
	assert.Equal(t, activity.StatusPrivate, ent.Content.Status)

	hist, err := svc.History(ctx, expRef)
	require.NoError(t, err)
	assert.Len(t, hist, ent.Version)
	assert.Equal(t, activity.StatusPrivate, hist[0].Content.Status)
}

func TestService_ReleaseOwnershipAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, changes := newService(t)

	_, err := svc.Create(ctx, expRef, owner.ID)
	require.NoError(t, err)

	_, err = svc.ReleaseOwnership(ctx, owner, expRef)
	assert.True(t, core.IsAuthorizationError(err), "private activities cannot be released")

	_, err = svc.Publish(ctx, owner, expRef)
	require.NoError(t, err)
	ent, err := svc.ReleaseOwnership(ctx, owner, expRef)
	require.NoError(t, err)
	assert.True(t, ent.Content.CommunityOwned)
	assert.Empty(t, ent.Content.OwnerIDs)
	assert.True(t, ent.Content.CanEdit(other))

	_, err = svc.AssignRole(ctx, admin, expRef, "x", activity.RoleEditor)
	assert.EqualError(t, err, "Community-owned activities can be edited by anyone.")

	require.NoError(t, svc.Delete(ctx, expRef, admin.ID))
	_, err = svc.Get(ctx, expRef)
	assert.True(t, core.IsNotFound(err))
	found, err := svc.Find(ctx, expRef)
	assert.NoError(t, err)
	assert.Nil(t, found)

	last := (*changes)[len(*changes)-1]
	assert.True(t, last.Deleted)
	assert.Equal(t, activity.CommitMessageExplorationDeleted, last.Message)
}
