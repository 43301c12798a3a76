package adventure_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/adventure"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/versioned"
	"github.com/trezcool/matembezi/storage/database/dummy"
)

type explorations map[string]bool

func (e explorations) Exists(_ context.Context, id string) (bool, error) { return e[id], nil }

var (
	owner = rights.Actor{ID: "owner"}
	admin = rights.Actor{ID: "admin", IsAdmin: true}
	other = rights.Actor{ID: "other"}
)

func newService(t *testing.T) (*adventure.Service, *rights.Service) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	bus := events.NewBus(nil)
	store := dummydb.NewVersionedStore(db)
	rgts := rights.NewService(store, bus)
	known := explorations{"exp0": true, "exp1": true}
	return adventure.NewService(store, bus, rgts, known, nil), rgts
}

func playable() adventure.Adventure {
	a := adventure.CreateDefault("adv0", "Fractions", "Mathematics", "", "")
	_ = a.AddActivity(activity.TypeExploration, "exp0")
	_ = a.AddActivity(activity.TypeExploration, "exp1")
	_ = a.AddEntryPoint(activity.TypeExploration, "exp0")
	_ = a.UpdateDestinationSpecs(activity.TypeExploration, "exp0", []adventure.DestinationSpec{
		adventure.NewDestinationSpec(activity.TypeExploration, "exp1", adventure.DestDisplayOptionAlways),
	})
	return a
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, rgts := newService(t)

	_, err := svc.Create(ctx, rights.Actor{}, playable())
	assert.True(t, core.IsAuthorizationError(err))

	unknown := playable()
	_ = unknown.AddActivity(activity.TypeExploration, "exp9")
	_, err = svc.Create(ctx, owner, unknown)
	assert.EqualError(t, err, "Could not find exploration with id exp9")

	invalid := playable()
	invalid.Title = ""
	_, err = svc.Create(ctx, owner, invalid)
	assert.True(t, core.IsValidationError(err))
	// no rights are left behind
	found, err := rgts.Find(ctx, activity.Ref{Type: activity.TypeAdventure, ID: "adv0"})
	require.NoError(t, err)
	assert.Nil(t, found)

	ent, err := svc.Create(ctx, owner, playable())
	require.NoError(t, err)
	assert.Equal(t, 1, ent.Version)

	rs, err := rgts.Get(ctx, activity.Ref{Type: activity.TypeAdventure, ID: "adv0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"owner"}, rs.Content.OwnerIDs)

	_, err = svc.Get(ctx, other, "adv0")
	assert.True(t, core.IsAuthorizationError(err), "private adventures are hidden")
	_, err = svc.Get(ctx, admin, "adv0")
	assert.NoError(t, err)

	generated, err := svc.Create(ctx, owner, adventure.CreateDefault("", "Other", "Mathematics", "", ""))
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.Equal(t, generated.ID, generated.Content.ID)
}

func TestService_UpdateAndRevert(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Create(ctx, owner, playable())
	require.NoError(t, err)

	title, err := versioned.PropertyCommand(adventure.CmdEditProperty, adventure.PropertyTitle, nil, "Decimals")
	require.NoError(t, err)

	_, err = svc.Update(ctx, other, "adv0", 1, []versioned.Command{title}, "")
	assert.True(t, core.IsAuthorizationError(err))

	_, err = svc.Update(ctx, owner, "adv0", 0, []versioned.Command{title}, "")
	assert.True(t, core.IsPreconditionError(err))

	bad := []versioned.Command{{Cmd: adventure.CmdAddActivity, ActivityType: "exploration", ActivityID: "exp7"}}
	_, err = svc.Update(ctx, owner, "adv0", 1, bad, "")
	assert.EqualError(t, err, "Could not find exploration with id exp7")

	ent, err := svc.Update(ctx, owner, "adv0", 1, []versioned.Command{title}, "Retitled")
	require.NoError(t, err)
	assert.Equal(t, 2, ent.Version)
	assert.Equal(t, "Decimals", ent.Content.Title)

	hist, err := svc.History(ctx, owner, "adv0")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, adventure.CmdEditProperty, hist[1].Commands[0].Cmd)
	assert.JSONEq(t, `"Fractions"`, string(hist[1].Commands[0].OldValue))

	reverted, err := svc.Revert(ctx, owner, "adv0", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, reverted.Version)
	assert.Equal(t, "Fractions", reverted.Content.Title)

	v2, err := svc.GetVersion(ctx, owner, "adv0", 2)
	require.NoError(t, err)
	assert.Equal(t, "Decimals", v2.Content.Title)
}

func TestService_PublishAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, rgts := newService(t)
	ref := activity.Ref{Type: activity.TypeAdventure, ID: "adv0"}

	draft := playable()
	_ = draft.DeleteEntryPoint(activity.TypeExploration, "exp0", true)
	_, err := svc.Create(ctx, owner, draft)
	require.NoError(t, err)

	_, err = rgts.Publish(ctx, owner, ref)
	assert.True(t, core.IsPreconditionError(err))
	assert.EqualError(t, err, "adventure adv0 cannot be published: An adventure needs at least one entry point.")

	addEP := []versioned.Command{{Cmd: adventure.CmdAddEntryPoint, ActivityType: "exploration", ActivityID: "exp0"}}
	_, err = svc.Update(ctx, owner, "adv0", 1, addEP, "")
	require.NoError(t, err)
	_, err = rgts.Publish(ctx, owner, ref)
	require.NoError(t, err)

	// public now: anyone can read, commits need a message, only admins delete
	_, err = svc.Get(ctx, other, "adv0")
	assert.NoError(t, err)
	_, err = svc.Update(ctx, owner, "adv0", 2, nil, "")
	assert.EqualError(t, err, "Adventure is public so expected a commit message but received none.")
	assert.True(t, core.IsAuthorizationError(svc.Delete(ctx, owner, "adv0", false)))

	out, err := svc.ExportYAML(ctx, other, "adv0")
	require.NoError(t, err)
	imported, err := svc.ImportYAML(ctx, other, "adv1", out)
	require.NoError(t, err)
	assert.Equal(t, "adv1", imported.Content.ID)
	assert.Equal(t, 2, imported.Content.NumActivities())

	require.NoError(t, svc.Delete(ctx, admin, "adv0", false))
	_, err = svc.Get(ctx, admin, "adv0")
	assert.True(t, core.IsNotFound(err))

	fields, err := svc.SummaryFields(ctx, "adv0")
	require.NoError(t, err)
	assert.Nil(t, fields)

	require.NoError(t, svc.Delete(ctx, other, "adv1", true))
	fields, err = svc.SummaryFields(ctx, "adv1")
	require.NoError(t, err)
	assert.Nil(t, fields)
}
