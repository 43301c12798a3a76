package summary_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/adventure"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/exploration"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/storage/database/dummy"
	testutil "github.com/trezcool/matembezi/tests"
)

var (
	owner  = rights.Actor{ID: "owner"}
	editor = rights.Actor{ID: "editor"}
	admin  = rights.Actor{ID: "admin", IsAdmin: true}
)

type fixture struct {
	explorations *exploration.Service
	adventures   *adventure.Service
	rights       *rights.Service
	summaries    *summary.Service
	projector    *summary.Projector
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	logger := testutil.NewLogger()
	bus := events.NewBus(logger)
	store := dummydb.NewVersionedStore(db)
	rgts := rights.NewService(store, bus)

	explorations := exploration.NewService(store, bus, rgts, nil, logger)
	adventures := adventure.NewService(store, bus, rgts, explorations, logger)

	repo := dummydb.NewSummaryRepository(db)
	projector := summary.NewProjector(repo, rgts, logger)
	projector.RegisterSource(activity.TypeExploration, explorations)
	projector.RegisterSource(activity.TypeAdventure, adventures)
	projector.Subscribe(bus)

	conf := core.NewTestConfig()
	conf.DefaultQueryLimit = 2
	return fixture{
		explorations: explorations,
		adventures:   adventures,
		rights:       rgts,
		summaries:    summary.NewService(repo, conf),
		projector:    projector,
	}
}

func publishable(id, title string) exploration.Exploration {
	e := exploration.CreateDefault(id, title, "Mathematics")
	e.Objective = "Practice"
	e.SkillTags = []string{"arithmetic"}
	intro := e.States[exploration.DefaultInitStateName]
	intro.Interaction = exploration.Interaction{ID: exploration.InteractionEndExploration}
	e.States[exploration.DefaultInitStateName] = intro
	return e
}

func TestProjector(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	expRef := activity.Ref{Type: activity.TypeExploration, ID: "exp0"}

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)
	_, err := f.explorations.Create(ctx, owner, publishable("exp0", "Addition"))
	require.NoError(t, err)

	s, err := f.summaries.Get(ctx, activity.TypeExploration, "exp0")
	require.NoError(t, err)
	assert.Equal(t, "e:exp0", s.ID)
	assert.Equal(t, "Addition", s.Title)
	assert.Equal(t, []string{"arithmetic"}, s.Tags)
	assert.Equal(t, activity.StatusPrivate, s.Status)
	assert.Equal(t, []string{"owner"}, s.OwnerIDs)
	assert.Equal(t, 1, s.Version)
	assert.True(t, s.IsEditableBy(owner))
	assert.False(t, s.IsViewableBy(editor))

	// rights changes rebuild the summary
	_, err = f.rights.AssignRole(ctx, owner, expRef, "editor", activity.RoleEditor)
	require.NoError(t, err)
	_, err = f.rights.Publish(ctx, owner, expRef)
	require.NoError(t, err)
	s, err = f.summaries.Get(ctx, activity.TypeExploration, "exp0")
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, s.EditorIDs)
	assert.Equal(t, activity.StatusPublic, s.Status)
	require.NotNil(t, s.FirstPublishedAt)
	assert.Equal(t, now, *s.FirstPublishedAt)

	// adventures get their own prefix
	adv := adventure.CreateDefault("exp0", "Arithmetic", "Mathematics", "", "")
	require.NoError(t, adv.AddActivity(activity.TypeExploration, "exp0"))
	_, err = f.adventures.Create(ctx, owner, adv)
	require.NoError(t, err)
	s, err = f.summaries.Get(ctx, activity.TypeAdventure, "exp0")
	require.NoError(t, err)
	assert.Equal(t, "a:exp0", s.ID)

	// soft deletion removes the summary
	require.NoError(t, f.explorations.Delete(ctx, admin, "exp0", false))
	_, err = f.summaries.Get(ctx, activity.TypeExploration, "exp0")
	assert.True(t, core.IsNotFound(err))

	// hard deletion too
	require.NoError(t, f.adventures.Delete(ctx, owner, "exp0", true))
	_, err = f.summaries.Get(ctx, activity.TypeAdventure, "exp0")
	assert.True(t, core.IsNotFound(err))

	assert.Error(t, summary.NewProjector(dummyRepo(t), f.rights, nil).Rebuild(ctx, expRef))
}

func dummyRepo(t *testing.T) summary.Repository {
	db, err := dummydb.Open()
	require.NoError(t, err)
	return dummydb.NewSummaryRepository(db)
}

func TestService_Queries(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, title := range []string{"Addition", "Subtraction", "Division"} {
		testutil.FreezeTime(t, start.Add(time.Duration(i)*time.Hour))
		_, err := f.explorations.Create(ctx, owner, publishable("exp"+string(rune('0'+i)), title))
		require.NoError(t, err)
	}
	for _, id := range []string{"exp0", "exp2"} {
		_, err := f.rights.Publish(ctx, owner, activity.Ref{Type: activity.TypeExploration, ID: id})
		require.NoError(t, err)
	}
	_, err := f.rights.AssignRole(ctx, owner, activity.Ref{Type: activity.TypeExploration, ID: "exp1"}, "editor", activity.RoleEditor)
	require.NoError(t, err)

	ids := func(ss []summary.Summary) []string {
		out := make([]string, len(ss))
		for i, s := range ss {
			out[i] = s.ActivityID
		}
		return out
	}

	nonPrivate, err := f.summaries.GetNonPrivate(ctx, activity.TypeExploration)
	require.NoError(t, err)
	assert.Equal(t, []string{"exp2", "exp0"}, ids(nonPrivate))

	editable, err := f.summaries.GetAtLeastEditable(ctx, "", "editor")
	require.NoError(t, err)
	assert.Equal(t, []string{"exp1"}, ids(editable))
	editable, err = f.summaries.GetAtLeastEditable(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, editable)

	// capped at the query limit, most recently updated first
	all, err := f.summaries.GetAll(ctx, activity.TypeExploration)
	require.NoError(t, err)
	assert.Equal(t, []string{"exp2", "exp1"}, ids(all))

	found, err := f.summaries.Search(ctx, editor, "", " traction")
	require.NoError(t, err)
	assert.Equal(t, []string{"exp1"}, ids(found))
	found, err = f.summaries.Search(ctx, rights.Actor{}, "", "sub")
	require.NoError(t, err)
	assert.Empty(t, found)
}
