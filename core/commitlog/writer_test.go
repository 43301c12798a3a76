package commitlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/versioned"
	"github.com/trezcool/matembezi/storage/database/dummy"
)

type draft struct {
	Title string `json:"title"`
}

func (draft) Validate() error { return nil }

type usernames map[string]string

func (u usernames) GetUsername(_ context.Context, id string) (string, error) {
	if name, ok := u[id]; ok {
		return name, nil
	}
	return "", core.NewNotFoundError("user")
}

type fixture struct {
	rights  *rights.Service
	content *versioned.Repository[draft]
	svc     *commitlog.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	bus := events.NewBus(nil)
	store := dummydb.NewVersionedStore(db)
	rgts := rights.NewService(store, bus)
	repo := dummydb.NewCommitLogRepository(db)
	commitlog.NewWriter(repo, rgts, usernames{"u1": "alice"}, nil).Subscribe(bus)

	return fixture{
		rights:  rgts,
		content: versioned.NewRepository[draft](string(activity.TypeExploration), store, versioned.WithPublisher(bus)),
		svc:     commitlog.NewService(repo, core.NewTestConfig()),
	}
}

func TestWriter(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	ref := activity.Ref{Type: activity.TypeExploration, ID: "exp0"}
	owner := rights.Actor{ID: "u1"}

	_, err := f.rights.Create(ctx, ref, owner.ID)
	require.NoError(t, err)
	ent, err := f.content.Create(ctx, ref.ID, owner.ID, "New exploration created.", draft{Title: "A"})
	require.NoError(t, err)

	entry, err := f.svc.GetCommit(ctx, activity.TypeExploration, "exp0", 1)
	require.NoError(t, err)
	assert.Equal(t, "exploration-exp0-1", entry.ID)
	assert.Equal(t, "alice", entry.Username)
	assert.Equal(t, versioned.CommitCreate, entry.CommitType)
	assert.Equal(t, activity.StatusPrivate, entry.PostCommitStatus)
	assert.True(t, entry.PostCommitIsPrivate)
	require.NotNil(t, entry.Version)
	assert.Equal(t, 1, *entry.Version)

	_, err = f.rights.Publish(ctx, owner, ref)
	require.NoError(t, err)

	ent.Content.Title = "B"
	require.NoError(t, f.content.Commit(ctx, &ent, "u2", "Retitled.", nil))

	edit, err := f.svc.GetCommit(ctx, activity.TypeExploration, "exp0", 2)
	require.NoError(t, err)
	assert.Equal(t, "", edit.Username, "unknown users have no username")
	assert.Equal(t, activity.StatusPublic, edit.PostCommitStatus)
	assert.False(t, edit.PostCommitIsPrivate)

	page, err := f.svc.QueryAllCommits(ctx, 10, "")
	require.NoError(t, err)
	ids := make([]string, 0, len(page.Entries))
	for _, e := range page.Entries {
		ids = append(ids, e.ID)
	}
	// rights creation is not logged separately
	assert.ElementsMatch(t, []string{"exploration-exp0-1", "rights-exp0-2", "exploration-exp0-2"}, ids)
	for _, e := range page.Entries {
		if e.ID == "rights-exp0-2" {
			assert.Nil(t, e.Version)
			assert.Equal(t, "change_exploration_status", e.CommitCmds[0].Cmd)
		}
	}

	nonPrivate, err := f.svc.QueryNonPrivateCommits(ctx, 10, "", 0)
	require.NoError(t, err)
	assert.Len(t, nonPrivate.Entries, 2)

	// the rights commit is newer but is not a content commit
	_, err = f.rights.Publicize(ctx, rights.Actor{ID: "admin", IsAdmin: true}, ref)
	require.NoError(t, err)
	latest, err := f.svc.GetLatestCommit(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "exploration-exp0-2", latest.ID)

	_, err = f.svc.GetLatestCommit(ctx, activity.Ref{Type: activity.TypeAdventure, ID: "exp0"})
	assert.True(t, core.IsNotFound(err))
}

func TestService_Paging(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := start
	core.NowFunc = func() time.Time { tick = tick.Add(time.Minute); return tick }
	defer func() { core.NowFunc = func() time.Time { return time.Now().UTC() } }()

	ref := activity.Ref{Type: activity.TypeExploration, ID: "exp0"}
	_, err := f.rights.Create(ctx, ref, "u1")
	require.NoError(t, err)
	ent, err := f.content.Create(ctx, ref.ID, "u1", "created", draft{Title: "0"})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, f.content.Commit(ctx, &ent, "u1", "edit", nil))
	}

	first, err := f.svc.QueryAllCommits(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	assert.True(t, first.More)
	assert.Equal(t, "exploration-exp0-5", first.Entries[0].ID)

	second, err := f.svc.QueryAllCommits(ctx, 2, first.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "exploration-exp0-3", second.Entries[0].ID)

	last, err := f.svc.QueryAllCommits(ctx, 2, second.Cursor)
	require.NoError(t, err)
	assert.Len(t, last.Entries, 1)
	assert.False(t, last.More)
	assert.Empty(t, last.Cursor)

	tests := []struct {
		name   string
		cursor string
		maxAge time.Duration
	}{
		{"negative max age", "", -time.Second},
		{"bad cursor", "abc", 0},
		{"negative cursor", "-1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.QueryNonPrivateCommits(ctx, 2, tt.cursor, tt.maxAge)
			assert.True(t, core.IsValidationError(err))
		})
	}
}
