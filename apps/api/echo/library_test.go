package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/feed"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/core/user"
	testutil "github.com/trezcool/matembezi/tests"
)

func summaryIDs(t *testing.T, f fixture, tt httpTest) []string {
	t.Helper()
	rec := f.do(tt)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var found []summary.Summary
	decode(t, rec, &found)
	ids := make([]string, 0, len(found))
	for _, s := range found {
		ids = append(ids, s.ActivityID)
	}
	return ids
}

func Test_libraryApi(t *testing.T) {
	f := setup(t)
	owner := testutil.CreateUser(t, f.usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleAuthor}, true)
	admin := testutil.CreateUser(t, f.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	ownerToken := f.getToken(t, owner)

	for _, exp := range []interface{}{playable("exp0", "Addition"), playable("exp1", "Additive inverse")} {
		checkCodeAndData(t, httpTest{wantCode: http.StatusCreated}, f.do(httpTest{
			method: http.MethodPost, path: "/v1/explorations", body: marshalObj(t, exp), token: ownerToken,
		}))
	}
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK}, f.do(httpTest{
		method: http.MethodPost, path: "/v1/activities/exploration/exp1/rights/publish", token: ownerToken,
	}))

	tests := []struct {
		name    string
		path    string
		token   string
		wantIDs []string
	}{
		{"library", "/v1/library", "", []string{"exp1"}},
		{"library of adventures", "/v1/library?type=adventure", "", []string{}},
		{"library in english", "/v1/library?language_code=en", "", []string{"exp1"}},
		{"library in french", "/v1/library?language_code=fr", "", []string{}},
		{"search, anonymous", "/v1/library?q=add", "", []string{"exp1"}},
		{"search, owner", "/v1/library?q=add", ownerToken, []string{"exp1", "exp0"}},
		{"creator dashboard", "/v1/creator-dashboard", ownerToken, []string{"exp1", "exp0"}},
		{"creator dashboard, admin", "/v1/creator-dashboard", f.getToken(t, admin), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.wantIDs, summaryIDs(t, f, httpTest{method: http.MethodGet, path: tt.path, token: tt.token}))
		})
	}

	t.Run("bad type", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/library?type=quiz", wantCode: http.StatusBadRequest}
		checkCodeAndData(t, tt, f.do(tt))
	})
	t.Run("unsupported language", func(t *testing.T) {
		tt := httpTest{
			method:   http.MethodGet,
			path:     "/v1/library?language_code=xx",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"language_code": "unsupported language code"}`),
		}
		checkCodeAndData(t, tt, f.do(tt))
	})
	t.Run("private summary, anonymous", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/activities/exploration/exp0/summary", wantCode: http.StatusNotFound}
		checkCodeAndData(t, tt, f.do(tt))
	})
	t.Run("all commits, owner", func(t *testing.T) {
		tt := httpTest{method: http.MethodGet, path: "/v1/commits", token: ownerToken, wantCode: http.StatusForbidden}
		checkCodeAndData(t, tt, f.do(tt))
	})
	t.Run("public commits", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodGet, path: "/v1/commits/public?page_size=10"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var page commitlog.Page
		decode(t, rec, &page)
		require.NotEmpty(t, page.Entries)
		for _, e := range page.Entries {
			assert.Equal(t, "exp1", e.ActivityID)
		}
	})
	t.Run("latest commit", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodGet, path: "/v1/activities/exploration/exp0/commits/latest", token: ownerToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var e commitlog.Entry
		decode(t, rec, &e)
		require.NotNil(t, e.Version)
		assert.Equal(t, 1, *e.Version)
	})
}

func Test_feedApi(t *testing.T) {
	f := setup(t)
	owner := testutil.CreateUser(t, f.usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleAuthor}, true)
	ownerToken := f.getToken(t, owner)
	checkCodeAndData(t, httpTest{wantCode: http.StatusCreated}, f.do(httpTest{
		method: http.MethodPost, path: "/v1/explorations", body: marshalObj(t, playable("exp0", "Addition")), token: ownerToken,
	}))

	dashboard := func() DashboardResponse {
		rec := f.do(httpTest{method: http.MethodGet, path: "/v1/dashboard", token: ownerToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp DashboardResponse
		decode(t, rec, &resp)
		return resp
	}

	resp := dashboard()
	assert.Zero(t, resp.LastSeenMsec)
	assert.Empty(t, resp.RecentUpdates)

	checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, f.do(httpTest{
		method: http.MethodPost, path: "/v1/dashboard/seen", token: ownerToken,
	}))
	assert.NotZero(t, dashboard().LastSeenMsec)

	checkCodeAndData(t, httpTest{wantCode: http.StatusNoContent}, f.do(httpTest{
		method: http.MethodPost, path: "/v1/subscriptions/activities/adventure/adv0", token: ownerToken,
	}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound}, f.do(httpTest{
		method: http.MethodPost, path: "/v1/subscriptions/threads/nope", token: ownerToken,
	}))

	rec := f.do(httpTest{method: http.MethodGet, path: "/v1/subscriptions", token: ownerToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var subs feed.Subscriptions
	decode(t, rec, &subs)
	assert.Equal(t, []string{"exp0"}, subs.ExplorationIDs)
	assert.Equal(t, []string{"adv0"}, subs.AdventureIDs)

	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)}, f.do(httpTest{
		method: http.MethodGet, path: "/v1/dashboard",
	}))
}

func Test_notificationApi(t *testing.T) {
	f := setup(t)
	author := testutil.CreateUser(t, f.usrRepo, "Author", "author", "author@test.cd", "", []string{user.RoleAuthor}, true)
	admin := testutil.CreateUser(t, f.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	email := marshalObj(t, EmailRequest{To: "learner@test.cd", Intent: "invitation", Subject: "Join us", Body: "Hi!"})
	tests := []httpTest{
		{name: "author", method: http.MethodPost, path: "/v1/notifications/emails", body: email, token: f.getToken(t, author), wantCode: http.StatusForbidden},
		{
			name:     "bad intent",
			method:   http.MethodPost,
			path:     "/v1/notifications/emails",
			body:     []byte(`{"to": "learner@test.cd", "intent": "spam", "subject": "s", "body": "b"}`),
			token:    f.getToken(t, admin),
			wantCode: http.StatusBadRequest,
		},
		{name: "admin", method: http.MethodPost, path: "/v1/notifications/emails", body: email, token: f.getToken(t, admin), wantCode: http.StatusAccepted},
		{
			name:     "contact admin",
			method:   http.MethodPost,
			path:     "/v1/notifications/admin",
			body:     marshalObj(t, AdminMessageRequest{Subject: "Bug", Body: "The editor crashes."}),
			token:    f.getToken(t, author),
			wantCode: http.StatusOK,
			wantData: marshalObj(t, SuccessResponse{Success: "Your message has been sent."}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, f.do(tt))
		})
	}

	assert.Equal(t, 1, f.queue.Len())
	sent := f.mailer.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Bug", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "(Sent from Matembezi)")
}
