package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/adventure"
	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/exploration"
	"github.com/trezcool/matembezi/core/feed"
	"github.com/trezcool/matembezi/core/feedback"
	"github.com/trezcool/matembezi/core/notification"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/stats"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/core/tasks"
	"github.com/trezcool/matembezi/core/user"
	emailsvc "github.com/trezcool/matembezi/services/email"
	"github.com/trezcool/matembezi/services/taskqueue/memqueue"
	"github.com/trezcool/matembezi/storage/database/dummy"
	testutil "github.com/trezcool/matembezi/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type fixture struct {
	app     *Server
	usrRepo user.Repository
	queue   *memqueue.Queue
	mailer  *emailsvc.ConsoleService
}

func setup(t *testing.T) fixture {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)
	logger := testutil.NewLogger()
	conf := core.NewTestConfig()
	conf.CanSendEmailsToUsers = true
	conf.CanSendEmailsToAdmin = true

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	activity.InitValidators(validate, translator)

	usrRepo := dummydb.NewUserRepository(db)
	users := user.NewService(usrRepo)

	queue := memqueue.New()
	jobs := tasks.NewManager(queue, conf)
	bus := events.NewBus(logger)
	store := dummydb.NewVersionedStore(db)
	rgts := rights.NewService(store, bus)
	statsSvc := stats.NewService(dummydb.NewStatsRepository(db), jobs, logger)
	explorations := exploration.NewService(store, bus, rgts, statsSvc, logger)
	adventures := adventure.NewService(store, bus, rgts, explorations, logger)

	commits := dummydb.NewCommitLogRepository(db)
	commitlog.NewWriter(commits, rgts, users, logger).Subscribe(bus)
	projector := summary.NewProjector(dummydb.NewSummaryRepository(db), rgts, logger)
	projector.RegisterSource(activity.TypeExploration, explorations)
	projector.RegisterSource(activity.TypeAdventure, adventures)
	projector.Subscribe(bus)
	threads := feedback.NewService(dummydb.NewFeedbackRepository(db), bus, logger)
	commitSvc := commitlog.NewService(commits, conf)

	feedSvc := feed.NewService(dummydb.NewFeedRepository(db), feed.Deps{
		Commits: commitSvc,
		Threads: threads,
		Rights:  rgts,
		Sources: map[activity.Type]summary.Source{
			activity.TypeExploration: explorations,
			activity.TypeAdventure:   adventures,
		},
		Listers: map[activity.Type]feed.ActivityLister{
			activity.TypeExploration: explorations,
			activity.TypeAdventure:   adventures,
		},
	}, jobs, conf, logger)
	feedSvc.Subscribe(bus)

	var out bytes.Buffer
	mailer := emailsvc.NewConsoleService(conf, &out)
	notifications := notification.NewService(dummydb.NewNotificationRepository(db), mailer, jobs, conf, logger)

	app := NewServer(conf, logger, Deps{
		Validate:        validate,
		Translator:      translator,
		UserSvc:         users,
		PasswordReset:   user.NewPasswordResetter(usrRepo, mailer, conf),
		RightsSvc:       rgts,
		ExplorationSvc:  explorations,
		AdventureSvc:    adventures,
		CommitSvc:       commitSvc,
		SummarySvc:      summary.NewService(dummydb.NewSummaryRepository(db), conf),
		StatsSvc:        statsSvc,
		FeedbackSvc:     threads,
		FeedSvc:         feedSvc,
		NotificationSvc: notifications,
	})
	return fixture{app: app, usrRepo: usrRepo, queue: queue, mailer: mailer}
}

func (f fixture) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := f.app.auth.GenerateToken(f.app.auth.GetUserClaims(usr))
	require.NoError(t, err)
	return token
}

// do sends the request of tt to the app.
func (f fixture) do(tt httpTest) *httptest.ResponseRecorder {
	var body bytes.Buffer
	body.Write(tt.body)
	req := httptest.NewRequest(tt.method, tt.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if tt.token != "" {
		req.Header.Set("Authorization", "Bearer "+tt.token)
	}
	rec := httptest.NewRecorder()
	f.app.ServeHTTP(rec, req)
	return rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err) {
		assert.True(t, ok, "data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func playable(id, title string) exploration.Exploration {
	e := exploration.CreateDefault(id, title, "Mathematics")
	e.Objective = "Practice"
	e.States[exploration.DefaultInitStateName] = exploration.State{
		Interaction: exploration.Interaction{ID: exploration.InteractionEndExploration, AnswerGroups: []exploration.AnswerGroup{}},
	}
	return e
}
