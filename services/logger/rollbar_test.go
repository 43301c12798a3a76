package logsvc

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/user"
)

func TestNewEntry(t *testing.T) {
	author := user.User{ID: "u1", Username: "author", Email: "author@test.cd"}
	admin := user.User{ID: "u2", Username: "admin", Email: "admin@test.cd"}
	errBoom := errors.New("boom")

	tests := []struct {
		name       string
		args       []interface{}
		wantPerson *rollbar.Person
		wantErr    error
		wantExtras map[string]interface{}
	}{
		{
			name:       "message only",
			wantExtras: map[string]interface{}{},
		},
		{
			name:       "first user is the person",
			args:       []interface{}{author, admin},
			wantPerson: &rollbar.Person{Id: "u1", Username: "author", Email: "author@test.cd"},
			wantExtras: map[string]interface{}{},
		},
		{
			name:       "error keeps the message as extra",
			args:       []interface{}{errBoom, map[string]interface{}{"job_id": "job0"}},
			wantErr:    errBoom,
			wantExtras: map[string]interface{}{"job_id": "job0", "message": "msg"},
		},
		{
			name:       "other values become extras",
			args:       []interface{}{42, errBoom, errors.New("second")},
			wantErr:    errBoom,
			wantExtras: map[string]interface{}{"arg_0": "42", "error_2": "second", "message": "msg"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEntry("msg", tt.args)
			assert.Equal(t, "msg", e.msg)
			assert.Equal(t, tt.wantErr, e.err)
			assert.Equal(t, tt.wantExtras, e.extras)

			person, ok := rollbar.PersonFromContext(e.ctx)
			if tt.wantPerson == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantPerson, person)
		})
	}
}

func TestRollbarLogger_concurrentEntries(t *testing.T) {
	var out bytes.Buffer
	logger := NewRollbarLogger(log.New(&out, "", 0), core.NewTestConfig())
	logger.Enable(false)

	// a request entry never lends its user to a job entry logged at the same time
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e := newEntry("request failed", []interface{}{user.User{ID: "u1"}})
			p, ok := rollbar.PersonFromContext(e.ctx)
			assert.True(t, ok)
			assert.Equal(t, "u1", p.Id)
		}()
		go func() {
			defer wg.Done()
			e := newEntry("job failed", []interface{}{errors.New("flaky")})
			_, ok := rollbar.PersonFromContext(e.ctx)
			assert.False(t, ok)
		}()
	}
	wg.Wait()

	logger.Warn("job failed", errors.New("flaky"))
	assert.True(t, strings.HasPrefix(out.String(), "job failed\nflaky\n"), out.String())
	assert.NoError(t, logger.Close())
}
