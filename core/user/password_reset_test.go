package user_test

import (
	"context"
	"encoding/base32"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/user"
	emailsvc "github.com/trezcool/matembezi/services/email"
	"github.com/trezcool/matembezi/storage/database/dummy"
	testutil "github.com/trezcool/matembezi/tests"
)

const pwd = "Passw0rd!Str0ng"

func newResetter(t *testing.T) (*user.PasswordResetter, user.Repository, *emailsvc.ConsoleService) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	conf := core.NewTestConfig()
	repo := dummydb.NewUserRepository(db)
	mailer := emailsvc.NewConsoleService(conf, io.Discard)
	return user.NewPasswordResetter(repo, mailer, conf), repo, mailer
}

func TestPasswordResetter_VerifyToken(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)

	pr, repo, _ := newResetter(t)
	usr := testutil.CreateUser(t, repo, "User", "user", "user@test.cd", pwd, nil, true)
	token, err := pr.MakeToken(usr)
	require.NoError(t, err)

	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Minute)

	ts := strings.SplitN(token, "-", 2)[0]
	b32 := func(s string) string {
		return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(s))
	}

	tests := []struct {
		name    string
		usr     user.User
		token   string
		now     time.Time
		wantErr string
	}{
		{name: "no token", usr: usr, wantErr: "invalid token"},
		{name: "invalid parts len", usr: usr, token: ts, wantErr: "invalid token"},
		{name: "invalid base32", usr: usr, token: "!!!-abc", wantErr: "invalid token"},
		{name: "invalid timestamp", usr: usr, token: b32("abc") + "-abc", wantErr: "invalid token"},
		{name: "invalid token", usr: usr, token: ts + "-abc", wantErr: "invalid token"},
		{name: "used after login", usr: loggedIn, token: token, wantErr: "invalid token"},
		{name: "expired token", usr: usr, token: token, now: now.Add(4 * 24 * time.Hour), wantErr: "token expired"},
		{name: "valid token", usr: usr, token: token},
		{name: "valid token before expiry", usr: usr, token: token, now: now.Add(2 * 24 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.now.IsZero() {
				testutil.FreezeTime(t, tt.now)
			}
			err := pr.VerifyToken(tt.usr, tt.token)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Equal(t, tt.wantErr, err.Error())
				assert.True(t, core.IsValidationError(err))
			}
		})
	}
}

func TestPasswordResetter_RequestAndConfirm(t *testing.T) {
	ctx := context.Background()
	pr, repo, mailer := newResetter(t)
	usr := testutil.CreateUser(t, repo, "User", "user", "user@test.cd", pwd, nil, true)
	testutil.CreateUser(t, repo, "Gone", "gone", "gone@test.cd", pwd, nil, false)

	t.Run("unknown email", func(t *testing.T) {
		err := pr.Request(ctx, "nobody@test.cd")
		assert.True(t, core.IsNotFound(err))
	})
	t.Run("inactive user", func(t *testing.T) {
		err := pr.Request(ctx, "gone@test.cd")
		assert.True(t, core.IsNotFound(err))
	})
	t.Run("mails token", func(t *testing.T) {
		require.NoError(t, pr.Request(ctx, " USER@test.cd "))
		sent := mailer.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "user@test.cd", sent[0].To[0].Address)
		token, err := pr.MakeToken(usr)
		require.NoError(t, err)
		assert.Contains(t, sent[0].TextContent, "uid: "+user.EncodeUID(usr))
		assert.Contains(t, sent[0].TextContent, "token: "+token)
	})

	token, err := pr.MakeToken(usr)
	require.NoError(t, err)
	newPwd := "N3w!Passw0rd#"

	tests := []struct {
		name    string
		data    user.ResetUserPassword
		wantErr string
	}{
		{
			name:    "bad uid",
			data:    user.ResetUserPassword{UID: "***", Token: token, Password: newPwd, PasswordConfirm: newPwd},
			wantErr: "invalid token",
		},
		{
			name:    "unknown user",
			data:    user.ResetUserPassword{UID: user.EncodeUID(user.User{ID: "ghost"}), Token: token, Password: newPwd, PasswordConfirm: newPwd},
			wantErr: "invalid token",
		},
		{
			name:    "bad token",
			data:    user.ResetUserPassword{UID: user.EncodeUID(usr), Token: token + "x", Password: newPwd, PasswordConfirm: newPwd},
			wantErr: "invalid token",
		},
		{
			name: "success",
			data: user.ResetUserPassword{UID: user.EncodeUID(usr), Token: token, Password: newPwd, PasswordConfirm: newPwd},
		},
		{
			name:    "token is single use",
			data:    user.ResetUserPassword{UID: user.EncodeUID(usr), Token: token, Password: pwd, PasswordConfirm: pwd},
			wantErr: "invalid token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pr.Confirm(ctx, tt.data)
			if tt.wantErr != "" {
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErr, err.Error())
				}
				return
			}
			require.NoError(t, err)
			got, err := repo.GetUserByID(ctx, usr.ID)
			require.NoError(t, err)
			assert.NoError(t, got.CheckPassword(newPwd))
		})
	}
}
