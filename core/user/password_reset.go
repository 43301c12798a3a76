package user

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
)

var (
	salt = []byte("matembezi.core.user.password_reset")

	// errors
	errInvalidToken = core.NewValidationErrorf("invalid token")
	errTokenExpired = core.NewValidationErrorf("token expired")
)

// ResetUserPassword confirms a password reset with the uid and token of the reset email.
type ResetUserPassword struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// PasswordResetter mails stateless reset tokens. A token stops working once the password
// changes or the user logs in, and after the configured timeout.
type PasswordResetter struct {
	repo    Repository
	mailer  core.EmailService
	secret  []byte
	timeout time.Duration
	appName string
	sender  string
}

func NewPasswordResetter(repo Repository, mailer core.EmailService, conf *core.Config) *PasswordResetter {
	return &PasswordResetter{
		repo:    repo,
		mailer:  mailer,
		secret:  []byte(conf.SecretKey),
		timeout: conf.PasswordResetTimeoutDelta,
		appName: conf.AppName,
		sender:  conf.DefaultFromEmail,
	}
}

// Request mails a reset token to the active user with this email.
func (pr *PasswordResetter) Request(ctx context.Context, email string) error {
	usr, err := pr.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	token, err := pr.MakeToken(usr)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nUse the following to reset your %s password:\n\nuid: %s\ntoken: %s\n\n"+
			"If you did not ask for a new password, you can ignore this email.\n",
		usr.Name, pr.appName, EncodeUID(usr), token,
	)
	msg, err := core.NewPlainEmail(pr.sender, usr.Email, "Password reset", body)
	if err != nil {
		return err
	}
	return errors.Wrap(pr.mailer.Send(ctx, msg), "sending password reset email")
}

// Confirm sets the new password when the token is valid for the user.
func (pr *PasswordResetter) Confirm(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return errInvalidToken
	}
	usr, err := pr.repo.GetUserByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return errInvalidToken
		}
		return err
	}
	if err = pr.VerifyToken(usr, data.Token); err != nil {
		return err
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return err
	}
	usr.UpdatedAt = core.NowFunc()
	_, err = pr.repo.UpdateUser(ctx, usr, nil)
	return err
}

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// MakeToken generates a password reset token for usr.
func (pr *PasswordResetter) MakeToken(usr User) (string, error) {
	return pr.makeTokenWithTimestamp(usr, numDaysSince2001(core.NowFunc()))
}

// VerifyToken checks that a password reset token is valid for usr.
func (pr *PasswordResetter) VerifyToken(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that token has not been tampered with
	expected, err := pr.makeTokenWithTimestamp(usr, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 0 {
		return errInvalidToken
	}

	if (numDaysSince2001(core.NowFunc()) - ts) > int(pr.timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func (pr *PasswordResetter) makeTokenWithTimestamp(usr User, ts int) (string, error) {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	sig, err := pr.sign(hashValue(usr, ts))
	if err != nil {
		return "", err
	}
	return tsB32 + "-" + sig, nil
}

func (pr *PasswordResetter) sign(val []byte) (string, error) {
	key := sha256.Sum256(append(append([]byte{}, salt...), pr.secret...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func hashValue(usr User, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		val.WriteString(usr.LastLogin.UTC().Format(time.RFC3339Nano))
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
