package logsvc

import (
	"context"
	"fmt"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/user"
)

// RollbarLogger prints to a std logger and reports to its own rollbar client when enabled.
// The user an entry relates to travels with the entry, so loggers are safe to share
// between request handlers and job workers.
type RollbarLogger struct {
	std    *log.Logger
	client *rollbar.Client
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.New(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, "")
	client.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, client: client}
}

func (l RollbarLogger) Enable(enabled bool) {
	l.client.SetEnabled(enabled)
}

// Close flushes the pending reports.
func (l RollbarLogger) Close() error {
	return l.client.Close()
}

type entry struct {
	ctx    context.Context
	msg    string
	err    error
	extras map[string]interface{}
}

// expected fmt: msg | error, map[string]interface{}, user.User
func newEntry(msg string, args []interface{}) entry {
	e := entry{ctx: context.Background(), msg: msg, extras: map[string]interface{}{}}
	var usrSet bool
	for i, arg := range args {
		switch val := arg.(type) {
		case user.User:
			if !usrSet { // only report one User
				e.ctx = rollbar.NewPersonContext(e.ctx, &rollbar.Person{Id: val.ID, Username: val.Username, Email: val.Email})
				usrSet = true
			}
		case error:
			if e.err == nil {
				e.err = val
			} else {
				e.extras[fmt.Sprintf("error_%d", i)] = val.Error()
			}
		case map[string]interface{}:
			for k, v := range val {
				e.extras[k] = v
			}
		default:
			e.extras[fmt.Sprintf("arg_%d", i)] = fmt.Sprintf("%+v", val)
		}
	}
	if e.err != nil {
		e.extras["message"] = msg
	}
	return e
}

func (l RollbarLogger) report(level string, e entry) {
	if e.err != nil {
		l.client.ErrorWithStackSkipWithExtrasAndContext(e.ctx, level, e.err, 3, e.extras)
		return
	}
	l.client.MessageWithExtrasAndContext(e.ctx, level, e.msg, e.extras)
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	l.report(level, newEntry(msg, args))
	l.print(msg, args)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.DEBUG, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	_ = l.client.Close()
	l.std.Fatal(msg)
}
