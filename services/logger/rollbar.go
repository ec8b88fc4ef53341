package logsvc

import (
	"context"
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/user"
)

// RollbarLogger writes to zap and reports to Rollbar when enabled.
type RollbarLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{zl: zl}
}

// Named returns a logger sharing the Rollbar setup, with a zap name (e.g. "api", "db").
func (l RollbarLogger) Named(name string) *RollbarLogger {
	return &RollbarLogger{zl: l.zl.Named(name)}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// report is what a single log call sends to Rollbar.
type report struct {
	ctx    context.Context // carries the person, if any
	err    error
	extras map[string]interface{}
}

// expected fmt: msg | error, map[string]interface{}, user.Identity
func (l RollbarLogger) prepare(args []interface{}) (report, []zap.Field) {
	r := report{ctx: context.Background(), extras: map[string]interface{}{}}
	var identSet bool
	fields := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case user.Identity:
			// only set one person
			if !identSet {
				r.ctx = rollbar.NewPersonContext(r.ctx, &rollbar.Person{Id: a.ID, Username: a.DisplayName, Email: a.Email})
				fields = append(fields, zap.String("user_id", a.ID))
				identSet = true
			}
		case error:
			if r.err == nil {
				r.err = a
			} else {
				r.extras[fmt.Sprintf("error%d", i)] = a.Error()
			}
			fields = append(fields, zap.NamedError(fmt.Sprintf("error%d", i), a))
		case map[string]interface{}:
			for k, v := range a {
				r.extras[k] = v
			}
			fields = append(fields, zap.Any("extras", a))
		default:
			r.extras[fmt.Sprintf("arg%d", i)] = a
			fields = append(fields, zap.Any(fmt.Sprintf("arg%d", i), a))
		}
	}
	return r, fields
}

func (l RollbarLogger) send(level, msg string, r report) {
	if r.err == nil {
		rollbar.MessageWithExtrasAndContext(r.ctx, level, msg, r.extras)
		return
	}
	r.extras["message"] = msg
	rollbar.ErrorWithExtrasAndContext(r.ctx, level, r.err, r.extras)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	r, fields := l.prepare(args)
	l.send(rollbar.DEBUG, msg, r)
	l.zl.Debug(msg, fields...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	r, fields := l.prepare(args)
	l.send(rollbar.INFO, msg, r)
	l.zl.Info(msg, fields...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	r, fields := l.prepare(args)
	l.send(rollbar.WARN, msg, r)
	l.zl.Warn(msg, fields...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	r, fields := l.prepare(args)
	l.send(rollbar.ERR, msg, r)
	l.zl.Error(msg, fields...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	r, fields := l.prepare(args)
	l.send(rollbar.CRIT, msg, r)
	rollbar.Wait()
	l.zl.Fatal(msg, fields...)
}

func (l RollbarLogger) Sync() error {
	return l.zl.Sync()
}
