package logsvc

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/auth"
)

type RollbarLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewZap builds the structured logger written to stdout.
func NewZap(conf *core.Config) (*zap.Logger, error) {
	switch {
	case conf.TestMode:
		return zap.NewNop(), nil
	case conf.Debug:
		return zap.NewDevelopment()
	}
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	return zl.With(zap.String("app", conf.AppName), zap.String("env", conf.Env), zap.String("build", conf.Build)), nil
}

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(rollbarerrors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{zl: zl}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close flushes the pending reports.
func (l RollbarLogger) Close() {
	rollbar.Close()
	_ = l.zl.Sync()
}

// expected fmt: msg | error, map[string]interface{}, auth.Identity
func (l RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []zap.Field) {
	var idSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	fields := make([]zap.Field, 0, len(args))
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case auth.Identity:
			// only set one identity
			if !idSet {
				rollbar.SetPerson(strconv.Itoa(a.ID), a.Nombre, a.Email)
				fields = append(fields, zap.Int("user_id", a.ID), zap.String("rol", a.Rol.String()))
				idSet = true
			}
		case error:
			newArgs = append(newArgs, a)
			fields = append(fields, zap.Error(a))
		case map[string]interface{}:
			newArgs = append(newArgs, a)
			fields = append(fields, zap.Any("extras", a))
		default:
			newArgs = append(newArgs, a)
			fields = append(fields, zap.Any("arg", a))
		}
	}
	if !idSet {
		rollbar.ClearPerson()
	}
	return newArgs, fields
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rargs, fields := l.prepare(msg, args)
	rollbar.Debug(rargs...)
	l.zl.Debug(msg, fields...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rargs, fields := l.prepare(msg, args)
	rollbar.Info(rargs...)
	l.zl.Info(msg, fields...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rargs, fields := l.prepare(msg, args)
	rollbar.Warning(rargs...)
	l.zl.Warn(msg, fields...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rargs, fields := l.prepare(msg, args)
	rollbar.Error(rargs...)
	l.zl.Error(msg, fields...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rargs, fields := l.prepare(msg, args)
	rollbar.Critical(rargs...)
	rollbar.Close()
	l.zl.Fatal(msg, fields...)
}
