package logger

import (
	"go.uber.org/zap"
)

// Log is the process-wide logger. It is a no-op until Init is called so
// packages can log safely from tests.
var Log = zap.NewNop()

// Init builds the production logger, or a development logger when
// development is true.
func Init(development bool) {
	if development {
		Log = zap.Must(zap.NewDevelopment())
		return
	}
	Log = zap.Must(zap.NewProduction())
}

func Sugar() *zap.SugaredLogger {
	return Log.Sugar()
}

// Named returns a child logger tagged with the component name.
func Named(component string) *zap.Logger {
	return Log.With(zap.String("component", component))
}

func Sync() {
	_ = Log.Sync()
}
