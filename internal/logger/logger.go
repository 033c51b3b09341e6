package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("logger", fx.Provide(Provide), fx.Invoke(ReplaceGlobals))

// Provide returns a production-ready zap logger configured for the application.
func Provide() (*zap.Logger, error) {
	return zap.NewProduction()
}

func ReplaceGlobals(l *zap.Logger) {
	zap.ReplaceGlobals(l)
}
