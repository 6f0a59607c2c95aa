// Package logging wires zap up as the process-wide logger. LOG_LEVEL=debug
// switches to the development config; everything else gets production
// JSON output. Standard library logs are redirected so third-party noise
// ends up in the same stream.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init builds the global sugared logger. Safe to call multiple times.
func Init() *zap.SugaredLogger {
	once.Do(func() {
		var logger *zap.Logger
		if strings.ToLower(os.Getenv("LOG_LEVEL")) == "debug" {
			logger, _ = zap.NewDevelopment()
		} else {
			logger, _ = zap.NewProduction()
		}
		_ = zap.RedirectStdLog(logger)
		sugar = logger.Sugar()
	})
	return sugar
}

// Named returns a child logger tagged with a component name.
func Named(name string) *zap.SugaredLogger {
	return Init().Named(name)
}
