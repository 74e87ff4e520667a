// Package logging builds the zap logger every other package accepts as a
// constructor argument — no package here owns a process-wide logger.
package logging

import "go.uber.org/zap"

// Config selects the logger's output shape.
type Config struct {
	// Development enables human-readable console output and
	// caller/stack traces on warnings; production mode emits structured
	// JSON instead.
	Development bool
	Level       string // "debug", "info", "warn", "error"; defaults to "info"
}

// New builds a *zap.SugaredLogger per cfg. Callers thread the result
// through constructors (manager.Config.Log, creator.Config.Log) rather than
// reaching for a package-level global.
func New(cfg Config) (*zap.SugaredLogger, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(levelOrDefault(cfg.Level))
	if err != nil {
		return nil, err
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

// NewNop returns a logger that discards everything, for tests and
// fixtures that need to satisfy a constructor's signature without
// configuring real output.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
