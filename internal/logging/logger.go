package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
	"gopkg.in/natefinch/lumberjack.v2"

	"futures-bot/internal/config"
)

// Logger wraps a logrus logger that fans out to a rotating file at debug
// level and to the console at the configured level.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New builds the process logger. A nil console writes to stderr so that
// command output on stdout stays machine readable.
func New(cfg config.LogConfig, console io.Writer) (*Logger, error) {
	consoleLevel, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if console == nil {
		console = os.Stderr
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: true,
	})
	logger.AddHook(&writer.Hook{Writer: console, LogLevels: levelsUpTo(consoleLevel)})

	out := &Logger{Logger: logger}
	level := consoleLevel
	if cfg.FileEnabled == nil || *cfg.FileEnabled {
		out.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		logger.AddHook(&writer.Hook{Writer: out.file, LogLevels: levelsUpTo(logrus.DebugLevel)})
		if level < logrus.DebugLevel {
			level = logrus.DebugLevel
		}
	}
	logger.SetLevel(level)
	return out, nil
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func levelsUpTo(max logrus.Level) []logrus.Level {
	var out []logrus.Level
	for _, lvl := range logrus.AllLevels {
		if lvl <= max {
			out = append(out, lvl)
		}
	}
	return out
}
