package config

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return l, fmt.Errorf("invalid log level: %s", level)
	}
	return l, nil
}

// NewLogger builds the zap logger described by c.Log, writing to stderr.
// The auto format picks console output when stderr is a terminal and JSON
// otherwise.
func (c *Config) NewLogger() (*zap.Logger, error) {
	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return c.newLogger(zapcore.Lock(os.Stderr), tty)
}

func (c *Config) newLogger(ws zapcore.WriteSyncer, tty bool) (*zap.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	var enc zapcore.Encoder
	switch c.Log.Format {
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case FormatConsole:
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	case "", FormatAuto:
		if tty {
			enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		} else {
			enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		}
	default:
		return nil, fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return zap.New(zapcore.NewCore(enc, ws, level)), nil
}
