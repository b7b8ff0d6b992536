package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// Options controls where and how log records are written.
type Options struct {
	Output  io.Writer // defaults to os.Stderr so step output owns stdout
	NoColor bool
}

func Initialize(loggingType string, logLevelName string, opts Options) error {
	var logLevel slog.Level
	err := logLevel.UnmarshalText([]byte(logLevelName))
	if err != nil {
		return fmt.Errorf("could not parse log level: %v", err)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var (
		logHandlerOptions = slog.HandlerOptions{
			AddSource: logLevel <= slog.LevelDebug,
			Level:     logLevel,
		}
		logHandler slog.Handler
	)

	switch loggingType {
	case JSON:
		logHandler = slog.NewJSONHandler(out, &logHandlerOptions)
	case Text:
		logHandler = slog.NewTextHandler(out, &logHandlerOptions)
	case Tint:
		logHandler = tint.NewHandler(out, &tint.Options{
			AddSource: logHandlerOptions.AddSource,
			Level:     logHandlerOptions.Level,
			NoColor:   opts.NoColor,
		})
	default:
		return fmt.Errorf("unknown logging type: %s", loggingType)

	}

	slog.SetDefault(slog.New(logHandler))
	slog.Debug("logging initialized", "logLevel", logLevel)
	return nil
}
