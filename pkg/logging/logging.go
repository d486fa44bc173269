// Package logging configures the relay's structured logger.
//
// Everything logs through log/slog with key/value pairs. Levels from most to
// least verbose: debug, info, warn, error.
//
//	logging.Setup(logging.Options{Level: "debug", Format: "json"})
//	slog.Info("alarm triggered", "group", id, "user", name)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls how logging is configured.
type Options struct {
	Level  string    // debug, info, warn, error (default info)
	Format string    // text or json (default text)
	Output io.Writer // default os.Stdout
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger without installing it.
func New(opts Options) (*slog.Logger, error) {
	if err := Validate(opts.Level); err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != "" && format != "text" && format != "json" {
		return nil, fmt.Errorf("unknown log format %q (valid: text, json)", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(out, handlerOpts)), nil
}

// Setup installs a logger built from opts as the slog default.
// Call it early in main() before any logging occurs.
func Setup(opts Options) error {
	logger, err := New(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// LevelNames returns all valid level names, useful for --help text.
func LevelNames() string {
	return "debug, info, warn, error"
}

// Validate returns an error if the level string is not recognized.
func Validate(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error", "":
		return nil
	default:
		return fmt.Errorf("unknown log level %q (valid: %s)", level, LevelNames())
	}
}
