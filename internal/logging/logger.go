package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

type Options struct {
	// Env is one of development, production or test.
	Env string
	// Level overrides the env-derived level (debug, info, warn, error).
	Level string
	// Dir receives all.log and error.log in production.
	Dir string
	// Stdout defaults to os.Stdout.
	Stdout io.Writer
}

// New builds the application logger. Console output is always text; in
// production JSON records are also written to Dir/all.log and, for errors
// only, Dir/error.log. The returned close func releases the log files.
func New(opts Options) (*slog.Logger, func() error, error) {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	level := ParseLevel(opts.Level, opts.Env)
	handlers := []slog.Handler{
		slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}),
	}
	var files []io.Closer

	if opts.Env == "production" {
		dir := opts.Dir
		if dir == "" {
			dir = "logs"
		}

		all, err := OpenRotatingFile(filepath.Join(dir, "all.log"), defaultMaxSize, defaultMaxBackups)
		if err != nil {
			return nil, nil, err
		}
		errs, err := OpenRotatingFile(filepath.Join(dir, "error.log"), defaultMaxSize, defaultMaxBackups)
		if err != nil {
			all.Close()
			return nil, nil, err
		}
		files = append(files, all, errs)
		handlers = append(handlers,
			slog.NewJSONHandler(all, &slog.HandlerOptions{Level: level}),
			slog.NewJSONHandler(errs, &slog.HandlerOptions{Level: slog.LevelError}),
		)
	}

	closeFn := func() error {
		var errs []error
		for _, f := range files {
			errs = append(errs, f.Close())
		}
		return errors.Join(errs...)
	}

	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}

// ParseLevel resolves an explicit level name, falling back to debug in
// development and warn everywhere else.
func ParseLevel(name, env string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if env == "development" {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
