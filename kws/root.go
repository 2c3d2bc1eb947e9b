package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/itohio/gokws/pkg/config"
	"github.com/itohio/gokws/pkg/vocab"
)

// app holds the state shared by all commands.
type app struct {
	fs         afero.Fs
	configPath string
	vocabPath  string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	return newRootCommandWithFs(afero.NewOsFs())
}

func newRootCommandWithFs(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs}

	root := &cobra.Command{
		Use:           "kws",
		Short:         "Template matching keyword spotter",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "Configuration file path")
	root.PersistentFlags().StringVar(&a.vocabPath, "vocabulary", "", "Vocabulary file (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newRunCommand(a),
		newClassifyCommand(a),
		newRecordCommand(a),
		newPortsCommand(a),
		newConfigCommand(a),
	)
	return root
}

// load reads the configuration and sets up logging.
func (a *app) load(logOut io.Writer) error {
	cfg, err := config.LoadFs(a.fs, a.configPath)
	if err != nil {
		return err
	}
	if a.vocabPath != "" {
		cfg.Vocabulary.Path = a.vocabPath
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	a.cfg = cfg
	a.logger = newLogger(cfg.Logging, logOut)
	slog.SetDefault(a.logger)
	return nil
}

// vocabulary loads the configured vocabulary. A missing file yields nil so
// the recognizer still segments words.
func (a *app) vocabulary() (*vocab.Vocabulary, error) {
	v, err := vocab.Load(a.fs, a.cfg.Vocabulary.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("vocabulary not found, matching disabled", "path", a.cfg.Vocabulary.Path)
			return nil, nil
		}
		return nil, err
	}
	a.logger.Info("vocabulary loaded", "path", a.cfg.Vocabulary.Path, "labels", v.Labels())
	return v, nil
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func requireFiles(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s needs at least one WAV file", cmd.Name())
	}
	return nil
}
