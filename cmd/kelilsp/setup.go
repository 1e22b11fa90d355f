package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kelilsp/internal/compiler"
	"kelilsp/internal/logging"
	"kelilsp/internal/project"
	"kelilsp/internal/service"
)

// session bundles what every subcommand needs: the merged configuration,
// a logger on stderr and a service bound to the compiler bridge.
type session struct {
	cfg      project.Config
	manifest string
	log      *logging.Logger
	bridge   *compiler.Bridge
	svc      *service.Service
	useColor bool
	timings  bool
}

// loadConfig resolves keli.toml (explicit --config or searched upwards from
// startDir), then applies the environment and finally the flags.
func loadConfig(cmd *cobra.Command, startDir string) (project.Config, string, error) {
	flags := cmd.Root().PersistentFlags()
	configPath, err := flags.GetString("config")
	if err != nil {
		return project.Config{}, "", err
	}
	var manifest *project.Manifest
	if configPath != "" {
		manifest, _, err = project.LoadFile(configPath)
	} else {
		manifest, _, err = project.Load(startDir)
	}
	if err != nil {
		return project.Config{}, "", err
	}
	cfg := manifest.Config
	cfg.ApplyEnv()

	if flags.Changed("compiler") {
		if cfg.Compiler.Path, err = flags.GetString("compiler"); err != nil {
			return project.Config{}, "", err
		}
	}
	if flags.Changed("timeout") {
		timeout, err := flags.GetDuration("timeout")
		if err != nil {
			return project.Config{}, "", err
		}
		cfg.Compiler.Timeout = project.Duration{Duration: timeout}
	}
	if flags.Changed("log-level") {
		if cfg.Log.Level, err = flags.GetString("log-level"); err != nil {
			return project.Config{}, "", err
		}
	}
	return cfg, manifest.Path, nil
}

// newSession builds a session for files located under startDir.
func newSession(cmd *cobra.Command, startDir, component string) (*session, error) {
	cfg, manifestPath, err := loadConfig(cmd, startDir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:     cfg.Log.Level,
		Format:    logging.Format(cfg.Log.Format),
		Output:    cmd.ErrOrStderr(),
		Component: component,
	})
	if err != nil {
		return nil, err
	}
	bridge, err := compiler.New(compiler.Options{
		Compiler:      cfg.Compiler.Path,
		Timeout:       cfg.Compiler.Timeout.Duration,
		ScratchPrefix: cfg.Compiler.ScratchPrefix,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	if manifestPath != "" {
		logger.Sugar().Debugf("using %s", manifestPath)
	}

	flags := cmd.Root().PersistentFlags()
	colorFlag, err := flags.GetString("color")
	if err != nil {
		return nil, err
	}
	useColor, err := readColorMode(colorFlag)
	if err != nil {
		return nil, err
	}
	timings, err := flags.GetBool("timings")
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:      cfg,
		manifest: manifestPath,
		log:      logger,
		bridge:   bridge,
		svc:      service.New(bridge),
		useColor: useColor,
		timings:  timings,
	}, nil
}

func readColorMode(value string) (bool, error) {
	var useColor bool
	switch value {
	case "on":
		useColor = true
	case "off":
		useColor = false
	case "", "auto":
		useColor = isTerminal(os.Stdout)
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	color.NoColor = !useColor
	return useColor, nil
}

// documentFor reads path and returns the snapshot handed to the compiler.
func documentFor(path string) (compiler.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return compiler.Document{}, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return compiler.Document{}, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return compiler.Document{
		URI:  fileURI(abs),
		Dir:  filepath.Dir(abs),
		Text: string(data),
	}, nil
}

func fileURI(abs string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
