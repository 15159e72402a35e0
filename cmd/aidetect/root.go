package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/straja-ai/aidetect/internal/config"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath  string
	modelPath   string
	libraryPath string
	logLevel    string
	logStyle    string
	output      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "aidetect",
		Short: "AI-generated text detection on ONNX models",
		Long: `aidetect scores text for the likelihood that it was machine generated.

It loads a binary classifier exported to ONNX, binds either raw text or
pre-tokenized ids to the model's inputs, and reports the AI and human
probabilities. Use "serve" to expose the same analysis over HTTP.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// A missing .env is fine; AIDETECT_* may come from the real environment.
			_ = godotenv.Load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "aidetect.yaml", "path to config file")
	pf.StringVar(&opts.modelPath, "model", "", "model path or file://, http(s)://, gs:// reference (overrides config)")
	pf.StringVar(&opts.libraryPath, "onnx-library", "", "onnxruntime shared library path (overrides config)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&opts.logStyle, "log-style", "", "log style: json, console (overrides config)")
	pf.StringVarP(&opts.output, "output", "o", formatJSON, "output format: json, yaml or table")

	root.AddCommand(
		newTextCmd(opts),
		newTokensCmd(opts),
		newInspectCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// loadConfig reads the config file, applies flag overrides and validates.
func (o *options) loadConfig() (*config.Config, error) {
	if err := checkFormat(o.output); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	override(&cfg.Model.Path, o.modelPath)
	override(&cfg.Model.LibraryPath, o.libraryPath)
	override(&cfg.Logging.Level, o.logLevel)
	override(&cfg.Logging.Style, o.logStyle)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *options) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func override(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
