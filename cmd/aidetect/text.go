package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/straja-ai/aidetect/internal/bootstrap"
	"github.com/straja-ai/aidetect/internal/redact"
)

func newTextCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "text [TEXT...|-]",
		Short: "Score raw text through the model's byte input",
		Long: `Score raw text. Arguments are joined with spaces; with no arguments or
a single "-" the text is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			rt, err := bootstrap.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("load model %s: %w", redact.URL(cfg.Model.Path), err)
			}
			defer rt.Close()

			res, aerr := rt.Analyzer.AnalyzeText(text)
			if err := writeOutput(cmd.OutOrStdout(), opts.output, newAnalysis(redact.URL(cfg.Model.Path), res, aerr)); err != nil {
				return err
			}
			return aerr
		},
	}
}

func readText(in io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimRight(string(data), "\r\n")
	if text == "" {
		return "", fmt.Errorf("no text given")
	}
	return text, nil
}
