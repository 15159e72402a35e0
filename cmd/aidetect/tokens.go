package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/straja-ai/aidetect/internal/bootstrap"
	"github.com/straja-ai/aidetect/internal/redact"
)

func newTokensCmd(opts *options) *cobra.Command {
	var ids, mask []int32
	cmd := &cobra.Command{
		Use:   "tokens --ids 101,2023,102 [--mask 1,1,1]",
		Short: "Score a pre-tokenized sequence",
		Long: `Score token ids produced by an external tokenizer. The attention mask
defaults to all ones and must otherwise match the id count.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := tokenMask(ids, mask, cmd.Flags().Changed("mask"))
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

			res, aerr := rt.Analyzer.AnalyzeTokenIDs(ids, m)
			if err := writeOutput(cmd.OutOrStdout(), opts.output, newAnalysis(redact.URL(cfg.Model.Path), res, aerr)); err != nil {
				return err
			}
			return aerr
		},
	}
	cmd.Flags().Int32SliceVar(&ids, "ids", nil, "comma-separated token ids")
	cmd.Flags().Int32SliceVar(&mask, "mask", nil, "comma-separated attention mask (default all ones)")
	_ = cmd.MarkFlagRequired("ids")
	return cmd
}

// tokenMask returns mask, or all ones over ids when no mask was given.
// Mask values must be 0 or 1.
func tokenMask(ids, mask []int32, given bool) ([]int32, error) {
	if !given {
		return lo.Map(ids, func(int32, int) int32 { return 1 }), nil
	}
	if bad, ok := lo.Find(mask, func(v int32) bool { return v != 0 && v != 1 }); ok {
		return nil, fmt.Errorf("attention mask values must be 0 or 1, got %d", bad)
	}
	return mask, nil
}
