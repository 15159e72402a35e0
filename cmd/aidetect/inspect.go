package main

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/straja-ai/aidetect/internal/binding"
	"github.com/straja-ai/aidetect/internal/bootstrap"
	"github.com/straja-ai/aidetect/internal/engine"
	"github.com/straja-ai/aidetect/internal/engine/onnx"
)

type inspection struct {
	Model   string            `json:"model" yaml:"model"`
	Inputs  []engine.SlotInfo `json:"inputs" yaml:"inputs"`
	Outputs []engine.SlotInfo `json:"outputs" yaml:"outputs"`
	Layout  binding.Layout    `json:"layout" yaml:"layout"`
	// Unsupported names inputs whose element type cannot be allocated.
	Unsupported []string `json:"unsupported,omitempty" yaml:"unsupported,omitempty"`
}

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [MODEL]",
		Short: "Show a model's inputs, outputs and resolved token layout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.modelPath = args[0]
			}
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			local, err := bootstrap.NewStore(cfg.Model, logger).Resolve(cmd.Context(), cfg.Model.Path, cfg.Model.SHA256)
			if err != nil {
				return fmt.Errorf("resolve model: %w", err)
			}
			inputs, outputs, err := onnx.NewLoader(cfg.Model.LibraryPath, logger).Inspect(local)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, newInspection(local, inputs, outputs))
		},
	}
}

func newInspection(model string, inputs, outputs []engine.SlotInfo) inspection {
	unsupported := lo.FilterMap(inputs, func(s engine.SlotInfo, _ int) (string, bool) {
		return s.Name, s.Element == engine.ElementUnknown
	})
	return inspection{
		Model:       model,
		Inputs:      inputs,
		Outputs:     outputs,
		Layout:      binding.Resolve(inputs),
		Unsupported: unsupported,
	}
}

func (in inspection) table() ([]string, [][]string) {
	roles := lo.SliceToMap(in.Layout.Slots, func(d binding.Descriptor) (int, string) {
		return d.Index, d.Role.String()
	})
	rows := make([][]string, 0, len(in.Inputs)+len(in.Outputs))
	for i, s := range in.Inputs {
		rows = append(rows, []string{"input", strconv.Itoa(i), s.Name, s.Element.String(), fmt.Sprint(s.Dims), roles[i]})
	}
	for i, s := range in.Outputs {
		rows = append(rows, []string{"output", strconv.Itoa(i), s.Name, s.Element.String(), fmt.Sprint(s.Dims), ""})
	}
	return []string{"Kind", "Index", "Name", "Element", "Dims", "Role"}, rows
}
