package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/straja-ai/aidetect/internal/result"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

// tabular values can be rendered with -o table.
type tabular interface {
	table() (header []string, rows [][]string)
}

// analysis is what text and tokens print.
type analysis struct {
	Model  string        `json:"model" yaml:"model"`
	Result result.Result `json:"result" yaml:"result"`
	Report result.Report `json:"report" yaml:"report"`
	Error  string        `json:"error,omitempty" yaml:"error,omitempty"`
}

func newAnalysis(model string, res result.Result, err error) analysis {
	out := analysis{Model: model, Result: res, Report: res.Report()}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func (a analysis) table() ([]string, [][]string) {
	rows := [][]string{
		{"model", a.Model},
		{"ai_probability", pct(a.Result.AIProbability)},
		{"human_probability", pct(a.Result.HumanProbability)},
		{"ai_detection", fmt.Sprintf("%.2f%%", a.Report.AIDetection)},
		{"human_written", fmt.Sprintf("%.2f%%", a.Report.HumanWritten)},
	}
	if a.Error != "" {
		rows = append(rows, []string{"error", a.Error})
	}
	return []string{"Field", "Value"}, rows
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatYAML, formatTable:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want json, yaml or table)", format)
}

func writeTable(w io.Writer, v tabular) {
	header, rows := v.table()
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatTable:
		t, ok := v.(tabular)
		if !ok {
			return fmt.Errorf("%T has no table rendering", v)
		}
		writeTable(w, t)
		return nil
	}
	return checkFormat(format)
}
