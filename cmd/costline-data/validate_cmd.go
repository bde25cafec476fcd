package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/costline/costline/modules/estimation/hierarchy"
	"github.com/costline/costline/modules/estimation/infrastructure/taskjson"
)

type validateOptions struct {
	input        string
	maxDropRatio float64
	jsonOut      bool
}

type validateReport struct {
	Tasks     int                `json:"tasks"`
	Roots     int                `json:"roots"`
	Resources int                `json:"resources"`
	Dropped   int                `json:"dropped"`
	Defects   []hierarchy.Defect `json:"defects,omitempty"`
	Valid     bool               `json:"valid"`
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a JSON task dump without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Path to the JSON task dump (required)")
	cmd.Flags().Float64Var(&opts.maxDropRatio, "max-drop-ratio", 0.5, "Fraction of droppable records tolerated before the batch is rejected")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Emit the report as JSON")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runValidate(cmd *cobra.Command, opts validateOptions) error {
	contents, err := os.ReadFile(opts.input)
	if err != nil {
		return withCode(exitIO, err)
	}
	parsed, err := taskjson.New().Parse(cmd.Context(), contents)
	if err != nil {
		return withCode(exitValidation, err)
	}

	forest, err := hierarchy.Build(parsed.Tasks, hierarchy.Options{MaxDropRatio: opts.maxDropRatio})
	if err != nil {
		var invalid *hierarchy.InvalidError
		if errors.As(err, &invalid) {
			report := validateReport{
				Tasks:     len(parsed.Tasks),
				Resources: parsed.ResourceCount,
				Defects:   invalid.Defects,
			}
			if werr := writeReport(cmd, opts, report); werr != nil {
				return werr
			}
			return withCode(exitValidation, fmt.Errorf("dump is invalid: %d defect(s)", len(invalid.Defects)))
		}
		return withCode(exitIO, err)
	}

	report := validateReport{
		Tasks:     len(forest.Nodes),
		Roots:     len(forest.Roots),
		Resources: parsed.ResourceCount,
		Dropped:   forest.Dropped,
		Defects:   forest.Defects,
		Valid:     true,
	}
	return writeReport(cmd, opts, report)
}

func writeReport(cmd *cobra.Command, opts validateOptions, report validateReport) error {
	out := cmd.OutOrStdout()
	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(report); err != nil {
			return withCode(exitIO, err)
		}
		return nil
	}
	fmt.Fprintf(out, "tasks: %d\n", report.Tasks)
	fmt.Fprintf(out, "roots: %d\n", report.Roots)
	fmt.Fprintf(out, "resources: %d\n", report.Resources)
	fmt.Fprintf(out, "dropped: %d\n", report.Dropped)
	for _, d := range report.Defects {
		fmt.Fprintf(out, "defect: %s\n", d.String())
	}
	if report.Valid {
		fmt.Fprintln(out, "result: valid")
	} else {
		fmt.Fprintln(out, "result: invalid")
	}
	return nil
}
