package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/akyairhashvil/sprintledger/internal/config"
	"github.com/akyairhashvil/sprintledger/internal/report"
	"github.com/akyairhashvil/sprintledger/internal/util"
)

func newExportCmd(a *app) *cobra.Command {
	var format, output string
	var toFile bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the project's sprints, tickets and ledger",
		Long: `Dump the project's sprints, tickets and ledger as JSON or YAML.
Output goes to stdout unless --output or --file is given; --file writes a
timestamped file into the reports directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			// access check
			if _, err := a.ctrl.Sprints(cmd.Context(), caller); err != nil {
				return err
			}
			now := time.Now().UTC()
			exp, err := report.BuildExport(cmd.Context(), a.store, caller.ProjectID, now)
			if err != nil {
				return err
			}

			if toFile && output == "" {
				dir := filepath.Join(util.ReportsDir(config.AppName, a.cfg.Report.Dir), "exports")
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
				output = filepath.Join(dir, fmt.Sprintf("%s_export_%s.%s", config.AppName, now.Format("20060102_150405"), format))
			}
			var w io.Writer = a.out
			if output != "" {
				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := exp.Encode(w, format); err != nil {
				return err
			}
			if output != "" {
				a.printf("Export written: %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", report.FormatJSON, "json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write")
	cmd.Flags().BoolVar(&toFile, "file", false, "write into the reports directory")
	return cmd
}
