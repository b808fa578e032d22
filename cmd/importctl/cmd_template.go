package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "template [path]",
		Short: "Write the CSV import template (\"-\" for stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := core.TemplateFileName
			if len(args) == 1 {
				path = args[0]
			}

			if path == "-" {
				_, err := cmd.OutOrStdout().Write(core.TemplateCSV())
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}
			if err := os.WriteFile(path, core.TemplateCSV(), 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", core.TemplateDownloadedMessage, path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
