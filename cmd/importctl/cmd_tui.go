package main

import (
	"io"

	"github.com/JonMunkholm/bulkimport/internal/application"
	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/spf13/cobra"
)

func newTUICmd(root *rootOptions) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the interactive import wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Log lines would tear the alternate screen.
			rt, err := openRuntime(cmd.Context(), root, io.Discard)
			if err != nil {
				return err
			}
			defer rt.Close()

			return application.Run(application.Config{
				NewWizard: func() *core.Wizard {
					return rt.newWizard(core.ImportContext{ProjectID: project, RequestedBy: currentUser()}, "")
				},
			})
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project id (default: IMPORT_PROJECT_ID)")
	return cmd
}
