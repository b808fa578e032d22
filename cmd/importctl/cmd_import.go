package main

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/spf13/cobra"
)

type importOptions struct {
	project     string
	requestedBy string
	policy      string
	dryRun      bool
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV file into the configured record store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.policy != "" {
				if err := checkPolicy(opts.policy); err != nil {
					return err
				}
			}
			ctx := cmd.Context()

			rt, err := openRuntime(ctx, root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			return runImport(ctx, cmd.OutOrStdout(), rt, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.project, "project", "", "Project id (default: IMPORT_PROJECT_ID)")
	cmd.Flags().StringVar(&opts.requestedBy, "requested-by", currentUser(), "Recorded as the requester")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Row error policy: warn or block (default: IMPORT_SCORE_ERROR_POLICY)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate and preview only")
	return cmd
}

// runImport drives a wizard through SelectFile, Preview and Importing.
// Cancelling ctx closes the wizard, which aborts the import.
func runImport(ctx context.Context, out io.Writer, rt *runtime, path string, opts importOptions) error {
	fh, err := readFileHandle(path)
	if err != nil {
		return userError(err)
	}

	wz := rt.newWizard(core.ImportContext{ProjectID: opts.project, RequestedBy: opts.requestedBy}, opts.policy)
	defer wz.Close()

	if err := wz.SelectFile(fh); err != nil {
		return userError(err)
	}
	snap := wz.Snapshot()
	for _, line := range snap.Messages {
		fmt.Fprintln(out, "  "+line)
	}
	if err := wz.Next(); err != nil {
		return userError(err)
	}
	fmt.Fprintf(out, "%s: %d rows (session %s)\n", fh.Name, snap.RowCount, wz.ID())

	if opts.dryRun {
		policy := opts.policy
		if policy == "" {
			policy = rt.cfg.Import.ScoreErrorPolicy
		}
		if err := wz.Report().BlocksImport(core.ScoreErrorPolicy(policy)); err != nil {
			return userError(err)
		}
		fmt.Fprintln(out, "dry run: nothing imported")
		return nil
	}

	updates, stop := wz.Subscribe()
	defer stop()

	if err := wz.StartImport(ctx); err != nil {
		return userError(err)
	}

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = wz.Close()
		case <-finished:
		}
	}()

	for p := range updates {
		if p.Step == core.StepImporting && p.Total > 0 {
			fmt.Fprintf(out, "\r%d/%d rows (%d%%)", p.Done, p.Total, p.Percent())
		}
	}
	fmt.Fprintln(out)

	return printResult(out, wz)
}

func printResult(out io.Writer, wz *core.Wizard) error {
	snap := wz.Snapshot()

	switch snap.Step {
	case core.StepSuccess:
		fmt.Fprintln(out, core.SuccessMessage(*snap.Result))
	case core.StepFailed:
		if snap.Result != nil {
			fmt.Fprintf(out, "%d rows created before the failure\n", len(snap.Result.Succeeded))
		}
	default:
		return userError(core.ErrImportCancelled)
	}

	if snap.Result != nil {
		for _, f := range snap.Result.Failed {
			fmt.Fprintf(out, "  row %d: %s\n", f.RowIndex, f.Reason)
		}
	}
	if snap.Step == core.StepFailed {
		return fmt.Errorf("%s", snap.Failure)
	}
	return nil
}
