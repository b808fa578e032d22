package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/spf13/cobra"
)

// errValidationFailed signals a non-zero exit after the report is printed.
var errValidationFailed = errors.New("validation failed")

// checkPolicy rejects a --policy value other than warn or block.
func checkPolicy(flag string) error {
	if !core.ScoreErrorPolicy(flag).Valid() {
		return fmt.Errorf("invalid --policy %q (want warn or block)", flag)
	}
	return nil
}

func newValidateCmd() *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a CSV file against the import template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkPolicy(policy); err != nil {
				return err
			}

			fh, err := readFileHandle(args[0])
			if err != nil {
				return userError(err)
			}
			return runValidate(cmd.OutOrStdout(), fh, core.ScoreErrorPolicy(policy))
		},
	}

	cmd.Flags().StringVar(&policy, "policy", string(core.ScorePolicyWarn), "Row error policy: warn or block")
	return cmd
}

func runValidate(out io.Writer, fh core.FileHandle, policy core.ScoreErrorPolicy) error {
	parsed, err := core.ParseFile(fh)
	if err != nil {
		fmt.Fprintln(out, core.FormatUserError(err))
		return errValidationFailed
	}

	report := core.NewSchemaValidator().Validate(parsed.Headers, parsed.Rows)
	fmt.Fprintf(out, "%s: %d rows\n", fh.Name, len(parsed.Rows))
	for _, line := range report.Messages() {
		fmt.Fprintln(out, "  "+line)
	}

	if err := report.BlocksImport(policy); err != nil {
		fmt.Fprintln(out, core.FormatUserError(err))
		return errValidationFailed
	}
	if report.OK() {
		fmt.Fprintln(out, "OK: ready to import")
	} else {
		fmt.Fprintf(out, "OK with %d row warnings\n", len(report.RowErrors))
	}
	return nil
}

func readFileHandle(path string) (core.FileHandle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.FileHandle{}, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	return core.FileHandle{
		Name: filepath.Base(path),
		Size: int64(len(data)),
		Data: data,
	}, nil
}
