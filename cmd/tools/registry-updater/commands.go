package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"credit-workers/pkg/registry"

	"github.com/spf13/cobra"
)

const app = "registry-updater"

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of package variables.
func newRootCmd() *cobra.Command {
	var registryPath string

	root := &cobra.Command{
		Use:           app,
		Short:         "Inspect, export and validate the activity registry of the credit workers",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&registryPath, "registry", "r", "", "registry JSON file (default is the built-in registry)")

	load := func() (*registry.ActivityRegistry, error) {
		return registry.LoadOrDefault(registryPath)
	}

	root.AddCommand(
		newListCmd(load),
		newExportCmd(load),
		newCheckCmd(load),
		newValidateCmd(load),
	)
	return root
}

type loader func() (*registry.ActivityRegistry, error)

func newListCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := load()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "TASK TYPE\tCATEGORY\tVERSION\tSTATUS\tON FAILURE\tTIMEOUT\tRETRIES\n")
			for _, a := range reg.Activities {
				onFailure := a.FailureMode
				if onFailure == "" {
					onFailure = registry.FailureFail
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
					a.TaskType, a.Category, a.Version, a.ImplementationStatus, onFailure, a.Timeout, a.Retries)
			}
			return w.Flush()
		},
	}
}

func newExportCmd(load loader) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the registry as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := load()
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reg)
			}
			if err := reg.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d activities to %s\n", len(reg.Activities), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newCheckCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the registry for duplicate ids and invalid schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := load()
			if err != nil {
				return err
			}
			problems := reg.Check()
			for _, p := range problems {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %v\n", p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("registry has %d problems", len(problems))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry %s is consistent (%d activities)\n", reg.Version, len(reg.Activities))
			return nil
		},
	}
}

func newValidateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "validate TASK_TYPE [FILE]",
		Short: "Validate a JSON payload against an activity input schema (stdin when FILE is omitted or -)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := load()
			if err != nil {
				return err
			}

			payload, err := readPayload(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}

			result, err := reg.Validate(args[0], payload)
			if err != nil {
				return err
			}
			if !result.Valid {
				for _, e := range result.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s: %s\n", e.Field, e.Message)
				}
				return fmt.Errorf("payload is not a valid %s input", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Payload is a valid %s input\n", args[0])
			return nil
		},
	}
}

func readPayload(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(args[0])
}
