package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the node config to " + dumpFileName,
		Long: `Download the node's current configuration and write it unchanged as a
zip archive to ` + dumpFileName + ` in the project directory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := rootOpts.Connect(cmd)
			if err != nil {
				return err
			}

			zipData, err := env.Node.GetConfigZip(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot download node config", err)
			}
			if err := os.WriteFile(dumpFileName, zipData, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "cannot write "+dumpFileName, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Node config written to %s.\n", dumpFileName)
			return nil
		},
	}

	return cmd
}
