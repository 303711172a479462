// Package command implements the swartool subcommands.
package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	cliName        = "swartool"
	cliDescription = "pack directories into SWAR archives and unpack them again"
)

// NewRootCommand returns the swartool command tree. Given a single path and
// no subcommand, a directory is packed and a file is unpacked.
func NewRootCommand() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:           cliName + " [path]",
		Short:         cliDescription,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}

			info, err := os.Stat(args[0])
			if os.IsNotExist(err) {
				return fmt.Errorf("no file or directory found at %s", args[0])
			}
			if err != nil {
				return err
			}

			if info.IsDir() {
				if output == "" {
					output = DefaultArchiveName
				}
				return runPack(cmd, args[0], output)
			}
			if output == "" {
				output = DefaultOutputDir
			}
			return runUnpack(cmd, args[0], unpackOptions{outputDir: output, force: force})
		},
	}

	cmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive file when packing, directory when unpacking")
	cmd.Flags().BoolVar(&force, "force", false, "allow unpacking into a non-empty directory")

	cmd.AddCommand(
		newPackCommand(),
		newUnpackCommand(),
		newListCommand(),
		newVerifyCommand(),
	)
	return cmd
}
