package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goopsie/swarFileTools/pkg/archive"
	"github.com/goopsie/swarFileTools/pkg/fileset"
)

func newPackCommand() *cobra.Command {
	var (
		output      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "pack a directory into an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(cmd, args[0], output, fileset.WithConcurrency(concurrency))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", DefaultArchiveName, "archive file to write")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "files read in parallel (default GOMAXPROCS)")
	return cmd
}

func runPack(cmd *cobra.Command, inputDir, output string, opts ...fileset.ScanOption) error {
	logger := newLogger(cmd)
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Scanning input directory...")
	files, err := fileset.ScanDir(cmd.Context(), inputDir, append(opts, fileset.WithScanLogger(logger))...)
	if err != nil {
		return fmt.Errorf("scan files: %w", err)
	}
	fmt.Fprintf(out, "Found %d files\n", len(files))

	if err := archive.PackFile(output, files, archive.WithLogger(logger)); err != nil {
		return fmt.Errorf("pack: %w", err)
	}

	sum, err := archive.ReadChecksum(output)
	if err != nil {
		return fmt.Errorf("read back checksum: %w", err)
	}
	fmt.Fprintf(out, "Repacking has finished! Archive written to %s (checksum %s)\n", output, checksumString(sum))
	return nil
}
