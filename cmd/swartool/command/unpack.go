package command

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goopsie/swarFileTools/pkg/archive"
	"github.com/goopsie/swarFileTools/pkg/fileset"
)

type unpackOptions struct {
	outputDir string
	force     bool
	prefixes  []string
}

func newUnpackCommand() *cobra.Command {
	var opts unpackOptions

	cmd := &cobra.Command{
		Use:   "unpack <archive>",
		Short: "unpack an archive into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnpack(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", DefaultOutputDir, "directory to unpack into")
	cmd.Flags().BoolVar(&opts.force, "force", false, "allow a non-empty output directory")
	cmd.Flags().StringSliceVar(&opts.prefixes, "prefix", nil, "only unpack entries under these path prefixes")
	return cmd
}

func runUnpack(cmd *cobra.Command, archivePath string, opts unpackOptions) error {
	logger := newLogger(cmd)
	out := cmd.OutOrStdout()

	if !opts.force {
		empty, err := fileset.IsDirEmpty(opts.outputDir)
		if err != nil {
			return fmt.Errorf("check output directory: %w", err)
		}
		if !empty {
			return fmt.Errorf("output directory %s is not empty (use --force to override)", opts.outputDir)
		}
	}

	r, err := archive.OpenFile(archivePath, archive.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to load archive: %w", err)
	}
	defer r.Close()

	var ie *archive.IntegrityError
	if err := r.Verify(); errors.As(err, &ie) {
		warnf(cmd, "%s: %v; unpacking anyway", archivePath, ie)
	} else if err != nil {
		return err
	}

	res, err := fileset.Extract(cmd.Context(), r, opts.outputDir,
		fileset.WithPathFilter(opts.prefixes...),
		fileset.WithExtractLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	for _, f := range res.Failed {
		failf(cmd, "%s could not be read: %v", f.Path, f.Err)
	}
	fmt.Fprintf(out, "Unpacking has finished! %d files (%d bytes) written to %s\n", len(res.Written), res.Bytes, opts.outputDir)

	if len(res.Failed) > 0 {
		return fmt.Errorf("%d entries could not be unpacked", len(res.Failed))
	}
	return nil
}
