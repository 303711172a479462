package command

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/goopsie/swarFileTools/pkg/archive"
)

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive>",
		Short: "check an archive's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := archive.OpenFile(args[0], archive.WithLogger(newLogger(cmd)))
			if err != nil {
				return err
			}
			defer r.Close()

			verr := r.Verify()
			var ie *archive.IntegrityError
			if verr != nil && !errors.As(verr, &ie) {
				return verr
			}
			computed, err := r.ComputedChecksum()
			if err != nil {
				return err
			}

			status := "OK"
			if ie != nil {
				status = "MISMATCH"
			}
			t := newTable(cmd.OutOrStdout(), table.Row{"Archive", "Entries", "Stored", "Computed", "Status"})
			t.AppendRow(table.Row{
				args[0],
				r.Index().Len(),
				checksumString(r.StoredChecksum()),
				checksumString(computed),
				status,
			})
			t.Render()

			if ie != nil {
				return fmt.Errorf("%s: %w", args[0], ie)
			}
			return nil
		},
	}
}
