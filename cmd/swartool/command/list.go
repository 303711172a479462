package command

import (
	_ "crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goopsie/swarFileTools/pkg/archive"
)

// entryInfo is one row of the list output.
type entryInfo struct {
	Path   string        `json:"path" yaml:"path"`
	Offset uint32        `json:"offset" yaml:"offset"`
	Length uint32        `json:"length" yaml:"length"`
	Digest digest.Digest `json:"digest,omitempty" yaml:"digest,omitempty"`
}

// archiveInfo is the document written by list in json and yaml formats.
type archiveInfo struct {
	Archive  string      `json:"archive" yaml:"archive"`
	Size     int64       `json:"size" yaml:"size"`
	Checksum string      `json:"checksum" yaml:"checksum"`
	Valid    bool        `json:"valid" yaml:"valid"`
	Entries  []entryInfo `json:"entries" yaml:"entries"`
}

func newListCommand() *cobra.Command {
	var withDigest bool

	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "list the entries of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			info, err := describe(cmd, args[0], withDigest)
			if err != nil {
				return err
			}
			return printInfo(cmd, info, format, withDigest)
		},
	}
	cmd.Flags().String("format", FormatTable, "output format: table, json or yaml")
	cmd.Flags().BoolVar(&withDigest, "digest", false, "include the sha256 digest of each entry")
	return cmd
}

func describe(cmd *cobra.Command, path string, withDigest bool) (*archiveInfo, error) {
	r, err := archive.OpenFile(path, archive.WithLogger(newLogger(cmd)))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	verr := r.Verify()
	if verr != nil && !errors.Is(verr, archive.ErrChecksumMismatch) {
		return nil, verr
	}

	info := &archiveInfo{
		Archive:  path,
		Size:     r.Size(),
		Checksum: checksumString(r.StoredChecksum()),
		Valid:    verr == nil,
		Entries:  make([]entryInfo, 0, r.Index().Len()),
	}
	for _, e := range r.Index().Entries() {
		row := entryInfo{Path: e.Path, Offset: e.Offset, Length: e.Length}
		if withDigest {
			sr, err := r.OpenEntry(e.Path)
			if err != nil {
				return nil, err
			}
			if row.Digest, err = digest.FromReader(sr); err != nil {
				return nil, fmt.Errorf("digest %q: %w", e.Path, err)
			}
		}
		info.Entries = append(info.Entries, row)
	}
	return info, nil
}

func printInfo(cmd *cobra.Command, info *archiveInfo, format string, withDigest bool) error {
	out := cmd.OutOrStdout()

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(info)
	}

	header := table.Row{"Path", "Offset", "Length"}
	if withDigest {
		header = append(header, "Digest")
	}
	t := newTable(out, header)
	for _, e := range info.Entries {
		row := table.Row{e.Path, e.Offset, e.Length}
		if withDigest {
			row = append(row, e.Digest.String())
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d entries", len(info.Entries)), "checksum", info.Checksum})
	t.Render()

	if !info.Valid {
		warnf(cmd, "%s: checksum does not match contents", info.Archive)
	}
	return nil
}
