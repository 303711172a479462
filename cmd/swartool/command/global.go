package command

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"

	DefaultArchiveName = "data.swar"
	DefaultOutputDir   = "output"
)

// GlobalFlags are shared by every command.
type GlobalFlags struct {
	Verbose bool
}

var globalFlags GlobalFlags

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if globalFlags.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func outputFormat(cmd *cobra.Command) (string, error) {
	v, err := cmd.Flags().GetString("format")
	if err != nil {
		return "", err
	}
	switch f := strings.ToLower(v); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want %s, %s or %s)", v, FormatTable, FormatJSON, FormatYAML)
	}
}

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(header)
	configs := make([]table.ColumnConfig, len(header))
	for i := range header {
		configs[i] = table.ColumnConfig{Number: i + 1, VAlign: text.VAlignMiddle, AlignHeader: text.AlignCenter}
	}
	t.SetColumnConfigs(configs)
	t.SetStyle(table.StyleLight)
	// paths and checksums are printed as-is
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetOutputMirror(out)
	return t
}

func warnf(cmd *cobra.Command, format string, a ...any) {
	color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: "+format+"\n", a...)
}

func failf(cmd *cobra.Command, format string, a ...any) {
	color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), format+"\n", a...)
}

func checksumString(sum uint64) string {
	return fmt.Sprintf("%012x", sum)
}
