package main

import (
	"errors"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dashjay/dirguard/pkg/journal"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recorded remediations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}
		if cfg.JournalPath == "" {
			return errors.New("no journal configured, set --journal-path")
		}
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		recs, err := j.List(journalLimit)
		if err != nil {
			return err
		}
		renderJournal(cmd.OutOrStdout(), recs)
		return nil
	},
}

func init() {
	journalCmd.Flags().IntVar(&journalLimit, "limit", 50, "maximum records to show, 0 for all")
}

func renderJournal(w io.Writer, recs []journal.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Action", "Type", "Path", "Detail"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetAutoWrapText(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	for _, rec := range recs {
		kind := "file"
		if rec.IsDir {
			kind = "dir"
		}
		detail := rec.Error
		if detail == "" {
			detail = rec.QuarantineKey
		}
		table.Append([]string{rec.At.Format(time.RFC3339), string(rec.Action), kind, rec.Path, detail})
	}
	table.Render()
}
