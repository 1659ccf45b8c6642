package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Ning0612/drivesync/internal/state"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [target]",
	Short: "Show journaled operations, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) == 1 {
			target = args[0]
		}

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		ops, err := svc.History(target, historyLimit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tACTION\tTARGET\tNAME\tSTATUS\tSIZE\tTOOK")
		for _, op := range ops {
			status := okColor(op.Status)
			if op.Status == state.StatusFailed {
				status = errColor(op.Status)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				humanize.Time(op.StartTime), op.Action, op.Target, op.Name, status,
				humanize.IBytes(uint64(op.Bytes)), op.Duration().Round(time.Millisecond))
			if op.Error != "" {
				fmt.Fprintf(tw, "\t%s\t\t\t\t\t\n", dimColor(op.Error))
			}
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of operations to show")
}
