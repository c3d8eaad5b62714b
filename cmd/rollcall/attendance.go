package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/rollcall/internal/db"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store/sqlite"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func newAttendanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attendance <session-id>",
		Short: "Print the attendance ledger of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(cmd.Context(), db.Config{Path: ctx.cfg.DBPath, Env: ctx.cfg.Env})
			if err != nil {
				return err
			}
			defer conn.Close()
			writer := db.NewWorker(conn)
			defer writer.Close()

			ledger := service.NewLedgerService(service.Deps{
				Store:  sqlite.NewAttendanceStore(conn, writer),
				Logger: ctx.logger,
			})
			att, err := ledger.GetAttendance(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("session %s: %w", args[0], err)
			}
			renderAttendance(cmd.OutOrStdout(), att)
			return nil
		},
	}
}

func renderAttendance(w io.Writer, att types.SessionAttendance) {
	s := att.Session
	fmt.Fprintf(w, "%s (%s)  %s - %s  grace %dm\n",
		s.Title, s.Status, s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339), s.GracePeriodMinutes)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(table.Row{"Person", "Status", "Check-in", "Check-out", "Camera", "Manual"})
	for _, r := range att.Records {
		manual := ""
		if r.IsManual {
			manual = "yes"
		}
		tw.AppendRow(table.Row{r.PersonID, string(r.Status), clock(r.CheckinTime), clock(r.CheckoutTime), r.CheckinCameraID, manual})
	}
	sum := att.Summary
	tw.AppendFooter(table.Row{
		fmt.Sprintf("%d total", sum.Total),
		fmt.Sprintf("%d present / %d late / %d absent", sum.Present, sum.Late, sum.Absent),
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	tw.Render()
}

func clock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("15:04:05")
}
