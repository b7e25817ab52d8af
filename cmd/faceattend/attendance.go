package main

import (
	"fmt"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/ledger"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show recorded attendance",
	Long: `Show the attendance recorded for one day (today by default) or, with
--all, every record in the ledger.`,
	Args: cobra.NoArgs,
	RunE: runShowAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.Flags().String("date", "", "Day to show (YYYY-MM-DD, default today)")
	attendanceCmd.Flags().Bool("all", false, "Show every record")
}

func runShowAttendance(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	all, _ := cmd.Flags().GetBool("all")

	if date == "" {
		date = time.Now().Format(ledger.DateLayout)
	} else if _, err := time.Parse(ledger.DateLayout, date); err != nil {
		return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", date)
	}

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = led.Close() }()

	var records []ledger.Record
	if all {
		records, err = led.Records()
	} else {
		records, err = led.ForDate(date)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		if all {
			fmt.Fprintln(out, "No attendance recorded.")
		} else {
			fmt.Fprintf(out, "No attendance recorded for %s.\n", date)
		}
		return nil
	}

	fmt.Fprintf(out, "%-24s %-10s %s\n", "Name", "Date", "Time")
	for _, r := range records {
		fmt.Fprintf(out, "%-24s %-10s %s\n", r.Name, r.Date, r.Time)
	}
	fmt.Fprintf(out, "\nTotal: %d record(s)\n", len(records))
	return nil
}
