package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"schoolhub/attendance/internal/attendance"
	"schoolhub/attendance/internal/calendar"
	"schoolhub/attendance/internal/client"
)

func newAttendanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Mark class attendance",
	}
	cmd.AddCommand(
		newAttendanceShowCmd(a),
		newAttendanceMarkCmd(a),
		newAttendanceSummaryCmd(a),
	)
	return cmd
}

func newAttendanceShowCmd(a *app) *cobra.Command {
	var classID string
	var date dateFlag
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the attendance sheet for a class on one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			d := date.Date
			if d.IsZero() {
				d = today()
			}
			sheet, err := c.GetAttendance(cmd.Context(), classID, d)
			if err != nil {
				return gateMessage(err, d)
			}
			printSheet(a, sheet)
			return nil
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "class session id")
	cmd.Flags().Var(&date, "date", "date (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newAttendanceMarkCmd(a *app) *cobra.Command {
	var classID string
	var date dateFlag
	var opts markOptions
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Mark attendance for a class on one date",
		Long: `Loads the current sheet, applies the changes in order (search, --all,
then --toggle) and saves the whole roster.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			d := date.Date
			if d.IsZero() {
				d = today()
			}
			ctx := cmd.Context()
			current, err := c.GetAttendance(ctx, classID, d)
			if err != nil {
				return gateMessage(err, d)
			}
			cal, err := c.GetCalendar(ctx, current.SessionID)
			if err != nil {
				return err
			}

			var existing []attendance.Mark
			if current.Loaded {
				existing = current.Marks()
			}
			sheet, err := attendance.NewSheet(calendar.NewLookup(cal.Dates), d, current.Roster(), existing)
			if err != nil {
				return gateMessage(err, d)
			}
			if err := opts.apply(sheet); err != nil {
				return err
			}
			if dryRun {
				sum := sheet.Summary()
				a.printf("would save %d present, %d absent of %d\n", sum.Present, sum.Absent, sum.Total)
				return nil
			}
			saved, err := c.SaveAttendance(ctx, classID, d, sheet.Marks())
			if err != nil {
				return err
			}
			printSheet(a, saved)
			return nil
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "class session id")
	cmd.Flags().Var(&date, "date", "date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.search, "search", "", "limit --all to students whose name or admission number matches")
	cmd.Flags().StringVar(&opts.all, "all", "", "mark every matching student present or absent")
	cmd.Flags().StringSliceVar(&opts.toggle, "toggle", nil, "student ids or admission numbers to flip")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the result without saving")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newAttendanceSummaryCmd(a *app) *cobra.Command {
	var classID, xlsxPath, pdfPath string
	var from, to dateFlag
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Per-student attendance over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if xlsxPath != "" && pdfPath != "" {
				return errors.New("choose one of --xlsx or --pdf")
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if xlsxPath != "" || pdfPath != "" {
				format, path := "xlsx", xlsxPath
				if pdfPath != "" {
					format, path = "pdf", pdfPath
				}
				return exportSummary(cmd, c, classID, from.Date, to.Date, format, path)
			}
			summary, err := c.Summary(cmd.Context(), classID, from.Date, to.Date)
			if err != nil {
				return err
			}
			printSummary(a, summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "class session id")
	cmd.Flags().Var(&from, "from", "first date (YYYY-MM-DD)")
	cmd.Flags().Var(&to, "to", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write an Excel workbook to this path")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "write a PDF report to this path")
	_ = cmd.MarkFlagRequired("class")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func exportSummary(cmd *cobra.Command, c *client.Client, classID string, from, to calendar.Date, format, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.ExportSummary(cmd.Context(), classID, from, to, format, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

// markOptions are the sheet edits requested on the command line.
type markOptions struct {
	search string
	all    string
	toggle []string
}

func (o markOptions) apply(sheet *attendance.Sheet) error {
	sheet.Search(o.search)
	switch strings.ToLower(o.all) {
	case "":
	case "present":
		sheet.MarkFiltered(true)
	case "absent":
		sheet.MarkFiltered(false)
	default:
		return fmt.Errorf("--all must be present or absent, got %q", o.all)
	}
	for _, ref := range o.toggle {
		id, err := resolveStudent(sheet.Roster(), ref)
		if err != nil {
			return err
		}
		if _, err := sheet.Toggle(id); err != nil {
			return err
		}
	}
	return nil
}

// resolveStudent accepts a student id or an admission number.
func resolveStudent(roster []attendance.Student, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	for _, st := range roster {
		if st.ID == ref || strings.EqualFold(st.AdmissionNo, ref) {
			return st.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", attendance.ErrUnknownStudent, ref)
}

// gateMessage turns a non-school-day rejection into a readable error.
func gateMessage(err error, d calendar.Date) error {
	var gateErr *attendance.GateError
	if errors.As(err, &gateErr) {
		return err
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case attendance.ReasonHoliday:
		return fmt.Errorf("%s is a holiday (%s); attendance cannot be marked", d, apiErr.Label)
	case attendance.ReasonNotSchoolDay:
		return fmt.Errorf("%s is not a school day; attendance cannot be marked", d)
	}
	return err
}

func printSheet(a *app, sheet *client.AttendanceSheet) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADMISSION\tNAME\tSTATUS")
	for _, st := range sheet.Students {
		status := "absent"
		if st.IsPresent {
			status = "present"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", st.AdmissionNo, st.FullName, status)
	}
	_ = tw.Flush()
	state := "not yet marked"
	if sheet.Loaded {
		state = "marked"
	}
	a.printf("%s (%s): %d present, %d absent of %d\n",
		sheet.Date, state, sheet.Summary.Present, sheet.Summary.Absent, sheet.Summary.Total)
}

func printSummary(a *app, summary *client.AttendanceSummary) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADMISSION\tNAME\tPRESENT\tABSENT\tUNMARKED\tRATE")
	for _, r := range summary.Students {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.1f%%\n",
			r.Student.AdmissionNo, r.Student.FullName, r.Present, r.Absent, r.Unmarked, r.Rate*100)
	}
	_ = tw.Flush()
	a.printf("%s to %s: %d school day(s)\n", summary.From, summary.To, summary.SchoolDays)
}
