package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"schoolhub/attendance/internal/calendar"
	"schoolhub/attendance/internal/client"
	"schoolhub/attendance/internal/clients"
)

func newCalendarCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Manage session calendars",
	}
	cmd.AddCommand(
		newCalendarPreviewCmd(a),
		newCalendarPushCmd(a),
		newCalendarShowCmd(a),
		newCalendarDeleteCmd(a),
		newCalendarICSCmd(a),
		newCalendarClassifyCmd(a),
	)
	return cmd
}

func newCalendarPreviewCmd(a *app) *cobra.Command {
	var from, to dateFlag
	var excludeWeekends bool
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the school days between two dates without contacting the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			dates, err := calendar.GenerateRange(from.Date, to.Date, excludeWeekends)
			if err != nil {
				return err
			}
			for _, d := range dates {
				a.printf("%s  %s\n", d, d.Weekday().String()[:3])
			}
			a.printf("%d day(s)\n", len(dates))
			return nil
		},
	}
	cmd.Flags().Var(&from, "from", "first date (YYYY-MM-DD)")
	cmd.Flags().Var(&to, "to", "last date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&excludeWeekends, "exclude-weekends", false, "skip Saturdays and Sundays")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newCalendarPushCmd(a *app) *cobra.Command {
	var path string
	var replace, dryRun bool
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Create a session calendar from a YAML term file",
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := loadTermFile(path)
			if err != nil {
				return err
			}
			entries, err := tf.entries()
			if err != nil {
				return err
			}
			if dryRun {
				printEntries(a, entries)
				return nil
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			cal, err := c.CreateCalendar(cmd.Context(), tf.Session, entries)
			if client.IsCode(err, "calendar_exists") {
				if !replace {
					return fmt.Errorf("session %s already has a calendar; rerun with --replace", tf.Session)
				}
				cal, err = c.UpdateCalendar(cmd.Context(), tf.Session, entries)
			}
			if err != nil {
				return err
			}
			a.printf("calendar for %s: %s to %s, %d school day(s), %d holiday(s)\n",
				cal.SessionID, cal.From, cal.To, cal.SchoolDays, len(cal.Holidays))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "term file (YAML)")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing calendar")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the calendar instead of pushing it")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCalendarShowCmd(a *app) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a session calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			cal, err := c.GetCalendar(cmd.Context(), session)
			if err != nil {
				return err
			}
			printEntries(a, cal.Dates)
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newCalendarDeleteCmd(a *app) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a session calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteCalendar(cmd.Context(), session); err != nil {
				return err
			}
			a.printf("deleted calendar for %s\n", session)
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newCalendarICSCmd(a *app) *cobra.Command {
	var session, output string
	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Download a session calendar as iCalendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			body, err := c.ExportICS(cmd.Context(), session)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				a.printf("%s", body)
				return nil
			}
			return os.WriteFile(output, []byte(body), 0o644)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newCalendarClassifyCmd(a *app) *cobra.Command {
	var addr, serviceToken, session string
	var date dateFlag
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one date through the internal gRPC query service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serviceToken == "" {
				return errors.New("--service-token or SERVICE_AUTH_TOKEN is required")
			}
			q, err := clients.NewCalendarQuery(cmd.Context(), addr, serviceToken, a.timeout)
			if err != nil {
				return err
			}
			defer q.Close()
			res, err := q.ClassifyDate(cmd.Context(), session, date.String())
			if err != nil {
				return err
			}
			if res.HolidayLabel != "" {
				a.printf("%s  %s  %s\n", res.Date, res.Classification, res.HolidayLabel)
			} else {
				a.printf("%s  %s\n", res.Date, res.Classification)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "grpc", envOr("ATTENDANCE_GRPC_ADDR", "localhost:9093"), "gRPC address")
	cmd.Flags().StringVar(&serviceToken, "service-token", os.Getenv("SERVICE_AUTH_TOKEN"), "service token")
	cmd.Flags().StringVar(&session, "session", "", "session id")
	cmd.Flags().Var(&date, "date", "date to classify (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func printEntries(a *app, entries []calendar.CalendarDate) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDAY\tSTATUS\tLABEL")
	school := 0
	for _, e := range entries {
		status, label := "holiday", ""
		if e.IsSchoolDay {
			status = "school"
			school++
		}
		if e.HolidayLabel != nil {
			label = *e.HolidayLabel
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Date, e.Date.Weekday().String()[:3], status, label)
	}
	_ = tw.Flush()
	a.printf("%d date(s), %d school day(s)\n", len(entries), school)
}

// dateFlag is a pflag.Value for YYYY-MM-DD dates.
type dateFlag struct {
	calendar.Date
}

func (f *dateFlag) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Date.String()
}

func (f *dateFlag) Set(value string) error {
	d, err := calendar.ParseDate(value)
	if err != nil {
		return err
	}
	f.Date = d
	return nil
}

func (f *dateFlag) Type() string { return "date" }

// today in local time, used when --date is omitted.
func today() calendar.Date {
	return calendar.DateOf(time.Now())
}
