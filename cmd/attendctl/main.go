// Command attendctl builds attendance calendars and marks attendance against
// the attendance API.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"schoolhub/attendance/internal/client"
)

type app struct {
	apiURL  string
	token   string
	timeout time.Duration
	out     io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:          "attendctl",
		Short:        "Manage attendance calendars and mark attendance",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.apiURL, "api", envOr("ATTENDANCE_API_URL", "http://localhost:8083"), "attendance API base URL")
	root.PersistentFlags().StringVar(&a.token, "token", "", "access token (default: $ACCESS_TOKEN, then the saved token file)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 15*time.Second, "request timeout")

	root.AddCommand(newCalendarCmd(a), newAttendanceCmd(a))
	return root
}

// client resolves the token lazily so local-only commands work without one.
func (a *app) client() (*client.Client, error) {
	token, err := resolveToken(a.token)
	if err != nil {
		return nil, err
	}
	return client.New(a.apiURL, token, &http.Client{Timeout: a.timeout}), nil
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
