package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

// renderSummary writes a run summary table to w.
func renderSummary(w io.Writer, s *Summary, runErr error) error {
	_, _ = bold.Fprintln(w, "THREAD POOL RUN")

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")

	rows := [][]string{
		{"Pushed", strconv.FormatInt(s.Pushed, 10)},
		{"Joined", strconv.FormatInt(s.Joined, 10)},
		{"Detached", strconv.FormatInt(s.Detached, 10)},
		{"Push retries", strconv.FormatInt(s.Retries, 10)},
		{"Workers", strconv.Itoa(s.Workers)},
		{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
		{"Tasks/sec", throughput(s)},
	}
	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	if runErr != nil {
		_, err := red.Fprintf(w, "FAILED: %v\n", runErr)
		return err
	}
	_, err := green.Fprintln(w, "OK: every joined result matched")
	return err
}

// renderCron writes a cron run summary to w.
func renderCron(w io.Writer, expr string, fired, dropped int64, runs []time.Time) error {
	_, _ = bold.Fprintln(w, "SCHEDULER RUN")

	table := tablewriter.NewWriter(w)
	table.Header("Expression", "Fired", "Dropped", "Next")
	next := "-"
	if len(runs) > 0 {
		next = runs[0].Format(time.RFC3339)
	}
	if err := table.Append(expr, strconv.FormatInt(fired, 10), strconv.FormatInt(dropped, 10), next); err != nil {
		return err
	}
	return table.Render()
}

func throughput(s *Summary) string {
	if s.Elapsed <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f", float64(s.Pushed)/s.Elapsed.Seconds())
}
