package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

type TableFormatter struct{}

func (t *TableFormatter) Format(w io.Writer, data Data) error {
	fmt.Fprintln(w, "\nBenchmark Results")
	fmt.Fprintln(w, "=================")
	if info := data.SystemInfo; info != nil {
		fmt.Fprintf(w, "Host: %s %s/%s, %s, %d cores\n",
			info.Hostname, info.OS, info.Architecture, info.CPUModel, info.CPUCores)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"Operation",
		"Bits",
		"Iterations",
		"Parallel",
		"Workers",
		"Total Time",
		"Avg Time",
		"Min Time",
		"Max Time",
		"Ops/Sec",
		"CPU %",
		"Memory MB",
		"Errors",
	})

	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, result := range data.Results {
		errs := strconv.Itoa(result.Errors)
		if result.TimedOut {
			errs += " (timeout)"
		}
		table.Append([]string{
			result.Operation,
			strconv.Itoa(result.Size),
			strconv.Itoa(result.Iterations),
			strconv.Itoa(result.Parallel),
			strconv.Itoa(result.Workers),
			formatDuration(result.TotalTime),
			formatDuration(result.AverageTime),
			formatDuration(result.MinTime),
			formatDuration(result.MaxTime),
			fmt.Sprintf("%.2f", result.OpsPerSecond),
			fmt.Sprintf("%.1f", result.CPUUsage),
			fmt.Sprintf("%.2f", float64(result.MemoryUsed)/(1024*1024)),
			errs,
		})
	}

	table.Render()

	s := summarize(data.Results)
	fmt.Fprintln(w, "\nSummary")
	fmt.Fprintln(w, "-------")
	fmt.Fprintf(w, "Total generated: %d\n", s.completed)
	fmt.Fprintf(w, "Total errors: %d\n", s.errors)
	fmt.Fprintf(w, "Total time: %s\n", formatDuration(s.total))
	if s.total > 0 {
		fmt.Fprintf(w, "Overall throughput: %.2f ops/sec\n", s.throughput())
	}

	return nil
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.2fm", d.Minutes())
}
