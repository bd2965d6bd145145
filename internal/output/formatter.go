// Package output renders benchmark results as a table, JSON or CSV.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/user/securemsg/internal/benchmark"
	"github.com/user/securemsg/pkg/sysinfo"
)

type Data struct {
	SystemInfo *sysinfo.SystemInfo
	Results    []benchmark.Result
	Config     benchmark.Config
}

type Formatter interface {
	Format(w io.Writer, data Data) error
}

func NewFormatter(format string) (Formatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "csv":
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

type summary struct {
	completed int
	errors    int
	total     time.Duration
}

func summarize(results []benchmark.Result) summary {
	var s summary
	for _, r := range results {
		s.completed += r.Completed
		s.errors += r.Errors
		s.total += r.TotalTime
	}
	return s
}

func (s summary) throughput() float64 {
	if s.total <= 0 {
		return 0
	}
	return float64(s.completed) / s.total.Seconds()
}
