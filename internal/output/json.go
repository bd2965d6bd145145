package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/user/securemsg/internal/benchmark"
	"github.com/user/securemsg/pkg/sysinfo"
)

type JSONFormatter struct{}

type JSONOutput struct {
	Timestamp  time.Time           `json:"timestamp"`
	SystemInfo *sysinfo.SystemInfo `json:"system_info"`
	Config     benchmark.Config    `json:"config"`
	Results    []benchmark.Result  `json:"results"`
	Summary    struct {
		Completed       int           `json:"completed"`
		Errors          int           `json:"errors"`
		TotalTime       time.Duration `json:"total_time"`
		TotalTimeString string        `json:"total_time_string"`
		Throughput      float64       `json:"throughput_ops_per_sec"`
	} `json:"summary"`
}

func (j *JSONFormatter) Format(w io.Writer, data Data) error {
	out := JSONOutput{
		Timestamp:  time.Now(),
		SystemInfo: data.SystemInfo,
		Config:     data.Config,
		Results:    data.Results,
	}
	if out.Results == nil {
		out.Results = []benchmark.Result{}
	}

	s := summarize(data.Results)
	out.Summary.Completed = s.completed
	out.Summary.Errors = s.errors
	out.Summary.TotalTime = s.total
	out.Summary.TotalTimeString = s.total.String()
	out.Summary.Throughput = s.throughput()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
