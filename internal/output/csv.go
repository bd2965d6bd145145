package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/user/securemsg/pkg/sysinfo"
)

type CSVFormatter struct{}

func (c *CSVFormatter) Format(w io.Writer, data Data) error {
	writer := csv.NewWriter(w)

	header := []string{
		"Timestamp",
		"RunID",
		"Operation",
		"Bits",
		"Iterations",
		"Parallel",
		"Workers",
		"TotalTime(ms)",
		"AverageTime(ms)",
		"MinTime(ms)",
		"MaxTime(ms)",
		"StdDev(ms)",
		"OpsPerSecond",
		"CPUUsage(%)",
		"MemoryUsed(MB)",
		"Completed",
		"Errors",
		"TimedOut",
		"OS",
		"Architecture",
		"CPUModel",
		"CPUCores",
		"TotalMemory(GB)",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	info := data.SystemInfo
	if info == nil {
		info = &sysinfo.SystemInfo{}
	}

	for _, result := range data.Results {
		row := []string{
			result.CompletedAt.Format(time.RFC3339),
			result.RunID,
			result.Operation,
			strconv.Itoa(result.Size),
			strconv.Itoa(result.Iterations),
			strconv.Itoa(result.Parallel),
			strconv.Itoa(result.Workers),
			millis(result.TotalTime),
			millis(result.AverageTime),
			millis(result.MinTime),
			millis(result.MaxTime),
			millis(result.StdDev),
			fmt.Sprintf("%.2f", result.OpsPerSecond),
			fmt.Sprintf("%.2f", result.CPUUsage),
			fmt.Sprintf("%.2f", float64(result.MemoryUsed)/(1024*1024)),
			strconv.Itoa(result.Completed),
			strconv.Itoa(result.Errors),
			strconv.FormatBool(result.TimedOut),
			info.OS,
			info.Architecture,
			info.CPUModel,
			strconv.Itoa(info.CPUCores),
			fmt.Sprintf("%.2f", float64(info.TotalMemory)/(1024*1024*1024)),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/1e6)
}
