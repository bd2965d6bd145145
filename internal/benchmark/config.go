package benchmark

import (
	"context"
	"time"
)

type Config struct {
	Operations   []string `json:"operations"`
	Sizes        []int    `json:"sizes"`
	Iterations   int      `json:"iterations"`
	Parallel     int      `json:"parallel"`
	Workers      int      `json:"workers"`
	ShowProgress bool     `json:"show_progress"`
	Timeout      int      `json:"timeout"`
	Verbose      bool     `json:"verbose"`
}

type Result struct {
	RunID        string        `json:"run_id"`
	Operation    string        `json:"operation"`
	Size         int           `json:"size"`
	Iterations   int           `json:"iterations"`
	Parallel     int           `json:"parallel"`
	Workers      int           `json:"workers"`
	TotalTime    time.Duration `json:"total_time"`
	AverageTime  time.Duration `json:"average_time"`
	MinTime      time.Duration `json:"min_time"`
	MaxTime      time.Duration `json:"max_time"`
	StdDev       time.Duration `json:"std_dev"`
	OpsPerSecond float64       `json:"ops_per_second"`
	CPUUsage     float64       `json:"cpu_usage"`
	MemoryUsed   uint64        `json:"memory_used"`
	Completed    int           `json:"completed"`
	Errors       int           `json:"errors"`
	TimedOut     bool          `json:"timed_out"`
	CompletedAt  time.Time     `json:"completed_at"`
}

type ProgressUpdate struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Rate       float64 `json:"rate"`
	Operation  string  `json:"operation"`
	Size       int     `json:"size"`
}

// Operation is one timed unit of work, such as generating a prime or a key pair of a given size.
type Operation interface {
	Name() string
	ValidateSize(size int) error
	Run(ctx context.Context, size int) error
}
