// Package sysinfo describes the host a benchmark or server runs on.
package sysinfo

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

type SystemInfo struct {
	OS           string  `json:"os"`
	Architecture string  `json:"architecture"`
	CPUModel     string  `json:"cpu_model"`
	CPUCores     int     `json:"cpu_cores"`
	CPUThreads   int     `json:"cpu_threads"`
	TotalMemory  uint64  `json:"total_memory"`
	GoVersion    string  `json:"go_version"`
	Hostname     string  `json:"hostname"`
	Platform     string  `json:"platform"`
	LoadAverage  float64 `json:"load_average"`
	// PrimeWorkers is the default number of prime search goroutines on this host.
	PrimeWorkers int `json:"prime_workers"`
}

// Collect gathers host details. Fields gopsutil cannot read on this platform stay zero.
func Collect(ctx context.Context) (*SystemInfo, error) {
	info := &SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		CPUCores:     runtime.NumCPU(),
		PrimeWorkers: runtime.NumCPU(),
	}

	if cpuInfo, err := cpu.InfoWithContext(ctx); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = strings.TrimSpace(cpuInfo[0].ModelName)
	}
	if threads, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUThreads = threads
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemory = memInfo.Total
	}
	if hostInfo, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = hostInfo.Hostname
		info.Platform = hostInfo.Platform
	}
	if loadAvg, err := load.AvgWithContext(ctx); err == nil {
		info.LoadAverage = loadAvg.Load1
	}

	return info, ctx.Err()
}

// Sample is a point-in-time CPU and memory reading.
type Sample struct {
	CPUPercent float64
	MemUsed    uint64
}

// sampleWindow is how long cpu.Percent measures.
const sampleWindow = 100 * time.Millisecond

// TakeSample reads system-wide CPU utilisation over a short window and used memory.
func TakeSample(ctx context.Context) Sample {
	var s Sample
	if pct, err := cpu.PercentWithContext(ctx, sampleWindow, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemUsed = vm.Used
	}
	return s
}

// Delta returns the CPU percentage change and the memory growth (never negative) up to later.
func (s Sample) Delta(later Sample) (cpuPercent float64, memGrowth uint64) {
	cpuPercent = later.CPUPercent - s.CPUPercent
	if later.MemUsed > s.MemUsed {
		memGrowth = later.MemUsed - s.MemUsed
	}
	return cpuPercent, memGrowth
}
