package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/user/securemsg/internal/observability/logger"
	"github.com/user/securemsg/pkg/sysinfo"
)

const defaultTimeout = 300

type Runner struct {
	config     Config
	onProgress func(ProgressUpdate)
	log        *zap.Logger
}

func NewRunner(config Config) *Runner {
	if config.Iterations < 1 {
		config.Iterations = 1
	}
	if config.Parallel < 1 {
		config.Parallel = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Runner{config: config, log: logger.Named("benchmark")}
}

// Config returns the normalized configuration.
func (r *Runner) Config() Config { return r.config }

// SetProgressFunc registers a callback invoked after every finished iteration.
func (r *Runner) SetProgressFunc(fn func(ProgressUpdate)) {
	r.onProgress = fn
}

func (r *Runner) Run() ([]Result, error) {
	return r.RunContext(context.Background())
}

// RunContext benchmarks every operation/size combination in order. Sizes an operation does
// not accept are skipped. Cancelling ctx aborts the run.
func (r *Runner) RunContext(ctx context.Context) ([]Result, error) {
	runID := uuid.New().String()
	var results []Result
	seen := make(map[string]bool)

	for _, name := range r.config.Operations {
		op, err := getOperation(name, r.config.Workers)
		if err != nil {
			return nil, err
		}

		for _, size := range r.config.Sizes {
			if err := op.ValidateSize(size); err != nil {
				r.log.Warn("skipping size", zap.String("operation", name), logger.Bits(size), logger.Err(err))
				continue
			}

			combo := fmt.Sprintf("%s-%d", name, size)
			if seen[combo] {
				continue
			}
			seen[combo] = true

			result, err := r.runSingleBenchmark(ctx, op, size)
			if err != nil {
				return results, err
			}
			result.RunID = runID
			results = append(results, result)

			if r.config.Verbose {
				r.log.Info("benchmark finished",
					zap.String("operation", name),
					logger.Bits(size),
					zap.Int("completed", result.Completed),
					zap.Int("errors", result.Errors),
					logger.Duration(result.TotalTime),
				)
			}
		}
	}

	return results, nil
}

func (r *Runner) runSingleBenchmark(parent context.Context, op Operation, size int) (Result, error) {
	result := Result{
		Operation:  op.Name(),
		Size:       size,
		Iterations: r.config.Iterations,
		Parallel:   r.config.Parallel,
		Workers:    r.config.Workers,
	}
	if result.Workers < 1 {
		result.Workers = runtime.NumCPU()
	}

	totalIterations := r.config.Iterations * r.config.Parallel
	var progress *progressbar.ProgressBar

	if r.config.ShowProgress {
		progress = progressbar.NewOptions(totalIterations,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(fmt.Sprintf("[%s-%d]", op.Name(), size)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(os.Stderr)
			}),
		)
	}

	before := sysinfo.TakeSample(parent)

	ctx, cancel := context.WithTimeout(parent, time.Duration(r.config.Timeout)*time.Second)
	defer cancel()

	var timings []time.Duration
	var errCount, done int
	var mu sync.Mutex

	startTime := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < r.config.Parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < r.config.Iterations; j++ {
				if ctx.Err() != nil {
					return
				}

				iterStart := time.Now()
				err := op.Run(ctx, size)
				elapsed := time.Since(iterStart)
				if err != nil && ctx.Err() != nil {
					// interrupted, not failed
					return
				}

				mu.Lock()
				if err != nil {
					errCount++
				} else {
					timings = append(timings, elapsed)
				}
				done++
				current := done
				mu.Unlock()

				if progress != nil {
					_ = progress.Add(1)
				}
				r.report(op.Name(), size, current, totalIterations, startTime)
			}
		}()
	}

	wg.Wait()

	if err := parent.Err(); err != nil {
		return result, err
	}

	result.TotalTime = time.Since(startTime)
	result.Errors = errCount
	result.Completed = len(timings)
	result.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	result.CompletedAt = time.Now()

	if len(timings) > 0 {
		result.AverageTime = calculateAverage(timings)
		result.MinTime = calculateMin(timings)
		result.MaxTime = calculateMax(timings)
		result.StdDev = calculateStdDev(timings, result.AverageTime)
		result.OpsPerSecond = float64(len(timings)) / result.TotalTime.Seconds()
	}

	after := sysinfo.TakeSample(parent)
	result.CPUUsage, result.MemoryUsed = before.Delta(after)

	runtime.GC()

	return result, nil
}

func (r *Runner) report(name string, size, current, total int, start time.Time) {
	if r.onProgress == nil {
		return
	}
	rate := 0.0
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		rate = float64(current) / elapsed
	}
	r.onProgress(ProgressUpdate{
		Current:    current,
		Total:      total,
		Percentage: float64(current) / float64(total) * 100,
		Rate:       rate,
		Operation:  name,
		Size:       size,
	})
}

func calculateAverage(timings []time.Duration) time.Duration {
	if len(timings) == 0 {
		return 0
	}

	var sum time.Duration
	for _, t := range timings {
		sum += t
	}
	return sum / time.Duration(len(timings))
}

func calculateMin(timings []time.Duration) time.Duration {
	if len(timings) == 0 {
		return 0
	}

	min := timings[0]
	for _, t := range timings[1:] {
		if t < min {
			min = t
		}
	}
	return min
}

func calculateMax(timings []time.Duration) time.Duration {
	if len(timings) == 0 {
		return 0
	}

	max := timings[0]
	for _, t := range timings[1:] {
		if t > max {
			max = t
		}
	}
	return max
}

func calculateStdDev(timings []time.Duration, avg time.Duration) time.Duration {
	if len(timings) <= 1 {
		return 0
	}

	var sum float64
	avgFloat := float64(avg)

	for _, t := range timings {
		diff := float64(t) - avgFloat
		sum += diff * diff
	}

	variance := sum / float64(len(timings)-1)
	return time.Duration(math.Sqrt(variance))
}
