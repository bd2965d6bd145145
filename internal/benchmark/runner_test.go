package benchmark

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCalculateStatistics(t *testing.T) {
	timings := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		150 * time.Millisecond,
		180 * time.Millisecond,
		170 * time.Millisecond,
	}

	avg := calculateAverage(timings)
	expectedAvg := 160 * time.Millisecond
	if avg != expectedAvg {
		t.Errorf("Expected average %v, got %v", expectedAvg, avg)
	}

	min := calculateMin(timings)
	if min != 100*time.Millisecond {
		t.Errorf("Expected min %v, got %v", 100*time.Millisecond, min)
	}

	max := calculateMax(timings)
	if max != 200*time.Millisecond {
		t.Errorf("Expected max %v, got %v", 200*time.Millisecond, max)
	}

	stdDev := calculateStdDev(timings, avg)
	if stdDev < 35*time.Millisecond || stdDev > 40*time.Millisecond {
		t.Errorf("Expected stdDev around 37ms, got %v", stdDev)
	}

	if calculateAverage(nil) != 0 || calculateStdDev(timings[:1], avg) != 0 {
		t.Error("Expected zero statistics for empty or single timings")
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	cfg := NewRunner(Config{}).Config()
	if cfg.Iterations != 1 || cfg.Parallel != 1 || cfg.Timeout != defaultTimeout {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestRunnerPrimes(t *testing.T) {
	config := Config{
		Operations: []string{"prime"},
		Sizes:      []int{32, 64, 64, 12},
		Iterations: 3,
		Parallel:   2,
		Workers:    2,
		Timeout:    30,
	}

	var mu sync.Mutex
	var updates []ProgressUpdate
	runner := NewRunner(config)
	runner.SetProgressFunc(func(u ProgressUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	results, err := runner.Run()
	if err != nil {
		t.Fatalf("Runner failed: %v", err)
	}

	// 12 is invalid and the second 64 is a duplicate
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	for _, r := range results {
		if r.Operation != "prime" {
			t.Errorf("Expected prime operation, got %s", r.Operation)
		}
		if r.Completed != 6 {
			t.Errorf("Expected 6 completed iterations, got %d", r.Completed)
		}
		if r.Errors != 0 {
			t.Errorf("Expected 0 errors, got %d", r.Errors)
		}
		if r.RunID == "" || r.RunID != results[0].RunID {
			t.Errorf("Expected a shared run id, got %q", r.RunID)
		}
		if r.MinTime > r.MaxTime {
			t.Errorf("Min time %v exceeds max time %v", r.MinTime, r.MaxTime)
		}
	}

	if len(updates) != 12 {
		t.Errorf("Expected 12 progress updates, got %d", len(updates))
	}
}

func TestRunnerKeyGen(t *testing.T) {
	results, err := NewRunner(Config{
		Operations: []string{"keygen"},
		Sizes:      []int{512},
		Iterations: 1,
		Parallel:   1,
		Timeout:    60,
	}).Run()
	if err != nil {
		t.Fatalf("Runner failed: %v", err)
	}
	if len(results) != 1 || results[0].Completed != 1 {
		t.Fatalf("Expected one completed keygen, got %+v", results)
	}
}

func TestRunnerUnknownOperation(t *testing.T) {
	_, err := NewRunner(Config{Operations: []string{"ecdsa"}, Sizes: []int{256}}).Run()
	if err == nil {
		t.Fatal("Expected error for unknown operation")
	}
}

func TestRunnerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(Config{
		Operations: []string{"prime"},
		Sizes:      []int{64},
		Iterations: 5,
	}).RunContext(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
