package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/user/securemsg/internal/benchmark"
	"github.com/user/securemsg/pkg/sysinfo"
)

func sampleData() Data {
	return Data{
		SystemInfo: &sysinfo.SystemInfo{
			OS:           "linux",
			Architecture: "amd64",
			CPUModel:     "Test CPU",
			CPUCores:     8,
			TotalMemory:  16000000000,
			Hostname:     "bench-host",
		},
		Results: []benchmark.Result{
			{
				RunID:        "run-1",
				Operation:    "keygen",
				Size:         2048,
				Iterations:   10,
				Parallel:     1,
				Workers:      8,
				TotalTime:    5 * time.Second,
				AverageTime:  500 * time.Millisecond,
				MinTime:      400 * time.Millisecond,
				MaxTime:      600 * time.Millisecond,
				OpsPerSecond: 2.0,
				CPUUsage:     50.5,
				MemoryUsed:   1048576,
				Completed:    10,
				CompletedAt:  time.Now(),
			},
			{
				RunID:        "run-1",
				Operation:    "prime",
				Size:         512,
				Iterations:   20,
				Parallel:     2,
				Workers:      8,
				TotalTime:    time.Second,
				OpsPerSecond: 38,
				Completed:    38,
				Errors:       2,
				TimedOut:     true,
				CompletedAt:  time.Now(),
			},
		},
		Config: benchmark.Config{
			Operations: []string{"keygen", "prime"},
			Sizes:      []int{512, 2048},
			Iterations: 10,
			Parallel:   1,
		},
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format    string
		expectErr bool
	}{
		{"table", false},
		{"json", false},
		{"csv", false},
		{"xml", true},
		{"invalid", true},
	}

	for _, test := range tests {
		_, err := NewFormatter(test.format)
		if test.expectErr && err == nil {
			t.Errorf("Expected error for format %s", test.format)
		}
		if !test.expectErr && err != nil {
			t.Errorf("Unexpected error for format %s: %v", test.format, err)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&JSONFormatter{}).Format(buf, sampleData()); err != nil {
		t.Fatalf("JSON formatting failed: %v", err)
	}

	var out JSONOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}

	if out.SystemInfo == nil || out.SystemInfo.Hostname != "bench-host" {
		t.Error("Missing system_info in JSON output")
	}
	if len(out.Results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(out.Results))
	}
	if out.Summary.Completed != 48 || out.Summary.Errors != 2 {
		t.Errorf("Unexpected summary: %+v", out.Summary)
	}
	if out.Summary.TotalTime != 6*time.Second {
		t.Errorf("Expected 6s total, got %v", out.Summary.TotalTime)
	}
}

func TestJSONFormatterEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&JSONFormatter{}).Format(buf, Data{}); err != nil {
		t.Fatalf("JSON formatting failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"results": []`) {
		t.Errorf("Expected empty results array, got %s", buf.String())
	}
}

func TestCSVFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&CSVFormatter{}).Format(buf, sampleData()); err != nil {
		t.Fatalf("CSV formatting failed: %v", err)
	}

	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("Invalid CSV output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d records", len(records))
	}

	header := strings.Join(records[0], ",")
	for _, col := range []string{"Operation", "Bits", "OpsPerSecond", "TimedOut"} {
		if !strings.Contains(header, col) {
			t.Errorf("CSV header missing %s field", col)
		}
	}
	if records[1][2] != "keygen" || records[2][2] != "prime" {
		t.Errorf("Unexpected operation column: %q, %q", records[1][2], records[2][2])
	}
	if len(records[1]) != len(records[0]) {
		t.Errorf("Row has %d columns, header has %d", len(records[1]), len(records[0]))
	}
}

func TestCSVFormatterWithoutSystemInfo(t *testing.T) {
	data := sampleData()
	data.SystemInfo = nil
	if err := (&CSVFormatter{}).Format(&bytes.Buffer{}, data); err != nil {
		t.Fatalf("CSV formatting failed: %v", err)
	}
}

func TestTableFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TableFormatter{}).Format(buf, sampleData()); err != nil {
		t.Fatalf("Table formatting failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"Benchmark Results", "bench-host", "keygen", "2048", "(timeout)", "Summary", "Total generated: 48"} {
		if !strings.Contains(output, want) {
			t.Errorf("Table output missing %q", want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Nanosecond, "0.50µs"},
		{1500 * time.Microsecond, "1.50ms"},
		{2500 * time.Millisecond, "2.50s"},
		{150 * time.Second, "2.50m"},
	}

	for _, test := range tests {
		result := formatDuration(test.duration)
		if result != test.expected {
			t.Errorf("For duration %v, expected %s, got %s", test.duration, test.expected, result)
		}
	}
}
