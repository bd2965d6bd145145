package main

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/securemsg/internal/benchmark"
	"github.com/user/securemsg/internal/observability/logger"
	"github.com/user/securemsg/internal/output"
	"github.com/user/securemsg/internal/server"
	"github.com/user/securemsg/pkg/sysinfo"
)

var (
	operations   []string
	sizes        []int
	iterations   int
	parallel     int
	workers      int
	outputFormat string
	outputFile   string
	verbose      bool
	showProgress bool
	timeout      int

	serveAddr  string
	jobWorkers int
)

var primegenCmd = &cobra.Command{
	Use:   "primegen <bits> [count]",
	Short: "Generate probable primes and print them with the total time",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bits, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid bit length %q", args[0])
		}
		count := 1
		if len(args) == 2 {
			if count, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid count %q", args[1])
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "BitLength: %d bits\n", bits)
		start := time.Now()
		err = newPrimeGenerator().GenerateN(cmd.Context(), bits, count, func(i int, p *big.Int) error {
			if i > 0 {
				fmt.Fprintln(out)
			}
			_, err := fmt.Fprintf(out, "%d: %s\n", i+1, p)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Time to Generate: %s\n", time.Since(start))
		return nil
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark prime and key pair generation",
	RunE:  runBenchmark,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the key and message server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		store, err := server.NewStore(ctx, server.StoreConfig{
			Kind:       cfg.Server.Store,
			MessageTTL: cfg.Server.MessageTTL,
			RedisAddr:  cfg.Server.Redis.Addr,
			RedisDB:    cfg.Server.Redis.DB,
			Prefix:     cfg.Server.Redis.Prefix,
		})
		if err != nil {
			return err
		}

		srv, err := server.New(ctx, server.Options{
			Addr:       addr,
			Store:      store,
			Primes:     newPrimeGenerator(),
			JobWorkers: jobWorkers,
		})
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to create server: %w", err)
		}
		defer srv.Close()

		logger.L().Info("press Ctrl+C to stop")
		return srv.Start(ctx)
	},
}

func init() {
	f := benchCmd.Flags()
	f.StringSliceVarP(&operations, "operations", "a", []string{benchmark.OpPrime}, "Operations to benchmark (prime, keygen)")
	f.IntSliceVarP(&sizes, "sizes", "k", []int{512, 1024}, "Bit sizes to test")
	f.IntVarP(&iterations, "iterations", "i", 10, "Number of iterations per test")
	f.IntVarP(&parallel, "parallel", "p", 1, "Number of parallel callers")
	f.IntVarP(&workers, "workers", "w", 0, "Prime search goroutines per call (0 = one per CPU)")
	f.StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json, csv)")
	f.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	f.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	f.BoolVar(&showProgress, "progress", true, "Show progress bar")
	f.IntVarP(&timeout, "timeout", "t", 300, "Timeout in seconds per test")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().IntVar(&jobWorkers, "job-workers", 1, "Benchmark jobs run at once")

	rootCmd.AddCommand(primegenCmd, benchCmd, serveCmd)
}

func runBenchmark(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sysInfo, err := sysinfo.Collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect system info: %w", err)
	}

	if verbose {
		fmt.Fprintf(out, "System Information:\n")
		fmt.Fprintf(out, "  OS: %s\n", sysInfo.OS)
		fmt.Fprintf(out, "  Architecture: %s\n", sysInfo.Architecture)
		fmt.Fprintf(out, "  CPU: %s (%d cores)\n", sysInfo.CPUModel, sysInfo.CPUCores)
		fmt.Fprintf(out, "  Memory: %.2f GB\n", float64(sysInfo.TotalMemory)/(1024*1024*1024))
		fmt.Fprintf(out, "  Go Version: %s\n", sysInfo.GoVersion)
		fmt.Fprintln(out)
	}

	formatter, err := output.NewFormatter(outputFormat)
	if err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}

	config := benchmark.Config{
		Operations:   operations,
		Sizes:        sizes,
		Iterations:   iterations,
		Parallel:     parallel,
		Workers:      workers,
		ShowProgress: showProgress,
		Timeout:      timeout,
		Verbose:      verbose,
	}

	runner := benchmark.NewRunner(config)
	results, err := runner.RunContext(ctx)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	writer := os.Stdout
	if outputFile != "" {
		writer, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer writer.Close()
	}

	data := output.Data{
		SystemInfo: sysInfo,
		Results:    results,
		Config:     runner.Config(),
	}
	if err := formatter.Format(writer, data); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}
