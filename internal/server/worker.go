package server

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/securemsg/internal/benchmark"
	"github.com/user/securemsg/internal/observability/logger"
)

const (
	JobQueued     = "queued"
	JobRunning    = "running"
	JobCompleted  = "completed"
	JobFailed     = "failed"
	JobTerminated = "terminated"
)

var (
	ErrPoolStopped = errors.New("worker pool is shutting down")
	ErrQueueFull   = errors.New("job queue is full")
)

// BenchmarkJob is a benchmark run submitted over the API.
type BenchmarkJob struct {
	ID          string                        `json:"id"`
	Config      benchmark.Config              `json:"config"`
	Status      string                        `json:"status"`
	StartedAt   time.Time                     `json:"started_at"`
	UpdatedAt   time.Time                     `json:"updated_at"`
	CompletedAt *time.Time                    `json:"completed_at,omitempty"`
	Results     []benchmark.Result            `json:"results,omitempty"`
	Error       string                        `json:"error,omitempty"`
	Progress    chan benchmark.ProgressUpdate `json:"-"`
}

type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*BenchmarkJob
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*BenchmarkJob)}
}

func (js *JobStore) Add(job *BenchmarkJob) {
	js.mu.Lock()
	js.jobs[job.ID] = job
	js.mu.Unlock()
}

func (js *JobStore) Remove(jobID string) {
	js.mu.Lock()
	delete(js.jobs, jobID)
	js.mu.Unlock()
}

// Get returns a copy of the job so callers can encode it without holding the lock.
func (js *JobStore) Get(jobID string) (BenchmarkJob, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	job, ok := js.jobs[jobID]
	if !ok {
		return BenchmarkJob{}, false
	}
	return *job, true
}

// List returns copies of all jobs, oldest first.
func (js *JobStore) List() []BenchmarkJob {
	js.mu.RLock()
	out := make([]BenchmarkJob, 0, len(js.jobs))
	for _, job := range js.jobs {
		out = append(out, *job)
	}
	js.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Begin moves a queued job to running. It returns false if the job is gone or was terminated.
func (js *JobStore) Begin(jobID string) bool {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[jobID]
	if !exists || job.Status != JobQueued {
		return false
	}
	job.Status = JobRunning
	job.UpdatedAt = time.Now()
	return true
}

// Terminate marks a queued or running job as terminated. It reports whether the job exists and
// whether it was still unfinished.
func (js *JobStore) Terminate(jobID string) (found, terminated bool) {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return false, false
	}
	if job.Status != JobQueued && job.Status != JobRunning {
		return true, false
	}
	job.Status = JobTerminated
	job.UpdatedAt = time.Now()
	return true, true
}

// CompleteJob records the outcome. A terminated job keeps its status.
func (js *JobStore) CompleteJob(jobID string, results []benchmark.Result, err error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return
	}
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.UpdatedAt = completedAt
	job.Results = results

	switch {
	case job.Status == JobTerminated:
	case err != nil:
		job.Status = JobFailed
		job.Error = err.Error()
	default:
		job.Status = JobCompleted
	}
}

// WorkerPool runs queued benchmark jobs on a fixed number of goroutines.
type WorkerPool struct {
	workers    int
	jobQueue   chan *BenchmarkJob
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	jobStore   *JobStore
	activeJobs map[string]context.CancelFunc
	mu         sync.Mutex
	stopOnce   sync.Once
	log        *zap.Logger
}

func NewWorkerPool(numWorkers int, jobStore *JobStore) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers:    numWorkers,
		jobQueue:   make(chan *BenchmarkJob, numWorkers*2),
		ctx:        ctx,
		cancel:     cancel,
		jobStore:   jobStore,
		activeJobs: make(map[string]context.CancelFunc),
		log:        logger.With(logger.Component("worker-pool")),
	}
}

func (wp *WorkerPool) Start() {
	wp.log.Info("starting worker pool", logger.Workers(wp.workers))
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop cancels running jobs and waits for the workers to exit.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.cancel()
		wp.wg.Wait()
		wp.log.Info("worker pool stopped")
	})
}

func (wp *WorkerPool) Submit(job *BenchmarkJob) error {
	if wp.ctx.Err() != nil {
		return ErrPoolStopped
	}
	select {
	case wp.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case job := <-wp.jobQueue:
			wp.log.Debug("processing job", zap.Int("worker", id), zap.String("job_id", job.ID))
			wp.processJob(job)
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) TerminateJob(jobID string) {
	wp.mu.Lock()
	if cancel, exists := wp.activeJobs[jobID]; exists {
		cancel()
		delete(wp.activeJobs, jobID)
	}
	wp.mu.Unlock()
}

func (wp *WorkerPool) processJob(job *BenchmarkJob) {
	defer close(job.Progress)

	jobCtx, jobCancel := context.WithCancel(wp.ctx)
	wp.mu.Lock()
	wp.activeJobs[job.ID] = jobCancel
	wp.mu.Unlock()

	defer func() {
		wp.mu.Lock()
		delete(wp.activeJobs, job.ID)
		wp.mu.Unlock()
		jobCancel()
	}()

	if !wp.jobStore.Begin(job.ID) {
		wp.jobStore.CompleteJob(job.ID, nil, errors.New("job terminated by user"))
		return
	}

	runner := benchmark.NewRunner(job.Config)
	runner.SetProgressFunc(func(update benchmark.ProgressUpdate) {
		select {
		case job.Progress <- update:
		default:
		}
	})

	results, err := runner.RunContext(jobCtx)
	wp.jobStore.CompleteJob(job.ID, results, err)
	if err != nil {
		wp.log.Warn("job failed", zap.String("job_id", job.ID), logger.Err(err))
		return
	}
	wp.log.Info("job completed", zap.String("job_id", job.ID), zap.Int("results", len(results)))
}
