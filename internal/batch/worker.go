package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/report"
	"github.com/andresuchdata/compras/backend-go/internal/service"
)

// Analyzer builds the report bundle of one job.
type Analyzer interface {
	Report(ctx context.Context, in service.Inputs, p analysis.Params, customers []string) (report.Bundle, error)
}

// Sink stores a finished bundle under name and returns where it went.
type Sink interface {
	Publish(ctx context.Context, name string, bundle report.Bundle) (string, error)
}

// DirSink writes XLSX workbooks into a local directory.
type DirSink struct {
	Dir string
}

func (d DirSink) Publish(ctx context.Context, name string, bundle report.Bundle) (string, error) {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(d.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := report.WriteXLSX(f, bundle.Sheets()...); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// Worker runs jobs on a fixed pool of goroutines.
type Worker struct {
	analyzer Analyzer
	sink     Sink
	config   Config
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewWorker creates a new batch worker
func NewWorker(analyzer Analyzer, sink Sink, config Config) *Worker {
	return &Worker{
		analyzer: analyzer,
		sink:     sink,
		config:   config,
		sleep:    sleepContext,
	}
}

// Run processes every job and returns one Result per job in input order.
// A failing job does not stop the others.
func (w *Worker) Run(ctx context.Context, jobs []Job, p analysis.Params) ([]Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	results := make([]Result, len(jobs))
	for i, job := range jobs {
		results[i] = Result{Job: job.Name, Status: StatusQueued}
	}

	jobChan := make(chan int, len(jobs))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = w.process(ctx, jobs[idx], p)
				if results[idx].Status == StatusFailed {
					log.Error().Int("worker", workerID).Str("job", jobs[idx].Name).
						Str("error", results[idx].Error).Msg("batch: job failed")
				}
			}
		}(i)
	}

	// Enqueue jobs
	var enqueueErr error
	for i := range jobs {
		if ctx.Err() != nil {
			enqueueErr = ctx.Err()
			break
		}
		jobChan <- i
	}
	close(jobChan)

	// Wait for all workers
	wg.Wait()

	if enqueueErr != nil {
		return results, enqueueErr
	}
	return results, nil
}

// process runs one job, retrying failures that are not caused by the data.
func (w *Worker) process(ctx context.Context, job Job, p analysis.Params) Result {
	start := time.Now()
	res := Result{Job: job.Name, Status: StatusProcessing}
	jobLog := zerolog.Ctx(ctx).With().Str("job", job.Name).Logger()
	ctx = jobLog.WithContext(ctx)

	attempts := w.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for res.Attempts < attempts {
		res.Attempts++
		err = w.attempt(ctx, job, p, &res)
		if err == nil || !retryable(err) || res.Attempts == attempts {
			break
		}
		jobLog.Warn().Err(err).
			Int("attempt", res.Attempts).Int("max", attempts).Msg("batch: retrying job")
		if serr := w.sleep(ctx, w.config.RetryBackoff); serr != nil {
			err = serr
			break
		}
	}

	res.Duration = time.Since(start)
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	res.Status = StatusCompleted
	jobLog.Info().Int("products", res.Products).
		Str("output", res.Output).Dur("duration", res.Duration).Msg("batch: job completed")
	return res
}

func (w *Worker) attempt(ctx context.Context, job Job, p analysis.Params, res *Result) error {
	in, err := service.LoadInputs(ctx, job.Sales, job.Inventory)
	if err != nil {
		return err
	}

	bundle, err := w.analyzer.Report(ctx, in, p, job.Customers)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	res.Products = len(bundle.Products.Rows)
	res.Quality = bundle.Products.Quality

	if w.sink == nil {
		return nil
	}
	out, err := w.sink.Publish(ctx, job.Name+".xlsx", bundle)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	res.Output = out
	return nil
}

// retryable is false for input and parameter problems, which repeat on
// every attempt.
func retryable(err error) bool {
	var dataErr *analysis.DataFormatError
	var cfgErr *analysis.ConfigurationError
	switch {
	case errors.As(err, &dataErr), errors.As(err, &cfgErr):
		return false
	case errors.Is(err, service.ErrNoInventory), errors.Is(err, service.ErrNoStorage), errors.Is(err, fs.ErrNotExist):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
