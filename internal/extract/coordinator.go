package extract

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// Options configures a Coordinator.
type Options struct {
	Workers  int          // 0 = runtime.NumCPU()
	Progress ProgressFunc // optional, called from the collecting goroutine
}

// Coordinator fans a batch out over a fixed worker pool and collects the
// outcomes on the calling goroutine.
type Coordinator struct {
	processor *Processor
	workers   int
	progress  ProgressFunc
}

// NewCoordinator creates a coordinator for processor.
func NewCoordinator(processor *Processor, opts Options) (*Coordinator, error) {
	if processor == nil {
		return nil, errors.New("processor is nil")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Coordinator{processor: processor, workers: workers, progress: opts.Progress}, nil
}

// Workers returns the pool size.
func (c *Coordinator) Workers() int { return c.workers }

// Processor returns the per-image processor.
func (c *Coordinator) Processor() *Processor { return c.processor }

// WithProgress returns a copy of c that reports progress to fn.
func (c *Coordinator) WithProgress(fn ProgressFunc) *Coordinator {
	cp := *c
	cp.progress = fn
	return &cp
}

type imageJob struct {
	input ImageInput
}

// ExtractBatch processes every input and blocks until all have resolved.
// Every input id appears exactly once in the result; lists are in
// completion order. ctx only carries logging values, a batch is never
// cancelled.
func (c *Coordinator) ExtractBatch(ctx context.Context, inputs []ImageInput) BatchResult {
	result := BatchResult{
		Success: make([]SuccessRecord, 0, len(inputs)),
		Fail:    make([]string, 0),
	}
	if len(inputs) == 0 {
		return result
	}

	start := time.Now()
	logger := Logger(ctx)
	workers := min(c.workers, len(inputs))
	logger.Debug("Starting batch", "images", len(inputs), "workers", workers)

	jobs := make(chan imageJob, len(inputs))
	results := make(chan Outcome, len(inputs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go c.worker(ctx, jobs, results, &wg)
	}

	for _, in := range inputs {
		jobs <- imageJob{input: in}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for out := range results {
		if out.OK() {
			result.Success = append(result.Success, *out.Record)
		} else {
			result.Fail = append(result.Fail, out.ID)
		}
		done++
		if c.progress != nil {
			c.progress(done, len(inputs))
		}
	}

	batchSize.Observe(float64(len(inputs)))
	batchDuration.Observe(time.Since(start).Seconds())
	logger.Info("Batch complete",
		"images", len(inputs),
		"success", len(result.Success),
		"fail", len(result.Fail),
		"workers", workers,
		"duration_ms", time.Since(start).Milliseconds())
	return result
}

// worker computes each outcome privately and only then hands it to the
// collector.
func (c *Coordinator) worker(ctx context.Context, jobs <-chan imageJob, results chan<- Outcome, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		workersBusy.Inc()
		out := c.processor.ProcessImage(ctx, job.input)
		workersBusy.Dec()
		results <- out
	}
}
