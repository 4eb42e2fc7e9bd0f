package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/obrasoft/bc3gest/internal/runner"
)

// Worker runs queued parse jobs through the configured Runner, one at a
// time, under the boundary timeout. A parse that outlives the timeout is
// aborted and the job fails with no partial result.
type Worker struct {
	run     runner.Runner
	timeout time.Duration
	stats   *ParseStats
	log     *slog.Logger
}

func NewWorker(run runner.Runner, timeout time.Duration, stats *ParseStats, log *slog.Logger) *Worker {
	return &Worker{
		run:     run,
		timeout: timeout,
		stats:   stats,
		log:     log,
	}
}

// Process runs one job to completion or failure.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename, "size_bytes", job.SizeBytes)

	job.SetStatus(StatusParsing, "parsing")

	parseCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	tree, warnings, err := w.run.Run(parseCtx, job.FileData())
	elapsed := time.Since(start)
	w.stats.Record(elapsed.Milliseconds(), err == nil)

	if err != nil {
		phase := "parsing"
		if errors.Is(parseCtx.Err(), context.DeadlineExceeded) {
			phase = "timeout"
		}
		log.Error("parse failed", "error", err, "duration_ms", elapsed.Milliseconds())
		job.Fail(err.Error(), phase)
		return
	}

	log.Info("parse complete",
		"duration_ms", elapsed.Milliseconds(),
		"warnings", len(warnings),
	)
	job.Complete(tree, warnings)
}
