package booking

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uberswe/zhsbooker/pkg/domain"
)

// Runner books the configured courses one after another.
type Runner struct {
	Sequencer *Sequencer
	// RunID tags every log line of this process.
	RunID string
	// Idle keeps Run blocked after the batch until ctx is done.
	Idle bool
	// KeepAwake, when set, runs alongside the idle wait.
	KeepAwake func(context.Context)
	// Report, when set, is called with each result as soon as it is known.
	Report func(domain.Result)
}

// Run attempts every course in order. A failed course never stops the
// batch; only a cancelled ctx does, leaving the remaining courses out of
// the results.
func (r *Runner) Run(ctx context.Context, courses domain.Courses) []domain.Result {
	log.Info().Int("courses", len(courses)).Str("run_id", r.RunID).Msg("Starting booking run")

	results := make([]domain.Result, 0, len(courses))
	for i, course := range courses {
		if ctx.Err() != nil {
			log.Warn().
				Int("skipped", len(courses)-i).
				Msg("Run interrupted, remaining courses not attempted")
			break
		}

		logger := log.With().Str("run_id", r.RunID).Str("course", course.Name).Logger()
		courseCtx := logger.WithContext(ctx)

		logger.Info().Str("detail", course.Criteria.Detail).Msg("Starting course")
		result := r.Sequencer.Run(courseCtx, course)
		logResult(logger, result)

		results = append(results, result)
		if r.Report != nil {
			r.Report(result)
		}
	}

	summarize(results)

	if r.Idle {
		r.idle(ctx)
	}
	return results
}

func (r *Runner) idle(ctx context.Context) {
	log.Info().Msg("Batch done, keeping the session open until interrupted")
	if r.KeepAwake != nil {
		go r.KeepAwake(ctx)
	}
	<-ctx.Done()
}

// logResult writes one line per outcome: info for success, warn for a
// terminal failure of the workflow, error for anything unexpected.
func logResult(logger zerolog.Logger, res domain.Result) {
	level := zerolog.WarnLevel
	switch {
	case res.Success():
		level = zerolog.InfoLevel
	case res.Outcome == domain.OutcomeFailed && !errors.Is(res.Error, context.Canceled):
		level = zerolog.ErrorLevel
	}

	ev := logger.WithLevel(level).
		Str("outcome", string(res.Outcome)).
		Str("reached", res.Reached)
	if res.Slot != nil {
		ev = ev.Str("slot", res.Slot.Detail)
	}
	ev.Err(res.Error).Msg("Course finished")
}

func summarize(results []domain.Result) {
	booked, failed := 0, 0
	for _, res := range results {
		if res.Success() {
			booked++
		} else {
			failed++
		}
	}
	log.Info().
		Int("total", len(results)).
		Int("booked", booked).
		Int("failed", failed).
		Msg("Booking summary")
}
