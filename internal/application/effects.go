package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reignacare/service-booking/internal/platform/domain"
)

// ErrorSink receives side-effect failures.
type ErrorSink interface {
	Report(effect string, bookingID uint64, err error)
}

// LogErrorSink writes side-effect failures to the log.
type LogErrorSink struct {
	logger *zap.Logger
}

// NewLogErrorSink creates a new LogErrorSink.
func NewLogErrorSink(logger *zap.Logger) *LogErrorSink {
	return &LogErrorSink{logger: logger}
}

// Report implements ErrorSink.
func (s *LogErrorSink) Report(effect string, bookingID uint64, err error) {
	s.logger.Warn("side effect failed",
		zap.String("effect", effect),
		zap.Uint64("booking_id", bookingID),
		zap.Error(err),
	)
}

// EffectRunner runs post-commit side effects on their own goroutines. Effects
// outlive the request that triggered them and their failures never reach it.
type EffectRunner struct {
	wg      sync.WaitGroup
	timeout time.Duration
	sink    ErrorSink
}

// NewEffectRunner creates an EffectRunner bounding each effect by timeout.
func NewEffectRunner(timeout time.Duration, sink ErrorSink) *EffectRunner {
	return &EffectRunner{timeout: timeout, sink: sink}
}

// Go starts fn detached from ctx's cancellation but keeping its values.
func (r *EffectRunner) Go(ctx context.Context, effect string, bookingID uint64, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.sink.Report(effect, bookingID, domain.NewDependencyError(effect, fmt.Errorf("panic: %v", rec)))
			}
		}()

		ctx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			r.sink.Report(effect, bookingID, domain.NewDependencyError(effect, err))
		}
	}()
}

// Wait blocks until every started effect has finished.
func (r *EffectRunner) Wait() {
	r.wg.Wait()
}
