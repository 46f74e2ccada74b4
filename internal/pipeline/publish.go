package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
)

const (
	publishBatchSize = 50
	initialBackoff   = 200 * time.Millisecond
	maxBackoff       = 5 * time.Second
)

type requestIDKey struct{}

// WithRequestID attaches a request ID that becomes the ID of the analysis
// result produced while serving ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID attached to ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// enqueue hands a result to the publish loop without blocking. A full queue
// drops the result.
func (a *Analyzer) enqueue(ctx context.Context, kind, crop string, loc domain.Location, payload any) {
	if a.queue == nil {
		return
	}
	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	res := domain.AnalysisResult{
		ID:          id,
		Kind:        kind,
		Crop:        crop,
		Location:    loc,
		GeneratedAt: a.clock.Now().UTC(),
		Payload:     payload,
	}
	select {
	case a.queue <- res:
	default:
		a.metrics.PublishQueueDropped.Inc()
		a.logger.Warn("publish queue full, dropping result", "kind", kind, "id", id)
	}
}

// Run publishes queued results until the context is cancelled. Without a
// publisher it only waits for cancellation.
func (a *Analyzer) Run(ctx context.Context) error {
	if a.publisher == nil {
		<-ctx.Done()
		return nil
	}

	a.logger.Info("result publisher started", "queue_size", cap(a.queue))
	a.metrics.PublisherRunning.Set(1)
	defer a.metrics.PublisherRunning.Set(0)

	backoff := initialBackoff
	for {
		var batch []domain.AnalysisResult
		select {
		case <-ctx.Done():
			a.logger.Info("result publisher stopping", "reason", ctx.Err(), "pending", len(a.queue))
			return nil
		case res := <-a.queue:
			batch = a.drain(res)
		}

		if !a.publish(ctx, batch, &backoff) {
			return nil
		}
	}
}

// drain collects up to publishBatchSize queued results starting with first.
func (a *Analyzer) drain(first domain.AnalysisResult) []domain.AnalysisResult {
	batch := []domain.AnalysisResult{first}
	for len(batch) < publishBatchSize {
		select {
		case res := <-a.queue:
			batch = append(batch, res)
		default:
			return batch
		}
	}
	return batch
}

// publish retries a batch with exponential backoff until it is accepted.
// Returns false if the loop should stop.
func (a *Analyzer) publish(ctx context.Context, batch []domain.AnalysisResult, backoff *time.Duration) bool {
	for {
		err := a.publisher.Publish(ctx, batch)
		if err == nil {
			a.metrics.ResultsPublished.Add(float64(len(batch)))
			*backoff = initialBackoff
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		a.metrics.PublishErrors.Inc()
		a.logger.Error("publish results failed", "error", err, "batch_size", len(batch), "retry_in", *backoff)
		if !retry.SleepWithContext(ctx, *backoff) {
			return false
		}
		*backoff = retry.NextBackoff(*backoff, maxBackoff)
	}
}
