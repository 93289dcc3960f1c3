// Package worker drains queued playback ticks from JetStream into the
// recorder.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/events"
	"github.com/example/questor/services/progress/internal/idempotency"
	"github.com/example/questor/services/progress/internal/recorder"
)

const durableName = "progress_playback"

type tickRecorder interface {
	RecordTick(ctx context.Context, learner certify.Learner, courseID, lessonKey string, currentSeconds, durationSeconds float64) (recorder.Outcome, error)
}

type Options struct {
	BatchSize     int
	BatchInterval time.Duration
}

// PlaybackConsumer applies queued ticks. Messages are acked once handled,
// including when the write failed, because progress writes are not retried.
type PlaybackConsumer struct {
	rec   tickRecorder
	dedup idempotency.Store
	log   *zap.Logger
	opts  Options
}

func NewPlaybackConsumer(rec tickRecorder, dedup idempotency.Store, log *zap.Logger, opts Options) *PlaybackConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = 2 * time.Second
	}
	return &PlaybackConsumer{rec: rec, dedup: dedup, log: log, opts: opts}
}

// Start pull-subscribes to the playback subject and processes batches until
// ctx is done.
func (c *PlaybackConsumer) Start(ctx context.Context, js nats.JetStreamContext) error {
	sub, err := js.PullSubscribe(events.SubjectPlayback, durableName)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(c.opts.BatchSize, nats.MaxWait(c.opts.BatchInterval))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				c.log.Warn("playback fetch failed", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			for _, m := range msgs {
				if err := c.Handle(ctx, m.Data); err != nil {
					c.log.Warn("playback event dropped", zap.Error(err))
				}
				if err := m.Ack(); err != nil {
					c.log.Warn("playback ack failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Handle applies one encoded event. Duplicate deliveries are skipped.
func (c *PlaybackConsumer) Handle(ctx context.Context, data []byte) error {
	var ev events.Playback
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	if ev.EventID == "" || ev.UserID == "" || ev.CourseID == "" || ev.LessonKey == "" {
		return errors.New("playback event missing required fields")
	}

	if c.dedup != nil {
		dup, err := c.dedup.Check(ctx, ev.EventID)
		if err != nil {
			c.log.Warn("dedup check failed; applying anyway", zap.String("event_id", ev.EventID), zap.Error(err))
		} else if dup {
			c.log.Debug("duplicate playback event", zap.String("event_id", ev.EventID))
			return nil
		}
	}

	learner := certify.Learner{UserID: ev.UserID, Name: ev.UserName}
	_, err := c.rec.RecordTick(ctx, learner, ev.CourseID, ev.LessonKey, ev.CurrentTime, ev.Duration)
	return err
}
