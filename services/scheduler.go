// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"speech-practice/observe"

	"github.com/go-co-op/gocron/v2"
)

// StartUploadSweeper runs a background job that drops expired upload
// sessions from the registry. The caller owns the returned scheduler and
// must Shutdown it.
func StartUploadSweeper(registry *UploadRegistry, every time.Duration, metrics *observe.Metrics) (gocron.Scheduler, error) {
	if every <= 0 {
		every = time.Hour
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			removed := registry.Purge()
			if removed == 0 {
				return
			}
			metrics.UploadSessionsPurged.Add(context.Background(), int64(removed))
			log.Printf("[Scheduler] Purged %d expired upload sessions", removed)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
