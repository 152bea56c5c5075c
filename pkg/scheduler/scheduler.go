package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextRunForReminder computes the next run timestamp (epoch ms) for a
// recurring reminder's fixed interval.
func nextRunForReminder(intervalMs int64, fromMs int64) (int64, error) {
	if intervalMs <= 0 {
		return 0, fmt.Errorf("scheduler: reminder interval must be positive")
	}
	return fromMs + intervalMs, nil
}

// nextRunForHeartbeat computes the next heartbeat timestamp. When CronExpr is
// set it takes priority over IntervalMinutes and is evaluated against the
// wall clock via robfig/cron's next-occurrence math; otherwise the heartbeat
// behaves like a fixed-interval reminder anchored to fromMs.
func nextRunForHeartbeat(hb HeartbeatConfig, fromMs int64) (int64, error) {
	if hb.CronExpr != "" {
		sched, err := cronParser.Parse(hb.CronExpr)
		if err != nil {
			return 0, fmt.Errorf("scheduler: invalid heartbeat cron expression: %w", err)
		}
		next := sched.Next(time.UnixMilli(fromMs))
		return next.UnixMilli(), nil
	}

	minutes := hb.IntervalMinutes
	if minutes < 1 {
		minutes = 1
	}
	return fromMs + int64(minutes)*60_000, nil
}
