package uptime

import (
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule fires a cycle every five minutes.
const DefaultSchedule = "*/5 * * * *"

// SchedulePresets are the named schedules operators can pick from.
var SchedulePresets = map[string]string{
	"EVERY_1_MIN":  "*/1 * * * *",
	"EVERY_2_MIN":  "*/2 * * * *",
	"EVERY_5_MIN":  "*/5 * * * *",
	"EVERY_10_MIN": "*/10 * * * *",
	"EVERY_15_MIN": "*/15 * * * *",
	"EVERY_30_MIN": "*/30 * * * *",
	"EVERY_HOUR":   "0 * * * *",
}

// IntervalSchedule converts a minute count into a schedule expression.
// Counts that divide an hour evenly stay aligned to the clock; others use
// a fixed delay.
func IntervalSchedule(minutes int) string {
	if minutes > 0 && minutes < 60 && 60%minutes == 0 {
		return fmt.Sprintf("*/%d * * * *", minutes)
	}
	return fmt.Sprintf("@every %dm", minutes)
}

// PresetSchedule resolves a preset name.
func PresetSchedule(name string) (string, error) {
	expr, ok := SchedulePresets[name]
	if !ok {
		names := make([]string, 0, len(SchedulePresets))
		for k := range SchedulePresets {
			names = append(names, k)
		}
		sort.Strings(names)
		return "", fmt.Errorf("invalid preset %q, available presets: %v", name, names)
	}
	return expr, nil
}

// ValidateSchedule reports whether expr parses as a standard schedule.
func ValidateSchedule(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
