package resync

import (
	"fmt"
	"strings"
	"time"

	cron "github.com/netresearch/go-cron"
)

var _parser = cron.MustNewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Schedule computes sweep times from a 5-field cron expression.
type Schedule struct {
	schedule cron.Schedule
}

// ParseSchedule parses a cron expression. If tz is non-empty and the spec
// has no CRON_TZ=/TZ= prefix, it prepends CRON_TZ=<tz>; otherwise the
// schedule runs in UTC.
func ParseSchedule(spec, tz string) (*Schedule, error) {
	schedule, err := _parser.Parse(buildSpec(spec, tz))
	if err != nil {
		return nil, fmt.Errorf("parse resync schedule %q: %w", spec, err)
	}

	return &Schedule{schedule: schedule}, nil
}

// NextAfter returns the next sweep time strictly after `after`.
func (s *Schedule) NextAfter(after time.Time) time.Time {
	return s.schedule.Next(after)
}

func buildSpec(spec, tz string) string {
	hasTZPrefix := strings.HasPrefix(spec, "CRON_TZ=") ||
		strings.HasPrefix(spec, "TZ=")

	if tz != "" && !hasTZPrefix {
		return "CRON_TZ=" + tz + " " + spec
	}

	if !hasTZPrefix {
		return "CRON_TZ=UTC " + spec
	}

	return spec
}
