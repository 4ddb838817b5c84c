package fleetdf

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// MinuteOfDay is minutes since local midnight, 0 - 1440
type MinuteOfDay int

const endOfDay MinuteOfDay = 24 * 60

// ParseMinuteOfDay converts a "HH:MM" clock string. "24:00" is accepted
// as the exclusive end of day.
func ParseMinuteOfDay(value string) (MinuteOfDay, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", value)
	}

	hours, hoursErr := strconv.Atoi(parts[0])
	minutes, minutesErr := strconv.Atoi(parts[1])
	if hoursErr != nil || minutesErr != nil {
		return 0, fmt.Errorf("invalid clock time %q", value)
	}

	minuteOfDay := MinuteOfDay(hours*60 + minutes)
	if minuteOfDay < 0 || minuteOfDay > endOfDay || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("clock time %q out of range", value)
	}

	return minuteOfDay, nil
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// WeeklyWindow is one permitted operating interval. End at or before
// Start means the window wraps past midnight - the wrapped tail belongs
// to the day the window started on, so a Friday 18:00-04:00 window still
// permits Saturday 02:00.
type WeeklyWindow struct {
	Days  []time.Weekday `groups:"basic" bson:"days"`
	Start MinuteOfDay    `groups:"basic" bson:"start"`
	End   MinuteOfDay    `groups:"basic" bson:"end"`
}

func (w *WeeklyWindow) Wraps() bool {
	return w.End <= w.Start
}

func (w *WeeklyWindow) Contains(timestamp time.Time) bool {
	minute := MinuteOfDay(timestamp.Hour()*60 + timestamp.Minute())
	day := timestamp.Weekday()

	if !w.Wraps() {
		return slices.Contains(w.Days, day) && minute >= w.Start && minute < w.End
	}

	// Head of the wrap on the window's own day
	if slices.Contains(w.Days, day) && minute >= w.Start {
		return true
	}

	// Tail of the wrap in the early hours of the following day
	previousDay := time.Weekday((int(day) + 6) % 7)
	return slices.Contains(w.Days, previousDay) && minute < w.End
}

func (w *WeeklyWindow) Validate() error {
	if len(w.Days) == 0 {
		return fmt.Errorf("weekly window has no days")
	}

	if w.Start < 0 || w.Start >= endOfDay || w.End < 0 || w.End > endOfDay {
		return fmt.Errorf("weekly window %s-%s out of range", w.Start, w.End)
	}

	return nil
}

// TemporalRule is the set of weekly intervals during which operation is
// permitted. A rule with no windows permits everything (vacuous truth).
type TemporalRule struct {
	PermittedWindows []WeeklyWindow `groups:"basic" bson:"permittedwindows"`
}

func (r *TemporalRule) IsPermitted(timestamp time.Time) bool {
	if len(r.PermittedWindows) == 0 {
		return true
	}

	for _, window := range r.PermittedWindows {
		if window.Contains(timestamp) {
			return true
		}
	}

	return false
}
