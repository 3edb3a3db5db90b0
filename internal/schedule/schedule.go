// Package schedule holds the weekly working-hours template for a business
// or an individual employee.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeRange is a contiguous interval within a day, bounds in "HH:MM".
type TimeRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// DaySchedule is the template for one weekday: disabled, or an ordered
// list of working ranges. Gaps between consecutive ranges are breaks.
type DaySchedule struct {
	Enabled bool        `json:"enabled" yaml:"enabled"`
	Ranges  []TimeRange `json:"ranges" yaml:"ranges"`
}

// WeeklySchedule maps weekdays to their day templates. A missing entry
// is a disabled day.
type WeeklySchedule map[time.Weekday]DaySchedule

// Day returns the template for the given weekday.
func (ws WeeklySchedule) Day(w time.Weekday) DaySchedule {
	return ws[w]
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return hour*60 + minute, nil
}

// OnDate places the "HH:MM" bounds onto a calendar date. The range must
// have been validated beforehand.
func (r TimeRange) OnDate(date time.Time) (time.Time, time.Time) {
	return clockOnDate(date, r.Start), clockOnDate(date, r.End)
}

func clockOnDate(date time.Time, clock string) time.Time {
	mins, err := ParseClock(clock)
	if err != nil {
		return time.Time{}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), mins/60, mins%60, 0, 0, date.Location())
}

// Validate checks a single range: well-formed bounds with start < end.
func (r TimeRange) Validate() error {
	start, err := ParseClock(r.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(r.End)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("range start %s must be before end %s", r.Start, r.End)
	}
	return nil
}

// Validate checks the whole template. It runs at the settings-update
// boundary; consumers downstream assume a valid schedule.
func (ws WeeklySchedule) Validate() error {
	for day, ds := range ws {
		if !ds.Enabled {
			continue
		}
		if len(ds.Ranges) == 0 {
			return fmt.Errorf("%s: enabled day needs at least one range", day)
		}
		prevEnd := -1
		for i, r := range ds.Ranges {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("%s range %d: %w", day, i, err)
			}
			start, _ := ParseClock(r.Start)
			end, _ := ParseClock(r.End)
			if start < prevEnd {
				return fmt.Errorf("%s range %d: ranges must be ordered and non-overlapping", day, i)
			}
			prevEnd = end
		}
	}
	return nil
}

// Normalize returns a copy with each day's ranges sorted by start time.
func (ws WeeklySchedule) Normalize() WeeklySchedule {
	out := make(WeeklySchedule, len(ws))
	for day, ds := range ws {
		ranges := append([]TimeRange(nil), ds.Ranges...)
		sort.Slice(ranges, func(i, j int) bool {
			a, _ := ParseClock(ranges[i].Start)
			b, _ := ParseClock(ranges[j].Start)
			return a < b
		})
		out[day] = DaySchedule{Enabled: ds.Enabled, Ranges: ranges}
	}
	return out
}

// IsEmpty reports whether no day is enabled.
func (ws WeeklySchedule) IsEmpty() bool {
	for _, ds := range ws {
		if ds.Enabled && len(ds.Ranges) > 0 {
			return false
		}
	}
	return true
}
