// Package slots turns a day's working-hours template into candidate
// booking start times.
package slots

import (
	"sort"
	"time"

	"zapisly/internal/schedule"
)

// Candidate is a possible booking start time. Break marks candidates
// inside a non-primary range; it is display metadata and does not by
// itself make the slot unbookable.
type Candidate struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Break bool      `json:"break"`
}

// TimeClass classifies an arbitrary time of day against a template.
type TimeClass int

const (
	// ClassOutside means outside the day's working ranges altogether.
	ClassOutside TimeClass = iota
	// ClassWorking means inside a primary (first or last) range.
	ClassWorking
	// ClassBreak means inside an interior range or a gap between ranges.
	ClassBreak
)

// Options tunes slot generation.
type Options struct {
	// DefaultSlotMinutes is used when a call passes a non-positive duration.
	DefaultSlotMinutes int

	// EnforceSlotEnd additionally requires a candidate's full duration to
	// fit inside its range. When false only the start time is gated, so the
	// last slot of a range may run past the range end.
	EnforceSlotEnd bool
}

// Generator produces slot candidates for a date. It is a pure function of
// its inputs; callers overlay bookings and policy on top.
type Generator struct {
	opts Options
}

// NewGenerator creates a generator with the given options.
func NewGenerator(opts Options) *Generator {
	if opts.DefaultSlotMinutes <= 0 {
		opts.DefaultSlotMinutes = 30
	}
	return &Generator{opts: opts}
}

// Generate emits the ordered candidate start times for a date. Disabled
// days and days without ranges produce nothing. Within each range the
// cursor starts at the range start and steps by the slot duration while
// it is strictly before the range end.
func (g *Generator) Generate(day schedule.DaySchedule, date time.Time, slotMinutes int) []Candidate {
	if !day.Enabled || len(day.Ranges) == 0 {
		return nil
	}
	if slotMinutes <= 0 {
		slotMinutes = g.opts.DefaultSlotMinutes
	}

	ranges := sortedRanges(day.Ranges)
	step := time.Duration(slotMinutes) * time.Minute

	var out []Candidate
	for i, r := range ranges {
		isBreak := isBreakRange(i, len(ranges))
		start, end := r.OnDate(date)
		for cursor := start; cursor.Before(end); cursor = cursor.Add(step) {
			if g.opts.EnforceSlotEnd && cursor.Add(step).After(end) {
				break
			}
			out = append(out, Candidate{
				Start: cursor,
				End:   cursor.Add(step),
				Break: isBreak,
			})
		}
	}
	return out
}

// Classify reports how a time of day relates to the template: inside a
// primary range, inside a break range or gap, or outside working hours.
func (g *Generator) Classify(day schedule.DaySchedule, t time.Time) TimeClass {
	if !day.Enabled || len(day.Ranges) == 0 {
		return ClassOutside
	}

	ranges := sortedRanges(day.Ranges)
	for i, r := range ranges {
		start, end := r.OnDate(t)
		if !t.Before(start) && t.Before(end) {
			if isBreakRange(i, len(ranges)) {
				return ClassBreak
			}
			return ClassWorking
		}
	}

	// Gaps between the first range's start and the last range's end are
	// breaks; anything earlier or later is outside.
	firstStart, _ := ranges[0].OnDate(t)
	_, lastEnd := ranges[len(ranges)-1].OnDate(t)
	if !t.Before(firstStart) && t.Before(lastEnd) {
		return ClassBreak
	}
	return ClassOutside
}

// isBreakRange applies the range classification rule: first and last
// ranges are working, strictly interior ranges are breaks, and on a
// two-range day the second range counts as the break.
func isBreakRange(i, n int) bool {
	if n == 2 {
		return i == 1
	}
	return i > 0 && i < n-1
}

func sortedRanges(in []schedule.TimeRange) []schedule.TimeRange {
	out := append([]schedule.TimeRange(nil), in...)
	sort.Slice(out, func(i, j int) bool {
		a, _ := schedule.ParseClock(out[i].Start)
		b, _ := schedule.ParseClock(out[j].Start)
		return a < b
	})
	return out
}
