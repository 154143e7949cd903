// Package cadence decides when recurring posts fire for each profile.
package cadence

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"gbp-autoposter/pkg/autopost"
)

const minutesPerDay = 24 * 60

// WeeklyIntervalDays is the minimum gap between WEEKLY1 runs.
const WeeklyIntervalDays = 7

var slotOffsets = map[autopost.Cadence][]int{
	autopost.CadenceDaily1:  {0},
	autopost.CadenceDaily2:  {0, 360},
	autopost.CadenceDaily3:  {0, 240, 480},
	autopost.CadenceWeekly1: {0},
}

// ComputeSlots returns the sorted HH:MM slots of a cadence starting at base.
// An invalid base falls back to the default post time; an unknown cadence has one slot.
func ComputeSlots(base string, c autopost.Cadence) []string {
	if !autopost.ValidClock(base) {
		base = autopost.DefaultPostTime
	}
	h, _ := strconv.Atoi(base[:2])
	m, _ := strconv.Atoi(base[3:])
	start := h*60 + m

	offsets, ok := slotOffsets[c]
	if !ok {
		offsets = []int{0}
	}
	slots := make([]string, 0, len(offsets))
	for _, off := range offsets {
		t := (start + off) % minutesPerDay
		slots = append(slots, fmt.Sprintf("%02d:%02d", t/60, t%60))
	}
	slices.Sort(slots)
	return slots
}

// Plan is the effective schedule of one profile.
type Plan struct {
	Time         string           `json:"time"`
	Cadence      autopost.Cadence `json:"cadence"`
	IntervalDays int              `json:"intervalDays"`
	Slots        []string         `json:"slots"`
}

// MinGapDays is the number of days required between runs on different dates.
func (p Plan) MinGapDays() int {
	if p.Cadence == autopost.CadenceWeekly1 {
		return max(p.IntervalDays, WeeklyIntervalDays)
	}
	return p.IntervalDays
}

// Resolve returns a profile's plan: per-profile overrides, then config defaults.
func Resolve(cfg autopost.SchedulerConfig, profileID string) Plan {
	p := Plan{
		Time:         cfg.DefaultTime,
		Cadence:      cfg.DefaultCadence,
		IntervalDays: cfg.DefaultIntervalDays,
	}
	if t, ok := cfg.PerProfileTimes[profileID]; ok && autopost.ValidClock(t) {
		p.Time = t
	}
	if c, ok := cfg.PerProfileCadence[profileID]; ok && c.Valid() {
		p.Cadence = c
	}
	if d, ok := cfg.PerProfileIntervalDays[profileID]; ok && d >= 1 {
		p.IntervalDays = d
	}
	if !autopost.ValidClock(p.Time) {
		p.Time = autopost.DefaultPostTime
	}
	if !p.Cadence.Valid() {
		p.Cadence = autopost.CadenceDaily1
	}
	if p.IntervalDays < 1 {
		p.IntervalDays = 1
	}
	p.Slots = ComputeSlots(p.Time, p.Cadence)
	return p
}

// Clock returns the zero padded wall clock minute of t.
func Clock(t time.Time) string {
	return t.Format("15:04")
}

// Due reports whether the profile should post at now, and the slot it would fill.
// now must already be in the scheduler's time zone.
func Due(prof *autopost.Profile, cfg autopost.SchedulerConfig, now time.Time, lastRun autopost.LastRunMap) (string, bool) {
	if prof.Disabled {
		return "", false
	}
	plan := Resolve(cfg, prof.ProfileID)
	slot := Clock(now)
	if !slices.Contains(plan.Slots, slot) {
		return "", false
	}

	today := autopost.DateString(now)
	last := lastRun[prof.ProfileID]
	if last.Date == today {
		if last.Times[slot] {
			return "", false
		}
		return slot, true
	}
	if gap := plan.MinGapDays(); gap > 1 && last.Date != "" {
		if days, ok := daysBetween(last.Date, today); ok && days < gap {
			return "", false
		}
	}
	return slot, true
}

// MarkAttempted records that slot fired on date. A new date replaces the previous record.
func MarkAttempted(lastRun autopost.LastRunMap, profileID, date, slot string) autopost.LastRunMap {
	if lastRun == nil {
		lastRun = autopost.LastRunMap{}
	}
	entry := lastRun[profileID]
	if entry.Date != date {
		entry = autopost.LastRun{Date: date}
	}
	if entry.Times == nil {
		entry.Times = map[string]bool{}
	}
	entry.Times[slot] = true
	lastRun[profileID] = entry
	return lastRun
}

func daysBetween(from, to string) (int, bool) {
	a, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return 0, false
	}
	b, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return 0, false
	}
	return int(b.Sub(a).Hours() / 24), true
}
