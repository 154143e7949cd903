package cadence

import (
	"time"

	"github.com/dustin/go-humanize"

	"gbp-autoposter/pkg/autopost"
)

// ProfileStatus is the scheduler's view of one profile.
type ProfileStatus struct {
	ProfileID        string           `json:"profileId"`
	BusinessName     string           `json:"businessName"`
	ScheduledTime    string           `json:"scheduledTime"`
	Slots            []string         `json:"slots"`
	Cadence          autopost.Cadence `json:"cadence"`
	IntervalDays     int              `json:"intervalDays"`
	LastRunDate      string           `json:"lastRunDate,omitempty"`
	LastRunAgo       string           `json:"lastRunAgo,omitempty"`
	NextEligibleDate string           `json:"nextEligibleDate"`
	WillRunToday     bool             `json:"willRunToday"`
	PhotoQueue       int              `json:"photoQueue"`
	Disabled         bool             `json:"disabled"`
}

// Status reports the schedule of every profile at now, which must be in the scheduler's time zone.
func Status(profiles []autopost.Profile, cfg autopost.SchedulerConfig, lastRun autopost.LastRunMap, photoQueue map[string]int, now time.Time) []ProfileStatus {
	today := autopost.DateString(now)
	clock := Clock(now)
	out := make([]ProfileStatus, 0, len(profiles))

	for _, p := range profiles {
		plan := Resolve(cfg, p.ProfileID)
		last := lastRun[p.ProfileID]
		st := ProfileStatus{
			ProfileID:        p.ProfileID,
			BusinessName:     p.BusinessName,
			ScheduledTime:    plan.Time,
			Slots:            plan.Slots,
			Cadence:          plan.Cadence,
			IntervalDays:     plan.IntervalDays,
			LastRunDate:      last.Date,
			NextEligibleDate: today,
			PhotoQueue:       photoQueue[p.ProfileID],
			Disabled:         p.Disabled,
		}

		if lastDay, err := time.ParseInLocation(time.DateOnly, last.Date, now.Location()); err == nil {
			st.LastRunAgo = humanize.RelTime(lastDay, now, "ago", "from now")
			if last.Date != today {
				next := lastDay.AddDate(0, 0, plan.MinGapDays())
				if next.After(now) {
					st.NextEligibleDate = autopost.DateString(next)
				}
			}
		}

		if cfg.Enabled && !p.Disabled && st.NextEligibleDate == today {
			for _, s := range plan.Slots {
				done := last.Date == today && last.Times[s]
				if s >= clock && !done {
					st.WillRunToday = true
					break
				}
			}
		}
		out = append(out, st)
	}
	return out
}
