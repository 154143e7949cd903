package autopost

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Cadence is a named posting frequency pattern.
type Cadence string

// Supported cadences.
const (
	CadenceDaily1  Cadence = "DAILY1"
	CadenceDaily2  Cadence = "DAILY2"
	CadenceDaily3  Cadence = "DAILY3"
	CadenceWeekly1 Cadence = "WEEKLY1"
)

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceDaily1, CadenceDaily2, CadenceDaily3, CadenceWeekly1:
		return true
	}
	return false
}

const (
	// DefaultPostTime is used when no valid time is configured.
	DefaultPostTime = "10:00"
	// MaxIntervalDays bounds the configurable days between runs.
	MaxIntervalDays = 14
)

var clockRegex = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ValidClock reports whether s is a zero padded HH:MM wall clock time.
func ValidClock(s string) bool {
	if !clockRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// SchedulerConfig is the singleton recurring-post configuration.
type SchedulerConfig struct {
	Enabled                bool               `json:"enabled"`
	DefaultTime            string             `json:"defaultTime"`
	TickSeconds            int                `json:"tickSeconds"`
	DefaultIntervalDays    int                `json:"defaultIntervalDays"`
	DefaultCadence         Cadence            `json:"defaultCadence"`
	PerProfileTimes        map[string]string  `json:"perProfileTimes"`
	PerProfileIntervalDays map[string]int     `json:"perProfileIntervalDays"`
	PerProfileCadence      map[string]Cadence `json:"perProfileCadence"`
}

// DefaultSchedulerConfig returns the configuration used before any is saved.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:                false,
		DefaultTime:            DefaultPostTime,
		TickSeconds:            30,
		DefaultIntervalDays:    1,
		DefaultCadence:         CadenceDaily1,
		PerProfileTimes:        map[string]string{},
		PerProfileIntervalDays: map[string]int{},
		PerProfileCadence:      map[string]Cadence{},
	}
}

// Normalize fills missing fields with defaults.
func (c *SchedulerConfig) Normalize() {
	def := DefaultSchedulerConfig()
	if !ValidClock(c.DefaultTime) {
		c.DefaultTime = def.DefaultTime
	}
	if c.TickSeconds <= 0 {
		c.TickSeconds = def.TickSeconds
	}
	if c.DefaultIntervalDays < 1 || c.DefaultIntervalDays > MaxIntervalDays {
		c.DefaultIntervalDays = def.DefaultIntervalDays
	}
	if !c.DefaultCadence.Valid() {
		c.DefaultCadence = def.DefaultCadence
	}
	if c.PerProfileTimes == nil {
		c.PerProfileTimes = map[string]string{}
	}
	if c.PerProfileIntervalDays == nil {
		c.PerProfileIntervalDays = map[string]int{}
	}
	if c.PerProfileCadence == nil {
		c.PerProfileCadence = map[string]Cadence{}
	}
}

// SchedulerConfigPatch is a partial update. Nil fields are left unchanged.
type SchedulerConfigPatch struct {
	Enabled                *bool              `json:"enabled"`
	DefaultTime            *string            `json:"defaultTime"`
	TickSeconds            *int               `json:"tickSeconds"`
	DefaultIntervalDays    *int               `json:"defaultIntervalDays"`
	DefaultCadence         *Cadence           `json:"defaultCadence"`
	PerProfileTimes        map[string]string  `json:"perProfileTimes"`
	PerProfileIntervalDays map[string]int     `json:"perProfileIntervalDays"`
	PerProfileCadence      map[string]Cadence `json:"perProfileCadence"`
}

// ErrInvalidConfig wraps every scheduler config validation failure.
var ErrInvalidConfig = errors.New("invalid scheduler config")

// Apply validates the patch and merges it into c. Per-profile maps replace wholesale.
func (c *SchedulerConfig) Apply(p SchedulerConfigPatch) error {
	next := *c
	if p.Enabled != nil {
		next.Enabled = *p.Enabled
	}
	if p.DefaultTime != nil {
		if !ValidClock(*p.DefaultTime) {
			return fmt.Errorf("%w: defaultTime %q must be HH:MM", ErrInvalidConfig, *p.DefaultTime)
		}
		next.DefaultTime = *p.DefaultTime
	}
	if p.TickSeconds != nil {
		if *p.TickSeconds <= 0 {
			return fmt.Errorf("%w: tickSeconds must be positive", ErrInvalidConfig)
		}
		next.TickSeconds = *p.TickSeconds
	}
	if p.DefaultIntervalDays != nil {
		if err := validInterval(*p.DefaultIntervalDays); err != nil {
			return err
		}
		next.DefaultIntervalDays = *p.DefaultIntervalDays
	}
	if p.DefaultCadence != nil {
		if !p.DefaultCadence.Valid() {
			return fmt.Errorf("%w: unknown cadence %q", ErrInvalidConfig, *p.DefaultCadence)
		}
		next.DefaultCadence = *p.DefaultCadence
	}
	if p.PerProfileTimes != nil {
		for id, t := range p.PerProfileTimes {
			if !ValidClock(t) {
				return fmt.Errorf("%w: time %q for profile %s must be HH:MM", ErrInvalidConfig, t, id)
			}
		}
		next.PerProfileTimes = p.PerProfileTimes
	}
	if p.PerProfileIntervalDays != nil {
		for _, d := range p.PerProfileIntervalDays {
			if err := validInterval(d); err != nil {
				return err
			}
		}
		next.PerProfileIntervalDays = p.PerProfileIntervalDays
	}
	if p.PerProfileCadence != nil {
		for id, cad := range p.PerProfileCadence {
			if !cad.Valid() {
				return fmt.Errorf("%w: unknown cadence %q for profile %s", ErrInvalidConfig, cad, id)
			}
		}
		next.PerProfileCadence = p.PerProfileCadence
	}
	next.Normalize()
	*c = next
	return nil
}

func validInterval(d int) error {
	if d < 1 || d > MaxIntervalDays {
		return fmt.Errorf("%w: interval %d must be between 1 and %d days", ErrInvalidConfig, d, MaxIntervalDays)
	}
	return nil
}

// LastRun records which slots fired on a given date.
type LastRun struct {
	Date  string          `json:"date"`  // YYYY-MM-DD
	Times map[string]bool `json:"times"` // HH:MM -> attempted
}

// LastRunMap maps profileId to its last run record.
type LastRunMap map[string]LastRun
