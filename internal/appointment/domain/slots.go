package domain

import (
	"fmt"
	"time"

	"github.com/smallbiznis/dentaldesk/internal/config"
)

type Slot struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type SlotAvailability struct {
	Slot
	Available bool `json:"available"`
}

const minutesPerDay = 24 * 60

// GenerateSlots lists the bookable start times from StartHour:00 to
// EndHour:00 inclusive, one every Granularity minutes. An EndHour of 24
// closes the day at midnight, so 24:00 itself is not a slot.
func GenerateSlots(cfg config.SchedulingConfig) []Slot {
	if config.ValidateSchedulingConfig(cfg) != nil {
		return nil
	}

	start := cfg.StartHour * 60
	end := min(cfg.EndHour*60, minutesPerDay-cfg.Granularity)
	slots := make([]Slot, 0, (end-start)/cfg.Granularity+1)
	for minute := start; minute <= end; minute += cfg.Granularity {
		slots = append(slots, Slot{
			Value: fmt.Sprintf("%02d:%02d", minute/60, minute%60),
			Label: slotLabel(minute/60, minute%60),
		})
	}
	return slots
}

func slotLabel(hour, minute int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}

// SlotValue renders t as HH:MM in loc.
func SlotValue(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

// IsSlotAligned reports whether t starts exactly on a generated slot.
func IsSlotAligned(t time.Time, cfg config.SchedulingConfig) bool {
	local := t.In(cfg.Location())
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	value := local.Format("15:04")
	for _, slot := range GenerateSlots(cfg) {
		if slot.Value == value {
			return true
		}
	}
	return false
}

// DayBounds returns the UTC instants bounding the calendar day of date in loc.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}
