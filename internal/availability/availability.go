// Package availability models a business's bookable hours: recurring weekly
// slots (or a compact day-range rule that expands into them), per-date
// overrides and recurring daily breaks. All evaluation is pure; callers pass
// naive local timestamps.
package availability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var dayOrder = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// TimeSlot is a recurring weekly availability window.
type TimeSlot struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Override replaces the weekly pattern for one calendar date. Available=false
// blocks the whole date; Available=true with Start/End substitutes the hours;
// Available=true without hours falls back to the weekly slot.
type Override struct {
	Available bool   `json:"available"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// BreakWindow is subtracted from every day's availability, after overrides.
type BreakWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Availability is a business's full hours configuration. Either Slots or the
// DayFrom/DayTo/TimeFrom/TimeTo rule supplies the weekly pattern; when both
// are absent the business is treated as unrestricted.
type Availability struct {
	Slots []TimeSlot `json:"slots"`

	DayFrom  string `json:"day_from,omitempty"`
	DayTo    string `json:"day_to,omitempty"`
	TimeFrom string `json:"time_from,omitempty"`
	TimeTo   string `json:"time_to,omitempty"`

	Overrides map[string]Override `json:"overrides,omitempty"`
	Breaks    []BreakWindow       `json:"breaks,omitempty"`
}

// Parse decodes and validates an availability configuration. Invalid weekdays,
// times or override date keys are hard errors, never silent defaults.
func Parse(data []byte) (*Availability, error) {
	var a Availability
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("availability: decode: %w", err)
	}

	for _, slot := range a.Slots {
		if _, err := parseWeekday(slot.Day); err != nil {
			return nil, err
		}
		if err := validateTime(slot.Start); err != nil {
			return nil, err
		}
		if err := validateTime(slot.End); err != nil {
			return nil, err
		}
	}

	if a.hasDayRange() {
		if _, err := parseWeekday(a.DayFrom); err != nil {
			return nil, err
		}
		if _, err := parseWeekday(a.DayTo); err != nil {
			return nil, err
		}
		if err := validateTime(a.TimeFrom); err != nil {
			return nil, err
		}
		if err := validateTime(a.TimeTo); err != nil {
			return nil, err
		}
	} else if a.DayFrom != "" || a.DayTo != "" || a.TimeFrom != "" || a.TimeTo != "" {
		return nil, fmt.Errorf("availability: day-range rule requires day_from, day_to, time_from and time_to")
	}

	for date, ov := range a.Overrides {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("availability: invalid override date %q", date)
		}
		if (ov.Start == "") != (ov.End == "") {
			return nil, fmt.Errorf("availability: override for %s needs both start and end", date)
		}
		if ov.Start != "" {
			if err := validateTime(ov.Start); err != nil {
				return nil, err
			}
			if err := validateTime(ov.End); err != nil {
				return nil, err
			}
		}
	}

	for _, br := range a.Breaks {
		if err := validateTime(br.Start); err != nil {
			return nil, err
		}
		if err := validateTime(br.End); err != nil {
			return nil, err
		}
	}

	return &a, nil
}

func (a *Availability) hasDayRange() bool {
	return a.DayFrom != "" && a.DayTo != "" && a.TimeFrom != "" && a.TimeTo != ""
}

// EffectiveSlots resolves the compact day-range rule into per-day slots when
// present, otherwise returns the legacy slot list. A Fri..Mon range wraps
// around the week and expands to Fri, Sat, Sun, Mon in that order.
func (a *Availability) EffectiveSlots() []TimeSlot {
	if !a.hasDayRange() {
		return a.Slots
	}

	from, _ := parseWeekday(a.DayFrom)
	to, _ := parseWeekday(a.DayTo)

	span := (to - from + 7) % 7
	slots := make([]TimeSlot, 0, span+1)
	for i := 0; i <= span; i++ {
		slots = append(slots, TimeSlot{
			Day:   dayOrder[(from+i)%7],
			Start: a.TimeFrom,
			End:   a.TimeTo,
		})
	}
	return slots
}

// IsAvailable reports whether the timestamp falls inside the business's hours.
// A blocking date override always wins over weekly slots; breaks are applied
// last. Empty effective slots mean no restriction at all.
func (a *Availability) IsAvailable(t time.Time) bool {
	if len(a.EffectiveSlots()) == 0 {
		return true
	}
	if !a.withinHours(t) {
		return false
	}
	return !a.insideBreak(timeOfDay(t))
}

// EndTimeWithinSlot reports whether an appointment starting at t and running
// durationMinutes stays inside a single slot or override window, without any
// break overlapping the appointment interval.
func (a *Availability) EndTimeWithinSlot(t time.Time, durationMinutes int) bool {
	if len(a.EffectiveSlots()) == 0 {
		return true
	}

	end := t.Add(time.Duration(durationMinutes) * time.Minute)
	start, endStr := timeOfDay(t), timeOfDay(end)

	window, ok := a.windowFor(t)
	if !ok {
		return false
	}
	if start < window.Start || endStr > window.End {
		return false
	}

	// A break strictly inside the appointment invalidates it even when the
	// start and end instants are individually clear.
	for _, br := range a.Breaks {
		if br.Start < endStr && br.End > start {
			return false
		}
	}
	return true
}

// withinHours checks the date override first, then the weekly pattern.
func (a *Availability) withinHours(t time.Time) bool {
	tod := timeOfDay(t)

	if ov, ok := a.Overrides[dateKey(t)]; ok {
		if !ov.Available {
			return false
		}
		if ov.Start != "" {
			return tod >= ov.Start && tod < ov.End
		}
		// Available with no hours: fall through to the weekly slot.
	}

	day := weekdayKey(t)
	for _, slot := range a.EffectiveSlots() {
		if strings.ToLower(slot.Day) == day && tod >= slot.Start && tod < slot.End {
			return true
		}
	}
	return false
}

// windowFor returns the single window (override or weekly slot) containing t.
func (a *Availability) windowFor(t time.Time) (BreakWindow, bool) {
	tod := timeOfDay(t)

	if ov, ok := a.Overrides[dateKey(t)]; ok {
		if !ov.Available {
			return BreakWindow{}, false
		}
		if ov.Start != "" {
			if tod >= ov.Start && tod < ov.End {
				return BreakWindow{Start: ov.Start, End: ov.End}, true
			}
			return BreakWindow{}, false
		}
	}

	day := weekdayKey(t)
	for _, slot := range a.EffectiveSlots() {
		if strings.ToLower(slot.Day) == day && tod >= slot.Start && tod < slot.End {
			return BreakWindow{Start: slot.Start, End: slot.End}, true
		}
	}
	return BreakWindow{}, false
}

func (a *Availability) insideBreak(tod string) bool {
	for _, br := range a.Breaks {
		if tod >= br.Start && tod < br.End {
			return true
		}
	}
	return false
}

// HumanReadable renders the effective slots sorted Monday through Sunday, e.g.
// "Mon: 09:00-17:00, Wed: 09:00-17:00". The string is embedded verbatim in
// rejection messages and LLM context.
func (a *Availability) HumanReadable() string {
	slots := a.EffectiveSlots()
	if len(slots) == 0 {
		return ""
	}

	sorted := make([]TimeSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return dayIndex(sorted[i].Day) < dayIndex(sorted[j].Day)
	})

	parts := make([]string, 0, len(sorted))
	for _, slot := range sorted {
		parts = append(parts, fmt.Sprintf("%s: %s-%s", capitalize(slot.Day), slot.Start, slot.End))
	}
	return strings.Join(parts, ", ")
}

func dayIndex(day string) int {
	idx, err := parseWeekday(day)
	if err != nil {
		return len(dayOrder)
	}
	return idx
}

func parseWeekday(s string) (int, error) {
	lower := strings.ToLower(s)
	for i, d := range dayOrder {
		if d == lower {
			return i, nil
		}
	}
	return 0, fmt.Errorf("availability: invalid weekday: %s", s)
}

func validateTime(s string) error {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return fmt.Errorf("availability: invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("availability: invalid hour in: %s", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("availability: invalid minute in: %s", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("availability: time out of range: %s", s)
	}
	return nil
}

func weekdayKey(t time.Time) string {
	return strings.ToLower(t.Format("Mon"))
}

func timeOfDay(t time.Time) string {
	return t.Format("15:04")
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
