package scheduler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DayHours is the opening window of a single weekday, expressed as "HH:MM"
// wall-clock values. Close may be "24:00".
type DayHours struct {
	Open   string `json:"open,omitempty" yaml:"open,omitempty"`
	Close  string `json:"close,omitempty" yaml:"close,omitempty"`
	Closed bool   `json:"closed,omitempty" yaml:"closed,omitempty"`
}

// Hours returns the opening and closing clock hours.
func (d DayHours) Hours() (openHour, closeHour int, err error) {
	if d.Closed {
		return 0, 0, fmt.Errorf("scheduler: day is closed")
	}
	openHour, _, err = ParseClock(d.Open)
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler: open: %w", err)
	}
	closeHour, _, err = ParseClock(d.Close)
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler: close: %w", err)
	}
	if openHour >= closeHour {
		return 0, 0, fmt.Errorf("scheduler: open %s must be before close %s", d.Open, d.Close)
	}
	return openHour, closeHour, nil
}

// WeeklyHours maps weekdays to their opening window. An empty table places no
// restriction on bookings; a weekday missing from a non-empty table is closed.
type WeeklyHours map[time.Weekday]DayHours

// Unrestricted reports whether the table imposes no hours at all.
func (w WeeklyHours) Unrestricted() bool {
	return len(w) == 0
}

// Validate checks every configured day.
func (w WeeklyHours) Validate() error {
	for day, hours := range w {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("scheduler: invalid weekday %d", day)
		}
		if hours.Closed {
			continue
		}
		if _, _, err := hours.Hours(); err != nil {
			return fmt.Errorf("%s: %w", strings.ToLower(day.String()), err)
		}
	}
	return nil
}

// Allows reports whether the interval falls inside the opening hours of the
// weekday it starts on. The comparison is hour granular:
// startHour >= open && endHour <= close, where endHour counts past midnight
// (a booking ending at the following 00:00 has endHour 24).
func (w WeeklyHours) Allows(iv Interval, loc *time.Location) bool {
	if !iv.Valid() {
		return false
	}
	if w.Unrestricted() {
		return true
	}
	if loc == nil {
		loc = time.UTC
	}

	start := iv.Start.In(loc)
	end := iv.End.In(loc)

	day, ok := w[start.Weekday()]
	if !ok || day.Closed {
		return false
	}
	openHour, closeHour, err := day.Hours()
	if err != nil {
		return false
	}

	startHour := start.Hour()
	endHour := end.Hour() + 24*daysBetween(start, end)
	return startHour >= openHour && endHour <= closeHour
}

func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ParseClock parses an "HH:MM" wall-clock value. "24:00" is accepted as the end
// of the day.
func ParseClock(value string) (hour, minute int, err error) {
	value = strings.TrimSpace(value)
	h, m, ok := strings.Cut(value, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid clock value %q", value)
	}
	hour, err = strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock hour %q", value)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || len(m) != 2 {
		return 0, 0, fmt.Errorf("invalid clock minute %q", value)
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, 0, fmt.Errorf("clock value %q out of range", value)
	}
	return hour, minute, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday resolves an English weekday name or its three letter prefix.
func ParseWeekday(name string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if day, ok := weekdayNames[key]; ok {
		return day, nil
	}
	if len(key) == 3 {
		for full, day := range weekdayNames {
			if strings.HasPrefix(full, key) {
				return day, nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("scheduler: unknown weekday %q", name)
}

// FromNames converts a name keyed table (as found in JSON or YAML documents).
func FromNames(named map[string]DayHours) (WeeklyHours, error) {
	if len(named) == 0 {
		return WeeklyHours{}, nil
	}
	hours := make(WeeklyHours, len(named))
	for name, day := range named {
		weekday, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		hours[weekday] = day
	}
	return hours, nil
}

// Names converts the table to lowercase weekday names.
func (w WeeklyHours) Names() map[string]DayHours {
	named := make(map[string]DayHours, len(w))
	for day, hours := range w {
		named[strings.ToLower(day.String())] = hours
	}
	return named
}

// Days returns the configured weekdays in calendar order.
func (w WeeklyHours) Days() []time.Weekday {
	days := make([]time.Weekday, 0, len(w))
	for day := range w {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// MarshalJSON encodes the table keyed by weekday name.
func (w WeeklyHours) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Names())
}

// UnmarshalJSON decodes a table keyed by weekday name.
func (w *WeeklyHours) UnmarshalJSON(data []byte) error {
	var named map[string]DayHours
	if err := json.Unmarshal(data, &named); err != nil {
		return err
	}
	hours, err := FromNames(named)
	if err != nil {
		return err
	}
	*w = hours
	return nil
}
