// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package fieldkind

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var (
	// "[D day[s], ][-][[HH:]MM:]SS[.uuuuuu]", also "D HH:MM:SS".
	clockDuration = regexp.MustCompile(`^(?:(-?\d+) (?:days?,? )?)?(-?)(\d+(?::\d+){0,2})(?:[.,](\d{1,6})\d{0,6})?$`)

	// ISO 8601 "P4DT1H15M20S"; at least one component must be present.
	isoDuration = regexp.MustCompile(`^([-+]?)P(?:(\d+(?:[.,]\d+)?)D)?(?:T(?:(\d+(?:[.,]\d+)?)H)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)S)?)?$`)
)

func parseDuration(text string) (any, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, required(Timedelta)
	}
	if d, ok := parseClockDuration(s); ok {
		return d, nil
	}
	if d, ok := parseISODuration(s); ok {
		return d, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	return nil, invalid(Timedelta)
}

func parseClockDuration(s string) (time.Duration, bool) {
	m := clockDuration.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	var days int64
	if m[1] != "" {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		days = n
	}

	parts := strings.Split(m[3], ":")
	units := []time.Duration{time.Second, time.Minute, time.Hour}
	var clock time.Duration
	for i := range parts {
		n, err := strconv.ParseInt(parts[len(parts)-1-i], 10, 64)
		if err != nil {
			return 0, false
		}
		part, ok := scaleDuration(n, units[i])
		if !ok {
			return 0, false
		}
		if clock, ok = addDuration(clock, part); !ok {
			return 0, false
		}
	}
	if m[4] != "" {
		micros, err := strconv.ParseInt(m[4]+strings.Repeat("0", 6-len(m[4])), 10, 64)
		if err != nil {
			return 0, false
		}
		var ok bool
		if clock, ok = addDuration(clock, time.Duration(micros)*time.Microsecond); !ok {
			return 0, false
		}
	}
	if m[2] == "-" {
		clock = -clock
	}
	whole, ok := scaleDuration(days, day)
	if !ok {
		return 0, false
	}
	return addDuration(whole, clock)
}

func parseISODuration(s string) (time.Duration, bool) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	units := []time.Duration{day, time.Hour, time.Minute, time.Second}
	var total time.Duration
	seen := false
	for i, unit := range units {
		field := m[i+2]
		if field == "" {
			continue
		}
		seen = true
		f, err := strconv.ParseFloat(strings.Replace(field, ",", ".", 1), 64)
		if err != nil {
			return 0, false
		}
		part, ok := floatDuration(f, unit)
		if !ok {
			return 0, false
		}
		if total, ok = addDuration(total, part); !ok {
			return 0, false
		}
	}
	if !seen {
		return 0, false
	}
	if m[1] == "-" {
		total = -total
	}
	return total, true
}

// scaleDuration returns n*unit, or false when the product does not fit in
// a time.Duration.
func scaleDuration(n int64, unit time.Duration) (time.Duration, bool) {
	if n > math.MaxInt64/int64(unit) || n < math.MinInt64/int64(unit) {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

func addDuration(a, b time.Duration) (time.Duration, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// floatDuration converts f units to a duration, rejecting NaN and values
// outside the int64 nanosecond range.
func floatDuration(f float64, unit time.Duration) (time.Duration, bool) {
	ns := f * float64(unit)
	if math.IsNaN(ns) || ns >= math.MaxInt64 || ns <= math.MinInt64 {
		return 0, false
	}
	return time.Duration(ns), true
}

// FormatDuration renders d in the "D HH:MM:SS[.uuuuuu]" form accepted by
// Coerce. Durations with sub-microsecond precision use time.Duration's
// own notation, which Coerce also accepts.
func FormatDuration(d time.Duration) string {
	if d%time.Microsecond != 0 {
		return d.String()
	}
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := d / day
	d -= days * day
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	micros := (d - sec*time.Second) / time.Microsecond

	frac := ""
	if micros != 0 {
		frac = fmt.Sprintf(".%06d", int64(micros))
	}
	if sign != "" {
		// fold days into hours so the sign covers the whole duration
		return fmt.Sprintf("-%02d:%02d:%02d%s", int64(days)*24+int64(h), int64(m), int64(sec), frac)
	}
	clock := fmt.Sprintf("%02d:%02d:%02d%s", int64(h), int64(m), int64(sec), frac)
	if days > 0 {
		return fmt.Sprintf("%d %s", int64(days), clock)
	}
	return clock
}
