package status

import "time"

// EasterDate returns Easter Sunday for the given year using the
// anonymous Gregorian (Meeus/Jones/Butcher) algorithm.
func EasterDate(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// ThanksgivingDate returns the fourth Thursday of November.
func ThanksgivingDate(year int) time.Time {
	return NthWeekdayOfMonth(year, time.November, time.Thursday, 4)
}

// NthWeekdayOfMonth returns the nth occurrence (1-based) of a weekday
// in the month.
func NthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// LastWeekdayOfMonth returns the last occurrence of a weekday in the month.
func LastWeekdayOfMonth(year int, month time.Month, weekday time.Weekday) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// CalculatedHolidayDate resolves a calculated holiday rule by name for
// the given year. The second return is false for unknown names.
func CalculatedHolidayDate(name string, year int) (time.Time, bool) {
	switch name {
	case "Easter":
		return EasterDate(year), true
	case "Good Friday":
		return EasterDate(year).AddDate(0, 0, -2), true
	case "Easter Monday":
		return EasterDate(year).AddDate(0, 0, 1), true
	case "Thanksgiving":
		return ThanksgivingDate(year), true
	case "Memorial Day":
		return LastWeekdayOfMonth(year, time.May, time.Monday), true
	case "Labor Day":
		return NthWeekdayOfMonth(year, time.September, time.Monday, 1), true
	case "Columbus Day":
		return NthWeekdayOfMonth(year, time.October, time.Monday, 2), true
	case "Presidents Day":
		return NthWeekdayOfMonth(year, time.February, time.Monday, 3), true
	case "Martin Luther King Jr. Day":
		return NthWeekdayOfMonth(year, time.January, time.Monday, 3), true
	default:
		return time.Time{}, false
	}
}
