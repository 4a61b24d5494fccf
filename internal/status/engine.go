package status

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
)

// Reason codes for non-holiday outcomes. Holidays use the holiday name,
// regular weekdays use the weekday name.
const (
	ReasonManualOverride   = "ManualOverride"
	ReasonScheduledClosure = "ScheduledClosure"
	ReasonClosedToday      = "Closed Today"
)

var hoursPattern = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*(AM|PM)\s*-\s*(\d{1,2}):(\d{2})\s*(AM|PM)`)

// Evaluate computes the live open/closed status for the given instant.
// Precedence, first match wins: manual override, scheduled closure,
// holiday rule, weekday closed flag, parsed time-of-day range
// (inclusive on both bounds). Calculated holiday dates are resolved for
// now's year on every call.
func Evaluate(now time.Time, override domain.Override, closures []domain.Closure, hours domain.HoursConfig) domain.Status {
	if override.ManualClosed {
		return domain.Status{
			IsOpen:  false,
			Reason:  ReasonManualOverride,
			Message: "CLOSED (Manual Override)",
		}
	}

	today := now.Format("2006-01-02")
	for _, c := range closures {
		if c.Date == today {
			reason := c.Reason
			if reason == "" {
				reason = ReasonScheduledClosure
			}
			return domain.Status{
				IsOpen:  false,
				Reason:  reason,
				Message: fmt.Sprintf("CLOSED (%s)", reason),
			}
		}
	}

	if holiday, ok := matchHoliday(now, hours.HolidayHours); ok {
		if holiday.Open {
			return domain.Status{
				IsOpen:  true,
				Reason:  holiday.Name,
				Message: fmt.Sprintf("OPEN (%s: %s)", holiday.Name, holiday.Hours),
			}
		}
		return domain.Status{
			IsOpen:  false,
			Reason:  holiday.Name,
			Message: fmt.Sprintf("CLOSED (%s)", holiday.Name),
		}
	}

	day := hours.BusinessHours[int(now.Weekday())]
	if !day.Open {
		return domain.Status{
			IsOpen:  false,
			Reason:  ReasonClosedToday,
			Message: fmt.Sprintf("CLOSED (%s)", day.Day),
		}
	}

	openMin, closeMin, ok := parseHoursRange(day.Hours)
	if !ok {
		// Unparsable hours string: trust the day's open flag.
		return domain.Status{
			IsOpen:  day.Open,
			Reason:  day.Day,
			Message: fmt.Sprintf("OPEN (%s)", day.Hours),
		}
	}

	nowMin := now.Hour()*60 + now.Minute()
	if nowMin >= openMin && nowMin <= closeMin {
		return domain.Status{
			IsOpen:  true,
			Reason:  day.Day,
			Message: fmt.Sprintf("OPEN (%s)", day.Hours),
		}
	}
	return domain.Status{
		IsOpen:  false,
		Reason:  day.Day,
		Message: fmt.Sprintf("CLOSED (%s)", day.Hours),
	}
}

func matchHoliday(now time.Time, rules []domain.HolidayRule) (domain.HolidayRule, bool) {
	for _, rule := range rules {
		if rule.Calculated {
			date, ok := CalculatedHolidayDate(rule.Name, now.Year())
			if ok && date.Month() == now.Month() && date.Day() == now.Day() {
				return rule, true
			}
			continue
		}
		if rule.Month == int(now.Month()) && rule.Day == now.Day() {
			return rule, true
		}
	}
	return domain.HolidayRule{}, false
}

// parseHoursRange converts a display string like "11:00 AM - 8:00 PM"
// to minutes since midnight. ok is false when the string does not
// contain a recognizable range.
func parseHoursRange(s string) (openMin, closeMin int, ok bool) {
	m := hoursPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	openMin = toMinutes(m[1], m[2], m[3])
	closeMin = toMinutes(m[4], m[5], m[6])
	return openMin, closeMin, true
}

func toMinutes(hourStr, minStr, period string) int {
	hour, _ := strconv.Atoi(hourStr)
	minute, _ := strconv.Atoi(minStr)
	total := hour*60 + minute
	if period == "PM" && hour != 12 {
		total += 12 * 60
	}
	if period == "AM" && hour == 12 {
		total -= 12 * 60
	}
	return total
}
