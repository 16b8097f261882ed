// Package rrule renders iCalendar recurrence rules as short human-readable
// phrases for display in document-store rows. Rendering is cosmetic: a rule
// we cannot parse must never block a sync, so failures collapse to a fixed
// sentinel instead of an error.
package rrule

import (
	"fmt"
	"strconv"
	"strings"
)

// Unknown is the sentinel for rules that are empty, malformed, or missing
// FREQ. Callers display it verbatim and carry on.
const Unknown = "Unknown recurrence"

var weekdayNames = map[string]string{
	"MO": "Monday",
	"TU": "Tuesday",
	"WE": "Wednesday",
	"TH": "Thursday",
	"FR": "Friday",
	"SA": "Saturday",
	"SU": "Sunday",
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var ordinalNames = map[int]string{
	1:  "first",
	2:  "second",
	3:  "third",
	4:  "fourth",
	5:  "fifth",
	-1: "last",
}

// Describe renders the first recurrence rule of an event. UNTIL and COUNT
// are deliberately ignored; they bound the series but add nothing to the
// displayed cadence.
func Describe(rule string) string {
	parts := parse(rule)
	if parts == nil {
		return Unknown
	}

	freq := parts["FREQ"]
	interval := 1
	if raw, ok := parts["INTERVAL"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Unknown
		}
		interval = n
	}

	switch freq {
	case "DAILY":
		return every(interval, "day", "Daily")
	case "WEEKLY":
		base := every(interval, "week", "Weekly")
		if days := describeWeekdays(parts["BYDAY"]); days != "" {
			return base + " on " + days
		}
		return base
	case "MONTHLY":
		base := every(interval, "month", "Monthly")
		if days := describeWeekdays(parts["BYDAY"]); days != "" {
			return base + " on " + days
		}
		if day, ok := parts["BYMONTHDAY"]; ok {
			return base + " on day " + day
		}
		return base
	case "YEARLY":
		base := every(interval, "year", "Yearly")
		month, hasMonth := monthName(parts["BYMONTH"])
		if hasMonth {
			if day, ok := parts["BYMONTHDAY"]; ok {
				return base + " on " + month + " " + day
			}
			return base + " in " + month
		}
		return base
	default:
		return Unknown
	}
}

// parse splits "FREQ=WEEKLY;BYDAY=MO,WE" into key/value pairs. A nil return
// means the rule is unusable.
func parse(rule string) map[string]string {
	rule = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"))
	if rule == "" {
		return nil
	}

	parts := make(map[string]string)
	for _, seg := range strings.Split(rule, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		key, value, ok := strings.Cut(seg, "=")
		if !ok || value == "" {
			continue
		}
		parts[strings.ToUpper(strings.TrimSpace(key))] = strings.ToUpper(strings.TrimSpace(value))
	}

	if parts["FREQ"] == "" {
		return nil
	}
	return parts
}

func every(interval int, unit, singular string) string {
	if interval == 1 {
		return singular
	}
	return fmt.Sprintf("Every %d %ss", interval, unit)
}

// describeWeekdays renders a BYDAY list as a conjunction: one day bare, two
// days "X and Y", three or more with an Oxford comma. Positional tokens like
// 2MO and -1FR become "the second Monday" and "the last Friday".
func describeWeekdays(byday string) string {
	if byday == "" {
		return ""
	}

	var rendered []string
	for _, token := range strings.Split(byday, ",") {
		day := describeWeekday(strings.TrimSpace(token))
		if day == "" {
			return ""
		}
		rendered = append(rendered, day)
	}
	return joinList(rendered)
}

func describeWeekday(token string) string {
	if len(token) < 2 {
		return ""
	}

	code := token[len(token)-2:]
	name, ok := weekdayNames[code]
	if !ok {
		return ""
	}

	prefix := token[:len(token)-2]
	if prefix == "" {
		return name
	}

	pos, err := strconv.Atoi(prefix)
	if err != nil {
		return ""
	}
	ordinal, ok := ordinalNames[pos]
	if !ok {
		return name
	}
	return "the " + ordinal + " " + name
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

func monthName(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 12 {
		return "", false
	}
	return monthNames[n-1], true
}
