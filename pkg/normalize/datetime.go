package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order against a raw date string; the first
// successful parse wins.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	time.RFC3339,
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006",
	"01/02/2006",
	"2 January 2006",
	"Monday, January 2, 2006",
}

// ParseDate parses raw into a date and accepts it only if its year
// matches targetYear (spec's fixed-year acceptance window).
func ParseDate(raw string, targetYear int) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			if t.Year() != targetYear {
				return time.Time{}, false
			}
			return t, true
		}
	}
	return time.Time{}, false
}

var (
	clockPattern = regexp.MustCompile(`(?i)(\d{1,2})[:.h](\d{2})\s*(am|pm)?`)
	uhrPattern   = regexp.MustCompile(`(?i)(\d{1,2})\s*uhr`)
)

// ParseTime prefers an explicit detail-page time; failing that, it scans
// the raw date/listing string for a clock pattern ("7:30pm", "19h30") or a
// German "H uhr" form, normalizing to 24h "HH:MM". Anything else is "TBD".
// A detail-page time with an hour above 23 is rejected outright (signals a
// malformed source); in the fallback text such a clock is not used.
func ParseTime(detailPageTime, fallbackText string) (string, bool) {
	if t, ok := normalizeClock(detailPageTime); ok {
		return t, true
	}
	if detailPageTime != "" {
		// An explicit detail-page time that is unparsable or out of range
		// still counts as present; let the caller retry via AI rather than
		// silently TBD.
		return "", false
	}
	if t, ok := normalizeClock(fallbackText); ok {
		return t, true
	}
	return "TBD", true
}

func normalizeClock(text string) (string, bool) {
	if m := clockPattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		meridiem := strings.ToLower(m[3])
		switch meridiem {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
		if hour > 23 || minute > 59 {
			return "", false
		}
		return padTime(hour, minute), true
	}
	if m := uhrPattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour > 23 {
			return "", false
		}
		return padTime(hour, 0), true
	}
	return "", false
}

func padTime(hour, minute int) string {
	h := strconv.Itoa(hour)
	if hour < 10 {
		h = "0" + h
	}
	m := strconv.Itoa(minute)
	if minute < 10 {
		m = "0" + m
	}
	return h + ":" + m
}
