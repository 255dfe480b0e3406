package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ScheduleKind identifies the parsed form of a schedule expression.
type ScheduleKind string

const (
	ScheduleAlways   ScheduleKind = "always"
	ScheduleOnce     ScheduleKind = "once"
	ScheduleDaily    ScheduleKind = "daily"
	ScheduleWeekdays ScheduleKind = "weekdays"
	ScheduleWeekly   ScheduleKind = "weekly"
	ScheduleRange    ScheduleKind = "range"
	ScheduleUnparsed ScheduleKind = "text"
)

// scheduleGrammarNote is attached to unparsed schedules so the supported
// grammar is visible wherever the schedule is inspected later.
const scheduleGrammarNote = "Unparsed schedule text. Supported: always, once <datetime>, daily HH:MM, weekdays HH:MM, weekly <day> HH:MM, between <start> and <end>"

// Schedule is the parsed form of a user-authored schedule expression.
// Raw always carries the original text; Parseable is false only for the
// unparsed variant.
type Schedule struct {
	Kind      ScheduleKind
	Raw       string
	Parseable bool

	// once
	At time.Time
	// daily / weekdays / weekly
	Hour   int
	Minute int
	// weekly
	DayOfWeek time.Weekday
	// range
	Start time.Time
	End   time.Time
	// unparsed
	Note string
}

// ScheduleStatus reports whether a schedule is active at a point in time.
// Active is nil when the answer is unknown (unparsed schedule or invalid
// timestamp), never an error.
type ScheduleStatus struct {
	Active *bool
	Reason string
}

func statusOf(active bool, reason string) ScheduleStatus {
	return ScheduleStatus{Active: &active, Reason: reason}
}

func statusUnknown(reason string) ScheduleStatus {
	return ScheduleStatus{Active: nil, Reason: reason}
}

var (
	onceRe     = regexp.MustCompile(`(?i)^once\s+(.+)$`)
	dailyRe    = regexp.MustCompile(`(?i)^daily\s+(\d{1,2}:\d{2})$`)
	weekdaysRe = regexp.MustCompile(`(?i)^weekdays\s+(\d{1,2}:\d{2})$`)
	weeklyRe   = regexp.MustCompile(`(?i)^weekly\s+([a-z]+)\s+(\d{1,2}:\d{2})$`)
	rangeRe    = regexp.MustCompile(`(?i)^between\s+(.+)\s+and\s+(.+)$`)
	alwaysRe   = regexp.MustCompile(`(?i)^always$`)
)

var dayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// datetime layouts accepted by once/between, tried in order. The trailing
// date-only form resolves to local midnight.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseDatetime(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	for _, layout := range datetimeLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, text); err == nil {
				return t, true
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, text, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimeToken(token string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(token), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// ParseSchedule parses a schedule expression. It is total: no input ever
// produces an error, unrecognized text yields the unparsed variant. A keyword
// match whose argument fails to parse (bad time, bad date, reversed range)
// falls through to the next alternative.
func ParseSchedule(input string) Schedule {
	text := strings.TrimSpace(input)
	if text == "" || alwaysRe.MatchString(text) {
		raw := text
		if raw == "" {
			raw = "always"
		}
		return Schedule{Kind: ScheduleAlways, Raw: raw, Parseable: true}
	}

	if m := onceRe.FindStringSubmatch(text); m != nil {
		if at, ok := parseDatetime(m[1]); ok {
			return Schedule{Kind: ScheduleOnce, Raw: text, Parseable: true, At: at}
		}
	}

	if m := dailyRe.FindStringSubmatch(text); m != nil {
		if h, min, ok := parseTimeToken(m[1]); ok {
			return Schedule{Kind: ScheduleDaily, Raw: text, Parseable: true, Hour: h, Minute: min}
		}
	}

	if m := weekdaysRe.FindStringSubmatch(text); m != nil {
		if h, min, ok := parseTimeToken(m[1]); ok {
			return Schedule{Kind: ScheduleWeekdays, Raw: text, Parseable: true, Hour: h, Minute: min}
		}
	}

	if m := weeklyRe.FindStringSubmatch(text); m != nil {
		day, dayOK := dayNames[strings.ToLower(m[1])]
		if h, min, ok := parseTimeToken(m[2]); ok && dayOK {
			return Schedule{Kind: ScheduleWeekly, Raw: text, Parseable: true, DayOfWeek: day, Hour: h, Minute: min}
		}
	}

	if m := rangeRe.FindStringSubmatch(text); m != nil {
		start, startOK := parseDatetime(m[1])
		end, endOK := parseDatetime(m[2])
		if startOK && endOK && !start.After(end) {
			return Schedule{Kind: ScheduleRange, Raw: text, Parseable: true, Start: start, End: end}
		}
	}

	return Schedule{Kind: ScheduleUnparsed, Raw: text, Parseable: false, Note: scheduleGrammarNote}
}

// StatusAt evaluates the schedule at the given instant. Minute-granularity
// kinds compare the local hour and minute of at exactly; seconds are ignored.
func (s *Schedule) StatusAt(at time.Time) ScheduleStatus {
	if s == nil || at.IsZero() {
		return statusUnknown("invalid timestamp")
	}
	if s.Kind == ScheduleAlways {
		return statusOf(true, "always active")
	}
	if !s.Parseable {
		reason := s.Note
		if reason == "" {
			reason = "schedule could not be parsed"
		}
		return statusUnknown(reason)
	}

	switch s.Kind {
	case ScheduleOnce:
		delta := at.Sub(s.At)
		if delta < 0 {
			delta = -delta
		}
		return statusOf(delta <= time.Minute, fmt.Sprintf("active within 1 minute of %s", s.At.Format(time.RFC3339)))
	case ScheduleDaily:
		active := at.Hour() == s.Hour && at.Minute() == s.Minute
		return statusOf(active, fmt.Sprintf("daily %02d:%02d", s.Hour, s.Minute))
	case ScheduleWeekdays:
		isWeekday := at.Weekday() >= time.Monday && at.Weekday() <= time.Friday
		timeMatch := at.Hour() == s.Hour && at.Minute() == s.Minute
		return statusOf(isWeekday && timeMatch, fmt.Sprintf("weekdays %02d:%02d", s.Hour, s.Minute))
	case ScheduleWeekly:
		dayMatch := at.Weekday() == s.DayOfWeek
		timeMatch := at.Hour() == s.Hour && at.Minute() == s.Minute
		return statusOf(dayMatch && timeMatch, fmt.Sprintf("weekly day=%d at %02d:%02d", int(s.DayOfWeek), s.Hour, s.Minute))
	case ScheduleRange:
		active := !at.Before(s.Start) && !at.After(s.End)
		return statusOf(active, fmt.Sprintf("between %s and %s", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339)))
	}
	return statusUnknown("unknown schedule type")
}
