package domain

import (
	"testing"
	"time"
)

func boolOf(s ScheduleStatus) (bool, bool) {
	if s.Active == nil {
		return false, false
	}
	return *s.Active, true
}

func TestParseSchedule_Always(t *testing.T) {
	for _, input := range []string{"", "always", "ALWAYS", "  Always  "} {
		sched := ParseSchedule(input)
		if sched.Kind != ScheduleAlways {
			t.Errorf("ParseSchedule(%q): expected always, got %s", input, sched.Kind)
		}
		if !sched.Parseable {
			t.Errorf("ParseSchedule(%q): expected parseable", input)
		}
		if sched.Raw == "" {
			t.Errorf("ParseSchedule(%q): Raw must not be empty", input)
		}
	}
}

func TestParseSchedule_Daily(t *testing.T) {
	sched := ParseSchedule("daily 09:30")
	if sched.Kind != ScheduleDaily || sched.Hour != 9 || sched.Minute != 30 {
		t.Fatalf("unexpected schedule: %+v", sched)
	}

	at := time.Date(2024, 3, 5, 9, 30, 45, 0, time.UTC)
	active, known := boolOf(sched.StatusAt(at))
	if !known || !active {
		t.Error("expected active at matching hour/minute regardless of seconds")
	}

	// Every other minute of the day is inactive.
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	activeCount := 0
	for m := 0; m < 24*60; m++ {
		ts := day.Add(time.Duration(m) * time.Minute)
		if a, ok := boolOf(sched.StatusAt(ts)); ok && a {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("expected exactly one active minute per day, got %d", activeCount)
	}
}

func TestParseSchedule_Weekdays(t *testing.T) {
	sched := ParseSchedule("weekdays 09:00")
	tuesday := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	saturday := time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC)

	if a, ok := boolOf(sched.StatusAt(tuesday)); !ok || !a {
		t.Error("expected active on Tuesday 09:00")
	}
	if a, ok := boolOf(sched.StatusAt(saturday)); !ok || a {
		t.Error("expected inactive on Saturday 09:00")
	}
}

func TestParseSchedule_Weekly(t *testing.T) {
	sched := ParseSchedule("weekly friday 17:30")
	if sched.Kind != ScheduleWeekly || sched.DayOfWeek != time.Friday {
		t.Fatalf("unexpected schedule: %+v", sched)
	}
	friday := time.Date(2024, 1, 5, 17, 30, 0, 0, time.UTC)
	thursday := time.Date(2024, 1, 4, 17, 30, 0, 0, time.UTC)
	if a, _ := boolOf(sched.StatusAt(friday)); !a {
		t.Error("expected active on Friday 17:30")
	}
	if a, _ := boolOf(sched.StatusAt(thursday)); a {
		t.Error("expected inactive on Thursday 17:30")
	}
}

func TestParseSchedule_OnceToleranceWindow(t *testing.T) {
	sched := ParseSchedule("once 2024-06-01T12:00:00Z")
	if sched.Kind != ScheduleOnce {
		t.Fatalf("unexpected kind %s", sched.Kind)
	}
	at := sched.At

	within := at.Add(59 * time.Second)
	outside := at.Add(61 * time.Second)
	if a, _ := boolOf(sched.StatusAt(within)); !a {
		t.Error("expected active within one minute")
	}
	if a, _ := boolOf(sched.StatusAt(outside)); a {
		t.Error("expected inactive outside one minute")
	}
	if a, _ := boolOf(sched.StatusAt(at.Add(-30 * time.Second))); !a {
		t.Error("tolerance window must be symmetric")
	}
}

func TestParseSchedule_RangeInclusive(t *testing.T) {
	sched := ParseSchedule("between 2024-06-01T00:00:00Z and 2024-06-02T00:00:00Z")
	if sched.Kind != ScheduleRange {
		t.Fatalf("unexpected kind %s", sched.Kind)
	}
	if a, _ := boolOf(sched.StatusAt(sched.Start)); !a {
		t.Error("start boundary must be inclusive")
	}
	if a, _ := boolOf(sched.StatusAt(sched.End)); !a {
		t.Error("end boundary must be inclusive")
	}
	if a, _ := boolOf(sched.StatusAt(sched.End.Add(time.Second))); a {
		t.Error("expected inactive after end")
	}
}

func TestParseSchedule_FallthroughToUnparsed(t *testing.T) {
	cases := []string{
		"daily 25:00",          // hour out of range
		"daily 9:99",           // minute out of range
		"once not-a-date",      // bad datetime
		"weekly funday 09:00",  // bad day name
		"between b and a",      // unparsable datetimes
		"every full moon",      // no keyword at all
	}
	for _, input := range cases {
		sched := ParseSchedule(input)
		if sched.Kind != ScheduleUnparsed {
			t.Errorf("ParseSchedule(%q): expected unparsed, got %s", input, sched.Kind)
			continue
		}
		if sched.Parseable {
			t.Errorf("ParseSchedule(%q): expected parseable=false", input)
		}
		if sched.Note == "" {
			t.Errorf("ParseSchedule(%q): expected grammar note", input)
		}
		if sched.Raw != input {
			t.Errorf("ParseSchedule(%q): Raw not preserved: %q", input, sched.Raw)
		}
		status := sched.StatusAt(time.Now())
		if status.Active != nil {
			t.Errorf("ParseSchedule(%q): unparsed must evaluate to unknown", input)
		}
	}
}

func TestParseSchedule_ReversedRangeFallsThrough(t *testing.T) {
	sched := ParseSchedule("between 2024-06-02T00:00:00Z and 2024-06-01T00:00:00Z")
	if sched.Kind != ScheduleUnparsed {
		t.Errorf("reversed range must not parse, got %s", sched.Kind)
	}
}

func TestScheduleStatusAt_InvalidTimestamp(t *testing.T) {
	sched := ParseSchedule("always")
	status := sched.StatusAt(time.Time{})
	if status.Active != nil {
		t.Error("zero timestamp must yield unknown")
	}
	if status.Reason != "invalid timestamp" {
		t.Errorf("unexpected reason %q", status.Reason)
	}

	var nilSched *Schedule
	if nilSched.StatusAt(time.Now()).Active != nil {
		t.Error("nil schedule must yield unknown")
	}
}
