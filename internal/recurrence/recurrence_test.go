package recurrence

import (
	"errors"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    string
		wantErr bool
	}{
		{name: "weekly by day", rule: "FREQ=WEEKLY;BYDAY=TH", wantErr: false},
		{name: "with prefix", rule: "RRULE:FREQ=WEEKLY;BYDAY=MO,WE", wantErr: false},
		{name: "daily interval", rule: "FREQ=DAILY;INTERVAL=2", wantErr: false},
		{name: "monthly setpos", rule: "FREQ=MONTHLY;BYDAY=FR;BYSETPOS=-1", wantErr: false},
		{name: "count", rule: "FREQ=WEEKLY;COUNT=10", wantErr: false},
		{name: "until", rule: "FREQ=WEEKLY;UNTIL=20300101T000000Z", wantErr: false},
		{name: "garbage", rule: "NOT_A_RULE", wantErr: true},
		{name: "empty", rule: "", wantErr: true},
		{name: "missing freq", rule: "BYDAY=TH", wantErr: true},
		{name: "unknown freq", rule: "FREQ=FORTNIGHTLY", wantErr: true},
		{name: "bad weekday", rule: "FREQ=WEEKLY;BYDAY=XX", wantErr: true},
		{name: "zero interval", rule: "FREQ=WEEKLY;INTERVAL=0", wantErr: true},
		{name: "negative interval", rule: "FREQ=DAILY;INTERVAL=-2", wantErr: true},
		{name: "count with until", rule: "FREQ=WEEKLY;COUNT=2;UNTIL=20240101T000000Z", wantErr: true},
		{name: "interval one", rule: "FREQ=WEEKLY;INTERVAL=1;BYDAY=TH", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rule)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.rule, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRule) {
				t.Errorf("Validate(%q) error = %v, want ErrInvalidRule", tt.rule, err)
			}
		})
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	rules := []string{
		"FREQ=WEEKLY;BYDAY=TH",
		"RRULE:FREQ=MONTHLY;BYMONTHDAY=1,15",
		"FREQ=DAILY;INTERVAL=3;COUNT=5",
	}

	anchor := time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC)
	after := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	for _, rule := range rules {
		t.Run(rule, func(t *testing.T) {
			canonical, err := Canonical(rule)
			if err != nil {
				t.Fatalf("Canonical() error = %v", err)
			}
			if err := Validate(canonical); err != nil {
				t.Fatalf("canonical form %q does not validate: %v", canonical, err)
			}
			again, err := Canonical(canonical)
			if err != nil {
				t.Fatalf("Canonical(canonical) error = %v", err)
			}
			if again != canonical {
				t.Errorf("Canonical not idempotent: %q then %q", canonical, again)
			}

			want, errWant := Schedule{Rule: rule, Anchor: anchor}.Next(after)
			got, errGot := Schedule{Rule: canonical, Anchor: anchor}.Next(after)
			if !errors.Is(errGot, errWant) && (errGot != nil || errWant != nil) {
				t.Fatalf("Next errors differ: %v vs %v", errWant, errGot)
			}
			if !got.Equal(want) {
				t.Errorf("Next differs after round trip: %v vs %v", want, got)
			}
		})
	}
}

func TestScheduleNextFromMondayToThursday(t *testing.T) {
	monday := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	anchor, err := AnchorFor(monday, "19:00", time.UTC)
	if err != nil {
		t.Fatalf("AnchorFor() error = %v", err)
	}

	next, err := Schedule{Rule: "FREQ=WEEKLY;BYDAY=TH", Anchor: anchor}.Next(monday)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	want := time.Date(2024, 1, 4, 19, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next() = %v, want %v", next, want)
	}
}

func TestScheduleNextRespectsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	ref := time.Date(2024, 6, 3, 12, 0, 0, 0, loc) // Monday
	anchor, err := AnchorFor(ref, "19:30", loc)
	if err != nil {
		t.Fatalf("AnchorFor() error = %v", err)
	}

	next, err := Schedule{Rule: "FREQ=WEEKLY;BYDAY=WE", Anchor: anchor}.Next(ref)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	local := next.In(loc)
	if local.Weekday() != time.Wednesday || local.Hour() != 19 || local.Minute() != 30 {
		t.Errorf("Next() = %v, want Wednesday 19:30 local", local)
	}
}

func TestScheduleNextIsMonotonic(t *testing.T) {
	anchor := time.Date(2024, 1, 2, 18, 0, 0, 0, time.UTC)
	s := Schedule{Rule: "FREQ=WEEKLY;INTERVAL=2;BYDAY=TU,SA", Anchor: anchor}

	var prev time.Time
	for i := 0; i < 60; i++ {
		at := anchor.Add(time.Duration(i) * 37 * time.Hour)
		next, err := s.Next(at)
		if err != nil {
			t.Fatalf("Next(%v) error = %v", at, err)
		}
		if next.Before(at) {
			t.Fatalf("Next(%v) = %v is before its argument", at, next)
		}
		if next.Before(prev) {
			t.Fatalf("Next(%v) = %v went backwards from %v", at, next, prev)
		}
		prev = next
	}
}

func TestScheduleKeepsIntervalPhase(t *testing.T) {
	// Every other Thursday starting 2024-01-04
	anchor := time.Date(2024, 1, 4, 19, 0, 0, 0, time.UTC)
	s := Schedule{Rule: "FREQ=WEEKLY;INTERVAL=2;BYDAY=TH", Anchor: anchor}

	// Evaluated the day after the first occurrence the next one is two weeks on
	next, err := s.Next(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	want := time.Date(2024, 1, 18, 19, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next() = %v, want %v", next, want)
	}
}

func TestNoOccurrence(t *testing.T) {
	tests := []struct {
		name string
		rule string
	}{
		{name: "until elapsed", rule: "FREQ=WEEKLY;BYDAY=TH;UNTIL=20200101T000000Z"},
		{name: "count exhausted", rule: "FREQ=DAILY;COUNT=2"},
	}

	anchor := time.Date(2019, 6, 1, 9, 0, 0, 0, time.UTC)
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Schedule{Rule: tt.rule, Anchor: anchor}.Next(ref)
			if !errors.Is(err, ErrNoOccurrence) {
				t.Errorf("Next() error = %v, want ErrNoOccurrence", err)
			}
		})
	}
}

func TestFirstOccurrenceAfter(t *testing.T) {
	ref := time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC) // Monday

	t.Run("anchored on reference", func(t *testing.T) {
		next, err := FirstOccurrenceAfter("FREQ=WEEKLY;BYDAY=TH", ref)
		if err != nil {
			t.Fatalf("FirstOccurrenceAfter() error = %v", err)
		}
		want := time.Date(2024, 1, 4, 19, 0, 0, 0, time.UTC)
		if !next.Equal(want) {
			t.Errorf("FirstOccurrenceAfter() = %v, want %v", next, want)
		}
	})

	t.Run("explicit dtstart wins", func(t *testing.T) {
		next, err := FirstOccurrenceAfter("DTSTART:20231205T080000Z\nRRULE:FREQ=WEEKLY;BYDAY=TU", ref)
		if err != nil {
			t.Fatalf("FirstOccurrenceAfter() error = %v", err)
		}
		want := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
		if !next.Equal(want) {
			t.Errorf("FirstOccurrenceAfter() = %v, want %v", next, want)
		}
	})

	t.Run("invalid rule", func(t *testing.T) {
		if _, err := FirstOccurrenceAfter("NOT_A_RULE", ref); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("error = %v, want ErrInvalidRule", err)
		}
	})
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input      string
		wantHour   int
		wantMinute int
		wantErr    bool
	}{
		{"19:00", 19, 0, false},
		{"07:45", 7, 45, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"19:60", 0, 0, true},
		{"7pm", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h, m, err := ParseTimeOfDay(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeOfDay(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidTime) {
					t.Errorf("error = %v, want ErrInvalidTime", err)
				}
				return
			}
			if h != tt.wantHour || m != tt.wantMinute {
				t.Errorf("ParseTimeOfDay(%q) = %d:%d", tt.input, h, m)
			}
		})
	}
}
