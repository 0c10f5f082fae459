package bloc

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	t.Run("parses ISO dates", func(t *testing.T) {
		date, err := ParseDate("2025-01-13")
		if err != nil {
			t.Fatalf("ParseDate returned error: %v", err)
		}
		if date != NewDate(2025, time.January, 13) {
			t.Fatalf("unexpected date: %v", date)
		}
		if date.Weekday() != time.Monday {
			t.Fatalf("2025-01-13 should be a Monday, got %s", date.Weekday())
		}
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		for _, value := range []string{"13/01/2025", "2025-13-01", "not-a-date", ""} {
			if _, err := ParseDate(value); err == nil {
				t.Fatalf("expected error for %q", value)
			}
		}
	})
}

func TestDate_JSON(t *testing.T) {
	date := NewDate(2025, time.March, 2)

	data, err := json.Marshal(date)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(data) != `"2025-03-02"` {
		t.Fatalf("unexpected JSON: %s", data)
	}

	var decoded Date
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if decoded != date {
		t.Fatalf("round trip changed the date: %v", decoded)
	}
}

func TestDateRange_Days(t *testing.T) {
	t.Run("enumerates an inclusive range", func(t *testing.T) {
		r := DateRange{Start: NewDate(2025, time.January, 30), End: NewDate(2025, time.February, 2)}
		days := r.Days()
		if len(days) != 4 {
			t.Fatalf("expected 4 days, got %d", len(days))
		}
		if days[0].String() != "2025-01-30" || days[3].String() != "2025-02-02" {
			t.Fatalf("unexpected bounds: %s .. %s", days[0], days[3])
		}
	})

	t.Run("single day range yields one day", func(t *testing.T) {
		day := NewDate(2025, time.January, 13)
		days := DateRange{Start: day, End: day}.Days()
		if len(days) != 1 || days[0] != day {
			t.Fatalf("unexpected days: %v", days)
		}
	})

	t.Run("inverted range yields nothing", func(t *testing.T) {
		r := DateRange{Start: NewDate(2025, time.January, 14), End: NewDate(2025, time.January, 13)}
		if days := r.Days(); days != nil {
			t.Fatalf("expected nil for inverted range, got %v", days)
		}
	})
}
