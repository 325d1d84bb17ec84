package normalize

import (
	"testing"
	"time"
)

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func TestLocalTimeUTCLayouts(t *testing.T) {
	loc := eastern(t)
	tests := []struct {
		in   string
		want string // UTC, RFC3339
	}{
		{"2024-01-15 10:30:00", "2024-01-15T15:30:00Z"}, // EST, UTC-5
		{"2024-07-15 10:30:00", "2024-07-15T14:30:00Z"}, // EDT, UTC-4
		{"1/15/2024 10:30", "2024-01-15T15:30:00Z"},
		{"1/15/2024 10:30:00 AM", "2024-01-15T15:30:00Z"},
		{"2024-01-15T10:30:00", "2024-01-15T15:30:00Z"},
		{"2024-01-15", "2024-01-15T05:00:00Z"},
	}
	for _, tt := range tests {
		got, reason := LocalTimeUTC(tt.in, loc)
		if got == nil {
			t.Errorf("LocalTimeUTC(%q) = nil (reason %d), want %s", tt.in, reason, tt.want)
			continue
		}
		if got.Format(time.RFC3339) != tt.want {
			t.Errorf("LocalTimeUTC(%q) = %s, want %s", tt.in, got.Format(time.RFC3339), tt.want)
		}
	}
}

func TestLocalTimeUTCExplicitOffset(t *testing.T) {
	got, reason := LocalTimeUTC("2024-01-15T10:30:00-05:00", eastern(t))
	if got == nil || reason != TimeOK {
		t.Fatalf("LocalTimeUTC(offset) = %v, %d", got, reason)
	}
	if want := "2024-01-15T15:30:00Z"; got.Format(time.RFC3339) != want {
		t.Errorf("offset timestamp = %s, want %s", got.Format(time.RFC3339), want)
	}
}

func TestLocalTimeUTCSpringForwardGap(t *testing.T) {
	// 2024-03-10 02:30 does not exist in US Eastern; the wall time shifts
	// forward through the gap.
	got, reason := LocalTimeUTC("2024-03-10 02:30:00", eastern(t))
	if got == nil || reason != TimeOK {
		t.Fatalf("gap timestamp = %v, reason %d, want shifted time", got, reason)
	}
	if want := "2024-03-10T07:30:00Z"; got.Format(time.RFC3339) != want {
		t.Errorf("gap timestamp = %s, want %s", got.Format(time.RFC3339), want)
	}
}

func TestLocalTimeUTCFallBackAmbiguous(t *testing.T) {
	// 2024-11-03 01:30 occurs twice in US Eastern (EDT and EST).
	got, reason := LocalTimeUTC("2024-11-03 01:30:00", eastern(t))
	if got != nil || reason != TimeAmbiguous {
		t.Errorf("ambiguous timestamp = %v, reason %d, want nil/TimeAmbiguous", got, reason)
	}
}

func TestLocalTimeUTCUnparseable(t *testing.T) {
	for _, in := range []string{"", "not a time", "13/45/2024 99:99"} {
		got, reason := LocalTimeUTC(in, eastern(t))
		if got != nil || reason != TimeUnparseable {
			t.Errorf("LocalTimeUTC(%q) = %v, reason %d, want nil/TimeUnparseable", in, got, reason)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string // "" means nil
	}{
		{"2024-01-15", "2024-01-15"},
		{"1/15/2024", "2024-01-15"},
		{"2024-01-15 10:30:00", "2024-01-15"},
		{"grand total", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := ParseDate(tt.in)
		if tt.want == "" {
			if got != nil {
				t.Errorf("ParseDate(%q) = %v, want nil", tt.in, got)
			}
			continue
		}
		if got == nil || got.Format("2006-01-02") != tt.want || !got.Equal(got.Truncate(24*time.Hour)) {
			t.Errorf("ParseDate(%q) = %v, want %s midnight UTC", tt.in, got, tt.want)
		}
	}
}
