package normalize

import (
	"testing"
)

func fp(v float64) *float64 { return &v }

func TestFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"", nil},
		{"  ", nil},
		{"12.5", fp(12.5)},
		{"-3", fp(-3)},
		{"1,204.50", fp(1204.5)},
		{"$1,204.50 (tow)", fp(1204.5)},
		{"106 kWh", fp(106)},
		{"8.2 h", fp(8.2)},
		{"45%", fp(45)},
		{"n/a", nil},
		{"pending", nil},
	}
	for _, tt := range tests {
		got := Float(tt.in)
		if (got == nil) != (tt.want == nil) {
			t.Errorf("Float(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		if got != nil && *got != *tt.want {
			t.Errorf("Float(%q) = %v, want %v", tt.in, *got, *tt.want)
		}
	}
}

func TestFraction(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"0.45", fp(0.45)},
		{"45", fp(0.45)},
		{"45%", fp(0.45)},
		{"100", fp(1)},
		{"1", fp(1)},
		{"1.0000005", fp(1)}, // inside the scale epsilon, clamped not divided
		{"-5", fp(0)},
		{"150", fp(1)}, // percent scale then clamped
		{"0.45678", fp(0.4568)},
		{"", nil},
	}
	for _, tt := range tests {
		got := Fraction(tt.in)
		if (got == nil) != (tt.want == nil) {
			t.Errorf("Fraction(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		if got != nil && *got != *tt.want {
			t.Errorf("Fraction(%q) = %v, want %v", tt.in, *got, *tt.want)
		}
	}
}

func TestDurationMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"01:30:00", fp(90)},
		{"0:45", fp(45)},
		{"00:00:30", fp(0.5)},
		{"1h30m", fp(90)},
		{"0.0625", fp(90)}, // Excel day fraction: 1.5 hours
		{"", nil},
		{"1:2:3:4", nil},
	}
	for _, tt := range tests {
		got := DurationMinutes(tt.in)
		if (got == nil) != (tt.want == nil) {
			t.Errorf("DurationMinutes(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		if got != nil && *got != *tt.want {
			t.Errorf("DurationMinutes(%q) = %v, want %v", tt.in, *got, *tt.want)
		}
	}
}

func TestMinutesToHours(t *testing.T) {
	if got := MinutesToHours("90"); got == nil || *got != 1.5 {
		t.Errorf("MinutesToHours(90) = %v, want 1.5", got)
	}
	if got := MinutesToHours("50"); got == nil || *got != 0.83 {
		t.Errorf("MinutesToHours(50) = %v, want 0.83", got)
	}
	if got := MinutesToHours(""); got != nil {
		t.Errorf("MinutesToHours(\"\") = %v, want nil", got)
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		in   string
		want string // "t", "f" or "nil"
	}{
		{"Yes", "t"}, {"y", "t"}, {"TRUE", "t"}, {"1", "t"},
		{"No", "f"}, {"n", "f"}, {"false", "f"}, {"0", "f"},
		{"", "nil"}, {"maybe", "nil"},
	}
	for _, tt := range tests {
		got := Bool(tt.in)
		switch tt.want {
		case "nil":
			if got != nil {
				t.Errorf("Bool(%q) = %v, want nil", tt.in, *got)
			}
		case "t":
			if got == nil || !*got {
				t.Errorf("Bool(%q) = %v, want true", tt.in, got)
			}
		case "f":
			if got == nil || *got {
				t.Errorf("Bool(%q) = %v, want false", tt.in, got)
			}
		}
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in       string
		wantAmt  *float64
		wantDesc string // "" means nil
	}{
		{"$250 (towing)", fp(250), "towing"},
		{"250", fp(250), ""},
		{"$1,204.50", fp(1204.5), ""},
		{"pending invoice", nil, "pending invoice"},
		{"", nil, ""},
	}
	for _, tt := range tests {
		amt, desc := Money(tt.in)
		if (amt == nil) != (tt.wantAmt == nil) || (amt != nil && *amt != *tt.wantAmt) {
			t.Errorf("Money(%q) amount = %v, want %v", tt.in, amt, tt.wantAmt)
		}
		gotDesc := ""
		if desc != nil {
			gotDesc = *desc
		}
		if gotDesc != tt.wantDesc {
			t.Errorf("Money(%q) desc = %q, want %q", tt.in, gotDesc, tt.wantDesc)
		}
	}
}

func TestDigits(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Truck #12", "12"},
		{"WT-101", "101"},
		{"12", "12"},
		{"no digits", ""},
	}
	for _, tt := range tests {
		if got := Digits(tt.in); got != tt.want {
			t.Errorf("Digits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRound(t *testing.T) {
	if got := Round(1.23456, 2); got != 1.23 {
		t.Errorf("Round(1.23456, 2) = %v, want 1.23", got)
	}
	if got := Round(0.125, 2); got != 0.13 {
		t.Errorf("Round(0.125, 2) = %v, want 0.13", got)
	}
	if got := Round(0.12345, 4); got != 0.1234 {
		t.Errorf("Round(0.12345, 4) = %v, want 0.1234", got)
	}
}

func TestStr(t *testing.T) {
	if got := Str("  hello "); got == nil || *got != "hello" {
		t.Errorf("Str trimmed = %v, want hello", got)
	}
	if got := Str("   "); got != nil {
		t.Errorf("Str(blank) = %q, want nil", *got)
	}
}
