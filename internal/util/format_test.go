package util

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		-time.Second:                              "0:00",
		0:                                         "0:00",
		5 * time.Second:                           "0:05",
		70*time.Second + 900*time.Millisecond:     "1:10",
		time.Hour + 2*time.Minute + 3*time.Second: "1:02:03",
	}
	for in, want := range tests {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"0:45", 45 * time.Second, true},
		{" 12:00 ", 12 * time.Minute, true},
		{"1:75", 0, false},
		{"45", 0, false},
		{"", 0, false},
		{"-1:00", 0, false},
		{"a:b", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDuration(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDuration(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
