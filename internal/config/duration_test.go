package config

import (
	"testing"
	"time"
)

func TestParseDuration_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"1h", time.Hour},
		{"1h30m", 90 * time.Minute},
		{"250ms", 250 * time.Millisecond},
		{"7d", 7 * 24 * time.Hour},
		{"30d", 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if err != nil {
				t.Fatalf("ParseDuration(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"abc",
		"10",
		"1.5d",
		"d",
		"-5m",
		"2w",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDuration(input)
			if err == nil {
				t.Errorf("ParseDuration(%q) expected error, got nil", input)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{30 * 24 * time.Hour, "30d"},
		{2 * time.Hour, "2h"},
		{10 * time.Minute, "10m"},
		{1500 * time.Millisecond, "1.5s"},
		{0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.input); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatDuration_RoundTrip(t *testing.T) {
	for _, d := range []time.Duration{time.Hour, 7 * 24 * time.Hour, 45 * time.Minute, 10 * time.Second} {
		got, err := ParseDuration(FormatDuration(d))
		if err != nil {
			t.Fatalf("round trip of %v failed: %v", d, err)
		}
		if got != d {
			t.Errorf("round trip of %v = %v", d, got)
		}
	}
}
