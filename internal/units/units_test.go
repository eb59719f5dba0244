package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"invalid unit", "invalid", false},
		{"empty unit", "", false},
		{"uppercase MPS", "MPS", false},
		{"angular unit", DegPerSec, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		unit     string
		expected float64
	}{
		{"1 m/s to mps", 1.0, MPS, 1.0},
		{"1 m/s to mph", 1.0, MPH, 2.2369362920544},
		{"10 m/s to kph", 10.0, KPH, 36.0},
		{"unknown unit passes through", 4.0, "furlongs", 4.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertSpeed(tt.speedMPS, tt.unit)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ConvertSpeed(%v, %s) = %v, want %v", tt.speedMPS, tt.unit, got, tt.expected)
			}
		})
	}
}

func TestConvertAngularRate(t *testing.T) {
	if got := ConvertAngularRate(math.Pi, DegPerSec); math.Abs(got-180) > 1e-9 {
		t.Errorf("ConvertAngularRate(pi, deg/s) = %v, want 180", got)
	}
	if got := ConvertAngularRate(0.5, RadPerSec); got != 0.5 {
		t.Errorf("ConvertAngularRate(0.5, rad/s) = %v, want 0.5", got)
	}
}

func TestSpeedLabel(t *testing.T) {
	for unit, want := range map[string]string{MPS: "m/s", MPH: "mph", KPH: "km/h", KMPH: "km/h"} {
		if got := SpeedLabel(unit); got != want {
			t.Errorf("SpeedLabel(%s) = %s, want %s", unit, got, want)
		}
	}
}
