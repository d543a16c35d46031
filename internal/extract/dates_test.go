package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terminwatch/terminwatch/internal/domain"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected domain.SlotDate
		ok       bool
	}{
		{"german with weekday", "Dienstag, 18.11.2025", "2025-11-18", true},
		{"german bare", "19.11.2025", "2025-11-19", true},
		{"german single digit", "Mittwoch, 5.3.2025", "2025-03-05", true},
		{"already iso", "2025-11-18", "2025-11-18", true},
		{"embedded in sentence", "Termine am 18.11.2025 um 14 Uhr", "2025-11-18", true},
		{"implausible day", "42.11.2025", domain.DateUnresolved, false},
		{"implausible month", "18.13.2025", domain.DateUnresolved, false},
		{"no date", "Abholung Führerschein", domain.DateUnresolved, false},
		{"empty", "", domain.DateUnresolved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, ok := ParseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, date)
		})
	}
}

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"plain", "14:00", "14:00", true},
		{"with suffix", "14:30 Uhr", "14:30", true},
		{"single digit hour", "7:05", "07:05", true},
		{"hour out of range", "25:00", "", false},
		{"minute out of range", "14:61", "", false},
		{"valid after invalid", "25:99 und 09:15", "09:15", true},
		{"no time", "Dienstag", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock, ok := ParseClockTime(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, clock)
		})
	}
}
