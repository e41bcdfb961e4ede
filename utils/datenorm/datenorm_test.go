package datenorm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"dashed day month year", "25-06-2023", day(2023, time.June, 25), true},
		{"dashed single digits", "5-6-2023", day(2023, time.June, 5), true},
		{"compact recent", "250623", day(2023, time.June, 25), true},
		{"compact last century", "251299", day(1999, time.December, 25), true},
		{"compact wins over serial", "010203", day(2003, time.February, 1), true},
		{"serial day number", "45000", day(2023, time.March, 15), true},
		{"iso date", "2024-03-01", day(2024, time.March, 1), true},
		{"surrounding space", "  25-06-2023 ", day(2023, time.June, 25), true},
		{"empty", "", time.Time{}, false},
		{"blank", "   ", time.Time{}, false},
		{"garbage", "not a date", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestShortDigitStringsAreNotSerials(t *testing.T) {
	for _, input := range []string{"2023", "12", "9999"} {
		got, ok := Parse(input)
		if ok {
			assert.NotEqual(t, 1900, got.Year(), "input %q", input)
			assert.NotEqual(t, 1905, got.Year(), "input %q", input)
			assert.NotEqual(t, 1927, got.Year(), "input %q", input)
		}
	}

	got, ok := Parse("10000")
	assert.True(t, ok)
	assert.Equal(t, 1927, got.Year())
}

func TestOrNow(t *testing.T) {
	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, now, OrNow("whenever", now))
	assert.Equal(t, now, OrNow("", now))
	assert.True(t, day(2023, time.June, 25).Equal(OrNow("250623", now)))
}

func TestValue(t *testing.T) {
	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
	stamp := time.Date(2022, time.January, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, now, Value(nil, now))
	assert.Equal(t, stamp, Value(stamp, now))
	assert.Equal(t, now, Value(time.Time{}, now))
	assert.Equal(t, stamp, Value(&stamp, now))
	assert.True(t, day(2023, time.March, 15).Equal(Value(float64(45000), now)))
	assert.True(t, day(2023, time.March, 15).Equal(Value(45000, now)))
	assert.True(t, day(2023, time.March, 15).Equal(Value(int64(45000), now)))
	assert.True(t, day(2023, time.June, 25).Equal(Value("25-06-2023", now)))
	assert.Equal(t, now, Value(float64(-3), now))
	assert.Equal(t, now, Value(true, now))
}

func TestFromSerial(t *testing.T) {
	got, ok := FromSerial(45000.5)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2023, time.March, 15, 12, 0, 0, 0, time.UTC), got)

	got, ok = FromSerial(2)
	assert.True(t, ok)
	assert.Equal(t, day(1900, time.January, 1), got)
}

func TestFromSerialOutOfRange(t *testing.T) {
	for _, serial := range []float64{0, -1, 1, 1e7} {
		_, ok := FromSerial(serial)
		assert.False(t, ok, "serial %v", serial)
	}
}

func TestRepairStored(t *testing.T) {
	got, ok := RepairStored("+045000-01-01T00:00:00.000Z")
	assert.True(t, ok)
	assert.True(t, day(2023, time.March, 15).Equal(got))

	_, ok = RepairStored("2023-03-15T00:00:00Z")
	assert.False(t, ok)

	assert.True(t, IsRepairable(" +045000-01-01T00:00:00.000Z"))
	assert.False(t, IsRepairable("2023-03-15T00:00:00Z"))
}
