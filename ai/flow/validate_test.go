package flow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateTime(t *testing.T) {
	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"09:30", "09:30", true},
		{"9:30", "09:30", true},
		{"9.30", "09:30", true},
		{"9", "09:00", true},
		{"14:00", "14:00", true},
		{"sabah 9", "09:00", true},
		{"akşam 7", "19:00", true},
		{"akşam 19:30", "19:30", true},
		{"öğleden sonra 3", "15:00", true},
		{"25:00", "", false},
		{"12:75", "", false},
		{"yarın", "", false},
		{"", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := Validate(ValidateTime, tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateDate(t *testing.T) {
	currentYear := time.Now().Year()

	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-06-15", "2026-06-15", true},
		{"15.06.2026", "2026-06-15", true},
		{"15/06/2026", "2026-06-15", true},
		{"15-06-2026", "2026-06-15", true},
		{"15.06", fmt.Sprintf("%d-06-15", currentYear), true},
		{"15/6", fmt.Sprintf("%d-06-15", currentYear), true},
		{"2026-13-01", "", false},
		{"32.01.2026", "", false},
		{"haziran", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := Validate(ValidateDate, tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidatePhone(t *testing.T) {
	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"05321234567", "05321234567", true},
		{"0532 123 45 67", "05321234567", true},
		{"+90 532 123 45 67", "+905321234567", true},
		{"(532) 123-45-67", "5321234567", true},
		{"12345", "", false},
		{"yok", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := Validate(ValidatePhone, tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	got, ok := Validate(ValidateEmail, "Ayse@Example.COM")
	assert.True(t, ok)
	assert.Equal(t, "ayse@example.com", got)

	_, ok = Validate(ValidateEmail, "ayse at example")
	assert.False(t, ok)
}

func TestValidateNumber(t *testing.T) {
	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"3", "3", true},
		{"12 kişi", "12", true},
		{"bir", "1", true},
		{"iki", "2", true},
		{"üç", "3", true},
		{"dört kişi olacağız", "4", true},
		{"beş", "5", true},
		{"altı", "6", true},
		{"yedi", "7", true},
		{"sekiz", "8", true},
		{"dokuz", "9", true},
		{"on", "10", true},
		{"birkaç", "", false},
		{"bilmiyorum", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := Validate(ValidateNumber, tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateText(t *testing.T) {
	got, ok := Validate(ValidateText, "  Kadıköy  ")
	assert.True(t, ok)
	assert.Equal(t, "Kadıköy", got)

	_, ok = Validate("", "değer")
	assert.True(t, ok, "empty kind behaves like text")

	_, ok = Validate(ValidateText, "   ")
	assert.False(t, ok)
}

func TestNormalizeOption(t *testing.T) {
	options := []string{"düğün", "kına", "nişan"}

	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"düğün", "düğün", true},
		{"DUGUN", "düğün", true},
		{"kina", "kına", true},
		{"nişan için olacak", "nişan", true},
		{"bilmem", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := NormalizeOption(options, tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
