package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDueDate(t *testing.T) {
	now := time.Now()

	// Empty means no due date
	got, msg := parseDueDate("", now)
	assert.Empty(t, msg)
	assert.False(t, got.Valid)

	// A timestamp shortly in the future is valid in every timezone; the wire
	// format carries no zone, so it is read in local time like time.Now.
	raw := now.Add(30 * time.Minute).Format(dateLayout)
	got, msg = parseDueDate(raw, now)
	assert.Empty(t, msg)
	assert.True(t, got.Valid)
	assert.True(t, got.Time.After(now))

	raw = now.Add(-30 * time.Minute).Format(dateLayout)
	_, msg = parseDueDate(raw, now)
	assert.Equal(t, "must not be in the past", msg)

	_, msg = parseDueDate("tomorrow", now)
	assert.NotEmpty(t, msg)
}

func TestParseBoolish(t *testing.T) {
	cases := []struct {
		in    interface{}
		value bool
		ok    bool
	}{
		{nil, false, true},
		{true, true, true},
		{false, false, true},
		{"true", true, true},
		{"false", false, true},
		{"1", true, true},
		{"0", false, true},
		{float64(1), true, true},
		{float64(0), false, true},
		{"yes", false, false},
		{float64(2), false, false},
		{[]interface{}{}, false, false},
	}
	for _, tc := range cases {
		value, ok := parseBoolish(tc.in)
		assert.Equal(t, tc.ok, ok, "input %v", tc.in)
		assert.Equal(t, tc.value, value, "input %v", tc.in)
	}
}
