package tickets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlNumberFormat(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	// 20:30 UTC on the 4th is already the 5th in Manila.
	at := time.Date(2025, 3, 4, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, "20250304", ControlPrefix(at, time.UTC))
	assert.Equal(t, "20250305", ControlPrefix(at, manila))

	assert.Equal(t, "20250305-0001", FormatControlNo("20250305", 1))
	assert.Equal(t, "20250305-0042", FormatControlNo("20250305", 42))
	assert.Equal(t, "20250305-9999", FormatControlNo("20250305", MaxDailySequence))
}

func TestParseControlNo(t *testing.T) {
	prefix, seq, err := ParseControlNo("20250305-0042")
	require.NoError(t, err)
	assert.Equal(t, "20250305", prefix)
	assert.Equal(t, 42, seq)

	for _, bad := range []string{"", "20250305", "2025030-0001", "20251399-0001", "20250305-01", "20250305-abcd", "20250305-0000", "20250305-10000"} {
		_, _, err := ParseControlNo(bad)
		assert.Error(t, err, bad)
	}
}

func TestNextSequence(t *testing.T) {
	assert.Equal(t, 1, NextSequence("20250305", nil))
	assert.Equal(t, 8, NextSequence("20250305", []string{"20250305-0007", "20250304-0099", "20250305-0003", "junk"}))
	assert.Equal(t, 10000, NextSequence("20250305", []string{"20250305-9999"}))
	assert.Equal(t, 3, NextSequence("20250305", []string{"20250305-0002", "20250305-99999", "20250305-12x4"}))
}

func TestControlNumbersSortWithinDay(t *testing.T) {
	prev := FormatControlNo("20250305", 1)
	for _, seq := range []int{2, 9, 10, 99, 100, 999, 1000, MaxDailySequence} {
		next := FormatControlNo("20250305", seq)
		assert.Less(t, prev, next)
		prev = next
	}
}
