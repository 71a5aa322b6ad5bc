package tickets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mtvts/mtvts/internal/shared"
)

const (
	controlDayLayout = "20060102"
	controlSeqDigits = 4

	// MaxDailySequence is the last sequence that fits the four-digit suffix.
	MaxDailySequence = 9999
)

// ErrDailyLimitReached is returned once a day has used every control number.
var ErrDailyLimitReached = fmt.Errorf("%w (%d): %w", shared.ErrDailyLimit, MaxDailySequence, shared.ErrConflict)

// ControlPrefix returns the YYYYMMDD prefix for t in loc.
func ControlPrefix(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(controlDayLayout)
}

// FormatControlNo renders prefix-NNNN. Callers keep seq within MaxDailySequence.
func FormatControlNo(prefix string, seq int) string {
	return fmt.Sprintf("%s-%0*d", prefix, controlSeqDigits, seq)
}

// ParseControlNo splits a control number into its day prefix and sequence.
func ParseControlNo(controlNo string) (string, int, error) {
	prefix, suffix, ok := strings.Cut(controlNo, "-")
	if !ok || len(prefix) != len(controlDayLayout) || len(suffix) != controlSeqDigits {
		return "", 0, fmt.Errorf("malformed control number %q", controlNo)
	}
	if _, err := time.Parse(controlDayLayout, prefix); err != nil {
		return "", 0, fmt.Errorf("malformed control number %q: %w", controlNo, err)
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq < 1 {
		return "", 0, fmt.Errorf("malformed control number %q", controlNo)
	}
	return prefix, seq, nil
}

// NextSequence returns the sequence following the greatest existing control
// number for prefix. Malformed or foreign-prefix entries are ignored.
func NextSequence(prefix string, existing []string) int {
	maxSeq := 0
	for _, controlNo := range existing {
		p, seq, err := ParseControlNo(controlNo)
		if err != nil || p != prefix {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1
}
