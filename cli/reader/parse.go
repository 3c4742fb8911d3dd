package reader

import (
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/sluice/lode"
	"github.com/pithecene-io/sluice/types"
)

const dayLayout = "2006-01-02"

// ParseDay normalizes a day filter. It accepts YYYY-MM-DD, "today" and
// "yesterday" (UTC, relative to now). Empty stays empty.
func ParseDay(s string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "today":
		return lode.DeriveDay(now), nil
	case "yesterday":
		return lode.DeriveDay(now.AddDate(0, 0, -1)), nil
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q (want YYYY-MM-DD, today or yesterday)", s)
	}
	return t.Format(dayLayout), nil
}

// ParseStatus validates an outcome status filter. Empty matches every status.
func ParseStatus(s string) (types.OutcomeStatus, error) {
	status := types.OutcomeStatus(strings.ToLower(s))
	switch status {
	case "", types.OutcomeSuccess, types.OutcomeTruncated, types.OutcomeFailed, types.OutcomeCanceled:
		return status, nil
	default:
		return "", fmt.Errorf("invalid status: %q (must be success, truncated, failed or canceled)", s)
	}
}

// parseTs parses a record timestamp.
func parseTs(ts string) (time.Time, error) {
	return time.Parse(types.TimestampFormat, ts)
}
