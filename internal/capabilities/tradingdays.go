package capabilities

import (
	"time"

	"github.com/marketscript/backend/internal/providers/marketdata"
)

// dateAfterTradingDays walks forward from start by n trading days, skipping
// Saturdays and Sundays only (no holiday calendar). n=0 returns start as-is.
// The loop is bounded at 3×n iterations as a runaway guard; crossing it, or
// an unparseable start date, reports ok=false.
func dateAfterTradingDays(start string, n int) (string, bool) {
	d, err := time.Parse(marketdata.DateLayout, start)
	if err != nil {
		return "", false
	}
	if n == 0 {
		return start, true
	}

	remaining := n
	iterations := 0
	maxIterations := 3 * n

	for remaining > 0 {
		iterations++
		if iterations > maxIterations {
			return "", false
		}
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		remaining--
	}
	return d.Format(marketdata.DateLayout), true
}
