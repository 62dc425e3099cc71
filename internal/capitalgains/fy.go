// Package capitalgains buckets realized gains into intraday income and
// short/long-term capital gains per financial year.
package capitalgains

import (
	"fmt"
	"time"
)

// longTermHoldingDays is the holding period beyond which a gain is long-term.
const longTermHoldingDays = 365

// FinancialYear labels the Indian financial year (Apr 1 to Mar 31)
// containing the date, e.g. "FY 2023-24" for 2023-04-01 through 2024-03-31.
func FinancialYear(d time.Time) string {
	start := d.Year()
	if d.Month() < time.April {
		start--
	}
	return fmt.Sprintf("FY %d-%02d", start, (start+1)%100)
}

// IsLongTerm reports whether the holding period from buy to sell exceeds
// 365 days.
func IsLongTerm(buy, sell time.Time) bool {
	return sell.Sub(buy) > longTermHoldingDays*24*time.Hour
}
