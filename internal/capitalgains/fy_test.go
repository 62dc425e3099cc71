package capitalgains

import (
	"testing"
	"time"
)

func TestFinancialYearBuckets(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		{time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), "FY 2023-24"},
		{time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), "FY 2024-25"},
		{time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC), "FY 2023-24"},
		{time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC), "FY 2023-24"},
		{time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC), "FY 2099-00"},
	}
	for _, tc := range cases {
		if got := FinancialYear(tc.date); got != tc.want {
			t.Errorf("FinancialYear(%s) = %q, want %q", tc.date.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestIsLongTermBoundary(t *testing.T) {
	buy := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

	exactly365 := buy.Add(365 * 24 * time.Hour)
	if IsLongTerm(buy, exactly365) {
		t.Fatal("365 days is not long term")
	}

	days366 := buy.Add(366 * 24 * time.Hour)
	if !IsLongTerm(buy, days366) {
		t.Fatal("366 days is long term")
	}
}
