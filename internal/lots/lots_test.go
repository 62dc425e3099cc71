package lots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func lot(day int, qty int64, cost int64) Lot {
	return Lot{
		Date:     time.Date(2023, time.January, day, 0, 0, 0, 0, time.UTC),
		Quantity: qty,
		Cost:     decimal.NewFromInt(cost),
	}
}

func TestAverageCostSimpleFIFO(t *testing.T) {
	buys := []Lot{lot(1, 10, 1000)}
	sells := []Lot{lot(5, 10, 1200)}

	avg := AverageCostOfSoldShares(buys, sells)
	if !avg.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected avg cost 100, got %s", avg)
	}
}

func TestAverageCostSameDateNetsFirst(t *testing.T) {
	// Day 3 sell should prefer the day 3 buy at 110 over the older day 1
	// buy at 100 for its intraday portion.
	buys := []Lot{lot(1, 10, 1000), lot(3, 5, 550)}
	sells := []Lot{lot(3, 5, 600)}

	avg := AverageCostOfSoldShares(buys, sells)
	if !avg.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("expected same-date avg cost 110, got %s", avg)
	}
}

func TestAverageCostMixedPhases(t *testing.T) {
	// 5 shares match same-date at unit 110, 5 more pull FIFO from the day 1
	// lot at unit 100: avg = (550 + 500) / 10 = 105.
	buys := []Lot{lot(1, 10, 1000), lot(3, 5, 550)}
	sells := []Lot{lot(3, 10, 1150)}

	avg := AverageCostOfSoldShares(buys, sells)
	if !avg.Equal(decimal.NewFromInt(105)) {
		t.Fatalf("expected blended avg cost 105, got %s", avg)
	}
}

func TestAverageCostSpansMultipleBuyLots(t *testing.T) {
	buys := []Lot{lot(1, 4, 400), lot(2, 6, 720)}
	sells := []Lot{lot(10, 10, 1300)}

	// (400 + 720) / 10 = 112.
	avg := AverageCostOfSoldShares(buys, sells)
	if !avg.Equal(decimal.NewFromInt(112)) {
		t.Fatalf("expected avg cost 112, got %s", avg)
	}
}

func TestAverageCostPartialSale(t *testing.T) {
	buys := []Lot{lot(1, 10, 1000)}
	sells := []Lot{lot(5, 4, 480)}

	avg := AverageCostOfSoldShares(buys, sells)
	if !avg.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected avg cost 100 for partial sale, got %s", avg)
	}
}

func TestAverageCostNothingSold(t *testing.T) {
	buys := []Lot{lot(1, 10, 1000)}

	avg := AverageCostOfSoldShares(buys, nil)
	if !avg.IsZero() {
		t.Fatalf("expected zero for no sales, got %s", avg)
	}
}

func TestUnitCost(t *testing.T) {
	l := lot(1, 4, 500)
	if !l.UnitCost().Equal(decimal.NewFromInt(125)) {
		t.Fatalf("expected unit cost 125, got %s", l.UnitCost())
	}
	empty := Lot{}
	if !empty.UnitCost().IsZero() {
		t.Fatal("expected zero unit cost for empty lot")
	}
}
