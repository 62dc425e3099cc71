package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func tx(symbol string, day int, tradeType TradeType, qty int64, price int64) Transaction {
	signed := qty
	if tradeType == TradeSell {
		signed = -qty
	}
	p := decimal.NewFromInt(price)
	return Transaction{
		Date:      time.Date(2023, time.January, day, 0, 0, 0, 0, time.UTC),
		Symbol:    symbol,
		Exchange:  "NSE",
		Type:      tradeType,
		Quantity:  signed,
		Price:     p,
		NetAmount: p.Mul(decimal.NewFromInt(signed)),
	}
}

func TestClassifyIntradayFullMatch(t *testing.T) {
	rows := Enrich([]Transaction{
		tx("TCS", 10, TradeBuy, 10, 100),
		tx("TCS", 10, TradeSell, 10, 105),
	})
	ClassifyIntraday(rows)

	if rows[0].IntradayCount != 10 {
		t.Fatalf("expected BUY intraday 10, got %d", rows[0].IntradayCount)
	}
	if rows[1].IntradayCount != 10 {
		t.Fatalf("expected SELL intraday 10, got %d", rows[1].IntradayCount)
	}
}

func TestClassifyIntradayPartialSell(t *testing.T) {
	rows := Enrich([]Transaction{
		tx("TCS", 10, TradeBuy, 4, 100),
		tx("TCS", 10, TradeSell, 10, 105),
	})
	ClassifyIntraday(rows)

	if rows[0].IntradayCount != 4 {
		t.Fatalf("expected BUY intraday 4, got %d", rows[0].IntradayCount)
	}
	if rows[1].IntradayCount != 4 {
		t.Fatalf("expected SELL intraday 4, got %d", rows[1].IntradayCount)
	}
	if rows[1].DeliveryCount() != 6 {
		t.Fatalf("expected SELL delivery 6, got %d", rows[1].DeliveryCount())
	}
}

func TestClassifyIntradayDistributesAcrossBuyRows(t *testing.T) {
	rows := Enrich([]Transaction{
		tx("TCS", 10, TradeBuy, 3, 100),
		tx("TCS", 10, TradeBuy, 5, 101),
		tx("TCS", 10, TradeSell, 6, 105),
	})
	ClassifyIntraday(rows)

	if rows[0].IntradayCount != 3 {
		t.Fatalf("expected first BUY fully matched, got %d", rows[0].IntradayCount)
	}
	if rows[1].IntradayCount != 3 {
		t.Fatalf("expected second BUY partially matched with 3, got %d", rows[1].IntradayCount)
	}
	if rows[2].IntradayCount != 6 {
		t.Fatalf("expected SELL intraday 6, got %d", rows[2].IntradayCount)
	}
}

func TestClassifyIntradayMultipleSells(t *testing.T) {
	rows := Enrich([]Transaction{
		tx("TCS", 10, TradeBuy, 10, 100),
		tx("TCS", 10, TradeSell, 4, 105),
		tx("TCS", 10, TradeSell, 9, 106),
	})
	ClassifyIntraday(rows)

	if rows[1].IntradayCount != 4 {
		t.Fatalf("expected first SELL intraday 4, got %d", rows[1].IntradayCount)
	}
	// Only 6 BUY shares remain for the second SELL.
	if rows[2].IntradayCount != 6 {
		t.Fatalf("expected second SELL intraday 6, got %d", rows[2].IntradayCount)
	}
	if rows[0].IntradayCount != 10 {
		t.Fatalf("expected BUY fully consumed, got %d", rows[0].IntradayCount)
	}
}

func TestClassifyIntradayNoBuysThatDay(t *testing.T) {
	rows := Enrich([]Transaction{
		tx("TCS", 9, TradeBuy, 10, 100),
		tx("TCS", 10, TradeSell, 10, 105),
	})
	ClassifyIntraday(rows)

	if rows[0].IntradayCount != 0 || rows[1].IntradayCount != 0 {
		t.Fatal("expected pure delivery when no same-day buys exist")
	}
}

func TestClassifyIntradayIsolatesGroups(t *testing.T) {
	rows := Enrich([]Transaction{
		tx("INFY", 10, TradeBuy, 5, 100),
		tx("INFY", 10, TradeSell, 5, 101),
		tx("TCS", 10, TradeSell, 5, 200),
	})
	ClassifyIntraday(rows)

	if rows[0].IntradayCount != 5 || rows[1].IntradayCount != 5 {
		t.Fatal("expected INFY group fully matched")
	}
	if rows[2].IntradayCount != 0 {
		t.Fatal("expected TCS sell untouched by INFY buys")
	}
}
