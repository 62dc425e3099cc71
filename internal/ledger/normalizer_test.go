package ledger

import (
	"testing"

	"github.com/foliostack/tradeledger/internal/tabular"
)

func rawTable(rows ...[]string) tabular.Table {
	return tabular.Table{
		Header: []string{"Date", "Symbol", "Type", "Quantity", "Price", "Exchange"},
		Rows:   rows,
	}
}

func TestNormalizeSignsAndAmounts(t *testing.T) {
	table := rawTable(
		[]string{"2023-01-10", "RELIANCE-EQ", "BUY", "10", "100.50", "NSE"},
		[]string{"2023-01-12", "RELIANCE", "SELL", "4", "110", "BSE"},
	)

	txs, err := NewNormalizer().Normalize(table)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}

	buy := txs[0]
	if buy.Symbol != "RELIANCE" {
		t.Fatalf("expected suffix-stripped symbol RELIANCE, got %q", buy.Symbol)
	}
	if buy.Quantity != 10 {
		t.Fatalf("expected +10 quantity, got %d", buy.Quantity)
	}
	if buy.NetAmount.String() != "1005" {
		t.Fatalf("expected net 1005, got %s", buy.NetAmount)
	}

	sell := txs[1]
	if sell.Quantity != -4 {
		t.Fatalf("expected sign derived from type, got %d", sell.Quantity)
	}
	if sell.Exchange != "BSE" {
		t.Fatalf("expected BSE, got %q", sell.Exchange)
	}
	if sell.NetAmount.String() != "-440" {
		t.Fatalf("expected net -440, got %s", sell.NetAmount)
	}
}

func TestNormalizeCanonicalSort(t *testing.T) {
	table := rawTable(
		[]string{"2023-01-10", "TCS", "SELL", "5", "100", "NSE"},
		[]string{"2023-01-10", "TCS", "BUY", "5", "100", "NSE"},
		[]string{"2023-01-09", "INFY", "BUY", "1", "50", "NSE"},
	)

	txs, err := NewNormalizer().Normalize(table)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if txs[0].Symbol != "INFY" {
		t.Fatalf("expected INFY first, got %q", txs[0].Symbol)
	}
	if txs[1].Type != TradeBuy || txs[2].Type != TradeSell {
		t.Fatal("expected BUY before SELL within a (symbol, date) group")
	}
}

func TestNormalizeStripsThousandsSeparators(t *testing.T) {
	table := rawTable([]string{"2023-01-10", "TCS", "BUY", "1,000", "3,500.25", "NSE"})

	txs, err := NewNormalizer().Normalize(table)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if txs[0].Quantity != 1000 {
		t.Fatalf("expected 1000 shares, got %d", txs[0].Quantity)
	}
	if txs[0].Price.String() != "3500.25" {
		t.Fatalf("expected price 3500.25, got %s", txs[0].Price)
	}
}

func TestNormalizeDefaultsExchange(t *testing.T) {
	table := tabular.Table{
		Header: []string{"Date", "Symbol", "Type", "Quantity", "Price"},
		Rows:   [][]string{{"2023-01-10", "TCS", "BUY", "1", "10"}},
	}
	txs, err := NewNormalizer().Normalize(table)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if txs[0].Exchange != DefaultExchange {
		t.Fatalf("expected default exchange, got %q", txs[0].Exchange)
	}
}

func TestNormalizeRejectsMalformedRows(t *testing.T) {
	cases := []struct {
		name string
		row  []string
	}{
		{"bad date", []string{"someday", "TCS", "BUY", "1", "10", "NSE"}},
		{"empty symbol", []string{"2023-01-10", "", "BUY", "1", "10", "NSE"}},
		{"bad type", []string{"2023-01-10", "TCS", "HOLD", "1", "10", "NSE"}},
		{"bad quantity", []string{"2023-01-10", "TCS", "BUY", "ten", "10", "NSE"}},
		{"zero quantity", []string{"2023-01-10", "TCS", "BUY", "0", "10", "NSE"}},
		{"bad price", []string{"2023-01-10", "TCS", "BUY", "1", "cheap", "NSE"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewNormalizer().Normalize(rawTable(tc.row))
			if err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNormalizeMissingColumn(t *testing.T) {
	table := tabular.Table{
		Header: []string{"Date", "Symbol", "Type", "Quantity"},
		Rows:   [][]string{{"2023-01-10", "TCS", "BUY", "1"}},
	}
	if _, err := NewNormalizer().Normalize(table); err == nil {
		t.Fatal("expected error for missing price column")
	}
}

func TestContainsAll(t *testing.T) {
	existing := rawTable(
		[]string{"2023-01-10", "TCS", "BUY", "1", "10", "NSE"},
		[]string{"2023-01-11", "TCS", "SELL", "1", "11", "NSE"},
	)
	subset := rawTable([]string{"2023-01-10", "TCS", "BUY", "1", "10", "NSE"})
	fresh := rawTable([]string{"2023-02-01", "TCS", "BUY", "2", "12", "NSE"})

	if !ContainsAll(existing, subset) {
		t.Fatal("expected subset to be contained")
	}
	if ContainsAll(existing, fresh) {
		t.Fatal("expected fresh rows to be reported as new")
	}
	// A duplicate beyond the existing multiplicity counts as new data.
	doubled := rawTable(
		[]string{"2023-01-10", "TCS", "BUY", "1", "10", "NSE"},
		[]string{"2023-01-10", "TCS", "BUY", "1", "10", "NSE"},
	)
	if ContainsAll(existing, doubled) {
		t.Fatal("expected multiplicity to be respected")
	}
}

func TestMergeNewRows(t *testing.T) {
	existing := rawTable(
		[]string{"2023-01-10", "TCS", "BUY", "1", "10", "NSE"},
		[]string{"2023-01-11", "TCS", "SELL", "1", "11", "NSE"},
	)
	incoming := rawTable(
		[]string{"2023-01-10", "TCS", "BUY", "1", "10", "NSE"},
		[]string{"2023-02-01", "INFY", "BUY", "2", "12", "NSE"},
	)

	merged, added := MergeNewRows(existing, incoming)
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if len(merged.Rows) != 3 {
		t.Fatalf("merged rows = %d, want 3", len(merged.Rows))
	}
	if merged.Rows[2][1] != "INFY" {
		t.Fatalf("new row must be appended last, got %v", merged.Rows[2])
	}
	// The input tables are left untouched.
	if len(existing.Rows) != 2 {
		t.Fatalf("existing mutated: %d rows", len(existing.Rows))
	}

	_, added = MergeNewRows(existing, existing.Clone())
	if added != 0 {
		t.Fatalf("all-duplicate import added %d rows", added)
	}
}
