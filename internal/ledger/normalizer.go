package ledger

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliostack/tradeledger/errs"
	"github.com/foliostack/tradeledger/internal/tabular"
)

// Raw export column names recognised by the normalizer.
const (
	ColumnDate     = "Date"
	ColumnSymbol   = "Symbol"
	ColumnType     = "Type"
	ColumnQuantity = "Quantity"
	ColumnPrice    = "Price"
	ColumnExchange = "Exchange"
)

// DefaultExchange is assumed when the export omits the exchange column.
const DefaultExchange = "NSE"

var dateLayouts = []string{
	DateLayout,
	"02-01-2006",
	"02/01/2006",
	"02-Jan-2006",
}

// Normalizer parses raw export tables into canonical transactions.
type Normalizer struct{}

// NewNormalizer constructs a Normalizer.
func NewNormalizer() *Normalizer {
	return new(Normalizer)
}

// Normalize converts the raw table into canonically sorted transactions.
// Any malformed row aborts the whole unit with a validation error.
func (n *Normalizer) Normalize(table tabular.Table) ([]Transaction, error) {
	dateCol := table.ColumnIndex(ColumnDate)
	symbolCol := table.ColumnIndex(ColumnSymbol)
	typeCol := table.ColumnIndex(ColumnType)
	qtyCol := table.ColumnIndex(ColumnQuantity)
	priceCol := table.ColumnIndex(ColumnPrice)
	exchangeCol := table.ColumnIndex(ColumnExchange)
	for name, col := range map[string]int{
		ColumnDate:     dateCol,
		ColumnSymbol:   symbolCol,
		ColumnType:     typeCol,
		ColumnQuantity: qtyCol,
		ColumnPrice:    priceCol,
	} {
		if col < 0 {
			return nil, errs.New("ledger/normalizer", errs.CodeValidation,
				errs.WithMessage("missing column"), errs.WithField("column", name))
		}
	}

	txs := make([]Transaction, 0, len(table.Rows))
	for i, row := range table.Rows {
		tx, err := n.parseRow(row, i, dateCol, symbolCol, typeCol, qtyCol, priceCol, exchangeCol)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	SortCanonical(txs)
	return txs, nil
}

func (n *Normalizer) parseRow(row []string, idx, dateCol, symbolCol, typeCol, qtyCol, priceCol, exchangeCol int) (Transaction, error) {
	rowField := errs.WithField("row", strconv.Itoa(idx))
	cell := func(col int) string {
		if col < 0 || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	date, err := parseDate(cell(dateCol))
	if err != nil {
		return Transaction{}, errs.New("ledger/normalizer", errs.CodeValidation,
			errs.WithMessage("unparseable date"), rowField, errs.WithField("value", cell(dateCol)))
	}

	symbol := ParseSymbol(cell(symbolCol))
	if symbol == "" {
		return Transaction{}, errs.New("ledger/normalizer", errs.CodeValidation,
			errs.WithMessage("empty symbol"), rowField)
	}

	tradeType, err := parseTradeType(cell(typeCol))
	if err != nil {
		return Transaction{}, errs.New("ledger/normalizer", errs.CodeValidation,
			errs.WithMessage("unknown trade type"), rowField, errs.WithField("value", cell(typeCol)))
	}

	qty, err := parseQuantity(cell(qtyCol))
	if err != nil {
		return Transaction{}, errs.New("ledger/normalizer", errs.CodeValidation,
			errs.WithMessage("non-numeric quantity"), rowField, errs.WithField("value", cell(qtyCol)))
	}
	if qty == 0 {
		return Transaction{}, errs.New("ledger/normalizer", errs.CodeValidation,
			errs.WithMessage("zero quantity"), rowField)
	}
	// Unsigned exports derive the sign from the type column.
	if qty > 0 && tradeType == TradeSell {
		qty = -qty
	}
	if qty < 0 && tradeType == TradeBuy {
		return Transaction{}, errs.New("ledger/normalizer", errs.CodeValidation,
			errs.WithMessage("negative quantity on BUY row"), rowField)
	}

	price, err := parseDecimal(cell(priceCol))
	if err != nil || price.IsNegative() {
		return Transaction{}, errs.New("ledger/normalizer", errs.CodeValidation,
			errs.WithMessage("non-numeric price"), rowField, errs.WithField("value", cell(priceCol)))
	}

	exchange := strings.ToUpper(cell(exchangeCol))
	if exchange == "" {
		exchange = DefaultExchange
	}

	return Transaction{
		Date:      date,
		Symbol:    symbol,
		Exchange:  exchange,
		Type:      tradeType,
		Quantity:  qty,
		Price:     price,
		NetAmount: price.Mul(decimal.NewFromInt(qty)),
	}, nil
}

// ParseSymbol strips series suffixes ("RELIANCE-EQ" -> "RELIANCE").
func ParseSymbol(raw string) string {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if cut := strings.IndexByte(symbol, '-'); cut >= 0 {
		symbol = symbol[:cut]
	}
	return symbol
}

// ContainsAll reports whether every incoming row already exists in the
// current table, the duplicate-export check run before reprocessing.
func ContainsAll(existing, incoming tabular.Table) bool {
	if len(incoming.Rows) == 0 {
		return true
	}
	seen := make(map[string]int, len(existing.Rows))
	for _, row := range existing.Rows {
		seen[rowKey(row)]++
	}
	for _, row := range incoming.Rows {
		key := rowKey(row)
		if seen[key] == 0 {
			return false
		}
		seen[key]--
	}
	return true
}

// MergeNewRows appends incoming rows that are not already present in the
// existing table and reports how many rows were added. Duplicate incoming
// rows beyond the existing multiplicity are treated as new.
func MergeNewRows(existing, incoming tabular.Table) (tabular.Table, int) {
	merged := existing.Clone()
	seen := make(map[string]int, len(existing.Rows))
	for _, row := range existing.Rows {
		seen[rowKey(row)]++
	}
	added := 0
	for _, row := range incoming.Rows {
		key := rowKey(row)
		if seen[key] > 0 {
			seen[key]--
			continue
		}
		merged.Rows = append(merged.Rows, append([]string(nil), row...))
		added++
	}
	return merged, added
}

func rowKey(row []string) string {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		cells = append(cells, strings.TrimSpace(c))
	}
	return strings.Join(cells, "\x1f")
}

func parseDate(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		d, err := time.Parse(layout, raw)
		if err == nil {
			return d.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseTradeType(raw string) (TradeType, error) {
	switch strings.ToUpper(raw) {
	case "BUY", "B":
		return TradeBuy, nil
	case "SELL", "S":
		return TradeSell, nil
	default:
		return "", errs.New("ledger/normalizer", errs.CodeValidation, errs.WithMessage("unknown trade type"))
	}
}

func parseQuantity(raw string) (int64, error) {
	return strconv.ParseInt(stripSeparators(raw), 10, 64)
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(stripSeparators(raw))
}

func stripSeparators(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
}
