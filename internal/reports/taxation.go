package reports

import (
	"github.com/foliostack/tradeledger/internal/capitalgains"
	"github.com/foliostack/tradeledger/internal/ledger"
)

// BuildTaxation classifies realized gains per symbol per financial year.
func BuildTaxation(rows []ledger.EnrichedTransaction) capitalgains.Result {
	return capitalgains.Classify(rows)
}
